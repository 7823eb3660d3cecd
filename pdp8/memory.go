package pdp8

import "github.com/pkg/errors"

// ErrMemoryBounds is returned when a caller addresses outside the
// configured memory size.
var ErrMemoryBounds = errors.New("address exceeds configured memory")

// Memory is the CPU's exclusively-owned core store: an indexed sequence of
// 4096 (or fewer, for a smaller configured machine) 12-bit words. Every
// address within the configured size is valid; writes mask to 12 bits.
type Memory struct {
	words []int
}

// NewMemory allocates a zeroed core of the given size, clamped to at most
// MemSize words. A negative size is treated as zero, giving callers a way
// to construct a CPU with no addressable memory at all.
func NewMemory(size int) *Memory {
	if size < 0 {
		size = 0
	}
	if size > MemSize {
		size = MemSize
	}
	return &Memory{words: make([]int, size)}
}

// Size returns the configured word count.
func (m *Memory) Size() int {
	return len(m.words)
}

// Read returns the word at addr, wrapping addr modulo the configured size.
// Reads never fail: every address in range is always valid. A zero-sized
// memory has nothing to read and yields 0.
func (m *Memory) Read(addr int) int {
	if len(m.words) == 0 {
		return 0
	}
	return m.words[addr%len(m.words)]
}

// Write stores val (masked to 12 bits) at addr. An out-of-range address is
// rejected without mutating any state.
func (m *Memory) Write(addr int, val int) error {
	if addr < 0 || addr >= len(m.words) {
		return errors.Wrapf(ErrMemoryBounds, "address %#o", addr)
	}
	m.words[addr] = maskWord(val)
	return nil
}

// Reset zeroes every word in the core.
func (m *Memory) Reset() {
	for i := range m.words {
		m.words[i] = 0
	}
}
