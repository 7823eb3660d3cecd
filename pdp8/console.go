package pdp8

import "github.com/pkg/errors"

// Console device codes: keyboard on 003, teleprinter on 004.
const (
	keyboardDeviceCode    = 0o03
	teleprinterDeviceCode = 0o04
)

// Keyboard microcode bits, the low 3 bits of the IOT instruction.
const (
	bitKSF = 0o1 // skip if ready
	bitKCC = 0o2 // clear AC, clear ready, advance
	bitKRS = 0o4 // OR buffer into AC without clearing ready
)

// Teleprinter microcode bits.
const (
	bitTSF = 0o1 // skip if ready
	bitTCF = 0o2 // clear ready
	bitTPC = 0o4 // print AC's low 7 bits
)

// Console is the KL8E keyboard/teleprinter device. It is attached to
// exactly one CPU and owns its own input/output state independent of the
// bus it reports to.
type Console struct {
	cpu *CPU

	keyboardBuffer int
	keyboardReady  bool
	pendingInput   []int // FIFO of queued 7-bit keyboard values

	teleprinterReady bool
	outputQueue      []int // FIFO of 7-bit values already emitted by the guest
}

// NewConsole creates a detached console device. Attach it to a CPU to
// start receiving IOT instructions.
func NewConsole() *Console {
	return &Console{teleprinterReady: true}
}

// Attach registers the console's keyboard and teleprinter handlers on cpu.
// Attaching an already-attached console is a device-attach error; call
// Destroy first to move it to a different CPU.
func (c *Console) Attach(cpu *CPU) error {
	if c.cpu != nil {
		return errors.Wrap(ErrDeviceAttach, "console already attached")
	}
	c.cpu = cpu
	cpu.RegisterIOT(keyboardDeviceCode, IOTFunc(c.handleKeyboard), c)
	cpu.RegisterIOT(teleprinterDeviceCode, IOTFunc(c.handleTeleprinter), c)
	return nil
}

// Destroy deregisters the console's handlers. It is safe to call even if
// Attach was never called.
func (c *Console) Destroy() {
	if c.cpu == nil {
		return
	}
	c.cpu.DeregisterIOT(keyboardDeviceCode, c)
	c.cpu.DeregisterIOT(teleprinterDeviceCode, c)
	c.cpu = nil
}

// advanceKeyboard dequeues the next pending input byte into the keyboard
// buffer and raises ready, if anything is queued.
func (c *Console) advanceKeyboard() {
	if len(c.pendingInput) == 0 {
		c.keyboardReady = false
		return
	}
	c.keyboardBuffer = c.pendingInput[0]
	c.pendingInput = c.pendingInput[1:]
	c.keyboardReady = true
}

// handleKeyboard implements KSF/KCC/KRS and their combination KRB.
// All-bits-zero is "clear current character": consume and advance,
// matching field use.
func (c *Console) handleKeyboard(cpu *CPU, instruction int) {
	bits := instruction & 0o7

	if bits&bitKSF != 0 && c.keyboardReady {
		cpu.RequestSkip()
	}
	if bits&bitKCC != 0 {
		cpu.SetAC(0)
	}
	if bits&bitKRS != 0 && c.keyboardReady {
		cpu.SetAC(cpu.AC() | c.keyboardBuffer)
	}
	if bits&bitKCC != 0 || bits == 0 {
		c.advanceKeyboard()
	}
}

// handleTeleprinter implements TSF/TCF/TPC and their combination TLS.
// Output is modelled as non-blocking: ready drops and is immediately
// raised again within the same instruction.
func (c *Console) handleTeleprinter(cpu *CPU, instruction int) {
	bits := instruction & 0o7

	if bits&bitTSF != 0 && c.teleprinterReady {
		cpu.RequestSkip()
	}
	if bits&bitTCF != 0 {
		c.teleprinterReady = false
	}
	if bits&bitTPC != 0 {
		c.teleprinterReady = false
		c.outputQueue = append(c.outputQueue, cpu.AC()&0o177)
		c.teleprinterReady = true
	}
}

// QueueInput appends a 7-bit byte to the pending keyboard input queue. If
// the keyboard is currently idle (buffer empty, not ready) it is
// immediately promoted into the buffer.
func (c *Console) QueueInput(b int) {
	c.pendingInput = append(c.pendingInput, b&0o177)
	if !c.keyboardReady {
		c.advanceKeyboard()
	}
}

// InputPending returns the number of bytes still queued behind the
// current keyboard buffer.
func (c *Console) InputPending() int {
	return len(c.pendingInput)
}

// OutputPending returns the number of bytes the guest has printed but the
// host has not yet popped.
func (c *Console) OutputPending() int {
	return len(c.outputQueue)
}

// PopOutput removes and returns the oldest printed byte. On an empty
// queue it returns 0; OutputPending tells that apart from a printed NUL.
func (c *Console) PopOutput() int {
	if len(c.outputQueue) == 0 {
		return 0
	}
	b := c.outputQueue[0]
	c.outputQueue = c.outputQueue[1:]
	return b
}

// Flush drains the output queue to w, one byte at a time, and is
// idempotent on an already-empty queue. Newline normalization is the
// host's concern, not the device's.
func (c *Console) Flush(w ByteWriter) {
	for len(c.outputQueue) > 0 {
		w.WriteByte(byte(c.PopOutput()))
	}
}

// ByteWriter is the minimal sink Flush needs; *bufio.Writer and
// *os.File (via a small adapter) both satisfy it.
type ByteWriter interface {
	WriteByte(byte) error
}
