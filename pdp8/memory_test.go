package pdp8

import "testing"

func TestMemoryWriteReadRoundTrip(t *testing.T) {
	m := NewMemory(16)
	if err := m.Write(5, 0o1234); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := m.Read(5); got != 0o1234 {
		t.Errorf("Read(5) = %#o, want 0o1234", got)
	}
}

func TestMemoryWriteMasksToWord(t *testing.T) {
	m := NewMemory(16)
	if err := m.Write(0, 0o17777); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := m.Read(0); got != 0o7777 {
		t.Errorf("Read(0) = %#o, want 0o7777", got)
	}
}

func TestMemoryWriteOutOfBounds(t *testing.T) {
	m := NewMemory(16)
	if err := m.Write(16, 0); err == nil {
		t.Error("expected an error writing past the configured size")
	}
	if err := m.Write(-1, 0); err == nil {
		t.Error("expected an error writing a negative address")
	}
}

func TestMemoryZeroSizeIsSafe(t *testing.T) {
	m := NewMemory(0)
	if got := m.Read(0); got != 0 {
		t.Errorf("Read on empty memory = %#o, want 0", got)
	}
	if err := m.Write(0, 1); err == nil {
		t.Error("expected an error writing to empty memory")
	}
}

func TestMemorySizeClampedToMemSize(t *testing.T) {
	m := NewMemory(MemSize + 100)
	if m.Size() != MemSize {
		t.Errorf("Size() = %d, want %d", m.Size(), MemSize)
	}
}

func TestMemoryReset(t *testing.T) {
	m := NewMemory(4)
	_ = m.Write(0, 0o7)
	_ = m.Write(3, 0o7)
	m.Reset()
	for i := 0; i < 4; i++ {
		if m.Read(i) != 0 {
			t.Errorf("Read(%d) after Reset = %#o, want 0", i, m.Read(i))
		}
	}
}
