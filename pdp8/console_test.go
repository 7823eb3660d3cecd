package pdp8

import "testing"

func TestConsoleKeyboardFIFOOrder(t *testing.T) {
	cpu := NewCPU(16)
	c := NewConsole()
	if err := c.Attach(cpu); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer c.Destroy()

	c.QueueInput('a')
	c.QueueInput('b')
	c.QueueInput('c')

	var got []byte
	for i := 0; i < 3; i++ {
		cpu.SetAC(0)
		cpu.execute(instr(classIOT, false, false, 0) | (keyboardDeviceCode << 3) | bitKSF)
		if !cpu.skip {
			t.Fatalf("round %d: expected KSF to report ready", i)
		}
		cpu.skip = false
		cpu.execute(instr(classIOT, false, false, 0) | (keyboardDeviceCode << 3) | bitKRS | bitKCC)
		got = append(got, byte(cpu.AC()))
	}

	want := "abc"
	for i, w := range want {
		if got[i] != byte(w) {
			t.Errorf("byte %d = %q, want %q", i, got[i], byte(w))
		}
	}
}

func TestConsoleKeyboardNotReadyWhenEmpty(t *testing.T) {
	cpu := NewCPU(16)
	c := NewConsole()
	_ = c.Attach(cpu)
	defer c.Destroy()

	cpu.execute(instr(classIOT, false, false, 0) | (keyboardDeviceCode << 3) | bitKSF)
	if cpu.skip {
		t.Error("expected no skip: no input queued")
	}
}

func TestConsoleTeleprinterQueuesPrintedBytes(t *testing.T) {
	cpu := NewCPU(16)
	c := NewConsole()
	_ = c.Attach(cpu)
	defer c.Destroy()

	cpu.SetAC('X')
	cpu.execute(instr(classIOT, false, false, 0) | (teleprinterDeviceCode << 3) | bitTPC)

	if c.OutputPending() != 1 {
		t.Fatalf("OutputPending() = %d, want 1", c.OutputPending())
	}
	if got := c.PopOutput(); got != 'X' {
		t.Errorf("PopOutput() = %q, want %q", got, 'X')
	}
}

func TestConsoleTeleprinterReadyAfterTSF(t *testing.T) {
	cpu := NewCPU(16)
	c := NewConsole()
	_ = c.Attach(cpu)
	defer c.Destroy()

	cpu.execute(instr(classIOT, false, false, 0) | (teleprinterDeviceCode << 3) | bitTSF)
	if !cpu.skip {
		t.Error("expected the teleprinter to be ready initially")
	}
}

func TestConsoleDoubleAttachIsADeviceAttachError(t *testing.T) {
	cpu := NewCPU(16)
	c := NewConsole()
	_ = c.Attach(cpu)
	defer c.Destroy()

	if err := c.Attach(NewCPU(16)); err == nil {
		t.Error("expected an error re-attaching an already-attached console")
	}
}
