package pdp8

import "testing"

func TestIOTDispatchToRegisteredHandler(t *testing.T) {
	cpu := NewCPU(16)
	called := false
	cpu.RegisterIOT(0o20, IOTFunc(func(c *CPU, instr int) {
		called = true
		c.SetAC(0o42)
	}), nil)

	cpu.execute(instr(classIOT, false, false, 0) | (0o20 << 3))

	if !called {
		t.Error("expected the registered handler to be invoked")
	}
	if cpu.AC() != 0o42 {
		t.Errorf("AC = %#o, want 0o42", cpu.AC())
	}
}

func TestIOTDispatchToUnregisteredIsNoOp(t *testing.T) {
	cpu := NewCPU(16)
	cpu.SetAC(7)
	cpu.execute(instr(classIOT, false, false, 0) | (0o30 << 3))
	if cpu.AC() != 7 {
		t.Errorf("AC = %#o, want unchanged 7", cpu.AC())
	}
}

func TestIOTRegisterReplacesOccupiedSlot(t *testing.T) {
	cpu := NewCPU(16)
	first := false
	second := false
	cpu.RegisterIOT(0o21, IOTFunc(func(c *CPU, instr int) { first = true }), "a")
	cpu.RegisterIOT(0o21, IOTFunc(func(c *CPU, instr int) { second = true }), "b")

	cpu.execute(instr(classIOT, false, false, 0) | (0o21 << 3))

	if first {
		t.Error("expected the first handler to have been replaced")
	}
	if !second {
		t.Error("expected the replacing handler to run")
	}
}

func TestIOTDeregisterOnlyRemovesOwnRegistration(t *testing.T) {
	cpu := NewCPU(16)
	called := false
	cpu.RegisterIOT(0o22, IOTFunc(func(c *CPU, instr int) { called = true }), "owner-b")

	cpu.DeregisterIOT(0o22, "owner-a") // not the current owner: no-op
	cpu.execute(instr(classIOT, false, false, 0) | (0o22 << 3))
	if !called {
		t.Error("deregister by a non-owner must not remove the registration")
	}

	called = false
	cpu.DeregisterIOT(0o22, "owner-b")
	cpu.execute(instr(classIOT, false, false, 0) | (0o22 << 3))
	if called {
		t.Error("deregister by the owner must remove the registration")
	}
}
