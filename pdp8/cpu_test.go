package pdp8

import "testing"

func instr(class, indirect, page, offset int) int {
	v := class << 9
	if indirect {
		v |= 0o400
	}
	if page {
		v |= 0o200
	}
	return v | (offset & 0o177)
}

func TestTADTogglesLinkOnlyOnOverflow(t *testing.T) {
	cpu := NewCPU(16)
	cpu.SetAC(0o7777)
	_ = cpu.WriteMem(1, 1) // operand
	cpu.execute(instr(classTAD, false, false, 1))
	if cpu.AC() != 0 {
		t.Errorf("AC = %#o, want 0", cpu.AC())
	}
	if cpu.Link() != 1 {
		t.Errorf("Link = %d, want 1 after overflow", cpu.Link())
	}

	cpu.SetLink(0)
	cpu.SetAC(1)
	_ = cpu.WriteMem(2, 1)
	cpu.execute(instr(classTAD, false, false, 2))
	if cpu.AC() != 2 {
		t.Errorf("AC = %#o, want 2", cpu.AC())
	}
	if cpu.Link() != 0 {
		t.Errorf("Link = %d, want 0 (no overflow)", cpu.Link())
	}
}

func TestISZSkipsIffResultIsZero(t *testing.T) {
	cpu := NewCPU(16)
	_ = cpu.WriteMem(5, 0o7777)
	cpu.execute(instr(classISZ, false, false, 5))
	if !cpu.skip {
		t.Error("expected skip after ISZ wraps to zero")
	}
	if got := cpu.ReadMem(5); got != 0 {
		t.Errorf("ReadMem(5) = %#o, want 0", got)
	}

	cpu.skip = false
	_ = cpu.WriteMem(6, 1)
	cpu.execute(instr(classISZ, false, false, 6))
	if cpu.skip {
		t.Error("expected no skip after ISZ increments to a nonzero value")
	}
}

func TestEffectiveAddressAutoIncrement(t *testing.T) {
	cpu := NewCPU(16)
	_ = cpu.WriteMem(0o10, 0o77)

	ea := cpu.effectiveAddress(instr(classAND, true, false, 0o10))

	if ea != 0o100 {
		t.Errorf("effective address = %#o, want 0o100", ea)
	}
	if got := cpu.ReadMem(0o10); got != 0o100 {
		t.Errorf("pointer word = %#o, want 0o100 (pre-state + 1)", got)
	}
}

func TestEffectiveAddressIndirectNonAutoIndexDoesNotMutate(t *testing.T) {
	cpu := NewCPU(32)
	_ = cpu.WriteMem(0o20, 0o31)

	ea := cpu.effectiveAddress(instr(classAND, true, false, 0o20))

	if ea != 0o31 {
		t.Errorf("effective address = %#o, want 0o31", ea)
	}
	if got := cpu.ReadMem(0o20); got != 0o31 {
		t.Errorf("pointer word mutated to %#o, want unchanged 0o31", got)
	}
}

func TestEffectiveAddressPageSelection(t *testing.T) {
	cpu := NewCPU(MemSize)
	cpu.SetPC(0o0543)

	ea := cpu.effectiveAddress(instr(classAND, false, true, 0o20))
	if ea != (0o0400 | 0o20) {
		t.Errorf("current-page address = %#o, want %#o", ea, 0o0400|0o20)
	}

	ea = cpu.effectiveAddress(instr(classAND, false, false, 0o20))
	if ea != 0o20 {
		t.Errorf("page-zero address = %#o, want 0o20", ea)
	}
}

func TestSkipLatchIsAlwaysFalseAtFetchBoundary(t *testing.T) {
	cpu := NewCPU(16)
	_ = cpu.WriteMem(0, instr(classISZ, false, false, 5)) // will skip
	_ = cpu.WriteMem(5, 0o7777)
	_ = cpu.WriteMem(2, 0) // AND 0: harmless

	cpu.Step()
	if cpu.skip {
		t.Error("skip latch must be false once Step returns")
	}
}

func TestHaltAndClearHalt(t *testing.T) {
	cpu := NewCPU(16)
	cpu.Halt()
	if cpu.Step() != 0 {
		t.Error("Step should refuse to run while halted")
	}
	cpu.ClearHalt()
	if cpu.Step() != 1 {
		t.Error("Step should run once ClearHalt is called")
	}
}

func TestUnregisteredIOTIsANoOpExceptPC(t *testing.T) {
	cpu := NewCPU(16)
	cpu.SetAC(0o123)
	cpu.SetLink(1)
	pcBefore := cpu.PC()

	_ = cpu.WriteMem(pcBefore, instr(classIOT, false, false, 0)|(0o17<<3))
	cpu.Step()

	if cpu.AC() != 0o123 {
		t.Errorf("AC changed by unregistered IOT: %#o", cpu.AC())
	}
	if cpu.Link() != 1 {
		t.Errorf("Link changed by unregistered IOT: %d", cpu.Link())
	}
	if cpu.PC() != pcBefore+1 {
		t.Errorf("PC = %#o, want %#o", cpu.PC(), pcBefore+1)
	}
}

func TestOPRGroup1Order(t *testing.T) {
	cpu := NewCPU(16)
	cpu.SetAC(0o123)
	cpu.SetLink(0)
	// CLA CMA IAC: 0o200|0o40|0o1 = 0o241
	cpu.execute(0o7000 | 0o200 | 0o40 | 0o1)
	if cpu.AC() != 0 || cpu.Link() != 1 {
		t.Errorf("AC=%#o Link=%d, want AC=0 Link=1 (CLA, CMA gives 7777, IAC carries into link)", cpu.AC(), cpu.Link())
	}
}

func TestOPRGroup1RotateTwice(t *testing.T) {
	cpu := NewCPU(16)
	cpu.SetLink(0)
	cpu.SetAC(1)
	// RAL RAL (rotate left twice): 0o4|0o2 = 0o6
	cpu.execute(0o7000 | 0o4 | 0o2)
	if cpu.AC() != 4 || cpu.Link() != 0 {
		t.Errorf("AC=%#o Link=%d, want AC=4 Link=0", cpu.AC(), cpu.Link())
	}
}

func TestOPRGroup1BothRotateBitsIsNoRotate(t *testing.T) {
	cpu := NewCPU(16)
	cpu.SetAC(0o1234)
	cpu.SetLink(1)
	cpu.execute(0o7000 | 0o10 | 0o4) // RAR|RAL, neither fires
	if cpu.AC() != 0o1234 || cpu.Link() != 1 {
		t.Errorf("AC=%#o Link=%d, want unchanged", cpu.AC(), cpu.Link())
	}
}

func TestOPRGroup2SkipIsOROfPredicates(t *testing.T) {
	cpu := NewCPU(16)
	cpu.SetAC(0) // SZA should be true
	cpu.execute(0o7400 | 0o40)
	if !cpu.skip {
		t.Error("expected skip: SZA with AC=0")
	}
}

func TestOPRGroup2ReversedSense(t *testing.T) {
	cpu := NewCPU(16)
	cpu.SetAC(1) // SZA false
	cpu.execute(0o7400 | 0o40 | 0o10) // SZA, reversed
	if !cpu.skip {
		t.Error("expected skip: reversed SZA with AC!=0")
	}
}

func TestOPRGroup2HLT(t *testing.T) {
	cpu := NewCPU(16)
	cpu.execute(0o7400 | 0o2)
	if !cpu.IsHalted() {
		t.Error("expected HLT to set the halt latch")
	}
}

func TestRunStopsAtHalt(t *testing.T) {
	cpu := NewCPU(16)
	_ = cpu.WriteMem(0, 0o7402) // HLT
	executed := cpu.Run(100)
	if executed != 1 {
		t.Errorf("executed = %d, want 1", executed)
	}
	if !cpu.IsHalted() {
		t.Error("expected the CPU to be halted")
	}
}

func TestRunRespectsMaxInstructions(t *testing.T) {
	cpu := NewCPU(16)
	_ = cpu.WriteMem(0, 0o7000) // NOP (OPR group 1, all bits clear)
	executed := cpu.Run(5)
	if executed != 5 {
		t.Errorf("executed = %d, want 5", executed)
	}
}
