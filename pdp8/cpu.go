// Package pdp8 implements the core of a PDP-8 minicomputer: the 12-bit
// word-addressed CPU, its instruction semantics, the IOT device-dispatch
// machinery, and three peripherals (KL8E console, paper-tape reader, and
// a multi-unit magtape controller) that exercise it.
package pdp8

import "github.com/pkg/errors"

// instruction-class values, the top 3 bits of every 12-bit word.
const (
	classAND = iota
	classTAD
	classISZ
	classDCA
	classJMS
	classJMP
	classIOT
	classOPR
)

// CPU is a PDP-8 engine: registers, the memory it exclusively owns, and
// the device registry it dispatches IOT instructions through. Concurrent
// calls from multiple goroutines are undefined behaviour; callers must
// serialize their own access.
type CPU struct {
	mem *Memory

	pc   int
	ac   int
	link int // 0 or 1
	sw   int // switch register, host-visible via OSR only

	halted bool
	skip   bool // private latch, always false at fetch time

	interruptsEnabled bool
	interruptPending  bool

	iot iotTable
}

// NewCPU creates a CPU with memWords of core memory (clamped to at most
// MemSize). The CPU owns this memory exclusively until Destroy.
func NewCPU(memWords int) *CPU {
	return &CPU{mem: NewMemory(memWords)}
}

// Destroy releases the CPU's resources. Devices must be destroyed by the
// host before the CPU they are attached to; Destroy itself clears the
// device registry so any dangling handler references are dropped.
func (cpu *CPU) Destroy() {
	cpu.iot = iotTable{}
}

// Reset returns the CPU's registers and latches to power-up state. Loaded
// memory contents are left untouched — reloading a program is a separate,
// explicit operation.
func (cpu *CPU) Reset() {
	cpu.pc = 0
	cpu.ac = 0
	cpu.link = 0
	cpu.halted = false
	cpu.skip = false
	cpu.interruptsEnabled = false
	cpu.interruptPending = false
}

// MemSize returns the configured core memory size in words.
func (cpu *CPU) MemSize() int {
	return cpu.mem.Size()
}

// ReadMem reads one word of core memory.
func (cpu *CPU) ReadMem(addr int) int {
	return cpu.mem.Read(addr)
}

// WriteMem writes one word of core memory, masked to 12 bits. An
// out-of-range address is rejected and leaves memory untouched.
func (cpu *CPU) WriteMem(addr, val int) error {
	if err := cpu.mem.Write(addr, val); err != nil {
		return errors.Wrap(err, "write_mem")
	}
	return nil
}

// PC/AC/Link/Switch accessors — the host-facing register surface.
func (cpu *CPU) PC() int         { return cpu.pc }
func (cpu *CPU) SetPC(v int)     { cpu.pc = v & WordMask }
func (cpu *CPU) AC() int         { return cpu.ac }
func (cpu *CPU) SetAC(v int)     { cpu.ac = maskWord(v) }
func (cpu *CPU) Link() int       { return cpu.link }
func (cpu *CPU) SetLink(v int)   { cpu.link = v & 1 }
func (cpu *CPU) Switch() int     { return cpu.sw }
func (cpu *CPU) SetSwitch(v int) { cpu.sw = maskWord(v) }
func (cpu *CPU) IsHalted() bool  { return cpu.halted }
func (cpu *CPU) ClearHalt()      { cpu.halted = false }
func (cpu *CPU) Halt()           { cpu.halted = true }
func (cpu *CPU) RequestSkip()    { cpu.skip = true }

// RegisterIOT installs handler as the device owning code (0..63). owner
// identifies the caller for a later DeregisterIOT and should normally be
// the device instance itself. Registering an occupied code replaces the
// previous handler.
func (cpu *CPU) RegisterIOT(code int, handler IOTHandler, owner interface{}) {
	cpu.iot.register(code, handler, owner)
}

// DeregisterIOT clears code's registration if it still belongs to owner.
// Called by a device's Destroy so it can never be invoked again after the
// host tears it down.
func (cpu *CPU) DeregisterIOT(code int, owner interface{}) {
	cpu.iot.deregister(code, owner)
}

// Step executes exactly one instruction cycle. It returns 1 on success, 0
// if the CPU refused to run (halted, or memory has zero words).
func (cpu *CPU) Step() int {
	if cpu.halted {
		return 0
	}
	if cpu.mem.Size() == 0 {
		return 0
	}

	cpu.maybeHandleInterrupt()

	instruction := cpu.mem.Read(cpu.pc)
	cpu.pc = (cpu.pc + 1) % cpu.mem.Size()

	cpu.execute(instruction)

	if cpu.skip {
		cpu.pc = (cpu.pc + 1) % cpu.mem.Size()
		cpu.skip = false
	}
	return 1
}

// Run steps repeatedly until the halt latch is set, max instructions have
// executed, or Step refuses to run. It returns the number of instructions
// actually executed.
func (cpu *CPU) Run(max int) int {
	executed := 0
	for executed < max {
		if cpu.Step() == 0 {
			break
		}
		executed++
		if cpu.halted {
			break
		}
	}
	return executed
}

// execute dispatches a fetched instruction to its class handler.
func (cpu *CPU) execute(instruction int) {
	switch (instruction >> 9) & 0o7 {
	case classAND:
		cpu.execAND(instruction)
	case classTAD:
		cpu.execTAD(instruction)
	case classISZ:
		cpu.execISZ(instruction)
	case classDCA:
		cpu.execDCA(instruction)
	case classJMS:
		cpu.execJMS(instruction)
	case classJMP:
		cpu.execJMP(instruction)
	case classIOT:
		cpu.execIOT(instruction)
	case classOPR:
		cpu.execOPR(instruction)
	}
}

// effectiveAddress resolves the 12-bit address a memory-reference
// instruction operates on: page selection, then indirection with
// auto-increment over locations 010-017.
func (cpu *CPU) effectiveAddress(instruction int) int {
	offset := instruction & 0o177
	base := 0
	if instruction&0o200 != 0 {
		base = cpu.pc & 0o7600
	}
	ea := base | offset

	if instruction&0o400 != 0 {
		if isAutoIndex(ea) {
			incremented := (cpu.mem.Read(ea) + 1) & WordMask
			_ = cpu.mem.Write(ea, incremented)
			ea = incremented
		} else {
			ea = cpu.mem.Read(ea) & WordMask
		}
	}
	return ea
}

func (cpu *CPU) execAND(instruction int) {
	ea := cpu.effectiveAddress(instruction)
	cpu.ac = cpu.ac & cpu.mem.Read(ea)
}

func (cpu *CPU) execTAD(instruction int) {
	ea := cpu.effectiveAddress(instruction)
	sum := cpu.ac + cpu.mem.Read(ea)
	if sum&0o10000 != 0 {
		cpu.link ^= 1
	}
	cpu.ac = sum & WordMask
}

func (cpu *CPU) execISZ(instruction int) {
	ea := cpu.effectiveAddress(instruction)
	v := (cpu.mem.Read(ea) + 1) & WordMask
	_ = cpu.mem.Write(ea, v)
	if v == 0 {
		cpu.skip = true
	}
}

func (cpu *CPU) execDCA(instruction int) {
	ea := cpu.effectiveAddress(instruction)
	_ = cpu.mem.Write(ea, cpu.ac)
	cpu.ac = 0
}

func (cpu *CPU) execJMS(instruction int) {
	ea := cpu.effectiveAddress(instruction)
	_ = cpu.mem.Write(ea, cpu.pc)
	cpu.pc = (ea + 1) % cpu.mem.Size()
}

func (cpu *CPU) execJMP(instruction int) {
	ea := cpu.effectiveAddress(instruction)
	cpu.pc = ea % cpu.mem.Size()
}

// execIOT dispatches device code 0 (interrupt control) internally and
// every other code through the pluggable registry.
func (cpu *CPU) execIOT(instruction int) {
	code := (instruction >> 3) & 0o77
	if code == 0 {
		cpu.execInterruptControl(instruction)
		return
	}
	cpu.iot.dispatch(cpu, instruction)
}

func (cpu *CPU) execOPR(instruction int) {
	if instruction&0o400 == 0 {
		cpu.execOPRGroup1(instruction)
	} else {
		cpu.execOPRGroup2(instruction)
	}
}

// execOPRGroup1 applies the fixed-order micro-ops of operate group 1:
// CLA, CLL, CMA, CML, then rotate/byte-swap, then IAC.
func (cpu *CPU) execOPRGroup1(instruction int) {
	if instruction&0o200 != 0 { // CLA
		cpu.ac = 0
	}
	if instruction&0o100 != 0 { // CLL
		cpu.link = 0
	}
	if instruction&0o40 != 0 { // CMA
		cpu.ac = cpu.ac ^ WordMask
	}
	if instruction&0o20 != 0 { // CML
		cpu.link ^= 1
	}

	rotateTwice := instruction&0o2 != 0
	rotateRight := instruction&0o10 != 0
	rotateLeft := instruction&0o4 != 0

	switch {
	case rotateTwice && !rotateRight && !rotateLeft:
		cpu.byteSwap()
	case rotateRight != rotateLeft: // exactly one of the two set
		times := 1
		if rotateTwice {
			times = 2
		}
		for i := 0; i < times; i++ {
			if rotateRight {
				cpu.rotateRightOnce()
			} else {
				cpu.rotateLeftOnce()
			}
		}
	}
	// both rotate bits set, or neither (without the bare rotate-twice
	// case above): no rotation occurs.

	if instruction&0o1 != 0 { // IAC
		cpu.incrementLinkAC()
	}
}

// execOPRGroup2 evaluates the skip predicates and the OSR/HLT micro-ops of
// operate group 2. ION/IOFF live in the IOT device-0 space, not here
// (see interrupt.go).
func (cpu *CPU) execOPRGroup2(instruction int) {
	if instruction&0o200 != 0 { // CLA
		cpu.ac = 0
	}

	sma := instruction&0o100 != 0
	sza := instruction&0o40 != 0
	snl := instruction&0o20 != 0
	reverseSense := instruction&0o10 != 0

	var any bool
	if sma && cpu.ac&0o4000 != 0 {
		any = true
	}
	if sza && cpu.ac == 0 {
		any = true
	}
	if snl && cpu.link != 0 {
		any = true
	}

	skip := any
	if reverseSense {
		skip = !any
	}
	if skip {
		cpu.skip = true
	}

	if instruction&0o4 != 0 { // OSR
		cpu.ac = maskWord(cpu.ac | cpu.sw)
	}
	if instruction&0o2 != 0 { // HLT
		cpu.halted = true
	}
}

// concat13 returns the 13-bit (link:AC) value rotates operate on.
func (cpu *CPU) concat13() int {
	return (cpu.link << 12) | cpu.ac
}

// setFrom13 splits a 13-bit value back into link and AC.
func (cpu *CPU) setFrom13(v int) {
	v &= 0o17777
	cpu.link = (v >> 12) & 1
	cpu.ac = v & WordMask
}

func (cpu *CPU) rotateRightOnce() {
	v := cpu.concat13()
	cpu.setFrom13(((v & 1) << 12) | (v >> 1))
}

func (cpu *CPU) rotateLeftOnce() {
	v := cpu.concat13()
	cpu.setFrom13((v << 1) | (v >> 12))
}

// byteSwap exchanges AC's low and high 6-bit halves; the link is
// untouched.
func (cpu *CPU) byteSwap() {
	lo := cpu.ac & 0o77
	hi := (cpu.ac >> 6) & 0o77
	cpu.ac = (lo << 6) | hi
}

// incrementLinkAC adds one to the 13-bit (link:AC) value, carrying into
// link (the IAC micro-op).
func (cpu *CPU) incrementLinkAC() {
	cpu.setFrom13(cpu.concat13() + 1)
}
