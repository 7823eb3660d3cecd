package pdp8

import (
	"bytes"
	"fmt"
)

// memRefMnemonic names the six memory-reference classes.
var memRefMnemonic = [6]string{"AND", "TAD", "ISZ", "DCA", "JMS", "JMP"}

// Disassemble renders every word from startAddr to endAddr (inclusive) as a
// best-effort PDP-8 mnemonic line, keyed by address. It is a host debug aid
// with no bearing on execution; a word that merely happens to look like an
// instruction is disassembled the same as a real one, since core memory
// carries no type tag.
func (cpu *CPU) Disassemble(startAddr, endAddr int) map[int]string {
	disassembly := make(map[int]string)

	size := cpu.mem.Size()
	for addr := startAddr; addr <= endAddr; addr++ {
		if size == 0 {
			break
		}
		word := cpu.mem.Read(addr % size)
		disassembly[addr] = disassembleWord(addr, word)
	}
	return disassembly
}

func disassembleWord(addr, word int) string {
	var line bytes.Buffer
	fmt.Fprintf(&line, "%04o: %04o  ", addr&WordMask, word)

	class := (word >> 9) & 0o7
	switch class {
	case classAND, classTAD, classISZ, classDCA, classJMS, classJMP:
		disassembleMemRef(&line, class, word)
	case classIOT:
		fmt.Fprintf(&line, "IOT %02o,%o", (word>>3)&0o77, word&0o7)
	case classOPR:
		disassembleOPR(&line, word)
	}
	return line.String()
}

func disassembleMemRef(line *bytes.Buffer, class, word int) {
	fmt.Fprintf(line, "%s", memRefMnemonic[class])
	if word&0o400 != 0 {
		line.WriteString(" I")
	}
	if word&0o200 != 0 {
		line.WriteString(" Z")
	}
	fmt.Fprintf(line, " %03o", word&0o177)
}

func disassembleOPR(line *bytes.Buffer, word int) {
	if word&0o400 == 0 {
		line.WriteString("OPR1")
		for _, bit := range []struct {
			mask int
			name string
		}{
			{0o200, "CLA"}, {0o100, "CLL"}, {0o40, "CMA"}, {0o20, "CML"},
			{0o10, "RAR"}, {0o4, "RAL"}, {0o2, "BSW/2"}, {0o1, "IAC"},
		} {
			if word&bit.mask != 0 {
				fmt.Fprintf(line, " %s", bit.name)
			}
		}
		return
	}

	line.WriteString("OPR2")
	for _, bit := range []struct {
		mask int
		name string
	}{
		{0o200, "CLA"}, {0o100, "SMA"}, {0o40, "SZA"}, {0o20, "SNL"},
		{0o10, "REV"}, {0o4, "OSR"}, {0o2, "HLT"},
	} {
		if word&bit.mask != 0 {
			fmt.Fprintf(line, " %s", bit.name)
		}
	}
}
