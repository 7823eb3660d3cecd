package pdp8

import "github.com/pkg/errors"

// PaperTapeBlock is one labelled block of a loaded tape image: a 9-bit
// octal label and its ordered words.
type PaperTapeBlock struct {
	Label int
	Words []int
}

// Paper-tape device code and microcode bits. The family is 0o067x; the
// low three bits select SELECT/READ/SKIP-if-ready.
const (
	paperTapeDeviceCode = 0o67

	bitPTSkip   = 0o1 // skip if ready
	bitPTSelect = 0o2 // select block from AC
	bitPTRead   = 0o4 // read current word into AC, advance
)

// PaperTape is the labelled-block paper-tape reader.
type PaperTape struct {
	cpu *CPU

	blocks  []PaperTapeBlock
	byLabel map[int]int // block Label -> index into blocks

	selected int // index into blocks, or -1 if AC named no loaded label
	cursor   int
}

// NewPaperTape creates a detached paper-tape reader with no image loaded.
func NewPaperTape() *PaperTape {
	return &PaperTape{}
}

// Attach registers the reader's IOT handler on cpu. Attaching an
// already-attached reader is a device-attach error; call Destroy first to
// move it to a different CPU.
func (p *PaperTape) Attach(cpu *CPU) error {
	if p.cpu != nil {
		return errors.Wrap(ErrDeviceAttach, "paper tape already attached")
	}
	p.cpu = cpu
	cpu.RegisterIOT(paperTapeDeviceCode, IOTFunc(p.handle), p)
	return nil
}

// Destroy deregisters the reader's handler.
func (p *PaperTape) Destroy() {
	if p.cpu == nil {
		return
	}
	p.cpu.DeregisterIOT(paperTapeDeviceCode, p)
	p.cpu = nil
}

// Load installs a new image, replacing any previously loaded one, and
// resets selection to block 0.
func (p *PaperTape) Load(blocks []PaperTapeBlock) {
	p.blocks = blocks
	p.byLabel = make(map[int]int, len(blocks))
	for i, b := range blocks {
		p.byLabel[b.Label] = i
	}
	p.selected = 0
	p.cursor = 0
}

// ready reports whether the selected block has more words to read.
func (p *PaperTape) ready() bool {
	if p.selected < 0 || p.selected >= len(p.blocks) {
		return false
	}
	return p.cursor < len(p.blocks[p.selected].Words)
}

// handle implements SELECT/READ/SKIP-if-ready. The combined effects occur
// in the fixed order {select, read, skip-if-ready}.
func (p *PaperTape) handle(cpu *CPU, instruction int) {
	bits := instruction & 0o7

	if bits&bitPTSelect != 0 {
		if idx, ok := p.byLabel[cpu.AC()&WordMask]; ok {
			p.selected = idx
		} else {
			p.selected = -1
		}
		p.cursor = 0
	}
	if bits&bitPTRead != 0 {
		if p.ready() {
			block := p.blocks[p.selected]
			cpu.SetAC(block.Words[p.cursor])
			p.cursor++
		} else {
			cpu.SetAC(0)
		}
	}
	if bits&bitPTSkip != 0 && p.ready() {
		cpu.RequestSkip()
	}
}

// Ready reports, to the host, whether the current selection has more
// words available — the same predicate the SKIP microcode consults.
func (p *PaperTape) Ready() bool {
	return p.ready()
}

// Selected returns the currently selected block index.
func (p *PaperTape) Selected() int {
	return p.selected
}

// Cursor returns the read cursor within the selected block.
func (p *PaperTape) Cursor() int {
	return p.cursor
}
