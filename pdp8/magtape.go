package pdp8

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
)

// Magtape record files carry the ".tap" extension used by the reference
// magtape tooling this format is modeled on.
const recordFileExt = ".tap"

// sentinelWord terminates a well-formed record file.
const sentinelWord = 0xFFFF

// Magtape IOT device codes. The function field of 06740 ("SENSE") only
// has room for 3 bits, too few to carry GO/READ/WRITE/SKIP/SENSE as five
// independent flags on one code, so this implementation splits the 0o07x
// family across three codes: GO/READ/WRITE share 0o70 as an OR-able 3-bit
// function field (their combined effects OR together within one IOT),
// SKIP is 0o71, and SENSE is 0o74, matching its full instruction word
// 0o740. See DESIGN.md for the full rationale.
const (
	magtapeControlCode = 0o70 // GO | READ | WRITE
	magtapeSkipCode    = 0o71
	magtapeSenseCode   = 0o74

	bitMTGo    = 0o1
	bitMTRead  = 0o2
	bitMTWrite = 0o4
)

// MagtapeStatus is the SENSE-instruction's view of one unit, also exposed
// directly to the host via GetStatus.
type MagtapeStatus struct {
	Ready         bool
	Error         bool
	EndOfRecord   bool
	EndOfTape     bool
	WriteProtect  bool
	RecordIndex   int
	RecordCount   int
}

// magtapeUnit is one configured (or unconfigured) tape drive.
type magtapeUnit struct {
	configured     bool
	path           string
	writeProtected bool

	records     []string // record filenames, sorted lexicographically
	recordIndex int      // -1 when no current record

	readWords []int // decoded words of the current record, loaded lazily
	cursor    int   // position within readWords

	writing  bool
	writeBuf []int

	errorFlag   bool
	endOfRecord bool
	endOfTape   bool
}

// Magtape is the multi-unit mag-tape controller.
type Magtape struct {
	cpu   *CPU
	units []magtapeUnit
	active int // index of the unit GO most recently selected, -1 if none
}

// NewMagtape creates a controller with unitCount unconfigured units.
func NewMagtape(unitCount int) *Magtape {
	return &Magtape{units: make([]magtapeUnit, unitCount), active: -1}
}

// Attach registers the controller's IOT handlers on cpu. Attaching an
// already-attached controller is a device-attach error; call Destroy first
// to move it to a different CPU.
func (m *Magtape) Attach(cpu *CPU) error {
	if m.cpu != nil {
		return errors.Wrap(ErrDeviceAttach, "magtape already attached")
	}
	m.cpu = cpu
	cpu.RegisterIOT(magtapeControlCode, IOTFunc(m.handleControl), m)
	cpu.RegisterIOT(magtapeSkipCode, IOTFunc(m.handleSkip), m)
	cpu.RegisterIOT(magtapeSenseCode, IOTFunc(m.handleSense), m)
	return nil
}

// Destroy deregisters the controller's handlers.
func (m *Magtape) Destroy() {
	if m.cpu == nil {
		return
	}
	m.cpu.DeregisterIOT(magtapeControlCode, m)
	m.cpu.DeregisterIOT(magtapeSkipCode, m)
	m.cpu.DeregisterIOT(magtapeSenseCode, m)
	m.cpu = nil
}

// ConfigureUnit scans path for record files and attaches them to unit.
// Records are ordered lexicographically by filename.
func (m *Magtape) ConfigureUnit(unit int, path string, writeProtected bool) error {
	if unit < 0 || unit >= len(m.units) {
		return errors.Errorf("magtape: unit %d out of range", unit)
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return errors.Wrapf(ErrMedia, "configure unit %d: %s", unit, err)
	}

	var records []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if filepath.Ext(e.Name()) == recordFileExt {
			records = append(records, e.Name())
		}
	}
	sort.Strings(records)

	u := magtapeUnit{
		configured:     true,
		path:           path,
		writeProtected: writeProtected,
		records:        records,
	}
	if len(records) > 0 {
		u.recordIndex = 0
	} else {
		u.recordIndex = -1
		u.endOfTape = true
	}
	m.units[unit] = u
	return nil
}

// GetStatus reports unit's derived status bits to the host.
func (m *Magtape) GetStatus(unit int) MagtapeStatus {
	if unit < 0 || unit >= len(m.units) {
		return MagtapeStatus{}
	}
	u := &m.units[unit]
	return MagtapeStatus{
		Ready:        m.unitReady(u),
		Error:        u.errorFlag,
		EndOfRecord:  u.endOfRecord,
		EndOfTape:    u.endOfTape,
		WriteProtect: u.writeProtected,
		RecordIndex:  u.recordIndex,
		RecordCount:  len(u.records),
	}
}

func (m *Magtape) unitReady(u *magtapeUnit) bool {
	return u.configured && !u.endOfTape && !u.errorFlag
}

// recordPath returns the path to unit's current record file.
func (u *magtapeUnit) recordPath() string {
	return filepath.Join(u.path, u.records[u.recordIndex])
}

// loadCurrentRecord decodes the current record's words into readWords if
// not already loaded.
func (u *magtapeUnit) loadCurrentRecord() error {
	if u.recordIndex < 0 || u.recordIndex >= len(u.records) {
		return errors.New("magtape: no current record")
	}
	words, _, err := readRecordFile(u.recordPath())
	if err != nil {
		return err
	}
	u.readWords = words
	u.cursor = 0
	u.endOfRecord = len(words) == 0
	return nil
}

// handleControl implements GO/READ/WRITE, ORed within one instruction, in
// that order.
func (m *Magtape) handleControl(cpu *CPU, instruction int) {
	bits := instruction & 0o7

	if bits&bitMTGo != 0 {
		m.doGo(cpu)
	}
	if bits&bitMTRead != 0 {
		m.doRead(cpu)
	}
	if bits&bitMTWrite != 0 {
		m.doWrite(cpu)
	}
}

func (m *Magtape) doGo(cpu *CPU) {
	unit := cpu.AC() & 0o7
	if unit >= len(m.units) {
		return
	}
	m.active = unit
	u := &m.units[unit]
	if !u.configured {
		return
	}
	u.errorFlag = false

	if u.endOfRecord && u.recordIndex >= 0 {
		next := u.recordIndex + 1
		if next < len(u.records) {
			u.recordIndex = next
			u.endOfRecord = false
			u.readWords = nil
			u.cursor = 0
		} else {
			u.endOfTape = true
		}
	}
	if u.writing {
		u.writing = false
	}
}

func (m *Magtape) doRead(cpu *CPU) {
	u := m.activeUnit()
	if u == nil {
		return
	}
	if u.endOfRecord {
		cpu.SetAC(0)
		u.errorFlag = true
		return
	}
	if u.readWords == nil {
		if err := u.loadCurrentRecord(); err != nil {
			u.errorFlag = true
			cpu.SetAC(0)
			return
		}
	}
	if u.cursor >= len(u.readWords) {
		u.endOfRecord = true
		cpu.SetAC(0)
		return
	}
	cpu.SetAC(u.readWords[u.cursor])
	u.cursor++
	if u.cursor >= len(u.readWords) {
		u.endOfRecord = true
	}
}

func (m *Magtape) doWrite(cpu *CPU) {
	u := m.activeUnit()
	if u == nil {
		return
	}
	if u.writeProtected {
		u.errorFlag = true
		return
	}
	u.writing = true
	u.writeBuf = append(u.writeBuf, cpu.AC())
}

func (m *Magtape) handleSkip(cpu *CPU, instruction int) {
	u := m.activeUnit()
	if u != nil && m.unitReady(u) {
		cpu.RequestSkip()
	}
}

func (m *Magtape) handleSense(cpu *CPU, instruction int) {
	u := m.activeUnit()
	if u == nil {
		cpu.SetAC(0)
		return
	}
	status := 0
	if m.unitReady(u) {
		status |= 0o1
	}
	if u.errorFlag {
		status |= 0o2
	}
	if u.endOfRecord {
		status |= 0o4
	}
	if u.endOfTape {
		status |= 0o10
	}
	if u.writeProtected {
		status |= 0o20
	}
	cpu.SetAC(status)
}

func (m *Magtape) activeUnit() *magtapeUnit {
	if m.active < 0 || m.active >= len(m.units) {
		return nil
	}
	u := &m.units[m.active]
	if !u.configured {
		return nil
	}
	return u
}

// ForceNewRecord seals unit's in-progress write (if any) into a new record
// file: a length header, the accumulated words, and the sentinel. It is a
// no-op if the unit has never been written to since configuration.
func (m *Magtape) ForceNewRecord(unit int) error {
	if unit < 0 || unit >= len(m.units) {
		return errors.Errorf("magtape: unit %d out of range", unit)
	}
	u := &m.units[unit]
	if !u.configured {
		return errors.Errorf("magtape: unit %d not configured", unit)
	}
	if !u.writing && len(u.writeBuf) == 0 {
		return nil
	}

	name := nextRecordName(u.records)
	path := filepath.Join(u.path, name)
	if err := writeRecordFile(path, u.writeBuf); err != nil {
		return errors.Wrapf(ErrMedia, "force_new_record unit %d: %s", unit, err)
	}

	sealed := u.writeBuf
	u.records = append(u.records, name)
	sort.Strings(u.records)
	u.writing = false
	u.writeBuf = nil
	u.endOfTape = false

	// Position the unit at the start of the record it just sealed, so the
	// written data is immediately readable without a further GO.
	for i, r := range u.records {
		if r == name {
			u.recordIndex = i
			break
		}
	}
	u.readWords = sealed
	u.cursor = 0
	u.endOfRecord = len(sealed) == 0
	return nil
}

// nextRecordName names the new record from the number of existing records
// (record000000.tap, record000001.tap, ...). The name sorts after every
// existing record only when those follow the same scheme without gaps; it
// is not checked against the names already present.
func nextRecordName(existing []string) string {
	return recordNameForIndex(len(existing))
}

func recordNameForIndex(n int) string {
	const digits = "0123456789"
	// zero-padded to 6 digits; plenty for any realistic reel.
	buf := make([]byte, 6)
	for i := len(buf) - 1; i >= 0; i-- {
		buf[i] = digits[n%10]
		n /= 10
	}
	return "record" + string(buf) + recordFileExt
}

// readRecordFile decodes a magtape record file: a 16-bit
// little-endian length header, that many 16-bit little-endian words
// (masked to 12 bits), then a 0xFFFF sentinel. partial reports whether
// the file ended before the sentinel was found.
func readRecordFile(path string) (words []int, partial bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, errors.Wrapf(ErrMedia, "read %s: %s", path, err)
	}
	if len(data) < 2 {
		return nil, false, errors.Wrapf(ErrMedia, "magtape: %s too short for a header", path)
	}

	declared := int(binary.LittleEndian.Uint16(data[:2])) & WordMask
	offset := 2
	for i := 0; i < declared; i++ {
		if offset+2 > len(data) {
			return words, true, nil
		}
		w := int(binary.LittleEndian.Uint16(data[offset:offset+2])) & WordMask
		words = append(words, w)
		offset += 2
	}

	if offset+2 > len(data) {
		return words, true, nil
	}
	sentinel := binary.LittleEndian.Uint16(data[offset : offset+2])
	if sentinel != sentinelWord {
		return words, true, nil
	}
	return words, false, nil
}

// writeRecordFile encodes words as a complete, sealed record file.
func writeRecordFile(path string, words []int) error {
	buf := make([]byte, 0, 2+2*len(words)+2)
	header := make([]byte, 2)
	binary.LittleEndian.PutUint16(header, uint16(len(words)&WordMask))
	buf = append(buf, header...)

	for _, w := range words {
		word := make([]byte, 2)
		binary.LittleEndian.PutUint16(word, uint16(w&WordMask))
		buf = append(buf, word...)
	}

	sentinel := make([]byte, 2)
	binary.LittleEndian.PutUint16(sentinel, sentinelWord)
	buf = append(buf, sentinel...)

	return os.WriteFile(path, buf, 0o644)
}
