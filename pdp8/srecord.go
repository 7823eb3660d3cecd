package pdp8

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrImageParse wraps every failure to make sense of a loader image.
var ErrImageParse = errors.New("image parse error")

// SRecordImage is the pure result of parsing an S-record stream: a list of
// (address, word) pairs in file order and an optional start address from a
// trailing S7/S8/S9 record. Parsing never touches a CPU; Install does,
// keeping file parsing separate from installing the result into a
// running machine.
type SRecordImage struct {
	Words     []AddressedWord
	StartAddr int
	HasStart  bool
}

// AddressedWord is one decoded (address, 12-bit value) pair.
type AddressedWord struct {
	Address int
	Value   int
}

// ParseSRecord parses a Motorola S-record stream addressed to 12-bit PDP-8
// words: each data byte pair packs one word little-endian (the first byte
// is the low 8 bits, the second contributes the high 4 bits and its upper
// nibble must be zero), and the record's byte address is converted to a
// word address by dividing by 2.
func ParseSRecord(text string) (SRecordImage, error) {
	var img SRecordImage

	for lineNo, rawLine := range strings.Split(text, "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "S") {
			return SRecordImage{}, errors.Wrapf(ErrImageParse, "line %d: missing S prefix", lineNo+1)
		}

		rec, err := parseSRecordLine(line)
		if err != nil {
			return SRecordImage{}, errors.Wrapf(ErrImageParse, "line %d: %s", lineNo+1, err)
		}
		if rec == nil {
			continue // S0 header or unsupported record type, ignored
		}
		if rec.isStart {
			img.StartAddr = rec.address / 2
			img.HasStart = true
			continue
		}

		addr := rec.address / 2
		for i := 0; i+1 < len(rec.data); i += 2 {
			lo := rec.data[i]
			hi := rec.data[i+1]
			if hi&0xF0 != 0 {
				return SRecordImage{}, errors.Wrapf(ErrImageParse,
					"line %d: data byte %#02x exceeds a 12-bit word", lineNo+1, hi)
			}
			word := (int(hi) << 8) | int(lo)
			img.Words = append(img.Words, AddressedWord{Address: addr, Value: word & WordMask})
			addr++
		}
	}

	return img, nil
}

type sRecordLine struct {
	address int
	data    []byte
	isStart bool
}

// parseSRecordLine decodes one S-record. S1/S2/S3 carry data; S7/S8/S9
// carry a start address; everything else is ignored.
func parseSRecordLine(line string) (*sRecordLine, error) {
	if len(line) < 4 {
		return nil, errors.New("record too short")
	}
	recType := line[1]

	body, err := hex.DecodeString(line[2:])
	if err != nil {
		return nil, errors.Wrap(err, "invalid hex payload")
	}
	if len(body) < 1 {
		return nil, errors.New("missing byte count")
	}
	byteCount := int(body[0])
	if len(body) != byteCount+1 {
		return nil, errors.Errorf("byte count %d does not match record length", byteCount)
	}
	payload := body[1 : len(body)-1] // drop byte count and checksum
	checksum := body[len(body)-1]
	if !validSRecordChecksum(body[:len(body)-1], checksum) {
		return nil, errors.New("checksum mismatch")
	}

	addrWidth, isStart, isData := sRecordAddressWidth(recType)
	if !isData && !isStart {
		return nil, nil
	}
	if len(payload) < addrWidth {
		return nil, errors.New("payload shorter than address field")
	}

	address := 0
	for i := 0; i < addrWidth; i++ {
		address = (address << 8) | int(payload[i])
	}
	data := payload[addrWidth:]

	return &sRecordLine{address: address, data: data, isStart: isStart}, nil
}

// sRecordAddressWidth reports the address-field width (in bytes) and
// record class for a record type byte.
func sRecordAddressWidth(recType byte) (width int, isStart, isData bool) {
	switch recType {
	case '1':
		return 2, false, true
	case '2':
		return 3, false, true
	case '3':
		return 4, false, true
	case '7':
		return 4, true, false
	case '8':
		return 3, true, false
	case '9':
		return 2, true, false
	default:
		return 0, false, false
	}
}

func validSRecordChecksum(bytesWithoutChecksum []byte, checksum byte) bool {
	sum := 0
	for _, b := range bytesWithoutChecksum {
		sum += int(b)
	}
	return byte(^sum) == checksum
}

// Install writes an already-parsed image into cpu's memory, and sets PC:
// to the start address if the image carried one, otherwise to the lowest
// loaded address. Installation stops at the first out-of-bounds word and
// returns its error; words already written stay written and PC is left
// unchanged.
func (img SRecordImage) Install(cpu *CPU) error {
	for _, w := range img.Words {
		if err := cpu.WriteMem(w.Address, w.Value); err != nil {
			return errors.Wrapf(err, "install word at %s", octal(w.Address))
		}
	}
	switch {
	case img.HasStart:
		cpu.SetPC(img.StartAddr)
	case len(img.Words) > 0:
		lowest := img.Words[0].Address
		for _, w := range img.Words[1:] {
			if w.Address < lowest {
				lowest = w.Address
			}
		}
		cpu.SetPC(lowest)
	}
	return nil
}

// EncodeSRecord renders img back into S-record text: one S1 record per
// word, followed by an S9 termination record carrying the start address
// if img has one. EncodeSRecord composed with ParseSRecord is the identity
// on any image whose addresses and words fit in 12 bits.
func EncodeSRecord(img SRecordImage) string {
	var lines []string
	for _, w := range img.Words {
		byteAddr := (w.Address * 2) & 0xFFFF
		data := []byte{byte(w.Value & 0xFF), byte((w.Value >> 8) & 0x0F)}
		lines = append(lines, encodeSRecordLine('1', byteAddr, data))
	}
	if img.HasStart {
		byteAddr := (img.StartAddr * 2) & 0xFFFF
		lines = append(lines, encodeSRecordLine('9', byteAddr, nil))
	}
	return strings.Join(lines, "\n")
}

// encodeSRecordLine builds one S-record line with a 2-byte address field,
// the given data payload, and a trailing one's-complement checksum.
func encodeSRecordLine(recType byte, addr16 int, data []byte) string {
	body := []byte{byte(addr16 >> 8), byte(addr16)}
	body = append(body, data...)
	body = append([]byte{byte(len(body) + 1)}, body...) // +1 for the checksum byte

	sum := 0
	for _, b := range body {
		sum += int(b)
	}
	body = append(body, byte(^sum))

	return fmt.Sprintf("S%c%s", recType, strings.ToUpper(hex.EncodeToString(body)))
}

func octal(v int) string {
	return "0o" + strconv.FormatInt(int64(v), 8)
}
