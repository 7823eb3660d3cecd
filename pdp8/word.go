package pdp8

import (
	"strconv"

	"github.com/pkg/errors"
)

// WordMask keeps every accumulator/memory value within the native 12-bit
// PDP-8 word size.
const WordMask = 0o7777

// MemSize is the largest core memory the word-addressing scheme can reach.
const MemSize = 4096

// AutoIndexLow and AutoIndexHigh bound the eight memory locations
// (010-017 octal) that auto-increment when used as an indirect pointer.
const (
	AutoIndexLow  = 0o10
	AutoIndexHigh = 0o17
)

// maskWord truncates v to 12 bits, matching the mask-on-write rule for AC
// and memory everywhere in the core.
func maskWord(v int) int {
	return v & WordMask
}

// isAutoIndex reports whether addr is one of the eight auto-increment
// locations.
func isAutoIndex(addr int) bool {
	return addr >= AutoIndexLow && addr <= AutoIndexHigh
}

// ParseOctal parses a string of octal digits (no "0o" prefix required) into
// an int, rejecting anything that isn't a valid octal literal. The
// S-record, tape-image and config readers in this package do their own
// parsing and do not call it.
func ParseOctal(s string) (int, error) {
	v, err := strconv.ParseInt(s, 8, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid octal token %q", s)
	}
	return int(v), nil
}
