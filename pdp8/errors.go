package pdp8

import "github.com/pkg/errors"

// Sentinel errors. The core never panics; most failure paths return one
// of these, wrapped with context via github.com/pkg/errors so a caller
// can still errors.Is against the sentinel while getting a useful
// message. The magtape's unit-number checks (unit out of range, unit not
// configured) return plain errors that wrap no sentinel.
var (
	// ErrMemoryBounds is declared in memory.go, alongside the code that
	// raises it.

	// ErrDeviceAttach is returned when a device instance is Attach-ed to
	// a CPU a second time without an intervening Destroy.
	ErrDeviceAttach = errors.New("device attach error")

	// ErrMedia covers record/image/tape file I/O failures that are not
	// themselves parse errors (missing file, permission, short read).
	ErrMedia = errors.New("media error")

	// ErrWriteProtect names the write-protect violation kind. No function
	// in this package returns it: the magtape reports a WRITE to a
	// write-protected unit through the unit's error status bit.
	ErrWriteProtect = errors.New("write-protect violation")

	// ErrImageParse and ErrConfiguration are declared in srecord.go and
	// config.go respectively, alongside the parsers that raise them.
)
