package pdp8

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrConfiguration wraps every failure to parse a pdp8.config file.
var ErrConfiguration = errors.New("configuration error")

// ConfigDevice is one `device NAME { ... }` block: a device name and its
// key/value parameters, in file order. Unknown keys are preserved here and
// it is the code consuming a ConfigDevice that decides which keys it
// understands; unrecognized keys are ignored by convention, not rejected
// here.
type ConfigDevice struct {
	Name   string
	Params []ConfigParam
}

// ConfigParam is one "key value" line inside a device block.
type ConfigParam struct {
	Key   string
	Value string
}

// Get returns the value of the first occurrence of key, if present.
func (d ConfigDevice) Get(key string) (string, bool) {
	for _, p := range d.Params {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// ParseConfig parses a pdp8.config device configuration file: a sequence
// of `device NAME { key value ... }` blocks. Blank lines and '#' comments
// are ignored everywhere, including inside a block.
func ParseConfig(text string) ([]ConfigDevice, error) {
	var devices []ConfigDevice
	var current *ConfigDevice

	for lineNo, rawLine := range strings.Split(text, "\n") {
		line := stripConfigComment(rawLine)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if current == nil {
			name, ok := parseDeviceHeader(line)
			if !ok {
				return nil, errors.Wrapf(ErrConfiguration, "line %d: expected a device block", lineNo+1)
			}
			current = &ConfigDevice{Name: name}
			continue
		}

		if line == "}" {
			devices = append(devices, *current)
			current = nil
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, errors.Wrapf(ErrConfiguration, "line %d: expected \"key value\"", lineNo+1)
		}
		current.Params = append(current.Params, ConfigParam{
			Key:   fields[0],
			Value: strings.Join(fields[1:], " "),
		})
	}

	if current != nil {
		return nil, errors.Wrapf(ErrConfiguration, "device %q: missing closing brace", current.Name)
	}
	return devices, nil
}

func stripConfigComment(line string) string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		return line[:i]
	}
	return line
}

// parseDeviceHeader recognizes "device NAME {" with arbitrary interior
// spacing.
func parseDeviceHeader(line string) (string, bool) {
	if !strings.HasSuffix(line, "{") {
		return "", false
	}
	head := strings.TrimSpace(strings.TrimSuffix(line, "{"))
	fields := strings.Fields(head)
	if len(fields) != 2 || fields[0] != "device" {
		return "", false
	}
	return fields[1], true
}
