package pdp8

import "testing"

func TestParseConfigSingleDevice(t *testing.T) {
	text := `
# sample configuration
device kl8e_console {
    echo true
    baud 110
}
`
	devices, err := ParseConfig(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("len(devices) = %d, want 1", len(devices))
	}
	if devices[0].Name != "kl8e_console" {
		t.Errorf("Name = %q, want kl8e_console", devices[0].Name)
	}
	if v, ok := devices[0].Get("baud"); !ok || v != "110" {
		t.Errorf("Get(baud) = (%q, %v), want (110, true)", v, ok)
	}
}

func TestParseConfigMultipleDevicesAndUnknownKeysPreserved(t *testing.T) {
	text := `
device paper_tape {
    path /tmp/tape.img
}
device magtape_unit_0 {
    path /tmp/unit0
    write_protect true
    some_future_key 42
}
`
	devices, err := ParseConfig(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("len(devices) = %d, want 2", len(devices))
	}
	if _, ok := devices[1].Get("some_future_key"); !ok {
		t.Error("expected an unrecognized key to still be preserved in Params")
	}
}

func TestParseConfigValueWithSpacesIsJoined(t *testing.T) {
	text := "device line_printer {\n    banner Hello World\n}\n"
	devices, err := ParseConfig(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, _ := devices[0].Get("banner"); v != "Hello World" {
		t.Errorf("Get(banner) = %q, want \"Hello World\"", v)
	}
}

func TestParseConfigUnterminatedBlockIsAnError(t *testing.T) {
	_, err := ParseConfig("device watchdog {\n    timeout 5\n")
	if err == nil {
		t.Error("expected an error for a block missing its closing brace")
	}
}

func TestParseConfigGarbageOutsideBlockIsAnError(t *testing.T) {
	_, err := ParseConfig("not a device block\n")
	if err == nil {
		t.Error("expected an error for a line that is not a device header")
	}
}
