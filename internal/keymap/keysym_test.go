package keymap

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLookupName(t *testing.T) {
	tests := []struct {
		name string
		want uint32
	}{
		{"Backspace", XKBackSpace},
		{"Enter", XKReturn},
		{"Return", XKReturn},
		{"Escape", XKEscape},
		{"Esc", XKEscape},
		{"ArrowLeft", XKLeft},
		{"Left", XKLeft},
		{"Shift", XKShiftL},
		{"Shift_R", XKShiftR},
		{"AltGraph", XKISOLevel3Shift},
		{"OS", XKSuperL},
		{"F1", XKF1},
		{"F24", XKF24},
		{"KP_4", XKKP4},
		{"KP_Left", XKKPLeft},
		{"PrintScreen", XKPrint},
		{"AudioVolumeMute", XF86AudioMute},
	}

	for _, tt := range tests {
		got, err := LookupName(tt.name)
		if err != nil {
			t.Errorf("LookupName(%q) error: %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("LookupName(%q) = %#x, want %#x", tt.name, got, tt.want)
		}
	}
}

func TestLookupNameUnknown(t *testing.T) {
	_, err := LookupName("NoSuchKey")
	if !errors.Is(err, ErrUnknownKey) {
		t.Errorf("LookupName(NoSuchKey) error = %v, want ErrUnknownKey", err)
	}
}

func TestFromUnicode(t *testing.T) {
	tests := []struct {
		r    rune
		want uint32
	}{
		{'a', 0x61}, // ASCII maps directly
		{'Z', 0x5a},
		{' ', 0x20},
		{'~', 0x7e},
		{0xe9, 0xe9}, // Latin-1 maps directly
		{0xff, 0xff},
		{0x20ac, 0x0100_20ac}, // Euro sign goes through the offset range
		{0x4e2d, 0x0100_4e2d},
		{0x0218, XKScedilla}, // comma-below forms substitute to cedilla
		{0x0219, XKscedilla},
		{0x021a, XKTcedilla},
		{0x021b, XKtcedilla},
	}

	for _, tt := range tests {
		if got := FromUnicode(tt.r); got != tt.want {
			t.Errorf("FromUnicode(%#x) = %#x, want %#x", tt.r, got, tt.want)
		}
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overrides.yaml")
	content := `substitutions:
  - codepoint: 0x0259
    keysym: 0x01000259
  - codepoint: 0x0219
    keysym: 0x0219
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write overrides: %v", err)
	}
	t.Cleanup(func() {
		overrideMu.Lock()
		overrideTable = nil
		overrideMu.Unlock()
	})

	if err := LoadOverrides(path); err != nil {
		t.Fatalf("LoadOverrides: %v", err)
	}

	if got := FromUnicode(0x0259); got != 0x01000259 {
		t.Errorf("FromUnicode(schwa) = %#x, want 0x01000259", got)
	}
	// Overrides shadow the built-in table.
	if got := FromUnicode(0x0219); got != 0x0219 {
		t.Errorf("FromUnicode(0x0219) = %#x, want override value 0x0219", got)
	}
	// Built-ins without an override still apply.
	if got := FromUnicode(0x0218); got != XKScedilla {
		t.Errorf("FromUnicode(0x0218) = %#x, want %#x", got, XKScedilla)
	}
}

func TestLoadOverridesRejectsZeroEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	content := "substitutions:\n  - codepoint: 0\n    keysym: 0x61\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write overrides: %v", err)
	}
	if err := LoadOverrides(path); err == nil {
		t.Error("LoadOverrides accepted a zero codepoint")
	}
}

func TestLoadOverridesMissingFile(t *testing.T) {
	if err := LoadOverrides(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadOverrides succeeded on a missing file")
	}
}
