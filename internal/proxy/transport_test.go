package proxy

import (
	"bytes"
	"testing"
)

func TestRFBKeycode(t *testing.T) {
	tests := []struct {
		scancode uint32
		want     uint32
	}{
		{0x1e, 0x1e}, // plain key passes through
		{0x01, 0x01},
		{0xe04b, 0xcb}, // extended prefix folds into the high bit
		{0xe01c, 0x9c},
		{0xe05b, 0xdb},
		{0xe11d, 0x9d}, // Pause collapses like the 0xe0 set
	}

	for _, tt := range tests {
		if got := rfbKeycode(tt.scancode); got != tt.want {
			t.Errorf("rfbKeycode(%#x) = %#x, want %#x", tt.scancode, got, tt.want)
		}
	}
}

func TestEncodeKeyEventWithScancode(t *testing.T) {
	got := encodeKeyEvent(0x1e, 'a', true)

	want := []byte{
		// KeyEvent: type, down, padding, keysym
		msgKeyEvent, 1, 0, 0, 0, 0, 0, 0x61,
		// QEMU extended: type, submessage, down, keysym, keycode
		msgQEMUExt, qemuSubKeyEvent, 0, 1, 0, 0, 0, 0x61, 0, 0, 0, 0x1e,
	}
	if !bytes.Equal(got, want) {
		t.Errorf("encoded = % x, want % x", got, want)
	}
}

func TestEncodeKeyEventKeyUp(t *testing.T) {
	got := encodeKeyEvent(0x1e, 'a', false)
	if got[1] != 0 {
		t.Errorf("down flag = %d, want 0", got[1])
	}
	if got[10] != 0 || got[11] != 0 {
		t.Errorf("extended down flag = % x, want 0", got[10:12])
	}
}

func TestEncodeKeyEventWithoutScancode(t *testing.T) {
	// No physical position: only the classic KeyEvent goes out.
	got := encodeKeyEvent(0, 0x0100_20ac, true)
	if len(got) != 8 {
		t.Fatalf("encoded %d bytes, want 8", len(got))
	}
	want := []byte{msgKeyEvent, 1, 0, 0, 0x01, 0x00, 0x20, 0xac}
	if !bytes.Equal(got, want) {
		t.Errorf("encoded = % x, want % x", got, want)
	}
}

func TestEncodeKeyEventExtendedScancode(t *testing.T) {
	got := encodeKeyEvent(0xe04b, 0xff51, true)
	if len(got) != 20 {
		t.Fatalf("encoded %d bytes, want 20", len(got))
	}
	// The wire keycode carries the folded form, not the raw 0xe04b.
	if keycode := uint32(got[16])<<24 | uint32(got[17])<<16 | uint32(got[18])<<8 | uint32(got[19]); keycode != 0xcb {
		t.Errorf("wire keycode = %#x, want 0xcb", keycode)
	}
}

func TestSendPasswordDiscardsValue(t *testing.T) {
	// Cookie auth covers the Prism path; the challenge answer is
	// acknowledged without touching the connection.
	tr := NewVNCTransport(nil, "9f3a2f0e-1111-2222-3333-444455556666")
	if err := tr.SendPassword("secret"); err != nil {
		t.Fatalf("SendPassword: %v", err)
	}
}
