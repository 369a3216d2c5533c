package keyboard

import (
	"errors"
	"testing"

	"github.com/nutanixed/prism-vnc-proxy/internal/keymap"
)

func TestResolveDigitByCharCode(t *testing.T) {
	r := NewResolver(NewModifierState(), false)

	// A composed digit on the main row resolves by character code even
	// when the key value disagrees (AltGr layouts rewrite it).
	res, err := r.Resolve(KeyEvent{CharCode: '1', Key: "&", Code: "Digit1", Down: true})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Keysym != '1' {
		t.Errorf("keysym = %#x, want %#x", res.Keysym, '1')
	}
	if res.CapsLock != nil {
		t.Error("digit resolution must not infer CapsLock")
	}
}

func TestResolveDigitOnNumpadNotByCharCode(t *testing.T) {
	mods := NewModifierState()
	r := NewResolver(mods, false)

	// Numpad digits skip the character-code rung so the NumLock remap can
	// apply.
	mods.VirtualNumLock = false
	res, err := r.Resolve(KeyEvent{CharCode: '4', Key: "4", Location: LocationNumpad, Down: true})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Keysym != keymap.XKKPLeft {
		t.Errorf("keysym = %#x, want KP_Left %#x", res.Keysym, keymap.XKKPLeft)
	}
}

func TestResolveLetterInfersCapsLock(t *testing.T) {
	r := NewResolver(NewModifierState(), false)

	tests := []struct {
		char     rune
		shift    bool
		wantCaps bool
	}{
		{'a', false, false},
		{'A', true, false},
		{'A', false, true}, // upper without Shift: CapsLock on
		{'a', true, true},  // lower with Shift: CapsLock on
	}

	for _, tt := range tests {
		res, err := r.Resolve(KeyEvent{CharCode: tt.char, Shift: tt.shift, Down: true})
		if err != nil {
			t.Fatalf("Resolve(%q): %v", tt.char, err)
		}
		if res.Keysym != uint32(tt.char) {
			t.Errorf("Resolve(%q) keysym = %#x, want %#x", tt.char, res.Keysym, tt.char)
		}
		if res.CapsLock == nil {
			t.Fatalf("Resolve(%q) did not infer CapsLock", tt.char)
		}
		if *res.CapsLock != tt.wantCaps {
			t.Errorf("Resolve(%q, shift=%v) CapsLock = %v, want %v", tt.char, tt.shift, *res.CapsLock, tt.wantCaps)
		}
	}
}

func TestResolveLegacyUnicodeIdentifier(t *testing.T) {
	r := NewResolver(NewModifierState(), false)

	res, err := r.Resolve(KeyEvent{Key: "U+20AC", Down: true})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if want := uint32(0x0100_20ac); res.Keysym != want {
		t.Errorf("keysym = %#x, want %#x", res.Keysym, want)
	}
}

func TestResolveNamedKeys(t *testing.T) {
	r := NewResolver(NewModifierState(), false)

	tests := []struct {
		ev   KeyEvent
		want uint32
	}{
		{KeyEvent{Key: "Enter"}, keymap.XKReturn},
		{KeyEvent{Key: "ArrowUp"}, keymap.XKUp},
		{KeyEvent{Key: "Shift", Location: LocationLeft}, keymap.XKShiftL},
		{KeyEvent{Key: "Shift", Location: LocationRight}, keymap.XKShiftR},
		{KeyEvent{Key: "Control", Location: LocationRight}, keymap.XKControlR},
		{KeyEvent{Key: "Enter", Location: LocationNumpad}, keymap.XKKPEnter},
		{KeyEvent{Key: "é"}, 0xe9},
		{KeyEvent{Key: "ș"}, keymap.XKscedilla},
		{KeyEvent{Key: "Dead"}, uint32(' ')},
	}

	for _, tt := range tests {
		res, err := r.Resolve(tt.ev)
		if err != nil {
			t.Errorf("Resolve(%+v): %v", tt.ev, err)
			continue
		}
		if res.Keysym != tt.want {
			t.Errorf("Resolve(key=%q loc=%d) = %#x, want %#x", tt.ev.Key, tt.ev.Location, res.Keysym, tt.want)
		}
	}
}

func TestResolveNumpadHonorsVirtualNumLock(t *testing.T) {
	mods := NewModifierState()
	r := NewResolver(mods, false)

	ev := KeyEvent{Key: "8", Location: LocationNumpad, Down: true}

	res, err := r.Resolve(ev)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Keysym != keymap.XKKP8 {
		t.Errorf("NumLock on: keysym = %#x, want KP_8 %#x", res.Keysym, keymap.XKKP8)
	}

	mods.VirtualNumLock = false
	res, err = r.Resolve(ev)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Keysym != keymap.XKKPUp {
		t.Errorf("NumLock off: keysym = %#x, want KP_Up %#x", res.Keysym, keymap.XKKPUp)
	}
}

func TestResolveUnknown(t *testing.T) {
	r := NewResolver(NewModifierState(), false)

	if _, err := r.Resolve(KeyEvent{Down: true}); !errors.Is(err, keymap.ErrUnknownKey) {
		t.Errorf("empty event error = %v, want ErrUnknownKey", err)
	}
	if _, err := r.Resolve(KeyEvent{Key: "SomethingNovel", Down: true}); !errors.Is(err, keymap.ErrUnknownKey) {
		t.Errorf("unknown name error = %v, want ErrUnknownKey", err)
	}
}

func TestResolveUSFallback(t *testing.T) {
	r := NewResolver(NewModifierState(), true)

	// German layout: the key at the US bracket-left position types ü. The
	// fallback carries the US symbol for hypervisors that assume US.
	res, err := r.Resolve(KeyEvent{Key: "ü", Code: "BracketLeft", Down: true})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Keysym != 0xfc {
		t.Errorf("keysym = %#x, want 0xfc", res.Keysym)
	}
	if res.USKeysym != '[' {
		t.Errorf("USKeysym = %#x, want %#x", res.USKeysym, '[')
	}

	// Without a physical position there is nothing to fall back to.
	res, err = r.Resolve(KeyEvent{Key: "ü", Down: true})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.USKeysym != 0 {
		t.Errorf("USKeysym = %#x, want 0 without a code", res.USKeysym)
	}
}

func TestResolveDeadKeyWithUSFallback(t *testing.T) {
	r := NewResolver(NewModifierState(), true)

	// A dead key at a known physical position: the placeholder keysym goes
	// out, and the US-equivalent symbol rides along from the scancode.
	res, err := r.Resolve(KeyEvent{Key: "Dead", Code: "BracketLeft", Down: true})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Keysym != uint32(' ') {
		t.Errorf("keysym = %#x, want space placeholder", res.Keysym)
	}
	if res.USKeysym != '[' {
		t.Errorf("USKeysym = %#x, want %#x", res.USKeysym, '[')
	}
}

func TestResolveUSFallbackDisabled(t *testing.T) {
	r := NewResolver(NewModifierState(), false)

	res, err := r.Resolve(KeyEvent{Key: "ü", Code: "BracketLeft", Down: true})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.USKeysym != 0 {
		t.Errorf("USKeysym = %#x, want 0 when fallback is off", res.USKeysym)
	}
}
