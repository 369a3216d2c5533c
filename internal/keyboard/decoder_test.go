package keyboard

import (
	"sync"
	"testing"

	"github.com/nutanixed/prism-vnc-proxy/internal/keymap"
)

type recorder struct {
	keys []ResolvedKey
}

func (r *recorder) emit(k ResolvedKey) {
	r.keys = append(r.keys, k)
}

func newTestDecoder(usFallback bool) (*Decoder, *ModifierState, *recorder) {
	mods := NewModifierState()
	rec := &recorder{}
	dec := NewDecoder(mods, NewResolver(mods, usFallback), rec.emit)
	return dec, mods, rec
}

func TestDecoderSimpleKey(t *testing.T) {
	dec, _, rec := newTestDecoder(false)

	if !dec.HandleEvent(KeyEvent{Key: "Enter", Code: "Enter", Down: true}) {
		t.Error("Enter keydown must not be deferred")
	}
	dec.HandleEvent(KeyEvent{Key: "Enter", Code: "Enter", Down: false})

	if len(rec.keys) != 2 {
		t.Fatalf("emitted %d events, want 2", len(rec.keys))
	}
	for i, want := range []bool{true, false} {
		k := rec.keys[i]
		if k.Keysym != keymap.XKReturn || k.Scancode != 0x1c || k.Down != want {
			t.Errorf("event %d = %+v, want keysym=%#x scancode=0x1c down=%v", i, k, keymap.XKReturn, want)
		}
	}
}

func TestDecoderDefersLetterUntilComposed(t *testing.T) {
	dec, mods, rec := newTestDecoder(false)

	// Letter keydown with no character code: wait for the composed event.
	if dec.HandleEvent(KeyEvent{Key: "a", Code: "KeyA", Down: true}) {
		t.Error("letter keydown without a character code must be deferred")
	}
	if len(rec.keys) != 0 {
		t.Fatalf("deferred event reached the transport: %+v", rec.keys)
	}

	// The composed event settles the case: upper without Shift means
	// CapsLock is on.
	dec.HandleEvent(KeyEvent{CharCode: 'A', Down: true})

	if len(rec.keys) != 1 {
		t.Fatalf("emitted %d events, want 1", len(rec.keys))
	}
	got := rec.keys[0]
	if got.Keysym != 'A' || got.Scancode != 0x1e || !got.Down {
		t.Errorf("merged event = %+v, want keysym='A' scancode=0x1e down", got)
	}
	if !mods.CapsLock {
		t.Error("CapsLock inference not persisted")
	}
}

func TestDecoderFlushesPendingOnOtherEvent(t *testing.T) {
	dec, _, rec := newTestDecoder(false)

	dec.HandleEvent(KeyEvent{Key: "a", Code: "KeyA", Down: true})
	// No composed event follows (e.g. the guest swallowed it); the next
	// unrelated event flushes the pending down first.
	dec.HandleEvent(KeyEvent{Key: "Enter", Code: "Enter", Down: true})

	if len(rec.keys) != 2 {
		t.Fatalf("emitted %d events, want 2", len(rec.keys))
	}
	if rec.keys[0].Keysym != 'a' {
		t.Errorf("first event keysym = %#x, want 'a'", rec.keys[0].Keysym)
	}
	if rec.keys[1].Keysym != keymap.XKReturn {
		t.Errorf("second event keysym = %#x, want Return", rec.keys[1].Keysym)
	}
}

func TestDecoderNoDeferWithModifiers(t *testing.T) {
	dec, _, rec := newTestDecoder(false)

	// Ctrl+A produces no composed event; the down must go out immediately.
	if !dec.HandleEvent(KeyEvent{Key: "a", Code: "KeyA", Ctrl: true, Down: true}) {
		t.Error("Ctrl+letter must not be deferred")
	}
	if len(rec.keys) != 1 {
		t.Fatalf("emitted %d events, want 1", len(rec.keys))
	}
}

func TestDecoderClearTogglesVirtualNumLock(t *testing.T) {
	dec, mods, rec := newTestDecoder(false)

	if !mods.VirtualNumLock {
		t.Fatal("virtual NumLock must start engaged")
	}

	dec.HandleEvent(KeyEvent{Key: "Clear", Down: true})
	dec.HandleEvent(KeyEvent{Key: "Clear", Down: false})

	if mods.VirtualNumLock {
		t.Error("Clear keydown did not toggle virtual NumLock off")
	}
	if len(rec.keys) != 0 {
		t.Errorf("Clear was forwarded: %+v", rec.keys)
	}

	dec.HandleEvent(KeyEvent{Key: "Clear", Down: true})
	if !mods.VirtualNumLock {
		t.Error("second Clear did not toggle virtual NumLock back on")
	}
}

func TestDecoderKeyUpUsesPressTimeKeysym(t *testing.T) {
	dec, mods, rec := newTestDecoder(false)

	// Numpad 4 goes down with NumLock on: KP_4.
	dec.HandleEvent(KeyEvent{Key: "4", Code: "Numpad4", Location: LocationNumpad, Down: true})
	// NumLock flips mid-hold.
	mods.VirtualNumLock = false
	// The up resolves to KP_Left now, but must release KP_4.
	dec.HandleEvent(KeyEvent{Key: "ArrowLeft", Code: "Numpad4", Location: LocationNumpad, Down: false})

	if len(rec.keys) != 2 {
		t.Fatalf("emitted %d events, want 2", len(rec.keys))
	}
	if rec.keys[0].Keysym != keymap.XKKP4 {
		t.Errorf("down keysym = %#x, want KP_4", rec.keys[0].Keysym)
	}
	if rec.keys[1].Keysym != keymap.XKKP4 {
		t.Errorf("up keysym = %#x, want press-time KP_4", rec.keys[1].Keysym)
	}
	if mods.HeldCount() != 0 {
		t.Errorf("held count = %d after balanced down/up, want 0", mods.HeldCount())
	}
}

func TestDecoderDigitRow(t *testing.T) {
	dec, mods, rec := newTestDecoder(false)

	dec.HandleEvent(KeyEvent{CharCode: '1', Key: "1", Code: "Digit1", Down: true})
	if len(rec.keys) != 1 {
		t.Fatalf("emitted %d events, want 1", len(rec.keys))
	}
	if got := rec.keys[0]; got.Scancode != 0x02 || got.Keysym != '1' || !got.Down {
		t.Errorf("down event = %+v, want scancode=0x02 keysym='1'", got)
	}
	if mods.HeldCount() != 1 {
		t.Fatalf("held count = %d, want 1", mods.HeldCount())
	}

	dec.HandleEvent(KeyEvent{Key: "1", Code: "Digit1", Down: false})
	if mods.HeldCount() != 0 {
		t.Errorf("held count = %d after key up, want 0", mods.HeldCount())
	}
}

func TestDecoderForwardsUnledgeredKeyUp(t *testing.T) {
	dec, _, rec := newTestDecoder(false)

	// A key pressed before the session attached still gets its release
	// forwarded.
	dec.HandleEvent(KeyEvent{Key: "Enter", Code: "Enter", Down: false})

	if len(rec.keys) != 1 {
		t.Fatalf("emitted %d events, want 1", len(rec.keys))
	}
	if rec.keys[0].Down {
		t.Error("forwarded event must be a key up")
	}
}

func TestDecoderDropsUnresolvable(t *testing.T) {
	dec, _, rec := newTestDecoder(false)

	if !dec.HandleEvent(KeyEvent{Key: "Unidentified", Down: true}) {
		t.Error("drops still consume the event")
	}
	if len(rec.keys) != 0 {
		t.Errorf("unresolvable event was forwarded: %+v", rec.keys)
	}
}

func TestReleaseAll(t *testing.T) {
	dec, mods, rec := newTestDecoder(false)

	dec.HandleEvent(KeyEvent{Key: "Shift", Code: "ShiftLeft", Location: LocationLeft, Down: true})
	dec.HandleEvent(KeyEvent{CharCode: 'A', Shift: true, Code: "KeyA", Down: true})
	dec.HandleEvent(KeyEvent{Key: "Enter", Code: "Enter", Down: true})

	downs := len(rec.keys)
	if downs != 3 {
		t.Fatalf("emitted %d downs, want 3", downs)
	}

	dec.ReleaseAll()

	ups := rec.keys[downs:]
	if len(ups) != 3 {
		t.Fatalf("ReleaseAll emitted %d ups, want 3", len(ups))
	}
	released := map[uint32]bool{}
	for _, k := range ups {
		if k.Down {
			t.Errorf("ReleaseAll emitted a down: %+v", k)
		}
		released[k.Keysym] = true
	}
	for _, want := range []uint32{keymap.XKShiftL, 'A', keymap.XKReturn} {
		if !released[want] {
			t.Errorf("keysym %#x not released", want)
		}
	}
	if mods.HeldCount() != 0 {
		t.Errorf("held count = %d after ReleaseAll, want 0", mods.HeldCount())
	}
}

func TestReleaseAllDiscardsPending(t *testing.T) {
	dec, _, rec := newTestDecoder(false)

	dec.HandleEvent(KeyEvent{Key: "a", Code: "KeyA", Down: true})
	dec.ReleaseAll()

	// The deferred down never reached the transport, so no release either.
	if len(rec.keys) != 0 {
		t.Errorf("emitted %d events, want 0", len(rec.keys))
	}

	// And the pending slot is clear: the next event is not merged.
	dec.HandleEvent(KeyEvent{Key: "Enter", Code: "Enter", Down: true})
	if len(rec.keys) != 1 || rec.keys[0].Keysym != keymap.XKReturn {
		t.Errorf("post-release event mishandled: %+v", rec.keys)
	}
}

func TestDecoderConcurrentReleaseAll(t *testing.T) {
	// The session's read loop handles events while the liveness poll's
	// teardown can call ReleaseAll from its own goroutine; both walk the
	// held ledger, so the decoder must serialize them.
	mods := NewModifierState()
	dec := NewDecoder(mods, NewResolver(mods, false), func(ResolvedKey) {})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			dec.HandleEvent(KeyEvent{Key: "a", Code: "KeyA", CharCode: 'a', Down: true})
			dec.HandleEvent(KeyEvent{Key: "a", Code: "KeyA", Down: false})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			dec.ReleaseAll()
		}
	}()
	wg.Wait()

	dec.ReleaseAll()
	if mods.HeldCount() != 0 {
		t.Errorf("held count = %d after final ReleaseAll, want 0", mods.HeldCount())
	}
}
