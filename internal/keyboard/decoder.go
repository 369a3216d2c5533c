// decoder.go is the stateful half of the input pipeline. One Decoder per
// console session: it defers letter keydowns until the composed event
// reveals their case, keeps the held-key ledger, folds the virtual NumLock
// toggle, and synthesizes the key-ups that keep the remote side from ever
// seeing a stuck key.

package keyboard

import (
	"log"
	"sync"

	"github.com/nutanixed/prism-vnc-proxy/internal/keymap"
)

// EmitFunc receives resolved events in input order. Implementations
// forward them to the console transport.
type EmitFunc func(ResolvedKey)

// Decoder consumes raw down/up events and emits balanced, resolved key
// events. Safe for concurrent use: the session's read loop feeds events
// while teardown paths (liveness expiry, server shutdown) call ReleaseAll
// from their own goroutines, and both touch the held-key ledger.
type Decoder struct {
	mu       sync.Mutex
	mods     *ModifierState
	resolver *Resolver
	emit     EmitFunc

	// pending holds a letter keydown whose case only the following
	// composed event can settle. Two-phase hand-off, not asynchrony.
	pending *KeyEvent
}

func NewDecoder(mods *ModifierState, resolver *Resolver, emit EmitFunc) *Decoder {
	return &Decoder{mods: mods, resolver: resolver, emit: emit}
}

// HandleEvent processes one raw event. It returns false when the event was
// deferred and the caller should wait for the composed event; true in every
// other case, including drops (resolution failures are non-fatal and
// consume the event).
func (d *Decoder) HandleEvent(ev KeyEvent) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	// A composed event completes a pending letter keydown: the character
	// code carries the final case, the deferred event carries the physical
	// position.
	if d.pending != nil && ev.CharCode != 0 {
		merged := *d.pending
		merged.CharCode = ev.CharCode
		merged.Shift = merged.Shift || ev.Shift
		d.pending = nil
		d.process(merged)
		return true
	}

	// Any other event while a deferral is outstanding flushes the pending
	// down first so ordering and balance hold.
	if d.pending != nil {
		flush := *d.pending
		d.pending = nil
		d.process(flush)
	}

	if ev.Down && d.shouldDefer(ev) {
		pend := ev
		d.pending = &pend
		return false
	}

	d.process(ev)
	return true
}

// shouldDefer reports whether a keydown must wait for the composed event.
// Only letters qualify, and only when no modifier besides Shift is held;
// with Ctrl or Alt down no composed event will follow.
func (d *Decoder) shouldDefer(ev KeyEvent) bool {
	if ev.CharCode != 0 || ev.Ctrl || ev.Alt || ev.Meta {
		return false
	}
	if len(ev.Key) != 1 {
		return false
	}
	return isASCIILetter(rune(ev.Key[0]))
}

func (d *Decoder) process(ev KeyEvent) {
	res, err := d.resolver.Resolve(ev)

	// The virtual NumLock toggle is consumed here, never forwarded. Fired
	// by the Clear key on keyboards without a physical NumLock.
	if err == nil && res.Keysym == keymap.XKClear {
		if ev.Down {
			d.mods.VirtualNumLock = !d.mods.VirtualNumLock
			log.Printf("keyboard: virtual NumLock now %v", d.mods.VirtualNumLock)
		}
		return
	}

	if res.CapsLock != nil {
		d.mods.CapsLock = *res.CapsLock
	}

	scancode := keymap.Scancode(ev.Code)
	keysym := res.Keysym

	// Each side can stand in for the other: a missing scancode is derived
	// from the keysym's US position, a missing keysym becomes the space
	// placeholder so the protocol stream stays well-formed.
	if scancode == 0 && keysym != 0 {
		scancode = keymap.ScancodeForKeysym(keysym)
	}
	if keysym == 0 && scancode != 0 {
		keysym = keymap.FromUnicode(deadKeyPlaceholder)
	}
	if scancode == 0 && keysym == 0 {
		log.Printf("keyboard: dropping unresolvable event key=%q code=%q down=%v: %v",
			ev.Key, ev.Code, ev.Down, err)
		return
	}

	if ev.Down {
		if scancode != 0 {
			d.mods.held[scancode] = keysym
		}
		d.emit(ResolvedKey{Scancode: scancode, Keysym: keysym, USKeysym: res.USKeysym, Down: true})
		return
	}

	// Key up: prefer the keysym recorded at press time so a NumLock or
	// CapsLock flip mid-hold still releases the symbol that went down.
	// Keys pressed before the decoder attached are forwarded unledgered.
	if pressed, ok := d.mods.held[scancode]; ok {
		keysym = pressed
		delete(d.mods.held, scancode)
	}
	d.emit(ResolvedKey{Scancode: scancode, Keysym: keysym, USKeysym: res.USKeysym, Down: false})
}

// ReleaseAll synthesizes a key-up for every key still recorded as held and
// clears the ledger. Call on focus loss and at session end.
func (d *Decoder) ReleaseAll() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pending != nil {
		// A deferred down never reached the transport; discard it rather
		// than releasing a key that was never pressed remotely.
		d.pending = nil
	}
	for scancode, keysym := range d.mods.held {
		d.emit(ResolvedKey{Scancode: scancode, Keysym: keysym, Down: false})
	}
	d.mods.held = make(map[uint32]uint32)
}
