// Package keyboard translates raw browser key events into the scancode and
// keysym pairs a remote console transport understands. The Resolver is a
// pure priority chain over the three key-identification schemes browsers
// have shipped; the Decoder is the per-session stateful layer that defers
// ambiguous events, tracks held keys and guarantees balanced down/up
// delivery.
package keyboard

// Location mirrors KeyboardEvent.location.
type Location int

const (
	LocationStandard Location = 0
	LocationLeft     Location = 1
	LocationRight    Location = 2
	LocationNumpad   Location = 3
)

// KeyEvent is one raw browser key event. Fields are optional to the degree
// browsers disagree: Code is absent on older engines, Key may hold either a
// modern key value or a legacy "U+XXXX" identifier, and the character codes
// are only delivered on composed (keypress) events.
type KeyEvent struct {
	Code     string   `json:"code,omitempty"`     // physical key, layout-independent
	Key      string   `json:"key,omitempty"`      // typed key value or legacy identifier
	CharCode rune     `json:"charCode,omitempty"` // Unicode character code, composed events only
	KeyCode  int      `json:"keyCode,omitempty"`  // legacy numeric code
	Location Location `json:"location,omitempty"`
	Shift    bool     `json:"shiftKey,omitempty"`
	Ctrl     bool     `json:"ctrlKey,omitempty"`
	Alt      bool     `json:"altKey,omitempty"`
	Meta     bool     `json:"metaKey,omitempty"`
	Down     bool     `json:"down"`
}

// ResolvedKey is a key event ready for the transport. USKeysym is only set
// for sessions in US-fallback mode and only when the physical position was
// resolvable.
type ResolvedKey struct {
	Scancode uint32
	Keysym   uint32
	USKeysym uint32
	Down     bool
}

// ModifierState carries the per-session toggles the browser cannot be
// trusted to report, plus the ledger of currently held keys. One instance
// per session; never shared.
type ModifierState struct {
	// CapsLock is inferred from letter case vs. Shift parity because
	// browsers do not expose the real toggle.
	CapsLock bool

	// VirtualNumLock defaults to on and is flipped by a synthetic Clear
	// key on keyboards without a physical NumLock.
	VirtualNumLock bool

	held map[uint32]uint32 // scancode → keysym recorded at press time
}

// NewModifierState returns a ModifierState with virtual NumLock engaged.
func NewModifierState() *ModifierState {
	return &ModifierState{
		VirtualNumLock: true,
		held:           make(map[uint32]uint32),
	}
}

// HeldCount reports how many keys are currently recorded as down.
func (m *ModifierState) HeldCount() int {
	return len(m.held)
}
