// scancode.go maps physical key identifiers (KeyboardEvent.code) to XT Set-1
// scancodes as hypervisor consoles expect them. Extended keys carry the 0xe0
// prefix in the high byte. A second table gives the US-layout character at
// each physical position, used to compute a fallback keysym for hypervisors
// that mis-translate locale keyboards.

package keymap

// codeScancodes maps KeyboardEvent.code to an XT Set-1 scancode.
var codeScancodes = map[string]uint32{
	"Escape":         0x01,
	"Digit1":         0x02,
	"Digit2":         0x03,
	"Digit3":         0x04,
	"Digit4":         0x05,
	"Digit5":         0x06,
	"Digit6":         0x07,
	"Digit7":         0x08,
	"Digit8":         0x09,
	"Digit9":         0x0a,
	"Digit0":         0x0b,
	"Minus":          0x0c,
	"Equal":          0x0d,
	"Backspace":      0x0e,
	"Tab":            0x0f,
	"KeyQ":           0x10,
	"KeyW":           0x11,
	"KeyE":           0x12,
	"KeyR":           0x13,
	"KeyT":           0x14,
	"KeyY":           0x15,
	"KeyU":           0x16,
	"KeyI":           0x17,
	"KeyO":           0x18,
	"KeyP":           0x19,
	"BracketLeft":    0x1a,
	"BracketRight":   0x1b,
	"Enter":          0x1c,
	"ControlLeft":    0x1d,
	"KeyA":           0x1e,
	"KeyS":           0x1f,
	"KeyD":           0x20,
	"KeyF":           0x21,
	"KeyG":           0x22,
	"KeyH":           0x23,
	"KeyJ":           0x24,
	"KeyK":           0x25,
	"KeyL":           0x26,
	"Semicolon":      0x27,
	"Quote":          0x28,
	"Backquote":      0x29,
	"ShiftLeft":      0x2a,
	"Backslash":      0x2b,
	"KeyZ":           0x2c,
	"KeyX":           0x2d,
	"KeyC":           0x2e,
	"KeyV":           0x2f,
	"KeyB":           0x30,
	"KeyN":           0x31,
	"KeyM":           0x32,
	"Comma":          0x33,
	"Period":         0x34,
	"Slash":          0x35,
	"ShiftRight":     0x36,
	"NumpadMultiply": 0x37,
	"AltLeft":        0x38,
	"Space":          0x39,
	"CapsLock":       0x3a,
	"F1":             0x3b,
	"F2":             0x3c,
	"F3":             0x3d,
	"F4":             0x3e,
	"F5":             0x3f,
	"F6":             0x40,
	"F7":             0x41,
	"F8":             0x42,
	"F9":             0x43,
	"F10":            0x44,
	"NumLock":        0x45,
	"ScrollLock":     0x46,
	"Numpad7":        0x47,
	"Numpad8":        0x48,
	"Numpad9":        0x49,
	"NumpadSubtract": 0x4a,
	"Numpad4":        0x4b,
	"Numpad5":        0x4c,
	"Numpad6":        0x4d,
	"NumpadAdd":      0x4e,
	"Numpad1":        0x4f,
	"Numpad2":        0x50,
	"Numpad3":        0x51,
	"Numpad0":        0x52,
	"NumpadDecimal":  0x53,
	"IntlBackslash":  0x56,
	"F11":            0x57,
	"F12":            0x58,
	"NumpadEqual":    0x59,
	"F13":            0x64,
	"F14":            0x65,
	"F15":            0x66,
	"F16":            0x67,
	"F17":            0x68,
	"F18":            0x69,
	"F19":            0x6a,
	"F20":            0x6b,
	"F21":            0x6c,
	"F22":            0x6d,
	"F23":            0x6e,
	"KanaMode":       0x70,
	"IntlRo":         0x73,
	"F24":            0x76,
	"Convert":        0x79,
	"NonConvert":     0x7b,
	"IntlYen":        0x7d,
	"NumpadComma":    0x7e,

	// Extended keys (0xe0 prefix)
	"MediaTrackPrevious": 0xe010,
	"MediaTrackNext":     0xe019,
	"NumpadEnter":        0xe01c,
	"ControlRight":       0xe01d,
	"AudioVolumeMute":    0xe020,
	"LaunchApp2":         0xe021,
	"MediaPlayPause":     0xe022,
	"MediaStop":          0xe024,
	"AudioVolumeDown":    0xe02e,
	"AudioVolumeUp":      0xe030,
	"BrowserHome":        0xe032,
	"NumpadDivide":       0xe035,
	"PrintScreen":        0xe037,
	"AltRight":           0xe038,
	"Home":               0xe047,
	"ArrowUp":            0xe048,
	"PageUp":             0xe049,
	"ArrowLeft":          0xe04b,
	"ArrowRight":         0xe04d,
	"End":                0xe04f,
	"ArrowDown":          0xe050,
	"PageDown":           0xe051,
	"Insert":             0xe052,
	"Delete":             0xe053,
	"MetaLeft":           0xe05b,
	"OSLeft":             0xe05b,
	"MetaRight":          0xe05c,
	"OSRight":            0xe05c,
	"ContextMenu":        0xe05d,
	"Power":              0xe05e,
	"Sleep":              0xe05f,
	"WakeUp":             0xe063,
	"BrowserSearch":      0xe065,
	"BrowserFavorites":   0xe066,
	"BrowserRefresh":     0xe067,
	"BrowserStop":        0xe068,
	"BrowserForward":     0xe069,
	"BrowserBack":        0xe06a,
	"LaunchApp1":         0xe06b,
	"LaunchMail":         0xe06c,
	"MediaSelect":        0xe06d,

	// Pause is a 0xe1-prefixed sequence on the wire; consoles accept the
	// 0xe11d marker used by QEMU.
	"Pause": 0xe11d,
}

// numpadAlternates maps a numpad keysym to its navigation counterpart,
// applied when virtual NumLock is off. The mapping is its own inverse's
// domain: Insert/End/arrow keysyms never appear as keys here.
var numpadAlternates = map[uint32]uint32{
	XKKP0:       XKKPInsert,
	XKKP1:       XKKPEnd,
	XKKP2:       XKKPDown,
	XKKP3:       XKKPPageDown,
	XKKP4:       XKKPLeft,
	XKKP5:       XKKPBegin,
	XKKP6:       XKKPRight,
	XKKP7:       XKKPHome,
	XKKP8:       XKKPUp,
	XKKP9:       XKKPPageUp,
	XKKPDecimal: XKKPDelete,
}

// usLayout gives the unshifted US-layout character at each printable
// physical position.
var usLayout = map[uint32]rune{
	0x02: '1', 0x03: '2', 0x04: '3', 0x05: '4', 0x06: '5',
	0x07: '6', 0x08: '7', 0x09: '8', 0x0a: '9', 0x0b: '0',
	0x0c: '-', 0x0d: '=',
	0x10: 'q', 0x11: 'w', 0x12: 'e', 0x13: 'r', 0x14: 't',
	0x15: 'y', 0x16: 'u', 0x17: 'i', 0x18: 'o', 0x19: 'p',
	0x1a: '[', 0x1b: ']',
	0x1e: 'a', 0x1f: 's', 0x20: 'd', 0x21: 'f', 0x22: 'g',
	0x23: 'h', 0x24: 'j', 0x25: 'k', 0x26: 'l',
	0x27: ';', 0x28: '\'', 0x29: '`',
	0x2b: '\\',
	0x2c: 'z', 0x2d: 'x', 0x2e: 'c', 0x2f: 'v', 0x30: 'b',
	0x31: 'n', 0x32: 'm',
	0x33: ',', 0x34: '.', 0x35: '/',
	0x39: ' ',
	0x56: '\\',
}

// usLayoutShifted gives the shifted US-layout character, consulted when the
// event had Shift held so the fallback keysym matches what a US keyboard
// would have produced.
var usLayoutShifted = map[uint32]rune{
	0x02: '!', 0x03: '@', 0x04: '#', 0x05: '$', 0x06: '%',
	0x07: '^', 0x08: '&', 0x09: '*', 0x0a: '(', 0x0b: ')',
	0x0c: '_', 0x0d: '+',
	0x1a: '{', 0x1b: '}',
	0x27: ':', 0x28: '"', 0x29: '~',
	0x2b: '|',
	0x33: '<', 0x34: '>', 0x35: '?',
}

// keysymScancodes is the reverse of codeScancodes through the keysym name
// table, used to derive a scancode when the browser supplied no physical
// key identifier. Built once at init.
var keysymScancodes = map[uint32]uint32{}

func init() {
	// Printable US positions
	for sc, r := range usLayout {
		sym := FromUnicode(r)
		if _, ok := keysymScancodes[sym]; !ok {
			keysymScancodes[sym] = sc
		}
		// Letters: map the uppercase keysym to the same position.
		if r >= 'a' && r <= 'z' {
			keysymScancodes[uint32(r-0x20)] = sc
		}
	}
	for sc, r := range usLayoutShifted {
		sym := FromUnicode(r)
		if _, ok := keysymScancodes[sym]; !ok {
			keysymScancodes[sym] = sc
		}
	}
	// Named keys whose browser code name matches a keysym name entry.
	for name, sc := range codeScancodes {
		if sym, err := LookupName(name); err == nil {
			if _, ok := keysymScancodes[sym]; !ok {
				keysymScancodes[sym] = sc
			}
		}
	}
	// Bare-name modifiers and a few positions whose code and key names
	// differ.
	keysymScancodes[XKShiftL] = 0x2a
	keysymScancodes[XKShiftR] = 0x36
	keysymScancodes[XKControlL] = 0x1d
	keysymScancodes[XKControlR] = 0xe01d
	keysymScancodes[XKAltL] = 0x38
	keysymScancodes[XKAltR] = 0xe038
	keysymScancodes[XKSuperL] = 0xe05b
	keysymScancodes[XKSuperR] = 0xe05c
	keysymScancodes[XKMetaL] = 0xe05b
	keysymScancodes[XKMetaR] = 0xe05c
	keysymScancodes[XKReturn] = 0x1c
	keysymScancodes[XKISOLevel3Shift] = 0xe038
	keysymScancodes[XKISOLeftTab] = 0x0f
}

// Scancode returns the XT scancode for a physical key identifier, or 0 when
// the key has no standard physical position.
func Scancode(code string) uint32 {
	return codeScancodes[code]
}

// ScancodeForKeysym derives a physical position from a keysym, for events
// where the browser reported no physical key identifier. Returns 0 when no
// position is known.
func ScancodeForKeysym(sym uint32) uint32 {
	if sc, ok := keysymScancodes[sym]; ok {
		return sc
	}
	// Lowercase letters arrive as uppercase keysyms too; fold case.
	if sym >= 'A' && sym <= 'Z' {
		return keysymScancodes[sym+0x20]
	}
	return 0
}

// NumpadAlternate remaps a numpad keysym to its navigation counterpart.
// Identity for everything outside the numpad block.
func NumpadAlternate(sym uint32) uint32 {
	if alt, ok := numpadAlternates[sym]; ok {
		return alt
	}
	return sym
}

// USKeysym returns the keysym a US keyboard would produce at the given
// physical position, honoring Shift for the symbol row. Zero when the
// position has no printable US character.
func USKeysym(scancode uint32, shift bool) uint32 {
	if shift {
		if r, ok := usLayoutShifted[scancode]; ok {
			return FromUnicode(r)
		}
	}
	r, ok := usLayout[scancode]
	if !ok {
		return 0
	}
	if shift && r >= 'a' && r <= 'z' {
		r -= 0x20
	}
	return FromUnicode(r)
}
