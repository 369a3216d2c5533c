// keysym.go holds the X11 keysym constants and the name table used to
// translate browser key names into protocol keysyms. The table covers both
// the modern KeyboardEvent.key names ("ArrowLeft", "Enter") and the legacy
// keyIdentifier names ("Left", "PageUp") older browsers report, plus the
// positional variants ("Shift_L", "KP_4") the resolver synthesizes from the
// event location.

package keymap

import "fmt"

// X11 keysym values. Only the symbols the console protocol actually needs
// are listed; printable characters map arithmetically via FromUnicode.
const (
	XKBackSpace   = 0xff08
	XKTab         = 0xff09
	XKLinefeed    = 0xff0a
	XKClear       = 0xff0b
	XKReturn      = 0xff0d
	XKPause       = 0xff13
	XKScrollLock  = 0xff14
	XKSysReq      = 0xff15
	XKEscape      = 0xff1b
	XKDelete      = 0xffff
	XKMultiKey    = 0xff20
	XKKanji       = 0xff21
	XKMuhenkan    = 0xff22
	XKHenkan      = 0xff23
	XKRomaji      = 0xff24
	XKHiragana    = 0xff25
	XKKatakana    = 0xff26
	XKHiraKata    = 0xff27
	XKZenkaku     = 0xff28
	XKHankaku     = 0xff29
	XKZenHankaku  = 0xff2a
	XKKanaLock    = 0xff2d
	XKEisuShift   = 0xff2e
	XKEisuToggle  = 0xff30
	XKHangul      = 0xff31
	XKHangulHanja = 0xff34

	XKHome     = 0xff50
	XKLeft     = 0xff51
	XKUp       = 0xff52
	XKRight    = 0xff53
	XKDown     = 0xff54
	XKPageUp   = 0xff55
	XKPageDown = 0xff56
	XKEnd      = 0xff57
	XKBegin    = 0xff58

	XKSelect  = 0xff60
	XKPrint   = 0xff61
	XKExecute = 0xff62
	XKInsert  = 0xff63
	XKUndo    = 0xff65
	XKRedo    = 0xff66
	XKMenu    = 0xff67
	XKFind    = 0xff68
	XKCancel  = 0xff69
	XKHelp    = 0xff6a
	XKBreak   = 0xff6b

	XKModeSwitch = 0xff7e
	XKNumLock    = 0xff7f

	XKKPSpace     = 0xff80
	XKKPTab       = 0xff89
	XKKPEnter     = 0xff8d
	XKKPHome      = 0xff95
	XKKPLeft      = 0xff96
	XKKPUp        = 0xff97
	XKKPRight     = 0xff98
	XKKPDown      = 0xff99
	XKKPPageUp    = 0xff9a
	XKKPPageDown  = 0xff9b
	XKKPEnd       = 0xff9c
	XKKPBegin     = 0xff9d
	XKKPInsert    = 0xff9e
	XKKPDelete    = 0xff9f
	XKKPEqual     = 0xffbd
	XKKPMultiply  = 0xffaa
	XKKPAdd       = 0xffab
	XKKPSeparator = 0xffac
	XKKPSubtract  = 0xffad
	XKKPDecimal   = 0xffae
	XKKPDivide    = 0xffaf
	XKKP0         = 0xffb0
	XKKP1         = 0xffb1
	XKKP2         = 0xffb2
	XKKP3         = 0xffb3
	XKKP4         = 0xffb4
	XKKP5         = 0xffb5
	XKKP6         = 0xffb6
	XKKP7         = 0xffb7
	XKKP8         = 0xffb8
	XKKP9         = 0xffb9

	XKF1  = 0xffbe
	XKF2  = 0xffbf
	XKF3  = 0xffc0
	XKF4  = 0xffc1
	XKF5  = 0xffc2
	XKF6  = 0xffc3
	XKF7  = 0xffc4
	XKF8  = 0xffc5
	XKF9  = 0xffc6
	XKF10 = 0xffc7
	XKF11 = 0xffc8
	XKF12 = 0xffc9
	XKF13 = 0xffca
	XKF14 = 0xffcb
	XKF15 = 0xffcc
	XKF16 = 0xffcd
	XKF17 = 0xffce
	XKF18 = 0xffcf
	XKF19 = 0xffd0
	XKF20 = 0xffd1
	XKF21 = 0xffd2
	XKF22 = 0xffd3
	XKF23 = 0xffd4
	XKF24 = 0xffd5

	XKShiftL         = 0xffe1
	XKShiftR         = 0xffe2
	XKControlL       = 0xffe3
	XKControlR       = 0xffe4
	XKCapsLock       = 0xffe5
	XKShiftLock      = 0xffe6
	XKMetaL          = 0xffe7
	XKMetaR          = 0xffe8
	XKAltL           = 0xffe9
	XKAltR           = 0xffea
	XKSuperL         = 0xffeb
	XKSuperR         = 0xffec
	XKHyperL         = 0xffed
	XKHyperR         = 0xffee
	XKISOLevel3Shift = 0xfe03
	XKISOLeftTab     = 0xfe20

	// XFree86 multimedia range
	XF86Standby          = 0x1008ff10
	XF86AudioLowerVolume = 0x1008ff11
	XF86AudioMute        = 0x1008ff12
	XF86AudioRaiseVolume = 0x1008ff13
	XF86AudioPlay        = 0x1008ff14
	XF86AudioStop        = 0x1008ff15
	XF86AudioPrev        = 0x1008ff16
	XF86AudioNext        = 0x1008ff17
	XF86HomePage         = 0x1008ff18
	XF86Mail             = 0x1008ff19
	XF86Search           = 0x1008ff1b
	XF86Calculator       = 0x1008ff1d
	XF86Back             = 0x1008ff26
	XF86Forward          = 0x1008ff27
	XF86Stop             = 0x1008ff28
	XF86Refresh          = 0x1008ff29
	XF86PowerOff         = 0x1008ff2a
	XF86WakeUp           = 0x1008ff2b
	XF86Eject            = 0x1008ff2c
	XF86Favorites        = 0x1008ff30
	XF86Copy             = 0x1008ff57
	XF86Cut              = 0x1008ff58
	XF86Explorer         = 0x1008ff5d
	XF86Paste            = 0x1008ff6d

	// Latin-2 diacritics used by the substitution table
	XKScedilla = 0x01aa
	XKscedilla = 0x01ba
	XKTcedilla = 0x01de
	XKtcedilla = 0x01fe
)

// unicodeOffset is the X11 rule for code points without a dedicated keysym:
// keysym = 0x01000000 | codepoint.
const unicodeOffset = 0x01000000

// ErrUnknownKey is returned when a key name or identifier has no entry in
// the lookup tables. Callers drop the event; it never aborts a session.
var ErrUnknownKey = fmt.Errorf("keymap: unknown key")

// keysymNames maps non-character key names to keysyms. Both the modern
// KeyboardEvent.key vocabulary and the legacy keyIdentifier vocabulary are
// listed so the resolver can consult a single table.
var keysymNames = map[string]uint32{
	// Editing and whitespace
	"Backspace":   XKBackSpace,
	"Tab":         XKTab,
	"Enter":       XKReturn,
	"Return":      XKReturn,
	"Escape":      XKEscape,
	"Esc":         XKEscape,
	"Delete":      XKDelete,
	"Del":         XKDelete,
	"Insert":      XKInsert,
	"Clear":       XKClear,
	"Undo":        XKUndo,
	"Redo":        XKRedo,
	"Copy":        XF86Copy,
	"Cut":         XF86Cut,
	"Paste":       XF86Paste,
	"Find":        XKFind,
	"Cancel":      XKCancel,
	"Execute":     XKExecute,
	"Help":        XKHelp,
	"Pause":       XKPause,
	"Select":      XKSelect,
	"PrintScreen": XKPrint,

	// Navigation (modern names first, then legacy identifiers)
	"ArrowLeft":  XKLeft,
	"ArrowUp":    XKUp,
	"ArrowRight": XKRight,
	"ArrowDown":  XKDown,
	"Left":       XKLeft,
	"Up":         XKUp,
	"Right":      XKRight,
	"Down":       XKDown,
	"Home":       XKHome,
	"End":        XKEnd,
	"PageUp":     XKPageUp,
	"PageDown":   XKPageDown,

	// Modifiers. Bare names resolve to the left-hand variant; the resolver
	// rewrites them to the _L/_R forms below when the event location says so.
	"Shift":       XKShiftL,
	"Shift_L":     XKShiftL,
	"Shift_R":     XKShiftR,
	"Control":     XKControlL,
	"Control_L":   XKControlL,
	"Control_R":   XKControlR,
	"Alt":         XKAltL,
	"Alt_L":       XKAltL,
	"Alt_R":       XKAltR,
	"AltGraph":    XKISOLevel3Shift,
	"Meta":        XKMetaL,
	"Meta_L":      XKMetaL,
	"Meta_R":      XKMetaR,
	"Win":         XKSuperL,
	"OS":          XKSuperL,
	"OS_L":        XKSuperL,
	"OS_R":        XKSuperR,
	"Super":       XKSuperL,
	"Super_L":     XKSuperL,
	"Super_R":     XKSuperR,
	"Hyper":       XKHyperL,
	"Hyper_L":     XKHyperL,
	"Hyper_R":     XKHyperR,
	"CapsLock":    XKCapsLock,
	"NumLock":     XKNumLock,
	"ScrollLock":  XKScrollLock,
	"Scroll":      XKScrollLock,
	"ContextMenu": XKMenu,
	"Apps":        XKMenu,
	"ModeChange":  XKModeSwitch,

	// Function keys
	"F1": XKF1, "F2": XKF2, "F3": XKF3, "F4": XKF4,
	"F5": XKF5, "F6": XKF6, "F7": XKF7, "F8": XKF8,
	"F9": XKF9, "F10": XKF10, "F11": XKF11, "F12": XKF12,
	"F13": XKF13, "F14": XKF14, "F15": XKF15, "F16": XKF16,
	"F17": XKF17, "F18": XKF18, "F19": XKF19, "F20": XKF20,
	"F21": XKF21, "F22": XKF22, "F23": XKF23, "F24": XKF24,

	// Numpad
	"KP_0": XKKP0, "KP_1": XKKP1, "KP_2": XKKP2, "KP_3": XKKP3,
	"KP_4": XKKP4, "KP_5": XKKP5, "KP_6": XKKP6, "KP_7": XKKP7,
	"KP_8": XKKP8, "KP_9": XKKP9,
	"KP_Enter":     XKKPEnter,
	"KP_Multiply":  XKKPMultiply,
	"KP_Add":       XKKPAdd,
	"KP_Subtract":  XKKPSubtract,
	"KP_Decimal":   XKKPDecimal,
	"KP_Separator": XKKPSeparator,
	"KP_Divide":    XKKPDivide,
	"KP_Equal":     XKKPEqual,
	"KP_Home":      XKKPHome,
	"KP_Left":      XKKPLeft,
	"KP_Up":        XKKPUp,
	"KP_Right":     XKKPRight,
	"KP_Down":      XKKPDown,
	"KP_PageUp":    XKKPPageUp,
	"KP_PageDown":  XKKPPageDown,
	"KP_End":       XKKPEnd,
	"KP_Begin":     XKKPBegin,
	"KP_Insert":    XKKPInsert,
	"KP_Delete":    XKKPDelete,

	// IME and language keys
	"Convert":          XKHenkan,
	"NonConvert":       XKMuhenkan,
	"KanjiMode":        XKKanji,
	"HiraganaKatakana": XKHiraKata,
	"Hiragana":         XKHiragana,
	"Katakana":         XKKatakana,
	"Romaji":           XKRomaji,
	"Zenkaku":          XKZenkaku,
	"Hankaku":          XKHankaku,
	"ZenkakuHankaku":   XKZenHankaku,
	"Eisu":             XKEisuToggle,
	"KanaMode":         XKKanaLock,
	"HangulMode":       XKHangul,
	"HanjaMode":        XKHangulHanja,
	"Compose":          XKMultiKey,

	// Multimedia
	"AudioVolumeMute":    XF86AudioMute,
	"AudioVolumeDown":    XF86AudioLowerVolume,
	"AudioVolumeUp":      XF86AudioRaiseVolume,
	"VolumeMute":         XF86AudioMute,
	"VolumeDown":         XF86AudioLowerVolume,
	"VolumeUp":           XF86AudioRaiseVolume,
	"MediaPlayPause":     XF86AudioPlay,
	"MediaPlay":          XF86AudioPlay,
	"MediaStop":          XF86AudioStop,
	"MediaTrackPrevious": XF86AudioPrev,
	"MediaTrackNext":     XF86AudioNext,
	"BrowserBack":        XF86Back,
	"BrowserForward":     XF86Forward,
	"BrowserRefresh":     XF86Refresh,
	"BrowserStop":        XF86Stop,
	"BrowserSearch":      XF86Search,
	"BrowserFavorites":   XF86Favorites,
	"BrowserHome":        XF86HomePage,
	"LaunchMail":         XF86Mail,
	"LaunchCalculator":   XF86Calculator,
	"LaunchMyComputer":   XF86Explorer,
	"Power":              XF86PowerOff,
	"Standby":            XF86Standby,
	"WakeUp":             XF86WakeUp,
	"Eject":              XF86Eject,
}

// LookupName returns the keysym for a non-character key name.
func LookupName(name string) (uint32, error) {
	if sym, ok := keysymNames[name]; ok {
		return sym, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKey, name)
}

// FromUnicode converts a Unicode code point to a keysym. Substitutions for
// code points the protocol's symbol space cannot express directly (and any
// loaded layout overrides) are applied first; ASCII and Latin-1 map
// one-to-one, everything else goes through the Unicode offset range.
func FromUnicode(r rune) uint32 {
	if sym, ok := substitution(r); ok {
		return sym
	}
	switch {
	case r >= 0x20 && r <= 0x7e:
		return uint32(r)
	case r >= 0xa0 && r <= 0xff:
		return uint32(r)
	default:
		return unicodeOffset | uint32(r)
	}
}
