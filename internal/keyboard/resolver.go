package keyboard

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/nutanixed/prism-vnc-proxy/internal/keymap"
)

// Resolution is the outcome of resolving one key event. CapsLock, when
// non-nil, is the inferred toggle state for the caller to persist; the
// resolver itself never mutates ModifierState.
type Resolution struct {
	Keysym   uint32
	USKeysym uint32
	CapsLock *bool
}

// Resolver turns one raw key event into a keysym. It is stateless apart
// from reading the session's ModifierState for the NumLock remap.
type Resolver struct {
	mods *ModifierState

	// usFallback is set for hypervisor classes known to mis-translate
	// locale keyboards; it adds a second keysym derived from the physical
	// position through the US layout.
	usFallback bool
}

func NewResolver(mods *ModifierState, usFallback bool) *Resolver {
	return &Resolver{mods: mods, usFallback: usFallback}
}

// deadKeyPlaceholder stands in for the unknowable symbol of a dead key so
// the event still reaches the remote side in well-formed shape.
const deadKeyPlaceholder = ' '

// Resolve applies the priority chain over the three browser key
// identification schemes. First match wins; a miss on every rung returns
// keymap.ErrUnknownKey.
func (r *Resolver) Resolve(ev KeyEvent) (Resolution, error) {
	res := Resolution{USKeysym: r.usKeysym(ev)}

	// 1. Digits by character code, unless the event pinned a physical
	// location. Dead-key and AltGr remapping never rewrites digits, so the
	// character code is the most trustworthy source.
	if ev.CharCode >= '0' && ev.CharCode <= '9' && ev.Location == LocationStandard {
		res.Keysym = uint32(ev.CharCode)
		return res, nil
	}

	// 2. ASCII letters by character code. The case of the letter against
	// the Shift flag betrays the CapsLock state the browser won't report.
	// Known quirk, kept intentionally: on macOS, Shift with CapsLock
	// engaged still types upper case, so the parity inference reads as
	// CapsLock-off there.
	if isASCIILetter(ev.CharCode) {
		res.Keysym = uint32(ev.CharCode)
		caps := isUpper(ev.CharCode) != ev.Shift
		res.CapsLock = &caps
		return res, nil
	}

	if ev.Key == "" {
		return Resolution{}, fmt.Errorf("%w: event carries no key identification", keymap.ErrUnknownKey)
	}

	// 3. Legacy keyIdentifier of the form U+XXXX encodes the code point
	// in hex. Checked before the named lookup; the two vocabularies never
	// overlap.
	if cp, ok := parseUnicodeIdentifier(ev.Key); ok {
		res.Keysym = keymap.FromUnicode(cp)
		return res, nil
	}

	// 4. Modern key value, disambiguated by location.
	sym, err := r.resolveNamed(ev)
	if err != nil {
		return Resolution{}, err
	}
	res.Keysym = sym
	return res, nil
}

func (r *Resolver) resolveNamed(ev KeyEvent) (uint32, error) {
	name := ev.Key

	switch ev.Location {
	case LocationLeft, LocationRight:
		if mapped, ok := positionalName(name, ev.Location); ok {
			name = mapped
		}
	case LocationNumpad:
		name = numpadName(name)
		if sym, err := keymap.LookupName(name); err == nil {
			if !r.mods.VirtualNumLock {
				sym = keymap.NumpadAlternate(sym)
			}
			return sym, nil
		}
		// Fall through with the original name for printable characters
		// the numpad table does not cover.
		name = ev.Key
	}

	// Dead keys have no final symbol; substitute the placeholder so the
	// stream stays well-formed.
	if name == "Dead" {
		return keymap.FromUnicode(deadKeyPlaceholder), nil
	}

	// Single printable character: resolve through the substitution-aware
	// Unicode mapping.
	if utf8.RuneCountInString(name) == 1 {
		cp, _ := utf8.DecodeRuneInString(name)
		if cp >= ' ' {
			return keymap.FromUnicode(cp), nil
		}
	}

	return keymap.LookupName(name)
}

// usKeysym computes the US-layout fallback symbol from the physical
// position, when the session asks for one and the position is known.
func (r *Resolver) usKeysym(ev KeyEvent) uint32 {
	if !r.usFallback || ev.Code == "" {
		return 0
	}
	sc := keymap.Scancode(ev.Code)
	if sc == 0 {
		return 0
	}
	return keymap.USKeysym(sc, ev.Shift)
}

// positionalName rewrites a bare modifier name to its left/right variant.
func positionalName(name string, loc Location) (string, bool) {
	switch name {
	case "Shift", "Control", "Alt", "Meta", "OS", "Super", "Hyper":
	default:
		return "", false
	}
	if loc == LocationRight {
		return name + "_R", true
	}
	return name + "_L", true
}

// numpadName maps a typed key value to its KP_ table entry.
func numpadName(name string) string {
	switch name {
	case "0", "1", "2", "3", "4", "5", "6", "7", "8", "9":
		return "KP_" + name
	case "+":
		return "KP_Add"
	case "-":
		return "KP_Subtract"
	case "*":
		return "KP_Multiply"
	case "/":
		return "KP_Divide"
	case ".":
		return "KP_Decimal"
	case ",":
		return "KP_Separator"
	case "=":
		return "KP_Equal"
	case "Enter":
		return "KP_Enter"
	case "Home", "End", "PageUp", "PageDown", "Insert", "Delete", "Begin":
		return "KP_" + name
	case "ArrowLeft":
		return "KP_Left"
	case "ArrowRight":
		return "KP_Right"
	case "ArrowUp":
		return "KP_Up"
	case "ArrowDown":
		return "KP_Down"
	default:
		return name
	}
}

// parseUnicodeIdentifier decodes the deprecated "U+XXXX" keyIdentifier
// form.
func parseUnicodeIdentifier(s string) (rune, bool) {
	if !strings.HasPrefix(s, "U+") {
		return 0, false
	}
	v, err := strconv.ParseUint(s[2:], 16, 21)
	if err != nil || v == 0 {
		return 0, false
	}
	return rune(v), true
}

func isASCIILetter(r rune) bool {
	return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')
}

func isUpper(r rune) bool {
	return r >= 'A' && r <= 'Z'
}
