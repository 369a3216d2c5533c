// substitutions.go upgrades code points the protocol's symbol space cannot
// express to their closest representable diacritic. Romanian keyboards are
// the common case: they type comma-below S/T, but the keysym space only has
// the cedilla forms. Deployments can extend the table with a YAML override
// file for other locale gaps.

package keymap

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

var builtinSubstitutions = map[rune]uint32{
	0x0218: XKScedilla, // Latin capital S with comma below
	0x0219: XKscedilla, // Latin small s with comma below
	0x021a: XKTcedilla, // Latin capital T with comma below
	0x021b: XKtcedilla, // Latin small t with comma below
}

var (
	overrideMu    sync.RWMutex
	overrideTable map[rune]uint32
)

func substitution(r rune) (uint32, bool) {
	overrideMu.RLock()
	if sym, ok := overrideTable[r]; ok {
		overrideMu.RUnlock()
		return sym, true
	}
	overrideMu.RUnlock()
	sym, ok := builtinSubstitutions[r]
	return sym, ok
}

// overrideFile is the on-disk shape of a substitution override file:
//
//	substitutions:
//	  - codepoint: 0x0259   # schwa
//	    keysym: 0x01000259
type overrideFile struct {
	Substitutions []struct {
		Codepoint uint32 `yaml:"codepoint"`
		Keysym    uint32 `yaml:"keysym"`
	} `yaml:"substitutions"`
}

// LoadOverrides reads extra substitutions from a YAML file. Entries shadow
// the built-in table. Calling it again replaces previously loaded entries.
func LoadOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read layout overrides: %w", err)
	}

	var f overrideFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse layout overrides: %w", err)
	}

	table := make(map[rune]uint32, len(f.Substitutions))
	for _, s := range f.Substitutions {
		if s.Codepoint == 0 || s.Keysym == 0 {
			return fmt.Errorf("layout overrides: entry with zero codepoint or keysym")
		}
		table[rune(s.Codepoint)] = s.Keysym
	}

	overrideMu.Lock()
	overrideTable = table
	overrideMu.Unlock()
	return nil
}
