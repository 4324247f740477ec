// Package families holds the per-device-family CLI table: the command that
// disables the output pager and the characters that terminate a prompt line.
// Selection is an explicit lookup by the family name stored on the
// connection profile, never sniffed from device output.
package families

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Family describes the CLI conventions of one device family.
type Family struct {
	Name           string   `yaml:"name" json:"name"`
	PagerOff       []string `yaml:"pager_off" json:"pager_off"`
	PromptSuffixes []string `yaml:"prompt_suffixes" json:"prompt_suffixes"`
}

// Generic is the fallback family used for unknown or empty family names.
const Generic = "generic"

func builtin() map[string]Family {
	return map[string]Family{
		"cisco-ios": {
			Name:           "cisco-ios",
			PagerOff:       []string{"terminal length 0"},
			PromptSuffixes: []string{"#", ">"},
		},
		"huawei-vrp": {
			Name:           "huawei-vrp",
			PagerOff:       []string{"screen-length 0 temporary"},
			PromptSuffixes: []string{">", "]"},
		},
		"h3c-comware": {
			Name:           "h3c-comware",
			PagerOff:       []string{"screen-length disable"},
			PromptSuffixes: []string{">", "]"},
		},
		Generic: {
			Name:           Generic,
			PagerOff:       []string{"terminal length 0"},
			PromptSuffixes: []string{"#", ">", "]", "$"},
		},
	}
}

// Table resolves family names to their CLI conventions.
type Table struct {
	families map[string]Family
}

// NewTable returns the built-in table.
func NewTable() *Table {
	return &Table{families: builtin()}
}

// Load returns the built-in table merged with entries from a YAML file.
// The file holds a list of Family values; an entry replaces the builtin of
// the same name wholesale and may introduce new families. An empty path
// returns the builtins unchanged.
func Load(path string) (*Table, error) {
	t := NewTable()
	if path == "" {
		return t, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read families file: %w", err)
	}
	var entries []Family
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse families file: %w", err)
	}
	for _, f := range entries {
		if f.Name == "" {
			return nil, fmt.Errorf("families file %s: entry without name", path)
		}
		t.families[f.Name] = f
	}
	return t, nil
}

// Lookup returns the family for name, falling back to the generic entry
// for unknown or empty names.
func (t *Table) Lookup(name string) Family {
	if f, ok := t.families[name]; ok {
		return f
	}
	return t.families[Generic]
}

// Names returns the known family names in sorted order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.families))
	for name := range t.families {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
