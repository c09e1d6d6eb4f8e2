// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dungeon Dash Contributors

// Package roster provides the playable characters offered at signup and
// the starting loadout each one grants.
package roster

import (
	_ "embed"
	"os"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

//go:embed default_roster.yaml
var defaultRosterYAML []byte

// Character describes one playable character.
type Character struct {
	Name        string   `yaml:"name" json:"name" jsonschema:"required,minLength=1,maxLength=64"`
	Class       string   `yaml:"class,omitempty" json:"class,omitempty" jsonschema:"maxLength=64"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Weapons     []string `yaml:"weapons" json:"weapons" jsonschema:"required"`
}

// Roster is an ordered set of characters.
type Roster struct {
	Characters []Character `yaml:"characters" json:"characters" jsonschema:"required,minItems=1"`

	byName map[string]int
}

// Default returns the embedded roster.
func Default() *Roster {
	r, err := Load(defaultRosterYAML)
	if err != nil {
		panic("embedded roster is invalid: " + err.Error())
	}
	return r
}

// DefaultYAML returns the raw embedded roster document.
func DefaultYAML() []byte {
	out := make([]byte, len(defaultRosterYAML))
	copy(out, defaultRosterYAML)
	return out
}

// LoadFile reads and parses a roster file. An empty path yields the
// embedded default.
func LoadFile(path string) (*Roster, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied config path
	if err != nil {
		return nil, oops.Code("ROSTER_READ_FAILED").With("path", path).Wrap(err)
	}
	r, err := Load(data)
	if err != nil {
		return nil, oops.With("path", path).Wrap(err)
	}
	return r, nil
}

// Load validates data against the roster schema and parses it.
func Load(data []byte) (*Roster, error) {
	if err := ValidateSchema(data); err != nil {
		return nil, oops.Code("ROSTER_INVALID").Wrap(err)
	}

	var r Roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, oops.Code("ROSTER_INVALID").With("operation", "parse yaml").Wrap(err)
	}

	r.byName = make(map[string]int, len(r.Characters))
	for i, c := range r.Characters {
		if _, dup := r.byName[c.Name]; dup {
			return nil, oops.Code("ROSTER_INVALID").
				With("character", c.Name).
				Errorf("duplicate character %q", c.Name)
		}
		r.byName[c.Name] = i
	}
	return &r, nil
}

// Lookup returns the named character. Names match exactly.
func (r *Roster) Lookup(name string) (Character, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Character{}, false
	}
	c := r.Characters[i]
	c.Weapons = append([]string(nil), c.Weapons...)
	return c, true
}

// Names lists character names in roster order.
func (r *Roster) Names() []string {
	names := make([]string, len(r.Characters))
	for i, c := range r.Characters {
		names[i] = c.Name
	}
	return names
}

// Loadout returns the account attributes granted by choosing name:
// character, class and weapons. Class is the character name unless the
// roster entry overrides it. Unknown characters are accepted and start with
// no weapons.
func (r *Roster) Loadout(name string) map[string]any {
	attrs := map[string]any{
		"character": name,
		"class":     name,
		"weapons":   []any{},
	}
	c, ok := r.Lookup(name)
	if !ok {
		return attrs
	}
	weapons := make([]any, len(c.Weapons))
	for i, w := range c.Weapons {
		weapons[i] = w
	}
	attrs["weapons"] = weapons
	if c.Class != "" {
		attrs["class"] = c.Class
	}
	return attrs
}
