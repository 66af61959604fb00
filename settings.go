package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type ComboID uint64

// LabeledCombo is a user-curated target combo.
type LabeledCombo struct {
	ID    ComboID `json:"id" yaml:"id" toml:"id"`
	Label string  `json:"label" yaml:"label" toml:"label"`
	Combo Combo   `json:"combo" yaml:"combo" toml:"combo"`
}

// UserSettings is everything the user configures. ComboRoster lists the
// combos to aim for, highest priority first.
type UserSettings struct {
	ComboCatalog         []LabeledCombo `json:"comboCatalog" yaml:"comboCatalog" toml:"comboCatalog"`
	ComboRoster          []ComboID      `json:"comboRoster" yaml:"comboRoster" toml:"comboRoster"`
	ForbiddenModifierIDs []ModifierID   `json:"forbiddenModifierIds" yaml:"forbiddenModifierIds" toml:"forbiddenModifierIds"`
	Hotkey               string         `json:"hotkey" yaml:"hotkey" toml:"hotkey"`
	ShowTiers            bool           `json:"showTiers" yaml:"showTiers" toml:"showTiers"`
}

func DefaultSettings() *UserSettings {
	return &UserSettings{
		ComboCatalog: []LabeledCombo{
			{ID: 0, Label: "All the uniques", Combo: Combo{38, 60, 57, 58}},
			{ID: 1, Label: "I love expedition", Combo: Combo{37, 38, 31, 4}},
		},
		ComboRoster:          []ComboID{0, 1},
		ForbiddenModifierIDs: []ModifierID{54, 55, 56, 59, 61, 62},
		Hotkey:               "alt + 1",
	}
}

type settingsFormat int

const (
	formatJSON settingsFormat = iota
	formatYAML
	formatTOML
)

func formatForPath(path string) (settingsFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return formatJSON, nil
	case ".yaml", ".yml":
		return formatYAML, nil
	case ".toml":
		return formatTOML, nil
	}
	return 0, fmt.Errorf("settings %s: unsupported extension (want .json, .yaml, .yml or .toml)", path)
}

// LoadSettings reads user settings, choosing the decoder from the file extension.
func LoadSettings(path string) (*UserSettings, error) {
	format, err := formatForPath(path)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := decodeSettings(raw, format)
	if err != nil {
		return nil, fmt.Errorf("settings %s: %w", path, err)
	}
	return s, nil
}

func decodeSettings(raw []byte, format settingsFormat) (*UserSettings, error) {
	var s UserSettings
	switch format {
	case formatYAML:
		if err := yaml.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
	case formatTOML:
		if _, err := toml.Decode(string(raw), &s); err != nil {
			return nil, err
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&s); err != nil {
			return nil, err
		}
	}
	return &s, nil
}

// SaveSettings writes s to path in the format matching its extension.
func SaveSettings(path string, s *UserSettings) error {
	format, err := formatForPath(path)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	switch format {
	case formatYAML:
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		if err := enc.Close(); err != nil {
			return err
		}
	case formatTOML:
		if err := toml.NewEncoder(&buf).Encode(s); err != nil {
			return err
		}
	default:
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(s); err != nil {
			return err
		}
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// LoadOrCreateSettings loads path, writing and returning the defaults when
// the file does not exist yet.
func LoadOrCreateSettings(path string) (*UserSettings, error) {
	s, err := LoadSettings(path)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	s = DefaultSettings()
	if err := SaveSettings(path, s); err != nil {
		return nil, err
	}
	logger.Info("wrote default settings")
	return s, nil
}

// Validate checks the settings against the catalog.
func (s *UserSettings) Validate(c *Catalog) error {
	seen := make(map[ComboID]bool, len(s.ComboCatalog))
	for _, lc := range s.ComboCatalog {
		if seen[lc.ID] {
			return fmt.Errorf("combo %d: duplicate id", lc.ID)
		}
		seen[lc.ID] = true
		if len(lc.Combo) > QueueLength {
			return fmt.Errorf("combo %d (%s): %d modifiers, at most %d fit the queue", lc.ID, lc.Label, len(lc.Combo), QueueLength)
		}
		for i, id := range lc.Combo {
			if _, ok := c.Lookup(id); !ok {
				return fmt.Errorf("combo %d (%s): unknown modifier %d", lc.ID, lc.Label, id)
			}
			if slices.Contains(lc.Combo[:i], id) {
				return fmt.Errorf("combo %d (%s): modifier %d listed twice", lc.ID, lc.Label, id)
			}
		}
	}
	for _, id := range s.ComboRoster {
		if !seen[id] {
			return fmt.Errorf("roster: combo %d not in catalog", id)
		}
	}
	for _, id := range s.ForbiddenModifierIDs {
		if _, ok := c.Lookup(id); !ok {
			return fmt.Errorf("forbidden: unknown modifier %d", id)
		}
	}
	return nil
}

// FindCombo returns the labeled combo with the given id, or nil if not found.
func (s *UserSettings) FindCombo(id ComboID) *LabeledCombo {
	for i := range s.ComboCatalog {
		if s.ComboCatalog[i].ID == id {
			return &s.ComboCatalog[i]
		}
	}
	return nil
}

// Roster resolves the roster to combos in priority order. Roster entries that
// name no combo are skipped.
func (s *UserSettings) Roster() []Combo {
	out := make([]Combo, 0, len(s.ComboRoster))
	for _, id := range s.ComboRoster {
		if lc := s.FindCombo(id); lc != nil {
			out = append(out, lc.Combo)
		}
	}
	return out
}

func (s *UserSettings) IsForbidden(id ModifierID) bool {
	return slices.Contains(s.ForbiddenModifierIDs, id)
}

// FillerModifierIDs returns the catalog modifiers that no roster combo needs,
// directly or as an ingredient, and that are not forbidden.
func (s *UserSettings) FillerModifierIDs(c *Catalog) map[ModifierID]bool {
	used := make(map[ModifierID]bool)
	for _, combo := range s.Roster() {
		for _, id := range combo {
			used[id] = true
			for _, comp := range c.Components(id) {
				used[comp.ID] = true
			}
		}
	}
	out := make(map[ModifierID]bool)
	for _, m := range c.Modifiers() {
		if !used[m.ID] && !s.IsForbidden(m.ID) {
			out[m.ID] = true
		}
	}
	return out
}

func (s *UserSettings) Clone() *UserSettings {
	out := *s
	out.ComboCatalog = make([]LabeledCombo, len(s.ComboCatalog))
	for i, lc := range s.ComboCatalog {
		lc.Combo = lc.Combo.Clone()
		out.ComboCatalog[i] = lc
	}
	out.ComboRoster = slices.Clone(s.ComboRoster)
	out.ForbiddenModifierIDs = slices.Clone(s.ForbiddenModifierIDs)
	return &out
}
