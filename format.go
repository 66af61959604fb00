package main

import (
	"fmt"
	"sort"
	"strings"
)

// ComboDetail is the per-slot breakdown of a combo for display.
type ComboDetail struct {
	Slots       []SlotDetail
	Productions []Production
	Total       float32
}

// SlotDetail describes one queue position and the value of the prefix
// ending there.
type SlotDetail struct {
	ID     ModifierID
	Name   string
	Tier   int
	Queued bool
	Value  float32
}

// CalcComboDetail computes the same total as ComboValue and also returns the
// per-prefix breakdown.
func CalcComboDetail(c *Catalog, combo Combo, queue Queue) ComboDetail {
	values := PrefixValues(c, combo)
	d := ComboDetail{
		Slots:       make([]SlotDetail, len(combo)),
		Productions: Produce(c, combo),
	}
	for i, id := range combo {
		d.Slots[i] = SlotDetail{
			ID:     id,
			Name:   c.Modifier(id).Name,
			Tier:   c.Tier(id),
			Queued: i < len(queue),
			Value:  values[i],
		}
		d.Total += values[i]
	}
	return d
}

// FormatSuggestion renders a search result as text. The next modifier to add
// is marked with an arrow.
func FormatSuggestion(c *Catalog, res SearchResult, queue Queue, showTiers bool) string {
	if res.Combo == nil {
		return "no suggestion\n"
	}
	var b strings.Builder
	d := CalcComboDetail(c, res.Combo, queue)

	fmt.Fprintf(&b, "combo (%s) value %.2f", res.Source, d.Total)
	if res.Fillers > 0 {
		fmt.Fprintf(&b, ", %d filler", res.Fillers)
		if res.Fillers > 1 {
			b.WriteString("s")
		}
	}
	b.WriteString("\n")

	for i, s := range d.Slots {
		mark := "  "
		switch {
		case s.Queued:
			mark = "= "
		case i == len(queue):
			mark = "->"
		}
		fmt.Fprintf(&b, "%s %d. %s", mark, i+1, s.Name)
		if showTiers {
			fmt.Fprintf(&b, " [T%d]", s.Tier)
		}
		fmt.Fprintf(&b, " (%.2f)\n", s.Value)
	}

	for _, p := range d.Productions {
		parts := make([]string, len(p.Recipe))
		for i, id := range p.Recipe {
			parts[i] = c.Modifier(id).Name
		}
		fmt.Fprintf(&b, "   makes %s from %s\n", c.Modifier(p.ID).Name, strings.Join(parts, " + "))
	}
	return b.String()
}

// FormatModifier renders one catalog entry with its rewards, effect and
// recipe.
func FormatModifier(c *Catalog, m *Modifier, showTiers bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%3d %s", m.ID, m.Name)
	if showTiers {
		fmt.Fprintf(&b, " [T%d]", c.Tier(m.ID))
	}

	rewards := make([]string, 0, len(m.Rewards))
	for r, n := range m.Rewards {
		rewards = append(rewards, fmt.Sprintf("%s x%d", r, n))
	}
	sort.Strings(rewards)
	if len(rewards) > 0 {
		fmt.Fprintf(&b, "  rewards: %s", strings.Join(rewards, ", "))
	}
	if m.Effect != nil {
		fmt.Fprintf(&b, "  effect: %s", m.Effect)
	}
	if !m.IsBase() {
		parts := make([]string, len(m.Recipe))
		for i, id := range m.Recipe {
			parts[i] = c.Modifier(id).Name
		}
		fmt.Fprintf(&b, "  recipe: %s", strings.Join(parts, " + "))
	}
	return b.String()
}

// FormatComponents renders the recursive ingredient bag of a modifier.
func FormatComponents(c *Catalog, id ModifierID) string {
	comps := c.Components(id)
	if len(comps) == 0 {
		return "base modifier"
	}
	parts := make([]string, len(comps))
	for i, comp := range comps {
		parts[i] = fmt.Sprintf("%s x%d", c.Modifier(comp.ID).Name, comp.Count)
	}
	return strings.Join(parts, ", ")
}

// SuggestResponse is the JSON shape of a suggestion. Next is null when there
// is nothing to suggest.
type SuggestResponse struct {
	Combo    Combo       `json:"combo"`
	Next     *ModifierID `json:"next"`
	NextName string      `json:"nextName,omitempty"`
	Source   string      `json:"source"`
	Value    float32     `json:"value"`
	Fillers  int         `json:"fillers"`
	TimeMs   int64       `json:"timeMs"`
}

func NewSuggestResponse(c *Catalog, res SearchResult, queue Queue) SuggestResponse {
	out := SuggestResponse{
		Combo:   res.Combo,
		Source:  res.Source.String(),
		Value:   res.Value,
		Fillers: res.Fillers,
		TimeMs:  res.Elapsed.Milliseconds(),
	}
	if next, ok := NextModifier(res.Combo, queue); ok {
		out.Next = &next
		out.NextName = c.Modifier(next).Name
	}
	return out
}
