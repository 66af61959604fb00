package main

import (
	"cmp"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

//go:embed data/modifiers.json
var embeddedCatalog []byte

//go:embed data/modifiers.schema.json
var catalogSchemaJSON string

// Catalog is the immutable modifier dataset. It is safe for concurrent use.
type Catalog struct {
	modifiers  []*Modifier // ascending id
	byID       map[ModifierID]*Modifier
	byRecipe   map[string]ModifierID // non-empty recipes only
	components map[ModifierID][]Component
	tiers      map[ModifierID]int
	digest     string
}

var defaultCatalog = sync.OnceValue(func() *Catalog {
	c, err := LoadCatalog(embeddedCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded modifier catalog: %v", err))
	}
	return c
})

// DefaultCatalog returns the catalog built from the embedded data. A malformed
// embedded catalog is a programming error and panics on first use.
func DefaultCatalog() *Catalog {
	return defaultCatalog()
}

var catalogSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return jsonschema.CompileString("modifiers.schema.json", catalogSchemaJSON)
})

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// LoadCatalog validates raw catalog JSON and builds the lookup tables,
// including the recursive component bag of every modifier.
func LoadCatalog(data []byte) (*Catalog, error) {
	schema, err := catalogSchema()
	if err != nil {
		return nil, fmt.Errorf("compile catalog schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("modifiers.json: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("modifiers.json: %w", err)
	}

	c := &Catalog{
		byID:       make(map[ModifierID]*Modifier),
		byRecipe:   make(map[string]ModifierID),
		components: make(map[ModifierID][]Component),
		tiers:      make(map[ModifierID]int),
		digest:     sha256Hex(data),
	}

	var parseErr error
	gjson.GetBytes(data, "modifiers").ForEach(func(_, v gjson.Result) bool {
		m, err := parseModifier(v)
		if err != nil {
			parseErr = err
			return false
		}
		if _, dup := c.byID[m.ID]; dup {
			parseErr = fmt.Errorf("modifier %d: duplicate id", m.ID)
			return false
		}
		c.byID[m.ID] = m
		c.modifiers = append(c.modifiers, m)
		return true
	})
	if parseErr != nil {
		return nil, fmt.Errorf("modifiers.json: %w", parseErr)
	}
	slices.SortFunc(c.modifiers, func(a, b *Modifier) int { return cmp.Compare(a.ID, b.ID) })

	if err := c.checkRecipes(); err != nil {
		return nil, fmt.Errorf("modifiers.json: %w", err)
	}
	for _, m := range c.modifiers {
		c.components[m.ID] = c.expandComponents(m.ID)
	}
	for _, m := range c.modifiers {
		c.tier(m.ID)
	}
	return c, nil
}

func parseModifier(v gjson.Result) (*Modifier, error) {
	m := &Modifier{
		ID:      ModifierID(v.Get("id").Uint()),
		Name:    v.Get("name").String(),
		Rewards: make(map[Reward]int),
	}
	v.Get("recipe").ForEach(func(_, r gjson.Result) bool {
		m.Recipe = append(m.Recipe, ModifierID(r.Uint()))
		return true
	})
	slices.Sort(m.Recipe)

	var err error
	v.Get("rewards").ForEach(func(k, n gjson.Result) bool {
		r, ok := parseReward(k.String())
		if !ok {
			err = fmt.Errorf("modifier %d (%s): unknown reward %q", m.ID, m.Name, k.String())
			return false
		}
		m.Rewards[r] = int(n.Int())
		return true
	})
	if err != nil {
		return nil, err
	}

	if e := v.Get("effect"); e.Exists() && e.Type != gjson.Null {
		eff := Effect{Kind: parseEffectKind(e.Get("type").String())}
		switch eff.Kind {
		case EffectNone:
			return nil, fmt.Errorf("modifier %d (%s): unknown effect %q", m.ID, m.Name, e.Get("type").String())
		case EffectReroll:
			eff.Count = int(e.Get("count").Int())
		case EffectConvert:
			to, ok := parseReward(e.Get("to").String())
			if !ok {
				return nil, fmt.Errorf("modifier %d (%s): unknown conversion target %q", m.ID, m.Name, e.Get("to").String())
			}
			eff.To = to
		}
		m.Effect = &eff
	}
	return m, nil
}

// checkRecipes enforces that recipe members exist, that non-empty recipes are
// unique and that the recipe graph has no cycles.
func (c *Catalog) checkRecipes() error {
	for _, m := range c.modifiers {
		if m.IsBase() {
			continue
		}
		for _, id := range m.Recipe {
			if id == m.ID {
				return fmt.Errorf("modifier %d (%s): recipe references itself", m.ID, m.Name)
			}
			if _, ok := c.byID[id]; !ok {
				return fmt.Errorf("modifier %d (%s): recipe member %d not in catalog", m.ID, m.Name, id)
			}
		}
		key := recipeKey(m.Recipe)
		if other, dup := c.byRecipe[key]; dup {
			return fmt.Errorf("modifier %d (%s): recipe %v already produces %d", m.ID, m.Name, m.Recipe, other)
		}
		c.byRecipe[key] = m.ID
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[ModifierID]int, len(c.modifiers))
	var visit func(id ModifierID, path []ModifierID) error
	visit = func(id ModifierID, path []ModifierID) error {
		switch state[id] {
		case visiting:
			return fmt.Errorf("recipe cycle through %v", append(path, id))
		case done:
			return nil
		}
		state[id] = visiting
		for _, child := range c.byID[id].Recipe {
			if err := visit(child, append(path, id)); err != nil {
				return err
			}
		}
		state[id] = done
		return nil
	}
	for _, m := range c.modifiers {
		if err := visit(m.ID, nil); err != nil {
			return err
		}
	}
	return nil
}

// expandComponents walks recipe edges depth-first and counts every visited
// ingredient, excluding id itself. Entries keep first-visit order.
func (c *Catalog) expandComponents(id ModifierID) []Component {
	var out []Component
	index := make(map[ModifierID]int)
	stack := []ModifierID{id}
	root := true
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if root {
			root = false
		} else if i, ok := index[cur]; ok {
			out[i].Count++
		} else {
			index[cur] = len(out)
			out = append(out, Component{ID: cur, Count: 1})
		}
		stack = append(stack, c.byID[cur].Recipe...)
	}
	return out
}

func (c *Catalog) tier(id ModifierID) int {
	if t, ok := c.tiers[id]; ok {
		return t
	}
	t := 1
	for _, child := range c.byID[id].Recipe {
		t = max(t, c.tier(child)+1)
	}
	c.tiers[id] = t
	return t
}

// recipeKey builds an order-independent map key for a set of modifier ids.
func recipeKey(ids []ModifierID) string {
	buf := make([]byte, len(ids))
	for i, id := range ids {
		buf[i] = byte(id)
	}
	slices.Sort(buf)
	return string(buf)
}

// Modifier returns the modifier with the given id. Referencing an id that is
// not in the catalog is an invariant violation and panics.
func (c *Catalog) Modifier(id ModifierID) *Modifier {
	m, ok := c.byID[id]
	if !ok {
		panic(fmt.Sprintf("modifier %d not in catalog", id))
	}
	return m
}

func (c *Catalog) Lookup(id ModifierID) (*Modifier, bool) {
	m, ok := c.byID[id]
	return m, ok
}

// ByRecipe returns the modifier produced by exactly the given set of ids.
func (c *Catalog) ByRecipe(ids []ModifierID) (ModifierID, bool) {
	if len(ids) == 0 {
		return 0, false
	}
	id, ok := c.byRecipe[recipeKey(ids)]
	return id, ok
}

// Components returns the recursive ingredient bag of id, excluding id.
func (c *Catalog) Components(id ModifierID) []Component {
	c.Modifier(id)
	return c.components[id]
}

func (c *Catalog) Modifiers() []*Modifier {
	return c.modifiers
}

// Tier is 1 for base modifiers and one more than the deepest ingredient otherwise.
func (c *Catalog) Tier(id ModifierID) int {
	c.Modifier(id)
	return c.tiers[id]
}

func (c *Catalog) Len() int {
	return len(c.modifiers)
}

// Digest identifies the catalog content; persisted caches built against a
// different digest are discarded.
func (c *Catalog) Digest() string {
	return c.digest
}
