package main

import (
	"cmp"
	"math"
	"slices"
	"time"

	"go.uber.org/zap"
)

// ── Engine ──────────────────────────────────────────────────────────

// Engine suggests combos for a catalog. It holds no per-request state and is
// safe for concurrent use.
type Engine struct {
	catalog *Catalog
	cfg     Config
}

// NewEngine creates an engine over the given catalog.
func NewEngine(catalog *Catalog, cfg Config) *Engine {
	return &Engine{catalog: catalog, cfg: cfg}
}

func (e *Engine) Catalog() *Catalog { return e.catalog }

func (e *Engine) Config() Config { return e.cfg }

// Source tells where a suggestion came from.
type Source int

const (
	SourceNone Source = iota
	SourceRoster
	SourceSearch
)

func (s Source) String() string {
	switch s {
	case SourceRoster:
		return "roster"
	case SourceSearch:
		return "search"
	}
	return "none"
}

// SearchResult is the outcome of one suggestion run. Combo is nil when there
// is nothing to suggest.
type SearchResult struct {
	Combo    Combo
	Value    float32
	Fillers  int
	Source   Source
	Steps    int
	TimedOut bool
	Elapsed  time.Duration
}

// Suggest returns the combo to build, or nil when the queue is full or no
// feasible combo exists. The first len(queue) entries of the combo are the
// queue itself.
func (e *Engine) Suggest(settings *UserSettings, stash Stash, queue Queue) Combo {
	return e.Search(settings, stash, queue).Combo
}

// Search runs the roster lookup and, if that fails, the time-budgeted combo
// search.
func (e *Engine) Search(settings *UserSettings, stash Stash, queue Queue) SearchResult {
	start := time.Now()
	if len(queue) >= QueueLength {
		logger.Warn("cannot suggest a combo with a full queue", zapCombo("queue", queue))
		return SearchResult{Elapsed: time.Since(start)}
	}

	if combo := suggestRosterCombo(settings, stash, queue); combo != nil {
		logger.Info("suggested roster combo", zapCombo("combo", combo))
		return SearchResult{
			Combo:   combo,
			Value:   ComboValue(e.catalog, combo),
			Source:  SourceRoster,
			Elapsed: time.Since(start),
		}
	}

	s := newComboSearch(e, settings, stash, queue)
	res := s.run()
	res.Elapsed = time.Since(start)
	if res.Combo == nil {
		logger.Warn("failed to suggest a combo",
			zapCombo("queue", queue),
			zap.Int("candidates", len(s.candidates)),
			zap.Int("steps", res.Steps),
			zap.Bool("timedOut", res.TimedOut))
		return res
	}
	logger.Info("suggested custom combo",
		zapCombo("combo", res.Combo),
		zap.Float32("value", res.Value),
		zap.Int("fillers", res.Fillers),
		zap.Int("steps", res.Steps),
		zap.Duration("elapsed", res.Elapsed))
	return res
}

// suggestRosterCombo returns the first roster combo that extends the queue
// and whose remaining modifiers are all owned.
func suggestRosterCombo(settings *UserSettings, stash Stash, queue Queue) Combo {
	for _, combo := range settings.Roster() {
		if len(combo) <= len(queue) || !combo.HasPrefix(queue) {
			continue
		}
		owned := true
		for _, id := range combo[len(queue):] {
			if !stash.Owns(id) {
				owned = false
				break
			}
		}
		if owned {
			return combo.Clone()
		}
	}
	return nil
}

// ── Combo search ────────────────────────────────────────────────────

// candidate is one move of the search: a recipe to place into the queue.
// Fillers place a single modifier and produce nothing.
type candidate struct {
	produces ModifierID
	filler   bool
	recipe   []ModifierID // sorted
}

type scoredCombo struct {
	combo   Combo
	value   float32
	fillers int
}

type comboSearch struct {
	catalog  *Catalog
	cfg      Config
	settings *UserSettings
	stash    Stash
	queue    Queue

	fillerIDs     map[ModifierID]bool
	queueProduced []ModifierID
	candidates    []candidate

	best     *scoredCombo
	steps    int
	timedOut bool
}

func newComboSearch(e *Engine, settings *UserSettings, stash Stash, queue Queue) *comboSearch {
	s := &comboSearch{
		catalog:   e.catalog,
		cfg:       e.cfg,
		settings:  settings,
		stash:     stash,
		queue:     queue,
		fillerIDs: settings.FillerModifierIDs(e.catalog),
	}
	for _, p := range Produce(e.catalog, queue) {
		s.queueProduced = append(s.queueProduced, p.ID)
	}
	s.buildCandidates()
	return s
}

// ── Candidate generation ────────────────────────────────────────────

type rankedID struct {
	id       ModifierID
	priority float32
}

// buildCandidates lists the craftable roster ingredients, least satisfied
// first, followed by the filler modifiers.
func (s *comboSearch) buildCandidates() {
	var ranked []rankedID
	for ci, combo := range s.settings.Roster() {
		comboPriority := float32(ci + 1)
		required, order := s.requiredCounts(combo)
		owned := s.ownedAlongChain(combo)
		for _, id := range order {
			if !s.craftable(id) {
				continue
			}
			ratio := float32(owned[id]) / float32(required[id])
			ranked = append(ranked, rankedID{id: id, priority: comboPriority + ratio})
		}
	}
	slices.SortStableFunc(ranked, func(a, b rankedID) int { return cmp.Compare(a.priority, b.priority) })

	for i, r := range ranked {
		if i > 0 && ranked[i-1].id == r.id {
			continue
		}
		s.candidates = append(s.candidates, candidate{
			produces: r.id,
			recipe:   s.catalog.Modifier(r.id).Recipe,
		})
	}
	for _, id := range s.usableFillers() {
		s.candidates = append(s.candidates, candidate{
			produces: id,
			filler:   true,
			recipe:   []ModifierID{id},
		})
	}
}

// requiredCounts returns how many of each modifier a combo needs, counting
// nested ingredients, plus the ids in declaration order.
func (s *comboSearch) requiredCounts(combo Combo) (map[ModifierID]int, []ModifierID) {
	required := make(map[ModifierID]int)
	var order []ModifierID
	note := func(id ModifierID) {
		if _, ok := required[id]; !ok {
			order = append(order, id)
		}
	}
	for _, id := range combo {
		note(id)
		required[id] = 1
		for _, comp := range s.catalog.Components(id) {
			note(comp.ID)
			required[comp.ID] += comp.Count
		}
	}
	return required, order
}

// ownedAlongChain walks the recipe tree of combo breadth-first. Each node's
// count is its stash count plus the running count of every parent that
// reached it, so ingredients of owned intermediates look better satisfied.
func (s *comboSearch) ownedAlongChain(combo Combo) map[ModifierID]int {
	type node struct {
		id     ModifierID
		parent int
	}
	owned := make(map[ModifierID]int)
	pending := make([]node, 0, len(combo))
	for _, id := range combo {
		pending = append(pending, node{id: id})
	}
	for len(pending) > 0 {
		n := pending[0]
		pending = pending[1:]
		count, ok := owned[n.id]
		if !ok {
			count = s.stash.Count(n.id)
		}
		count += n.parent
		owned[n.id] = count
		for _, child := range s.catalog.Modifier(n.id).Recipe {
			pending = append(pending, node{id: child, parent: count})
		}
	}
	return owned
}

// craftable reports whether id has a recipe whose members outside the queue
// are all owned, with at least one such member left to place.
func (s *comboSearch) craftable(id ModifierID) bool {
	m := s.catalog.Modifier(id)
	if m.IsBase() {
		return false
	}
	remaining := 0
	for _, member := range m.Recipe {
		if slices.Contains(s.queue, member) {
			continue
		}
		if !s.stash.Owns(member) {
			return false
		}
		remaining++
	}
	return remaining > 0
}

// usableFillers returns owned filler modifiers, most abundant first. With
// too few of them, base modifiers the player holds in bulk are used instead.
func (s *comboSearch) usableFillers() []ModifierID {
	var out []ModifierID
	for id := range s.fillerIDs {
		if s.stash.Owns(id) {
			out = append(out, id)
		}
	}
	if len(out) < s.cfg.MinFillers {
		out = out[:0]
		for _, m := range s.catalog.Modifiers() {
			if m.IsBase() && s.stash.Count(m.ID) > s.cfg.FallbackMinOwned {
				out = append(out, m.ID)
			}
		}
	}
	slices.SortFunc(out, func(a, b ModifierID) int {
		if c := cmp.Compare(s.stash.Count(b), s.stash.Count(a)); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return out
}

// ── Search loop ─────────────────────────────────────────────────────

// run explores candidate sets depth-first. The stack holds the chosen
// candidate indices; the top entry is the cursor to resume scanning after.
// Accepted indices are pushed twice: once as a choice, once as the cursor.
func (s *comboSearch) run() SearchResult {
	start := time.Now()
	stack := []int{-1}
	for len(stack) > 0 {
		if s.best != nil && time.Since(start) > s.cfg.TimeBudget {
			s.timedOut = true
			break
		}

		cursor := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		next, combo, value, ok := s.nextCandidate(stack, cursor)
		if !ok {
			continue
		}
		s.steps++

		if len(combo) == QueueLength {
			fillers := s.fillerCount(combo)
			if fillers == 0 {
				s.best = &scoredCombo{combo: combo, value: value}
				break
			}
			if fillers <= s.cfg.MaxFillers && s.improves(fillers, value) {
				s.best = &scoredCombo{combo: combo, value: value, fillers: fillers}
			}
		}
		stack = append(stack, next, next)
	}

	res := SearchResult{Steps: s.steps, TimedOut: s.timedOut}
	if s.best != nil {
		res.Combo = s.best.combo
		res.Value = s.best.value
		res.Fillers = s.best.fillers
		res.Source = SourceSearch
	}
	return res
}

// improves reports whether a complete combo beats the best so far: fewer
// fillers first, then at least the same value.
func (s *comboSearch) improves(fillers int, value float32) bool {
	if s.best == nil {
		return true
	}
	if fillers != s.best.fillers {
		return fillers < s.best.fillers
	}
	return value >= s.best.value
}

// nextCandidate scans the candidates after cursor for the first one that fits
// next to the chosen ones and can be ordered to produce every required
// modifier. It returns the candidate index with its best ordering.
func (s *comboSearch) nextCandidate(chosen []int, cursor int) (int, Combo, float32, bool) {
	chosenIDs := make(map[ModifierID]bool, QueueLength)
	chosenTotal := 0
	required := make(map[ModifierID]bool, QueueLength)
	for _, id := range s.queueProduced {
		required[id] = true
	}
	for _, i := range chosen {
		c := &s.candidates[i]
		for _, id := range c.recipe {
			chosenIDs[id] = true
		}
		chosenTotal += len(c.recipe)
		if !c.filler {
			required[c.produces] = true
		}
	}
	if len(chosenIDs) != chosenTotal {
		return 0, nil, 0, false
	}

	for j := cursor + 1; j < len(s.candidates); j++ {
		c := &s.candidates[j]
		overlap := false
		for _, id := range c.recipe {
			if chosenIDs[id] {
				overlap = true
				break
			}
		}
		if overlap {
			continue
		}

		ids := make([]ModifierID, 0, QueueLength+len(c.recipe))
		for id := range chosenIDs {
			ids = append(ids, id)
		}
		ids = append(ids, c.recipe...)
		for _, id := range s.queue {
			if !slices.Contains(ids, id) {
				ids = append(ids, id)
			}
		}
		if len(ids) > QueueLength {
			continue
		}

		req := required
		if !c.filler && !required[c.produces] {
			req = make(map[ModifierID]bool, len(required)+1)
			for id := range required {
				req[id] = true
			}
			req[c.produces] = true
		}
		if combo, value, ok := s.bestOrdering(ids, req); ok {
			return j, combo, value, true
		}
	}
	return 0, nil, 0, false
}

// bestOrdering tries every ordering of the unqueued ids after the queue and
// returns the most valuable one that produces all required modifiers. Values
// are compared by their floor; among equals the last ordering wins.
func (s *comboSearch) bestOrdering(ids []ModifierID, required map[ModifierID]bool) (Combo, float32, bool) {
	var rest []ModifierID
	for _, id := range ids {
		if !slices.Contains(s.queue, id) {
			rest = append(rest, id)
		}
	}
	slices.Sort(rest)

	var best Combo
	var bestValue float32
	bestFloor := math.MinInt
	found := false

	combo := make(Combo, len(s.queue), len(s.queue)+len(rest))
	copy(combo, s.queue)
	permute(rest, func(perm []ModifierID) {
		combo = append(combo[:len(s.queue)], perm...)
		produced := ProducedIDs(s.catalog, combo)
		for id := range required {
			if !produced[id] {
				return
			}
		}
		value := ComboValue(s.catalog, combo)
		if f := int(math.Floor(float64(value))); !found || f >= bestFloor {
			best, bestValue, bestFloor, found = combo.Clone(), value, f, true
		}
	})
	return best, bestValue, found
}

// fillerCount is the number of slots in a complete combo that do not go
// towards a roster modifier.
func (s *comboSearch) fillerCount(combo Combo) int {
	n := QueueLength
	for _, p := range Produce(s.catalog, combo) {
		if !s.fillerIDs[p.ID] {
			n -= len(p.Recipe)
		}
	}
	return n
}

// permute calls fn with every permutation of ids in lexicographic order of
// positions. fn must not retain its argument.
func permute(ids []ModifierID, fn func([]ModifierID)) {
	perm := make([]ModifierID, 0, len(ids))
	used := make([]bool, len(ids))
	var rec func()
	rec = func() {
		if len(perm) == len(ids) {
			fn(perm)
			return
		}
		for i, id := range ids {
			if used[i] {
				continue
			}
			used[i] = true
			perm = append(perm, id)
			rec()
			perm = perm[:len(perm)-1]
			used[i] = false
		}
	}
	rec()
}

// Describe rebuilds the result details for a combo that came from the cache.
func (e *Engine) Describe(settings *UserSettings, stash Stash, queue Queue, combo Combo) SearchResult {
	if combo == nil {
		return SearchResult{}
	}
	res := SearchResult{Combo: combo, Value: ComboValue(e.catalog, combo), Source: SourceSearch}
	if roster := suggestRosterCombo(settings, stash, queue); roster != nil && slices.Equal(roster, combo) {
		res.Source = SourceRoster
		return res
	}
	if len(combo) == QueueLength {
		res.Fillers = newComboSearch(e, settings, stash, queue).fillerCount(combo)
	}
	return res
}
