package main

import (
	"errors"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrBusy is returned by Activate while a computation is in flight.
	ErrBusy = errors.New("a suggestion is already being computed")
	// ErrNoSuggestion is reported when no combo can be suggested.
	ErrNoSuggestion = errors.New("no combo to suggest")
)

// SessionState is where a session is in its activation cycle.
type SessionState int

const (
	StateHidden SessionState = iota
	StateComputing
	StateComputed
	StateLogicError
)

func (s SessionState) String() string {
	switch s {
	case StateComputing:
		return "computing"
	case StateComputed:
		return "computed"
	case StateLogicError:
		return "logic-error"
	}
	return "hidden"
}

// Suggestion is the outcome of one activation. Err is ErrNoSuggestion or
// ErrQueueFull when Combo is nil.
type Suggestion struct {
	ID    uint64
	Stash Stash
	Queue Queue
	Combo Combo
	Next  ModifierID
	Err   error
}

// Session drives activations: each one computes a suggestion on its own
// goroutine and publishes it unless the session was dismissed or
// reactivated meanwhile.
type Session struct {
	cache     *SuggestionCache
	cachePath string
	results   chan Suggestion
	wg        sync.WaitGroup

	mu         sync.Mutex
	settings   *UserSettings
	state      SessionState
	activation uint64
	current    *Suggestion
}

// NewSession creates a hidden session. When cachePath is non-empty the cache
// is saved there after every computation that changed it.
func NewSession(cache *SuggestionCache, settings *UserSettings, cachePath string) *Session {
	return &Session{
		cache:     cache,
		cachePath: cachePath,
		results:   make(chan Suggestion, 1),
		settings:  settings.Clone(),
	}
}

// SetSettings replaces the settings used by later activations.
func (s *Session) SetSettings(settings *UserSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings.Clone()
}

// Settings returns a copy of the settings later activations use.
func (s *Session) Settings() *UserSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.Clone()
}

// State returns the current state and the id of the latest activation.
func (s *Session) State() (SessionState, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.activation
}

// Current returns the published suggestion, nil unless the session is in
// StateComputed or StateLogicError.
func (s *Session) Current() *Suggestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	out := *s.current
	return &out
}

// Results delivers published suggestions. Only the newest unread one is kept.
func (s *Session) Results() <-chan Suggestion {
	return s.results
}

// Activate starts computing a suggestion for the snapshot and returns its
// activation id.
func (s *Session) Activate(stash Stash, queue Queue) (uint64, error) {
	s.mu.Lock()
	if s.state == StateComputing {
		s.mu.Unlock()
		return 0, ErrBusy
	}
	s.activation++
	id := s.activation
	s.state = StateComputing
	s.current = nil
	settings := s.settings
	s.mu.Unlock()

	logger.Debug("activation started", zap.Uint64("activation", id), zapCombo("queue", queue))
	s.wg.Add(1)
	go s.compute(id, settings, stash.Clone(), queue.Clone())
	return id, nil
}

func (s *Session) compute(id uint64, settings *UserSettings, stash Stash, queue Queue) {
	defer s.wg.Done()

	res := Suggestion{ID: id, Stash: stash, Queue: queue}
	if len(queue) >= QueueLength {
		res.Err = ErrQueueFull
	} else {
		res.Combo = s.cache.Suggest(settings, stash, queue)
		if next, ok := NextModifier(res.Combo, queue); ok {
			res.Next = next
		} else {
			res.Err = ErrNoSuggestion
		}
	}

	if s.cachePath != "" && s.cache.Dirty() {
		if err := s.cache.Save(s.cachePath); err != nil {
			logger.Error("failed to save suggestion cache", zap.Error(err))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateComputing || s.activation != id {
		logger.Debug("dropping stale suggestion", zap.Uint64("activation", id), zap.Uint64("current", s.activation))
		return
	}
	if res.Err != nil {
		s.state = StateLogicError
	} else {
		s.state = StateComputed
	}
	s.current = &res
	select {
	case <-s.results:
	default:
	}
	s.results <- res
}

// Dismiss hides the session. A computation still running is left to finish
// and its result is dropped.
func (s *Session) Dismiss() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateHidden
	s.current = nil
}

// Wait blocks until every started computation has returned.
func (s *Session) Wait() {
	s.wg.Wait()
}
