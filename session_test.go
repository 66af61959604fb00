package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func waitSuggestion(t *testing.T, s *Session) Suggestion {
	t.Helper()
	select {
	case res := <-s.Results():
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a suggestion")
		return Suggestion{}
	}
}

func TestSessionActivate(t *testing.T) {
	defer goleak.VerifyNone(t)

	cache := NewSuggestionCache(newTestEngine())
	s := NewSession(cache, rosterSettings(Combo{27, 28, 41, 43}), "")

	state, _ := s.State()
	assert.Equal(t, StateHidden, state)

	id, err := s.Activate(ownAll(9, 12, 5, 20), Queue{20})
	require.NoError(t, err)
	res := waitSuggestion(t, s)
	s.Wait()

	assert.Equal(t, id, res.ID)
	assert.NoError(t, res.Err)
	assert.Equal(t, Combo{20, 9, 5, 12}, res.Combo)
	assert.Equal(t, ModifierID(9), res.Next)

	state, current := s.State()
	assert.Equal(t, StateComputed, state)
	assert.Equal(t, id, current)
	require.NotNil(t, s.Current())
	assert.Equal(t, res.Combo, s.Current().Combo)

	s.Dismiss()
	state, _ = s.State()
	assert.Equal(t, StateHidden, state)
	assert.Nil(t, s.Current())
}

func TestSessionLogicErrors(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewSession(NewSuggestionCache(newTestEngine()), DefaultSettings(), "")

	_, err := s.Activate(Stash{}, nil)
	require.NoError(t, err)
	res := waitSuggestion(t, s)
	assert.ErrorIs(t, res.Err, ErrNoSuggestion)
	assert.Nil(t, res.Combo)
	state, _ := s.State()
	assert.Equal(t, StateLogicError, state)

	_, err = s.Activate(ownAll(0, 1, 2, 3), Queue{0, 1, 2, 3})
	require.NoError(t, err, "a finished computation does not block the next one")
	res = waitSuggestion(t, s)
	assert.ErrorIs(t, res.Err, ErrQueueFull)
	s.Wait()
}

func TestSessionRejectsOverlappingActivations(t *testing.T) {
	defer goleak.VerifyNone(t)

	cache := NewSuggestionCache(newTestEngine())
	s := NewSession(cache, rosterSettings(Combo{27}), "")

	// Hold the cache so the computation cannot finish.
	cache.mu.Lock()
	id, err := s.Activate(Stash{9: 1, 12: 1, 0: 5, 1: 2}, nil)
	require.NoError(t, err)

	_, err = s.Activate(Stash{}, nil)
	assert.ErrorIs(t, err, ErrBusy)
	state, _ := s.State()
	assert.Equal(t, StateComputing, state)
	cache.mu.Unlock()

	res := waitSuggestion(t, s)
	s.Wait()
	assert.Equal(t, id, res.ID)
	assert.Equal(t, Combo{9, 1, 12, 0}, res.Combo)
}

func TestSessionDropsStaleResults(t *testing.T) {
	defer goleak.VerifyNone(t)

	cache := NewSuggestionCache(newTestEngine())
	s := NewSession(cache, rosterSettings(Combo{27, 28, 41, 43}), "")

	cache.mu.Lock()
	first, err := s.Activate(ownAll(9, 12, 5, 20), nil)
	require.NoError(t, err)
	s.Dismiss()
	second, err := s.Activate(ownAll(9, 12, 5, 20), Queue{20})
	require.NoError(t, err)
	require.NotEqual(t, first, second)
	cache.mu.Unlock()

	s.Wait()
	require.Len(t, s.Results(), 1)
	res := <-s.Results()
	assert.Equal(t, second, res.ID)
	assert.Equal(t, Queue{20}, res.Queue)
}

func TestSessionSavesDirtyCache(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := filepath.Join(t.TempDir(), "cache.zst")
	engine := newTestEngine()
	cache := NewSuggestionCache(engine)
	s := NewSession(cache, rosterSettings(Combo{27}), path)

	_, err := s.Activate(Stash{9: 1, 12: 1, 0: 5, 1: 2}, nil)
	require.NoError(t, err)
	waitSuggestion(t, s)
	s.Wait()

	assert.FileExists(t, path)
	assert.False(t, cache.Dirty())

	loaded, err := LoadSuggestionCache(path, engine)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Len())
	assert.Equal(t, Combo{9, 1, 12, 0}, loaded.Last())
}

func TestSessionSetSettings(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewSession(NewSuggestionCache(newTestEngine()), DefaultSettings(), "")
	s.SetSettings(rosterSettings(Combo{0, 1, 2, 3}))
	assert.Len(t, s.Settings().Roster(), 1)

	_, err := s.Activate(ownAll(0, 1, 2, 3), nil)
	require.NoError(t, err)
	res := waitSuggestion(t, s)
	s.Wait()
	assert.Equal(t, Combo{0, 1, 2, 3}, res.Combo)
}
