package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequest(t *testing.T) {
	c := DefaultCatalog()

	req, err := ParseRequest(c, []byte(`{"stash": {"9": 2, "12": 1, "40": 0}, "queue": [20, 5]}`))
	require.NoError(t, err)
	assert.Equal(t, Stash{9: 2, 12: 1}, req.Stash)
	assert.Equal(t, Queue{20, 5}, req.Queue)
	assert.NoError(t, req.CheckQueue())

	req, err = ParseRequest(c, []byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, req.Stash)
	assert.Empty(t, req.Queue)

	req, err = ParseRequest(c, []byte(`{"queue": [0, 1, 2, 3]}`))
	require.NoError(t, err)
	assert.ErrorIs(t, req.CheckQueue(), ErrQueueFull)
}

func TestParseRequestErrors(t *testing.T) {
	c := DefaultCatalog()
	tests := []struct {
		name string
		data string
		want string
	}{
		{"invalid json", `{"stash": `, "invalid JSON"},
		{"not an object", `[1, 2]`, "must be a JSON object"},
		{"stash not an object", `{"stash": [1]}`, "stash must be an object"},
		{"stash key not numeric", `{"stash": {"toxic": 1}}`, `"toxic" is not a modifier id`},
		{"stash unknown id", `{"stash": {"99": 1}}`, "unknown modifier 99"},
		{"stash negative count", `{"stash": {"1": -1}}`, "non-negative integer"},
		{"stash fractional count", `{"stash": {"1": 1.5}}`, "non-negative integer"},
		{"queue not an array", `{"queue": 3}`, "queue must be an array"},
		{"queue entry not a number", `{"queue": ["3"]}`, "not a modifier id"},
		{"queue unknown id", `{"queue": [250]}`, "unknown modifier 250"},
		{"queue duplicate", `{"queue": [3, 3]}`, "listed twice"},
		{"queue too long", `{"queue": [0, 1, 2, 3, 4]}`, "at most 4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRequest(c, []byte(tt.data))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoadRequest(t *testing.T) {
	c := DefaultCatalog()
	dir := t.TempDir()

	path := filepath.Join(dir, "request.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"stash": {"0": 1}, "queue": []}`), 0o644))
	req, err := LoadRequest(c, path)
	require.NoError(t, err)
	assert.Equal(t, Stash{0: 1}, req.Stash)

	require.NoError(t, os.WriteFile(path, []byte(`{"queue": [99]}`), 0o644))
	_, err = LoadRequest(c, path)
	assert.ErrorContains(t, err, "request.json")

	_, err = LoadRequest(c, filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
