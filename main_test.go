//go:build !lambda

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetFlags(t *testing.T) {
	t.Cleanup(func() {
		jsonOut, showTiers, showComponents, forceInit = false, false, false, false
		settingsPath, requestPath, cachePath = "", "", ""
		budget = DefaultConfig().TimeBudget
	})
}

func testCmd() (*cobra.Command, *bytes.Buffer) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	return cmd, &out
}

func writeRequest(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "request.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestSuggestCmd(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()

	settingsPath = filepath.Join(dir, "settings.yaml")
	require.NoError(t, SaveSettings(settingsPath, rosterSettings(Combo{27, 28, 41, 43})))
	requestPath = writeRequest(t, dir, `{"stash": {"9": 1, "12": 1, "5": 1, "20": 1}, "queue": [20]}`)

	cmd, out := testCmd()
	require.NoError(t, runSuggest(cmd, nil))
	text := out.String()
	assert.Contains(t, text, "combo (search) value 39.00")
	assert.Contains(t, text, "-> 2. Arcane Buffer")
	assert.Contains(t, text, "makes Heralding Minions from Arcane Buffer + Dynamo")

	jsonOut = true
	cmd, out = testCmd()
	require.NoError(t, runSuggest(cmd, nil))
	var resp SuggestResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, Combo{20, 9, 5, 12}, resp.Combo)
	require.NotNil(t, resp.Next)
	assert.Equal(t, ModifierID(9), *resp.Next)
	assert.Equal(t, "Arcane Buffer", resp.NextName)
	assert.Equal(t, "search", resp.Source)
}

func TestSuggestCmdNoSuggestion(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	requestPath = writeRequest(t, dir, `{"stash": {}, "queue": []}`)

	cmd, out := testCmd()
	assert.ErrorIs(t, runSuggest(cmd, nil), ErrNoSuggestion)
	assert.Equal(t, "no suggestion\n", out.String())

	requestPath = writeRequest(t, dir, `{"stash": {}, "queue": [0, 1, 2, 3]}`)
	assert.ErrorIs(t, runSuggest(cmd, nil), ErrQueueFull)
}

func TestSuggestCmdCache(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	settingsPath = filepath.Join(dir, "settings.json")
	require.NoError(t, SaveSettings(settingsPath, rosterSettings(Combo{0, 1, 2, 3})))
	requestPath = writeRequest(t, dir, `{"stash": {"0": 1, "1": 1, "2": 1, "3": 1}}`)
	cachePath = filepath.Join(dir, "cache.zst")

	for range 2 {
		cmd, out := testCmd()
		require.NoError(t, runSuggest(cmd, nil))
		assert.Contains(t, out.String(), "combo (roster)")
	}
	assert.FileExists(t, cachePath)
}

func TestValueAndProduceCmds(t *testing.T) {
	resetFlags(t)

	cmd, out := testCmd()
	require.NoError(t, runValue(cmd, []string{"9", "12"}))
	assert.Contains(t, out.String(), "TOTAL")
	assert.Contains(t, out.String(), "11.00")

	cmd, out = testCmd()
	require.NoError(t, runProduce(cmd, []string{"9", "12", "5", "20"}))
	assert.Equal(t, "Heralding Minions <- [9 12]\nAssassin <- [5 20]\n", out.String())

	cmd, out = testCmd()
	require.NoError(t, runProduce(cmd, []string{"0"}))
	assert.Equal(t, "nothing crafted\n", out.String())

	assert.Error(t, runValue(cmd, []string{"abc"}))
	assert.Error(t, runValue(cmd, []string{"99"}))
	assert.Error(t, runValue(cmd, []string{"1", "1"}))
}

func TestCatalogCmd(t *testing.T) {
	resetFlags(t)
	showTiers, showComponents = true, true

	cmd, out := testCmd()
	require.NoError(t, runCatalog(cmd, nil))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Contains(t, lines[0], "Toxic [T1]")
	assert.Contains(t, out.String(), "Heralding Minions [T2]")
	assert.Contains(t, out.String(), "needs Dynamo x1, Arcane Buffer x1")
}

func TestSettingsCmds(t *testing.T) {
	resetFlags(t)
	path := filepath.Join(t.TempDir(), "settings.toml")

	cmd, out := testCmd()
	require.NoError(t, runSettingsInit(cmd, []string{path}))
	assert.Contains(t, out.String(), "wrote")
	assert.ErrorContains(t, runSettingsInit(cmd, []string{path}), "already exists")

	forceInit = true
	require.NoError(t, runSettingsInit(cmd, []string{path}))

	cmd, out = testCmd()
	require.NoError(t, runSettingsCheck(cmd, []string{path}))
	assert.Equal(t, "2 combos, 2 in roster, 6 forbidden\n", out.String())
}
