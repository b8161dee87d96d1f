package loader

import (
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveEnabled_JSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "rules.json", `[{"id":"a","pattern":"a"},{"id":"b","pattern":"b","enabled":true,"custom":"kept"}]`)

	require.NoError(t, SaveEnabled(path, "b", false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, len(data) > 0 && data[len(data)-1] == '\n', "file ends with newline")

	var got []map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, 2)
	assert.NotContains(t, got[0], "enabled", "other rules untouched")
	assert.Equal(t, false, got[1]["enabled"])
	assert.Equal(t, "kept", got[1]["custom"], "unknown fields survive")

	// Reloading the rewritten file reflects the change
	res := Load([]string{path}, Options{})
	b, ok := res.Set.Lookup("b")
	require.True(t, ok)
	assert.False(t, b.Enabled())
}

func TestSaveEnabled_JSONKeepsNumbersAndStrayElements(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "rules.json",
		`[{"id":"big","pattern":"a","priority":9007199254740993,"timeout_ms":1500}, "stray", 42]`)

	require.NoError(t, SaveEnabled(path, "big", false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "9007199254740993")
	assert.Contains(t, string(data), "1500")
	assert.NotContains(t, string(data), "e+")

	var got []json.RawMessage
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, 3)
	assert.JSONEq(t, `"stray"`, string(got[1]))
	assert.JSONEq(t, `42`, string(got[2]))

	res := Load([]string{path}, Options{})
	c, ok := res.Set.Lookup("big")
	require.True(t, ok)
	assert.False(t, c.Enabled())
	assert.Equal(t, 9007199254740993, c.Rule().Priority)
}

func TestSaveEnabled_YAMLKeepsComments(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "rules.yaml", "# punctuation\n- id: a\n  pattern: a\n  enabled: true\n- id: b\n  pattern: b\n")

	require.NoError(t, SaveEnabled(path, "a", false))
	require.NoError(t, SaveEnabled(path, "b", false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# punctuation")

	res := Load([]string{path}, Options{})
	for _, id := range []string{"a", "b"} {
		c, ok := res.Set.Lookup(id)
		require.True(t, ok, id)
		assert.False(t, c.Enabled(), id)
	}
}

func TestSaveEnabled_UnknownID(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "rules.json", `[{"id":"a","pattern":"a"}]`)

	err := SaveEnabled(path, "zzz", false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRuleNotInFile))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"a","pattern":"a"}]`, string(data), "file untouched on failure")
}

func TestSaveEnabled_PreservesMode(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "rules.json", `[{"id":"a","pattern":"a"}]`)
	require.NoError(t, os.Chmod(path, 0o600))

	require.NoError(t, FilePersister{}.SaveEnabled(path, "a", false))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}
