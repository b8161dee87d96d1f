package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand_DirectorySortedJSONOnly(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.json", `[]`)
	writeFile(t, dir, "a.json", `[]`)
	writeFile(t, dir, "notes.txt", ``)
	writeFile(t, dir, "c.yaml", ``)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.json"), 0o755))

	files, errs := Expand([]string{dir})

	assert.Empty(t, errs)
	assert.Equal(t, []string{filepath.Join(dir, "a.json"), filepath.Join(dir, "b.json")}, files)
}

func TestExpand_Glob(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "10-base.json", `[]`)
	writeFile(t, dir, "20-extra.json", `[]`)
	writeFile(t, dir, "other.txt", ``)

	files, errs := Expand([]string{filepath.Join(dir, "*.json")})

	assert.Empty(t, errs)
	assert.Equal(t, []string{filepath.Join(dir, "10-base.json"), filepath.Join(dir, "20-extra.json")}, files)
}

func TestExpand_GlobNoMatchesIsNotAnError(t *testing.T) {
	files, errs := Expand([]string{filepath.Join(t.TempDir(), "*.json")})
	assert.Empty(t, files)
	assert.Empty(t, errs)
}

func TestExpand_ListKeepsOrderAndDeduplicates(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.json", `[]`)
	z := writeFile(t, dir, "z.json", `[]`)

	files, errs := Expand([]string{z, dir, a})

	assert.Empty(t, errs)
	assert.Equal(t, []string{z, a}, files, "z first as listed, then a from the directory")
}

func TestExpand_Missing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.json")

	files, errs := Expand([]string{missing})

	assert.Empty(t, files)
	require.Len(t, errs, 1)
	var se *SourceError
	require.ErrorAs(t, errs[0], &se)
	assert.Equal(t, ErrCodeSourceMissing, se.Code)
	assert.True(t, IsSourceError(errs[0]))
}

func TestWatchTargets(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "rules.d")
	require.NoError(t, os.Mkdir(sub, 0o755))

	targets := WatchTargets([]string{
		filepath.Join(dir, "rules.json"),
		sub,
		filepath.Join(dir, "*.json"),
	})

	assert.Equal(t, []string{dir, sub}, targets)
}

func TestRelevant(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "rules.d")
	require.NoError(t, os.Mkdir(sub, 0o755))
	file := filepath.Join(dir, "rules.json")
	sources := []string{file, sub, filepath.Join(dir, "extra-*.json")}

	assert.True(t, Relevant(sources, file))
	assert.True(t, Relevant(sources, filepath.Join(sub, "new.json")))
	assert.True(t, Relevant(sources, filepath.Join(dir, "extra-1.json")))

	assert.False(t, Relevant(sources, filepath.Join(dir, "config.json")))
	assert.False(t, Relevant(sources, filepath.Join(sub, ".handy-rules-123.tmp")))
	assert.False(t, Relevant(sources, filepath.Join(sub, "deeper", "x.json")))
}
