package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// packageDir is the package source directory. Tests chdir into a
// sandbox, so fixtures are resolved against it.
var packageDir, _ = os.Getwd()

const punctuationRules = `[
  {"id": "period", "pattern": "\\s*\\bperiod\\b", "replacement": ".", "priority": 90},
  {"id": "comma", "description": "spoken comma", "pattern": "\\s*\\bcomma\\b\\s*", "replacement": ", ", "priority": 100},
  {"id": "tidy", "type": "function", "pattern": "trim", "enabled": false}
]
`

// sandbox isolates a test from the user's configuration: HOME and the
// working directory both point at a fresh temp dir, which is returned.
func sandbox(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Chdir(dir)
	return dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand("test")
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}
