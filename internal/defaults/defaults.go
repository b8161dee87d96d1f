// Package defaults ships the built-in punctuation rule set and an example
// configuration, and installs them into the user's config directory.
package defaults

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Rules is the default punctuation rule set (JSON array of rules).
//
//go:embed rules.json
var Rules []byte

// Config is an example configuration file.
//
//go:embed config.example.json
var Config []byte

// SetupResult reports what Install did.
type SetupResult struct {
	Dir     string   `json:"dir"`
	Written []string `json:"written"`
	Skipped []string `json:"skipped"`
}

// Install writes rules.json and config.json into dir, creating it if
// needed. Existing files are left alone unless force is set.
func Install(dir string, force bool) (*SetupResult, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}

	res := &SetupResult{Dir: dir}
	files := []struct {
		name string
		data []byte
	}{
		{"rules.json", Rules},
		{"config.json", Config},
	}

	for _, f := range files {
		path := filepath.Join(dir, f.name)
		_, err := os.Stat(path)
		switch {
		case err == nil && !force:
			res.Skipped = append(res.Skipped, path)
			continue
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			return res, fmt.Errorf("stat %s: %w", path, err)
		}
		if err := os.WriteFile(path, f.data, 0o644); err != nil {
			return res, fmt.Errorf("write %s: %w", path, err)
		}
		res.Written = append(res.Written, path)
	}
	return res, nil
}
