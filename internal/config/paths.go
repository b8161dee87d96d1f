package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Dir returns the per-user configuration directory, ~/.handy-local-rules.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// ExpandHome replaces a leading "~/" with home.
func ExpandHome(path, home string) string {
	if home == "" {
		return path
	}
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

// Find locates the configuration file. An explicit path must exist.
// Otherwise ./config.json and then ~/.handy-local-rules/config.json are
// tried. Returns "" when no file is found.
func Find(explicit string) (string, error) {
	home, _ := os.UserHomeDir()
	return find(explicit, home)
}

func find(explicit, home string) (string, error) {
	if explicit != "" {
		path := ExpandHome(explicit, home)
		if exists(path) {
			return path, nil
		}
		return "", fmt.Errorf("%w: %s", ErrNotFound, explicit)
	}

	candidates := []string{FileName}
	if home != "" {
		candidates = append(candidates, filepath.Join(home, DirName, FileName))
	}
	for _, c := range candidates {
		if exists(c) {
			return c, nil
		}
	}
	return "", nil
}

// Sources resolves the configured rules paths into loader sources.
//
// Configured paths are kept in order with "~/" expanded. When only the
// default rules.json is configured, the standard locations are searched
// too: ./rules.json if present, ~/.handy-local-rules/rules.json if
// present, and every *.json in ~/.handy-local-rules. Duplicates are
// dropped, keeping the first occurrence.
func (c Config) Sources() []string {
	home, _ := os.UserHomeDir()
	return sources(c.RulesPaths, home)
}

func sources(paths []string, home string) []string {
	var out []string
	add := func(p string) {
		if !slices.Contains(out, p) {
			out = append(out, p)
		}
	}

	onlyDefault := len(paths) == 0 || (len(paths) == 1 && paths[0] == RulesFileName)
	if !onlyDefault {
		for _, p := range paths {
			add(ExpandHome(p, home))
		}
		return out
	}

	if exists(RulesFileName) {
		add(RulesFileName)
	}
	if home != "" {
		dir := filepath.Join(home, DirName)
		if rules := filepath.Join(dir, RulesFileName); exists(rules) {
			add(rules)
		}
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			add(filepath.Join(dir, "*.json"))
		}
	}
	if len(out) == 0 {
		// Nothing found; keep the default so the loader reports it missing.
		add(RulesFileName)
	}
	return out
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, fs.ErrNotExist)
}

// NonRuleFiles lists configuration files that may sit next to rule files
// and match a rules glob. The loader must skip them.
func (c Config) NonRuleFiles() []string {
	var out []string
	if c.Source != "" {
		out = append(out, c.Source)
	}
	if dir, err := Dir(); err == nil {
		out = append(out, filepath.Join(dir, FileName))
	}
	return out
}
