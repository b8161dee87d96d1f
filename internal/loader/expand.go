package loader

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Expand resolves source descriptors into an ordered, de-duplicated list of
// rule files.
//
// Each source is handled in the order given:
//   - a directory expands to its *.json members, sorted lexically
//   - an existing file is used as-is
//   - a pattern containing glob metacharacters expands to its sorted matches
//   - anything else is a SOURCE_MISSING error
//
// A file reached through several sources keeps its first position.
func Expand(sources []string) ([]string, []error) {
	var (
		files []string
		errs  []error
		seen  = make(map[string]bool)
	)

	add := func(path string) {
		key := path
		if abs, err := filepath.Abs(path); err == nil {
			key = abs
		}
		if seen[key] {
			return
		}
		seen[key] = true
		files = append(files, path)
	}

	for _, src := range sources {
		matched, err := expandOne(src)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, f := range matched {
			add(f)
		}
	}

	return files, errs
}

func expandOne(src string) ([]string, error) {
	info, err := os.Stat(src)
	switch {
	case err == nil && info.IsDir():
		return jsonFilesIn(src)

	case err == nil:
		return []string{src}, nil

	case hasGlobMeta(src):
		matches, globErr := filepath.Glob(src)
		if globErr != nil {
			return nil, &SourceError{Code: ErrCodeSourceRead, Path: src, Err: globErr}
		}
		sort.Strings(matches)
		var out []string
		for _, m := range matches {
			if fi, statErr := os.Stat(m); statErr == nil && fi.Mode().IsRegular() {
				out = append(out, m)
			}
		}
		return out, nil

	case errors.Is(err, fs.ErrNotExist):
		return nil, &SourceError{Code: ErrCodeSourceMissing, Path: src, Err: err}

	default:
		return nil, &SourceError{Code: ErrCodeSourceRead, Path: src, Err: err}
	}
}

func jsonFilesIn(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &SourceError{Code: ErrCodeSourceRead, Path: dir, Err: err}
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

func hasGlobMeta(path string) bool {
	return strings.ContainsAny(path, "*?[")
}

// WatchTargets returns the paths a watcher must observe to see every change
// relevant to sources: directories themselves, and the parent directory of
// files and glob patterns. Editors often replace files by rename, which
// only the parent directory reports.
func WatchTargets(sources []string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, src := range sources {
		if info, err := os.Stat(src); err == nil && info.IsDir() {
			add(src)
			continue
		}
		dir := filepath.Dir(src)
		// A glob may sit in the directory part too; walk up to a literal prefix
		for hasGlobMeta(dir) {
			dir = filepath.Dir(dir)
		}
		add(dir)
	}
	return out
}

// Relevant reports whether a change to path can affect what sources load.
// Paths are compared in absolute form.
func Relevant(sources []string, path string) bool {
	path = absClean(path)
	for _, src := range sources {
		if info, err := os.Stat(src); err == nil && info.IsDir() {
			if filepath.Dir(path) == absClean(src) && strings.EqualFold(filepath.Ext(path), ".json") {
				return true
			}
			continue
		}
		abs := absClean(src)
		if path == abs {
			return true
		}
		if hasGlobMeta(src) {
			if ok, _ := filepath.Match(abs, path); ok {
				return true
			}
		}
	}
	return false
}

func absClean(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
