package ingest

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// IgnoreFile lists gitignore-style patterns, relative to the docs
// directory, for files Load must not index.
const IgnoreFile = ".ragignore"

type ignoreRules struct {
	files []string
	dirs  []string
}

func loadIgnore(root string) (ignoreRules, error) {
	var rules ignoreRules

	f, err := os.Open(filepath.Join(root, IgnoreFile))
	if err != nil {
		if os.IsNotExist(err) {
			return rules, nil
		}
		return rules, fmt.Errorf("reading %s: %w", IgnoreFile, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t")
		// Negation is not supported.
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		if _, err := path.Match(strings.Trim(line, "/"), "x"); err != nil {
			return rules, fmt.Errorf("%s: invalid pattern %q: %w", IgnoreFile, line, err)
		}
		if strings.HasSuffix(line, "/") {
			rules.dirs = append(rules.dirs, strings.TrimSuffix(line, "/"))
			continue
		}
		rules.files = append(rules.files, line)
	}
	if err := scanner.Err(); err != nil {
		return rules, fmt.Errorf("reading %s: %w", IgnoreFile, err)
	}
	return rules, nil
}

// match reports whether the file at rel is ignored. A pattern without a
// slash matches the base name at any depth; a leading slash anchors the
// pattern to the docs directory.
func (r ignoreRules) match(rel string) bool {
	if rel == IgnoreFile {
		return true
	}
	for _, p := range r.files {
		if matchPattern(p, rel) {
			return true
		}
	}
	return false
}

func (r ignoreRules) matchDir(rel string) bool {
	for _, p := range r.dirs {
		if matchPattern(p, rel) {
			return true
		}
	}
	return r.match(rel)
}

func matchPattern(pattern, rel string) bool {
	pattern, anchored := strings.CutPrefix(pattern, "/")
	if !anchored && !strings.Contains(pattern, "/") {
		ok, _ := path.Match(pattern, path.Base(rel))
		return ok
	}
	ok, _ := path.Match(pattern, rel)
	return ok
}
