package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/BurntSushi/toml"
)

// AllowlistFile is the per-directory allowlist read by LoadAllowlists.
const AllowlistFile = ".ragsecrets.toml"

var (
	// ErrInvalidTOML indicates an allowlist file that does not parse.
	ErrInvalidTOML = errors.New("invalid allowlist TOML")

	// ErrInvalidRegex indicates an allowlist pattern that does not compile.
	ErrInvalidRegex = errors.New("invalid allowlist regex")
)

// Allowlist holds patterns exempt from redaction.
//
//	[allowlist]
//	paths   = ['^examples/']        # document sources left unscrubbed
//	regexes = ['EXAMPLE$', '@example\.com']
type Allowlist struct {
	Paths   []string // source path regex patterns
	Regexes []string // matched text regex patterns
}

// LoadAllowlists merges the allowlist in docsDir with the one at userPath.
// Either may be empty to skip it; missing files are ignored.
func LoadAllowlists(docsDir, userPath string) (*Allowlist, error) {
	merged := &Allowlist{}

	var files []string
	if docsDir != "" {
		files = append(files, filepath.Join(docsDir, AllowlistFile))
	}
	if userPath != "" {
		files = append(files, userPath)
	}

	for _, f := range files {
		a, err := loadTOML(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		merged.Paths = append(merged.Paths, a.Paths...)
		merged.Regexes = append(merged.Regexes, a.Regexes...)
	}
	return merged, nil
}

// Options converts the allowlist into scrubber options.
func (a *Allowlist) Options() ([]Option, error) {
	if a == nil {
		return nil, nil
	}
	paths, err := compileAll(a.Paths)
	if err != nil {
		return nil, err
	}
	regexes, err := compileAll(a.Regexes)
	if err != nil {
		return nil, err
	}

	var opts []Option
	if len(paths) > 0 {
		opts = append(opts, WithAllowedSources(paths...))
	}
	if len(regexes) > 0 {
		opts = append(opts, WithAllowList(regexes...))
	}
	return opts, nil
}

func loadTOML(path string) (*Allowlist, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	var config struct {
		Allowlist struct {
			Paths   []string
			Regexes []string
		}
	}
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTOML, path, err)
	}

	// fail on load rather than on the first document
	for _, set := range [][]string{config.Allowlist.Paths, config.Allowlist.Regexes} {
		if _, err := compileAll(set); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	return &Allowlist{
		Paths:   config.Allowlist.Paths,
		Regexes: config.Allowlist.Regexes,
	}, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidRegex, p, err)
		}
		out = append(out, re)
	}
	return out, nil
}
