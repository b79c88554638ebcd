// Package secrets redacts credentials from document text before it is
// embedded and stored.
package secrets

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// DefaultRedaction replaces every detected secret.
const DefaultRedaction = "[REDACTED]"

// Result is the outcome of scrubbing one text.
type Result struct {
	Text string

	// Redactions counts matches before overlapping spans were merged.
	Redactions int
	ByRule     map[string]int
}

// Scrubber detects and redacts secrets. It is safe for concurrent use.
// The zero value is not usable; construct with New or MustNew.
type Scrubber struct {
	rules     []compiledRule
	allow     []*regexp.Regexp
	sources   []*regexp.Regexp
	redaction string
	gitleaks  *GitleaksDetector
}

type compiledRule struct {
	id       string
	pattern  *regexp.Regexp
	keywords []string
}

type span struct{ start, end int }

// Option configures a Scrubber.
type Option func(*Scrubber)

// WithRedaction sets the replacement string.
func WithRedaction(s string) Option {
	return func(sc *Scrubber) {
		if s != "" {
			sc.redaction = s
		}
	}
}

// WithAllowList skips matches that match any of the given patterns.
func WithAllowList(patterns ...*regexp.Regexp) Option {
	return func(sc *Scrubber) {
		sc.allow = append(sc.allow, patterns...)
	}
}

// WithAllowedSources leaves text from matching document sources untouched
// in ScrubSource.
func WithAllowedSources(patterns ...*regexp.Regexp) Option {
	return func(sc *Scrubber) {
		sc.sources = append(sc.sources, patterns...)
	}
}

// New compiles rules. A nil rules slice selects DefaultRules.
func New(rules []Rule, opts ...Option) (*Scrubber, error) {
	if rules == nil {
		rules = DefaultRules()
	}

	s := &Scrubber{redaction: DefaultRedaction}
	for i, r := range rules {
		if r.ID == "" {
			return nil, fmt.Errorf("rule %d: id is required", i)
		}
		if r.Pattern == "" {
			return nil, fmt.Errorf("rule %s: pattern is required", r.ID)
		}
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %s: invalid pattern: %w", r.ID, err)
		}
		kws := make([]string, len(r.Keywords))
		for j, kw := range r.Keywords {
			kws[j] = strings.ToLower(kw)
		}
		s.rules = append(s.rules, compiledRule{id: r.ID, pattern: re, keywords: kws})
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// MustNew is New for the default rules; it panics if they fail to compile.
func MustNew(opts ...Option) *Scrubber {
	s, err := New(nil, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// Scrub returns text with every match replaced by the redaction string.
// Overlapping matches collapse into a single redaction.
func (s *Scrubber) Scrub(text string) Result {
	res := Result{Text: text, ByRule: map[string]int{}}
	if text == "" {
		return res
	}

	lower := strings.ToLower(text)
	var spans []span
	for _, r := range s.rules {
		if !r.applies(lower) {
			continue
		}
		for _, m := range r.pattern.FindAllStringIndex(text, -1) {
			if s.allowed(text[m[0]:m[1]]) {
				continue
			}
			spans = append(spans, span{m[0], m[1]})
			res.ByRule[r.id]++
			res.Redactions++
		}
	}
	if s.gitleaks != nil {
		for id, found := range s.gitleaks.spans(text) {
			for _, sp := range found {
				if s.allowed(text[sp.start:sp.end]) {
					continue
				}
				spans = append(spans, sp)
				res.ByRule[id]++
				res.Redactions++
			}
		}
	}
	if len(spans) == 0 {
		return res
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, sp := range merge(spans) {
		b.WriteString(text[last:sp.start])
		b.WriteString(s.redaction)
		last = sp.end
	}
	b.WriteString(text[last:])
	res.Text = b.String()
	return res
}

// ScrubSource is Scrub for text read from source, which is returned
// unchanged when source is allowlisted.
func (s *Scrubber) ScrubSource(source, text string) Result {
	for _, re := range s.sources {
		if re.MatchString(source) {
			return Result{Text: text, ByRule: map[string]int{}}
		}
	}
	return s.Scrub(text)
}

func (r compiledRule) applies(lower string) bool {
	if len(r.keywords) == 0 {
		return true
	}
	for _, kw := range r.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func (s *Scrubber) allowed(match string) bool {
	for _, re := range s.allow {
		if re.MatchString(match) {
			return true
		}
	}
	return false
}

// merge sorts spans and joins overlapping or touching ones.
func merge(spans []span) []span {
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	out := spans[:1]
	for _, sp := range spans[1:] {
		last := &out[len(out)-1]
		if sp.start <= last.end {
			if sp.end > last.end {
				last.end = sp.end
			}
			continue
		}
		out = append(out, sp)
	}
	return out
}
