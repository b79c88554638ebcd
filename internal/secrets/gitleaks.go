package secrets

import (
	"fmt"
	"strings"
	"sync"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// GitleaksRulePrefix prefixes rule IDs reported by the gitleaks detector.
const GitleaksRulePrefix = "gitleaks/"

// GitleaksDetector runs the gitleaks default rule set over text.
type GitleaksDetector struct {
	mu       sync.Mutex
	detector *detect.Detector
}

// NewGitleaksDetector loads the gitleaks default configuration.
func NewGitleaksDetector() (*GitleaksDetector, error) {
	d, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("loading gitleaks config: %w", err)
	}
	return &GitleaksDetector{detector: d}, nil
}

// WithGitleaks adds the gitleaks rule set on top of the regexp rules.
// Every occurrence of each reported secret is redacted.
func WithGitleaks(d *GitleaksDetector) Option {
	return func(s *Scrubber) {
		s.gitleaks = d
	}
}

// spans returns the positions of every secret gitleaks reports in text,
// keyed by prefixed rule ID.
func (g *GitleaksDetector) spans(text string) map[string][]span {
	g.mu.Lock()
	findings := g.detector.DetectString(text)
	g.mu.Unlock()

	out := make(map[string][]span)
	for _, f := range findings {
		if f.Secret == "" {
			continue
		}
		id := GitleaksRulePrefix + f.RuleID
		for off := 0; ; {
			i := strings.Index(text[off:], f.Secret)
			if i < 0 {
				break
			}
			start := off + i
			out[id] = append(out[id], span{start, start + len(f.Secret)})
			off = start + len(f.Secret)
		}
	}
	return out
}
