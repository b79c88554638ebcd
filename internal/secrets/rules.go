package secrets

// Rule is one secret pattern. When Keywords is non-empty the rule is only
// tried on text containing at least one of them (case-insensitive).
type Rule struct {
	ID       string   `koanf:"id"`
	Pattern  string   `koanf:"pattern"`
	Keywords []string `koanf:"keywords"`
}

// DefaultRules covers the credentials most likely to leak into a docs
// folder: LLM provider keys, cloud and forge tokens, key material and
// credential assignments.
func DefaultRules() []Rule {
	return []Rule{
		// LLM providers. The prefixes identify themselves.
		{ID: "groq-api-key", Pattern: `gsk_[A-Za-z0-9]{48,}`},
		{ID: "anthropic-api-key", Pattern: `sk-ant-[A-Za-z0-9_\-]{32,}`},
		{ID: "openai-api-key", Pattern: `sk-(?:proj-)?[A-Za-z0-9_\-]{40,}`},
		{ID: "huggingface-token", Pattern: `hf_[A-Za-z0-9]{34,}`},

		{ID: "aws-access-key-id", Pattern: `(?:AKIA|ASIA|AGPA|AIDA|AROA)[A-Z0-9]{16}`},
		{ID: "google-api-key", Pattern: `AIza[A-Za-z0-9_\-]{35}`},

		{ID: "github-token", Pattern: `(?:ghp|gho|ghu|ghs)_[A-Za-z0-9]{36}`},
		{ID: "github-fine-grained", Pattern: `github_pat_[A-Za-z0-9_]{22,}`},
		{ID: "gitlab-token", Pattern: `glpat-[A-Za-z0-9\-]{20,}`},
		{ID: "slack-token", Pattern: `xox[baprs]-[A-Za-z0-9\-]{10,}`},
		{ID: "jwt", Pattern: `eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*`},

		{
			ID:      "private-key",
			Pattern: `-----BEGIN (?:RSA |DSA |EC |OPENSSH |PGP )?PRIVATE KEY(?:[- ]BLOCK)?-----[\s\S]*?-----END (?:RSA |DSA |EC |OPENSSH |PGP )?PRIVATE KEY(?:[- ]BLOCK)?-----`,
		},
		{
			ID:       "connection-string",
			Pattern:  `(?i)(?:postgres(?:ql)?|mysql|mongodb(?:\+srv)?|redis|amqp)://[^:\s]+:[^@\s]+@\S+`,
			Keywords: []string{"://"},
		},
		{
			ID:       "credential-assignment",
			Pattern:  `(?i)(?:api[_-]?key|secret|password|passwd|token)["']?\s*[:=]\s*["']?[^\s"']{8,}["']?`,
			Keywords: []string{"key", "secret", "pass", "token"},
		},
	}
}
