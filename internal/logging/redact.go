package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/portfolio-rag/internal/secrets"
)

const redactedValue = "[REDACTED]"

// redactor decides what a log field may show. Keys naming a credential
// hide the whole value; other strings pass through the same scrubber
// ingestion uses on documents, so a token pasted into a question or an
// upstream error body is masked in place.
type redactor struct {
	keys     []string
	scrubber *secrets.Scrubber
}

func newRedactor(cfg RedactionConfig) (*redactor, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	rules := secrets.DefaultRules()
	for i, p := range cfg.Patterns {
		rules = append(rules, secrets.Rule{ID: fmt.Sprintf("log-pattern-%d", i), Pattern: p})
	}
	scrubber, err := secrets.New(rules)
	if err != nil {
		return nil, fmt.Errorf("building log redaction rules: %w", err)
	}
	keys := make([]string, len(cfg.Fields))
	for i, f := range cfg.Fields {
		keys[i] = strings.ToLower(f)
	}
	return &redactor{keys: keys, scrubber: scrubber}, nil
}

// sensitiveKey matches by substring so github_token and groq_api_key are
// caught by "token" and "api_key".
func (r *redactor) sensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, k := range r.keys {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

func (r *redactor) value(val string) string {
	return r.scrubber.Scrub(val).Text
}

// RedactingEncoder masks credentials before the wrapped encoder sees them.
type RedactingEncoder struct {
	zapcore.Encoder
	r *redactor
}

// NewRedactingEncoder wraps base. With redaction disabled it only forwards.
func NewRedactingEncoder(base zapcore.Encoder, cfg RedactionConfig) (*RedactingEncoder, error) {
	r, err := newRedactor(cfg)
	if err != nil {
		return nil, err
	}
	return &RedactingEncoder{Encoder: base, r: r}, nil
}

func (e *RedactingEncoder) AddString(key, val string) {
	switch {
	case e.r == nil:
		e.Encoder.AddString(key, val)
	case e.r.sensitiveKey(key):
		e.Encoder.AddString(key, redactedValue)
	default:
		e.Encoder.AddString(key, e.r.value(val))
	}
}

func (e *RedactingEncoder) AddByteString(key string, val []byte) {
	if e.r == nil {
		e.Encoder.AddByteString(key, val)
		return
	}
	e.AddString(key, string(val))
}

func (e *RedactingEncoder) AddReflected(key string, val interface{}) error {
	if e.r != nil && e.r.sensitiveKey(key) {
		e.Encoder.AddString(key, redactedValue)
		return nil
	}
	return e.Encoder.AddReflected(key, val)
}

func (e *RedactingEncoder) AddObject(key string, obj zapcore.ObjectMarshaler) error {
	if e.r != nil && e.r.sensitiveKey(key) {
		e.Encoder.AddString(key, redactedValue)
		return nil
	}
	return e.Encoder.AddObject(key, obj)
}

func (e *RedactingEncoder) Clone() zapcore.Encoder {
	return &RedactingEncoder{Encoder: e.Encoder.Clone(), r: e.r}
}

// EncodeEntry routes per-entry fields through the redacting Add* methods;
// the wrapped encoder would otherwise add them to its own clone directly.
// The message is scrubbed as well.
func (e *RedactingEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	clone := e.Clone().(*RedactingEncoder)
	for i := range fields {
		fields[i].AddTo(clone)
	}
	if e.r != nil {
		ent.Message = e.r.value(ent.Message)
	}
	return clone.Encoder.EncodeEntry(ent, nil)
}
