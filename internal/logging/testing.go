package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger records every entry for assertions. Entries skip the
// redacting encoder, so AssertNoSecrets checks what callers passed in.
type TestLogger struct {
	*Logger
	*observer.ObservedLogs
}

// NewTestLogger returns a logger that captures all levels.
func NewTestLogger() *TestLogger {
	core, logs := observer.New(TraceLevel)
	return &TestLogger{Logger: &Logger{zap: zap.New(core)}, ObservedLogs: logs}
}

// AssertLogged fails tb unless an entry at level contains msg.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, msg string) {
	tb.Helper()
	if t.FilterLevelExact(level).FilterMessageSnippet(msg).Len() == 0 {
		tb.Errorf("no %v entry containing %q in %v", level, msg, messages(t.All()))
	}
}

// AssertField fails tb unless an entry with message msg carries key=want.
func (t *TestLogger) AssertField(tb testing.TB, msg, key string, want any) {
	tb.Helper()
	for _, entry := range t.FilterMessage(msg).All() {
		if got, ok := entry.ContextMap()[key]; ok && got == want {
			return
		}
	}
	tb.Errorf("no %q entry with %s=%v", msg, key, want)
}

// AssertNoSecrets fails tb if any message or string field would have been
// redacted by the default configuration.
func (t *TestLogger) AssertNoSecrets(tb testing.TB) {
	tb.Helper()
	r, err := newRedactor(NewDefaultConfig().Redaction)
	if err != nil {
		tb.Fatalf("building redactor: %v", err)
	}
	for _, entry := range t.All() {
		if r.value(entry.Message) != entry.Message {
			tb.Errorf("secret in message %q", entry.Message)
		}
		for _, f := range entry.Context {
			if f.Type != zapcore.StringType || f.String == "" || f.String == redactedValue {
				continue
			}
			if r.sensitiveKey(f.Key) || r.value(f.String) != f.String {
				tb.Errorf("field %q in %q is not redacted", f.Key, entry.Message)
			}
		}
	}
}

func messages(entries []observer.LoggedEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}

// Reset drops the recorded entries.
func (t *TestLogger) Reset() {
	t.TakeAll()
}

