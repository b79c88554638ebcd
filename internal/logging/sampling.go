package logging

import (
	"go.uber.org/zap/zapcore"
)

// errorBypassCore samples entries below Error and passes Error and above
// straight to the unsampled core, so a burst of retrieval warnings cannot
// hide the failure that follows it.
type errorBypassCore struct {
	zapcore.Core
	sampled zapcore.Core
}

func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}
	return &errorBypassCore{
		Core:    core,
		sampled: zapcore.NewSamplerWithOptions(core, cfg.Tick, cfg.Initial, cfg.Thereafter),
	}
}

func (c *errorBypassCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if e.Level >= zapcore.ErrorLevel {
		return c.Core.Check(e, ce)
	}
	return c.sampled.Check(e, ce)
}

func (c *errorBypassCore) With(fields []zapcore.Field) zapcore.Core {
	return &errorBypassCore{
		Core:    c.Core.With(fields),
		sampled: c.sampled.With(fields),
	}
}
