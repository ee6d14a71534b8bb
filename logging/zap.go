package logging

import (
	"fmt"

	"github.com/Swind/go-tick-runner/core"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger adapts a *zap.Logger to core.Logger.
type ZapLogger struct {
	l *zap.Logger
}

var _ core.Logger = (*ZapLogger)(nil)

// NewZapLogger wraps l. A nil l yields a no-op logger.
func NewZapLogger(l *zap.Logger) *ZapLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return &ZapLogger{l: l}
}

// Zap returns the wrapped logger.
func (z *ZapLogger) Zap() *zap.Logger { return z.l }

func (z *ZapLogger) Debug(msg string, fields ...core.Field) { z.l.Debug(msg, zapFields(fields)...) }
func (z *ZapLogger) Info(msg string, fields ...core.Field)  { z.l.Info(msg, zapFields(fields)...) }
func (z *ZapLogger) Warn(msg string, fields ...core.Field)  { z.l.Warn(msg, zapFields(fields)...) }
func (z *ZapLogger) Error(msg string, fields ...core.Field) { z.l.Error(msg, zapFields(fields)...) }

func zapFields(fields []core.Field) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		switch v := f.Value.(type) {
		case error:
			out = append(out, zap.NamedError(f.Key, v))
		case fmt.Stringer:
			out = append(out, zap.Stringer(f.Key, v))
		default:
			out = append(out, zap.Any(f.Key, v))
		}
	}
	return out
}

// NewZap builds a production zap logger: JSON, ISO8601 time under
// "@timestamp", no sampling. An empty output writes to stderr.
func NewZap(level, output string) (*zap.Logger, error) {
	conf := zap.NewProductionConfig()
	conf.Sampling = nil
	conf.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	conf.EncoderConfig.TimeKey = "@timestamp"
	lvl, err := ParseZapLevel(level)
	if err != nil {
		return nil, err
	}
	conf.Level = zap.NewAtomicLevelAt(lvl)

	if output != "" {
		conf.OutputPaths = []string{output}
		conf.ErrorOutputPaths = []string{output}
	}

	logger, err := conf.Build()
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}
	return logger, nil
}

var zapLevels = map[core.LogLevel]zapcore.Level{
	core.LogLevelDebug: zapcore.DebugLevel,
	core.LogLevelInfo:  zapcore.InfoLevel,
	core.LogLevelWarn:  zapcore.WarnLevel,
	core.LogLevelError: zapcore.ErrorLevel,
}

// ParseZapLevel converts a level name to a zap level.
func ParseZapLevel(s string) (zapcore.Level, error) {
	level, err := ParseLevel(s)
	if err != nil {
		return zapcore.InfoLevel, err
	}
	return zapLevels[level], nil
}
