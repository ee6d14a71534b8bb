package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Swind/go-tick-runner/core"
)

// SlogLogger adapts a *slog.Logger to core.Logger.
type SlogLogger struct {
	l *slog.Logger
}

var _ core.Logger = (*SlogLogger)(nil)

// NewSlogLogger wraps l. A nil l uses slog.Default().
func NewSlogLogger(l *slog.Logger) *SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return &SlogLogger{l: l}
}

func (s *SlogLogger) Debug(msg string, fields ...core.Field) { s.log(slog.LevelDebug, msg, fields) }
func (s *SlogLogger) Info(msg string, fields ...core.Field)  { s.log(slog.LevelInfo, msg, fields) }
func (s *SlogLogger) Warn(msg string, fields ...core.Field)  { s.log(slog.LevelWarn, msg, fields) }
func (s *SlogLogger) Error(msg string, fields ...core.Field) { s.log(slog.LevelError, msg, fields) }

func (s *SlogLogger) log(level slog.Level, msg string, fields []core.Field) {
	ctx := context.Background()
	if !s.l.Enabled(ctx, level) {
		return
	}
	attrs := make([]slog.Attr, 0, len(fields))
	for _, f := range fields {
		attrs = append(attrs, slogAttr(f))
	}
	s.l.LogAttrs(ctx, level, msg, attrs...)
}

func slogAttr(f core.Field) slog.Attr {
	switch v := f.Value.(type) {
	case error:
		return slog.String(f.Key, v.Error())
	case fmt.Stringer:
		return slog.String(f.Key, v.String())
	default:
		return slog.Any(f.Key, v)
	}
}

// NewSlog creates a slog.Logger writing text or JSON to w.
func NewSlog(level slog.Level, format string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

var slogLevels = map[core.LogLevel]slog.Level{
	core.LogLevelDebug: slog.LevelDebug,
	core.LogLevelInfo:  slog.LevelInfo,
	core.LogLevelWarn:  slog.LevelWarn,
	core.LogLevelError: slog.LevelError,
}

// ParseSlogLevel converts a level name to slog.Level.
func ParseSlogLevel(s string) (slog.Level, error) {
	level, err := ParseLevel(s)
	if err != nil {
		return slog.LevelInfo, err
	}
	return slogLevels[level], nil
}
