// Package logging adapts zap and log/slog loggers to core.Logger and builds
// them from configuration.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Swind/go-tick-runner/core"
)

// Backends accepted by New.
const (
	BackendZap  = "zap"
	BackendSlog = "slog"
	BackendStd  = "std"
	BackendNone = "none"
)

// ErrUnknownLevel is returned for level names other than debug, info,
// warn/warning and error.
var ErrUnknownLevel = errors.New("unknown log level")

// Options selects and configures a backend.
type Options struct {
	Backend string
	Level   string
	// Format is "text" or "json"; zap always writes JSON.
	Format string
	// Output is a zap output path. Other backends write to Writer.
	Output string
	Writer io.Writer
}

// New builds a core.Logger for opts. Call the returned sync function before
// exit to flush buffered output.
func New(opts Options) (core.Logger, func(), error) {
	noop := func() {}
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, noop, err
	}

	switch strings.ToLower(opts.Backend) {
	case "", BackendZap:
		z, err := NewZap(opts.Level, opts.Output)
		if err != nil {
			return nil, noop, err
		}
		return NewZapLogger(z), func() { _ = z.Sync() }, nil
	case BackendSlog:
		return NewSlogLogger(NewSlog(slogLevels[level], opts.Format, w)), noop, nil
	case BackendStd:
		return core.NewDefaultLoggerAt(level), noop, nil
	case BackendNone:
		return core.NewNoOpLogger(), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown log backend %q", opts.Backend)
	}
}

// ParseLevel converts a level name to a core.LogLevel. An empty name
// means info.
func ParseLevel(s string) (core.LogLevel, error) {
	switch strings.ToLower(s) {
	case "debug":
		return core.LogLevelDebug, nil
	case "", "info":
		return core.LogLevelInfo, nil
	case "warn", "warning":
		return core.LogLevelWarn, nil
	case "error":
		return core.LogLevelError, nil
	default:
		return core.LogLevelInfo, fmt.Errorf("%w %q", ErrUnknownLevel, s)
	}
}
