// Package corelog wraps gopkg.in/op/go-logging.v1 behind a small Backend
// handle: module-scoped loggers, one process-wide format and level.
package corelog

import (
	"fmt"
	"io"
	"os"

	logging "gopkg.in/op/go-logging.v1"
)

var defaultFormat = logging.MustStringFormatter(
	`%{time:2006-01-02 15:04:05.000} %{level:.4s} %{module}: %{message}`,
)

// Backend owns the process-wide logging configuration and hands out
// module-scoped loggers.
type Backend struct {
	backend logging.LeveledBackend
	level   logging.Level
}

// New creates a Backend writing formatted records to w at the given level
// (one of "DEBUG", "INFO", "NOTICE", "WARNING", "ERROR", "CRITICAL").
func New(w io.Writer, level string) (*Backend, error) {
	lvl, err := logging.LogLevel(level)
	if err != nil {
		return nil, fmt.Errorf("corelog: invalid level %q: %w", level, err)
	}

	raw := logging.NewLogBackend(w, "", 0)
	formatted := logging.NewBackendFormatter(raw, defaultFormat)
	leveled := logging.AddModuleLevel(formatted)
	leveled.SetLevel(lvl, "")

	return &Backend{backend: leveled, level: lvl}, nil
}

// NewDefault creates a Backend writing to stderr at INFO level, suitable
// as a fallback when no explicit logging configuration is supplied.
func NewDefault() *Backend {
	b, err := New(os.Stderr, "INFO")
	if err != nil {
		// "INFO" always parses; this would indicate a programming error.
		panic(err)
	}
	return b
}

// GetLogger returns a logger scoped to the given module name. Every
// component of parcel calls this once at construction time rather than
// using the standard library log package directly.
func (b *Backend) GetLogger(module string) *logging.Logger {
	log := logging.MustGetLogger(module)
	log.SetBackend(b.backend)
	return log
}

// GetLogWriter returns an io.Writer that appends lines it receives to the
// named module's log at the given level, for proxying subprocess or
// connection output into the structured log stream.
func (b *Backend) GetLogWriter(module, level string) io.Writer {
	log := b.GetLogger(module)
	return &logWriter{log: log, level: level}
}

type logWriter struct {
	log   *logging.Logger
	level string
}

func (w *logWriter) Write(p []byte) (int, error) {
	switch w.level {
	case "DEBUG":
		w.log.Debug(string(p))
	case "WARNING":
		w.log.Warning(string(p))
	case "ERROR":
		w.log.Error(string(p))
	default:
		w.log.Info(string(p))
	}
	return len(p), nil
}
