// Package logger wraps the zap structured logger used by the server.
package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Logger holds the process-wide zap logger.
type Logger struct {
	// Log is the active logger. It is a no-op logger until Init succeeds.
	Log *zap.Logger
}

// New returns a Logger backed by a no-op zap logger.
func New() *Logger {
	return &Logger{Log: zap.NewNop()}
}

// Init replaces the no-op logger with a production JSON logger at the given
// level ("debug", "info", "warn", "error").
func (l *Logger) Init(level string) error {
	lvl, err := zap.ParseAtomicLevel(strings.ToLower(level))
	if err != nil {
		return err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	zl, err := cfg.Build()
	if err != nil {
		return err
	}

	l.Log = zl
	return nil
}
