// Package logger provides logging constructors for prampel using the bullets
// library.
//
// Usage:
//
//	log := logger.NewLogger("debug")
//	log.Debugf("merging %s", ref)
//
//	silent := logger.NoLogger() // suppresses all output, for tests
package logger

import (
	"os"

	"github.com/sgaunet/bullets"
)

// NewLogger creates a logger writing to stdout at the given level.
// Unknown levels fall back to "info".
func NewLogger(logLevel string) *bullets.Logger {
	var level bullets.Level
	switch logLevel {
	case "debug":
		level = bullets.DebugLevel
	case "info":
		level = bullets.InfoLevel
	case "warn":
		level = bullets.WarnLevel
	case "error":
		level = bullets.ErrorLevel
	default:
		level = bullets.InfoLevel
	}
	logger := bullets.New(os.Stdout)
	logger.SetLevel(level)
	return logger
}

// NoLogger creates a logger that suppresses all output by raising the level
// to Fatal. Used in tests.
func NoLogger() *bullets.Logger {
	logger := bullets.New(os.Stdout)
	logger.SetLevel(bullets.FatalLevel)
	return logger
}
