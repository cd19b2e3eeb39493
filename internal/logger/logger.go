// Package logger builds the process-wide zap logger every service derives
// its named logger from.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options select the logger's verbosity and output shape.
type Options struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string
	// Environment switches to human-readable console output when set to
	// "development"; anything else logs JSON.
	Environment string
}

// New builds the root logger and installs it as zap's global.
func New(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}

	cfg := zap.NewProductionConfig()
	if opts.Environment == "development" {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	log, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	log = log.Named("hearth")

	zap.ReplaceGlobals(log)
	return log, nil
}
