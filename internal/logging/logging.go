// Package logging builds the process-wide zap logger from configuration.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tessro/sheetplayer/internal/config"
)

// Options adjust logger construction for the running command.
type Options struct {
	// Development selects zap's human-readable console encoder.
	Development bool
	// Verbose forces debug level regardless of the configured level.
	Verbose bool
	// Quiet discards output unless a log file is configured. Full-screen
	// commands set it so log lines do not corrupt the terminal.
	Quiet bool
}

// New returns a logger for cfg and installs it as zap's global logger.
func New(cfg config.LogConfig, opts Options) (*zap.Logger, error) {
	if opts.Quiet && cfg.File == "" {
		return zap.NewNop(), nil
	}

	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if opts.Verbose {
		level = zapcore.DebugLevel
	}

	var zc zap.Config
	if opts.Development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	if cfg.File != "" {
		zc.OutputPaths = []string{cfg.File}
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func parseLevel(s string) (zapcore.Level, error) {
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}
