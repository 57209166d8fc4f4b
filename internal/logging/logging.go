// Package logging builds the zap loggers used by polycat commands.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/roach88/polycat/internal/config"
)

// New builds a sugared logger writing to stderr. Development configs log
// with caller and stack details; production configs sample and encode JSON
// unless the config asks for console output. verbose forces debug level.
func New(cfg config.LogConfig, verbose bool) (*zap.SugaredLogger, error) {
	z := zap.NewProductionConfig()
	if cfg.Development {
		z = zap.NewDevelopmentConfig()
	}
	z.OutputPaths = []string{"stderr"}
	z.ErrorOutputPaths = []string{"stderr"}
	if cfg.Encoding != "" {
		z.Encoding = cfg.Encoding
	}
	if z.Encoding == "console" {
		z.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	z.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		z.Level = level
	}
	if verbose {
		z.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	logger, err := z.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger.Sugar(), nil
}

// Nop returns a logger that discards everything.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
