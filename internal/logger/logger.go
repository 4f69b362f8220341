// Package logger builds the application's zap logger.  Every
// component that logs receives a *zap.Logger explicitly; nothing in
// the codebase reaches for a global.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New constructs a logger for the given environment.  "dev" yields
// a human readable console logger at debug level; anything else
// yields the production JSON logger with ISO8601 timestamps.
func New(env string) (*zap.Logger, error) {
	if env == "dev" {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		return cfg.Build()
	}
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}
