// Package logger builds the process-wide zap logger.
package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	EnvironmentProduction  = "production"
	EnvironmentStaging     = "staging"
	EnvironmentDevelopment = "development"
	EnvironmentLocal       = "local"
)

// New returns a JSON logger configured for environment. An empty level
// selects debug for development and local, info otherwise.
func New(environment, level string) (*zap.Logger, error) {
	cfg, err := configFor(environment)
	if err != nil {
		return nil, err
	}

	atomic, err := resolveLevel(environment, level)
	if err != nil {
		return nil, err
	}
	cfg.Level = atomic
	cfg.DisableStacktrace = true

	built, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return built, nil
}

func configFor(environment string) (zap.Config, error) {
	var cfg zap.Config
	switch environment {
	case EnvironmentDevelopment, EnvironmentLocal:
		cfg = zap.NewDevelopmentConfig()
	case EnvironmentProduction, EnvironmentStaging, "":
		cfg = zap.NewProductionConfig()
	default:
		return zap.Config{}, fmt.Errorf("invalid environment %q", environment)
	}
	cfg.Encoding = "json"
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg, nil
}

func resolveLevel(environment, level string) (zap.AtomicLevel, error) {
	if strings.TrimSpace(level) != "" {
		var parsed zapcore.Level
		if err := parsed.Set(level); err != nil {
			return zap.AtomicLevel{}, fmt.Errorf("invalid level %q: %w", level, err)
		}
		return zap.NewAtomicLevelAt(parsed), nil
	}

	if environment == EnvironmentDevelopment || environment == EnvironmentLocal {
		return zap.NewAtomicLevelAt(zapcore.DebugLevel), nil
	}
	return zap.NewAtomicLevelAt(zapcore.InfoLevel), nil
}
