// Package logger builds the service's zap logger and the field helpers
// shared by every log record.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName is attached to every record as the "service" field.
const ServiceName = "edasearch"

// NewLogger creates a zap logger for the given environment.
// prod writes JSON; local, dev and docker write colored console output.
// A non-empty level overrides the environment default.
func NewLogger(env, level string) (*zap.Logger, error) {
	var cfg zap.Config
	switch env {
	case "prod":
		cfg = zap.NewProductionConfig()
	case "local", "dev", "docker":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown environment %q for logger", env)
	}

	if level != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	l, err := cfg.Build(
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.Fields(zap.String("service", ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l, nil
}

// Code tags an error record with a stable short code for operational correlation.
func Code(code string) zap.Field { return zap.String("code", code) }

// User tags a record with the opaque caller identity. An empty identity adds nothing.
func User(user string) zap.Field {
	if user == "" {
		return zap.Skip()
	}
	return zap.String("user", user)
}
