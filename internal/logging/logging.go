// Package logging builds the zap logger used by otpctl.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config controls logger initialization.
type Config struct {
	// Level controls verbosity (debug, info, warn, error).
	// Defaults to "warn" if empty or invalid.
	Level string
	// Format is "console" or "json".
	// Default: console
	Format string
	// Output receives log entries.
	// Default: os.Stderr
	Output io.Writer
}

// New creates a logger from cfg. The logger is named "otpctl".
func New(cfg Config) (*zap.Logger, error) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	var encoder zapcore.Encoder
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", FormatConsole:
		encoder = zapcore.NewConsoleEncoder(encoderConfig(false))
	case FormatJSON:
		encoder = zapcore.NewJSONEncoder(encoderConfig(true))
	default:
		return nil, fmt.Errorf("logging: unknown format %q", cfg.Format)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(cfg.Output), ParseLevel(cfg.Level))
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)).Named("otpctl"), nil
}

// ParseLevel converts a level name to a zapcore.Level, defaulting to warn.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "error":
		return zapcore.ErrorLevel
	}
	return zapcore.WarnLevel
}

func encoderConfig(structured bool) zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeDuration = zapcore.StringDurationEncoder
	if !structured {
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	return cfg
}
