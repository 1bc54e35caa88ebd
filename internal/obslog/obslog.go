// Package obslog holds the process-wide zap logger. The bot writes to stdout
// and, unless disabled, appends to a log file; both sinks share the level and
// encoding chosen from the environment.
package obslog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var global = zap.NewNop()

// L returns the process logger. It is a nop until InitFromEnv runs.
func L() *zap.Logger { return global }

// InitFromEnv builds the global logger. LOG_LEVEL sets the threshold,
// LOG_FORMAT picks "console" (default) or "json" encoding, and LOG_FILE
// names the file sink ("off" disables it).
func InitFromEnv() error {
	level := zapcore.InfoLevel
	if raw := strings.TrimSpace(os.Getenv("LOG_LEVEL")); raw != "" {
		if err := level.Set(strings.ToLower(raw)); err != nil {
			return fmt.Errorf("parse LOG_LEVEL: %w", err)
		}
	}

	enc := newEncoder(strings.ToLower(strings.TrimSpace(os.Getenv("LOG_FORMAT"))))
	cores := []zapcore.Core{zapcore.NewCore(enc, zapcore.AddSync(os.Stdout), level)}

	sink, err := openFileSink()
	if err != nil {
		return err
	}
	if sink != nil {
		cores = append(cores, zapcore.NewCore(enc, sink, level))
	}

	global = zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	return nil
}

func newEncoder(format string) zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	if format == "json" {
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		return zapcore.NewJSONEncoder(cfg)
	}
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.ConsoleSeparator = " | "
	return zapcore.NewConsoleEncoder(cfg)
}

// openFileSink opens LOG_FILE for appending, creating parent directories as
// needed. A nil sink means file logging is turned off.
func openFileSink() (zapcore.WriteSyncer, error) {
	path := strings.TrimSpace(os.Getenv("LOG_FILE"))
	switch path {
	case "":
		path = filepath.Join("logs", "study-bot.log")
	case "off", "none":
		return nil, nil
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return zapcore.AddSync(f), nil
}
