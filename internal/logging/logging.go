// Package logging builds the process logger: a human-readable console
// core, an optional rotated JSON file core, and any extra cores such as
// the status page recorder.
package logging

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Guliveer/aerostat/internal/config"
)

// ParseLevel maps a configured level name to a zap level. Unknown names
// fall back to info.
func ParseLevel(name string) zapcore.Level {
	switch name {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New creates a logger writing to stdout and, if configured, to a
// rotated log file. The returned closer flushes and closes the file.
func New(cfg config.LoggingConfig, extra ...zapcore.Core) (*zap.Logger, io.Closer) {
	return build(cfg, zapcore.Lock(os.Stdout), extra...)
}

func build(cfg config.LoggingConfig, console zapcore.WriteSyncer, extra ...zapcore.Core) (*zap.Logger, io.Closer) {
	level := ParseLevel(cfg.Level)

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	// Console output (human-readable)
	cores := []zapcore.Core{zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		console,
		level,
	)}

	// File output (structured JSON, rotated)
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			zapcore.AddSync(file),
			level,
		))
		closer = file
	}

	cores = append(cores, extra...)
	return zap.New(zapcore.NewTee(cores...)), closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
