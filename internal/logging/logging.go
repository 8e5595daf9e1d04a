// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging builds the structured logger shared by every command.
package logging

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/natefinch/lumberjack"

	"github.com/pdiddy/edu-pipeline/pkg/types"
)

// Log sink types and levels accepted in LoggingConfig.
const (
	TypeConsole = "console"
	TypeFile    = "file"

	LevelDebug   = "debug"
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"

	FormatJSON = "json"
	FormatText = "text"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New returns a logger for cfg. Console loggers write to console; file
// loggers write JSON to a size-rotated file. The returned Closer releases
// the file and is a no-op for console loggers.
func New(cfg types.LoggingConfig, console io.Writer) (*slog.Logger, io.Closer, error) {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	switch cfg.Type {
	case TypeConsole, "":
		var h slog.Handler
		if cfg.Format == FormatJSON {
			h = slog.NewJSONHandler(console, opts)
		} else {
			h = slog.NewTextHandler(console, opts)
		}
		return slog.New(h), nopCloser{}, nil
	case TypeFile:
		if cfg.FilePath == "" {
			return nil, nil, fmt.Errorf("file path required for file logger")
		}
		w := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		return slog.New(slog.NewJSONHandler(w, opts)), w, nil
	default:
		return nil, nil, fmt.Errorf("unsupported log type: %s", cfg.Type)
	}
}

// ParseLevel maps a config level to a slog level; unknown values are info.
func ParseLevel(level string) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarning:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
