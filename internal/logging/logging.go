// Package logging adapts log/slog to the engine's Logger interface.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Logger forwards engine log events to a slog.Logger.
type Logger struct {
	l *slog.Logger
}

// New creates a Logger writing to w. level is one of debug, info, warn or
// error (empty means info); format is text or json (empty means text).
func New(w io.Writer, level, format string) (*Logger, error) {
	var lvl slog.Level
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("log level %q: %w", level, err)
		}
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var h slog.Handler
	switch strings.ToLower(format) {
	case "", FormatText:
		h = slog.NewTextHandler(w, opts)
	case FormatJSON:
		h = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("log format %q: want %s or %s", format, FormatText, FormatJSON)
	}
	return &Logger{l: slog.New(h)}, nil
}

// Wrap adapts an existing slog.Logger.
func Wrap(l *slog.Logger) *Logger {
	return &Logger{l: l}
}

func (l *Logger) Debug(ctx context.Context, msg string, keyvals ...any) {
	l.l.DebugContext(ctx, msg, keyvals...)
}

func (l *Logger) Info(ctx context.Context, msg string, keyvals ...any) {
	l.l.InfoContext(ctx, msg, keyvals...)
}

func (l *Logger) Error(ctx context.Context, msg string, keyvals ...any) {
	l.l.ErrorContext(ctx, msg, keyvals...)
}
