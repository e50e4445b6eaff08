package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// InitLogger builds the application logger from cfg and installs it as the slog default.
// An empty File logs to the state directory; "-" logs to stderr.
func InitLogger(cfg *LoggingConfig) (*slog.Logger, error) {
	switch cfg.File {
	case "-":
		cfg.File = ""
	case "":
		cfg.File = filepath.Join(getStateDir(), "watchengine", "watchengine.log")
	}

	var writer io.Writer = os.Stderr
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		writer = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize, // megabytes
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge, // days
			Compress:   cfg.Compress,
		}
	}

	logger := NewLogger(writer, cfg)
	slog.SetDefault(logger)
	return logger, nil
}

// NewLogger creates a logger writing to w using the level and format from cfg.
// Colour is only applied to console output.
func NewLogger(w io.Writer, cfg *LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}

	var handler slog.Handler
	switch {
	case strings.EqualFold(cfg.Format, "json"):
		handler = slog.NewJSONHandler(w, opts)
	case cfg.Color && cfg.File == "":
		handler = NewColoredTextHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

var levelColors = map[slog.Level]string{
	slog.LevelDebug: "\033[90m", // gray
	slog.LevelInfo:  "\033[32m", // green
	slog.LevelWarn:  "\033[33m", // yellow
	slog.LevelError: "\033[31m", // red
}

// ColoredTextHandler colours the first field of each text record by level
type ColoredTextHandler struct {
	inner  slog.Handler
	writer io.Writer
	opts   *slog.HandlerOptions
	attrs  []slog.Attr
	group  string
}

// NewColoredTextHandler creates a console handler that colours records by level
func NewColoredTextHandler(w io.Writer, opts *slog.HandlerOptions) *ColoredTextHandler {
	return &ColoredTextHandler{
		inner:  slog.NewTextHandler(w, opts),
		writer: w,
		opts:   opts,
	}
}

// Handle implements slog.Handler
func (h *ColoredTextHandler) Handle(ctx context.Context, r slog.Record) error {
	var buf strings.Builder
	var formatter slog.Handler = slog.NewTextHandler(&buf, h.opts)
	if len(h.attrs) > 0 {
		formatter = formatter.WithAttrs(h.attrs)
	}
	if h.group != "" {
		formatter = formatter.WithGroup(h.group)
	}
	if err := formatter.Handle(ctx, r); err != nil {
		return err
	}

	line := buf.String()
	if color, ok := levelColors[r.Level]; ok {
		head, rest, found := strings.Cut(line, " ")
		if found {
			line = color + head + "\033[0m " + rest
		}
	}

	_, err := io.WriteString(h.writer, line)
	return err
}

// WithAttrs implements slog.Handler
func (h *ColoredTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.inner = h.inner.WithAttrs(attrs)
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

// WithGroup implements slog.Handler
func (h *ColoredTextHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.inner = h.inner.WithGroup(name)
	clone.group = name
	return &clone
}

// Enabled implements slog.Handler
func (h *ColoredTextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func parseLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
