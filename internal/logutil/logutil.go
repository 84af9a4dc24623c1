// Package logutil builds the process logger from the logging config section.
package logutil

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lhdbsbz/deskbot/internal/config"
)

// LogFileName is the file written under config.LogsDir when logging.file is set.
const LogFileName = "deskbot.log"

// New returns a logger writing to stdout and, when cfg.File is set, appending
// to LogsDir/deskbot.log. The returned func closes the file.
func New(cfg config.LoggingConfig) (*slog.Logger, func(), error) {
	if !cfg.File {
		logger, err := NewWithWriter(os.Stdout, cfg)
		return logger, func() {}, err
	}
	dir := config.LogsDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, LogFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger, err := NewWithWriter(io.MultiWriter(os.Stdout, f), cfg)
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	return logger, func() { _ = f.Close() }, nil
}

func NewWithWriter(w io.Writer, cfg config.LoggingConfig) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
	}

	var h slog.Handler
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", "text":
		h = slog.NewTextHandler(w, opts)
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown logging.format: %s", cfg.Format)
	}

	return slog.New(h), nil
}

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown logging.level: %s", s)
	}
}
