// Package logging sets up the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls console and rotated file output.
type Config struct {
	// Dir enables file logging when non-empty.
	Dir   string
	Level string

	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

func (c Config) withDefaults() Config {
	if c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 20
	}
	if c.MaxBackups <= 0 {
		c.MaxBackups = 5
	}
	if c.MaxAgeDays <= 0 {
		c.MaxAgeDays = 14
	}
	return c
}

// New builds a tint logger writing to stdout and, when cfg.Dir is set, to a rotated
// file named fileName. The returned closer flushes the file.
func New(cfg Config, fileName string) (*slog.Logger, io.Closer, error) {
	return newLogger(cfg, fileName, os.Stdout)
}

func newLogger(cfg Config, fileName string, console io.Writer) (*slog.Logger, io.Closer, error) {
	cfg = cfg.withDefaults()
	opts := &tint.Options{
		Level:      ParseLevel(cfg.Level),
		TimeFormat: time.RFC3339,
	}

	if cfg.Dir == "" {
		return slog.New(tint.NewHandler(console, opts)), nopCloser{}, nil
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir failed: %w", err)
	}
	logFile := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Dir, fileName),
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}

	opts.NoColor = true
	logger := slog.New(tint.NewHandler(io.MultiWriter(console, logFile), opts))
	logger.Info("File logging enabled", slog.String("path", logFile.Filename))
	return logger, logFile, nil
}

// Setup installs the logger from New as the slog default.
func Setup(cfg Config, fileName string) (*slog.Logger, io.Closer, error) {
	logger, closer, err := New(cfg, fileName)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return logger, closer, nil
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
