// Package config loads DriftShell configuration from environment
// variables. All knobs have workable defaults; only the Gemini key is
// genuinely external, and even that is optional (the narrator falls back
// to plain terminal lines without it).
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Save backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config holds the application configuration.
type Config struct {
	// Handle is the player's network handle, bound into computed lock
	// answers.
	Handle string `env:"DRIFTSHELL_HANDLE" envDefault:"drifter"`

	// SaveDir is where save slots live. Empty means
	// $HOME/.driftshell/saves, resolved at load time.
	SaveDir string `env:"DRIFTSHELL_SAVE_DIR"`

	// SaveBackend selects the persistence layer: "file" or "sqlite".
	SaveBackend string `env:"DRIFTSHELL_SAVE_BACKEND" envDefault:"file"`

	// SQLitePath is the database file for the sqlite backend. Empty
	// means SaveDir/saves.db.
	SQLitePath string `env:"DRIFTSHELL_SQLITE_PATH"`

	// GeminiAPIKey enables the generative narrator. Optional.
	GeminiAPIKey string `env:"GEMINI_API_KEY"`

	// GeminiModel is the model used for narration.
	GeminiModel string `env:"DRIFTSHELL_GEMINI_MODEL" envDefault:"gemini-2.5-flash"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"DRIFTSHELL_LOG_LEVEL" envDefault:"info"`

	// LogFile receives structured logs. Empty discards them; the TUI
	// owns the terminal, so logging to stderr would tear the screen.
	LogFile string `env:"DRIFTSHELL_LOG_FILE"`
}

// Load reads configuration from the environment, fills in derived
// defaults, and validates the result.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.SaveDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		cfg.SaveDir = filepath.Join(home, ".driftshell", "saves")
	}
	if cfg.SQLitePath == "" {
		cfg.SQLitePath = filepath.Join(cfg.SaveDir, "saves.db")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for inconsistencies, reporting all
// problems at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Handle) == "" {
		errs = append(errs, errors.New("handle must not be empty"))
	}
	switch c.SaveBackend {
	case BackendFile, BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown save backend %q (want %q or %q)", c.SaveBackend, BackendFile, BackendSQLite))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ParseLevel converts a log level name into a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

// Logger builds a slog.Logger per the configuration. The returned close
// function releases the log file, if any.
func (c *Config) Logger() (*slog.Logger, func() error, error) {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	if c.LogFile == "" {
		return slog.New(slog.DiscardHandler), func() error { return nil }, nil
	}
	f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	h := slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})
	return slog.New(h), f.Close, nil
}
