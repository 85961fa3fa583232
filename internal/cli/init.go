// Package cli holds the start-up steps shared by cmd/expensebook and
// cmd/expensebook-worker.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"expensebook/internal/config"
	"expensebook/internal/log"
)

// LoadEnvFile loads .env (or the given files) for local development.
// A missing file is not an error.
func LoadEnvFile(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// SetupLogger builds the application logger from LOG_LEVEL and installs it
// as the slog default.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	level, _ := config.ParseLevel(cfg.LogLevel)
	logger := log.New(log.Config{Level: level, Component: component, Output: os.Stdout})
	log.SetDefault(logger)
	return logger
}

// LoadConfig loads and validates configuration. The extra checks run after
// Validate, e.g. cfg.ValidateMirror for the worker.
func LoadConfig(extra ...func(*config.Config) error) (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, check := range extra {
		if err := check(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
