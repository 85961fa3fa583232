package log

import (
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with a component name.
type Logger struct {
	*slog.Logger
	base      slog.Handler
	component string
}

// Config holds logger configuration
type Config struct {
	Level     slog.Level
	Component string
	Output    io.Writer
	Handler   slog.Handler
}

// DefaultConfig returns sensible defaults for logging
func DefaultConfig() Config {
	return Config{
		Level:     slog.LevelInfo,
		Component: ComponentApp,
		Output:    os.Stdout,
	}
}

// New creates a text logger on stdout unless a handler or writer is given.
func New(config Config) *Logger {
	handler := config.Handler
	if handler == nil {
		out := config.Output
		if out == nil {
			out = os.Stdout
		}
		handler = slog.NewTextHandler(out, &slog.HandlerOptions{Level: config.Level})
	}
	if config.Component == "" {
		config.Component = ComponentApp
	}

	return &Logger{
		Logger:    slog.New(handler).With(FieldComponent, config.Component),
		base:      handler,
		component: config.Component,
	}
}

// With returns a new logger with the given attributes
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger:    l.Logger.With(args...),
		base:      l.base,
		component: l.component,
	}
}

// WithComponent returns a logger tagged with another component. It starts
// from the root handler, so attributes added with With are not carried over.
func (l *Logger) WithComponent(component string) *Logger {
	base := l.base
	if base == nil {
		base = l.Logger.Handler()
	}
	return &Logger{
		Logger:    slog.New(base).With(FieldComponent, component),
		base:      base,
		component: component,
	}
}

// Component returns the logger's component name
func (l *Logger) Component() string {
	return l.component
}

// SetDefault installs logger as the slog default.
func SetDefault(logger *Logger) {
	slog.SetDefault(logger.Logger)
}
