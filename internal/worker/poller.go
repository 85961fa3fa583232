package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// PollerConfig holds configuration for the pending-record poller
type PollerConfig struct {
	// Interval between pending passes (default: 5m)
	Interval time.Duration
}

func DefaultPollerConfig() PollerConfig {
	return PollerConfig{Interval: 5 * time.Minute}
}

// Pass is one unit of periodic work.
type Pass func(ctx context.Context) (int, error)

// Poller runs a Pass on a fixed interval until its context ends.
type Poller struct {
	pass   Pass
	config PollerConfig

	mu      sync.Mutex
	running bool
}

func NewPoller(pass Pass, config PollerConfig) *Poller {
	if config.Interval <= 0 {
		config.Interval = DefaultPollerConfig().Interval
	}
	return &Poller{pass: pass, config: config}
}

var ErrAlreadyRunning = errors.New("poller is already running")

// Run blocks until ctx is cancelled. It returns ErrAlreadyRunning when the
// poller is already active on another goroutine.
func (p *Poller) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return ErrAlreadyRunning
	}
	p.running = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "Poller started", "interval", p.config.Interval)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Poller stopped")
			return nil
		case <-ticker.C:
			n, err := p.pass(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				slog.ErrorContext(ctx, "Periodic pass failed", "error", err)
				continue
			}
			if n > 0 {
				slog.InfoContext(ctx, "Periodic pass completed", "processed", n)
			}
		}
	}
}

// IsRunning returns whether Run is currently active
func (p *Poller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
