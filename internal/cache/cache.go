package cache

import (
	"log/slog"
	"sync"
	"time"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

// Cleaner is implemented by caches that can drop expired entries.
type Cleaner interface {
	CleanExpired() int
}

// Manager runs periodic expiry over every registered cache.
type Manager struct {
	mu          sync.Mutex
	caches      map[string]Cleaner
	logger      *slog.Logger
	stopCleanup chan struct{}
	cleanupDone chan struct{}
	started     bool
}

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		caches:      make(map[string]Cleaner),
		logger:      logger,
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Register adds a named cache to the cleanup cycle.
func (m *Manager) Register(name string, cache Cleaner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches[name] = cache
}

// CleanNow runs one expiry pass and returns the removed count per cache.
func (m *Manager) CleanNow() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int, len(m.caches))
	for name, c := range m.caches {
		out[name] = c.CleanExpired()
	}
	return out
}

// StartCleanup begins periodic cleanup of all registered caches
func (m *Manager) StartCleanup(interval time.Duration) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()
	go m.cleanup(interval)
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for name, n := range m.CleanNow() {
				if n > 0 {
					m.logger.Debug("Expired cache entries removed", "cache", name, "count", n)
				}
			}
		case <-m.stopCleanup:
			return
		}
	}
}

// Stop ends the cleanup goroutine and waits for it to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	started := m.started
	m.started = false
	m.mu.Unlock()
	if !started {
		return
	}
	close(m.stopCleanup)
	<-m.cleanupDone
}
