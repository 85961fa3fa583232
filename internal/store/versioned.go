// Package store decorates a record store with a per-owner version counter
// so derived views can be memoized until the next mutation.
package store

import (
	"context"
	"sync"

	"expensebook/internal/core"
	"expensebook/internal/ports"
)

// Versioned bumps an owner's version after every successful mutation.
type Versioned struct {
	ports.RecordStore

	mu       sync.RWMutex
	versions map[string]uint64
}

func NewVersioned(inner ports.RecordStore) *Versioned {
	return &Versioned{RecordStore: inner, versions: make(map[string]uint64)}
}

// Version returns the owner's current version; zero before any mutation.
func (v *Versioned) Version(owner string) uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.versions[owner]
}

func (v *Versioned) bump(owner string) {
	v.mu.Lock()
	v.versions[owner]++
	v.mu.Unlock()
}

func (v *Versioned) InsertRecord(ctx context.Context, owner string, rec core.NewRecord) (core.Record, error) {
	out, err := v.RecordStore.InsertRecord(ctx, owner, rec)
	if err == nil {
		v.bump(owner)
	}
	return out, err
}

func (v *Versioned) DeleteRecord(ctx context.Context, owner, id string) error {
	err := v.RecordStore.DeleteRecord(ctx, owner, id)
	if err == nil {
		v.bump(owner)
	}
	return err
}

func (v *Versioned) DeleteAllRecords(ctx context.Context, owner string) (int, error) {
	n, err := v.RecordStore.DeleteAllRecords(ctx, owner)
	if err == nil {
		v.bump(owner)
	}
	return n, err
}
