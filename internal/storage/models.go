package storage

import (
	"database/sql"
	"time"
)

type Record struct {
	ID          string
	Owner       string
	Date        string
	Description string
	Amount      float64
	CreatedAt   time.Time
	Version     int64
	SyncedAt    sql.NullTime
	SyncStatus  string
}

type User struct {
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

const (
	SyncPending = "pending"
	SyncDone    = "synced"
	SyncError   = "error"
)
