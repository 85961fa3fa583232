package backend

import (
	"context"

	"expensebook/internal/ports"
	"expensebook/internal/services"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// HealthFunc checks that the backend's stores are reachable.
type HealthFunc func(ctx context.Context) error

// BackendResult bundles everything the server needs from a backend.
type BackendResult struct {
	Records     ports.RecordStore
	Credentials ports.CredentialStore
	// Publisher is nil unless the backend mirrors changes over AMQP.
	Publisher services.Publisher
	Health    HealthFunc
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// Memory: optional JSON snapshot; also holds credentials for sheets
	DataFile string

	// SQLite specific
	SQLiteDBPath string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
