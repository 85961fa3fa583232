package ports

import (
	"context"

	"expensebook/internal/core"
)

// Ports for outbound persistence adapters. Every call is scoped to one owner
// identity; adapters never read an ambient "current user".
type (
	RecordLister interface {
		// ListRecords returns every record of owner in insertion order.
		ListRecords(ctx context.Context, owner string) ([]core.Record, error)
	}

	RecordWriter interface {
		// InsertRecord validates, assigns an id and stores the record.
		InsertRecord(ctx context.Context, owner string, rec core.NewRecord) (core.Record, error)
	}

	RecordDeleter interface {
		// DeleteRecord removes one record. A missing id is a *core.NotFoundError.
		DeleteRecord(ctx context.Context, owner, id string) error
		// DeleteAllRecords wipes the owner's records and reports how many went.
		DeleteAllRecords(ctx context.Context, owner string) (int, error)
	}

	RecordStore interface {
		RecordLister
		RecordWriter
		RecordDeleter
	}

	// CredentialStore keeps password hashes keyed by email.
	CredentialStore interface {
		// CreateUser fails with core.ErrUserExists for a taken email.
		CreateUser(ctx context.Context, email string, passwordHash []byte) error
		// PasswordHash returns a *core.NotFoundError for unknown emails.
		PasswordHash(ctx context.Context, email string) ([]byte, error)
		DeleteUser(ctx context.Context, email string) error
	}
)
