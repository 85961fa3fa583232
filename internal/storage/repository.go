package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"expensebook/internal/core"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Debug("Record schema ready", "path", dbPath, "schema_version", version)

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Health pings the database.
func (r *SQLiteRepository) Health(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ListRecords implements ports.RecordLister
func (r *SQLiteRepository) ListRecords(ctx context.Context, owner string) ([]core.Record, error) {
	rows, err := r.queries.ListRecordsByOwner(ctx, owner)
	if err != nil {
		return nil, core.Upstream("list records", err)
	}
	out := make([]core.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toCore()
		if err != nil {
			return nil, core.Upstream("list records", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// InsertRecord implements ports.RecordWriter
func (r *SQLiteRepository) InsertRecord(ctx context.Context, owner string, rec core.NewRecord) (core.Record, error) {
	if err := rec.Validate(); err != nil {
		return core.Record{}, err
	}
	out := rec.Materialize(uuid.NewString(), r.now().UTC())
	err := r.queries.CreateRecord(ctx, CreateRecordParams{
		ID:          out.ID,
		Owner:       owner,
		Date:        out.Date.String(),
		Description: out.Description,
		Amount:      out.Amount,
		CreatedAt:   out.CreatedAt,
	})
	if err != nil {
		return core.Record{}, core.Upstream("insert record", err)
	}

	slog.InfoContext(ctx, "Record saved to SQLite",
		"id", out.ID,
		"date", out.Date.String(),
		"amount", out.Amount)

	return out, nil
}

// DeleteRecord implements ports.RecordDeleter
func (r *SQLiteRepository) DeleteRecord(ctx context.Context, owner, id string) error {
	n, err := r.queries.DeleteRecord(ctx, owner, id)
	if err != nil {
		return core.Upstream("delete record", err)
	}
	if n == 0 {
		return &core.NotFoundError{Kind: "record", ID: id}
	}
	return nil
}

func (r *SQLiteRepository) DeleteAllRecords(ctx context.Context, owner string) (int, error) {
	n, err := r.queries.DeleteRecordsByOwner(ctx, owner)
	if err != nil {
		return 0, core.Upstream("delete records", err)
	}
	return int(n), nil
}

// CreateUser implements ports.CredentialStore
func (r *SQLiteRepository) CreateUser(ctx context.Context, email string, hash []byte) error {
	err := r.queries.CreateUser(ctx, email, string(hash), r.now().UTC())
	if isConstraintViolation(err) {
		return core.ErrUserExists
	}
	if err != nil {
		return core.Upstream("create user", err)
	}
	return nil
}

func (r *SQLiteRepository) PasswordHash(ctx context.Context, email string) ([]byte, error) {
	u, err := r.queries.GetUser(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &core.NotFoundError{Kind: "user", ID: email}
	}
	if err != nil {
		return nil, core.Upstream("get user", err)
	}
	return []byte(u.PasswordHash), nil
}

func (r *SQLiteRepository) DeleteUser(ctx context.Context, email string) error {
	n, err := r.queries.DeleteUser(ctx, email)
	if err != nil {
		return core.Upstream("delete user", err)
	}
	if n == 0 {
		return &core.NotFoundError{Kind: "user", ID: email}
	}
	return nil
}

// PendingSyncRecord is a stored record that has not reached the mirror yet.
type PendingSyncRecord struct {
	Owner   string
	Record  core.Record
	Version int64
}

// GetPendingSyncRecords returns records that need to be synced to Google Sheets
func (r *SQLiteRepository) GetPendingSyncRecords(ctx context.Context, limit int) ([]PendingSyncRecord, error) {
	rows, err := r.queries.GetPendingSyncRecords(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("get pending sync records: %w", err)
	}
	out := make([]PendingSyncRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toCore()
		if err != nil {
			slog.WarnContext(ctx, "Skipping malformed record", "id", row.ID, "error", err)
			continue
		}
		out = append(out, PendingSyncRecord{Owner: row.Owner, Record: rec, Version: row.Version})
	}
	return out, nil
}

// GetRecord retrieves a single record by id regardless of owner.
func (r *SQLiteRepository) GetRecord(ctx context.Context, id string) (string, core.Record, error) {
	row, err := r.queries.GetRecord(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", core.Record{}, &core.NotFoundError{Kind: "record", ID: id}
	}
	if err != nil {
		return "", core.Record{}, fmt.Errorf("get record by id: %w", err)
	}
	rec, err := row.toCore()
	if err != nil {
		return "", core.Record{}, err
	}
	return row.Owner, rec, nil
}

// MarkSynced marks a record as successfully mirrored
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string) error {
	if err := r.queries.MarkRecordSynced(ctx, id, r.now().UTC()); err != nil {
		return fmt.Errorf("mark record synced: %w", err)
	}
	slog.DebugContext(ctx, "Record marked as synced", "id", id)
	return nil
}

// MarkSyncError marks a record as having sync errors
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string) error {
	if err := r.queries.MarkRecordSyncError(ctx, id); err != nil {
		return fmt.Errorf("mark record sync error: %w", err)
	}
	slog.WarnContext(ctx, "Record marked with sync error", "id", id)
	return nil
}

func (row Record) toCore() (core.Record, error) {
	date, err := core.ParseDate(row.Date)
	if err != nil {
		return core.Record{}, fmt.Errorf("record %s: %w", row.ID, err)
	}
	return core.Record{
		ID:          row.ID,
		Date:        date,
		Description: row.Description,
		Amount:      row.Amount,
		CreatedAt:   row.CreatedAt,
	}, nil
}

func isConstraintViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	return false
}
