package storage

import (
	"context"
	"time"
)

const recordColumns = `id, owner, date, description, amount, created_at, version, synced_at, sync_status`

func scanRecord(row interface{ Scan(...interface{}) error }) (Record, error) {
	var r Record
	err := row.Scan(
		&r.ID,
		&r.Owner,
		&r.Date,
		&r.Description,
		&r.Amount,
		&r.CreatedAt,
		&r.Version,
		&r.SyncedAt,
		&r.SyncStatus,
	)
	return r, err
}

const createRecord = `-- name: CreateRecord :exec
INSERT INTO records (id, owner, date, description, amount, created_at)
VALUES (?, ?, ?, ?, ?, ?)`

type CreateRecordParams struct {
	ID          string
	Owner       string
	Date        string
	Description string
	Amount      float64
	CreatedAt   time.Time
}

func (q *Queries) CreateRecord(ctx context.Context, arg CreateRecordParams) error {
	_, err := q.db.ExecContext(ctx, createRecord,
		arg.ID,
		arg.Owner,
		arg.Date,
		arg.Description,
		arg.Amount,
		arg.CreatedAt,
	)
	return err
}

const getRecord = `-- name: GetRecord :one
SELECT ` + recordColumns + ` FROM records WHERE id = ?`

func (q *Queries) GetRecord(ctx context.Context, id string) (Record, error) {
	return scanRecord(q.db.QueryRowContext(ctx, getRecord, id))
}

const listRecordsByOwner = `-- name: ListRecordsByOwner :many
SELECT ` + recordColumns + ` FROM records WHERE owner = ? ORDER BY created_at, rowid`

func (q *Queries) ListRecordsByOwner(ctx context.Context, owner string) ([]Record, error) {
	return q.listRecords(ctx, listRecordsByOwner, owner)
}

const getPendingSyncRecords = `-- name: GetPendingSyncRecords :many
SELECT ` + recordColumns + ` FROM records WHERE sync_status != 'synced' ORDER BY created_at LIMIT ?`

func (q *Queries) GetPendingSyncRecords(ctx context.Context, limit int64) ([]Record, error) {
	return q.listRecords(ctx, getPendingSyncRecords, limit)
}

func (q *Queries) listRecords(ctx context.Context, query string, args ...interface{}) ([]Record, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteRecord = `-- name: DeleteRecord :execrows
DELETE FROM records WHERE owner = ? AND id = ?`

func (q *Queries) DeleteRecord(ctx context.Context, owner, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteRecord, owner, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteRecordsByOwner = `-- name: DeleteRecordsByOwner :execrows
DELETE FROM records WHERE owner = ?`

func (q *Queries) DeleteRecordsByOwner(ctx context.Context, owner string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteRecordsByOwner, owner)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const markRecordSynced = `-- name: MarkRecordSynced :exec
UPDATE records SET sync_status = 'synced', synced_at = ? WHERE id = ?`

func (q *Queries) MarkRecordSynced(ctx context.Context, id string, at time.Time) error {
	_, err := q.db.ExecContext(ctx, markRecordSynced, at, id)
	return err
}

const markRecordSyncError = `-- name: MarkRecordSyncError :exec
UPDATE records SET sync_status = 'error', version = version + 1 WHERE id = ?`

func (q *Queries) MarkRecordSyncError(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, markRecordSyncError, id)
	return err
}

const createUser = `-- name: CreateUser :exec
INSERT INTO users (email, password_hash, created_at) VALUES (?, ?, ?)`

func (q *Queries) CreateUser(ctx context.Context, email, hash string, at time.Time) error {
	_, err := q.db.ExecContext(ctx, createUser, email, hash, at)
	return err
}

const getUser = `-- name: GetUser :one
SELECT email, password_hash, created_at FROM users WHERE email = ?`

func (q *Queries) GetUser(ctx context.Context, email string) (User, error) {
	var u User
	err := q.db.QueryRowContext(ctx, getUser, email).Scan(&u.Email, &u.PasswordHash, &u.CreatedAt)
	return u, err
}

const deleteUser = `-- name: DeleteUser :execrows
DELETE FROM users WHERE email = ?`

func (q *Queries) DeleteUser(ctx context.Context, email string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteUser, email)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
