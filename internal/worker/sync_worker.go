package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"expensebook/internal/amqp"
	"expensebook/internal/core"
	"expensebook/internal/storage"
)

// RecordSource is the authoritative store the worker reads from.
type RecordSource interface {
	GetRecord(ctx context.Context, id string) (owner string, rec core.Record, err error)
	GetPendingSyncRecords(ctx context.Context, limit int) ([]storage.PendingSyncRecord, error)
	MarkSynced(ctx context.Context, id string) error
	MarkSyncError(ctx context.Context, id string) error
}

// Mirror is the secondary copy kept in step with the source.
type Mirror interface {
	HasRecord(ctx context.Context, id string) (bool, error)
	AppendRecord(ctx context.Context, owner string, rec core.Record) error
	DeleteRecord(ctx context.Context, owner, id string) error
}

// SyncWorker mirrors records from SQLite to Google Sheets
type SyncWorker struct {
	source    RecordSource
	mirror    Mirror
	batchSize int
}

func NewSyncWorker(source RecordSource, mirror Mirror, batchSize int) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &SyncWorker{
		source:    source,
		mirror:    mirror,
		batchSize: batchSize,
	}
}

// HandleMessage dispatches an AMQP message to the matching handler.
func (w *SyncWorker) HandleMessage(ctx context.Context, msg *amqp.RecordMessage) error {
	switch msg.Type {
	case amqp.MessageSync:
		return w.HandleSyncMessage(ctx, msg)
	case amqp.MessageDelete:
		return w.HandleDeleteMessage(ctx, msg)
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
}

// HandleSyncMessage copies one record to the mirror.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.RecordMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"id", msg.ID,
		"version", msg.Version)

	owner, rec, err := w.source.GetRecord(ctx, msg.ID)
	if errors.Is(err, core.ErrNotFound) {
		// Deleted before the worker got to it; the delete message cleans up.
		slog.InfoContext(ctx, "Record no longer exists, skipping sync", "id", msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get record from storage: %w", err)
	}

	if err := w.syncRecord(ctx, owner, rec); err != nil {
		return fmt.Errorf("sync record to sheets: %w", err)
	}
	return nil
}

// HandleDeleteMessage removes one record from the mirror.
func (w *SyncWorker) HandleDeleteMessage(ctx context.Context, msg *amqp.RecordMessage) error {
	slog.InfoContext(ctx, "Processing delete message", "id", msg.ID)

	err := w.mirror.DeleteRecord(ctx, msg.Owner, msg.ID)
	if errors.Is(err, core.ErrNotFound) {
		slog.InfoContext(ctx, "Record already absent from mirror", "id", msg.ID)
		return nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "Failed to delete record from Google Sheets",
			"id", msg.ID,
			"error", err,
			"timestamp", msg.Timestamp)
		return fmt.Errorf("delete record from Google Sheets: %w", err)
	}

	slog.InfoContext(ctx, "Successfully deleted record from Google Sheets", "id", msg.ID)
	return nil
}

// ProcessPending syncs records that never reached the mirror. It backs up
// the AMQP path in case messages are lost.
func (w *SyncWorker) ProcessPending(ctx context.Context) (synced int, err error) {
	return w.processBatch(ctx, w.batchSize)
}

// StartupSyncCheck runs a larger pending pass when the worker starts.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, err := w.processBatch(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	slog.InfoContext(ctx, "Startup sync completed", "synced", synced)
	return nil
}

func (w *SyncWorker) processBatch(ctx context.Context, limit int) (int, error) {
	pending, err := w.source.GetPendingSyncRecords(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending records: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "Processing pending records", "count", len(pending))

	synced := 0
	for _, p := range pending {
		if ctx.Err() != nil {
			return synced, ctx.Err()
		}
		if err := w.syncRecord(ctx, p.Owner, p.Record); err != nil {
			slog.ErrorContext(ctx, "Failed to sync record", "id", p.Record.ID, "version", p.Version, "error", err)
			continue
		}
		synced++
	}
	return synced, nil
}

// syncRecord appends rec unless the mirror already has it, so replayed
// messages do not create duplicate rows.
func (w *SyncWorker) syncRecord(ctx context.Context, owner string, rec core.Record) error {
	exists, err := w.mirror.HasRecord(ctx, rec.ID)
	if err != nil {
		w.markError(ctx, rec.ID)
		return fmt.Errorf("check mirror: %w", err)
	}
	if !exists {
		if err := w.mirror.AppendRecord(ctx, owner, rec); err != nil {
			w.markError(ctx, rec.ID)
			return fmt.Errorf("append to sheets: %w", err)
		}
	}

	if err := w.source.MarkSynced(ctx, rec.ID); err != nil {
		// The row is in the sheet; the next pass sees it and only re-marks.
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", rec.ID, "error", err)
	}

	slog.InfoContext(ctx, "Successfully synced record",
		"id", rec.ID,
		"already_present", exists,
		"amount", rec.Amount)
	return nil
}

func (w *SyncWorker) markError(ctx context.Context, id string) {
	if err := w.source.MarkSyncError(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to mark sync error", "id", id, "error", err)
	}
}
