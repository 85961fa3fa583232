package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"expensebook/internal/core"
	"expensebook/internal/ports"
)

// Publisher announces record changes to the sheet mirror.
type Publisher interface {
	PublishRecordSync(ctx context.Context, owner, id string, version int64) error
	PublishRecordDelete(ctx context.Context, owner, id string) error
}

// ExpenseService orchestrates record operations across the store and the
// optional message publisher.
type ExpenseService struct {
	store     ports.RecordStore
	publisher Publisher
}

// NewExpenseService accepts a nil publisher when no mirror is configured.
func NewExpenseService(store ports.RecordStore, publisher Publisher) *ExpenseService {
	return &ExpenseService{
		store:     store,
		publisher: publisher,
	}
}

func ownerOf(sess core.Session) (string, error) {
	if sess.Owner == "" {
		return "", core.ErrUnauthenticated
	}
	return sess.Owner, nil
}

// ListRecords returns the session owner's records.
func (s *ExpenseService) ListRecords(ctx context.Context, sess core.Session) ([]core.Record, error) {
	owner, err := ownerOf(sess)
	if err != nil {
		return nil, err
	}
	return s.store.ListRecords(ctx, owner)
}

// AddRecord validates and stores a record, then publishes a sync message.
func (s *ExpenseService) AddRecord(ctx context.Context, sess core.Session, rec core.NewRecord) (core.Record, error) {
	owner, err := ownerOf(sess)
	if err != nil {
		return core.Record{}, err
	}
	if err := rec.Validate(); err != nil {
		return core.Record{}, err
	}

	// Local store first; it is authoritative
	saved, err := s.store.InsertRecord(ctx, owner, rec)
	if err != nil {
		return core.Record{}, fmt.Errorf("save record: %w", err)
	}

	if err := s.publishSync(ctx, owner, saved.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message", "owner", owner, "id", saved.ID, "error", err)
	}
	return saved, nil
}

// DeleteRecord removes one record and publishes a delete message.
func (s *ExpenseService) DeleteRecord(ctx context.Context, sess core.Session, id string) error {
	owner, err := ownerOf(sess)
	if err != nil {
		return err
	}
	if id == "" {
		return &core.NotFoundError{Kind: "record", ID: id}
	}
	if err := s.store.DeleteRecord(ctx, owner, id); err != nil {
		return err
	}

	if err := s.publishDelete(ctx, owner, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish delete message", "owner", owner, "id", id, "error", err)
	}
	return nil
}

// DeleteAllRecords wipes the owner's records and publishes one delete
// message per removed record.
func (s *ExpenseService) DeleteAllRecords(ctx context.Context, sess core.Session) (int, error) {
	owner, err := ownerOf(sess)
	if err != nil {
		return 0, err
	}

	var ids []string
	if s.publisher != nil {
		existing, err := s.store.ListRecords(ctx, owner)
		if err != nil {
			return 0, err
		}
		for _, rec := range existing {
			ids = append(ids, rec.ID)
		}
	}

	n, err := s.store.DeleteAllRecords(ctx, owner)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if err := s.publishDelete(ctx, owner, id); err != nil {
			slog.ErrorContext(ctx, "Failed to publish delete message", "owner", owner, "id", id, "error", err)
		}
	}
	return n, nil
}

func (s *ExpenseService) publishSync(ctx context.Context, owner, id string) error {
	if s.publisher == nil {
		return nil
	}
	// New records always start at version 1
	return s.publisher.PublishRecordSync(ctx, owner, id, 1)
}

func (s *ExpenseService) publishDelete(ctx context.Context, owner, id string) error {
	if s.publisher == nil {
		return nil
	}
	return s.publisher.PublishRecordDelete(ctx, owner, id)
}

// Close closes the store and publisher when they support it.
func (s *ExpenseService) Close() error {
	var errs []error

	if c, ok := s.store.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if c, ok := s.publisher.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close expense service: %w", errors.Join(errs...))
	}
	return nil
}
