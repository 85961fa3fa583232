package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"expensebook/internal/core"
)

// Store keeps records and credentials in process memory, optionally
// mirrored to a JSON snapshot file after every mutation.
type Store struct {
	mu      sync.Mutex
	path    string
	records map[string][]core.Record
	users   map[string]userEntry
	now     func() time.Time
}

type userEntry struct {
	Hash      []byte
	CreatedAt time.Time
}

func New() *Store {
	return &Store{
		records: make(map[string][]core.Record),
		users:   make(map[string]userEntry),
		now:     time.Now,
	}
}

// NewFromFile loads the snapshot at path, creating an empty store when the
// file does not exist yet. Malformed records or users are skipped with a
// warning; an unreadable file or unknown snapshot version is refused.
func NewFromFile(path string) (*Store, error) {
	s := New()
	s.path = path

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return s, nil
	}

	var snap rawSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	if err := s.restore(snap); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", path, err)
	}
	return s, nil
}

// ListRecords returns a copy of the owner's records in insertion order.
func (s *Store) ListRecords(_ context.Context, owner string) ([]core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Record{}, s.records[owner]...), nil
}

// InsertRecord stores the record and returns it with its new id.
func (s *Store) InsertRecord(_ context.Context, owner string, rec core.NewRecord) (core.Record, error) {
	if err := rec.Validate(); err != nil {
		return core.Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r := rec.Materialize(uuid.NewString(), s.now().UTC())
	s.records[owner] = append(s.records[owner], r)
	if err := s.persistLocked(); err != nil {
		s.records[owner] = s.records[owner][:len(s.records[owner])-1]
		return core.Record{}, core.Upstream("insert record", err)
	}
	return r, nil
}

func (s *Store) DeleteRecord(_ context.Context, owner, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.records[owner]
	for i, r := range list {
		if r.ID != id {
			continue
		}
		next := make([]core.Record, 0, len(list)-1)
		next = append(next, list[:i]...)
		next = append(next, list[i+1:]...)
		s.records[owner] = next
		if err := s.persistLocked(); err != nil {
			s.records[owner] = list
			return core.Upstream("delete record", err)
		}
		return nil
	}
	return &core.NotFoundError{Kind: "record", ID: id}
}

func (s *Store) DeleteAllRecords(_ context.Context, owner string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.records[owner]
	delete(s.records, owner)
	if err := s.persistLocked(); err != nil {
		s.records[owner] = prev
		return 0, core.Upstream("delete records", err)
	}
	return len(prev), nil
}

func (s *Store) CreateUser(_ context.Context, email string, hash []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[email]; ok {
		return core.ErrUserExists
	}
	s.users[email] = userEntry{Hash: append([]byte(nil), hash...), CreatedAt: s.now().UTC()}
	if err := s.persistLocked(); err != nil {
		delete(s.users, email)
		return core.Upstream("create user", err)
	}
	return nil
}

func (s *Store) PasswordHash(_ context.Context, email string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok {
		return nil, &core.NotFoundError{Kind: "user", ID: email}
	}
	return append([]byte(nil), u.Hash...), nil
}

func (s *Store) DeleteUser(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok {
		return &core.NotFoundError{Kind: "user", ID: email}
	}
	delete(s.users, email)
	if err := s.persistLocked(); err != nil {
		s.users[email] = u
		return core.Upstream("delete user", err)
	}
	return nil
}

// Health reports whether the snapshot directory is still writable.
func (s *Store) Health(_ context.Context) error {
	if s.path == "" {
		return nil
	}
	_, err := os.Stat(filepath.Dir(s.path))
	return err
}

func (s *Store) Close() error { return nil }

// snapshot is the on-disk layout. Dates and amounts are kept in their text
// and number forms and re-validated on load.
type snapshot struct {
	Version int                         `json:"version"`
	Users   map[string]snapshotUser     `json:"users"`
	Records map[string][]snapshotRecord `json:"records"`
}

// rawSnapshot defers decoding of each record so one bad entry cannot
// spoil the rest.
type rawSnapshot struct {
	Version int                          `json:"version"`
	Users   map[string]json.RawMessage   `json:"users"`
	Records map[string][]json.RawMessage `json:"records"`
}

type snapshotUser struct {
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

type snapshotRecord struct {
	ID          string    `json:"id"`
	Date        string    `json:"date"`
	Description string    `json:"description"`
	Amount      *float64  `json:"amount"`
	CreatedAt   time.Time `json:"created_at"`
}

const snapshotVersion = 1

func (s *Store) restore(snap rawSnapshot) error {
	if snap.Version != 0 && snap.Version != snapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	for email, msg := range snap.Users {
		var u snapshotUser
		if err := json.Unmarshal(msg, &u); err != nil || strings.TrimSpace(email) == "" || u.PasswordHash == "" {
			slog.Warn("Skipping malformed snapshot user", "path", s.path, "email", email)
			continue
		}
		s.users[email] = userEntry{Hash: []byte(u.PasswordHash), CreatedAt: u.CreatedAt}
	}
	for owner, list := range snap.Records {
		seen := make(map[string]struct{}, len(list))
		out := make([]core.Record, 0, len(list))
		for i, msg := range list {
			var raw snapshotRecord
			err := json.Unmarshal(msg, &raw)
			var r core.Record
			if err == nil {
				r, err = raw.decode()
			}
			if err == nil {
				if _, dup := seen[r.ID]; dup {
					err = fmt.Errorf("duplicate id %q", r.ID)
				}
			}
			if err != nil {
				slog.Warn("Skipping malformed snapshot record",
					"path", s.path, "owner", owner, "index", i, "error", err)
				continue
			}
			seen[r.ID] = struct{}{}
			out = append(out, r)
		}
		if len(out) > 0 {
			s.records[owner] = out
		}
	}
	return nil
}

func (raw snapshotRecord) decode() (core.Record, error) {
	if strings.TrimSpace(raw.ID) == "" {
		return core.Record{}, errors.New("missing id")
	}
	date, err := core.ParseDate(raw.Date)
	if err != nil {
		return core.Record{}, err
	}
	if raw.Amount == nil || math.IsNaN(*raw.Amount) || math.IsInf(*raw.Amount, 0) {
		return core.Record{}, core.ErrInvalidAmount
	}
	return core.Record{
		ID:          raw.ID,
		Date:        date,
		Description: raw.Description,
		Amount:      *raw.Amount,
		CreatedAt:   raw.CreatedAt,
	}, nil
}

func (s *Store) persistLocked() error {
	if s.path == "" {
		return nil
	}
	snap := snapshot{
		Version: snapshotVersion,
		Users:   make(map[string]snapshotUser, len(s.users)),
		Records: make(map[string][]snapshotRecord, len(s.records)),
	}
	for email, u := range s.users {
		snap.Users[email] = snapshotUser{PasswordHash: string(u.Hash), CreatedAt: u.CreatedAt}
	}
	for owner, list := range s.records {
		out := make([]snapshotRecord, len(list))
		for i, r := range list {
			amount := r.Amount
			out[i] = snapshotRecord{
				ID:          r.ID,
				Date:        r.Date.String(),
				Description: r.Description,
				Amount:      &amount,
				CreatedAt:   r.CreatedAt,
			}
		}
		snap.Records[owner] = out
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
