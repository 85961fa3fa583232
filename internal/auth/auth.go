// Package auth registers accounts, checks passwords and keeps login
// sessions. A core.Session issued here is the identity every record
// operation is scoped to.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"expensebook/internal/cache"
	"expensebook/internal/core"
	"expensebook/internal/ports"
)

const (
	DefaultSessionTTL  = 24 * time.Hour
	MinPasswordLength  = 6
	maxPasswordBytes   = 72
	defaultMaxSessions = 10000
)

var (
	ErrInvalidEmail    = errors.New("invalid email address")
	ErrWeakPassword    = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrPasswordTooLong = fmt.Errorf("password must be at most %d bytes", maxPasswordBytes)
)

// RecordWiper removes every record of a session owner. The expense service
// satisfies it and announces each removal to the sheet mirror.
type RecordWiper interface {
	DeleteAllRecords(ctx context.Context, sess core.Session) (int, error)
}

// Options tune the service; zero values pick defaults.
type Options struct {
	SessionTTL  time.Duration
	MaxSessions int
	BcryptCost  int
	Logger      *slog.Logger
	// OnAccountDeleted runs after an account and its records are gone.
	OnAccountDeleted func(owner string)
}

type Service struct {
	creds    ports.CredentialStore
	records  RecordWiper
	sessions *cache.LRUCache[core.Session]
	ttl      time.Duration
	cost     int
	logger   *slog.Logger
	now      func() time.Time
	onDelete func(owner string)
}

func NewService(creds ports.CredentialStore, records RecordWiper, opts Options) *Service {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = defaultMaxSessions
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		creds:    creds,
		records:  records,
		sessions: cache.NewLRUCache[core.Session](opts.MaxSessions, opts.SessionTTL),
		ttl:      opts.SessionTTL,
		cost:     opts.BcryptCost,
		logger:   opts.Logger,
		now:      time.Now,
		onDelete: opts.OnAccountDeleted,
	}
}

// Sessions exposes the session cache so it can be registered for cleanup.
func (s *Service) Sessions() cache.Cleaner { return s.sessions }

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account. It does not log the user in.
func (s *Service) Register(ctx context.Context, email, password string) error {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return core.ErrMissingCredentials
	}
	if !strings.Contains(email, "@") {
		return ErrInvalidEmail
	}
	if len(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	if len(password) > maxPasswordBytes {
		return ErrPasswordTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.creds.CreateUser(ctx, email, hash); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Account registered", "owner", email)
	return nil
}

// Login verifies the password and issues a new session.
func (s *Service) Login(ctx context.Context, email, password string) (core.Session, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return core.Session{}, core.ErrMissingCredentials
	}
	if err := s.verify(ctx, email, password); err != nil {
		return core.Session{}, err
	}

	token, err := newToken()
	if err != nil {
		return core.Session{}, fmt.Errorf("generate session token: %w", err)
	}
	sess := core.Session{Owner: email, Token: token, ExpiresAt: s.now().Add(s.ttl)}
	s.sessions.Set(token, sess)
	s.logger.InfoContext(ctx, "Login succeeded", "owner", email)
	return sess, nil
}

func (s *Service) verify(ctx context.Context, email, password string) error {
	hash, err := s.creds.PasswordHash(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		return core.ErrInvalidCredentials
	}
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return core.ErrInvalidCredentials
	}
	return nil
}

// Logout forgets the session; unknown tokens are ignored.
func (s *Service) Logout(token string) {
	if token != "" {
		s.sessions.Delete(token)
	}
}

// Authenticate resolves a token to its session.
func (s *Service) Authenticate(token string) (core.Session, error) {
	if token == "" {
		return core.Session{}, core.ErrUnauthenticated
	}
	sess, ok := s.sessions.Get(token)
	if !ok || !sess.Valid(s.now()) {
		s.sessions.Delete(token)
		return core.Session{}, core.ErrUnauthenticated
	}
	return sess, nil
}

// DeleteAccount re-checks the password, wipes the owner's records, removes
// the credentials and ends every session of the owner. It returns how many
// records were deleted.
func (s *Service) DeleteAccount(ctx context.Context, sess core.Session, password string) (int, error) {
	if !sess.Valid(s.now()) {
		return 0, core.ErrUnauthenticated
	}
	if password == "" {
		return 0, core.ErrMissingCredentials
	}
	if err := s.verify(ctx, sess.Owner, password); err != nil {
		return 0, err
	}

	n, err := s.records.DeleteAllRecords(ctx, sess)
	if err != nil {
		return 0, err
	}
	if err := s.creds.DeleteUser(ctx, sess.Owner); err != nil && !errors.Is(err, core.ErrNotFound) {
		return n, err
	}
	s.sessions.DeleteFunc(func(_ string, other core.Session) bool { return other.Owner == sess.Owner })
	if s.onDelete != nil {
		s.onDelete(sess.Owner)
	}

	s.logger.InfoContext(ctx, "Account deleted", "owner", sess.Owner, "records", n)
	return n, nil
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
