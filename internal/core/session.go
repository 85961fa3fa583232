package core

import (
	"errors"
	"time"
)

var (
	ErrUnauthenticated    = errors.New("not logged in")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserExists         = errors.New("account already exists")
	ErrMissingCredentials = errors.New("email and password are required")
)

// Session is the identity every store and service call is scoped to.
type Session struct {
	Owner     string
	Token     string
	ExpiresAt time.Time
}

// Valid reports whether the session names an owner and has not expired.
func (s Session) Valid(now time.Time) bool {
	return s.Owner != "" && (s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt))
}
