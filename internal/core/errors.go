package core

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is; the typed errors below match them.
var (
	ErrInvalidRange = errors.New("invalid range")
	ErrOutOfRange   = errors.New("navigation out of range")
	ErrNotFound     = errors.New("not found")
	ErrUpstream     = errors.New("upstream failure")
)

// InvalidRangeError reports a malformed or inverted date range.
type InvalidRangeError struct {
	Start  string
	End    string
	Reason string
}

func (e *InvalidRangeError) Error() string {
	if e.Start == "" && e.End == "" {
		return fmt.Sprintf("invalid range: %s", e.Reason)
	}
	return fmt.Sprintf("invalid range %s..%s: %s", e.Start, e.End, e.Reason)
}

func (e *InvalidRangeError) Is(target error) bool { return target == ErrInvalidRange }

// OutOfRangeError reports a navigation step taken without checking bounds.
type OutOfRangeError struct {
	Index     int
	Length    int
	Direction string
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("cannot step %s from index %d of %d months", e.Direction, e.Index, e.Length)
}

func (e *OutOfRangeError) Is(target error) bool { return target == ErrOutOfRange }

// NotFoundError reports a lookup or delete by id with no match.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// UpstreamError wraps a failure from a persistence or identity backend.
// Its message is shown to users verbatim.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// Upstream wraps err as an UpstreamError unless it is nil or already a
// domain error that callers must be able to inspect.
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUpstream) {
		return err
	}
	return &UpstreamError{Op: op, Err: err}
}
