package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// DateLayout is the ISO calendar date layout used for record dates.
const DateLayout = "2006-01-02"

// MonthLayout is the layout of a MonthKey.
const MonthLayout = "2006-01"

type (
	// Date is a calendar date without a time component. The wrapped time
	// is always midnight UTC so two Dates for the same day compare equal.
	Date struct {
		time.Time
	}

	// MonthKey identifies a calendar month as "YYYY-MM".
	MonthKey string

	// Record is a single dated expense owned by one identity.
	// Records are created and deleted, never edited.
	Record struct {
		ID          string
		Date        Date
		Description string
		Amount      float64
		CreatedAt   time.Time
	}

	// NewRecord is the caller-supplied part of a Record for an add request.
	NewRecord struct {
		Date        Date
		Description string
		Amount      float64
	}
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidMonthKey  = errors.New("invalid month key")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")

	ErrDescriptionTooLong = errors.New("description too long")
)

// MaxDescriptionLength bounds the free-text label of a record.
const MaxDescriptionLength = 200

// NewDate creates a Date from year, month, day. Out of range values are
// normalized the way time.Date does.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a strict "YYYY-MM-DD" string.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// MustParseDate is ParseDate for literals known to be valid.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// String renders the date as "YYYY-MM-DD".
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// AddDays returns the date n calendar days after d.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.AddDate(0, 0, n)}
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool {
	return d.Time.After(other.Time)
}

// MonthKey returns the "YYYY-MM" bucket the date falls into.
func (d Date) MonthKey() MonthKey {
	return MonthKey(d.Format(MonthLayout))
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	return nil
}

// MonthKeyOf builds a MonthKey from a year and month.
func MonthKeyOf(year int, month time.Month) MonthKey {
	return MonthKey(fmt.Sprintf("%04d-%02d", year, int(month)))
}

// ParseMonthKey validates a "YYYY-MM" string.
func ParseMonthKey(s string) (MonthKey, error) {
	s = strings.TrimSpace(s)
	if _, err := time.Parse(MonthLayout, s); err != nil || len(s) != len(MonthLayout) {
		return "", fmt.Errorf("%w: %q", ErrInvalidMonthKey, s)
	}
	return MonthKey(s), nil
}

// FirstDay returns the first calendar day of the month.
func (k MonthKey) FirstDay() (Date, error) {
	t, err := time.ParseInLocation(MonthLayout, string(k), time.UTC)
	if err != nil || len(k) != len(MonthLayout) {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidMonthKey, string(k))
	}
	return Date{Time: t}, nil
}

// LastDay returns the last calendar day of the month.
func (k MonthKey) LastDay() (Date, error) {
	first, err := k.FirstDay()
	if err != nil {
		return Date{}, err
	}
	return Date{Time: first.AddDate(0, 1, -1)}, nil
}

// Contains reports whether d falls within the month.
func (k MonthKey) Contains(d Date) bool {
	return strings.HasPrefix(d.String(), string(k))
}

func (k MonthKey) String() string {
	return string(k)
}

// Validate checks a record before it crosses the write boundary.
// Negative, zero and non-finite amounts are rejected here; the aggregation
// code never validates amounts.
func (n NewRecord) Validate() error {
	if err := n.Date.Validate(); err != nil {
		return err
	}
	desc := strings.TrimSpace(n.Description)
	if desc == "" {
		return ErrEmptyDescription
	}
	if len(desc) > MaxDescriptionLength {
		return fmt.Errorf("%w (max %d characters)", ErrDescriptionTooLong, MaxDescriptionLength)
	}
	if math.IsNaN(n.Amount) || math.IsInf(n.Amount, 0) || n.Amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Materialize turns a validated request into a Record with the given id.
func (n NewRecord) Materialize(id string, createdAt time.Time) Record {
	return Record{
		ID:          id,
		Date:        n.Date,
		Description: strings.TrimSpace(n.Description),
		Amount:      n.Amount,
		CreatedAt:   createdAt,
	}
}
