// This file implements parsing and validation of request parameters and
// bodies shared by the handlers.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"expensebook/internal/core"
	"expensebook/internal/navigation"
)

const maxBodyBytes = 64 << 10

// ErrInvalidStep rejects a "step" parameter other than prev or next.
var ErrInvalidStep = errors.New("step must be prev or next")

// ParseMonthParam reads the viewed month from "month=YYYY-MM", or from
// "year" and numeric "month" as a fallback. An absent month means
// today's month.
func ParseMonthParam(query url.Values, today core.Date) (core.MonthKey, error) {
	raw := strings.TrimSpace(query.Get("month"))
	if raw == "" {
		return today.MonthKey(), nil
	}
	if strings.Contains(raw, "-") {
		return core.ParseMonthKey(raw)
	}

	m, err := strconv.Atoi(raw)
	if err != nil || m < 1 || m > 12 {
		return "", fmt.Errorf("%w: %q", core.ErrInvalidMonthKey, raw)
	}
	year := today.Year()
	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 || y > 9999 {
			return "", fmt.Errorf("%w: year %q", core.ErrInvalidMonthKey, v)
		}
		year = y
	}
	return core.MonthKeyOf(year, time.Month(m)), nil
}

// ParseStepParam reads the optional "step=prev|next" navigation request.
// The bool is false when no step was asked for.
func ParseStepParam(query url.Values) (navigation.Direction, bool, error) {
	raw := strings.TrimSpace(query.Get("step"))
	if raw == "" {
		return 0, false, nil
	}
	dir, ok := navigation.ParseDirection(raw)
	if !ok {
		return 0, false, fmt.Errorf("%w: %q", ErrInvalidStep, raw)
	}
	return dir, true, nil
}

// ParseNewRecord builds an add request from the "date", "description" and
// "amount" fields. A blank date means today.
func ParseNewRecord(get func(string) string, today core.Date) (core.NewRecord, error) {
	date := today
	if raw := get("date"); raw != "" {
		d, err := core.ParseDate(raw)
		if err != nil {
			return core.NewRecord{}, err
		}
		date = d
	}

	amount, err := core.ParseAmount(get("amount"))
	if err != nil {
		return core.NewRecord{}, err
	}

	rec := core.NewRecord{
		Date:        date,
		Description: get("description"),
		Amount:      amount,
	}
	return rec, rec.Validate()
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads the body once, up to 64 KiB.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body != nil {
		p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
		if p.err == nil && len(p.body) > maxBodyBytes {
			p.err = errors.New("request body too large")
		}
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '{' || strings.Contains(p.contentType, "application/json") {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a sanitized string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	return sanitizeInput(p.Raw(key))
}

// Raw returns the value exactly as sent. Secrets are read this way.
func (p *RequestBodyParser) Raw(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return stringValue(val)
		}
		return ""
	}
	if p.formData != nil {
		return p.formData.Get(key)
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// RequireMethod checks if the request method matches the expected method(s).
// Returns an error response builder if the method doesn't match.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// RequirePOST is a convenience function for POST-only handlers.
func RequirePOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}

// RequireDeleteOrPOST is a convenience function for DELETE/POST handlers.
func RequireDeleteOrPOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodDelete, http.MethodPost)
}

// sanitizeInput trims and drops control characters other than tab and newlines.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}
