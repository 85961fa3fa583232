package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"expensebook/internal/log"
)

func TestMiddlewareAssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Level: slog.LevelInfo, Output: &buf})
	m := NewMiddleware(logger, func(*http.Request) string { return "10.0.0.1" })

	var ctxID string
	var ctxLogger *log.Logger
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = GetRequestID(r.Context())
		ctxLogger = log.FromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ping", nil))

	if !strings.HasPrefix(ctxID, "req_") {
		t.Fatalf("request id = %q", ctxID)
	}
	if rr.Header().Get(HeaderRequestID) != ctxID {
		t.Errorf("response header = %q, want %q", rr.Header().Get(HeaderRequestID), ctxID)
	}
	if ctxLogger.Component() != log.ComponentHTTP {
		t.Errorf("context logger component = %q", ctxLogger.Component())
	}

	out := buf.String()
	if !strings.Contains(out, "HTTP request started") || !strings.Contains(out, "status_code=418") {
		t.Errorf("unexpected log output: %q", out)
	}
	if !strings.Contains(out, "level=WARN") {
		t.Errorf("4xx should log at warn: %q", out)
	}

	if got := m.GetMetrics().TotalRequests; got != 1 {
		t.Errorf("TotalRequests = %d", got)
	}
}

func TestMiddlewareKeepsValidIncomingID(t *testing.T) {
	m := NewMiddleware(log.New(log.Config{Output: &bytes.Buffer{}}), nil)
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	tests := []struct {
		in   string
		keep bool
	}{
		{"abc-123", true},
		{"bad id with spaces", false},
		{strings.Repeat("x", 100), false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, tt.in)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		got := rr.Header().Get(HeaderRequestID)
		if (got == tt.in) != tt.keep {
			t.Errorf("incoming %q -> %q, keep=%v", tt.in, got, tt.keep)
		}
	}
}
