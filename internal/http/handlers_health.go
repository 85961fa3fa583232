package http

import (
	"context"
	"net/http"
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady checks the backing stores.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyzTimeout)
		defer cancel()
		if err := s.health(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", "error", err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

type metricsJSON struct {
	Requests struct {
		Total         int64 `json:"total"`
		AvgResponseUs int64 `json:"avg_response_us"`
	} `json:"requests"`
	RateLimit struct {
		Hits    int64 `json:"hits"`
		Clients int64 `json:"clients"`
	} `json:"rate_limit"`
	Security struct {
		Suspicious int64 `json:"suspicious"`
		Blocked    int64 `json:"blocked"`
	} `json:"security"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var m metricsJSON

	tm := s.tracer.GetMetrics()
	m.Requests.Total = tm.TotalRequests
	m.Requests.AvgResponseUs = tm.AverageResponseTime

	rm := s.limiter.GetMetrics()
	m.RateLimit.Hits = rm.TotalHits
	m.RateLimit.Clients = rm.ClientCount

	dm := s.detector.GetMetrics()
	m.Security.Suspicious = dm.SuspiciousRequests
	m.Security.Blocked = dm.BlockedRequests

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, m)
}
