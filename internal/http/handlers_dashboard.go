package http

import (
	"context"
	"net/http"

	"expensebook/internal/core"
	"expensebook/internal/log"
	"expensebook/internal/services"
)

// buildDashboard builds the month named by the query. With "step" it moves
// one month with data before or after it; stepping off either end is an
// OutOfRangeError.
func (s *Server) buildDashboard(r *http.Request, sess core.Session) (services.Dashboard, error) {
	today := s.today()
	query := r.URL.Query()
	month, err := ParseMonthParam(query, today)
	if err != nil {
		return services.Dashboard{}, err
	}
	dir, step, err := ParseStepParam(query)
	if err != nil {
		return services.Dashboard{}, err
	}

	ctx, cancel := context.WithTimeout(r.Context(), dashboardTimeout)
	defer cancel()
	d, err := s.dashboards.Build(ctx, sess, month, today)
	if err != nil || !step {
		return d, err
	}
	w, err := d.Window.Advance(dir)
	if err != nil {
		return services.Dashboard{}, err
	}
	return s.dashboards.Build(ctx, sess, w.MonthKey, today)
}

// handleDashboardPartial renders the charts and lists for one month.
func (s *Server) handleDashboardPartial(w http.ResponseWriter, r *http.Request, sess core.Session) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}
	d, err := s.buildDashboard(r, sess)
	if err != nil {
		s.fail(w, r, log.OpRender, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	s.render(w, r, "dashboard.html", http.StatusOK, newDashboardView(d))
}

// handleDashboardJSON serves the pre-aggregated series for client-side charts.
func (s *Server) handleDashboardJSON(w http.ResponseWriter, r *http.Request, sess core.Session) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	d, err := s.buildDashboard(r, sess)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, newDashboardJSON(d))
}
