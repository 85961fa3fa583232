package http

import (
	"html/template"
	"net/http"
	"strings"

	"expensebook/internal/core"
	"expensebook/internal/log"
)

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request, sess core.Session) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}

	rec, err := ParseNewRecord(p.Get, s.today())
	if err != nil {
		s.fail(w, r, log.OpValidate, err)
		return
	}

	saved, err := s.expenses.AddRecord(r.Context(), sess, rec)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	s.dashboards.Invalidate(sess.Owner)
	s.structured.LogRecordAdded(r.Context(), sess.Owner, saved.ID, saved.Date.String(), saved.Description, saved.Amount)

	if p.IsJSON() {
		writeJSON(w, http.StatusCreated, newRecordJSON(saved))
		return
	}
	NewHTMXResponse().
		TriggerRecordCreated(saved.ID, string(saved.Date.MonthKey())).
		TriggerDashboardRefresh(string(saved.Date.MonthKey())).
		TriggerFormReset().
		BodyHTML(`<div class="success" role="status">Saved ` +
			template.HTMLEscapeString(saved.Description) + ` (` +
			template.HTMLEscapeString(money(saved.Amount)) + `) on ` +
			saved.Date.String() + `</div>`).
		Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request, sess core.Session) {
	if resp := RequireDeleteOrPOST(r); resp != nil {
		resp.Write(w)
		return
	}
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	id := p.Get("id")
	if id == "" {
		id = sanitizeInput(r.URL.Query().Get("id"))
	}

	if err := s.expenses.DeleteRecord(r.Context(), sess, id); err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	s.dashboards.Invalidate(sess.Owner)
	log.FromContext(r.Context()).InfoContext(r.Context(), "Record deleted", log.FieldRecordID, id)

	if p.IsJSON() {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	NewHTMXResponse().
		TriggerRecordDeleted(id).
		TriggerDashboardRefresh("").
		TriggerSuccessNotification("Record deleted").
		Write(w)
}

// handleExpensesJSON lists the owner's records (GET) or wipes them all (DELETE).
func (s *Server) handleExpensesJSON(w http.ResponseWriter, r *http.Request, sess core.Session) {
	switch r.Method {
	case http.MethodGet:
		records, err := s.expenses.ListRecords(r.Context(), sess)
		if err != nil {
			s.fail(w, r, log.OpList, err)
			return
		}
		if month := strings.TrimSpace(r.URL.Query().Get("month")); month != "" {
			key, err := ParseMonthParam(r.URL.Query(), s.today())
			if err != nil {
				s.fail(w, r, log.OpList, err)
				return
			}
			filtered := records[:0:0]
			for _, rec := range records {
				if key.Contains(rec.Date) {
					filtered = append(filtered, rec)
				}
			}
			records = filtered
		}
		writeJSON(w, http.StatusOK, map[string]any{"records": recordsJSON(records)})

	case http.MethodDelete:
		n, err := s.expenses.DeleteAllRecords(r.Context(), sess)
		if err != nil {
			s.fail(w, r, log.OpDelete, err)
			return
		}
		s.dashboards.Invalidate(sess.Owner)
		log.FromContext(r.Context()).InfoContext(r.Context(), "All records deleted", "count", n)
		writeJSON(w, http.StatusOK, map[string]int{"deleted": n})

	default:
		w.Header().Set("Allow", "GET, DELETE")
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
