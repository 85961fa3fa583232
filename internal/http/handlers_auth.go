package http

import (
	"net/http"

	"expensebook/internal/core"
	"expensebook/internal/log"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if resp := RequireMethod(r, http.MethodGet, http.MethodHead); resp != nil {
		resp.Write(w)
		return
	}

	today := s.today()
	view := indexView{
		Today:  today.String(),
		Month:  string(today.MonthKey()),
		Notice: noticeText(r.URL.Query().Get("notice")),
	}
	if month, err := ParseMonthParam(r.URL.Query(), today); err == nil {
		view.Month = string(month)
	}
	if sess, err := s.currentSession(r); err == nil {
		view.LoggedIn = true
		view.Owner = sess.Owner
	}
	w.Header().Set("Cache-Control", "no-store")
	s.render(w, r, "index.html", http.StatusOK, view)
}

func noticeText(code string) string {
	switch code {
	case "registered":
		return "Account created, you can log in now"
	case "deleted":
		return "Your account and all its records were deleted"
	case "logged_out":
		return "You have been logged out"
	default:
		return ""
	}
}

// handleRegister creates an account. It does not log the user in.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}

	if err := s.auth.Register(r.Context(), p.Get("email"), p.Raw("password")); err != nil {
		s.fail(w, r, log.OpRegister, err)
		return
	}

	switch {
	case p.IsJSON():
		writeJSON(w, http.StatusCreated, map[string]string{"status": "registered"})
	case isHTMX(r):
		SuccessResponse("Account created, you can log in now").Write(w)
	default:
		http.Redirect(w, r, "/?notice=registered", http.StatusSeeOther)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}

	sess, err := s.auth.Login(r.Context(), p.Get("email"), p.Raw("password"))
	if err != nil {
		s.fail(w, r, log.OpLogin, err)
		return
	}
	s.setSessionCookie(w, sess)

	switch {
	case p.IsJSON():
		writeJSON(w, http.StatusOK, map[string]any{
			"token":      sess.Token,
			"owner":      sess.Owner,
			"expires_at": sess.ExpiresAt,
		})
	case isHTMX(r):
		NewHTMXResponse().Redirect("/").Write(w)
	default:
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if s.auth != nil {
		s.auth.Logout(sessionToken(r))
	}
	s.clearSessionCookie(w)

	if isHTMX(r) {
		NewHTMXResponse().Redirect("/?notice=logged_out").Write(w)
		return
	}
	http.Redirect(w, r, "/?notice=logged_out", http.StatusSeeOther)
}

// handleDeleteAccount re-checks the password, then removes the account and
// every record it owns.
func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request, sess core.Session) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}

	n, err := s.auth.DeleteAccount(r.Context(), sess, p.Raw("password"))
	if err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	if s.dashboards != nil {
		s.dashboards.Invalidate(sess.Owner)
	}
	s.clearSessionCookie(w)
	log.FromContext(r.Context()).InfoContext(r.Context(), "Account deleted", "records", n)

	switch {
	case p.IsJSON():
		writeJSON(w, http.StatusOK, map[string]int{"deleted_records": n})
	case isHTMX(r):
		NewHTMXResponse().Redirect("/?notice=deleted").Write(w)
	default:
		http.Redirect(w, r, "/?notice=deleted", http.StatusSeeOther)
	}
}
