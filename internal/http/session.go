package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"expensebook/internal/core"
	"expensebook/internal/log"
)

// SessionCookie carries the session token.
const SessionCookie = "expensebook_session"

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess core.Session)

func (s *Server) setSessionCookie(w http.ResponseWriter, sess core.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// currentSession resolves the request's session, if any.
func (s *Server) currentSession(r *http.Request) (core.Session, error) {
	if s.auth == nil {
		return core.Session{}, core.ErrUnauthenticated
	}
	return s.auth.Authenticate(sessionToken(r))
}

// requireSession rejects requests without a live session. Browsers are sent
// back to the login page; API clients get a 401.
func (s *Server) requireSession(next sessionHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.currentSession(r)
		if err != nil {
			s.clearSessionCookie(w)
			switch {
			case strings.HasPrefix(r.URL.Path, "/api/"):
				writeJSONError(w, http.StatusUnauthorized, userMessage(err))
			case isHTMX(r):
				NewHTMXResponse().Status(http.StatusUnauthorized).Redirect("/").Write(w)
			default:
				http.Redirect(w, r, "/", http.StatusSeeOther)
			}
			return
		}

		ctx := log.WithLogger(r.Context(), log.FromContext(r.Context()).With(log.FieldOwner, sess.Owner))
		next(w, r.WithContext(ctx), sess)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
