package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"expensebook/internal/auth"
	"expensebook/internal/cache"
	"expensebook/internal/core"
	"expensebook/internal/log"
	"expensebook/internal/middleware/ratelimit"
	"expensebook/internal/middleware/security"
	"expensebook/internal/middleware/trace"
	"expensebook/internal/services"
	appweb "expensebook/web"
)

const (
	staticMaxAge     = 3600
	readyzTimeout    = 3 * time.Second
	dashboardTimeout = 7 * time.Second
)

// Deps are the collaborators the server routes requests to.
type Deps struct {
	Auth       *auth.Service
	Expenses   *services.ExpenseService
	Dashboards *services.DashboardService
	// Health reports whether the backing stores are reachable; nil means always ready.
	Health func(ctx context.Context) error
	Logger *log.Logger

	RateLimitPerMinute int
	SecureCookies      bool
	// Now is the clock used for "today"; defaults to time.Now.
	Now func() time.Time
}

type Server struct {
	http.Server
	templates *template.Template

	auth       *auth.Service
	expenses   *services.ExpenseService
	dashboards *services.DashboardService
	health     func(ctx context.Context) error

	logger     *log.Logger
	structured *log.StructuredLogger
	limiter    *ratelimit.Limiter
	detector   *security.Detector
	tracer     *trace.Middleware
	caches     *cache.Manager

	secureCookies bool
	now           func() time.Time
	shutdownOnce  sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	limiterCfg := ratelimit.DefaultConfig()
	if deps.RateLimitPerMinute > 0 {
		limiterCfg.RequestsPerMinute = deps.RateLimitPerMinute
	}
	detector := security.NewDetector()

	s := &Server{
		auth:          deps.Auth,
		expenses:      deps.Expenses,
		dashboards:    deps.Dashboards,
		health:        deps.Health,
		logger:        logger,
		structured:    log.NewStructuredLogger(logger),
		limiter:       ratelimit.NewLimiter(limiterCfg),
		detector:      detector,
		tracer:        trace.NewMiddleware(logger, detector.ExtractClientIP),
		caches:        cache.NewManager(logger.Logger),
		secureCookies: deps.SecureCookies,
		now:           now,
	}
	if s.auth != nil {
		s.caches.Register("sessions", s.auth.Sessions())
	}
	if s.dashboards != nil {
		s.caches.Register("dashboards", s.dashboards.Cache())
	}

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", log.FieldError, err)
		t = nil
	}
	s.templates = t

	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(staticMaxAge)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)

	mux.HandleFunc("/register", s.handleRegister)
	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/logout", s.handleLogout)
	mux.Handle("/account/delete", s.requireSession(s.handleDeleteAccount))

	mux.Handle("/expenses", s.requireSession(s.handleCreateExpense))
	mux.Handle("/expenses/delete", s.requireSession(s.handleDeleteExpense))

	// UI partials
	mux.Handle("/ui/dashboard", s.requireSession(s.handleDashboardPartial))

	mux.Handle("/api/dashboard", s.requireSession(s.handleDashboardJSON))
	mux.Handle("/api/expenses", s.requireSession(s.handleExpensesJSON))

	limited := s.limiter.Middleware(
		limiterCfg.Methods,
		detector.ExtractClientIP,
		s.onRateLimited,
	)(mux)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(limited)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.tracer.Middleware(detector.Middleware(false)(headers)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// StartBackground starts the periodic cache cleanup.
func (s *Server) StartBackground(interval time.Duration) {
	s.caches.StartCleanup(interval)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func (s *Server) today() core.Date {
	return core.DateOf(s.now())
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Too many requests, please try again later").Write(w)
}

// render executes a named template, answering 500 when templates are missing.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, status int, data any) {
	if s.templates == nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Templates not loaded", log.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err, "template", name)
	}
}

// fail logs err and writes the mapped status as an HTML fragment, or as
// JSON for API clients.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.structured.LogError(r.Context(), "Request failed", err, op, log.NewFields())
	} else {
		log.FromContext(r.Context()).DebugContext(r.Context(), "Request rejected",
			log.FieldOperation, op, log.FieldError, err, log.FieldStatusCode, status)
	}
	if wantsJSON(r) {
		writeJSONError(w, status, userMessage(err))
		return
	}
	ErrorResponse(status, userMessage(err)).Write(w)
}

func wantsJSON(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/") ||
		strings.Contains(r.Header.Get("Content-Type"), "application/json")
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
