package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"expensebook/internal/auth"
	"expensebook/internal/log"
	"expensebook/internal/memory"
	"expensebook/internal/services"
	"expensebook/internal/store"
)

const (
	testEmail    = "ann@example.com"
	testPassword = "secret-pw"
)

var testNow = time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	srv     *Server
	records *store.Versioned
	mem     *memory.Store
}

func newTestEnv(t *testing.T, mutate ...func(*Deps)) *testEnv {
	t.Helper()
	mem := memory.New()
	records := store.NewVersioned(mem)
	dashboards := services.NewDashboardService(records, services.DashboardOptions{})
	expenses := services.NewExpenseService(records, nil)

	deps := Deps{
		Auth: auth.NewService(mem, expenses, auth.Options{
			BcryptCost:       bcrypt.MinCost,
			OnAccountDeleted: dashboards.Invalidate,
		}),
		Expenses:   expenses,
		Dashboards: dashboards,
		Health:     mem.Health,
		Logger:     log.New(log.Config{Level: slog.LevelError, Output: io.Discard}),
		Now:        func() time.Time { return testNow },
	}
	for _, m := range mutate {
		m(&deps)
	}
	srv := NewServer(":0", deps)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{srv: srv, records: records, mem: mem}
}

func (e *testEnv) do(t *testing.T, method, target string, form url.Values, cookie *http.Cookie, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func sessionCookie(rr *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == SessionCookie && c.Value != "" {
			return c
		}
	}
	return nil
}

// login registers the test account and returns its session cookie.
func (e *testEnv) login(t *testing.T) *http.Cookie {
	t.Helper()
	creds := url.Values{"email": {testEmail}, "password": {testPassword}}
	if rr := e.do(t, http.MethodPost, "/register", creds, nil); rr.Code != http.StatusSeeOther {
		t.Fatalf("register status=%d body=%s", rr.Code, rr.Body.String())
	}
	rr := e.do(t, http.MethodPost, "/login", creds, nil)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("login status=%d body=%s", rr.Code, rr.Body.String())
	}
	c := sessionCookie(rr)
	if c == nil {
		t.Fatal("login did not set a session cookie")
	}
	return c
}

func (e *testEnv) addExpense(t *testing.T, cookie *http.Cookie, date, desc, amount string) {
	t.Helper()
	form := url.Values{"date": {date}, "description": {desc}, "amount": {amount}}
	if rr := e.do(t, http.MethodPost, "/expenses", form, cookie, "HX-Request", "true"); rr.Code != http.StatusOK {
		t.Fatalf("add expense status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestIndexAndHealth(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Log in") || !strings.Contains(body, "Register") {
		t.Fatalf("anonymous index should show login and register forms")
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("request id header missing")
	}

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rr := env.do(t, http.MethodGet, path, nil, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}

	if rr := env.do(t, http.MethodGet, "/nope", nil, nil); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown path status=%d", rr.Code)
	}
}

func TestReadyzReportsBackendFailure(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) {
		d.Health = func(context.Context) error { return errors.New("db down") }
	})
	if rr := env.do(t, http.MethodGet, "/readyz", nil, nil); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status=%d, want 503", rr.Code)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	creds := url.Values{"email": {testEmail}, "password": {testPassword}}

	tests := []struct {
		name   string
		path   string
		form   url.Values
		status int
		want   string
	}{
		{"missing password", "/register", url.Values{"email": {testEmail}}, http.StatusUnprocessableEntity, "required"},
		{"short password", "/register", url.Values{"email": {testEmail}, "password": {"abc"}}, http.StatusUnprocessableEntity, "at least"},
		{"register", "/register", creds, http.StatusSeeOther, ""},
		{"duplicate", "/register", creds, http.StatusConflict, "already exists"},
		{"wrong password", "/login", url.Values{"email": {testEmail}, "password": {"nope-nope"}}, http.StatusUnauthorized, "Wrong username or password"},
		{"unknown user", "/login", url.Values{"email": {"bob@example.com"}, "password": {testPassword}}, http.StatusUnauthorized, "Wrong username or password"},
		{"login", "/login", creds, http.StatusSeeOther, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, tt.path, tt.form, nil)
			if rr.Code != tt.status {
				t.Fatalf("status=%d, want %d (body %s)", rr.Code, tt.status, rr.Body.String())
			}
			if tt.want != "" && !strings.Contains(rr.Body.String(), tt.want) {
				t.Errorf("body %q does not contain %q", rr.Body.String(), tt.want)
			}
		})
	}
}

func TestPasswordWhitespaceIsSignificant(t *testing.T) {
	env := newTestEnv(t)
	spaced := "  secret-pw  "

	reg := url.Values{"email": {testEmail}, "password": {spaced}}
	if rr := env.do(t, http.MethodPost, "/register", reg, nil); rr.Code != http.StatusSeeOther {
		t.Fatalf("register status=%d body=%s", rr.Code, rr.Body.String())
	}

	trimmed := url.Values{"email": {testEmail}, "password": {"secret-pw"}}
	if rr := env.do(t, http.MethodPost, "/login", trimmed, nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("trimmed password status=%d, want 401", rr.Code)
	}
	rr := env.do(t, http.MethodPost, "/login", reg, nil)
	if rr.Code != http.StatusSeeOther || sessionCookie(rr) == nil {
		t.Fatalf("exact password status=%d, want 303 with a session", rr.Code)
	}
}

func TestLoginHTMXRedirects(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	creds := url.Values{"email": {testEmail}, "password": {testPassword}}
	rr := env.do(t, http.MethodPost, "/login", creds, nil, "HX-Request", "true")
	if rr.Code != http.StatusOK || rr.Header().Get("HX-Redirect") != "/" {
		t.Fatalf("status=%d HX-Redirect=%q", rr.Code, rr.Header().Get("HX-Redirect"))
	}

	cookie := sessionCookie(rr)
	index := env.do(t, http.MethodGet, "/", nil, cookie)
	if !strings.Contains(index.Body.String(), "Add expense") || !strings.Contains(index.Body.String(), testEmail) {
		t.Fatalf("logged-in index should show the entry form")
	}
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/expenses", url.Values{"description": {"x"}, "amount": {"1"}}, nil)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("browser POST without session status=%d, want 303", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/ui/dashboard", nil, nil, "HX-Request", "true")
	if rr.Code != http.StatusUnauthorized || rr.Header().Get("HX-Redirect") != "/" {
		t.Fatalf("htmx without session status=%d redirect=%q", rr.Code, rr.Header().Get("HX-Redirect"))
	}

	rr = env.do(t, http.MethodGet, "/api/expenses", nil, &http.Cookie{Name: SessionCookie, Value: "forged"})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("api with forged token status=%d, want 401", rr.Code)
	}
}

func TestCreateExpenseValidationAndSuccess(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)

	// Wrong method
	rr := env.do(t, http.MethodGet, "/expenses", nil, cookie)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}

	invalid := []url.Values{
		{"description": {"x"}, "amount": {"abc"}},
		{"description": {"x"}, "amount": {"-3"}},
		{"description": {""}, "amount": {"1.23"}},
		{"description": {"x"}, "amount": {"1"}, "date": {"2024-02-30"}},
		{"description": {strings.Repeat("a", 201)}, "amount": {"1"}},
	}
	for _, form := range invalid {
		rr := env.do(t, http.MethodPost, "/expenses", form, cookie)
		if rr.Code != http.StatusUnprocessableEntity {
			t.Fatalf("form %v: expected 422, got %d", form, rr.Code)
		}
	}

	rr = env.do(t, http.MethodPost, "/expenses", url.Values{"description": {"Coffee"}, "amount": {"2,50"}}, cookie, "HX-Request", "true")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "success") || !strings.Contains(rr.Body.String(), "2024-03-05") {
		t.Fatalf("expected success dated today in body: %s", rr.Body.String())
	}
	trigger := rr.Header().Get("HX-Trigger")
	for _, want := range []string{EventRecordCreated, EventFormReset, EventDashboardRefresh, `"month":"2024-03"`} {
		if !strings.Contains(trigger, want) {
			t.Fatalf("HX-Trigger = %q, missing %s", trigger, want)
		}
	}

	records, err := env.records.ListRecords(context.Background(), testEmail)
	if err != nil || len(records) != 1 || records[0].Amount != 2.5 {
		t.Fatalf("stored records = %+v, err %v", records, err)
	}
}

func TestCreateExpenseJSON(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)

	req := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader(`{"date":"2024-03-01","description":"Rent","amount":800}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var got recordJSON
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID == "" || got.Date != "2024-03-01" || got.Amount != 800 {
		t.Fatalf("record = %+v", got)
	}
}

func TestDashboardViews(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)
	env.addExpense(t, cookie, "2024-02-10", "Rent", "500")
	env.addExpense(t, cookie, "2024-03-01", "Lunch", "10")
	env.addExpense(t, cookie, "2024-03-05", "Lunch", "15")
	env.addExpense(t, cookie, "2024-03-05", "Coffee", "2")

	rr := env.do(t, http.MethodGet, "/ui/dashboard", nil, cookie)
	if rr.Code != http.StatusOK {
		t.Fatalf("partial status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	for _, want := range []string{"March 2024", "step=prev", "Lunch", "Coffee", "€27"} {
		if !strings.Contains(body, want) {
			t.Errorf("partial missing %q", want)
		}
	}

	rr = env.do(t, http.MethodGet, "/ui/dashboard?month=2024-13", nil, cookie)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad month status=%d, want 422", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/api/dashboard?month=2024-03", nil, cookie)
	if rr.Code != http.StatusOK {
		t.Fatalf("api status=%d", rr.Code)
	}
	var d dashboardJSON
	if err := json.NewDecoder(rr.Body).Decode(&d); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if d.State != "at_end" || d.PrevMonth != "2024-02" || d.NextMonth != "" {
		t.Errorf("navigation = %s prev=%q next=%q", d.State, d.PrevMonth, d.NextMonth)
	}
	if len(d.Monthly.Labels) != 31 || d.MonthTotal != 27 {
		t.Errorf("monthly len=%d total=%v", len(d.Monthly.Labels), d.MonthTotal)
	}
	if len(d.Weekly.Labels) != 7 || d.Weekly.Labels[6] != "2024-03-05" {
		t.Errorf("weekly labels = %v", d.Weekly.Labels)
	}
	if strings.Join(d.Breakdown.Labels, ",") != "Lunch,Coffee" || d.Breakdown.Data[0] != 25 {
		t.Errorf("breakdown = %+v", d.Breakdown)
	}
	if d.TodayTotal != 17 || len(d.TodayRecords) != 2 {
		t.Errorf("today total=%v records=%d", d.TodayTotal, len(d.TodayRecords))
	}
}

func TestDashboardStepNavigation(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)
	env.addExpense(t, cookie, "2024-01-20", "Gym", "30")
	env.addExpense(t, cookie, "2024-03-01", "Lunch", "10")

	month := func(target string) dashboardJSON {
		t.Helper()
		rr := env.do(t, http.MethodGet, target, nil, cookie)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: status=%d body=%s", target, rr.Code, rr.Body.String())
		}
		var d dashboardJSON
		if err := json.NewDecoder(rr.Body).Decode(&d); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return d
	}

	// February has no records, so stepping back from March lands on January.
	if d := month("/api/dashboard?month=2024-03&step=prev"); d.Month != "2024-01" || d.State != "at_start" {
		t.Errorf("prev from March = %s (%s)", d.Month, d.State)
	}
	if d := month("/api/dashboard?month=2024-01&step=next"); d.Month != "2024-03" {
		t.Errorf("next from January = %s", d.Month)
	}

	tests := []struct {
		target string
		status int
	}{
		{"/api/dashboard?month=2024-03&step=next", http.StatusBadRequest},
		{"/api/dashboard?month=2024-02&step=prev", http.StatusBadRequest},
		{"/api/dashboard?month=2024-03&step=sideways", http.StatusUnprocessableEntity},
		{"/ui/dashboard?month=2024-03&step=prev", http.StatusOK},
	}
	for _, tt := range tests {
		if rr := env.do(t, http.MethodGet, tt.target, nil, cookie); rr.Code != tt.status {
			t.Errorf("%s: status=%d, want %d", tt.target, rr.Code, tt.status)
		}
	}
}

func TestDeleteExpense(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)
	env.addExpense(t, cookie, "2024-03-05", "Coffee", "2")

	records, _ := env.records.ListRecords(context.Background(), testEmail)
	id := records[0].ID

	rr := env.do(t, http.MethodDelete, "/expenses/delete?id="+url.QueryEscape(id), nil, cookie, "HX-Request", "true")
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status=%d body=%s", rr.Code, rr.Body.String())
	}
	if trigger := rr.Header().Get("HX-Trigger"); !strings.Contains(trigger, EventRecordDeleted) || !strings.Contains(trigger, EventDashboardRefresh) {
		t.Errorf("HX-Trigger = %q", trigger)
	}

	rr = env.do(t, http.MethodPost, "/expenses/delete", url.Values{"id": {id}}, cookie)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second delete status=%d, want 404", rr.Code)
	}
}

func TestExpensesAPI(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)
	env.addExpense(t, cookie, "2024-02-10", "Rent", "500")
	env.addExpense(t, cookie, "2024-03-01", "Lunch", "10")

	var list struct {
		Records []recordJSON `json:"records"`
	}
	rr := env.do(t, http.MethodGet, "/api/expenses?month=2024-03", nil, cookie)
	if err := json.NewDecoder(rr.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Records) != 1 || list.Records[0].Description != "Lunch" {
		t.Fatalf("filtered records = %+v", list.Records)
	}

	rr = env.do(t, http.MethodDelete, "/api/expenses", nil, cookie)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"deleted":2`) {
		t.Fatalf("delete all status=%d body=%s", rr.Code, rr.Body.String())
	}
	if n, _ := env.records.ListRecords(context.Background(), testEmail); len(n) != 0 {
		t.Fatalf("records left: %d", len(n))
	}
}

func TestDeleteAccount(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)
	env.addExpense(t, cookie, "2024-03-05", "Coffee", "2")

	rr := env.do(t, http.MethodPost, "/account/delete", url.Values{"password": {"wrong-pw"}}, cookie)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password status=%d, want 401", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/account/delete", url.Values{"password": {testPassword}}, cookie)
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/?notice=deleted" {
		t.Fatalf("delete status=%d location=%q", rr.Code, rr.Header().Get("Location"))
	}

	if rr := env.do(t, http.MethodGet, "/api/expenses", nil, cookie); rr.Code != http.StatusUnauthorized {
		t.Fatalf("old session still valid: %d", rr.Code)
	}
	if n, _ := env.mem.ListRecords(context.Background(), testEmail); len(n) != 0 {
		t.Fatalf("records survived account deletion: %d", len(n))
	}
	creds := url.Values{"email": {testEmail}, "password": {testPassword}}
	if rr := env.do(t, http.MethodPost, "/login", creds, nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("login after deletion status=%d", rr.Code)
	}
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)

	rr := env.do(t, http.MethodPost, "/logout", nil, cookie)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("logout status=%d", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, "/api/dashboard", nil, cookie); rr.Code != http.StatusUnauthorized {
		t.Fatalf("session survived logout: %d", rr.Code)
	}
}

func TestRateLimitOnPost(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.RateLimitPerMinute = 2 })

	form := url.Values{"email": {"x@example.com"}, "password": {"bad"}}
	for i := 0; i < 2; i++ {
		if rr := env.do(t, http.MethodPost, "/login", form, nil); rr.Code == http.StatusTooManyRequests {
			t.Fatalf("request %d limited too early", i)
		}
	}
	rr := env.do(t, http.MethodPost, "/login", form, nil)
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") == "" {
		t.Fatalf("status=%d Retry-After=%q", rr.Code, rr.Header().Get("Retry-After"))
	}

	// GETs are not counted.
	if rr := env.do(t, http.MethodGet, "/", nil, nil); rr.Code != http.StatusOK {
		t.Fatalf("GET limited: %d", rr.Code)
	}
}

func TestStaticAssets(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/static/app.css", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("static status=%d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("Cache-Control"), "max-age=3600") {
		t.Errorf("Cache-Control = %q", rr.Header().Get("Cache-Control"))
	}
}
