package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"tally/internal/core"
	"tally/internal/profile"
	"tally/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	session := profile.NewSession(storage.NewMemoryRepository(), profile.Options{
		DefaultCategories: []string{"Food 🍔", "Transport 🚗"},
		Now:               func() time.Time { return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC) },
	})
	srv := NewServer(":0", session)
	t.Cleanup(func() { srv.rateLimiter.stop() })
	return srv
}

func postForm(srv *Server, path string, form url.Values) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func get(srv *Server, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func login(t *testing.T, srv *Server, username string) {
	t.Helper()
	rr := postForm(srv, "/login", url.Values{"username": {username}})
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("login status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := get(srv, path)
		if rr.Code != 200 {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestIndexShowsLoginThenTracker(t *testing.T) {
	srv := newTestServer(t)

	rr := get(srv, "/")
	if rr.Code != 200 {
		t.Fatalf("index status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Sign in") {
		t.Fatalf("expected login screen, got: %s", rr.Body.String())
	}

	login(t, srv, "alice")

	rr = get(srv, "/")
	if rr.Code != 200 {
		t.Fatalf("index status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "alice") || !strings.Contains(body, "March 2024") {
		t.Fatalf("expected tracker for alice in March 2024, got: %s", body)
	}
}

func TestLoginRejectsBlankUsername(t *testing.T) {
	srv := newTestServer(t)
	rr := postForm(srv, "/login", url.Values{"username": {"   "}})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
}

func TestCreateExpenseValidationAndSuccess(t *testing.T) {
	srv := newTestServer(t)

	// Wrong method
	rr := get(srv, "/expenses")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}

	// Not logged in
	rr = postForm(srv, "/expenses", url.Values{"amount": {"1.23"}, "category": {"Food 🍔"}})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	login(t, srv, "alice")

	// Invalid amount
	rr = postForm(srv, "/expenses", url.Values{"amount": {"abc"}, "category": {"Food 🍔"}, "description": {"x"}})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}

	// Unknown category
	rr = postForm(srv, "/expenses", url.Values{"amount": {"1.23"}, "category": {"Yachts"}, "description": {"x"}})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}

	// Unparseable date
	rr = postForm(srv, "/expenses", url.Values{"amount": {"1.23"}, "category": {"Food 🍔"}, "description": {"x"}, "date": {"bananas"}})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for bad date, got %d", rr.Code)
	}
	if len(srv.session.CurrentMonthExpenses()) != 0 {
		t.Fatalf("bad date must not record an expense")
	}

	// Success
	rr = postForm(srv, "/expenses", url.Values{
		"amount":      {"12.50"},
		"category":    {"Food 🍔"},
		"description": {"lunch"},
		"date":        {"2024-03-10"},
	})
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "success") {
		t.Fatalf("expected success in body: %s", rr.Body.String())
	}

	// Overview shows the expense and total
	rr = get(srv, "/ui/month-overview")
	if rr.Code != 200 {
		t.Fatalf("overview status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "lunch") || !strings.Contains(body, "12.50") {
		t.Fatalf("overview missing expense: %s", body)
	}
}

func TestEditAndDeleteExpense(t *testing.T) {
	srv := newTestServer(t)
	login(t, srv, "alice")

	postForm(srv, "/expenses", url.Values{
		"amount": {"10.00"}, "category": {"Food 🍔"}, "description": {"dinner"}, "date": {"2024-03-08"},
	})
	expenses := srv.session.CurrentMonthExpenses()
	if len(expenses) != 1 {
		t.Fatalf("expected 1 expense, got %d", len(expenses))
	}
	id := expenses[0].ID

	// Move it to another month via edit
	rr := postForm(srv, "/expenses/edit", url.Values{"id": {id}, "date": {"2024-04-02"}})
	if rr.Code != 200 {
		t.Fatalf("edit status=%d: %s", rr.Code, rr.Body.String())
	}
	if got := srv.session.MonthExpenses(core.MonthKey("2024-04")); len(got) != 1 {
		t.Fatalf("expected expense moved to 2024-04, got %v", got)
	}

	// Unknown id is a 404
	rr = postForm(srv, "/expenses/edit", url.Values{"id": {"nope"}, "description": {"x"}})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}

	rr = postForm(srv, "/expenses/delete", url.Values{"id": {id}})
	if rr.Code != 200 {
		t.Fatalf("delete status=%d", rr.Code)
	}
	if got := srv.session.MonthExpenses(core.MonthKey("2024-04")); len(got) != 0 {
		t.Fatalf("expected expense gone, got %v", got)
	}
}

func TestCategoryLifecycle(t *testing.T) {
	srv := newTestServer(t)
	login(t, srv, "alice")

	rr := postForm(srv, "/categories", url.Values{"name": {"Books"}})
	if rr.Code != 200 {
		t.Fatalf("create category status=%d", rr.Code)
	}

	postForm(srv, "/expenses", url.Values{
		"amount": {"5.00"}, "category": {"Books"}, "description": {"novel"}, "date": {"2024-03-01"},
	})

	// Deleting the category cascades to its expenses
	rr = postForm(srv, "/categories/delete", url.Values{"name": {"Books"}})
	if rr.Code != 200 {
		t.Fatalf("delete category status=%d", rr.Code)
	}
	for _, e := range srv.session.CurrentMonthExpenses() {
		if e.Category == "Books" {
			t.Fatalf("expected Books expenses removed, found %+v", e)
		}
	}

	rr = postForm(srv, "/categories", url.Values{"name": {""}})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for blank name, got %d", rr.Code)
	}
}

func TestSwitchMonth(t *testing.T) {
	srv := newTestServer(t)
	login(t, srv, "alice")

	rr := postForm(srv, "/month", url.Values{"month": {"2024-01"}})
	if rr.Code != 200 {
		t.Fatalf("switch status=%d", rr.Code)
	}
	if got := srv.session.ActiveMonth(); got != "2024-01" {
		t.Fatalf("expected active month 2024-01, got %s", got)
	}
	if !strings.Contains(rr.Body.String(), "No expenses recorded") {
		t.Fatalf("expected empty overview, got %s", rr.Body.String())
	}

	rr = postForm(srv, "/month", url.Values{"month": {"march"}})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for malformed month, got %d", rr.Code)
	}
}

func TestExportCSV(t *testing.T) {
	srv := newTestServer(t)
	login(t, srv, "alice")

	postForm(srv, "/expenses", url.Values{
		"amount": {"12.50"}, "category": {"Food 🍔"}, "description": {"lunch"}, "date": {"2024-03-10"},
	})

	rr := get(srv, "/export")
	if rr.Code != 200 {
		t.Fatalf("export status=%d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "expenses_March 2024.csv") {
		t.Fatalf("unexpected disposition %q", cd)
	}
	body := rr.Body.String()
	if !strings.HasPrefix(body, "Date,Category,Description,Amount") {
		t.Fatalf("missing header row: %s", body)
	}
	if !strings.Contains(body, "2024-03-10") || !strings.Contains(body, "12.50") {
		t.Fatalf("missing expense row: %s", body)
	}
}

func TestChartEndpoint(t *testing.T) {
	srv := newTestServer(t)
	login(t, srv, "alice")

	// Empty month has no chart
	rr := get(srv, "/ui/chart.png")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for empty month, got %d", rr.Code)
	}

	postForm(srv, "/expenses", url.Values{
		"amount": {"12.50"}, "category": {"Food 🍔"}, "description": {"lunch"}, "date": {"2024-03-10"},
	})

	rr = get(srv, "/ui/chart.png")
	if rr.Code != 200 {
		t.Fatalf("chart status=%d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if srv.chartCache.Size() != 1 {
		t.Fatalf("expected rendered chart cached, size=%d", srv.chartCache.Size())
	}

	// Mutations drop the cached image
	postForm(srv, "/expenses", url.Values{
		"amount": {"3.00"}, "category": {"Transport 🚗"}, "description": {"bus"}, "date": {"2024-03-11"},
	})
	if srv.chartCache.Size() != 0 {
		t.Fatalf("expected cache invalidated after mutation, size=%d", srv.chartCache.Size())
	}
}

func TestUpdateSettings(t *testing.T) {
	srv := newTestServer(t)
	login(t, srv, "alice")

	rr := postForm(srv, "/settings", url.Values{"theme": {"dark"}, "currency": {"eur"}})
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("settings status=%d: %s", rr.Code, rr.Body.String())
	}
	got := srv.session.Current().Settings
	if got.Theme != "dark" || got.Currency != "EUR" {
		t.Fatalf("settings not applied: %+v", got)
	}

	// The tracker page reflects the new theme and currency symbol
	rr = get(srv, "/")
	body := rr.Body.String()
	if !strings.Contains(body, "theme-dark") {
		t.Fatalf("expected dark theme class in page: %s", body)
	}
	if !strings.Contains(body, "€") {
		t.Fatalf("expected euro symbol in page: %s", body)
	}

	// Omitted fields keep their values
	postForm(srv, "/settings", url.Values{"language": {"it"}})
	got = srv.session.Current().Settings
	if got.Theme != "dark" || got.Language != "it" {
		t.Fatalf("partial update clobbered settings: %+v", got)
	}

	// Invalid theme is rejected
	rr = postForm(srv, "/settings", url.Values{"theme": {"sepia"}})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for invalid theme, got %d", rr.Code)
	}
}

func TestLogoutClearsSession(t *testing.T) {
	srv := newTestServer(t)
	login(t, srv, "alice")

	rr := postForm(srv, "/logout", url.Values{})
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("logout status=%d", rr.Code)
	}
	if srv.session.IsLoggedIn() {
		t.Fatalf("expected logged out session")
	}
	rr = get(srv, "/ui/month-overview")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", rr.Code)
	}
}
