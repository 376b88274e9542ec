package http

import (
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tally/internal/charts"
	"tally/internal/core"
	"tally/internal/ledger"
	"tally/internal/profile"
	"tally/internal/report"
)

// expenseRow is one rendered ledger line.
type expenseRow struct {
	ID          string
	Date        string
	Category    string
	Description string
	Amount      string
}

// trackerData feeds both the full page and the month overview partial.
type trackerData struct {
	Username   string
	Month      string
	MonthLabel string
	Months     []string
	Categories []string
	Total      string
	Symbol     string
	Theme      string
	Currency   string
	Language   string
	Rows       []expenseRow
}

func (s *Server) trackerData() trackerData {
	p := s.session.Current()
	month := s.session.ActiveMonth()
	expenses := s.session.MonthExpenses(month)

	data := trackerData{
		Username:   p.Username,
		Month:      string(month),
		MonthLabel: month.Label(),
		Categories: s.session.Categories(),
		Symbol:     currencySymbol(p.Settings.Currency),
		Theme:      p.Settings.Theme,
		Currency:   p.Settings.Currency,
		Language:   p.Settings.Language,
		Total:      ledger.TotalSpent(expenses).Decimal(),
	}
	for _, k := range s.session.Months() {
		data.Months = append(data.Months, string(k))
	}
	for _, e := range expenses {
		data.Rows = append(data.Rows, expenseRow{
			ID:          e.ID,
			Date:        e.Date.Format("2006-01-02"),
			Category:    e.Category,
			Description: e.Description,
			Amount:      e.Amount.Decimal(),
		})
	}
	return data
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	if !s.session.IsLoggedIn() {
		usernames, err := s.session.Usernames(r.Context())
		if err != nil {
			slog.ErrorContext(r.Context(), "Username list error", "error", err)
		}
		data := struct{ Usernames []string }{Usernames: usernames}
		if err := s.templates.ExecuteTemplate(w, "login.html", data); err != nil {
			slog.ErrorContext(r.Context(), "Login template execution failed", "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	if err := s.templates.ExecuteTemplate(w, "index.html", s.trackerData()); err != nil {
		slog.ErrorContext(r.Context(), "Index template execution failed", "error", err, "template", "index.html")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if err := r.ParseForm(); err != nil {
		badForm(w, r, err)
		return
	}

	username := sanitizeInput(r.Form.Get("username"))
	p, err := s.session.Login(r.Context(), username)
	if err != nil {
		if errors.Is(err, core.ErrEmptyUsername) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`<div class="error">Username cannot be empty</div>`))
			return
		}
		slog.ErrorContext(r.Context(), "Login error", "error", err, "username", username)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	slog.InfoContext(r.Context(), "User logged in", "username", p.Username)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	s.invalidateUser()
	s.session.Logout(r.Context())
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if err := r.ParseForm(); err != nil {
		badForm(w, r, err)
		return
	}
	if !s.requireLogin(w) {
		return
	}

	desc := sanitizeInput(r.Form.Get("description"))
	amountStr := strings.TrimSpace(r.Form.Get("amount"))
	category := sanitizeInput(r.Form.Get("category"))

	cents, err := core.ParseDecimalToCents(amountStr)
	if err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`<div class="error">Invalid amount</div>`))
		return
	}

	occursAt := time.Time{}
	if v := strings.TrimSpace(r.Form.Get("date")); v != "" {
		d, err := parseDate(v)
		if err != nil {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`<div class="error">Invalid date</div>`))
			return
		}
		occursAt = d
	}

	e, err := s.session.AddExpense(r.Context(), core.Money{Cents: cents}, category, desc, occursAt)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrUnknownCategory):
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`<div class="error">Unknown category: ` + template.HTMLEscapeString(category) + `</div>`))
		case errors.Is(err, core.ErrInvalidAmount):
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`<div class="error">Invalid amount</div>`))
		default:
			slog.ErrorContext(r.Context(), "Expense create error", "error", err, "category", category)
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`<div class="error">Could not record expense</div>`))
		}
		return
	}

	s.invalidateUser()
	w.Header().Set("HX-Trigger", fmt.Sprintf(`{"expense:created": {"month": %q}}`, e.Month))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<div class="success">Recorded: ` +
		template.HTMLEscapeString(e.Description) +
		` ` + template.HTMLEscapeString(e.Amount.Decimal()) +
		` (` + template.HTMLEscapeString(e.Category) + `)</div>`))
}

func (s *Server) handleEditExpense(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if err := r.ParseForm(); err != nil {
		badForm(w, r, err)
		return
	}
	if !s.requireLogin(w) {
		return
	}

	id := strings.TrimSpace(r.Form.Get("id"))
	if id == "" {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`<div class="error">Missing expense id</div>`))
		return
	}

	var patch core.ExpensePatch
	if v := strings.TrimSpace(r.Form.Get("amount")); v != "" {
		cents, err := core.ParseDecimalToCents(v)
		if err != nil {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`<div class="error">Invalid amount</div>`))
			return
		}
		patch.Amount = &core.Money{Cents: cents}
	}
	if v := sanitizeInput(r.Form.Get("category")); v != "" {
		patch.Category = &v
	}
	if r.Form.Has("description") {
		v := sanitizeInput(r.Form.Get("description"))
		patch.Description = &v
	}
	if v := strings.TrimSpace(r.Form.Get("date")); v != "" {
		d, err := parseDate(v)
		if err != nil {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`<div class="error">Invalid date</div>`))
			return
		}
		patch.Date = &d
	}

	e, err := s.session.EditExpense(r.Context(), id, patch)
	if err != nil {
		switch {
		case errors.Is(err, profile.ErrNotFound):
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`<div class="error">Expense not found</div>`))
		case errors.Is(err, core.ErrUnknownCategory), errors.Is(err, core.ErrInvalidAmount):
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`<div class="error">` + template.HTMLEscapeString(err.Error()) + `</div>`))
		default:
			slog.ErrorContext(r.Context(), "Expense edit error", "error", err, "id", id)
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`<div class="error">Could not update expense</div>`))
		}
		return
	}

	s.invalidateUser()
	w.Header().Set("HX-Trigger", fmt.Sprintf(`{"expense:updated": {"month": %q}}`, e.Month))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<div class="success">Updated: ` + template.HTMLEscapeString(e.Description) + `</div>`))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if err := r.ParseForm(); err != nil {
		badForm(w, r, err)
		return
	}
	if !s.requireLogin(w) {
		return
	}

	id := strings.TrimSpace(r.Form.Get("id"))
	s.session.DeleteExpense(r.Context(), id)
	s.invalidateUser()
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<div class="success">Expense removed</div>`))
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if err := r.ParseForm(); err != nil {
		badForm(w, r, err)
		return
	}
	if !s.requireLogin(w) {
		return
	}

	name := sanitizeInput(r.Form.Get("name"))
	if name == "" {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`<div class="error">Category name cannot be empty</div>`))
		return
	}
	s.session.AddCategory(r.Context(), name)
	s.invalidateUser()
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<div class="success">Category saved</div>`))
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if err := r.ParseForm(); err != nil {
		badForm(w, r, err)
		return
	}
	if !s.requireLogin(w) {
		return
	}

	name := sanitizeInput(r.Form.Get("name"))
	s.session.DeleteCategory(r.Context(), name)
	s.invalidateUser()
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<div class="success">Category removed</div>`))
}

// handleUpdateSettings merges submitted settings into the profile. Fields
// left blank keep their current value.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if err := r.ParseForm(); err != nil {
		badForm(w, r, err)
		return
	}
	if !s.requireLogin(w) {
		return
	}

	settings := s.session.Current().Settings
	if v := sanitizeInput(r.Form.Get("currency")); v != "" {
		settings.Currency = strings.ToUpper(v)
	}
	if v := sanitizeInput(r.Form.Get("language")); v != "" {
		settings.Language = v
	}
	if v := sanitizeInput(r.Form.Get("theme")); v != "" {
		if v != "light" && v != "dark" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`<div class="error">Theme must be light or dark</div>`))
			return
		}
		settings.Theme = v
	}

	s.session.UpdateProfile(r.Context(), core.ProfilePatch{Settings: &settings})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleSwitchMonth(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if err := r.ParseForm(); err != nil {
		badForm(w, r, err)
		return
	}
	if !s.requireLogin(w) {
		return
	}

	month := core.MonthKey(strings.TrimSpace(r.Form.Get("month")))
	if err := s.session.SwitchMonth(month); err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`<div class="error">Invalid month</div>`))
		return
	}
	s.handleMonthOverview(w, r)
}

// handleMonthOverview renders the monthly overview partial.
func (s *Server) handleMonthOverview(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if !s.session.IsLoggedIn() {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`<section id="month-overview" class="month-overview"><div class="placeholder">Log in to see your expenses</div></section>`))
		return
	}
	if s.templates == nil {
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	if err := s.templates.ExecuteTemplate(w, "month_overview.html", s.trackerData()); err != nil {
		slog.ErrorContext(r.Context(), "Template execution error", "error", err, "template", "month_overview.html")
		_, _ = w.Write([]byte(`<section id="month-overview" class="month-overview"><div class="placeholder">Could not render overview</div></section>`))
	}
}

// handleExport streams the active month's ledger as a CSV download.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if !s.requireLogin(w) {
		return
	}

	month := s.session.ActiveMonth()
	out, err := report.CSV(s.session.MonthExpenses(month))
	if err != nil {
		slog.ErrorContext(r.Context(), "CSV export error", "error", err, "month", month)
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename(month)))
	_, _ = w.Write(out)
}

// handleChart serves the active month's category pie chart as PNG.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	if !s.requireLogin(w) {
		return
	}

	p := s.session.Current()
	month := s.session.ActiveMonth()
	key := p.Username + ":" + string(month)

	png, found := s.chartCache.Get(key)
	if !found {
		summary := report.Summarize(s.session.MonthExpenses(month))
		var err error
		png, err = charts.CategoryPie(summary)
		if err != nil {
			slog.ErrorContext(r.Context(), "Chart render error", "error", err, "month", month)
			http.Error(w, "chart failed", http.StatusInternalServerError)
			return
		}
		if png != nil {
			s.chartCache.Set(key, png)
		}
	}

	if png == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// invalidateUser drops every cached view for the logged-in user.
func (s *Server) invalidateUser() {
	if p := s.session.Current(); p != nil {
		s.chartCache.DeletePrefix(p.Username + ":")
	}
}

func (s *Server) requireLogin(w http.ResponseWriter) bool {
	if s.session.IsLoggedIn() {
		return true
	}
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`<div class="error">Not logged in</div>`))
	return false
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func badForm(w http.ResponseWriter, r *http.Request, err error) {
	slog.ErrorContext(r.Context(), "Parse form error", "error", err, "method", r.Method, "url", r.URL.Path)
	w.WriteHeader(http.StatusBadRequest)
	_, _ = w.Write([]byte(`<div class="error">Invalid request format</div>`))
}
