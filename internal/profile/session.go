// Package profile manages the login session: which profile is current,
// which month is being viewed, and the write-through of every mutation to
// the profile repository.
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"tally/internal/core"
	"tally/internal/ledger"
)

// ErrNotLoggedIn reports a mutation attempted without a current profile.
var ErrNotLoggedIn = errors.New("not logged in")

// Options configure how a session seeds and decorates categories.
type Options struct {
	// DefaultCategories seed a profile whose registry is empty.
	DefaultCategories []string
	// DecorateCategories appends the presentation suffix to new labels.
	DecorateCategories bool
	// Now overrides the clock, for tests. Nil means time.Now.
	Now func() time.Time
}

// Session is the single mutable session object: exactly one profile may be
// current at a time. All methods are safe for concurrent use; the mutex
// serializes mutations so the repository only ever sees one writer.
type Session struct {
	mu       sync.Mutex
	repo     Repository
	opts     Options
	now      func() time.Time
	current  *core.Profile
	registry *ledger.Registry
	book     *ledger.Book
	active   core.MonthKey
}

func NewSession(repo Repository, opts Options) *Session {
	if len(opts.DefaultCategories) == 0 {
		opts.DefaultCategories = core.DefaultCategories
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Session{repo: repo, opts: opts, now: now}
}

// Login loads the profile stored under username, or creates a fresh one when
// the username is unseen. A profile whose stored record cannot be read falls
// back to a fresh default rather than failing the login. The active month is
// reset to the current calendar month.
func (s *Session) Login(ctx context.Context, username string) (*core.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Normalize before the lookup: the stored record is keyed by the trimmed
	// username, and missing it here would shadow it with a fresh profile.
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, core.ErrEmptyUsername
	}

	now := s.now()
	p, err := s.repo.Load(ctx, username)
	switch {
	case err == nil:
		p.LastLogin = now
		slog.InfoContext(ctx, "Profile loaded", "username", p.Username, "months", len(p.Ledger))
	case errors.Is(err, ErrNotFound):
		p, err = core.NewProfile(username, now)
		if err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "Profile created", "username", p.Username)
	default:
		// Unreadable record: start from defaults, keep the session alive.
		slog.WarnContext(ctx, "Profile load failed, using defaults", "username", username, "error", err)
		p, err = core.NewProfile(username, now)
		if err != nil {
			return nil, err
		}
	}

	if p.Ledger == nil {
		p.Ledger = make(map[core.MonthKey][]core.Expense)
	}
	if len(p.Categories) == 0 {
		p.Categories = append([]string(nil), s.opts.DefaultCategories...)
	}

	s.current = p
	s.registry = ledger.NewRegistry(p.Categories, s.opts.DecorateCategories)
	s.book = ledger.NewBook(p.Ledger)
	s.active = core.MonthKeyOf(now)

	s.persist(ctx)
	if err := s.repo.SetActive(ctx, p.Username); err != nil {
		slog.WarnContext(ctx, "Recording active profile failed", "username", p.Username, "error", err)
	}
	return p, nil
}

// Logout clears the current profile reference. Persisted data stays.
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return
	}
	slog.InfoContext(ctx, "Logged out", "username", s.current.Username)
	s.current = nil
	s.registry = nil
	s.book = nil
	s.active = ""
	if err := s.repo.SetActive(ctx, ""); err != nil {
		slog.WarnContext(ctx, "Clearing active profile failed", "error", err)
	}
}

// Resume restores the profile the repository last recorded as active, if
// any. Used at process start so a reload lands back in the same session.
func (s *Session) Resume(ctx context.Context) (*core.Profile, error) {
	username, err := s.repo.Active(ctx)
	if err != nil {
		return nil, fmt.Errorf("read active profile: %w", err)
	}
	if username == "" {
		return nil, nil
	}
	return s.Login(ctx, username)
}

func (s *Session) IsLoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// Current returns the logged-in profile, or nil.
func (s *Session) Current() *core.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// UpdateProfile shallow-merges the patch into the current profile and writes
// through. Without a login it is a silent no-op.
func (s *Session) UpdateProfile(ctx context.Context, patch core.ProfilePatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return
	}
	s.current.Apply(patch)
	if patch.Categories != nil {
		s.registry = ledger.NewRegistry(s.current.Categories, s.opts.DecorateCategories)
	}
	s.persist(ctx)
}

// SwitchMonth points the session at another ledger bucket. The month does
// not have to exist; an empty month is a valid, empty view.
func (s *Session) SwitchMonth(k core.MonthKey) error {
	if !k.Valid() {
		return fmt.Errorf("bad month key %q", k)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = k
	return nil
}

func (s *Session) ActiveMonth() core.MonthKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// AddExpense validates and records a new expense. The category must exist in
// the registry. The expense files under the calendar month of occursAt (zero
// means now), regardless of which month is being viewed.
func (s *Session) AddExpense(ctx context.Context, amount core.Money, category, description string, occursAt time.Time) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return core.Expense{}, ErrNotLoggedIn
	}
	if !s.registry.Contains(category) {
		return core.Expense{}, fmt.Errorf("category %q: %w", category, core.ErrUnknownCategory)
	}
	if occursAt.IsZero() {
		occursAt = s.now()
	}
	e, err := core.NewExpense(amount, category, description, occursAt)
	if err != nil {
		return core.Expense{}, err
	}
	s.book.Add(e)
	s.persist(ctx)
	slog.InfoContext(ctx, "Expense added",
		"username", s.current.Username,
		"id", e.ID,
		"month", e.Month,
		"amount_cents", e.Amount.Cents,
		"category", e.Category)
	return e, nil
}

// EditExpense applies the patch to the stored expense. A patched category
// must exist in the registry; a patched date moves the expense to the bucket
// of its new month.
func (s *Session) EditExpense(ctx context.Context, id string, patch core.ExpensePatch) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return core.Expense{}, ErrNotLoggedIn
	}
	old, ok := s.book.Find(id)
	if !ok {
		return core.Expense{}, fmt.Errorf("expense %s: %w", id, ErrNotFound)
	}
	if patch.Category != nil && !s.registry.Contains(*patch.Category) {
		return core.Expense{}, fmt.Errorf("category %q: %w", *patch.Category, core.ErrUnknownCategory)
	}
	edited, err := core.ApplyPatch(old, patch)
	if err != nil {
		return core.Expense{}, err
	}
	s.book.Update(edited)
	s.persist(ctx)
	return edited, nil
}

// DeleteExpense removes the expense with the given id. Deleting an unknown
// id is a no-op.
func (s *Session) DeleteExpense(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return
	}
	if s.book.Remove(id) {
		s.persist(ctx)
	}
}

// AddCategory appends a label to the registry. Blank or duplicate labels are
// a silent no-op, per the registry contract.
func (s *Session) AddCategory(ctx context.Context, label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return
	}
	before := s.registry.Len()
	s.registry.Add(label)
	if s.registry.Len() == before {
		return
	}
	s.current.Categories = s.registry.Labels()
	s.persist(ctx)
}

// DeleteCategory removes the label from the registry AND every expense in
// every month that references it. The cascade is destructive and cannot be
// undone.
func (s *Session) DeleteCategory(ctx context.Context, label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return
	}
	if !s.registry.Delete(label) {
		return
	}
	removed := s.book.DeleteCategory(label)
	s.current.Categories = s.registry.Labels()
	s.persist(ctx)
	slog.InfoContext(ctx, "Category deleted",
		"username", s.current.Username,
		"category", label,
		"expenses_removed", removed)
}

// Categories lists the registry labels in insertion order.
func (s *Session) Categories() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.registry == nil {
		return nil
	}
	return s.registry.Labels()
}

// MonthExpenses returns the bucket for the given month, empty when absent.
func (s *Session) MonthExpenses(k core.MonthKey) []core.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.book == nil {
		return nil
	}
	return s.book.MonthExpenses(k)
}

// CurrentMonthExpenses returns the bucket the active month pointer names.
func (s *Session) CurrentMonthExpenses() []core.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.book == nil {
		return nil
	}
	return s.book.MonthExpenses(s.active)
}

// Months lists every bucket key, newest first.
func (s *Session) Months() []core.MonthKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.book == nil {
		return nil
	}
	return s.book.Months()
}

// Usernames lists every stored profile, for the login screen.
func (s *Session) Usernames(ctx context.Context) ([]string, error) {
	return s.repo.Usernames(ctx)
}

// persist writes the current profile through. A failed write is surfaced as
// a warning only: the in-memory profile stays authoritative for the rest of
// the session. Callers hold the mutex.
func (s *Session) persist(ctx context.Context) {
	if err := s.repo.Save(ctx, s.current); err != nil {
		slog.WarnContext(ctx, "Profile save failed, in-memory state kept",
			"username", s.current.Username, "error", err)
	}
}
