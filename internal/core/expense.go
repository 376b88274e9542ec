package core

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrEmptyCategory   = errors.New("empty category")
	ErrUnknownCategory = errors.New("unknown category")
	ErrEmptyUsername   = errors.New("empty username")
)

// MonthKey identifies a calendar month in the canonical "YYYY-MM" form.
// Keys sort lexicographically in chronological order.
type MonthKey string

var monthKeyRe = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// MonthKeyOf derives the month key from a point in time.
func MonthKeyOf(t time.Time) MonthKey {
	return MonthKey(t.Format("2006-01"))
}

func (k MonthKey) Valid() bool {
	return monthKeyRe.MatchString(string(k))
}

// Time returns midnight on the first day of the month, UTC.
func (k MonthKey) Time() (time.Time, error) {
	t, err := time.Parse("2006-01", string(k))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse month key %q: %w", k, err)
	}
	return t, nil
}

// Label renders the key for humans, e.g. "March 2024". Invalid keys are
// returned verbatim so they stay visible instead of disappearing.
func (k MonthKey) Label() string {
	t, err := k.Time()
	if err != nil {
		return string(k)
	}
	return t.Format("January 2006")
}

// Expense is a single recorded outgoing. Month always equals the calendar
// month of Date; the active month pointer decides what is displayed, never
// which bucket an expense files under.
type Expense struct {
	ID          string    `json:"id"`
	Amount      Money     `json:"amount"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	Month       MonthKey  `json:"month"`
}

// NewExpense builds a validated expense. A zero occursAt means now.
// Category membership in the registry is the caller's check.
func NewExpense(amount Money, category, description string, occursAt time.Time) (Expense, error) {
	if occursAt.IsZero() {
		occursAt = time.Now()
	}
	e := Expense{
		ID:          uuid.New().String(),
		Amount:      amount,
		Category:    strings.TrimSpace(category),
		Description: strings.TrimSpace(description),
		Date:        occursAt,
		Month:       MonthKeyOf(occursAt),
	}
	if err := e.Validate(); err != nil {
		return Expense{}, err
	}
	return e, nil
}

func (e Expense) Validate() error {
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if e.Category == "" {
		return ErrEmptyCategory
	}
	if e.Date.IsZero() {
		return errors.New("date cannot be zero")
	}
	if e.Month != MonthKeyOf(e.Date) {
		return fmt.Errorf("month %q does not match date %s", e.Month, e.Date.Format("2006-01-02"))
	}
	return nil
}

// ExpensePatch carries the fields an edit may replace. Nil fields are left
// untouched.
type ExpensePatch struct {
	Amount      *Money
	Category    *string
	Description *string
	Date        *time.Time
}

// ApplyPatch returns the edited expense. A changed date re-derives Month, so
// an expense can never sit in a bucket that disagrees with its own date.
func ApplyPatch(e Expense, p ExpensePatch) (Expense, error) {
	if p.Amount != nil {
		if err := p.Amount.Validate(); err != nil {
			return Expense{}, err
		}
		e.Amount = *p.Amount
	}
	if p.Category != nil {
		c := strings.TrimSpace(*p.Category)
		if c == "" {
			return Expense{}, ErrEmptyCategory
		}
		e.Category = c
	}
	if p.Description != nil {
		e.Description = strings.TrimSpace(*p.Description)
	}
	if p.Date != nil {
		if p.Date.IsZero() {
			return Expense{}, errors.New("date cannot be zero")
		}
		e.Date = *p.Date
		e.Month = MonthKeyOf(e.Date)
	}
	return e, nil
}
