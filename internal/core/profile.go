package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Default category sets for a fresh profile. Two sizes exist because the
// product shipped both over time; configuration picks one.
var (
	MinimalDefaultCategories = []string{"Food 🍔", "Transport 🚗"}

	DefaultCategories = []string{
		"Food 🍔",
		"Transport 🚗",
		"Housing 🏠",
		"Utilities 💡",
		"Health 💊",
		"Entertainment 🎬",
		"Shopping 🛍️",
		"Travel ✈️",
		"Education 📚",
		"Other 🏷️",
	}
)

type Settings struct {
	Currency string `json:"currency"`
	Language string `json:"language"`
	Theme    string `json:"theme"`
}

func DefaultSettings() Settings {
	return Settings{Currency: "USD", Language: "en", Theme: "light"}
}

// Profile is the durable per-user record: identity, settings and the full
// monthly ledger. Its JSON form is the persisted layout, so it must
// round-trip losslessly (timestamps are RFC 3339 via encoding/json).
type Profile struct {
	Username   string                 `json:"username"`
	ID         string                 `json:"id"`
	CreatedAt  time.Time              `json:"created_at"`
	LastLogin  time.Time              `json:"last_login"`
	Categories []string               `json:"categories"`
	Ledger     map[MonthKey][]Expense `json:"monthly_expenses"`
	Settings   Settings               `json:"settings"`
}

// NewProfile creates a fresh profile for a previously unseen username.
func NewProfile(username string, now time.Time) (*Profile, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrEmptyUsername
	}
	return &Profile{
		Username:  username,
		ID:        uuid.New().String(),
		CreatedAt: now,
		LastLogin: now,
		Ledger:    make(map[MonthKey][]Expense),
		Settings:  DefaultSettings(),
	}, nil
}

// ProfilePatch carries the profile fields an update may replace.
type ProfilePatch struct {
	Settings   *Settings
	Categories []string
}

// Apply shallow-merges the patch into the profile.
func (p *Profile) Apply(patch ProfilePatch) {
	if patch.Settings != nil {
		p.Settings = *patch.Settings
	}
	if patch.Categories != nil {
		p.Categories = patch.Categories
	}
}
