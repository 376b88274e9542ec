package profile

import (
	"context"
	"errors"

	"tally/internal/core"
)

// ErrNotFound reports that no profile is stored under a username. Callers
// treat it as "first login", not a failure.
var ErrNotFound = errors.New("profile not found")

// Repository is the persistence port for profiles. Implementations store one
// keyed record per username plus a separate record naming the active profile
// for fast reload.
type Repository interface {
	// Load returns the stored profile or ErrNotFound.
	Load(ctx context.Context, username string) (*core.Profile, error)
	// Save writes the profile through, replacing any previous record.
	Save(ctx context.Context, p *core.Profile) error
	// SetActive records which profile the session last used. An empty
	// username clears the record.
	SetActive(ctx context.Context, username string) error
	// Active returns the recorded username, or "" when none is set.
	Active(ctx context.Context) (string, error)
	// Usernames lists every stored profile, sorted, for the login screen.
	Usernames(ctx context.Context) ([]string, error)
}
