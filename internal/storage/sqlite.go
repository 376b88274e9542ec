// Package storage provides the durable backends behind the profile
// repository port: SQLite for real use and an in-memory store for tests and
// ephemeral runs. Profiles are persisted as one JSON document per username,
// with a single-row table recording the active profile for fast reload.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"tally/internal/core"
	"tally/internal/profile"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Load implements profile.Repository. A row whose document no longer parses
// is reported as an error distinct from ErrNotFound so the session can log
// the corruption before falling back to defaults.
func (r *SQLiteRepository) Load(ctx context.Context, username string) (*core.Profile, error) {
	var doc string
	err := r.db.QueryRowContext(ctx,
		`SELECT document FROM profiles WHERE username = ?`, username).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, profile.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query profile %q: %w", username, err)
	}

	var p core.Profile
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return nil, fmt.Errorf("decode profile %q: %w", username, err)
	}
	return &p, nil
}

// Save implements profile.Repository with an upsert keyed by username.
func (r *SQLiteRepository) Save(ctx context.Context, p *core.Profile) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile %q: %w", p.Username, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO profiles (username, document, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (username) DO UPDATE SET
			document   = excluded.document,
			updated_at = excluded.updated_at`,
		p.Username, string(doc), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save profile %q: %w", p.Username, err)
	}

	slog.DebugContext(ctx, "Profile saved",
		"username", p.Username,
		"months", len(p.Ledger),
		"bytes", len(doc))
	return nil
}

// SetActive implements profile.Repository.
func (r *SQLiteRepository) SetActive(ctx context.Context, username string) error {
	if username == "" {
		if _, err := r.db.ExecContext(ctx, `DELETE FROM active_profile WHERE id = 1`); err != nil {
			return fmt.Errorf("clear active profile: %w", err)
		}
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO active_profile (id, username) VALUES (1, ?)
		ON CONFLICT (id) DO UPDATE SET username = excluded.username`, username)
	if err != nil {
		return fmt.Errorf("set active profile: %w", err)
	}
	return nil
}

// Active implements profile.Repository. No recorded profile is an empty
// username, not an error.
func (r *SQLiteRepository) Active(ctx context.Context) (string, error) {
	var username string
	err := r.db.QueryRowContext(ctx,
		`SELECT username FROM active_profile WHERE id = 1`).Scan(&username)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query active profile: %w", err)
	}
	return username, nil
}

// Usernames lists every stored profile, for diagnostics.
func (r *SQLiteRepository) Usernames(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT username FROM profiles ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan username: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
