package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"tally/internal/core"
	"tally/internal/profile"
)

// MemoryRepository keeps serialized profiles in a map. It round-trips
// documents through JSON exactly like the SQLite backend so the two are
// interchangeable in tests and behind DATA_BACKEND=memory.
type MemoryRepository struct {
	mu     sync.Mutex
	docs   map[string][]byte
	active string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{docs: make(map[string][]byte)}
}

func (r *MemoryRepository) Load(_ context.Context, username string) (*core.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	raw, ok := r.docs[username]
	if !ok {
		return nil, profile.ErrNotFound
	}
	var p core.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode profile %q: %w", username, err)
	}
	return &p, nil
}

func (r *MemoryRepository) Save(_ context.Context, p *core.Profile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile %q: %w", p.Username, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[p.Username] = raw
	return nil
}

func (r *MemoryRepository) SetActive(_ context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = username
	return nil
}

func (r *MemoryRepository) Active(_ context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active, nil
}

func (r *MemoryRepository) Usernames(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.docs))
	for name := range r.docs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Corrupt overwrites a stored document with garbage. Test hook for the
// unreadable-record fallback path.
func (r *MemoryRepository) Corrupt(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[username] = []byte("{not json")
}
