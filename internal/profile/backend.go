package profile

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
)

// ErrNotFound is returned by a Backend when no record exists for a user.
var ErrNotFound = errors.New("profile not found")

// Backend is durable profile storage. Put replaces the whole record.
type Backend interface {
	Get(ctx context.Context, userID string) (*Profile, error)
	Put(ctx context.Context, p *Profile) error
}

// Lister is implemented by backends that can enumerate stored profiles.
type Lister interface {
	List(ctx context.Context) ([]*Profile, error)
}

// MemoryBackend keeps profiles in process memory.
type MemoryBackend struct {
	mu       sync.Mutex
	profiles map[string]*Profile
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{profiles: make(map[string]*Profile)}
}

func (m *MemoryBackend) Get(_ context.Context, userID string) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (m *MemoryBackend) Put(_ context.Context, p *Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.UserID] = p.Clone()
	return nil
}

// List returns every stored profile ordered by user id.
func (m *MemoryBackend) List(_ context.Context) ([]*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, p.Clone())
	}
	slices.SortFunc(out, func(a, b *Profile) int { return strings.Compare(a.UserID, b.UserID) })
	return out, nil
}
