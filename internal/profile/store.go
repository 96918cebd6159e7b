package profile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrEmptyUserID is returned for operations without a user id.
var ErrEmptyUserID = errors.New("user id is required")

// Store is the get-or-create profile cache in front of a durable Backend.
//
// Mutations of one user are serialized; different users proceed
// independently. Backend failures are logged and never surface to callers:
// a failed read yields a fresh profile and a failed write is retried on the
// next flush.
type Store struct {
	backend    Backend
	logger     *zap.Logger
	now        func() time.Time
	flushEvery int
	loadWait   time.Duration

	mu      sync.Mutex
	entries map[string]*entry
	loads   singleflight.Group
}

// entry is one cached profile and its per-user lock.
type entry struct {
	mu      sync.Mutex
	profile *Profile
	pending int

	// transient entries come from a load that ran out of time. They are not
	// cached and never written back over the durable record.
	transient bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Default: no-op.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithFlushEvery persists a profile after every n mutations instead of after
// each one. Values below 1 mean every mutation.
func WithFlushEvery(n int) Option {
	return func(s *Store) { s.flushEvery = max(n, 1) }
}

// WithLoadTimeout bounds a first backend read. Default: 5s.
func WithLoadTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.loadWait = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a Store over backend.
func NewStore(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:    backend,
		logger:     zap.NewNop(),
		now:        time.Now,
		flushEvery: 1,
		loadWait:   5 * time.Second,
		entries:    make(map[string]*entry),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Get returns a copy of the user's profile, creating the default profile on
// first contact.
func (s *Store) Get(ctx context.Context, userID string) (*Profile, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	e := s.entry(ctx, userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.profile.Clone(), nil
}

// Record applies one interaction to the user's profile and persists it.
// It returns a copy of the updated profile.
func (s *Store) Record(ctx context.Context, userID string, in Interaction) (*Profile, error) {
	return s.mutate(ctx, userID, func(p *Profile, now time.Time) {
		p.apply(in, now)
	})
}

// Seed sets the user's expertise and derives capacity and concept levels
// from it, as done when a user states their level during onboarding.
func (s *Store) Seed(ctx context.Context, userID string, expertise int) (*Profile, error) {
	if expertise < MinLevel || expertise > MaxLevel {
		return nil, fmt.Errorf("expertise level %d out of range [%d, %d]", expertise, MinLevel, MaxLevel)
	}
	return s.mutate(ctx, userID, func(p *Profile, now time.Time) {
		p.seed(expertise, now)
	})
}

// List returns all stored profiles when the backend can enumerate them.
func (s *Store) List(ctx context.Context) ([]*Profile, error) {
	l, ok := s.backend.(Lister)
	if !ok {
		return nil, fmt.Errorf("profile backend %T cannot list profiles", s.backend)
	}
	return l.List(ctx)
}

// Flush writes every profile with unpersisted mutations.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.Unlock()

	var errs []error
	for _, e := range entries {
		e.mu.Lock()
		if e.pending > 0 {
			if err := s.put(ctx, e); err != nil {
				errs = append(errs, err)
			}
		}
		e.mu.Unlock()
	}
	return errors.Join(errs...)
}

func (s *Store) mutate(ctx context.Context, userID string, fn func(*Profile, time.Time)) (*Profile, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	e := s.entry(ctx, userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	fn(e.profile, s.now())
	if e.transient {
		s.logger.Warn("profile not loaded, change kept in memory only",
			zap.String("user_id", userID))
		return e.profile.Clone(), nil
	}
	e.pending++
	if e.pending >= s.flushEvery {
		if err := s.put(ctx, e); err != nil {
			s.logger.Warn("failed to persist profile",
				zap.String("user_id", userID),
				zap.Int("pending", e.pending),
				zap.Error(err))
		}
	}
	return e.profile.Clone(), nil
}

// put writes the entry's profile. The caller holds e.mu.
func (s *Store) put(ctx context.Context, e *entry) error {
	if err := s.backend.Put(ctx, e.profile.Clone()); err != nil {
		return fmt.Errorf("persist profile %q: %w", e.profile.UserID, err)
	}
	e.pending = 0
	return nil
}

// entry returns the cached entry for userID, loading it on first use.
// Concurrent first loads of the same user share one backend read. The read
// is detached from the caller's cancellation so one dropped request cannot
// decide the outcome for every caller sharing it.
func (s *Store) entry(ctx context.Context, userID string) *entry {
	s.mu.Lock()
	e, ok := s.entries[userID]
	s.mu.Unlock()
	if ok {
		return e
	}

	v, _, _ := s.loads.Do(userID, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.loadWait)
		defer cancel()
		p, ok := s.fetch(loadCtx, userID)
		if !ok {
			return &entry{profile: p, transient: true}, nil
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if e, ok := s.entries[userID]; ok {
			return e, nil
		}
		e := &entry{profile: p}
		s.entries[userID] = e
		return e, nil
	})
	e = v.(*entry)
	if e.transient {
		// Callers sharing a timed-out load must not share its profile.
		return &entry{profile: e.profile.Clone(), transient: true}
	}
	return e
}

// fetch reads a profile from the backend. Any failure yields a new profile;
// ok is false when the read ran out of time and the result must not be
// cached.
func (s *Store) fetch(ctx context.Context, userID string) (p *Profile, ok bool) {
	p, err := s.backend.Get(ctx, userID)
	switch {
	case err == nil && p != nil:
		p.UserID = userID
		p.normalize()
		return p, true
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.Warn("profile load timed out, not caching",
			zap.String("user_id", userID),
			zap.Error(err))
		return New(userID, s.now()), false
	case err != nil && !errors.Is(err, ErrNotFound):
		s.logger.Warn("failed to load profile, starting fresh",
			zap.String("user_id", userID),
			zap.Error(err))
	}
	return New(userID, s.now()), true
}
