// Package memory is an in-process ports.StateStore for single-binary runs and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"PaperNotifier/internal/domain"
	"PaperNotifier/internal/ports"
)

type entry struct {
	value     string
	expiresAt time.Time
}

// Store guards strings and sets with one mutex.
type Store struct {
	mu     sync.RWMutex
	values map[string]entry
	sets   map[string]map[string]struct{}
	now    func() time.Time
}

var _ ports.StateStore = (*Store)(nil)

// New returns an empty store. now defaults to time.Now.
func New(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		values: make(map[string]entry),
		sets:   make(map[string]map[string]struct{}),
		now:    now,
	}
}

func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.values[key]
	if !ok || (!e.expiresAt.IsZero() && !s.now().Before(e.expiresAt)) {
		return "", domain.ErrNotFound
	}
	return e.value, nil
}

func (s *Store) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.values[key] = e
	return nil
}

func (s *Store) SetMany(_ context.Context, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range values {
		s.values[k] = entry{value: v}
	}
	return nil
}

func (s *Store) Members(_ context.Context, key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.sets[key]
	out := make([]string, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	return out, nil
}

func (s *Store) ReplaceMembers(_ context.Context, key string, members []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(members) == 0 {
		delete(s.sets, key)
		return nil
	}
	set := make(map[string]struct{}, len(members))
	for _, m := range members {
		set[m] = struct{}{}
	}
	s.sets[key] = set
	return nil
}
