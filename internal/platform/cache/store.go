package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/riskibarqy/contest-leaderboard/internal/platform/resilience"
)

type entry struct {
	value     any
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !e.expiresAt.After(now)
}

// Store is an in-process TTL map. A ttl <= 0 on a write means the entry
// never expires; the store-level ttl is used by Set and GetOrLoad.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	flight  resilience.SingleFlight
	now     func() time.Time
}

func NewStore(ttl time.Duration) *Store {
	return &Store{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *Store) Get(_ context.Context, key string) (any, bool) {
	if key == "" {
		return nil, false
	}

	now := s.now()
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if e.expired(now) {
		s.mu.Lock()
		if current, ok := s.entries[key]; ok && current.expired(now) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false
	}

	return e.value, true
}

func (s *Store) Set(ctx context.Context, key string, value any) {
	s.SetWithTTL(ctx, key, value, s.ttl)
}

func (s *Store) SetWithTTL(_ context.Context, key string, value any, ttl time.Duration) {
	if key == "" {
		return
	}

	s.mu.Lock()
	s.entries[key] = s.newEntry(value, ttl)
	s.mu.Unlock()
}

// Update atomically replaces the value under key with the result of fn.
// fn receives (nil, false) when the key is absent or expired and returns the
// next value plus whether to write it. Update reports whether it wrote. fn
// runs under the write lock and must not call back into the store.
func (s *Store) Update(_ context.Context, key string, fn func(current any, ok bool) (any, bool), ttl time.Duration) bool {
	if key == "" || fn == nil {
		return false
	}

	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.entries[key]
	if ok && current.expired(now) {
		delete(s.entries, key)
		ok = false
	}

	var currentValue any
	if ok {
		currentValue = current.value
	}
	next, write := fn(currentValue, ok)
	if !write {
		return false
	}

	s.entries[key] = s.newEntry(next, ttl)
	return true
}

func (s *Store) Delete(_ context.Context, key string) {
	if key == "" {
		return
	}

	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

func (s *Store) GetOrLoad(ctx context.Context, key string, loader func(context.Context) (any, error)) (any, error) {
	if loader == nil {
		return nil, fmt.Errorf("loader is required")
	}
	if key == "" {
		return loader(ctx)
	}

	if value, ok := s.Get(ctx, key); ok {
		return value, nil
	}

	value, _, err := s.flight.Do(ctx, key, func(ctx context.Context) (any, error) {
		if cached, ok := s.Get(ctx, key); ok {
			return cached, nil
		}

		loaded, loadErr := loader(ctx)
		if loadErr != nil {
			return nil, loadErr
		}
		s.Set(ctx, key, loaded)
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}

	return value, nil
}

func (s *Store) newEntry(value any, ttl time.Duration) entry {
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	return e
}
