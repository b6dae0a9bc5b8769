package limiter

import (
	"context"
	"sync"
	"time"

	"guardtag/pkg/platform/middleware/requesttime"
)

type attemptRecord struct {
	count       int
	windowStart time.Time
	window      time.Duration
}

func (r *attemptRecord) expired(now time.Time) bool {
	return now.After(r.windowStart.Add(r.window))
}

// InMemoryStore tracks attempt windows in memory for single-instance
// deployments and tests. Expired windows are dropped on the next touch of
// their key.
type InMemoryStore struct {
	mu      sync.Mutex
	records map[string]*attemptRecord
}

// NewInMemoryStore creates an in-memory attempt store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]*attemptRecord)}
}

func (s *InMemoryStore) Increment(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	now := requesttime.Now(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[key]
	if !ok || r.expired(now) {
		r = &attemptRecord{windowStart: now, window: window}
		s.records[key] = r
	}
	r.count++
	return r.count, r.remaining(now), nil
}

func (s *InMemoryStore) Count(ctx context.Context, key string) (int, time.Duration, error) {
	now := requesttime.Now(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[key]
	if !ok {
		return 0, 0, nil
	}
	if r.expired(now) {
		delete(s.records, key)
		return 0, 0, nil
	}
	return r.count, r.remaining(now), nil
}

func (s *InMemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

func (r *attemptRecord) remaining(now time.Time) time.Duration {
	left := r.windowStart.Add(r.window).Sub(now)
	if left < 0 {
		return 0
	}
	return left
}
