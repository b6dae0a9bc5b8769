package store

import (
	"context"
	"fmt"
	"sync"

	"guardtag/internal/bracelet/models"
	id "guardtag/pkg/domain"
	"guardtag/pkg/platform/middleware/requesttime"
	psync "guardtag/pkg/platform/sync"
)

// InMemory stores bracelets in memory for single-instance deployments and
// tests. The read/write map is guarded by an RWMutex; conditional updates
// additionally serialize per bracelet ID through a sharded mutex so the
// check-then-write of UpdateStatus is atomic per record.
type InMemory struct {
	mu        sync.RWMutex
	bracelets map[id.BraceletID]*models.Bracelet
	perKey    *psync.ShardedMutex
}

// NewInMemory creates an in-memory bracelet store.
func NewInMemory() *InMemory {
	return &InMemory{
		bracelets: make(map[id.BraceletID]*models.Bracelet),
		perKey:    psync.NewShardedMutex(),
	}
}

// Create inserts a provisioned bracelet. Fails with ErrExists if the ID is taken.
func (s *InMemory) Create(_ context.Context, b *models.Bracelet) error {
	if b == nil {
		return fmt.Errorf("bracelet is required")
	}
	if err := b.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.bracelets[b.ID]; exists {
		return fmt.Errorf("bracelet %s: %w", b.ID, ErrExists)
	}
	s.bracelets[b.ID] = b.Clone()
	return nil
}

// FindByID retrieves a bracelet by ID. The returned record is a copy; the
// schema check runs on the way out so malformed records never reach callers.
func (s *InMemory) FindByID(_ context.Context, braceletID id.BraceletID) (*models.Bracelet, error) {
	s.mu.RLock()
	b, ok := s.bracelets[braceletID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b.Clone(), nil
}

// UpdateStatus applies the status change only if the bracelet currently holds
// the expected status. Returns ErrConflict when the precondition fails, so a
// losing racer can be told "already activated" rather than a generic failure.
func (s *InMemory) UpdateStatus(ctx context.Context, braceletID id.BraceletID, expected models.Status, change models.StatusChange) (*models.Bracelet, error) {
	key := braceletID.String()
	s.perKey.Lock(key)
	defer s.perKey.Unlock(key)

	s.mu.RLock()
	current, ok := s.bracelets[braceletID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if current.Status != expected {
		return nil, fmt.Errorf("bracelet %s is %s, expected %s: %w", braceletID, current.Status, expected, ErrConflict)
	}

	next := current.Clone()
	next.Status = change.To
	switch {
	case change.ClearLinks:
		next.LinkedProfileID = nil
		next.LinkedUserID = nil
	case change.ClearProfileLink:
		next.LinkedProfileID = nil
	case change.LinkProfileID != nil:
		next.LinkedProfileID = change.LinkProfileID
		next.LinkedUserID = change.LinkUserID
	}
	next.UpdatedAt = requesttime.Now(ctx)

	if err := next.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.bracelets[braceletID] = next
	s.mu.Unlock()
	return next.Clone(), nil
}

// Count returns the number of stored bracelets.
func (s *InMemory) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bracelets), nil
}
