package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"guardtag/internal/scan/models"
	id "guardtag/pkg/domain"
)

// InMemory keeps scan events in memory for single-instance deployments and
// tests.
type InMemory struct {
	mu     sync.RWMutex
	events map[id.ScanID]*models.ScanEvent
}

// NewInMemory creates an in-memory scan store.
func NewInMemory() *InMemory {
	return &InMemory{events: make(map[id.ScanID]*models.ScanEvent)}
}

// Insert stores a new scan event.
func (s *InMemory) Insert(_ context.Context, e *models.ScanEvent) error {
	if e == nil {
		return fmt.Errorf("scan event is required")
	}
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.ID] = e.Clone()
	return nil
}

// ListByOwner returns the owner's events, newest first, up to limit.
func (s *InMemory) ListByOwner(_ context.Context, ownerID id.UserID, limit int) ([]*models.ScanEvent, error) {
	s.mu.RLock()
	var out []*models.ScanEvent
	for _, e := range s.events {
		if e.OwnerID == ownerID {
			out = append(out, e.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].OccurredAt.After(out[j].OccurredAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MarkRead flags an event as read. The owner scoping lives here so a caller
// can never flip someone else's inbox entry, and a foreign ID reads the same
// as a missing one.
func (s *InMemory) MarkRead(_ context.Context, scanID id.ScanID, ownerID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[scanID]
	if !ok || e.OwnerID != ownerID {
		return ErrNotFound
	}
	e.IsRead = true
	return nil
}

// CountUnread returns the number of unread events for the owner.
func (s *InMemory) CountUnread(_ context.Context, ownerID id.UserID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, e := range s.events {
		if e.OwnerID == ownerID && !e.IsRead {
			count++
		}
	}
	return count, nil
}
