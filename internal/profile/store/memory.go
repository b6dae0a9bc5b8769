package store

import (
	"context"
	"fmt"
	"sync"

	"guardtag/internal/profile/models"
	id "guardtag/pkg/domain"
	"guardtag/pkg/platform/middleware/requesttime"
)

// InMemory stores profiles in memory for single-instance deployments and tests.
type InMemory struct {
	mu       sync.RWMutex
	profiles map[id.ProfileID]*models.Profile
}

// NewInMemory creates an in-memory profile store.
func NewInMemory() *InMemory {
	return &InMemory{profiles: make(map[id.ProfileID]*models.Profile)}
}

// Create inserts a new profile.
func (s *InMemory) Create(_ context.Context, p *models.Profile) error {
	if p == nil {
		return fmt.Errorf("profile is required")
	}
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.profiles[p.ID]; exists {
		return fmt.Errorf("profile %s: %w", p.ID, ErrExists)
	}
	s.profiles[p.ID] = p.Clone()
	return nil
}

// FindByID retrieves a profile by ID, schema-checked on the way out.
func (s *InMemory) FindByID(_ context.Context, profileID id.ProfileID) (*models.Profile, error) {
	s.mu.RLock()
	p, ok := s.profiles[profileID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// Update replaces the stored profile.
func (s *InMemory) Update(ctx context.Context, p *models.Profile) error {
	if p == nil {
		return fmt.Errorf("profile is required")
	}
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.profiles[p.ID]; !exists {
		return ErrNotFound
	}
	cp := p.Clone()
	cp.UpdatedAt = requesttime.Now(ctx)
	s.profiles[p.ID] = cp
	return nil
}

// Bind sets the profile's bracelet link only if no bracelet is currently
// bound. A profile already wearing a bracelet conflicts.
func (s *InMemory) Bind(ctx context.Context, profileID id.ProfileID, braceletID id.BraceletID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[profileID]
	if !ok {
		return ErrNotFound
	}
	if p.CurrentBraceletID != nil {
		if *p.CurrentBraceletID == braceletID {
			return nil
		}
		return fmt.Errorf("profile %s already linked to %s: %w", profileID, *p.CurrentBraceletID, ErrConflict)
	}
	if p.IsArchived() {
		return fmt.Errorf("profile %s is archived: %w", profileID, ErrConflict)
	}
	b := braceletID
	p.CurrentBraceletID = &b
	p.UpdatedAt = requesttime.Now(ctx)
	return nil
}

// Unbind clears the link, but only if the profile currently points at the
// given bracelet. Unbinding someone else's link is a conflict.
func (s *InMemory) Unbind(ctx context.Context, profileID id.ProfileID, braceletID id.BraceletID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[profileID]
	if !ok {
		return ErrNotFound
	}
	if p.CurrentBraceletID == nil {
		return nil
	}
	if *p.CurrentBraceletID != braceletID {
		return fmt.Errorf("profile %s linked to %s, not %s: %w", profileID, *p.CurrentBraceletID, braceletID, ErrConflict)
	}
	p.CurrentBraceletID = nil
	p.UpdatedAt = requesttime.Now(ctx)
	return nil
}

// CountByParent returns the number of profiles owned by an account.
func (s *InMemory) CountByParent(_ context.Context, parentID id.UserID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, p := range s.profiles {
		if p.ParentID == parentID {
			count++
		}
	}
	return count, nil
}
