// Package guard enforces profile ownership server-side. Every mutating
// operation on a profile or its sub-resources (safe zones, pickups, PIN
// updates) passes through VerifyOwnership; a caller-supplied ownership claim
// is never trusted.
package guard

import (
	"context"
	"errors"

	"guardtag/internal/profile/models"
	"guardtag/internal/sentinel"
	id "guardtag/pkg/domain"
	dErrors "guardtag/pkg/domain-errors"
)

// Store is the profile lookup the guard depends on.
type Store interface {
	FindByID(ctx context.Context, profileID id.ProfileID) (*models.Profile, error)
}

// Guard checks that a caller owns a profile before any mutation proceeds.
type Guard struct {
	store Store
}

// New creates an ownership guard over the given store.
func New(store Store) *Guard {
	return &Guard{store: store}
}

// VerifyOwnership loads the profile and compares its parent to the caller.
// Returns the profile on success so callers avoid a second fetch.
//
// A missing profile and a mismatched owner both come back as unauthorized:
// a caller who does not own a profile has no business learning whether it
// exists. An absent caller identity is unauthenticated, not unauthorized.
func (g *Guard) VerifyOwnership(ctx context.Context, profileID id.ProfileID, callerID id.UserID) (*models.Profile, error) {
	if callerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthenticated, "caller identity required")
	}
	if profileID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "profile ID required")
	}

	p, err := g.store.FindByID(ctx, profileID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "not the profile owner")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "ownership check failed")
	}
	if p.ParentID != callerID {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "not the profile owner")
	}
	return p, nil
}
