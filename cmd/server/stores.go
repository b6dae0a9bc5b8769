package main

import (
	"context"

	braceletmodels "guardtag/internal/bracelet/models"
	profilemodels "guardtag/internal/profile/models"
	scanmodels "guardtag/internal/scan/models"
	id "guardtag/pkg/domain"
)

// The store packages export concrete types and each service declares the
// narrow port it needs. These unions exist only so main can hold one value
// per store and hand slices of it to every consumer.

type braceletStore interface {
	Create(ctx context.Context, b *braceletmodels.Bracelet) error
	FindByID(ctx context.Context, braceletID id.BraceletID) (*braceletmodels.Bracelet, error)
	UpdateStatus(ctx context.Context, braceletID id.BraceletID, expected braceletmodels.Status, change braceletmodels.StatusChange) (*braceletmodels.Bracelet, error)
}

type profileStore interface {
	Create(ctx context.Context, p *profilemodels.Profile) error
	FindByID(ctx context.Context, profileID id.ProfileID) (*profilemodels.Profile, error)
	Update(ctx context.Context, p *profilemodels.Profile) error
	Bind(ctx context.Context, profileID id.ProfileID, braceletID id.BraceletID) error
	Unbind(ctx context.Context, profileID id.ProfileID, braceletID id.BraceletID) error
}

type scanStore interface {
	Insert(ctx context.Context, e *scanmodels.ScanEvent) error
	ListByOwner(ctx context.Context, ownerID id.UserID, limit int) ([]*scanmodels.ScanEvent, error)
	MarkRead(ctx context.Context, scanID id.ScanID, ownerID id.UserID) error
	CountUnread(ctx context.Context, ownerID id.UserID) (int, error)
}
