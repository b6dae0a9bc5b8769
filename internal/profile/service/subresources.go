package service

import (
	"context"

	"github.com/google/uuid"

	"guardtag/internal/profile/models"
	id "guardtag/pkg/domain"
	dErrors "guardtag/pkg/domain-errors"
)

// Safe zones and pickup persons are profile sub-resources; every mutation
// below rides the same guard-then-write path as the profile itself.

// AddSafeZone appends a safe zone and returns it with its generated ID.
func (s *Service) AddSafeZone(ctx context.Context, profileID id.ProfileID, callerID id.UserID, zone models.SafeZone) (*models.SafeZone, error) {
	if err := validateZone(zone); err != nil {
		return nil, err
	}
	zone.ID = id.ZoneID(uuid.New())
	_, err := s.mutate(ctx, profileID, callerID, "safe_zone_added", func(p *models.Profile) error {
		p.SafeZones = append(p.SafeZones, zone)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &zone, nil
}

// UpdateSafeZone replaces an existing safe zone in place.
func (s *Service) UpdateSafeZone(ctx context.Context, profileID id.ProfileID, callerID id.UserID, zone models.SafeZone) error {
	if zone.ID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "zone ID required")
	}
	if err := validateZone(zone); err != nil {
		return err
	}
	_, err := s.mutate(ctx, profileID, callerID, "safe_zone_updated", func(p *models.Profile) error {
		for i := range p.SafeZones {
			if p.SafeZones[i].ID == zone.ID {
				p.SafeZones[i] = zone
				return nil
			}
		}
		return dErrors.New(dErrors.CodeNotFound, "safe zone not found")
	})
	return err
}

// RemoveSafeZone deletes a safe zone.
func (s *Service) RemoveSafeZone(ctx context.Context, profileID id.ProfileID, callerID id.UserID, zoneID id.ZoneID) error {
	_, err := s.mutate(ctx, profileID, callerID, "safe_zone_removed", func(p *models.Profile) error {
		for i := range p.SafeZones {
			if p.SafeZones[i].ID == zoneID {
				p.SafeZones = append(p.SafeZones[:i], p.SafeZones[i+1:]...)
				return nil
			}
		}
		return dErrors.New(dErrors.CodeNotFound, "safe zone not found")
	})
	return err
}

// AddPickupPerson appends an authorized pickup person.
func (s *Service) AddPickupPerson(ctx context.Context, profileID id.ProfileID, callerID id.UserID, person models.PickupPerson) (*models.PickupPerson, error) {
	if person.Name == "" || person.Phone == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "pickup person needs a name and phone")
	}
	person.ID = id.PickupID(uuid.New())
	_, err := s.mutate(ctx, profileID, callerID, "pickup_added", func(p *models.Profile) error {
		p.PickupPersons = append(p.PickupPersons, person)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &person, nil
}

// RemovePickupPerson deletes a pickup person from the roster.
func (s *Service) RemovePickupPerson(ctx context.Context, profileID id.ProfileID, callerID id.UserID, pickupID id.PickupID) error {
	_, err := s.mutate(ctx, profileID, callerID, "pickup_removed", func(p *models.Profile) error {
		for i := range p.PickupPersons {
			if p.PickupPersons[i].ID == pickupID {
				p.PickupPersons = append(p.PickupPersons[:i], p.PickupPersons[i+1:]...)
				return nil
			}
		}
		return dErrors.New(dErrors.CodeNotFound, "pickup person not found")
	})
	return err
}

func validateZone(zone models.SafeZone) error {
	if zone.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "zone name required")
	}
	if zone.Lat < -90 || zone.Lat > 90 || zone.Lon < -180 || zone.Lon > 180 {
		return dErrors.New(dErrors.CodeValidation, "zone coordinates out of range")
	}
	if zone.RadiusM < 10 || zone.RadiusM > 10000 {
		return dErrors.New(dErrors.CodeValidation, "zone radius must be 10-10000 meters")
	}
	return nil
}
