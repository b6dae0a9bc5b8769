// Package adapters bridges the bracelet service's ports to the profile and
// scan modules, so the bracelet package never imports their internals
// directly.
package adapters

import (
	"context"
	"sort"
	"strings"

	braceletmodels "guardtag/internal/bracelet/models"
	braceletservice "guardtag/internal/bracelet/service"
	profilemodels "guardtag/internal/profile/models"
	scanmodels "guardtag/internal/scan/models"
	scanservice "guardtag/internal/scan/service"
	id "guardtag/pkg/domain"
	dErrors "guardtag/pkg/domain-errors"
)

// ProfileStore is the slice of the profile store the directory needs.
type ProfileStore interface {
	FindByID(ctx context.Context, profileID id.ProfileID) (*profilemodels.Profile, error)
	Bind(ctx context.Context, profileID id.ProfileID, braceletID id.BraceletID) error
	Unbind(ctx context.Context, profileID id.ProfileID, braceletID id.BraceletID) error
}

// OwnershipGuard verifies that a caller owns a profile.
type OwnershipGuard interface {
	VerifyOwnership(ctx context.Context, profileID id.ProfileID, callerID id.UserID) (*profilemodels.Profile, error)
}

// ProfileDirectory adapts the profile module to the bracelet service's
// Directory port.
type ProfileDirectory struct {
	store ProfileStore
	guard OwnershipGuard
}

// NewProfileDirectory creates the directory adapter.
func NewProfileDirectory(store ProfileStore, guard OwnershipGuard) *ProfileDirectory {
	return &ProfileDirectory{store: store, guard: guard}
}

func (d *ProfileDirectory) VerifyOwnership(ctx context.Context, profileID id.ProfileID, callerID id.UserID) error {
	_, err := d.guard.VerifyOwnership(ctx, profileID, callerID)
	return err
}

func (d *ProfileDirectory) Bind(ctx context.Context, profileID id.ProfileID, braceletID id.BraceletID) error {
	return d.store.Bind(ctx, profileID, braceletID)
}

func (d *ProfileDirectory) Unbind(ctx context.Context, profileID id.ProfileID, braceletID id.BraceletID) error {
	return d.store.Unbind(ctx, profileID, braceletID)
}

// EmergencySnapshot assembles the no-PIN emergency view: identity, blood
// type and allergies, and the contact list in priority order. Everything
// behind the PIN gates is reduced to an existence flag.
func (d *ProfileDirectory) EmergencySnapshot(ctx context.Context, profileID id.ProfileID) (*braceletmodels.EmergencySnapshot, error) {
	p, err := d.store.FindByID(ctx, profileID)
	if err != nil {
		return nil, err
	}

	contacts := append([]profilemodels.EmergencyContact(nil), p.EmergencyContacts...)
	sort.Slice(contacts, func(i, j int) bool { return contacts[i].Priority < contacts[j].Priority })

	cards := make([]braceletmodels.ContactCard, 0, len(contacts))
	for _, c := range contacts {
		cards = append(cards, braceletmodels.ContactCard{
			Name:     c.Name,
			Phone:    c.Phone,
			Relation: c.Relation,
		})
	}

	m := p.Medical
	hasMedical := len(m.Conditions) > 0 || len(m.Medications) > 0 || m.Notes != ""
	return &braceletmodels.EmergencySnapshot{
		ProfileID:        p.ID,
		FullName:         p.FullName,
		PhotoURL:         p.PhotoURL,
		BloodType:        m.BloodType,
		Allergies:        append([]string(nil), m.Allergies...),
		Contacts:         cards,
		HasMedicalRecord: hasMedical,
		HasPickupRoster:  len(p.PickupPersons) > 0,
	}, nil
}

// RestitutionContact assembles the finder view for a LOST bracelet: one
// reachable contact and the child's first name, nothing else.
func (d *ProfileDirectory) RestitutionContact(ctx context.Context, profileID id.ProfileID) (*braceletmodels.RestitutionContact, error) {
	p, err := d.store.FindByID(ctx, profileID)
	if err != nil {
		return nil, err
	}
	primary := p.PrimaryContact()
	if primary == nil {
		return nil, dErrors.New(dErrors.CodeUnavailable, "profile has no emergency contact")
	}
	return &braceletmodels.RestitutionContact{
		ChildFirstName: firstName(p.FullName),
		ContactName:    primary.Name,
		ContactPhone:   primary.Phone,
		Message:        "This bracelet was reported lost. Please contact the family.",
	}, nil
}

func firstName(full string) string {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// ScanSink adapts the scan inbox service to the bracelet service's sink port.
type ScanSink struct {
	scans *scanservice.Service
}

// NewScanSink creates the sink adapter.
func NewScanSink(scans *scanservice.Service) *ScanSink {
	return &ScanSink{scans: scans}
}

func (s *ScanSink) RecordScan(ctx context.Context, cmd braceletservice.ScanRecordCommand) error {
	_, err := s.scans.Record(ctx, scanservice.RecordCommand{
		Kind:       scanmodels.Kind(cmd.Kind),
		BraceletID: cmd.BraceletID,
		ProfileID:  cmd.ProfileID,
		OwnerID:    cmd.OwnerID,
		Lat:        cmd.Lat,
		Lon:        cmd.Lon,
		UserAgent:  cmd.UserAgent,
		OccurredAt: cmd.OccurredAt,
	})
	return err
}
