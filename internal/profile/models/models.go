package models

import (
	"sort"
	"time"

	id "guardtag/pkg/domain"
	dErrors "guardtag/pkg/domain-errors"
)

// ProfileStatus is the lifecycle state of a child profile. Profiles are
// archived, never hard-deleted.
type ProfileStatus string

const (
	ProfileActive   ProfileStatus = "ACTIVE"
	ProfileArchived ProfileStatus = "ARCHIVED"
)

// EmergencyContact is one entry of a profile's ordered contact list.
// Priorities are unique within a profile; priority 1 is called first and is
// the restitution contact shown on a LOST bracelet.
type EmergencyContact struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Relation string `json:"relation,omitempty"`
	Priority int    `json:"priority"`
}

// SafeZone is a named geofence attached to a profile.
type SafeZone struct {
	ID      id.ZoneID `json:"id"`
	Name    string    `json:"name"`
	Lat     float64   `json:"lat"`
	Lon     float64   `json:"lon"`
	RadiusM int       `json:"radius_m"`
}

// PickupPerson is someone authorized to collect the child from school.
// The roster is readable only through the school-PIN gate.
type PickupPerson struct {
	ID       id.PickupID `json:"id"`
	Name     string      `json:"name"`
	Phone    string      `json:"phone"`
	Relation string      `json:"relation,omitempty"`
}

// MedicalInfo groups the confidential fields shown on the emergency view and
// behind the doctor-PIN gate.
type MedicalInfo struct {
	BloodType   string   `json:"blood_type,omitempty"`
	Allergies   []string `json:"allergies,omitempty"`
	Conditions  []string `json:"conditions,omitempty"`
	Medications []string `json:"medications,omitempty"`
	Notes       string   `json:"notes,omitempty"`
}

// Profile is a child identity record. ParentID is authoritative for the
// ownership guard: every mutation of a profile or its sub-resources must come
// from that account. PIN fields hold bcrypt hashes, never plaintext.
type Profile struct {
	ID                id.ProfileID       `json:"id"`
	ParentID          id.UserID          `json:"parent_id"`
	FullName          string             `json:"full_name"`
	BirthDate         *time.Time         `json:"birth_date,omitempty"`
	PhotoURL          string             `json:"photo_url,omitempty"`
	Medical           MedicalInfo        `json:"medical"`
	DoctorPINHash     string             `json:"-"`
	SchoolPINHash     string             `json:"-"`
	EmergencyContacts []EmergencyContact `json:"emergency_contacts"`
	SafeZones         []SafeZone         `json:"safe_zones,omitempty"`
	PickupPersons     []PickupPerson     `json:"pickup_persons,omitempty"`
	CurrentBraceletID *id.BraceletID     `json:"current_bracelet_id,omitempty"`
	Status            ProfileStatus      `json:"status"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// New creates an active profile owned by the given account.
func New(profileID id.ProfileID, parentID id.UserID, fullName string, now time.Time) (*Profile, error) {
	if profileID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "profile ID is required")
	}
	if parentID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "parent ID is required")
	}
	if fullName == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "full name is required")
	}
	if len(fullName) > 128 {
		return nil, dErrors.New(dErrors.CodeValidation, "full name must be 128 characters or less")
	}
	return &Profile{
		ID:        profileID,
		ParentID:  parentID,
		FullName:  fullName,
		Status:    ProfileActive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Validate is the schema check applied at the store boundary.
func (p *Profile) Validate() error {
	if p.ID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "profile ID is required")
	}
	if p.ParentID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "parent ID is required")
	}
	if p.FullName == "" {
		return dErrors.New(dErrors.CodeValidation, "full name is required")
	}
	if p.Status != ProfileActive && p.Status != ProfileArchived {
		return dErrors.New(dErrors.CodeValidation, "unknown profile status")
	}
	return ValidateContacts(p.EmergencyContacts)
}

// ValidateContacts enforces the contact list invariant: positive, unique
// priorities and a phone number on every entry.
func ValidateContacts(contacts []EmergencyContact) error {
	seen := make(map[int]bool, len(contacts))
	for _, c := range contacts {
		if c.Phone == "" {
			return dErrors.New(dErrors.CodeValidation, "emergency contact needs a phone number")
		}
		if c.Priority < 1 {
			return dErrors.New(dErrors.CodeValidation, "contact priority must be positive")
		}
		if seen[c.Priority] {
			return dErrors.New(dErrors.CodeValidation, "contact priorities must be unique")
		}
		seen[c.Priority] = true
	}
	return nil
}

// PrimaryContact returns the highest-priority contact, or nil if none exist.
func (p *Profile) PrimaryContact() *EmergencyContact {
	if len(p.EmergencyContacts) == 0 {
		return nil
	}
	sorted := make([]EmergencyContact, len(p.EmergencyContacts))
	copy(sorted, p.EmergencyContacts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })
	return &sorted[0]
}

// IsArchived reports whether the profile has been archived by its owner.
func (p *Profile) IsArchived() bool {
	return p.Status == ProfileArchived
}

// Archive transitions the profile to ARCHIVED. Archiving twice is an error,
// never a silent no-op.
func (p *Profile) Archive(now time.Time) error {
	if p.IsArchived() {
		return dErrors.New(dErrors.CodeInvalidInput, "profile is already archived")
	}
	if p.CurrentBraceletID != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "unlink the bracelet before archiving")
	}
	p.Status = ProfileArchived
	p.UpdatedAt = now
	return nil
}

// Clone returns a deep copy so store callers never alias internal slices.
func (p *Profile) Clone() *Profile {
	cp := *p
	if p.BirthDate != nil {
		bd := *p.BirthDate
		cp.BirthDate = &bd
	}
	if p.CurrentBraceletID != nil {
		b := *p.CurrentBraceletID
		cp.CurrentBraceletID = &b
	}
	cp.Medical.Allergies = append([]string(nil), p.Medical.Allergies...)
	cp.Medical.Conditions = append([]string(nil), p.Medical.Conditions...)
	cp.Medical.Medications = append([]string(nil), p.Medical.Medications...)
	cp.EmergencyContacts = append([]EmergencyContact(nil), p.EmergencyContacts...)
	cp.SafeZones = append([]SafeZone(nil), p.SafeZones...)
	cp.PickupPersons = append([]PickupPerson(nil), p.PickupPersons...)
	return &cp
}
