// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	dErrors "guardtag/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing a UserID where a ProfileID is expected.
type (
	UserID    uuid.UUID
	ProfileID uuid.UUID
	ScanID    uuid.UUID
	ZoneID    uuid.UUID
	PickupID  uuid.UUID
)

// BraceletID is the human-readable identifier laser-etched on a bracelet
// (e.g. "BF-9001"). Assigned at provisioning, immutable, globally unique.
type BraceletID string

// BatchID tags a bracelet with its provisioning batch. Informational only.
type BatchID string

// braceletIDPattern bounds what we accept from scan URLs before any lookup:
// uppercase alphanumeric groups separated by dashes, 4 to 32 characters.
var braceletIDPattern = regexp.MustCompile(`^[A-Z0-9]+(-[A-Z0-9]+)*$`)

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseUserID(s string) (UserID, error) {
	id, err := parseUUID(s, "user ID")
	return UserID(id), err
}

func ParseProfileID(s string) (ProfileID, error) {
	id, err := parseUUID(s, "profile ID")
	return ProfileID(id), err
}

func ParseScanID(s string) (ScanID, error) {
	id, err := parseUUID(s, "scan ID")
	return ScanID(id), err
}

func ParseZoneID(s string) (ZoneID, error) {
	id, err := parseUUID(s, "zone ID")
	return ZoneID(id), err
}

func ParsePickupID(s string) (PickupID, error) {
	id, err := parseUUID(s, "pickup ID")
	return PickupID(id), err
}

// ParseBraceletID validates and normalizes a bracelet identifier.
// Lowercase input is accepted and upcased so hand-typed IDs still resolve.
func ParseBraceletID(s string) (BraceletID, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "bracelet ID cannot be empty")
	}
	if len(s) < 4 || len(s) > 32 || !braceletIDPattern.MatchString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid bracelet ID format")
	}
	return BraceletID(s), nil
}

// String methods - for logging and debugging.

func (id UserID) String() string    { return uuid.UUID(id).String() }
func (id ProfileID) String() string { return uuid.UUID(id).String() }
func (id ScanID) String() string    { return uuid.UUID(id).String() }
func (id ZoneID) String() string    { return uuid.UUID(id).String() }
func (id PickupID) String() string  { return uuid.UUID(id).String() }
func (id BraceletID) String() string { return string(id) }
func (id BatchID) String() string    { return string(id) }

// Text marshaling - UUID-backed IDs travel as canonical UUID strings in JSON,
// not as raw byte arrays.

func (id UserID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id ProfileID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id ScanID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id ZoneID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id PickupID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }

func (id *UserID) UnmarshalText(b []byte) error {
	parsed, err := ParseUserID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *ProfileID) UnmarshalText(b []byte) error {
	parsed, err := ParseProfileID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *ScanID) UnmarshalText(b []byte) error {
	parsed, err := ParseScanID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *ZoneID) UnmarshalText(b []byte) error {
	parsed, err := ParseZoneID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *PickupID) UnmarshalText(b []byte) error {
	parsed, err := ParsePickupID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// IsNil checks - used for service-layer validation.

func (id UserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ProfileID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ScanID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ZoneID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id PickupID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id BraceletID) IsNil() bool { return id == "" }
func (id BatchID) IsNil() bool    { return id == "" }

// parseUUID is the shared validation logic.
// Note: Nil UUIDs are allowed here. Use IsNil() at the service layer for
// business validation, which allows store lookups to return proper
// "not found" errors for consistency.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	return id, nil
}
