// Package models defines the scan inbox records. Every routed emergency scan
// and every sighting of a stolen bracelet lands here, addressed to the owner
// account, so parents can see where and when their child's tag was read.
package models

import (
	"time"

	id "guardtag/pkg/domain"
	dErrors "guardtag/pkg/domain-errors"
)

// Kind distinguishes a normal emergency-view scan from a stolen-tag sighting.
type Kind string

const (
	KindScan        Kind = "scan"
	KindStolenAlert Kind = "stolen_alert"
)

// Valid reports whether k is a known event kind.
func (k Kind) Valid() bool {
	return k == KindScan || k == KindStolenAlert
}

// Device is the parsed scanner device, best effort from the User-Agent.
type Device struct {
	Browser string `json:"browser,omitempty"`
	OS      string `json:"os,omitempty"`
	Mobile  bool   `json:"mobile"`
}

// ScanEvent is one inbox entry. ProfileID is zero for stolen alerts, whose
// bracelet no longer carries a profile link; OwnerID is always set and is the
// authority for read access.
type ScanEvent struct {
	ID         id.ScanID     `json:"id"`
	Kind       Kind          `json:"kind"`
	BraceletID id.BraceletID `json:"bracelet_id"`
	ProfileID  id.ProfileID  `json:"profile_id,omitempty"`
	OwnerID    id.UserID     `json:"-"`
	Lat        *float64      `json:"lat,omitempty"`
	Lon        *float64      `json:"lon,omitempty"`
	Device     Device        `json:"device"`
	IsRead     bool          `json:"is_read"`
	OccurredAt time.Time     `json:"occurred_at"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Validate is the schema check at the store boundary.
func (e *ScanEvent) Validate() error {
	if e.ID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "scan event ID is required")
	}
	if !e.Kind.Valid() {
		return dErrors.New(dErrors.CodeValidation, "unknown scan event kind")
	}
	if e.BraceletID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "bracelet ID is required")
	}
	if e.OwnerID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "owner ID is required")
	}
	if (e.Lat == nil) != (e.Lon == nil) {
		return dErrors.New(dErrors.CodeValidation, "latitude and longitude come together or not at all")
	}
	return nil
}

// Clone returns a deep copy.
func (e *ScanEvent) Clone() *ScanEvent {
	cp := *e
	if e.Lat != nil {
		lat := *e.Lat
		cp.Lat = &lat
	}
	if e.Lon != nil {
		lon := *e.Lon
		cp.Lon = &lon
	}
	return &cp
}
