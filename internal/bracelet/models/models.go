package models

import (
	"time"

	id "guardtag/pkg/domain"
	dErrors "guardtag/pkg/domain-errors"
)

// Status is the server-held lifecycle state of a bracelet. Every transition
// goes through the lifecycle decision table and a conditional store update;
// nothing mutates Status directly.
type Status string

const (
	StatusFactoryLocked Status = "FACTORY_LOCKED"
	StatusInactive      Status = "INACTIVE"
	StatusActive        Status = "ACTIVE"
	StatusLost          Status = "LOST"
	StatusStolen        Status = "STOLEN"
	StatusDeactivated   Status = "DEACTIVATED"
)

// Valid reports whether s is a known lifecycle status.
func (s Status) Valid() bool {
	switch s {
	case StatusFactoryLocked, StatusInactive, StatusActive, StatusLost, StatusStolen, StatusDeactivated:
		return true
	}
	return false
}

// Linkable reports whether a bracelet in this status may carry a profile link.
// Invariant: linkedProfileID != nil ⇔ status ∈ {ACTIVE, LOST}.
func (s Status) Linkable() bool {
	return s == StatusActive || s == StatusLost
}

// Bracelet is a provisioned physical tag. ID and SecretToken are immutable
// once set; Status and the profile/user links change only through conditional
// updates keyed on the expected prior status.
type Bracelet struct {
	ID              id.BraceletID `json:"id"`
	SecretToken     string        `json:"-"`
	Status          Status        `json:"status"`
	BatchID         id.BatchID    `json:"batch_id,omitempty"`
	LinkedProfileID *id.ProfileID `json:"linked_profile_id,omitempty"`
	LinkedUserID    *id.UserID    `json:"linked_user_id,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// New creates a provisioned bracelet in its initial status.
// Only FACTORY_LOCKED and INACTIVE are valid starting points.
func New(braceletID id.BraceletID, secretToken string, initial Status, batchID id.BatchID, now time.Time) (*Bracelet, error) {
	if braceletID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "bracelet ID is required")
	}
	if secretToken == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "secret token is required")
	}
	if initial != StatusFactoryLocked && initial != StatusInactive {
		return nil, dErrors.New(dErrors.CodeValidation, "bracelets are provisioned FACTORY_LOCKED or INACTIVE")
	}
	return &Bracelet{
		ID:          braceletID,
		SecretToken: secretToken,
		Status:      initial,
		BatchID:     batchID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Validate is the schema check applied at the store boundary. Malformed
// persisted records are rejected here rather than propagated into the
// state machine.
func (b *Bracelet) Validate() error {
	if b.ID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "bracelet ID is required")
	}
	if b.SecretToken == "" {
		return dErrors.New(dErrors.CodeValidation, "bracelet has no secret token")
	}
	if !b.Status.Valid() {
		return dErrors.New(dErrors.CodeValidation, "unknown bracelet status")
	}
	linked := b.LinkedProfileID != nil
	if linked != b.Status.Linkable() {
		return dErrors.New(dErrors.CodeValidation, "profile link inconsistent with bracelet status")
	}
	// STOLEN keeps the owner link so later scans can alert the account,
	// even though the profile link is severed.
	if b.LinkedUserID != nil && b.LinkedProfileID == nil && b.Status != StatusStolen {
		return dErrors.New(dErrors.CodeValidation, "user link without profile link")
	}
	return nil
}

// IsLinked reports whether the bracelet is bound to a profile.
func (b *Bracelet) IsLinked() bool {
	return b.LinkedProfileID != nil
}

// Clone returns a deep copy so store callers never share link pointers.
func (b *Bracelet) Clone() *Bracelet {
	cp := *b
	if b.LinkedProfileID != nil {
		p := *b.LinkedProfileID
		cp.LinkedProfileID = &p
	}
	if b.LinkedUserID != nil {
		u := *b.LinkedUserID
		cp.LinkedUserID = &u
	}
	return &cp
}

// StatusChange describes the write side of a conditional status update.
// At most one link directive applies: LinkProfileID/LinkUserID bind on claim,
// ClearLinks unbinds everything on deactivate, ClearProfileLink severs only
// the profile on mark-stolen so the owner stays reachable for alerts, and
// none of them leaves links as-is (LOST and ACTIVE keep their binding).
type StatusChange struct {
	To               Status
	LinkProfileID    *id.ProfileID
	LinkUserID       *id.UserID
	ClearLinks       bool
	ClearProfileLink bool
}
