package models

import (
	id "guardtag/pkg/domain"
)

// ContactCard is the caller-facing slice of an emergency contact. It never
// carries priorities or relations beyond what a first responder needs.
type ContactCard struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Relation string `json:"relation,omitempty"`
}

// EmergencySnapshot is what a scanner of an ACTIVE bracelet sees without any
// PIN. Medical details and the pickup roster stay behind their gates; the
// snapshot only flags that they exist.
type EmergencySnapshot struct {
	ProfileID        id.ProfileID  `json:"profile_id"`
	FullName         string        `json:"full_name"`
	PhotoURL         string        `json:"photo_url,omitempty"`
	BloodType        string        `json:"blood_type,omitempty"`
	Allergies        []string      `json:"allergies,omitempty"`
	Contacts         []ContactCard `json:"contacts"`
	HasMedicalRecord bool          `json:"has_medical_record"`
	HasPickupRoster  bool          `json:"has_pickup_roster"`
}

// RestitutionContact is shown to the finder of a LOST bracelet: one way to
// reach the family, nothing else about the child.
type RestitutionContact struct {
	ChildFirstName string `json:"child_first_name,omitempty"`
	ContactName    string `json:"contact_name"`
	ContactPhone   string `json:"contact_phone"`
	Message        string `json:"message,omitempty"`
}

// ViewDecision is the routed outcome of one scan. Exactly the fields for the
// decided view are populated.
type ViewDecision struct {
	View       string              `json:"view"`
	Rejection  string              `json:"rejection,omitempty"`
	BraceletID id.BraceletID       `json:"bracelet_id,omitempty"`
	Emergency  *EmergencySnapshot  `json:"emergency,omitempty"`
	Lost       *RestitutionContact `json:"lost,omitempty"`
}
