// Package store persists bracelet records. Both backends expose the same
// contract: FindByID, Create, and UpdateStatus, a genuinely atomic
// compare-and-set keyed on the expected prior status. Under N concurrent
// transitions for the same bracelet, exactly one succeeds; the rest observe
// sentinel.ErrConflict.
package store

import (
	"guardtag/internal/sentinel"
)

// Sentinel errors returned (optionally wrapped) by every backend.
// Services translate these into domain errors exactly once.
var (
	ErrNotFound = sentinel.ErrNotFound
	ErrConflict = sentinel.ErrConflict
	ErrExists   = sentinel.ErrAlreadyUsed
)
