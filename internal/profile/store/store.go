// Package store persists child profiles. Bind and Unbind are the profile
// side of the bracelet claim transaction: both are conditional writes so the
// bidirectional bracelet⇄profile link can never be half-applied under
// concurrency.
package store

import (
	"guardtag/internal/sentinel"
)

var (
	ErrNotFound = sentinel.ErrNotFound
	ErrConflict = sentinel.ErrConflict
	ErrExists   = sentinel.ErrAlreadyUsed
)
