// Package store persists scan inbox events. Listing is always scoped to an
// owner account and returns newest first.
package store

import (
	"guardtag/internal/sentinel"
)

var (
	ErrNotFound = sentinel.ErrNotFound
)
