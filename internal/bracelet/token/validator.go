// Package token verifies a presented bracelet token against the stored
// secret. The verdict distinguishes "bracelet missing" from "token wrong"
// for internal diagnostics only; callers must collapse the two before
// anything crosses the service boundary, so a prober cannot enumerate
// valid bracelet IDs.
package token

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"

	"guardtag/internal/bracelet/models"
	"guardtag/internal/sentinel"
	id "guardtag/pkg/domain"
	dErrors "guardtag/pkg/domain-errors"
)

// Store is the record lookup the validator depends on.
type Store interface {
	FindByID(ctx context.Context, braceletID id.BraceletID) (*models.Bracelet, error)
}

// Result is the internal validation verdict. Bracelet is populated only when
// the record exists, regardless of token validity, so the caller can feed the
// current status into the decision table after a valid match.
type Result struct {
	Exists     bool
	TokenValid bool
	Bracelet   *models.Bracelet
}

// Validator checks presented tokens with a single record fetch and a
// constant-time comparison.
type Validator struct {
	store Store
}

// New creates a token validator over the given store.
func New(store Store) *Validator {
	return &Validator{store: store}
}

// Validate fetches the record once and compares the presented token to the
// stored secret. Comparison time does not depend on where the strings differ
// or on their lengths: both sides are digested to fixed width first, then
// compared with a constant-time primitive.
//
// Errors are returned only for infrastructure failures; "missing" and
// "mismatch" are verdicts, not errors.
func (v *Validator) Validate(ctx context.Context, braceletID id.BraceletID, presented string) (Result, error) {
	b, err := v.store.FindByID(ctx, braceletID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeValidation) {
			// Malformed persisted record: treat as unusable, not as infra failure.
			return Result{}, err
		}
		if isNotFound(err) {
			// Burn comparable work so a missing record is not observably
			// faster than a mismatched token.
			constantTimeEqual(presented, "")
			return Result{Exists: false}, nil
		}
		return Result{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "bracelet lookup failed")
	}

	if !constantTimeEqual(presented, b.SecretToken) {
		return Result{Exists: true, Bracelet: b}, nil
	}
	return Result{Exists: true, TokenValid: true, Bracelet: b}, nil
}

func constantTimeEqual(presented, stored string) bool {
	p := sha256.Sum256([]byte(presented))
	s := sha256.Sum256([]byte(stored))
	return subtle.ConstantTimeCompare(p[:], s[:]) == 1
}

func isNotFound(err error) bool {
	return errors.Is(err, sentinel.ErrNotFound) || dErrors.HasCode(err, dErrors.CodeNotFound)
}
