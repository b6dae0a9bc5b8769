// Package pin defines the PIN scopes and their format rules. Format is
// validated before any hash operation so malformed input never burns
// adaptive-hash CPU or counts against the attempt limiter.
package pin

import (
	"strconv"

	dErrors "guardtag/pkg/domain-errors"
)

// Scope names a PIN-gated resource class.
type Scope string

const (
	// ScopeDoctor gates medical documents. 4-digit PIN.
	ScopeDoctor Scope = "doctor"
	// ScopeSchool gates the school pickup roster. 6-digit PIN.
	ScopeSchool Scope = "school"
)

// Length returns the required PIN length for the scope.
func (s Scope) Length() int {
	if s == ScopeSchool {
		return 6
	}
	return 4
}

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	return s == ScopeDoctor || s == ScopeSchool
}

// Validate checks that the presented PIN is exactly the scope's length and
// numeric. This runs before any limiter or hash work.
func Validate(scope Scope, presented string) error {
	if !scope.Valid() {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown PIN scope")
	}
	if len(presented) != scope.Length() {
		return dErrors.New(dErrors.CodeValidation, "PIN must be exactly "+strconv.Itoa(scope.Length())+" digits")
	}
	for i := 0; i < len(presented); i++ {
		if presented[i] < '0' || presented[i] > '9' {
			return dErrors.New(dErrors.CodeValidation, "PIN must contain digits only")
		}
	}
	return nil
}
