package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "guardtag/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty UUIDs".
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseProfileID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseProfileID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseUserID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, UserID(validUUID), id)
	})
}

func TestParseBraceletID(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseBraceletID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects malformed IDs", func(t *testing.T) {
		for _, s := range []string{"bf_9001", "BF 9001", "-BF9001", "BF9001-", "ab", "!!"} {
			_, err := ParseBraceletID(s)
			assert.Error(t, err, "expected rejection for %q", s)
		}
	})

	t.Run("normalizes case and whitespace", func(t *testing.T) {
		id, err := ParseBraceletID("  bf-9001 ")
		require.NoError(t, err)
		assert.Equal(t, BraceletID("BF-9001"), id)
	})
}

// TestTypeDistinction verifies the compiler enforces type safety.
// This is a compile-time check - if this compiles, the invariant holds.
func TestTypeDistinction(t *testing.T) {
	userID := UserID(uuid.New())
	profileID := ProfileID(uuid.New())

	// These would fail to compile if types were interchangeable:
	// var _ UserID = profileID   // compile error
	// var _ ProfileID = userID   // compile error

	assert.NotEqual(t, uuid.UUID(userID), uuid.UUID(profileID))
}
