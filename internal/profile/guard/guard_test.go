package guard

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guardtag/internal/profile/models"
	"guardtag/internal/profile/store"
	id "guardtag/pkg/domain"
	dErrors "guardtag/pkg/domain-errors"
)

func TestVerifyOwnership(t *testing.T) {
	ctx := context.Background()
	s := store.NewInMemory()

	parentID := id.UserID(uuid.New())
	p, err := models.New(id.ProfileID(uuid.New()), parentID, "Mina K", time.Now())
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, p))

	g := New(s)

	t.Run("owner passes and gets the profile back", func(t *testing.T) {
		got, err := g.VerifyOwnership(ctx, p.ID, parentID)
		require.NoError(t, err)
		assert.Equal(t, p.ID, got.ID)
	})

	t.Run("non-owner is unauthorized", func(t *testing.T) {
		_, err := g.VerifyOwnership(ctx, p.ID, id.UserID(uuid.New()))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("missing profile is unauthorized, not not_found", func(t *testing.T) {
		_, err := g.VerifyOwnership(ctx, id.ProfileID(uuid.New()), parentID)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
		assert.False(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("empty caller is unauthenticated", func(t *testing.T) {
		_, err := g.VerifyOwnership(ctx, p.ID, id.UserID{})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthenticated))
	})
}
