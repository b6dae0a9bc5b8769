package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guardtag/internal/bracelet/models"
	id "guardtag/pkg/domain"
)

func newInactive(t *testing.T, braceletID id.BraceletID) *models.Bracelet {
	t.Helper()
	b, err := models.New(braceletID, "tok-abc", models.StatusInactive, "BATCH-1", time.Now())
	require.NoError(t, err)
	return b
}

func TestInMemoryCreateAndFind(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()

	require.NoError(t, s.Create(ctx, newInactive(t, "BF-9001")))

	t.Run("duplicate id rejected", func(t *testing.T) {
		err := s.Create(ctx, newInactive(t, "BF-9001"))
		assert.ErrorIs(t, err, ErrExists)
	})

	t.Run("find returns a copy", func(t *testing.T) {
		a, err := s.FindByID(ctx, "BF-9001")
		require.NoError(t, err)
		a.Status = models.StatusStolen

		b, err := s.FindByID(ctx, "BF-9001")
		require.NoError(t, err)
		assert.Equal(t, models.StatusInactive, b.Status)
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := s.FindByID(ctx, "BF-0000")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestInMemoryUpdateStatus(t *testing.T) {
	ctx := context.Background()
	profileID := id.ProfileID(uuid.New())
	userID := id.UserID(uuid.New())

	t.Run("applies links on claim", func(t *testing.T) {
		s := NewInMemory()
		require.NoError(t, s.Create(ctx, newInactive(t, "BF-9001")))

		updated, err := s.UpdateStatus(ctx, "BF-9001", models.StatusInactive, models.StatusChange{
			To:            models.StatusActive,
			LinkProfileID: &profileID,
			LinkUserID:    &userID,
		})
		require.NoError(t, err)
		assert.Equal(t, models.StatusActive, updated.Status)
		require.NotNil(t, updated.LinkedProfileID)
		assert.Equal(t, profileID, *updated.LinkedProfileID)
	})

	t.Run("conflict when expected status does not match", func(t *testing.T) {
		s := NewInMemory()
		require.NoError(t, s.Create(ctx, newInactive(t, "BF-9001")))

		_, err := s.UpdateStatus(ctx, "BF-9001", models.StatusActive, models.StatusChange{To: models.StatusLost})
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("not found for unknown bracelet", func(t *testing.T) {
		s := NewInMemory()
		_, err := s.UpdateStatus(ctx, "BF-0000", models.StatusInactive, models.StatusChange{To: models.StatusActive})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("rejects transitions that would break the link invariant", func(t *testing.T) {
		s := NewInMemory()
		require.NoError(t, s.Create(ctx, newInactive(t, "BF-9001")))

		// ACTIVE without a profile link is malformed.
		_, err := s.UpdateStatus(ctx, "BF-9001", models.StatusInactive, models.StatusChange{To: models.StatusActive})
		assert.Error(t, err)
	})
}

// TestInMemoryUpdateStatusRace pins the compare-and-set guarantee: N
// concurrent claims against the same INACTIVE bracelet yield exactly one
// winner, everyone else conflicts, and the final record is never double-linked.
func TestInMemoryUpdateStatusRace(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	require.NoError(t, s.Create(ctx, newInactive(t, "BF-9001")))

	const racers = 32
	var wg sync.WaitGroup
	var wins, conflicts atomic.Int32
	winners := make([]id.ProfileID, racers)

	for i := 0; i < racers; i++ {
		winners[i] = id.ProfileID(uuid.New())
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, err := s.UpdateStatus(ctx, "BF-9001", models.StatusInactive, models.StatusChange{
				To:            models.StatusActive,
				LinkProfileID: &winners[idx],
			})
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrConflict):
				conflicts.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load(), "exactly one claim must win")
	assert.Equal(t, int32(racers-1), conflicts.Load())

	final, err := s.FindByID(ctx, "BF-9001")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, final.Status)
	require.NotNil(t, final.LinkedProfileID)
	require.NoError(t, final.Validate())
}
