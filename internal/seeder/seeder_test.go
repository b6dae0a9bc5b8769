package seeder

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guardtag/internal/bracelet/models"
	braceletservice "guardtag/internal/bracelet/service"
	braceletstore "guardtag/internal/bracelet/store"
	"guardtag/internal/bracelet/token"
	id "guardtag/pkg/domain"
	dErrors "guardtag/pkg/domain-errors"
)

type nopDirectory struct{}

func (nopDirectory) VerifyOwnership(context.Context, id.ProfileID, id.UserID) error { return nil }
func (nopDirectory) Bind(context.Context, id.ProfileID, id.BraceletID) error       { return nil }
func (nopDirectory) Unbind(context.Context, id.ProfileID, id.BraceletID) error     { return nil }
func (nopDirectory) EmergencySnapshot(context.Context, id.ProfileID) (*models.EmergencySnapshot, error) {
	return &models.EmergencySnapshot{}, nil
}
func (nopDirectory) RestitutionContact(context.Context, id.ProfileID) (*models.RestitutionContact, error) {
	return &models.RestitutionContact{}, nil
}

func newSeeder(t *testing.T) (*Seeder, *braceletstore.InMemory) {
	t.Helper()
	store := braceletstore.NewInMemory()
	svc := braceletservice.New(store, token.New(store), nopDirectory{},
		braceletservice.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return New(svc, WithConcurrency(4)), store
}

func TestSeedBatch(t *testing.T) {
	s, store := newSeeder(t)
	ctx := context.Background()

	manifest, err := s.SeedBatch(ctx, "GT24", 50)
	require.NoError(t, err)
	require.Len(t, manifest, 50)

	// Sequential IDs, slot order preserved, every token distinct.
	tokens := map[string]bool{}
	assert.Equal(t, id.BraceletID("GT24-0001"), manifest[0].BraceletID)
	assert.Equal(t, id.BraceletID("GT24-0050"), manifest[49].BraceletID)
	for _, entry := range manifest {
		require.NotEmpty(t, entry.Token)
		require.False(t, tokens[entry.Token], "token reuse in batch")
		tokens[entry.Token] = true
	}

	b, err := store.FindByID(ctx, "GT24-0001")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFactoryLocked, b.Status)
	assert.Equal(t, id.BatchID("GT24"), b.BatchID)
}

func TestSeedBatchRejectsBadInput(t *testing.T) {
	s, _ := newSeeder(t)
	ctx := context.Background()

	_, err := s.SeedBatch(ctx, "", 10)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = s.SeedBatch(ctx, "GT24", 0)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = s.SeedBatch(ctx, "GT24", 10001)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestSeedBatchFailsOnCollision(t *testing.T) {
	s, _ := newSeeder(t)
	ctx := context.Background()

	_, err := s.SeedBatch(ctx, "GT25", 3)
	require.NoError(t, err)

	_, err = s.SeedBatch(ctx, "GT25", 3)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}
