package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guardtag/internal/scan/models"
	"guardtag/internal/scan/store"
	id "guardtag/pkg/domain"
	dErrors "guardtag/pkg/domain-errors"
)

const chromeOnMac = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func record(t *testing.T, svc *Service, owner id.UserID, kind models.Kind, at time.Time) *models.ScanEvent {
	t.Helper()
	e, err := svc.Record(context.Background(), RecordCommand{
		Kind:       kind,
		BraceletID: "GT-0001",
		ProfileID:  id.ProfileID(uuid.New()),
		OwnerID:    owner,
		UserAgent:  chromeOnMac,
		OccurredAt: at,
	})
	require.NoError(t, err)
	return e
}

func TestRecordParsesDevice(t *testing.T) {
	svc := New(store.NewInMemory())
	owner := id.UserID(uuid.New())

	e := record(t, svc, owner, models.KindScan, time.Now())
	assert.Equal(t, "Chrome", e.Device.Browser)
	assert.Contains(t, e.Device.OS, "Mac OS X")
	assert.False(t, e.Device.Mobile)
	assert.False(t, e.IsRead)
}

func TestRecordStolenAlertWithoutProfile(t *testing.T) {
	svc := New(store.NewInMemory())
	owner := id.UserID(uuid.New())

	e, err := svc.Record(context.Background(), RecordCommand{
		Kind:       models.KindStolenAlert,
		BraceletID: "GT-0001",
		OwnerID:    owner,
	})
	require.NoError(t, err)
	assert.True(t, e.ProfileID.IsNil())
}

func TestListIsOwnerScopedAndOrdered(t *testing.T) {
	ctx := context.Background()
	svc := New(store.NewInMemory())
	owner := id.UserID(uuid.New())
	other := id.UserID(uuid.New())

	base := time.Now().Add(-time.Hour)
	oldest := record(t, svc, owner, models.KindScan, base)
	newest := record(t, svc, owner, models.KindStolenAlert, base.Add(30*time.Minute))
	record(t, svc, other, models.KindScan, base.Add(10*time.Minute))

	events, err := svc.List(ctx, owner, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, newest.ID, events[0].ID)
	assert.Equal(t, oldest.ID, events[1].ID)

	_, err = svc.List(ctx, id.UserID{}, 0)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthenticated))
}

func TestMarkRead(t *testing.T) {
	ctx := context.Background()
	svc := New(store.NewInMemory())
	owner := id.UserID(uuid.New())
	stranger := id.UserID(uuid.New())

	e := record(t, svc, owner, models.KindScan, time.Now())

	count, err := svc.UnreadCount(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	t.Run("foreign entries read as missing", func(t *testing.T) {
		err := svc.MarkRead(ctx, e.ID, stranger)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	require.NoError(t, svc.MarkRead(ctx, e.ID, owner))

	count, err = svc.UnreadCount(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	events, err := svc.List(ctx, owner, 0)
	require.NoError(t, err)
	assert.True(t, events[0].IsRead)
}
