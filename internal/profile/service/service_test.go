package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guardtag/internal/pinaccess/pin"
	"guardtag/internal/profile/guard"
	"guardtag/internal/profile/models"
	"guardtag/internal/profile/store"
	id "guardtag/pkg/domain"
	dErrors "guardtag/pkg/domain-errors"
)

type fakeHasher struct{ calls int }

func (f *fakeHasher) Hash(plaintext string) (string, error) {
	f.calls++
	return "hashed:" + plaintext, nil
}

func newService(t *testing.T) (*Service, *store.InMemory, id.UserID, id.ProfileID) {
	t.Helper()
	s := store.NewInMemory()
	svc := New(s, guard.New(s), WithHasher(&fakeHasher{}))

	owner := id.UserID(uuid.New())
	p, err := svc.CreateProfile(context.Background(), owner, "Mina K")
	require.NoError(t, err)
	return svc, s, owner, p.ID
}

func TestCreateProfile(t *testing.T) {
	ctx := context.Background()
	s := store.NewInMemory()
	svc := New(s, guard.New(s))

	t.Run("requires caller identity", func(t *testing.T) {
		_, err := svc.CreateProfile(ctx, id.UserID{}, "Mina K")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthenticated))
	})

	t.Run("requires a name", func(t *testing.T) {
		_, err := svc.CreateProfile(ctx, id.UserID(uuid.New()), "  ")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("creates an active profile", func(t *testing.T) {
		p, err := svc.CreateProfile(ctx, id.UserID(uuid.New()), "Mina K")
		require.NoError(t, err)
		assert.Equal(t, models.ProfileActive, p.Status)
	})
}

// TestGuardCoversEveryMutation pins the property that each mutating operation
// rejects a caller who is not the recorded owner.
func TestGuardCoversEveryMutation(t *testing.T) {
	ctx := context.Background()
	svc, _, _, profileID := newService(t)
	stranger := id.UserID(uuid.New())

	zone := models.SafeZone{Name: "School", Lat: 48.85, Lon: 2.35, RadiusM: 150}
	birth := time.Date(2018, 4, 2, 0, 0, 0, 0, time.UTC)

	mutations := map[string]func() error{
		"update details": func() error {
			_, err := svc.UpdateDetails(ctx, profileID, stranger, &UpdateDetailsCommand{BirthDate: &birth})
			return err
		},
		"update medical": func() error {
			_, err := svc.UpdateMedical(ctx, profileID, stranger, models.MedicalInfo{BloodType: "O+"})
			return err
		},
		"replace contacts": func() error {
			_, err := svc.ReplaceContacts(ctx, profileID, stranger, []models.EmergencyContact{{Name: "A", Phone: "1", Priority: 1}})
			return err
		},
		"update pin": func() error {
			return svc.UpdatePIN(ctx, profileID, stranger, pin.ScopeDoctor, "1234")
		},
		"archive": func() error {
			return svc.Archive(ctx, profileID, stranger)
		},
		"add safe zone": func() error {
			_, err := svc.AddSafeZone(ctx, profileID, stranger, zone)
			return err
		},
		"remove safe zone": func() error {
			return svc.RemoveSafeZone(ctx, profileID, stranger, id.ZoneID(uuid.New()))
		},
		"add pickup": func() error {
			_, err := svc.AddPickupPerson(ctx, profileID, stranger, models.PickupPerson{Name: "B", Phone: "2"})
			return err
		},
		"remove pickup": func() error {
			return svc.RemovePickupPerson(ctx, profileID, stranger, id.PickupID(uuid.New()))
		},
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			err := mutate()
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized), "got %v", err)
		})
	}
}

func TestUpdatePIN(t *testing.T) {
	ctx := context.Background()
	s := store.NewInMemory()
	hasher := &fakeHasher{}
	svc := New(s, guard.New(s), WithHasher(hasher))

	owner := id.UserID(uuid.New())
	p, err := svc.CreateProfile(ctx, owner, "Mina K")
	require.NoError(t, err)

	t.Run("rejects malformed PINs before hashing", func(t *testing.T) {
		before := hasher.calls
		for _, bad := range []string{"123", "12345", "12a4", "123456789"} {
			err := svc.UpdatePIN(ctx, p.ID, owner, pin.ScopeDoctor, bad)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), "pin %q", bad)
		}
		assert.Equal(t, before, hasher.calls, "format failures must not reach the hasher")
	})

	t.Run("stores only the hash", func(t *testing.T) {
		require.NoError(t, svc.UpdatePIN(ctx, p.ID, owner, pin.ScopeDoctor, "1234"))
		require.NoError(t, svc.UpdatePIN(ctx, p.ID, owner, pin.ScopeSchool, "123456"))

		stored, err := s.FindByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "hashed:1234", stored.DoctorPINHash)
		assert.Equal(t, "hashed:123456", stored.SchoolPINHash)
		assert.NotContains(t, stored.DoctorPINHash, "\"1234\"")
	})
}

func TestSafeZoneCRUD(t *testing.T) {
	ctx := context.Background()
	svc, s, owner, profileID := newService(t)

	zone, err := svc.AddSafeZone(ctx, profileID, owner, models.SafeZone{Name: "School", Lat: 48.85, Lon: 2.35, RadiusM: 150})
	require.NoError(t, err)
	require.False(t, zone.ID.IsNil())

	zone.RadiusM = 300
	require.NoError(t, svc.UpdateSafeZone(ctx, profileID, owner, *zone))

	stored, err := s.FindByID(ctx, profileID)
	require.NoError(t, err)
	require.Len(t, stored.SafeZones, 1)
	assert.Equal(t, 300, stored.SafeZones[0].RadiusM)

	require.NoError(t, svc.RemoveSafeZone(ctx, profileID, owner, zone.ID))
	err = svc.RemoveSafeZone(ctx, profileID, owner, zone.ID)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestReplaceContactsValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, owner, profileID := newService(t)

	_, err := svc.ReplaceContacts(ctx, profileID, owner, []models.EmergencyContact{
		{Name: "A", Phone: "1", Priority: 1},
		{Name: "B", Phone: "2", Priority: 1},
	})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), "duplicate priorities must be rejected")
}

func TestArchive(t *testing.T) {
	ctx := context.Background()
	svc, _, owner, profileID := newService(t)

	require.NoError(t, svc.Archive(ctx, profileID, owner))

	t.Run("archive is not a silent no-op twice", func(t *testing.T) {
		err := svc.Archive(ctx, profileID, owner)
		require.Error(t, err)
	})

	t.Run("archived profiles reject further mutation", func(t *testing.T) {
		_, err := svc.UpdateMedical(ctx, profileID, owner, models.MedicalInfo{BloodType: "O+"})
		require.Error(t, err)
	})
}
