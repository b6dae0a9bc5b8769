package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guardtag/internal/bracelet/models"
	"guardtag/internal/bracelet/store"
	"guardtag/internal/bracelet/token"
	id "guardtag/pkg/domain"
	dErrors "guardtag/pkg/domain-errors"
	"guardtag/pkg/testutil"
)

// fakeDirectory is an in-memory stand-in for the profile side. It tracks
// bind/unbind calls and can be told to fail the next bind.
type fakeDirectory struct {
	mu       sync.Mutex
	owners   map[id.ProfileID]id.UserID
	bound    map[id.ProfileID]id.BraceletID
	unbinds  int
	failBind error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		owners: make(map[id.ProfileID]id.UserID),
		bound:  make(map[id.ProfileID]id.BraceletID),
	}
}

func (d *fakeDirectory) addProfile(owner id.UserID) id.ProfileID {
	d.mu.Lock()
	defer d.mu.Unlock()
	pid := id.ProfileID(uuid.New())
	d.owners[pid] = owner
	return pid
}

func (d *fakeDirectory) VerifyOwnership(_ context.Context, profileID id.ProfileID, callerID id.UserID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if owner, ok := d.owners[profileID]; !ok || owner != callerID {
		return dErrors.New(dErrors.CodeUnauthorized, "profile not found for this account")
	}
	return nil
}

func (d *fakeDirectory) Bind(_ context.Context, profileID id.ProfileID, braceletID id.BraceletID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failBind != nil {
		return d.failBind
	}
	if existing, ok := d.bound[profileID]; ok && existing != braceletID {
		return dErrors.New(dErrors.CodeConflict, "profile already bound")
	}
	d.bound[profileID] = braceletID
	return nil
}

func (d *fakeDirectory) Unbind(_ context.Context, profileID id.ProfileID, braceletID id.BraceletID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.bound[profileID] == braceletID {
		delete(d.bound, profileID)
	}
	d.unbinds++
	return nil
}

func (d *fakeDirectory) EmergencySnapshot(_ context.Context, profileID id.ProfileID) (*models.EmergencySnapshot, error) {
	return &models.EmergencySnapshot{
		ProfileID: profileID,
		FullName:  "Mina K",
		Contacts:  []models.ContactCard{{Name: "Parent", Phone: "+33600000000"}},
	}, nil
}

func (d *fakeDirectory) RestitutionContact(_ context.Context, _ id.ProfileID) (*models.RestitutionContact, error) {
	return &models.RestitutionContact{ContactName: "Parent", ContactPhone: "+33600000000"}, nil
}

// fakeSink collects scan records synchronously behind a mutex and signals
// arrival so tests can wait for the detached goroutine.
type fakeSink struct {
	mu      sync.Mutex
	records []ScanRecordCommand
	arrived chan struct{}
}

func newFakeSink() *fakeSink {
	return &fakeSink{arrived: make(chan struct{}, 16)}
}

func (f *fakeSink) RecordScan(_ context.Context, cmd ScanRecordCommand) error {
	f.mu.Lock()
	f.records = append(f.records, cmd)
	f.mu.Unlock()
	f.arrived <- struct{}{}
	return nil
}

func (f *fakeSink) wait(t *testing.T) ScanRecordCommand {
	t.Helper()
	select {
	case <-f.arrived:
	case <-time.After(2 * time.Second):
		t.Fatal("no scan record arrived")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[len(f.records)-1]
}

type fixture struct {
	svc   *Service
	store *store.InMemory
	dir   *fakeDirectory
	sink  *fakeSink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewInMemory()
	dir := newFakeDirectory()
	sink := newFakeSink()
	svc := New(st, token.New(st), dir, WithScanSink(sink))
	return &fixture{svc: svc, store: st, dir: dir, sink: sink}
}

// seed provisions a bracelet directly into the store in the given status,
// linked to the given profile when the status carries a link.
func (f *fixture) seed(t *testing.T, rawID string, status models.Status, profileID *id.ProfileID, ownerID *id.UserID) (id.BraceletID, string) {
	t.Helper()
	braceletID, err := id.ParseBraceletID(rawID)
	require.NoError(t, err)
	b := &models.Bracelet{
		ID:              braceletID,
		SecretToken:     "secret-" + rawID,
		Status:          status,
		LinkedProfileID: profileID,
		LinkedUserID:    ownerID,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	require.NoError(t, f.store.Create(context.Background(), b))
	return braceletID, b.SecretToken
}

func TestRouteScanTable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := id.UserID(uuid.New())
	profileID := f.dir.addProfile(owner)

	t.Run("unknown bracelet is counterfeit", func(t *testing.T) {
		d, err := f.svc.Route(ctx, ScanCommand{BraceletID: "GT-NOPE", Token: "whatever"})
		require.NoError(t, err)
		assert.Equal(t, "rejection", d.View)
		assert.Equal(t, "counterfeit", d.Rejection)
	})

	t.Run("malformed bracelet ID is counterfeit, not a validation error", func(t *testing.T) {
		d, err := f.svc.Route(ctx, ScanCommand{BraceletID: "!!", Token: "whatever"})
		require.NoError(t, err)
		assert.Equal(t, "counterfeit", d.Rejection)
	})

	t.Run("wrong token is counterfeit regardless of status", func(t *testing.T) {
		f.seed(t, "GT-WRONG", models.StatusActive, &profileID, &owner)
		d, err := f.svc.Route(ctx, ScanCommand{BraceletID: "GT-WRONG", Token: "bad"})
		require.NoError(t, err)
		assert.Equal(t, "counterfeit", d.Rejection, "token check must precede status branching")
	})

	t.Run("factory locked routes to not_provisioned", func(t *testing.T) {
		_, tok := f.seed(t, "GT-FACT", models.StatusFactoryLocked, nil, nil)
		d, err := f.svc.Route(ctx, ScanCommand{BraceletID: "GT-FACT", Token: tok})
		require.NoError(t, err)
		assert.Equal(t, "not_provisioned", d.View)
	})

	t.Run("inactive routes to activation flow", func(t *testing.T) {
		bid, tok := f.seed(t, "GT-INACT", models.StatusInactive, nil, nil)
		d, err := f.svc.Route(ctx, ScanCommand{BraceletID: "GT-INACT", Token: tok})
		require.NoError(t, err)
		assert.Equal(t, "activation_flow", d.View)
		assert.Equal(t, bid, d.BraceletID)
	})

	t.Run("active routes to emergency and records the scan", func(t *testing.T) {
		lat := 48.85
		f.seed(t, "GT-ACT", models.StatusActive, &profileID, &owner)
		d, err := f.svc.Route(ctx, ScanCommand{BraceletID: "GT-ACT", Token: "secret-GT-ACT", Lat: &lat})
		require.NoError(t, err)
		assert.Equal(t, "emergency", d.View)
		require.NotNil(t, d.Emergency)
		assert.Equal(t, "Mina K", d.Emergency.FullName)
		assert.NotEmpty(t, d.Emergency.Contacts)

		rec := f.sink.wait(t)
		assert.Equal(t, "scan", rec.Kind)
		assert.Equal(t, profileID, rec.ProfileID)
		require.NotNil(t, rec.Lat)
		assert.Equal(t, lat, *rec.Lat)
	})

	t.Run("lost routes to restitution contact", func(t *testing.T) {
		f.seed(t, "GT-LOST", models.StatusLost, &profileID, &owner)
		d, err := f.svc.Route(ctx, ScanCommand{BraceletID: "GT-LOST", Token: "secret-GT-LOST"})
		require.NoError(t, err)
		assert.Equal(t, "lost", d.View)
		require.NotNil(t, d.Lost)
		assert.Equal(t, "+33600000000", d.Lost.ContactPhone)
		assert.Nil(t, d.Emergency, "lost view must not leak the emergency snapshot")
	})

	t.Run("deactivated is rejected", func(t *testing.T) {
		f.seed(t, "GT-DEAD", models.StatusDeactivated, nil, nil)
		d, err := f.svc.Route(ctx, ScanCommand{BraceletID: "GT-DEAD", Token: "secret-GT-DEAD"})
		require.NoError(t, err)
		assert.Equal(t, "rejection", d.View)
		assert.Equal(t, "deactivated", d.Rejection)
	})
}

func TestRouteStolenAlert(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := id.UserID(uuid.New())

	// STOLEN records carry no profile link, only the retained owner link.
	f.seed(t, "GT-STOLEN", models.StatusStolen, nil, &owner)

	d, err := f.svc.Route(ctx, ScanCommand{BraceletID: "GT-STOLEN", Token: "secret-GT-STOLEN"})
	require.NoError(t, err)
	assert.Equal(t, "rejection", d.View)
	assert.Equal(t, "stolen", d.Rejection)
	assert.Nil(t, d.Emergency)

	rec := f.sink.wait(t)
	assert.Equal(t, "stolen_alert", rec.Kind)
	assert.Equal(t, owner, rec.OwnerID)
}

func TestClaim(t *testing.T) {
	ctx := context.Background()

	t.Run("claims an inactive bracelet and binds both sides", func(t *testing.T) {
		f := newFixture(t)
		owner := id.UserID(uuid.New())
		profileID := f.dir.addProfile(owner)
		bid, tok := f.seed(t, "GT-CLAIM", models.StatusInactive, nil, nil)

		b, err := f.svc.Claim(ctx, ClaimCommand{BraceletID: "GT-CLAIM", Token: tok, ProfileID: profileID, CallerID: owner})
		require.NoError(t, err)
		assert.Equal(t, models.StatusActive, b.Status)
		require.NotNil(t, b.LinkedProfileID)
		assert.Equal(t, profileID, *b.LinkedProfileID)
		assert.Equal(t, bid, f.dir.bound[profileID])
	})

	t.Run("rejects a wrong token without leaking existence", func(t *testing.T) {
		f := newFixture(t)
		owner := id.UserID(uuid.New())
		profileID := f.dir.addProfile(owner)
		f.seed(t, "GT-CLAIM", models.StatusInactive, nil, nil)

		_, err := f.svc.Claim(ctx, ClaimCommand{BraceletID: "GT-CLAIM", Token: "bad", ProfileID: profileID, CallerID: owner})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidToken))

		_, err = f.svc.Claim(ctx, ClaimCommand{BraceletID: "GT-MISSING", Token: "bad", ProfileID: profileID, CallerID: owner})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidToken), "missing and mismatched must be indistinguishable")
	})

	t.Run("rejects callers who do not own the profile", func(t *testing.T) {
		f := newFixture(t)
		owner := id.UserID(uuid.New())
		profileID := f.dir.addProfile(owner)
		_, tok := f.seed(t, "GT-CLAIM", models.StatusInactive, nil, nil)

		_, err := f.svc.Claim(ctx, ClaimCommand{BraceletID: "GT-CLAIM", Token: tok, ProfileID: profileID, CallerID: id.UserID(uuid.New())})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("rejects claims outside INACTIVE", func(t *testing.T) {
		f := newFixture(t)
		owner := id.UserID(uuid.New())
		profileID := f.dir.addProfile(owner)
		otherProfile := f.dir.addProfile(owner)
		f.seed(t, "GT-WORN", models.StatusActive, &otherProfile, &owner)

		_, err := f.svc.Claim(ctx, ClaimCommand{BraceletID: "GT-WORN", Token: "secret-GT-WORN", ProfileID: profileID, CallerID: owner})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidStatus))
	})

	t.Run("reverts the bracelet when the profile bind fails", func(t *testing.T) {
		f := newFixture(t)
		owner := id.UserID(uuid.New())
		profileID := f.dir.addProfile(owner)
		bid, tok := f.seed(t, "GT-REVERT", models.StatusInactive, nil, nil)
		f.dir.failBind = dErrors.New(dErrors.CodeConflict, "profile already bound")

		_, err := f.svc.Claim(ctx, ClaimCommand{BraceletID: "GT-REVERT", Token: tok, ProfileID: profileID, CallerID: owner})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))

		b, err := f.store.FindByID(ctx, bid)
		require.NoError(t, err)
		assert.Equal(t, models.StatusInactive, b.Status, "failed claim must leave the bracelet claimable")
		assert.Nil(t, b.LinkedProfileID)
	})

	t.Run("exactly one concurrent claimant wins", func(t *testing.T) {
		f := newFixture(t)
		owner := id.UserID(uuid.New())
		_, tok := f.seed(t, "GT-RACE", models.StatusInactive, nil, nil)

		profiles := make([]id.ProfileID, 24)
		for i := range profiles {
			profiles[i] = f.dir.addProfile(owner)
		}

		res := testutil.RunConcurrent(len(profiles), func(idx int) error {
			_, err := f.svc.Claim(ctx, ClaimCommand{
				BraceletID: "GT-RACE",
				Token:      tok,
				ProfileID:  profiles[idx],
				CallerID:   owner,
			})
			return err
		})

		assert.Equal(t, int32(1), res.Successes)
		assert.Equal(t, int32(len(profiles)-1), res.Conflicts)
		assert.Equal(t, int32(0), res.Errors)
	})
}

func TestOwnerTransitions(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*fixture, id.BraceletID, id.UserID, id.ProfileID) {
		f := newFixture(t)
		owner := id.UserID(uuid.New())
		profileID := f.dir.addProfile(owner)
		bid, _ := f.seed(t, "GT-OWNED", models.StatusActive, &profileID, &owner)
		f.dir.bound[profileID] = bid
		return f, bid, owner, profileID
	}

	t.Run("owner reports lost and reactivates, link intact", func(t *testing.T) {
		f, bid, owner, profileID := setup(t)

		lost, err := f.svc.ReportLost(ctx, bid, owner)
		require.NoError(t, err)
		assert.Equal(t, models.StatusLost, lost.Status)
		require.NotNil(t, lost.LinkedProfileID)
		assert.Equal(t, profileID, *lost.LinkedProfileID)

		back, err := f.svc.Reactivate(ctx, bid, owner)
		require.NoError(t, err)
		assert.Equal(t, models.StatusActive, back.Status)
		require.NotNil(t, back.LinkedProfileID)
	})

	t.Run("strangers cannot report lost", func(t *testing.T) {
		f, bid, _, _ := setup(t)
		_, err := f.svc.ReportLost(ctx, bid, id.UserID(uuid.New()))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("report lost requires ACTIVE", func(t *testing.T) {
		f, bid, owner, _ := setup(t)
		_, err := f.svc.ReportLost(ctx, bid, owner)
		require.NoError(t, err)
		_, err = f.svc.ReportLost(ctx, bid, owner)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidStatus))
	})

	t.Run("mark stolen severs the link and frees the profile", func(t *testing.T) {
		f, bid, owner, profileID := setup(t)

		stolen, err := f.svc.MarkStolen(ctx, bid, owner)
		require.NoError(t, err)
		assert.Equal(t, models.StatusStolen, stolen.Status)
		assert.Nil(t, stolen.LinkedProfileID)
		assert.Equal(t, 1, f.dir.unbinds)
		_, stillBound := f.dir.bound[profileID]
		assert.False(t, stillBound)
	})
}

func TestAdminLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("unlock releases factory stock", func(t *testing.T) {
		f := newFixture(t)
		bid, _ := f.seed(t, "GT-FACT", models.StatusFactoryLocked, nil, nil)

		b, err := f.svc.Unlock(ctx, bid)
		require.NoError(t, err)
		assert.Equal(t, models.StatusInactive, b.Status)

		_, err = f.svc.Unlock(ctx, bid)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidStatus))
	})

	t.Run("deactivate clears links and is terminal", func(t *testing.T) {
		f := newFixture(t)
		owner := id.UserID(uuid.New())
		profileID := f.dir.addProfile(owner)
		bid, _ := f.seed(t, "GT-RETIRE", models.StatusActive, &profileID, &owner)

		b, err := f.svc.Deactivate(ctx, bid, false)
		require.NoError(t, err)
		assert.Equal(t, models.StatusDeactivated, b.Status)
		assert.Nil(t, b.LinkedProfileID)

		_, err = f.svc.Deactivate(ctx, bid, true)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidStatus), "DEACTIVATED is terminal even with the override")
	})

	t.Run("stolen requires the explicit override", func(t *testing.T) {
		f := newFixture(t)
		bid, _ := f.seed(t, "GT-HOT", models.StatusStolen, nil, nil)

		_, err := f.svc.Deactivate(ctx, bid, false)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidStatus))

		b, err := f.svc.Deactivate(ctx, bid, true)
		require.NoError(t, err)
		assert.Equal(t, models.StatusDeactivated, b.Status)
	})
}

func TestProvision(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	p, err := f.svc.Provision(ctx, ProvisionCommand{BraceletID: "gt-mint-001", Initial: models.StatusFactoryLocked, BatchID: "B-2026-01"})
	require.NoError(t, err)
	assert.Equal(t, id.BraceletID("GT-MINT-001"), p.Bracelet.ID, "IDs are normalized to upper case")
	assert.NotEmpty(t, p.Token)

	stored, err := f.store.FindByID(ctx, p.Bracelet.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Token, stored.SecretToken)

	_, err = f.svc.Provision(ctx, ProvisionCommand{BraceletID: "GT-MINT-001", Initial: models.StatusFactoryLocked})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))

	_, err = f.svc.Provision(ctx, ProvisionCommand{BraceletID: "GT-MINT-002", Initial: models.StatusActive})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), "only factory or inactive starting points")
}
