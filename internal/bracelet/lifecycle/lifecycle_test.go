package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guardtag/internal/bracelet/models"
	dErrors "guardtag/pkg/domain-errors"
)

// The decision table is the security core of the service; every cell of the
// status/action matrix is pinned here.

func TestDecideScanRouting(t *testing.T) {
	cases := []struct {
		status      models.Status
		view        View
		rejection   RejectionKind
		recordScan  bool
		notifyOwner bool
	}{
		{models.StatusFactoryLocked, ViewNotProvisioned, "", false, false},
		{models.StatusInactive, ViewActivation, "", false, false},
		{models.StatusActive, ViewEmergency, "", true, false},
		{models.StatusLost, ViewLost, "", false, false},
		{models.StatusStolen, ViewRejection, RejectionStolen, true, true},
		{models.StatusDeactivated, ViewRejection, RejectionDeactivated, false, false},
	}

	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			out, err := Decide(tc.status, true, ActionScan)
			require.NoError(t, err)
			assert.Equal(t, tc.view, out.View)
			assert.Equal(t, tc.rejection, out.Rejection)
			assert.Equal(t, tc.recordScan, out.RecordScan)
			assert.Equal(t, tc.notifyOwner, out.NotifyOwner)
			assert.Nil(t, out.Transition)
		})
	}
}

func TestInvalidTokenPrecedesStatusBranching(t *testing.T) {
	statuses := []models.Status{
		models.StatusFactoryLocked, models.StatusInactive, models.StatusActive,
		models.StatusLost, models.StatusStolen, models.StatusDeactivated,
	}

	t.Run("scan always routes to counterfeit rejection", func(t *testing.T) {
		for _, status := range statuses {
			out, err := Decide(status, false, ActionScan)
			require.NoError(t, err)
			assert.Equal(t, ViewRejection, out.View, "status %s", status)
			assert.Equal(t, RejectionCounterfeit, out.Rejection, "status %s", status)
			assert.False(t, out.RecordScan, "status %s must not record a scan", status)
		}
	})

	t.Run("mutations always fail with invalid_token", func(t *testing.T) {
		for _, status := range statuses {
			for _, action := range []Action{ActionClaim, ActionReportLost, ActionReactivate, ActionDeactivate} {
				_, err := Decide(status, false, action)
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidToken),
					"status %s action %s: got %v", status, action, err)
			}
		}
	})
}

func TestDecideMutations(t *testing.T) {
	t.Run("claim only from INACTIVE", func(t *testing.T) {
		out, err := Decide(models.StatusInactive, true, ActionClaim)
		require.NoError(t, err)
		require.NotNil(t, out.Transition)
		assert.Equal(t, models.StatusActive, out.Transition.To)

		for _, status := range []models.Status{models.StatusFactoryLocked, models.StatusActive, models.StatusLost, models.StatusStolen, models.StatusDeactivated} {
			_, err := Decide(status, true, ActionClaim)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidStatus), "status %s", status)
		}
	})

	t.Run("report lost only from ACTIVE", func(t *testing.T) {
		out, err := Decide(models.StatusActive, true, ActionReportLost)
		require.NoError(t, err)
		assert.Equal(t, models.StatusLost, out.Transition.To)
		assert.False(t, out.Transition.ClearLinks, "lost bracelets keep their profile link")

		_, err = Decide(models.StatusLost, true, ActionReportLost)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidStatus))
	})

	t.Run("reactivate only from LOST", func(t *testing.T) {
		out, err := Decide(models.StatusLost, true, ActionReactivate)
		require.NoError(t, err)
		assert.Equal(t, models.StatusActive, out.Transition.To)

		_, err = Decide(models.StatusActive, true, ActionReactivate)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidStatus))
	})

	t.Run("deactivate is terminal", func(t *testing.T) {
		out, err := Decide(models.StatusStolen, true, ActionDeactivate)
		require.NoError(t, err)
		assert.Equal(t, models.StatusDeactivated, out.Transition.To)
		assert.True(t, out.Transition.ClearLinks)

		_, err = Decide(models.StatusDeactivated, true, ActionDeactivate)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidStatus))
	})

	t.Run("unlock releases factory stock only", func(t *testing.T) {
		out, err := Decide(models.StatusFactoryLocked, true, ActionUnlock)
		require.NoError(t, err)
		assert.Equal(t, models.StatusInactive, out.Transition.To)

		_, err = Decide(models.StatusInactive, true, ActionUnlock)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidStatus))
	})

	t.Run("mark stolen severs the profile link but keeps the owner", func(t *testing.T) {
		for _, status := range []models.Status{models.StatusActive, models.StatusLost} {
			out, err := Decide(status, true, ActionMarkStolen)
			require.NoError(t, err)
			assert.Equal(t, models.StatusStolen, out.Transition.To)
			assert.True(t, out.Transition.ClearProfileLink)
			assert.False(t, out.Transition.ClearLinks)
		}

		_, err := Decide(models.StatusInactive, true, ActionMarkStolen)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidStatus))
	})

	t.Run("no silent no-ops", func(t *testing.T) {
		// Every disallowed (status, action) pair errors; none return an empty outcome.
		_, err := Decide(models.StatusDeactivated, true, ActionReactivate)
		require.Error(t, err)
		_, err = Decide(models.StatusStolen, true, ActionClaim)
		require.Error(t, err)
	})
}
