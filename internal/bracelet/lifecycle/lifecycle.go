// Package lifecycle holds the bracelet status decision table as a pure
// function. It has no side effects and no store access: callers feed it the
// current status, the token verdict, and the requested action, and it answers
// with either a routing/transition outcome or a typed rejection.
package lifecycle

import (
	"guardtag/internal/bracelet/models"
	dErrors "guardtag/pkg/domain-errors"
)

// Action is an operation requested against a bracelet.
type Action string

const (
	ActionScan       Action = "scan"
	ActionClaim      Action = "claim"
	ActionReportLost Action = "report_lost"
	ActionReactivate Action = "reactivate"
	ActionMarkStolen Action = "mark_stolen"
	ActionDeactivate Action = "deactivate" // admin-only
	ActionUnlock     Action = "unlock"     // admin-only, releases factory stock
)

// View is the caller-facing routing decision for a scan.
type View string

const (
	ViewActivation     View = "activation_flow"
	ViewEmergency      View = "emergency"
	ViewLost           View = "lost"
	ViewNotProvisioned View = "not_provisioned"
	ViewRejection      View = "rejection"
)

// RejectionKind qualifies a rejection view. Counterfeit covers both unknown
// bracelets and wrong tokens; the two are indistinguishable outward.
type RejectionKind string

const (
	RejectionCounterfeit RejectionKind = "counterfeit"
	RejectionStolen      RejectionKind = "stolen"
	RejectionDeactivated RejectionKind = "deactivated"
)

// Outcome is the decision for one (status, tokenValid, action) triple.
// For scans, View/Rejection describe the routing; RecordScan and NotifyOwner
// flag the side effects the caller must trigger. For mutations, Transition
// carries the conditional write to attempt.
type Outcome struct {
	View        View
	Rejection   RejectionKind
	RecordScan  bool
	NotifyOwner bool
	Transition  *models.StatusChange
}

// Decide maps (current status, token validity, requested action) to an
// outcome or a typed rejection. The token check precedes all status
// branching: an invalid token yields the undifferentiated counterfeit
// rejection for scans, and an invalid_token error for every mutation,
// regardless of status.
func Decide(status models.Status, tokenValid bool, action Action) (Outcome, error) {
	if !tokenValid {
		if action == ActionScan {
			return Outcome{View: ViewRejection, Rejection: RejectionCounterfeit}, nil
		}
		return Outcome{}, dErrors.New(dErrors.CodeInvalidToken, "bracelet token rejected")
	}

	switch action {
	case ActionScan:
		return decideScan(status), nil
	case ActionClaim:
		if status != models.StatusInactive {
			return Outcome{}, invalidStatus(status, action)
		}
		return Outcome{Transition: &models.StatusChange{To: models.StatusActive}}, nil
	case ActionReportLost:
		if status != models.StatusActive {
			return Outcome{}, invalidStatus(status, action)
		}
		return Outcome{Transition: &models.StatusChange{To: models.StatusLost}}, nil
	case ActionReactivate:
		if status != models.StatusLost {
			return Outcome{}, invalidStatus(status, action)
		}
		return Outcome{Transition: &models.StatusChange{To: models.StatusActive}}, nil
	case ActionMarkStolen:
		if status != models.StatusActive && status != models.StatusLost {
			return Outcome{}, invalidStatus(status, action)
		}
		// The profile is freed to claim a replacement; the owner link stays so
		// later sightings of the stolen tag can alert the account.
		return Outcome{Transition: &models.StatusChange{To: models.StatusStolen, ClearProfileLink: true}}, nil
	case ActionDeactivate:
		// DEACTIVATED is terminal even for admins. STOLEN needs an explicit
		// admin override, which the service checks before calling here.
		if status == models.StatusDeactivated {
			return Outcome{}, invalidStatus(status, action)
		}
		return Outcome{Transition: &models.StatusChange{To: models.StatusDeactivated, ClearLinks: true}}, nil
	case ActionUnlock:
		if status != models.StatusFactoryLocked {
			return Outcome{}, invalidStatus(status, action)
		}
		return Outcome{Transition: &models.StatusChange{To: models.StatusInactive}}, nil
	default:
		return Outcome{}, dErrors.New(dErrors.CodeBadRequest, "unknown bracelet action")
	}
}

func decideScan(status models.Status) Outcome {
	switch status {
	case models.StatusFactoryLocked:
		return Outcome{View: ViewNotProvisioned}
	case models.StatusInactive:
		return Outcome{View: ViewActivation}
	case models.StatusActive:
		return Outcome{View: ViewEmergency, RecordScan: true}
	case models.StatusLost:
		return Outcome{View: ViewLost}
	case models.StatusStolen:
		return Outcome{View: ViewRejection, Rejection: RejectionStolen, RecordScan: true, NotifyOwner: true}
	case models.StatusDeactivated:
		return Outcome{View: ViewRejection, Rejection: RejectionDeactivated}
	default:
		// Unknown statuses never reach here; the store boundary rejects them.
		return Outcome{View: ViewRejection, Rejection: RejectionCounterfeit}
	}
}

func invalidStatus(status models.Status, action Action) error {
	return dErrors.New(dErrors.CodeInvalidStatus, string(action)+" not permitted while bracelet is "+string(status))
}
