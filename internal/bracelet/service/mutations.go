package service

import (
	"context"
	"errors"
	"log/slog"

	"guardtag/internal/bracelet/lifecycle"
	"guardtag/internal/bracelet/models"
	"guardtag/internal/sentinel"
	id "guardtag/pkg/domain"
	dErrors "guardtag/pkg/domain-errors"
)

// ClaimCommand binds an INACTIVE bracelet to a child profile. The caller
// must present the bracelet token (a claim starts with a physical scan) and
// own the target profile.
type ClaimCommand struct {
	BraceletID string
	Token      string
	ProfileID  id.ProfileID
	CallerID   id.UserID
}

// Claim races to activate a bracelet. The conditional status write picks the
// single winner; every loser observes a conflict. The profile side of the
// link is written after the bracelet side, and the bracelet write is reverted
// if the profile bind fails, so the bidirectional link never ends up half set.
func (s *Service) Claim(ctx context.Context, cmd ClaimCommand) (*models.Bracelet, error) {
	braceletID, err := id.ParseBraceletID(cmd.BraceletID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidToken, "bracelet token rejected")
	}

	if err := s.directory.VerifyOwnership(ctx, cmd.ProfileID, cmd.CallerID); err != nil {
		return nil, err
	}

	result, err := s.validator.Validate(ctx, braceletID, cmd.Token)
	if err != nil {
		return nil, err
	}
	outcome, err := lifecycle.Decide(statusOf(result), result.TokenValid, lifecycle.ActionClaim)
	if err != nil {
		return nil, err
	}

	change := *outcome.Transition
	change.LinkProfileID = &cmd.ProfileID
	change.LinkUserID = &cmd.CallerID

	updated, err := s.store.UpdateStatus(ctx, braceletID, result.Bracelet.Status, change)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			if s.metrics != nil {
				s.metrics.IncrementClaimConflict()
			}
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "bracelet already claimed")
		}
		return nil, s.translateStoreErr(err, "bracelet claim failed")
	}

	if err := s.directory.Bind(ctx, cmd.ProfileID, braceletID); err != nil {
		s.revertClaim(ctx, braceletID)
		if errors.Is(err, sentinel.ErrConflict) || dErrors.HasCode(err, dErrors.CodeConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "profile already wears a bracelet")
		}
		return nil, s.translateStoreErr(err, "profile bind failed")
	}

	if s.metrics != nil {
		s.metrics.IncrementClaim()
		s.metrics.IncrementTransition(string(updated.Status))
	}
	s.logAudit(ctx, "bracelet_claimed",
		slog.String("bracelet_id", braceletID.String()),
		slog.String("profile_id", cmd.ProfileID.String()),
	)
	return updated, nil
}

// revertClaim undoes the bracelet half of a claim whose profile bind failed.
// Best effort: if the revert itself fails the record is left ACTIVE with a
// dangling link, which the audit log surfaces for repair.
func (s *Service) revertClaim(ctx context.Context, braceletID id.BraceletID) {
	_, err := s.store.UpdateStatus(ctx, braceletID, models.StatusActive, models.StatusChange{
		To:         models.StatusInactive,
		ClearLinks: true,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "claim revert failed",
			slog.String("bracelet_id", braceletID.String()),
			slog.String("error", err.Error()),
		)
	}
}

// ReportLost flips an ACTIVE bracelet to LOST. Only the linked owner may
// report; the profile link survives so the bracelet can be reactivated.
func (s *Service) ReportLost(ctx context.Context, braceletID id.BraceletID, callerID id.UserID) (*models.Bracelet, error) {
	return s.ownerTransition(ctx, braceletID, callerID, lifecycle.ActionReportLost, "bracelet_reported_lost")
}

// Reactivate returns a LOST bracelet to ACTIVE once it is found.
func (s *Service) Reactivate(ctx context.Context, braceletID id.BraceletID, callerID id.UserID) (*models.Bracelet, error) {
	return s.ownerTransition(ctx, braceletID, callerID, lifecycle.ActionReactivate, "bracelet_reactivated")
}

// MarkStolen flags a bracelet as STOLEN and severs its profile link. The
// profile is freed to claim a replacement; the stolen tag itself only ever
// reaches DEACTIVATED after that, through an admin override.
func (s *Service) MarkStolen(ctx context.Context, braceletID id.BraceletID, callerID id.UserID) (*models.Bracelet, error) {
	return s.ownerTransition(ctx, braceletID, callerID, lifecycle.ActionMarkStolen, "bracelet_marked_stolen")
}

// ownerTransition runs the shared owner-driven flow: load, check the caller
// is the linked owner, decide, conditionally write, unbind if links cleared.
func (s *Service) ownerTransition(ctx context.Context, braceletID id.BraceletID, callerID id.UserID, action lifecycle.Action, event string) (*models.Bracelet, error) {
	if callerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthenticated, "caller identity required")
	}

	b, err := s.findForCaller(ctx, braceletID)
	if err != nil {
		return nil, err
	}
	if b.LinkedUserID == nil || *b.LinkedUserID != callerID {
		// Mismatched owner reads the same as a missing bracelet.
		return nil, dErrors.New(dErrors.CodeUnauthorized, "bracelet not found for this account")
	}

	outcome, err := lifecycle.Decide(b.Status, true, action)
	if err != nil {
		return nil, err
	}
	return s.applyTransition(ctx, b, *outcome.Transition, event)
}

// Deactivate permanently retires a bracelet. Admin only; a STOLEN bracelet
// additionally requires the explicit override flag, and DEACTIVATED is
// terminal for everyone.
func (s *Service) Deactivate(ctx context.Context, braceletID id.BraceletID, adminOverride bool) (*models.Bracelet, error) {
	b, err := s.findForCaller(ctx, braceletID)
	if err != nil {
		return nil, err
	}
	if b.Status == models.StatusStolen && !adminOverride {
		return nil, dErrors.New(dErrors.CodeInvalidStatus, "stolen bracelets require an explicit override to deactivate")
	}
	outcome, err := lifecycle.Decide(b.Status, true, lifecycle.ActionDeactivate)
	if err != nil {
		return nil, err
	}
	return s.applyTransition(ctx, b, *outcome.Transition, "bracelet_deactivated")
}

// Unlock releases a FACTORY_LOCKED bracelet into distribution. Admin only.
func (s *Service) Unlock(ctx context.Context, braceletID id.BraceletID) (*models.Bracelet, error) {
	b, err := s.findForCaller(ctx, braceletID)
	if err != nil {
		return nil, err
	}
	outcome, err := lifecycle.Decide(b.Status, true, lifecycle.ActionUnlock)
	if err != nil {
		return nil, err
	}
	return s.applyTransition(ctx, b, *outcome.Transition, "bracelet_unlocked")
}

func (s *Service) applyTransition(ctx context.Context, b *models.Bracelet, change models.StatusChange, event string) (*models.Bracelet, error) {
	updated, err := s.store.UpdateStatus(ctx, b.ID, b.Status, change)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "bracelet changed concurrently")
		}
		return nil, s.translateStoreErr(err, "bracelet update failed")
	}

	if (change.ClearLinks || change.ClearProfileLink) && b.LinkedProfileID != nil {
		if err := s.directory.Unbind(ctx, *b.LinkedProfileID, b.ID); err != nil {
			// The bracelet side already cleared; a stale profile pointer is
			// harmless for access decisions but worth surfacing.
			s.logger.WarnContext(ctx, "profile unbind failed",
				slog.String("bracelet_id", b.ID.String()),
				slog.String("profile_id", b.LinkedProfileID.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.metrics != nil {
		s.metrics.IncrementTransition(string(updated.Status))
	}
	s.logAudit(ctx, event,
		slog.String("bracelet_id", b.ID.String()),
		slog.String("from", string(b.Status)),
		slog.String("to", string(updated.Status)),
	)
	return updated, nil
}

func (s *Service) findForCaller(ctx context.Context, braceletID id.BraceletID) (*models.Bracelet, error) {
	b, err := s.store.FindByID(ctx, braceletID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "bracelet not found")
		}
		return nil, s.translateStoreErr(err, "bracelet lookup failed")
	}
	return b, nil
}

func (s *Service) translateStoreErr(err error, msg string) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
}
