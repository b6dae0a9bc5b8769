// Package gate runs the PIN ceremony for the confidential resources behind an
// emergency view: medical documents (doctor PIN) and the pickup roster
// (school PIN). The order of checks is fixed: format, limiter, then hash.
// A blocked caller never reaches the bcrypt comparison.
package gate

import (
	"context"
	"errors"
	"log/slog"

	"guardtag/internal/pinaccess/grant"
	"guardtag/internal/pinaccess/metrics"
	"guardtag/internal/pinaccess/pin"
	profilemodels "guardtag/internal/profile/models"
	"guardtag/internal/sentinel"
	id "guardtag/pkg/domain"
	dErrors "guardtag/pkg/domain-errors"
	"guardtag/pkg/platform/middleware/request"
	"guardtag/pkg/secrets"
)

// ProfileStore is the profile lookup the gate depends on.
type ProfileStore interface {
	FindByID(ctx context.Context, profileID id.ProfileID) (*profilemodels.Profile, error)
}

// Limiter is the attempt budget port.
type Limiter interface {
	Check(ctx context.Context, key string) error
	RecordFailure(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

// GrantIssuer mints the access token handed out on a correct PIN.
type GrantIssuer interface {
	Issue(ctx context.Context, profileID id.ProfileID, scope pin.Scope) (*grant.Grant, error)
}

// Verifier compares a plaintext PIN to a stored hash.
type Verifier interface {
	Verify(plaintext, hash string) error
}

type bcryptVerifier struct{}

func (bcryptVerifier) Verify(plaintext, hash string) error { return secrets.Verify(plaintext, hash) }

// Service is the PIN gate.
type Service struct {
	profiles ProfileStore
	limiter  Limiter
	grants   GrantIssuer
	verifier Verifier
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithVerifier(v Verifier) Option {
	return func(s *Service) { s.verifier = v }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New creates a PIN gate.
func New(profiles ProfileStore, limiter Limiter, grants GrantIssuer, opts ...Option) *Service {
	s := &Service{
		profiles: profiles,
		limiter:  limiter,
		grants:   grants,
		verifier: bcryptVerifier{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// VerifyPIN runs the ceremony for one profile and scope. On success the
// limiter is reset and a scoped grant is returned. Wrong guesses count
// against the budget; a profile with no PIN configured for the scope answers
// exactly like a wrong guess, so callers cannot probe which PINs exist.
func (s *Service) VerifyPIN(ctx context.Context, profileID id.ProfileID, scope pin.Scope, presented string) (*grant.Grant, error) {
	if err := pin.Validate(scope, presented); err != nil {
		// Malformed input is rejected outright and does not spend an attempt.
		return nil, err
	}

	key := attemptKey(profileID, scope)
	if err := s.limiter.Check(ctx, key); err != nil {
		s.countCheck(scope, "blocked")
		return nil, err
	}

	p, err := s.profiles.FindByID(ctx, profileID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || dErrors.HasCode(err, dErrors.CodeNotFound) {
			return s.fail(ctx, key, scope, profileID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "profile lookup failed")
	}

	hash := pinHash(p, scope)
	if hash == "" {
		return s.fail(ctx, key, scope, profileID)
	}

	if err := s.verifier.Verify(presented, hash); err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			return s.fail(ctx, key, scope, profileID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "PIN verification failed")
	}

	if err := s.limiter.Reset(ctx, key); err != nil {
		// Losing the reset only costs the caller budget headroom; the grant
		// is still issued.
		s.logger.WarnContext(ctx, "attempt limiter reset failed",
			slog.String("profile_id", profileID.String()),
			slog.String("error", err.Error()),
		)
	}

	g, err := s.grants.Issue(ctx, profileID, scope)
	if err != nil {
		return nil, err
	}

	s.countCheck(scope, "success")
	s.logAudit(ctx, "pin_gate_opened",
		slog.String("profile_id", profileID.String()),
		slog.String("scope", string(scope)),
	)
	return g, nil
}

// fail records a wrong guess. The limiter decides whether this guess engaged
// the block; either way, nothing in the answer reveals whether the profile or
// its PIN exist.
func (s *Service) fail(ctx context.Context, key string, scope pin.Scope, profileID id.ProfileID) (*grant.Grant, error) {
	s.logAudit(ctx, "pin_gate_refused",
		slog.String("profile_id", profileID.String()),
		slog.String("scope", string(scope)),
	)
	if err := s.limiter.RecordFailure(ctx, key); err != nil {
		if dErrors.HasCode(err, dErrors.CodeRateLimited) {
			s.countCheck(scope, "locked_out")
			if s.metrics != nil {
				s.metrics.IncrementLockout()
			}
			return nil, err
		}
		return nil, err
	}
	s.countCheck(scope, "failure")
	return nil, dErrors.New(dErrors.CodeInvalidPin, "PIN rejected")
}

func attemptKey(profileID id.ProfileID, scope pin.Scope) string {
	return profileID.String() + "|" + string(scope)
}

func pinHash(p *profilemodels.Profile, scope pin.Scope) string {
	if scope == pin.ScopeSchool {
		return p.SchoolPINHash
	}
	return p.DoctorPINHash
}

func (s *Service) countCheck(scope pin.Scope, outcome string) {
	if s.metrics != nil {
		s.metrics.IncrementPinCheck(string(scope), outcome)
	}
}

func (s *Service) logAudit(ctx context.Context, event string, attrs ...any) {
	args := append([]any{
		slog.String("log_type", "audit"),
		slog.String("event", event),
		slog.String("request_id", request.GetRequestID(ctx)),
	}, attrs...)
	s.logger.InfoContext(ctx, event, args...)
}
