// Package service orchestrates bracelet operations: scan routing, the claim
// race, owner-driven status transitions, and the admin lifecycle actions.
// All status writes go through the lifecycle decision table and a conditional
// store update keyed on the expected prior status.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"guardtag/internal/bracelet/lifecycle"
	"guardtag/internal/bracelet/metrics"
	"guardtag/internal/bracelet/models"
	"guardtag/internal/bracelet/token"
	"guardtag/internal/bracelet/tracer"
	"guardtag/internal/sentinel"
	id "guardtag/pkg/domain"
	dErrors "guardtag/pkg/domain-errors"
	"guardtag/pkg/platform/middleware/request"
	"guardtag/pkg/secrets"
)

// Store is the bracelet persistence the service depends on.
type Store interface {
	Create(ctx context.Context, b *models.Bracelet) error
	FindByID(ctx context.Context, braceletID id.BraceletID) (*models.Bracelet, error)
	UpdateStatus(ctx context.Context, braceletID id.BraceletID, expected models.Status, change models.StatusChange) (*models.Bracelet, error)
}

// Validator is the token verdict port.
type Validator interface {
	Validate(ctx context.Context, braceletID id.BraceletID, presented string) (token.Result, error)
}

// Directory is the profile side of bracelet operations: ownership checks,
// the bidirectional link, and the data behind the scan views.
type Directory interface {
	VerifyOwnership(ctx context.Context, profileID id.ProfileID, callerID id.UserID) error
	Bind(ctx context.Context, profileID id.ProfileID, braceletID id.BraceletID) error
	Unbind(ctx context.Context, profileID id.ProfileID, braceletID id.BraceletID) error
	EmergencySnapshot(ctx context.Context, profileID id.ProfileID) (*models.EmergencySnapshot, error)
	RestitutionContact(ctx context.Context, profileID id.ProfileID) (*models.RestitutionContact, error)
}

// ScanSink receives scan events off the request path. Implementations must
// tolerate being called from a detached goroutine.
type ScanSink interface {
	RecordScan(ctx context.Context, cmd ScanRecordCommand) error
}

// ScanRecordCommand is one event handed to the sink. Kind is "scan" for a
// routed emergency view and "stolen_alert" when a flagged bracelet surfaces.
type ScanRecordCommand struct {
	Kind       string
	BraceletID id.BraceletID
	ProfileID  id.ProfileID
	OwnerID    id.UserID
	Lat        *float64
	Lon        *float64
	UserAgent  string
	OccurredAt time.Time
}

// Service implements bracelet operations over the injected ports.
type Service struct {
	store     Store
	validator Validator
	directory Directory
	sink      ScanSink
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    tracer.Tracer
	now       func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

func WithScanSink(sink ScanSink) Option {
	return func(s *Service) { s.sink = sink }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a bracelet service. The scan sink is optional; without one,
// scans still route but leave no inbox trace.
func New(store Store, validator Validator, directory Directory, opts ...Option) *Service {
	s := &Service{
		store:     store,
		validator: validator,
		directory: directory,
		logger:    slog.Default(),
		tracer:    tracer.NewNoop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScanCommand is one physical scan as presented by an anonymous device.
type ScanCommand struct {
	BraceletID string
	Token      string
	Lat        *float64
	Lon        *float64
	UserAgent  string
}

// Route decides what the scanner sees. The token verdict runs first; only a
// valid token reaches the status table. Unknown bracelets, wrong tokens, and
// malformed IDs all collapse into the same counterfeit rejection, so scan
// probing cannot reveal which IDs exist.
func (s *Service) Route(ctx context.Context, cmd ScanCommand) (*models.ViewDecision, error) {
	ctx, span := s.tracer.Start(ctx, "bracelet.route",
		tracer.String("bracelet.id", cmd.BraceletID))
	var spanErr error
	defer func() { span.End(spanErr) }()

	start := s.now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveRoute(start)
		}
	}()

	braceletID, err := id.ParseBraceletID(cmd.BraceletID)
	if err != nil {
		return s.rejection(ctx, lifecycle.RejectionCounterfeit), nil
	}

	result, err := s.validator.Validate(ctx, braceletID, cmd.Token)
	if err != nil {
		spanErr = err
		return nil, err
	}

	outcome, err := lifecycle.Decide(statusOf(result), result.TokenValid, lifecycle.ActionScan)
	if err != nil {
		spanErr = err
		return nil, err
	}
	span.SetAttributes(
		tracer.String("scan.view", string(outcome.View)),
		tracer.Bool("scan.record", outcome.RecordScan),
	)

	decision, err := s.assembleView(ctx, result.Bracelet, outcome)
	if err != nil {
		spanErr = err
		return nil, err
	}

	s.emitSideEffects(ctx, result.Bracelet, outcome, cmd)

	if s.metrics != nil {
		s.metrics.IncrementScanRouted(decision.View)
	}
	s.logAudit(ctx, "bracelet_scanned",
		slog.String("bracelet_id", cmd.BraceletID),
		slog.String("view", decision.View),
	)
	return decision, nil
}

func (s *Service) assembleView(ctx context.Context, b *models.Bracelet, outcome lifecycle.Outcome) (*models.ViewDecision, error) {
	decision := &models.ViewDecision{
		View:      string(outcome.View),
		Rejection: string(outcome.Rejection),
	}

	switch outcome.View {
	case lifecycle.ViewActivation:
		decision.BraceletID = b.ID
	case lifecycle.ViewEmergency:
		snap, err := s.directory.EmergencySnapshot(ctx, *b.LinkedProfileID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "emergency snapshot unavailable")
		}
		decision.Emergency = snap
	case lifecycle.ViewLost:
		contact, err := s.directory.RestitutionContact(ctx, *b.LinkedProfileID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "restitution contact unavailable")
		}
		decision.Lost = contact
	}
	return decision, nil
}

// emitSideEffects records the scan and the stolen alert off the request path.
// Failures are logged, never surfaced: the scanner's view does not depend on
// the inbox being reachable.
func (s *Service) emitSideEffects(ctx context.Context, b *models.Bracelet, outcome lifecycle.Outcome, cmd ScanCommand) {
	if s.sink == nil || !outcome.RecordScan || b == nil {
		return
	}
	// A stolen bracelet has no profile link anymore; the retained owner link
	// is the alert recipient. With neither link there is nobody to tell.
	if b.LinkedProfileID == nil && b.LinkedUserID == nil {
		return
	}

	kind := "scan"
	if outcome.NotifyOwner {
		kind = "stolen_alert"
	}
	rec := ScanRecordCommand{
		Kind:       kind,
		BraceletID: b.ID,
		Lat:        cmd.Lat,
		Lon:        cmd.Lon,
		UserAgent:  cmd.UserAgent,
		OccurredAt: s.now().UTC(),
	}
	if b.LinkedProfileID != nil {
		rec.ProfileID = *b.LinkedProfileID
	}
	if b.LinkedUserID != nil {
		rec.OwnerID = *b.LinkedUserID
	}

	detached := context.WithoutCancel(ctx)
	go func() {
		if err := s.sink.RecordScan(detached, rec); err != nil {
			s.logger.ErrorContext(detached, "scan record failed",
				slog.String("bracelet_id", b.ID.String()),
				slog.String("kind", kind),
				slog.String("error", err.Error()),
			)
		}
	}()
}

func (s *Service) rejection(_ context.Context, kind lifecycle.RejectionKind) *models.ViewDecision {
	if s.metrics != nil {
		s.metrics.IncrementScanRouted(string(lifecycle.ViewRejection))
	}
	return &models.ViewDecision{
		View:      string(lifecycle.ViewRejection),
		Rejection: string(kind),
	}
}

func statusOf(result token.Result) models.Status {
	if result.Bracelet != nil {
		return result.Bracelet.Status
	}
	return ""
}

func (s *Service) logAudit(ctx context.Context, event string, attrs ...any) {
	args := append([]any{
		slog.String("log_type", "audit"),
		slog.String("event", event),
		slog.String("request_id", request.GetRequestID(ctx)),
	}, attrs...)
	s.logger.InfoContext(ctx, event, args...)
}

// ProvisionCommand describes one bracelet to mint.
type ProvisionCommand struct {
	BraceletID string
	Initial    models.Status
	BatchID    id.BatchID
}

// Provisioned is the result of minting: the secret token is returned exactly
// once, for engraving into the tag, and is never readable again.
type Provisioned struct {
	Bracelet *models.Bracelet
	Token    string
}

// Provision mints a bracelet with a fresh secret token.
func (s *Service) Provision(ctx context.Context, cmd ProvisionCommand) (*Provisioned, error) {
	braceletID, err := id.ParseBraceletID(cmd.BraceletID)
	if err != nil {
		return nil, err
	}
	secret, err := secrets.Generate()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "token generation failed")
	}
	b, err := models.New(braceletID, secret, cmd.Initial, cmd.BatchID, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, b); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "bracelet ID already provisioned")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "bracelet create failed")
	}
	s.logAudit(ctx, "bracelet_provisioned",
		slog.String("bracelet_id", b.ID.String()),
		slog.String("status", string(b.Status)),
	)
	return &Provisioned{Bracelet: b, Token: secret}, nil
}
