// Package service manages the scan inbox: recording routed scans and stolen
// alerts, and letting owners read and acknowledge them.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mssola/useragent"

	"guardtag/internal/scan/models"
	"guardtag/internal/sentinel"
	id "guardtag/pkg/domain"
	dErrors "guardtag/pkg/domain-errors"
)

// Store is the scan persistence the service depends on.
type Store interface {
	Insert(ctx context.Context, e *models.ScanEvent) error
	ListByOwner(ctx context.Context, ownerID id.UserID, limit int) ([]*models.ScanEvent, error)
	MarkRead(ctx context.Context, scanID id.ScanID, ownerID id.UserID) error
	CountUnread(ctx context.Context, ownerID id.UserID) (int, error)
}

const defaultListLimit = 50

// Service implements the scan inbox.
type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a scan inbox service.
func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordCommand is one event to append to an owner's inbox.
type RecordCommand struct {
	Kind       models.Kind
	BraceletID id.BraceletID
	ProfileID  id.ProfileID
	OwnerID    id.UserID
	Lat        *float64
	Lon        *float64
	UserAgent  string
	OccurredAt time.Time
}

// Record appends an event to the owner's inbox.
func (s *Service) Record(ctx context.Context, cmd RecordCommand) (*models.ScanEvent, error) {
	occurred := cmd.OccurredAt
	if occurred.IsZero() {
		occurred = s.now().UTC()
	}
	e := &models.ScanEvent{
		ID:         id.ScanID(uuid.New()),
		Kind:       cmd.Kind,
		BraceletID: cmd.BraceletID,
		ProfileID:  cmd.ProfileID,
		OwnerID:    cmd.OwnerID,
		Lat:        cmd.Lat,
		Lon:        cmd.Lon,
		Device:     parseDevice(cmd.UserAgent),
		OccurredAt: occurred,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.store.Insert(ctx, e); err != nil {
		if dErrors.HasCode(err, dErrors.CodeValidation) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "scan event insert failed")
	}
	return e, nil
}

// List returns the caller's inbox, newest first.
func (s *Service) List(ctx context.Context, callerID id.UserID, limit int) ([]*models.ScanEvent, error) {
	if callerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthenticated, "caller identity required")
	}
	if limit <= 0 || limit > 200 {
		limit = defaultListLimit
	}
	events, err := s.store.ListByOwner(ctx, callerID, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "scan event list failed")
	}
	return events, nil
}

// MarkRead acknowledges one inbox entry. An entry belonging to another
// account reads the same as a missing one.
func (s *Service) MarkRead(ctx context.Context, scanID id.ScanID, callerID id.UserID) error {
	if callerID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthenticated, "caller identity required")
	}
	if err := s.store.MarkRead(ctx, scanID, callerID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeNotFound, "scan event not found")
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "scan event update failed")
	}
	return nil
}

// UnreadCount returns how many inbox entries the caller has not acknowledged.
func (s *Service) UnreadCount(ctx context.Context, callerID id.UserID) (int, error) {
	if callerID.IsNil() {
		return 0, dErrors.New(dErrors.CodeUnauthenticated, "caller identity required")
	}
	count, err := s.store.CountUnread(ctx, callerID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeUnavailable, "scan event count failed")
	}
	return count, nil
}

func parseDevice(userAgentString string) models.Device {
	if userAgentString == "" {
		return models.Device{}
	}
	ua := useragent.New(userAgentString)
	browser, _ := ua.Browser()
	return models.Device{
		Browser: browser,
		OS:      ua.OS(),
		Mobile:  ua.Mobile(),
	}
}
