package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"guardtag/internal/pinaccess/pin"
	"guardtag/internal/profile/models"
	id "guardtag/pkg/domain"
	dErrors "guardtag/pkg/domain-errors"
	request "guardtag/pkg/platform/middleware/request"
	"guardtag/pkg/platform/middleware/requesttime"
	"guardtag/pkg/secrets"
)

// Store is the profile persistence the service depends on.
type Store interface {
	Create(ctx context.Context, p *models.Profile) error
	FindByID(ctx context.Context, profileID id.ProfileID) (*models.Profile, error)
	Update(ctx context.Context, p *models.Profile) error
}

// Guard verifies that a caller owns a profile before mutation.
type Guard interface {
	VerifyOwnership(ctx context.Context, profileID id.ProfileID, callerID id.UserID) (*models.Profile, error)
}

// Hasher turns plaintext PINs into storable hashes. Defaults to bcrypt.
type Hasher interface {
	Hash(plaintext string) (string, error)
}

type bcryptHasher struct{}

func (bcryptHasher) Hash(plaintext string) (string, error) { return secrets.Hash(plaintext) }

// Service owns profile CRUD and the guarded sub-resource mutations.
// Every mutating path calls the ownership guard first; the payload never
// carries an ownership claim the service would trust.
type Service struct {
	store  Store
	guard  Guard
	hasher Hasher
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithHasher(h Hasher) Option {
	return func(s *Service) {
		s.hasher = h
	}
}

func New(store Store, guard Guard, opts ...Option) *Service {
	s := &Service{store: store, guard: guard, hasher: bcryptHasher{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateProfile creates a profile owned by the calling account.
func (s *Service) CreateProfile(ctx context.Context, callerID id.UserID, fullName string) (*models.Profile, error) {
	if callerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthenticated, "caller identity required")
	}
	p, err := models.New(id.ProfileID(uuid.New()), callerID, strings.TrimSpace(fullName), requesttime.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create profile")
	}
	s.logAudit(ctx, "profile_created", "profile_id", p.ID)
	return p, nil
}

// UpdateDetailsCommand carries the optional top-level profile fields.
type UpdateDetailsCommand struct {
	FullName  *string
	BirthDate *time.Time
	PhotoURL  *string
}

// UpdateDetails updates the profile's descriptive fields.
func (s *Service) UpdateDetails(ctx context.Context, profileID id.ProfileID, callerID id.UserID, cmd *UpdateDetailsCommand) (*models.Profile, error) {
	return s.mutate(ctx, profileID, callerID, "profile_updated", func(p *models.Profile) error {
		if cmd.FullName != nil {
			name := strings.TrimSpace(*cmd.FullName)
			if name == "" || len(name) > 128 {
				return dErrors.New(dErrors.CodeValidation, "full name must be 1-128 characters")
			}
			p.FullName = name
		}
		if cmd.BirthDate != nil {
			p.BirthDate = cmd.BirthDate
		}
		if cmd.PhotoURL != nil {
			p.PhotoURL = *cmd.PhotoURL
		}
		return nil
	})
}

// UpdateMedical replaces the profile's medical information.
func (s *Service) UpdateMedical(ctx context.Context, profileID id.ProfileID, callerID id.UserID, medical models.MedicalInfo) (*models.Profile, error) {
	return s.mutate(ctx, profileID, callerID, "medical_updated", func(p *models.Profile) error {
		p.Medical = medical
		return nil
	})
}

// ReplaceContacts replaces the emergency contact list. Priorities must be unique.
func (s *Service) ReplaceContacts(ctx context.Context, profileID id.ProfileID, callerID id.UserID, contacts []models.EmergencyContact) (*models.Profile, error) {
	if err := models.ValidateContacts(contacts); err != nil {
		return nil, err
	}
	return s.mutate(ctx, profileID, callerID, "contacts_replaced", func(p *models.Profile) error {
		p.EmergencyContacts = contacts
		return nil
	})
}

// UpdatePIN re-hashes and stores a new PIN for the given scope.
func (s *Service) UpdatePIN(ctx context.Context, profileID id.ProfileID, callerID id.UserID, scope pin.Scope, plaintext string) error {
	if err := pin.Validate(scope, plaintext); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(plaintext)
	if err != nil {
		return err
	}
	_, err = s.mutate(ctx, profileID, callerID, "pin_updated", func(p *models.Profile) error {
		if scope == pin.ScopeSchool {
			p.SchoolPINHash = hash
		} else {
			p.DoctorPINHash = hash
		}
		return nil
	})
	return err
}

// Archive marks the profile archived. Profiles are never hard-deleted.
func (s *Service) Archive(ctx context.Context, profileID id.ProfileID, callerID id.UserID) error {
	_, err := s.mutate(ctx, profileID, callerID, "profile_archived", func(p *models.Profile) error {
		return p.Archive(requesttime.Now(ctx))
	})
	return err
}

// GetOwned returns the profile if the caller owns it.
func (s *Service) GetOwned(ctx context.Context, profileID id.ProfileID, callerID id.UserID) (*models.Profile, error) {
	return s.guard.VerifyOwnership(ctx, profileID, callerID)
}

// mutate is the shared guard-then-write path for every profile mutation.
func (s *Service) mutate(ctx context.Context, profileID id.ProfileID, callerID id.UserID, event string, apply func(*models.Profile) error) (*models.Profile, error) {
	p, err := s.guard.VerifyOwnership(ctx, profileID, callerID)
	if err != nil {
		return nil, err
	}
	if p.IsArchived() && event != "profile_archived" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "profile is archived")
	}
	if err := apply(p); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, p); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update profile")
	}
	s.logAudit(ctx, event, "profile_id", profileID)
	return p, nil
}

func (s *Service) logAudit(ctx context.Context, event string, attrs ...any) {
	if s.logger == nil {
		return
	}
	if requestID := request.GetRequestID(ctx); requestID != "" {
		attrs = append(attrs, "request_id", requestID)
	}
	args := append(attrs, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}
