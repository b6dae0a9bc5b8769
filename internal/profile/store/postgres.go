package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"guardtag/internal/profile/models"
	id "guardtag/pkg/domain"
	"guardtag/pkg/platform/middleware/requesttime"
)

// Postgres persists profiles in PostgreSQL. Contact lists, safe zones, and
// pickup rosters live in jsonb columns; they are only ever read and written
// whole, under the owning account's guard.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed profile store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Create inserts a new profile.
func (s *Postgres) Create(ctx context.Context, p *models.Profile) error {
	if p == nil {
		return fmt.Errorf("profile is required")
	}
	if err := p.Validate(); err != nil {
		return err
	}
	medical, contacts, zones, pickups, err := encodeJSON(p)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO profiles (id, parent_id, full_name, birth_date, photo_url, medical, doctor_pin_hash,
			school_pin_hash, emergency_contacts, safe_zones, pickup_persons, current_bracelet_id,
			status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err = s.db.ExecContext(ctx, query,
		uuid.UUID(p.ID), uuid.UUID(p.ParentID), p.FullName, p.BirthDate, p.PhotoURL,
		medical, p.DoctorPINHash, p.SchoolPINHash, contacts, zones, pickups,
		braceletIDOrNil(p.CurrentBraceletID), string(p.Status), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("profile %s: %w", p.ID, ErrExists)
		}
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

// FindByID retrieves a profile by ID.
func (s *Postgres) FindByID(ctx context.Context, profileID id.ProfileID) (*models.Profile, error) {
	query := `
		SELECT id, parent_id, full_name, birth_date, photo_url, medical, doctor_pin_hash,
			school_pin_hash, emergency_contacts, safe_zones, pickup_persons, current_bracelet_id,
			status, created_at, updated_at
		FROM profiles
		WHERE id = $1
	`
	p, err := scanProfile(s.db.QueryRowContext(ctx, query, uuid.UUID(profileID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find profile by id: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Update replaces the mutable profile fields.
func (s *Postgres) Update(ctx context.Context, p *models.Profile) error {
	if p == nil {
		return fmt.Errorf("profile is required")
	}
	if err := p.Validate(); err != nil {
		return err
	}
	medical, contacts, zones, pickups, err := encodeJSON(p)
	if err != nil {
		return err
	}
	query := `
		UPDATE profiles
		SET full_name = $1, birth_date = $2, photo_url = $3, medical = $4, doctor_pin_hash = $5,
			school_pin_hash = $6, emergency_contacts = $7, safe_zones = $8, pickup_persons = $9,
			status = $10, updated_at = $11
		WHERE id = $12
	`
	res, err := s.db.ExecContext(ctx, query,
		p.FullName, p.BirthDate, p.PhotoURL, medical, p.DoctorPINHash, p.SchoolPINHash,
		contacts, zones, pickups, string(p.Status), requesttime.Now(ctx), uuid.UUID(p.ID),
	)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Bind sets the bracelet link only if no bracelet is currently bound and the
// profile is active. RowsAffected discriminates the conflict.
func (s *Postgres) Bind(ctx context.Context, profileID id.ProfileID, braceletID id.BraceletID) error {
	query := `
		UPDATE profiles
		SET current_bracelet_id = $1, updated_at = $2
		WHERE id = $3 AND (current_bracelet_id IS NULL OR current_bracelet_id = $1) AND status = $4
	`
	res, err := s.db.ExecContext(ctx, query, string(braceletID), requesttime.Now(ctx), uuid.UUID(profileID), string(models.ProfileActive))
	if err != nil {
		return fmt.Errorf("bind bracelet: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("bind bracelet: %w", err)
	}
	if affected == 0 {
		if _, findErr := s.FindByID(ctx, profileID); findErr != nil {
			return findErr
		}
		return fmt.Errorf("profile %s already linked or archived: %w", profileID, ErrConflict)
	}
	return nil
}

// Unbind clears the link only if the profile currently points at the given bracelet.
func (s *Postgres) Unbind(ctx context.Context, profileID id.ProfileID, braceletID id.BraceletID) error {
	query := `
		UPDATE profiles
		SET current_bracelet_id = NULL, updated_at = $1
		WHERE id = $2 AND (current_bracelet_id = $3 OR current_bracelet_id IS NULL)
	`
	res, err := s.db.ExecContext(ctx, query, requesttime.Now(ctx), uuid.UUID(profileID), string(braceletID))
	if err != nil {
		return fmt.Errorf("unbind bracelet: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("unbind bracelet: %w", err)
	}
	if affected == 0 {
		if _, findErr := s.FindByID(ctx, profileID); findErr != nil {
			return findErr
		}
		return fmt.Errorf("profile %s linked to a different bracelet: %w", profileID, ErrConflict)
	}
	return nil
}

// CountByParent returns the number of profiles owned by an account.
func (s *Postgres) CountByParent(ctx context.Context, parentID id.UserID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles WHERE parent_id = $1`, uuid.UUID(parentID)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count profiles: %w", err)
	}
	return count, nil
}

func encodeJSON(p *models.Profile) (medical, contacts, zones, pickups []byte, err error) {
	if medical, err = json.Marshal(p.Medical); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode medical: %w", err)
	}
	if contacts, err = json.Marshal(p.EmergencyContacts); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode contacts: %w", err)
	}
	if zones, err = json.Marshal(p.SafeZones); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode safe zones: %w", err)
	}
	if pickups, err = json.Marshal(p.PickupPersons); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode pickups: %w", err)
	}
	return medical, contacts, zones, pickups, nil
}

func scanProfile(row *sql.Row) (*models.Profile, error) {
	var p models.Profile
	var profileID, parentID uuid.UUID
	var medical, contacts, zones, pickups []byte
	var braceletID sql.NullString
	var status string
	if err := row.Scan(&profileID, &parentID, &p.FullName, &p.BirthDate, &p.PhotoURL, &medical,
		&p.DoctorPINHash, &p.SchoolPINHash, &contacts, &zones, &pickups, &braceletID,
		&status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.ID = id.ProfileID(profileID)
	p.ParentID = id.UserID(parentID)
	p.Status = models.ProfileStatus(status)
	if braceletID.Valid {
		b := id.BraceletID(braceletID.String)
		p.CurrentBraceletID = &b
	}
	if err := json.Unmarshal(medical, &p.Medical); err != nil {
		return nil, fmt.Errorf("decode medical: %w", err)
	}
	if err := json.Unmarshal(contacts, &p.EmergencyContacts); err != nil {
		return nil, fmt.Errorf("decode contacts: %w", err)
	}
	if err := json.Unmarshal(zones, &p.SafeZones); err != nil {
		return nil, fmt.Errorf("decode safe zones: %w", err)
	}
	if err := json.Unmarshal(pickups, &p.PickupPersons); err != nil {
		return nil, fmt.Errorf("decode pickups: %w", err)
	}
	return &p, nil
}

func braceletIDOrNil(b *id.BraceletID) any {
	if b == nil {
		return nil
	}
	return string(*b)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
