package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"guardtag/internal/bracelet/models"
	id "guardtag/pkg/domain"
	"guardtag/pkg/platform/middleware/requesttime"
)

// Postgres persists bracelets in PostgreSQL. Conditional updates rely on a
// single UPDATE ... WHERE status = $expected, so atomicity comes from the
// database's row-level locking rather than any in-process coordination.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed bracelet store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Create inserts a provisioned bracelet.
func (s *Postgres) Create(ctx context.Context, b *models.Bracelet) error {
	if b == nil {
		return fmt.Errorf("bracelet is required")
	}
	if err := b.Validate(); err != nil {
		return err
	}
	query := `
		INSERT INTO bracelets (id, secret_token, status, batch_id, linked_profile_id, linked_user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		string(b.ID),
		b.SecretToken,
		string(b.Status),
		string(b.BatchID),
		profileIDOrNil(b.LinkedProfileID),
		userIDOrNil(b.LinkedUserID),
		b.CreatedAt,
		b.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("bracelet %s: %w", b.ID, ErrExists)
		}
		return fmt.Errorf("create bracelet: %w", err)
	}
	return nil
}

// FindByID retrieves a bracelet by ID.
func (s *Postgres) FindByID(ctx context.Context, braceletID id.BraceletID) (*models.Bracelet, error) {
	query := `
		SELECT id, secret_token, status, batch_id, linked_profile_id, linked_user_id, created_at, updated_at
		FROM bracelets
		WHERE id = $1
	`
	b, err := scanBracelet(s.db.QueryRowContext(ctx, query, string(braceletID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find bracelet by id: %w", err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// UpdateStatus applies the status change only if the row currently holds the
// expected status. RowsAffected discriminates a lost race from a missing row.
func (s *Postgres) UpdateStatus(ctx context.Context, braceletID id.BraceletID, expected models.Status, change models.StatusChange) (*models.Bracelet, error) {
	now := requesttime.Now(ctx)

	var query string
	var args []any
	switch {
	case change.ClearLinks:
		query = `
			UPDATE bracelets
			SET status = $1, linked_profile_id = NULL, linked_user_id = NULL, updated_at = $2
			WHERE id = $3 AND status = $4
		`
		args = []any{string(change.To), now, string(braceletID), string(expected)}
	case change.ClearProfileLink:
		query = `
			UPDATE bracelets
			SET status = $1, linked_profile_id = NULL, updated_at = $2
			WHERE id = $3 AND status = $4
		`
		args = []any{string(change.To), now, string(braceletID), string(expected)}
	case change.LinkProfileID != nil:
		query = `
			UPDATE bracelets
			SET status = $1, linked_profile_id = $2, linked_user_id = $3, updated_at = $4
			WHERE id = $5 AND status = $6
		`
		args = []any{string(change.To), uuid.UUID(*change.LinkProfileID), userIDOrNil(change.LinkUserID), now, string(braceletID), string(expected)}
	default:
		query = `
			UPDATE bracelets
			SET status = $1, updated_at = $2
			WHERE id = $3 AND status = $4
		`
		args = []any{string(change.To), now, string(braceletID), string(expected)}
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update bracelet status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update bracelet status: %w", err)
	}
	if affected == 0 {
		// Row exists but in another status, or no such row at all.
		current, findErr := s.FindByID(ctx, braceletID)
		if findErr != nil {
			return nil, findErr
		}
		return nil, fmt.Errorf("bracelet %s is %s, expected %s: %w", braceletID, current.Status, expected, ErrConflict)
	}
	return s.FindByID(ctx, braceletID)
}

// Count returns the number of stored bracelets.
func (s *Postgres) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bracelets`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count bracelets: %w", err)
	}
	return count, nil
}

func scanBracelet(row *sql.Row) (*models.Bracelet, error) {
	var b models.Bracelet
	var braceletID, status, batchID string
	var profileID, userID *uuid.UUID
	if err := row.Scan(&braceletID, &b.SecretToken, &status, &batchID, &profileID, &userID, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.ID = id.BraceletID(braceletID)
	b.Status = models.Status(status)
	b.BatchID = id.BatchID(batchID)
	if profileID != nil {
		pid := id.ProfileID(*profileID)
		b.LinkedProfileID = &pid
	}
	if userID != nil {
		uid := id.UserID(*userID)
		b.LinkedUserID = &uid
	}
	return &b, nil
}

func profileIDOrNil(p *id.ProfileID) any {
	if p == nil {
		return nil
	}
	return uuid.UUID(*p)
}

func userIDOrNil(u *id.UserID) any {
	if u == nil {
		return nil
	}
	return uuid.UUID(*u)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
