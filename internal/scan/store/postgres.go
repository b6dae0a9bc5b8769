package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"guardtag/internal/scan/models"
	id "guardtag/pkg/domain"
)

// Postgres persists scan events in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed scan store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Insert stores a new scan event.
func (s *Postgres) Insert(ctx context.Context, e *models.ScanEvent) error {
	if e == nil {
		return fmt.Errorf("scan event is required")
	}
	if err := e.Validate(); err != nil {
		return err
	}
	query := `
		INSERT INTO scan_events (id, kind, bracelet_id, profile_id, owner_id, lat, lon, browser, os, mobile, is_read, occurred_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(e.ID),
		string(e.Kind),
		string(e.BraceletID),
		profileIDOrNil(e.ProfileID),
		uuid.UUID(e.OwnerID),
		e.Lat,
		e.Lon,
		e.Device.Browser,
		e.Device.OS,
		e.Device.Mobile,
		e.IsRead,
		e.OccurredAt,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert scan event: %w", err)
	}
	return nil
}

// ListByOwner returns the owner's events, newest first, up to limit.
func (s *Postgres) ListByOwner(ctx context.Context, ownerID id.UserID, limit int) ([]*models.ScanEvent, error) {
	query := `
		SELECT id, kind, bracelet_id, profile_id, owner_id, lat, lon, browser, os, mobile, is_read, occurred_at, created_at
		FROM scan_events
		WHERE owner_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(ownerID), limit)
	if err != nil {
		return nil, fmt.Errorf("list scan events: %w", err)
	}
	defer rows.Close()

	var out []*models.ScanEvent
	for rows.Next() {
		var e models.ScanEvent
		var scanID, ownerUUID uuid.UUID
		var profileUUID *uuid.UUID
		var kind, braceletID string
		if err := rows.Scan(&scanID, &kind, &braceletID, &profileUUID, &ownerUUID,
			&e.Lat, &e.Lon, &e.Device.Browser, &e.Device.OS, &e.Device.Mobile,
			&e.IsRead, &e.OccurredAt, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		e.ID = id.ScanID(scanID)
		e.Kind = models.Kind(kind)
		e.BraceletID = id.BraceletID(braceletID)
		e.OwnerID = id.UserID(ownerUUID)
		if profileUUID != nil {
			e.ProfileID = id.ProfileID(*profileUUID)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// MarkRead flags an event as read, scoped to its owner.
func (s *Postgres) MarkRead(ctx context.Context, scanID id.ScanID, ownerID id.UserID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scan_events SET is_read = TRUE WHERE id = $1 AND owner_id = $2`,
		uuid.UUID(scanID), uuid.UUID(ownerID))
	if err != nil {
		return fmt.Errorf("mark scan read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark scan read: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountUnread returns the number of unread events for the owner.
func (s *Postgres) CountUnread(ctx context.Context, ownerID id.UserID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM scan_events WHERE owner_id = $1 AND is_read = FALSE`,
		uuid.UUID(ownerID)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread scans: %w", err)
	}
	return count, nil
}

func profileIDOrNil(p id.ProfileID) any {
	if p.IsNil() {
		return nil
	}
	return uuid.UUID(p)
}
