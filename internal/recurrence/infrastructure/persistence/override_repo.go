package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/felixgeelhaar/cadence/internal/recurrence/domain"
	sharedDomain "github.com/felixgeelhaar/cadence/internal/shared/domain"
	"github.com/felixgeelhaar/cadence/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

// OverrideRepository persists per-occurrence overrides keyed by
// (event_id, original_start_at).
type OverrideRepository struct {
	conn database.Connection
}

// NewOverrideRepository creates a new override repository.
func NewOverrideRepository(conn database.Connection) *OverrideRepository {
	return &OverrideRepository{conn: conn}
}

func (r *OverrideRepository) exec(ctx context.Context) database.Executor {
	return database.ExecutorFromContext(ctx, r.conn)
}

func (r *OverrideRepository) q(query string) string {
	return database.Rebind(r.conn.Driver(), query)
}

// Save upserts an override.
func (r *OverrideRepository) Save(ctx context.Context, ov domain.Override) error {
	var newStart, newEnd sql.NullInt64
	if !ov.Cancelled {
		newStart = sql.NullInt64{Int64: sharedDomain.ToMillis(ov.Start), Valid: true}
		newEnd = sql.NullInt64{Int64: sharedDomain.ToMillis(ov.End), Valid: true}
	}
	_, err := r.exec(ctx).Exec(ctx, r.q(`
		INSERT INTO occurrence_overrides (event_id, original_start_at, new_start_at, new_end_at, cancelled, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (event_id, original_start_at) DO UPDATE SET
			new_start_at = excluded.new_start_at,
			new_end_at = excluded.new_end_at,
			cancelled = excluded.cancelled,
			updated_at = excluded.updated_at
	`),
		ov.EventID.String(),
		sharedDomain.ToMillis(ov.OriginalStart),
		newStart,
		newEnd,
		ov.Cancelled,
		sharedDomain.ToMillis(ov.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save occurrence override: %w", err)
	}
	return nil
}

// FindByEventID lists the overrides of an event ordered by original start.
func (r *OverrideRepository) FindByEventID(ctx context.Context, eventID uuid.UUID) ([]domain.Override, error) {
	rows, err := r.exec(ctx).Query(ctx, r.q(`
		SELECT original_start_at, new_start_at, new_end_at, cancelled, updated_at
		FROM occurrence_overrides
		WHERE event_id = ?
		ORDER BY original_start_at
	`), eventID.String())
	if err != nil {
		return nil, fmt.Errorf("list occurrence overrides: %w", err)
	}
	defer rows.Close()

	overrides := make([]domain.Override, 0)
	for rows.Next() {
		var (
			originalStart, updatedAt int64
			newStart, newEnd         sql.NullInt64
			cancelled                bool
		)
		if err := rows.Scan(&originalStart, &newStart, &newEnd, &cancelled, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan occurrence override: %w", err)
		}
		ov := domain.Override{
			EventID:       eventID,
			OriginalStart: sharedDomain.FromMillis(originalStart),
			Cancelled:     cancelled,
			UpdatedAt:     sharedDomain.FromMillis(updatedAt),
		}
		if !cancelled {
			if !newStart.Valid || !newEnd.Valid {
				return nil, fmt.Errorf("%w: override of event %s at %d has no replacement time", domain.ErrCorruptRecurrenceState, eventID, originalStart)
			}
			ov.Start = sharedDomain.FromMillis(newStart.Int64)
			ov.End = sharedDomain.FromMillis(newEnd.Int64)
		}
		overrides = append(overrides, ov)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list occurrence overrides: %w", err)
	}
	return overrides, nil
}

// Delete removes the override of one occurrence, if any.
func (r *OverrideRepository) Delete(ctx context.Context, eventID uuid.UUID, originalStart time.Time) error {
	_, err := r.exec(ctx).Exec(ctx, r.q(`
		DELETE FROM occurrence_overrides WHERE event_id = ? AND original_start_at = ?
	`), eventID.String(), sharedDomain.ToMillis(originalStart))
	if err != nil {
		return fmt.Errorf("delete occurrence override: %w", err)
	}
	return nil
}

// DeleteByEventID removes every override of an event.
func (r *OverrideRepository) DeleteByEventID(ctx context.Context, eventID uuid.UUID) error {
	if _, err := r.exec(ctx).Exec(ctx, r.q(`DELETE FROM occurrence_overrides WHERE event_id = ?`), eventID.String()); err != nil {
		return fmt.Errorf("delete occurrence overrides: %w", err)
	}
	return nil
}
