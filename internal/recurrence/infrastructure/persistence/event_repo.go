package persistence

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/cadence/internal/recurrence/domain"
	sharedDomain "github.com/felixgeelhaar/cadence/internal/shared/domain"
	"github.com/felixgeelhaar/cadence/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

// EventRepository persists events on either supported driver.
type EventRepository struct {
	conn database.Connection
}

// NewEventRepository creates a new event repository.
func NewEventRepository(conn database.Connection) *EventRepository {
	return &EventRepository{conn: conn}
}

func (r *EventRepository) exec(ctx context.Context) database.Executor {
	return database.ExecutorFromContext(ctx, r.conn)
}

func (r *EventRepository) q(query string) string {
	return database.Rebind(r.conn.Driver(), query)
}

// Save inserts or updates an event.
func (r *EventRepository) Save(ctx context.Context, event *domain.Event) error {
	anchor := event.Anchor()
	_, err := r.exec(ctx).Exec(ctx, r.q(`
		INSERT INTO events (id, title, start_at, end_at, timezone, recurring, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			start_at = excluded.start_at,
			end_at = excluded.end_at,
			timezone = excluded.timezone,
			recurring = excluded.recurring,
			updated_at = excluded.updated_at
	`),
		event.ID().String(),
		event.Title(),
		sharedDomain.ToMillis(anchor.Start),
		sharedDomain.ToMillis(anchor.End),
		anchor.Timezone,
		event.IsRecurring(),
		sharedDomain.ToMillis(event.CreatedAt()),
		sharedDomain.ToMillis(event.UpdatedAt()),
	)
	if err != nil {
		return fmt.Errorf("save event: %w", err)
	}
	return nil
}

const eventColumns = `id, title, start_at, end_at, timezone, recurring, created_at, updated_at`

// FindByID loads an event, returning domain.ErrEventNotFound when missing.
func (r *EventRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	row := r.exec(ctx).QueryRow(ctx, r.q(`SELECT `+eventColumns+` FROM events WHERE id = ?`), id.String())
	event, err := scanEvent(row)
	if database.IsNoRows(err) {
		return nil, fmt.Errorf("%w: %s", domain.ErrEventNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("find event: %w", err)
	}
	return event, nil
}

// ListInWindow lists the events that may contribute occurrences to window.
// The resolver does the exact filtering.
func (r *EventRepository) ListInWindow(ctx context.Context, window domain.Window) ([]*domain.Event, error) {
	from := sharedDomain.ToMillis(window.Start)
	to := sharedDomain.ToMillis(window.End)
	rows, err := r.exec(ctx).Query(ctx, r.q(`
		SELECT `+eventColumns+` FROM events
		WHERE (recurring = ? AND (start_at <= ? OR EXISTS (
				SELECT 1 FROM occurrence_overrides o
				WHERE o.event_id = events.id AND o.new_start_at <= ?)))
			OR (start_at <= ? AND end_at >= ?)
		ORDER BY start_at, id
	`), true, to, to, to, from)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := make([]*domain.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

func scanEvent(row database.Row) (*domain.Event, error) {
	var (
		idStr, title, timezone string
		startAt, endAt         int64
		recurring              bool
		createdAt, updatedAt   int64
	)
	if err := row.Scan(&idStr, &title, &startAt, &endAt, &timezone, &recurring, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	parsedID, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse event id: %w", err)
	}
	anchor := domain.Anchor{
		Start:    sharedDomain.FromMillis(startAt),
		End:      sharedDomain.FromMillis(endAt),
		Timezone: timezone,
	}
	return domain.RehydrateEvent(parsedID, title, anchor, recurring,
		sharedDomain.FromMillis(createdAt), sharedDomain.FromMillis(updatedAt)), nil
}

// Delete removes an event. Rules, overrides and reminders cascade.
func (r *EventRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.exec(ctx).Exec(ctx, r.q(`DELETE FROM events WHERE id = ?`), id.String()); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}
