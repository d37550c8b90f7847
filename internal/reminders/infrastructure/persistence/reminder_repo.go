package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/felixgeelhaar/cadence/internal/reminders/domain"
	sharedDomain "github.com/felixgeelhaar/cadence/internal/shared/domain"
	"github.com/felixgeelhaar/cadence/internal/shared/infrastructure/database"
	"github.com/google/uuid"
	"github.com/samber/mo"
)

const reminderColumns = `id, event_id, occurrence_start_at, remind_at, channel, status, retry_count,
	claimed_at, available_at, sent_at, last_error, created_at, updated_at`

// ReminderRepository implements domain.Repository for PostgreSQL and SQLite.
// Status changes are compare-and-set updates on the expected status.
type ReminderRepository struct {
	conn database.Connection
}

// NewReminderRepository creates a new reminder repository.
func NewReminderRepository(conn database.Connection) *ReminderRepository {
	return &ReminderRepository{conn: conn}
}

func (r *ReminderRepository) exec(ctx context.Context) database.Executor {
	return database.ExecutorFromContext(ctx, r.conn)
}

func (r *ReminderRepository) q(query string) string {
	return database.Rebind(r.conn.Driver(), query)
}

// Insert stores a new reminder. The partial unique index on dedup_key turns a
// racing duplicate into *domain.DuplicateReminderError.
func (r *ReminderRepository) Insert(ctx context.Context, rem *domain.Reminder) error {
	key := rem.DedupKey()
	_, err := r.exec(ctx).Exec(ctx, r.q(`
		INSERT INTO reminders (id, event_id, occurrence_start_at, remind_at, channel, status, dedup_key,
			retry_count, claimed_at, available_at, sent_at, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`),
		rem.ID.String(),
		rem.EventID.String(),
		optionMillis(rem.OccurrenceStart),
		sharedDomain.ToMillis(rem.RemindAt),
		string(rem.Channel),
		string(rem.Status),
		string(key),
		rem.RetryCount,
		nullMillis(rem.ClaimedAt),
		nullMillis(rem.AvailableAt),
		nullMillis(rem.SentAt),
		nullString(rem.LastError),
		sharedDomain.ToMillis(rem.CreatedAt),
		sharedDomain.ToMillis(rem.UpdatedAt),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return &domain.DuplicateReminderError{Key: key}
		}
		return fmt.Errorf("insert reminder: %w", err)
	}
	return nil
}

// FindByID returns domain.ErrReminderNotFound when the reminder does not exist.
func (r *ReminderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Reminder, error) {
	row := r.exec(ctx).QueryRow(ctx, r.q(`SELECT `+reminderColumns+` FROM reminders WHERE id = ?`), id.String())
	rem, err := scanReminder(row)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrReminderNotFound, id)
		}
		return nil, fmt.Errorf("find reminder: %w", err)
	}
	return rem, nil
}

// FindActiveByDedupKey returns nil when no active reminder holds key.
func (r *ReminderRepository) FindActiveByDedupKey(ctx context.Context, key domain.DedupKey) (*domain.Reminder, error) {
	row := r.exec(ctx).QueryRow(ctx, r.q(`
		SELECT `+reminderColumns+` FROM reminders WHERE dedup_key = ? AND status <> ?
	`), string(key), string(domain.StatusCancelled))
	rem, err := scanReminder(row)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find reminder by dedup key: %w", err)
	}
	return rem, nil
}

// ListByEvent lists an event's reminders ordered by remind_at.
func (r *ReminderRepository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*domain.Reminder, error) {
	return r.list(ctx, `
		SELECT `+reminderColumns+` FROM reminders WHERE event_id = ? ORDER BY remind_at, created_at
	`, eventID.String())
}

// FindDue lists claimable reminders, oldest first.
func (r *ReminderRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]*domain.Reminder, error) {
	ms := sharedDomain.ToMillis(now)
	return r.list(ctx, `
		SELECT `+reminderColumns+` FROM reminders
		WHERE status = ? AND remind_at <= ? AND (available_at IS NULL OR available_at <= ?)
		ORDER BY remind_at
		LIMIT ?
	`, string(domain.StatusPending), ms, ms, limit)
}

func (r *ReminderRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Reminder, error) {
	rows, err := r.exec(ctx).Query(ctx, r.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()

	reminders := make([]*domain.Reminder, 0)
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		reminders = append(reminders, rem)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	return reminders, nil
}

// Claim moves a due reminder from PENDING to PROCESSING and returns the
// claim, carrying the row's current retry count. It returns nil when the
// reminder is no longer claimable.
func (r *ReminderRepository) Claim(ctx context.Context, id uuid.UUID, now time.Time) (*domain.Claim, error) {
	ms := sharedDomain.ToMillis(now)
	row := r.exec(ctx).QueryRow(ctx, r.q(`
		UPDATE reminders SET status = ?, claimed_at = ?, updated_at = ?
		WHERE id = ? AND status = ? AND remind_at <= ? AND (available_at IS NULL OR available_at <= ?)
		RETURNING retry_count
	`), string(domain.StatusProcessing), ms, ms, id.String(), string(domain.StatusPending), ms, ms)

	var retryCount int
	if err := row.Scan(&retryCount); err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim reminder: %w", err)
	}
	return &domain.Claim{
		ReminderID: id,
		ClaimedAt:  sharedDomain.FromMillis(ms),
		RetryCount: retryCount,
	}, nil
}

// MarkSent moves a claimed reminder from PROCESSING to SENT.
func (r *ReminderRepository) MarkSent(ctx context.Context, claim domain.Claim, now time.Time) (bool, error) {
	ms := sharedDomain.ToMillis(now)
	return r.update(ctx, "mark reminder sent", `
		UPDATE reminders SET status = ?, sent_at = ?, last_error = NULL, updated_at = ?
		WHERE id = ? AND status = ? AND claimed_at = ?
	`, string(domain.StatusSent), ms, ms,
		claim.ReminderID.String(), string(domain.StatusProcessing), sharedDomain.ToMillis(claim.ClaimedAt))
}

// Release returns a claimed reminder to PENDING for a later attempt.
func (r *ReminderRepository) Release(ctx context.Context, claim domain.Claim, availableAt time.Time, lastError string, now time.Time) (bool, error) {
	return r.update(ctx, "release reminder", `
		UPDATE reminders
		SET status = ?, retry_count = retry_count + 1, claimed_at = NULL, available_at = ?, last_error = ?, updated_at = ?
		WHERE id = ? AND status = ? AND claimed_at = ?
	`, string(domain.StatusPending), sharedDomain.ToMillis(availableAt), lastError, sharedDomain.ToMillis(now),
		claim.ReminderID.String(), string(domain.StatusProcessing), sharedDomain.ToMillis(claim.ClaimedAt))
}

// MarkFailed moves a claimed reminder from PROCESSING to FAILED.
func (r *ReminderRepository) MarkFailed(ctx context.Context, claim domain.Claim, lastError string, now time.Time) (bool, error) {
	return r.update(ctx, "mark reminder failed", `
		UPDATE reminders SET status = ?, last_error = ?, updated_at = ?
		WHERE id = ? AND status = ? AND claimed_at = ?
	`, string(domain.StatusFailed), lastError, sharedDomain.ToMillis(now),
		claim.ReminderID.String(), string(domain.StatusProcessing), sharedDomain.ToMillis(claim.ClaimedAt))
}

// Cancel moves a PENDING or PROCESSING reminder to CANCELLED.
func (r *ReminderRepository) Cancel(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	return r.update(ctx, "cancel reminder", `
		UPDATE reminders SET status = ?, updated_at = ?
		WHERE id = ? AND status IN (?, ?)
	`, string(domain.StatusCancelled), sharedDomain.ToMillis(now), id.String(),
		string(domain.StatusPending), string(domain.StatusProcessing))
}

func (r *ReminderRepository) update(ctx context.Context, op, query string, args ...any) (bool, error) {
	n, err := r.affected(ctx, op, query, args...)
	return n == 1, err
}

func (r *ReminderRepository) affected(ctx context.Context, op, query string, args ...any) (int64, error) {
	res, err := r.exec(ctx).Exec(ctx, r.q(query), args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// CancelPendingForOccurrence cancels the PENDING reminders of one occurrence.
func (r *ReminderRepository) CancelPendingForOccurrence(ctx context.Context, eventID uuid.UUID, occurrenceStart, now time.Time) (int64, error) {
	return r.affected(ctx, "cancel occurrence reminders", `
		UPDATE reminders SET status = ?, updated_at = ?
		WHERE event_id = ? AND occurrence_start_at = ? AND status = ?
	`, string(domain.StatusCancelled), sharedDomain.ToMillis(now), eventID.String(),
		sharedDomain.ToMillis(occurrenceStart), string(domain.StatusPending))
}

// PendingOccurrenceStarts lists the distinct occurrences targeted by PENDING reminders.
func (r *ReminderRepository) PendingOccurrenceStarts(ctx context.Context, eventID uuid.UUID) ([]time.Time, error) {
	rows, err := r.exec(ctx).Query(ctx, r.q(`
		SELECT DISTINCT occurrence_start_at FROM reminders
		WHERE event_id = ? AND status = ? AND occurrence_start_at IS NOT NULL
		ORDER BY occurrence_start_at
	`), eventID.String(), string(domain.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("list pending occurrence starts: %w", err)
	}
	defer rows.Close()

	starts := make([]time.Time, 0)
	for rows.Next() {
		var ms int64
		if err := rows.Scan(&ms); err != nil {
			return nil, fmt.Errorf("scan occurrence start: %w", err)
		}
		starts = append(starts, sharedDomain.FromMillis(ms))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pending occurrence starts: %w", err)
	}
	return starts, nil
}

// ReclaimAbandoned fails abandoned claims that are out of retries, then
// returns the rest to PENDING with one more retry counted.
func (r *ReminderRepository) ReclaimAbandoned(ctx context.Context, claimedBefore time.Time, maxRetries int, now time.Time) (int64, int64, error) {
	cutoff := sharedDomain.ToMillis(claimedBefore)
	ms := sharedDomain.ToMillis(now)

	failed, err := r.affected(ctx, "fail abandoned reminders", `
		UPDATE reminders SET status = ?, last_error = ?, updated_at = ?
		WHERE status = ? AND claimed_at < ? AND retry_count >= ?
	`, string(domain.StatusFailed), "abandoned after visibility timeout", ms,
		string(domain.StatusProcessing), cutoff, maxRetries)
	if err != nil {
		return 0, 0, err
	}

	reclaimed, err := r.affected(ctx, "reclaim abandoned reminders", `
		UPDATE reminders SET status = ?, retry_count = retry_count + 1, claimed_at = NULL, updated_at = ?
		WHERE status = ? AND claimed_at < ?
	`, string(domain.StatusPending), ms, string(domain.StatusProcessing), cutoff)
	if err != nil {
		return 0, failed, err
	}
	return reclaimed, failed, nil
}

// DeleteTerminalOlderThan purges finished reminders last touched before cutoff.
func (r *ReminderRepository) DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.affected(ctx, "purge reminders", `
		DELETE FROM reminders WHERE status IN (?, ?, ?) AND updated_at < ?
	`, string(domain.StatusSent), string(domain.StatusFailed), string(domain.StatusCancelled), sharedDomain.ToMillis(cutoff))
}

// DeleteByEvent removes every reminder of an event.
func (r *ReminderRepository) DeleteByEvent(ctx context.Context, eventID uuid.UUID) error {
	if _, err := r.exec(ctx).Exec(ctx, r.q(`DELETE FROM reminders WHERE event_id = ?`), eventID.String()); err != nil {
		return fmt.Errorf("delete event reminders: %w", err)
	}
	return nil
}

func scanReminder(row database.Row) (*domain.Reminder, error) {
	var (
		id, eventID, channel, status   string
		occurrenceStart                sql.NullInt64
		remindAt, createdAt, updatedAt int64
		retryCount                     int
		claimedAt, availableAt, sentAt sql.NullInt64
		lastError                      sql.NullString
	)
	if err := row.Scan(&id, &eventID, &occurrenceStart, &remindAt, &channel, &status, &retryCount,
		&claimedAt, &availableAt, &sentAt, &lastError, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	rid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse reminder id: %w", err)
	}
	eid, err := uuid.Parse(eventID)
	if err != nil {
		return nil, fmt.Errorf("parse event id: %w", err)
	}

	rem := &domain.Reminder{
		ID:              rid,
		EventID:         eid,
		OccurrenceStart: mo.None[time.Time](),
		RemindAt:        sharedDomain.FromMillis(remindAt),
		Channel:         domain.Channel(channel),
		Status:          domain.Status(status),
		RetryCount:      retryCount,
		ClaimedAt:       timePtr(claimedAt),
		AvailableAt:     timePtr(availableAt),
		SentAt:          timePtr(sentAt),
		LastError:       lastError.String,
		CreatedAt:       sharedDomain.FromMillis(createdAt),
		UpdatedAt:       sharedDomain.FromMillis(updatedAt),
	}
	if occurrenceStart.Valid {
		rem.OccurrenceStart = mo.Some(sharedDomain.FromMillis(occurrenceStart.Int64))
	}
	return rem, nil
}

func optionMillis(o mo.Option[time.Time]) sql.NullInt64 {
	if at, ok := o.Get(); ok {
		return sql.NullInt64{Int64: sharedDomain.ToMillis(at), Valid: true}
	}
	return sql.NullInt64{}
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: sharedDomain.ToMillis(*t), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := sharedDomain.FromMillis(v.Int64)
	return &t
}
