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
	"github.com/lib/pq"
)

// RuleRepository persists recurrence rules, one per event.
type RuleRepository struct {
	conn database.Connection
}

// NewRuleRepository creates a new rule repository.
func NewRuleRepository(conn database.Connection) *RuleRepository {
	return &RuleRepository{conn: conn}
}

func (r *RuleRepository) exec(ctx context.Context) database.Executor {
	return database.ExecutorFromContext(ctx, r.conn)
}

func (r *RuleRepository) q(query string) string {
	return database.Rebind(r.conn.Driver(), query)
}

// weekdays returns the by_weekday argument. PostgreSQL stores a native
// text[]; SQLite stores the same array literal in a TEXT column.
func (r *RuleRepository) weekdays(days []string) any {
	if r.conn.Driver() == database.DriverPostgres {
		return days
	}
	return pq.Array(days)
}

func (r *RuleRepository) weekdaysDest(days *[]string) any {
	if r.conn.Driver() == database.DriverPostgres {
		return days
	}
	return pq.Array(days)
}

// Save upserts the rule of eventID.
func (r *RuleRepository) Save(ctx context.Context, eventID uuid.UUID, rule domain.Rule, now time.Time) error {
	var days []string
	for _, w := range rule.ByWeekday {
		days = append(days, string(w))
	}

	var (
		monthDay sql.NullInt64
		until    sql.NullInt64
		count    sql.NullInt64
	)
	if rule.ByMonthDay != 0 {
		monthDay = sql.NullInt64{Int64: int64(rule.ByMonthDay), Valid: true}
	}
	end := rule.Termination()
	switch e := end.(type) {
	case domain.EndUntil:
		until = sql.NullInt64{Int64: sharedDomain.ToMillis(e.At), Valid: true}
	case domain.EndCount:
		count = sql.NullInt64{Int64: int64(e.N), Valid: true}
	}

	_, err := r.exec(ctx).Exec(ctx, r.q(`
		INSERT INTO recurrence_rules (event_id, frequency, interval_count, by_weekday, by_month_day, end_type, end_until, end_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (event_id) DO UPDATE SET
			frequency = excluded.frequency,
			interval_count = excluded.interval_count,
			by_weekday = excluded.by_weekday,
			by_month_day = excluded.by_month_day,
			end_type = excluded.end_type,
			end_until = excluded.end_until,
			end_count = excluded.end_count,
			updated_at = excluded.updated_at
	`),
		eventID.String(),
		string(rule.Frequency),
		rule.Interval,
		r.weekdays(days),
		monthDay,
		string(end.Kind()),
		until,
		count,
		sharedDomain.ToMillis(now),
	)
	if err != nil {
		return fmt.Errorf("save recurrence rule: %w", err)
	}
	return nil
}

// FindByEventID loads the rule of eventID, or nil when there is none.
func (r *RuleRepository) FindByEventID(ctx context.Context, eventID uuid.UUID) (*domain.Rule, error) {
	var (
		frequency, endType string
		interval           int
		days               []string
		monthDay           sql.NullInt64
		until, count       sql.NullInt64
	)
	err := r.exec(ctx).QueryRow(ctx, r.q(`
		SELECT frequency, interval_count, by_weekday, by_month_day, end_type, end_until, end_count
		FROM recurrence_rules WHERE event_id = ?
	`), eventID.String()).Scan(&frequency, &interval, r.weekdaysDest(&days), &monthDay, &endType, &until, &count)
	if database.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find recurrence rule: %w", err)
	}

	rule := &domain.Rule{
		Frequency: domain.Frequency(frequency),
		Interval:  interval,
	}
	for _, d := range days {
		rule.ByWeekday = append(rule.ByWeekday, domain.Weekday(d))
	}
	if monthDay.Valid {
		rule.ByMonthDay = int(monthDay.Int64)
	}

	switch domain.EndKind(endType) {
	case domain.EndKindNever:
		rule.End = domain.EndNever{}
	case domain.EndKindUntil:
		if !until.Valid {
			return nil, fmt.Errorf("%w: event %s has an until end without a date", domain.ErrCorruptRecurrenceState, eventID)
		}
		rule.End = domain.EndUntil{At: sharedDomain.FromMillis(until.Int64)}
	case domain.EndKindCount:
		if !count.Valid {
			return nil, fmt.Errorf("%w: event %s has a count end without a count", domain.ErrCorruptRecurrenceState, eventID)
		}
		rule.End = domain.EndCount{N: int(count.Int64)}
	default:
		return nil, fmt.Errorf("%w: event %s has unknown end type %q", domain.ErrCorruptRecurrenceState, eventID, endType)
	}
	return rule, nil
}

// Delete removes the rule of eventID, if any.
func (r *RuleRepository) Delete(ctx context.Context, eventID uuid.UUID) error {
	if _, err := r.exec(ctx).Exec(ctx, r.q(`DELETE FROM recurrence_rules WHERE event_id = ?`), eventID.String()); err != nil {
		return fmt.Errorf("delete recurrence rule: %w", err)
	}
	return nil
}
