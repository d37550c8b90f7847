package workers

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/felixgeelhaar/cadence/internal/reminders/domain"
	"github.com/google/uuid"
)

// memRepo is an in-memory domain.Repository with the same conditional-update
// semantics as the SQL store.
type memRepo struct {
	mu        sync.Mutex
	reminders map[uuid.UUID]domain.Reminder
	claims    int
	// beforeClaim runs outside the lock before each claim attempt.
	beforeClaim func(id uuid.UUID)
}

func newMemRepo(reminders ...*domain.Reminder) *memRepo {
	m := &memRepo{reminders: make(map[uuid.UUID]domain.Reminder)}
	for _, r := range reminders {
		m.reminders[r.ID] = *r
	}
	return m
}

func (m *memRepo) get(id uuid.UUID) domain.Reminder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reminders[id]
}

func (m *memRepo) transition(id uuid.UUID, from []domain.Status, apply func(r *domain.Reminder)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reminders[id]
	if !ok {
		return false
	}
	for _, s := range from {
		if r.Status == s {
			apply(&r)
			m.reminders[id] = r
			return true
		}
	}
	return false
}

func (m *memRepo) settle(claim domain.Claim, apply func(r *domain.Reminder)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reminders[claim.ReminderID]
	if !ok || r.Status != domain.StatusProcessing || r.ClaimedAt == nil || !r.ClaimedAt.Equal(claim.ClaimedAt) {
		return false
	}
	apply(&r)
	m.reminders[claim.ReminderID] = r
	return true
}

func (m *memRepo) update(id uuid.UUID, apply func(r *domain.Reminder)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.reminders[id]
	apply(&r)
	m.reminders[id] = r
}

func (m *memRepo) Insert(_ context.Context, r *domain.Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.reminders {
		if existing.Status != domain.StatusCancelled && existing.DedupKey() == r.DedupKey() {
			return &domain.DuplicateReminderError{Key: r.DedupKey()}
		}
	}
	m.reminders[r.ID] = *r
	return nil
}

func (m *memRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reminders[id]
	if !ok {
		return nil, domain.ErrReminderNotFound
	}
	return &r, nil
}

func (m *memRepo) FindActiveByDedupKey(_ context.Context, key domain.DedupKey) (*domain.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reminders {
		if r.Status != domain.StatusCancelled && r.DedupKey() == key {
			return &r, nil
		}
	}
	return nil, nil
}

func (m *memRepo) ListByEvent(_ context.Context, eventID uuid.UUID) ([]*domain.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Reminder
	for _, r := range m.reminders {
		if r.EventID == eventID {
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RemindAt.Before(out[j].RemindAt) })
	return out, nil
}

func (m *memRepo) FindDue(_ context.Context, now time.Time, limit int) ([]*domain.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Reminder
	for _, r := range m.reminders {
		if r.Due(now) {
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RemindAt.Before(out[j].RemindAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRepo) Claim(_ context.Context, id uuid.UUID, now time.Time) (*domain.Claim, error) {
	if m.beforeClaim != nil {
		m.beforeClaim(id)
	}

	m.mu.Lock()
	r, ok := m.reminders[id]
	if !ok || !r.Due(now) {
		m.mu.Unlock()
		return nil, nil
	}
	r.Status = domain.StatusProcessing
	r.ClaimedAt = &now
	r.UpdatedAt = now
	m.reminders[id] = r
	m.claims++
	m.mu.Unlock()

	return &domain.Claim{ReminderID: id, ClaimedAt: now, RetryCount: r.RetryCount}, nil
}

func (m *memRepo) MarkSent(_ context.Context, claim domain.Claim, now time.Time) (bool, error) {
	return m.settle(claim, func(r *domain.Reminder) {
		r.Status = domain.StatusSent
		r.SentAt = &now
		r.UpdatedAt = now
	}), nil
}

func (m *memRepo) Release(_ context.Context, claim domain.Claim, availableAt time.Time, lastError string, now time.Time) (bool, error) {
	return m.settle(claim, func(r *domain.Reminder) {
		r.Status = domain.StatusPending
		r.RetryCount++
		r.AvailableAt = &availableAt
		r.ClaimedAt = nil
		r.LastError = lastError
		r.UpdatedAt = now
	}), nil
}

func (m *memRepo) MarkFailed(_ context.Context, claim domain.Claim, lastError string, now time.Time) (bool, error) {
	return m.settle(claim, func(r *domain.Reminder) {
		r.Status = domain.StatusFailed
		r.LastError = lastError
		r.UpdatedAt = now
	}), nil
}

func (m *memRepo) Cancel(_ context.Context, id uuid.UUID, now time.Time) (bool, error) {
	return m.transition(id, []domain.Status{domain.StatusPending, domain.StatusProcessing}, func(r *domain.Reminder) {
		r.Status = domain.StatusCancelled
		r.UpdatedAt = now
	}), nil
}

func (m *memRepo) CancelPendingForOccurrence(_ context.Context, eventID uuid.UUID, occurrenceStart, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, r := range m.reminders {
		at, ok := r.OccurrenceStart.Get()
		if r.EventID == eventID && ok && at.Equal(occurrenceStart) && r.Status == domain.StatusPending {
			r.Status = domain.StatusCancelled
			r.UpdatedAt = now
			m.reminders[id] = r
			n++
		}
	}
	return n, nil
}

func (m *memRepo) PendingOccurrenceStarts(_ context.Context, eventID uuid.UUID) ([]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []time.Time
	for _, r := range m.reminders {
		if at, ok := r.OccurrenceStart.Get(); ok && r.EventID == eventID && r.Status == domain.StatusPending {
			out = append(out, at)
		}
	}
	return out, nil
}

func (m *memRepo) ReclaimAbandoned(_ context.Context, claimedBefore time.Time, maxRetries int, now time.Time) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var reclaimed, failed int64
	for id, r := range m.reminders {
		if r.Status != domain.StatusProcessing || r.ClaimedAt == nil || !r.ClaimedAt.Before(claimedBefore) {
			continue
		}
		if r.RetryCount >= maxRetries {
			r.Status = domain.StatusFailed
			r.LastError = "visibility timeout"
			failed++
		} else {
			r.Status = domain.StatusPending
			r.RetryCount++
			r.ClaimedAt = nil
			reclaimed++
		}
		r.UpdatedAt = now
		m.reminders[id] = r
	}
	return reclaimed, failed, nil
}

func (m *memRepo) DeleteTerminalOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, r := range m.reminders {
		if r.Status.IsTerminal() && r.UpdatedAt.Before(cutoff) {
			delete(m.reminders, id)
			n++
		}
	}
	return n, nil
}

func (m *memRepo) DeleteByEvent(_ context.Context, eventID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.reminders {
		if r.EventID == eventID {
			delete(m.reminders, id)
		}
	}
	return nil
}
