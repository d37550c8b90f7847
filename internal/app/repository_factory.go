package app

import (
	recurrenceDomain "github.com/felixgeelhaar/cadence/internal/recurrence/domain"
	recurrencePersistence "github.com/felixgeelhaar/cadence/internal/recurrence/infrastructure/persistence"
	reminderPersistence "github.com/felixgeelhaar/cadence/internal/reminders/infrastructure/persistence"
	"github.com/felixgeelhaar/cadence/internal/shared/infrastructure/database"
)

// Repositories groups the stores of both bounded contexts over one
// connection. The repositories rebind their queries per driver, so the same
// set serves PostgreSQL and SQLite.
type Repositories struct {
	Events    *recurrencePersistence.EventRepository
	Rules     *recurrencePersistence.RuleRepository
	Overrides *recurrencePersistence.OverrideRepository
	Reminders *reminderPersistence.ReminderRepository
}

// NewRepositories creates the repositories for conn.
func NewRepositories(conn database.Connection) *Repositories {
	return &Repositories{
		Events:    recurrencePersistence.NewEventRepository(conn),
		Rules:     recurrencePersistence.NewRuleRepository(conn),
		Overrides: recurrencePersistence.NewOverrideRepository(conn),
		Reminders: reminderPersistence.NewReminderRepository(conn),
	}
}

// SeriesLoader reads series through these repositories.
func (r *Repositories) SeriesLoader() recurrenceDomain.SeriesLoader {
	return recurrenceDomain.SeriesLoader{
		Events:    r.Events,
		Rules:     r.Rules,
		Overrides: r.Overrides,
	}
}
