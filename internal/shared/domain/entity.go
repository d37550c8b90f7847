package domain

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity carries identity and audit timestamps shared by every aggregate.
type BaseEntity struct {
	id        uuid.UUID
	createdAt time.Time
	updatedAt time.Time
}

// NewBaseEntity creates an entity with a fresh id stamped at now.
func NewBaseEntity(now time.Time) BaseEntity {
	now = now.UTC()
	return BaseEntity{id: uuid.New(), createdAt: now, updatedAt: now}
}

// RehydrateBaseEntity recreates an entity from persisted state.
func RehydrateBaseEntity(id uuid.UUID, createdAt, updatedAt time.Time) BaseEntity {
	return BaseEntity{id: id, createdAt: createdAt.UTC(), updatedAt: updatedAt.UTC()}
}

func (e BaseEntity) ID() uuid.UUID        { return e.id }
func (e BaseEntity) CreatedAt() time.Time { return e.createdAt }
func (e BaseEntity) UpdatedAt() time.Time { return e.updatedAt }

// Touch records a modification at now.
func (e *BaseEntity) Touch(now time.Time) {
	e.updatedAt = now.UTC()
}
