package shared

import (
	"time"

	"github.com/google/uuid"
)

// Aggregate holds the identity, optimistic-lock version and pending events
// of an aggregate root. Embed it by value.
type Aggregate struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int
	events    []DomainEvent
}

// NewAggregate returns a fresh aggregate at version 1
func NewAggregate() Aggregate {
	now := time.Now()
	return Aggregate{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
}

// Bump marks a state change at the given instant
func (a *Aggregate) Bump(at time.Time) {
	a.UpdatedAt = at
	a.Version++
}

// Record queues an event for publication after the aggregate is saved
func (a *Aggregate) Record(event DomainEvent) {
	a.events = append(a.events, event)
}

// Events returns the queued events
func (a *Aggregate) Events() []DomainEvent {
	return a.events
}

// ClearEvents drops the queued events
func (a *Aggregate) ClearEvents() {
	a.events = nil
}
