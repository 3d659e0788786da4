package policy

import (
	"github.com/google/uuid"

	"github.com/aura-events/backend/internal/models"
)

// Events decides who may change an event. Any signed-in user may list and view events.
type Events interface {
	CanUpdate(actor uuid.UUID, event *models.Event) bool
	CanDelete(actor uuid.UUID, event *models.Event) bool
}

// EventPolicy restricts changes to the event owner.
type EventPolicy struct{}

// NewEventPolicy creates an event policy.
func NewEventPolicy() EventPolicy {
	return EventPolicy{}
}

func (EventPolicy) CanUpdate(actor uuid.UUID, event *models.Event) bool {
	return event.OwnedBy(actor)
}

func (EventPolicy) CanDelete(actor uuid.UUID, event *models.Event) bool {
	return event.OwnedBy(actor)
}
