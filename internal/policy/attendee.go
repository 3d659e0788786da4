// Package policy answers whether a user may act on events and attendees.
//
// Decisions are plain booleans. Handlers turn a deny into 403 and are
// responsible for 404s (unknown ids, attendee of another event) before asking.
package policy

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/aura-events/backend/internal/models"
)

// Registrations reports whether a user already has an attendee row for an event.
type Registrations interface {
	IsAttending(ctx context.Context, eventID, userID uuid.UUID) (bool, error)
}

// Attendees decides access to an event's attendee records.
type Attendees interface {
	CanViewAny(ctx context.Context, actor uuid.UUID, event *models.Event) (bool, error)
	CanView(actor uuid.UUID, event *models.Event, attendee *models.Attendee) bool
	CanCreate(ctx context.Context, actor uuid.UUID, event *models.Event) (bool, error)
	CanDelete(actor uuid.UUID, event *models.Event, attendee *models.Attendee) bool
}

// AttendeePolicy is the default Attendees implementation.
type AttendeePolicy struct {
	registrations Registrations
}

// NewAttendeePolicy creates an attendee policy backed by registrations.
func NewAttendeePolicy(registrations Registrations) *AttendeePolicy {
	return &AttendeePolicy{registrations: registrations}
}

// CanViewAny allows the event owner and the event's attendees to list attendees.
func (p *AttendeePolicy) CanViewAny(ctx context.Context, actor uuid.UUID, event *models.Event) (bool, error) {
	if event.OwnedBy(actor) {
		return true, nil
	}
	return p.isAttending(ctx, actor, event)
}

// CanView allows the attendee themselves and the owner of the attendee's event.
// event must be the event the attendee belongs to.
func (p *AttendeePolicy) CanView(actor uuid.UUID, event *models.Event, attendee *models.Attendee) bool {
	if attendee.UserID == actor {
		return true
	}
	return attendee.EventID == event.ID && event.OwnedBy(actor)
}

// CanCreate allows the owner unconditionally; anyone else may register once.
func (p *AttendeePolicy) CanCreate(ctx context.Context, actor uuid.UUID, event *models.Event) (bool, error) {
	if event.OwnedBy(actor) {
		return true, nil
	}
	attending, err := p.isAttending(ctx, actor, event)
	if err != nil {
		return false, err
	}
	return !attending, nil
}

// CanDelete uses the same rule as CanView.
func (p *AttendeePolicy) CanDelete(actor uuid.UUID, event *models.Event, attendee *models.Attendee) bool {
	return p.CanView(actor, event, attendee)
}

func (p *AttendeePolicy) isAttending(ctx context.Context, actor uuid.UUID, event *models.Event) (bool, error) {
	ok, err := p.registrations.IsAttending(ctx, event.ID, actor)
	if err != nil {
		return false, fmt.Errorf("check registration: %w", err)
	}
	return ok, nil
}
