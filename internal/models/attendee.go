package models

import (
	"time"

	"github.com/google/uuid"
)

// Attendee records that a user is registered for an event.
type Attendee struct {
	ID        uuid.UUID `json:"id"`
	EventID   uuid.UUID `json:"event_id"`
	UserID    uuid.UUID `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User  *UserPublic `json:"user,omitempty"`
	Event *Event      `json:"event,omitempty"`
}

// Recipient is the name and address of an event attendee.
type Recipient struct {
	AttendeeID uuid.UUID
	UserID     uuid.UUID
	Name       string
	Email      string
}
