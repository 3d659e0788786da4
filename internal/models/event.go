package models

import (
	"time"

	"github.com/google/uuid"
)

// Event is an occurrence owned by the user who created it.
type Event struct {
	ID             uuid.UUID  `json:"id"`
	OwnerID        uuid.UUID  `json:"user_id"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        time.Time  `json:"end_time"`
	ReminderSentAt *time.Time `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	// Eager-loaded relations, nil unless included.
	User      *UserPublic `json:"user,omitempty"`
	Attendees []Attendee  `json:"attendees,omitempty"`
}

// OwnedBy reports whether userID created the event.
func (e *Event) OwnedBy(userID uuid.UUID) bool {
	return e.OwnerID == userID
}
