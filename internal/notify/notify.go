// Package notify turns attendee lifecycle changes into queued emails.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/pkg/queue"
)

const enqueueTimeout = 5 * time.Second

// Enqueuer accepts email jobs.
type Enqueuer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// UserLookup loads the user an attendee row points at.
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Notifier queues a confirmation email for every new attendee.
type Notifier struct {
	queue  Enqueuer
	users  UserLookup
	logger *zap.Logger
}

// New creates a notifier.
func New(q Enqueuer, users UserLookup, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{queue: q, users: users, logger: logger}
}

// AttendeeRegistered queues the confirmation email. Failures are logged and
// never reach the caller; the registration itself already succeeded.
func (n *Notifier) AttendeeRegistered(ctx context.Context, event *models.Event, attendee *models.Attendee) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), enqueueTimeout)
	defer cancel()

	log := n.logger.With(zap.String("event_id", event.ID.String()), zap.String("attendee_id", attendee.ID.String()))
	user, err := n.users.GetByID(ctx, attendee.UserID)
	if err != nil {
		log.Warn("registration email skipped: user lookup failed", zap.Error(err))
		return
	}
	rc := models.Recipient{AttendeeID: attendee.ID, UserID: user.ID, Name: user.Name, Email: user.Email}
	if err := n.queue.EnqueueEmail(ctx, RegistrationEmail(event, rc)); err != nil {
		log.Error("enqueue registration email failed", zap.Error(err))
	}
}

// RegistrationEmail is the confirmation sent when someone is added to event.
func RegistrationEmail(event *models.Event, rc models.Recipient) queue.EmailPayload {
	return queue.EmailPayload{
		Kind:           queue.EmailAttendeeRegistered,
		EventID:        event.ID,
		AttendeeID:     rc.AttendeeID,
		RecipientEmail: rc.Email,
		RecipientName:  rc.Name,
		Subject:        fmt.Sprintf("You're registered for %s", event.Name),
		Body: fmt.Sprintf("Hello %s,\n\nYou are registered for %q, starting %s.\n",
			rc.Name, event.Name, event.StartTime.UTC().Format(time.RFC1123)),
	}
}

// ReminderEmail is the reminder sent shortly before event starts.
func ReminderEmail(event *models.Event, rc models.Recipient) queue.EmailPayload {
	return queue.EmailPayload{
		Kind:           queue.EmailEventReminder,
		EventID:        event.ID,
		AttendeeID:     rc.AttendeeID,
		RecipientEmail: rc.Email,
		RecipientName:  rc.Name,
		Subject:        fmt.Sprintf("Reminder: %s starts soon", event.Name),
		Body: fmt.Sprintf("Hello %s,\n\n%q starts at %s.\n",
			rc.Name, event.Name, event.StartTime.UTC().Format(time.RFC1123)),
	}
}
