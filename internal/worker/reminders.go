package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/internal/notify"
)

// DueEvents finds events that still need a reminder.
type DueEvents interface {
	DueForReminder(ctx context.Context, from, to time.Time) ([]models.Event, error)
	MarkReminded(ctx context.Context, id uuid.UUID) error
}

// RecipientLister resolves the mail recipients of an event.
type RecipientLister interface {
	Recipients(ctx context.Context, eventID uuid.UUID) ([]models.Recipient, error)
}

// ReminderScheduler periodically queues one reminder per attendee for events
// starting within the lookahead window.
type ReminderScheduler struct {
	events     DueEvents
	recipients RecipientLister
	queue      notify.Enqueuer
	interval   time.Duration
	lookahead  time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

// NewReminderScheduler creates a reminder scheduler.
func NewReminderScheduler(events DueEvents, recipients RecipientLister, q notify.Enqueuer, interval, lookahead time.Duration, logger *zap.Logger) *ReminderScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderScheduler{
		events:     events,
		recipients: recipients,
		queue:      q,
		interval:   interval,
		lookahead:  lookahead,
		now:        time.Now,
		logger:     logger,
	}
}

// RunOnce queues reminders for every due event and returns how many emails
// were queued. An event is marked reminded only after all of its emails are
// queued, so a partial failure is retried on the next tick.
func (s *ReminderScheduler) RunOnce(ctx context.Context) (int, error) {
	now := s.now().UTC()
	due, err := s.events.DueForReminder(ctx, now, now.Add(s.lookahead))
	if err != nil {
		return 0, fmt.Errorf("due events: %w", err)
	}

	queued := 0
	for i := range due {
		event := &due[i]
		n, err := s.remind(ctx, event)
		queued += n
		if err != nil {
			s.logger.Error("event reminder failed", zap.String("event_id", event.ID.String()), zap.Error(err))
			continue
		}
		if err := s.events.MarkReminded(ctx, event.ID); err != nil {
			s.logger.Error("mark reminded failed", zap.String("event_id", event.ID.String()), zap.Error(err))
		}
	}
	return queued, nil
}

func (s *ReminderScheduler) remind(ctx context.Context, event *models.Event) (int, error) {
	list, err := s.recipients.Recipients(ctx, event.ID)
	if err != nil {
		return 0, fmt.Errorf("recipients: %w", err)
	}
	for i, rc := range list {
		if err := s.queue.EnqueueEmail(ctx, notify.ReminderEmail(event, rc)); err != nil {
			return i, err
		}
	}
	s.logger.Info("event reminders queued", zap.String("event_id", event.ID.String()), zap.Int("count", len(list)))
	return len(list), nil
}

// Run ticks every interval until ctx is done. The first pass runs immediately.
func (s *ReminderScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("reminder pass failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			s.logger.Info("reminder scheduler stopping")
			return
		case <-ticker.C:
		}
	}
}
