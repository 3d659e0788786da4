package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/mailer"
	"github.com/aura-events/backend/pkg/queue"
)

const dequeueTimeout = 5 * time.Second

// Jobs is the queue side the email processor consumes.
type Jobs interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// EmailProcessor delivers queued email jobs.
type EmailProcessor struct {
	jobs    Jobs
	sender  mailer.Sender
	backoff time.Duration
	logger  *zap.Logger
}

// NewEmailProcessor creates an email job processor.
func NewEmailProcessor(jobs Jobs, sender mailer.Sender, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{jobs: jobs, sender: sender, backoff: queue.RetryBackoff, logger: logger}
}

// Process delivers one email job.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	payload, err := job.Email()
	if err != nil {
		return err
	}
	return p.sender.Send(ctx, mailer.Message{
		To:      payload.RecipientEmail,
		ToName:  payload.RecipientName,
		Subject: payload.Subject,
		Body:    payload.Body,
	})
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *EmailProcessor) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			p.logger.Info("email worker stopping")
			return
		}

		job, err := p.jobs.Dequeue(ctx, dequeueTimeout)
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Warn("dequeue error", zap.Error(err))
			}
			sleep(ctx, p.backoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.jobs.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			sleep(ctx, p.backoff)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
