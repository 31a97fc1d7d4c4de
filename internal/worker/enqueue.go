package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DukeRupert/rentcheck/internal/domain"
	"github.com/DukeRupert/rentcheck/internal/repository"
	"github.com/google/uuid"
)

// Job type constants - these must match the JobHandler.Type() values
const (
	JobTypeSendNotification = "send_notification"
	JobTypePurgeAttachments = "purge_attachments"
)

// Priority constants for job scheduling
const (
	PriorityLow    = 0
	PriorityNormal = 10
	PriorityHigh   = 20
)

// SendNotificationPayload is the payload for notification delivery jobs.
// One job is enqueued per recipient so a bad address never blocks the others.
type SendNotificationPayload struct {
	Event     domain.Event     `json:"event"`
	Recipient domain.Recipient `json:"recipient"`
}

// PurgeAttachmentsPayload lists storage keys that a failed submission left
// behind.
type PurgeAttachmentsPayload struct {
	InspectionID uuid.UUID `json:"inspection_id"`
	Keys         []string  `json:"keys"`
}

// EnqueueOption is a functional option for customizing job enqueue parameters.
type EnqueueOption func(*repository.EnqueueJobParams)

// WithPriority sets the job priority.
func WithPriority(priority int32) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.Priority = priority
	}
}

// WithMaxAttempts sets the maximum number of retry attempts.
func WithMaxAttempts(attempts int32) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.MaxAttempts = attempts
	}
}

// WithDelay schedules the job to run after a delay.
func WithDelay(delay time.Duration) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.ScheduledAt = time.Now().Add(delay)
	}
}

// EnqueueJob is a generic helper for enqueuing jobs with custom options.
func EnqueueJob(
	ctx context.Context,
	queries *repository.Queries,
	jobType string,
	payload interface{},
	opts ...EnqueueOption,
) (repository.Job, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return repository.Job{}, fmt.Errorf("marshal payload: %w", err)
	}

	params := repository.EnqueueJobParams{
		JobType:     jobType,
		Payload:     payloadJSON,
		Priority:    PriorityNormal,
		MaxAttempts: 3,
		ScheduledAt: time.Now(),
	}
	for _, opt := range opts {
		opt(&params)
	}

	job, err := queries.EnqueueJob(ctx, params)
	if err != nil {
		return repository.Job{}, fmt.Errorf("enqueue job: %w", err)
	}
	return job, nil
}

// Enqueuer schedules the workflow's background jobs.
type Enqueuer struct {
	queries *repository.Queries
	wake    func()
}

// NewEnqueuer creates an Enqueuer writing to the jobs table.
func NewEnqueuer(queries *repository.Queries) *Enqueuer {
	return &Enqueuer{queries: queries, wake: func() {}}
}

// WakeWith registers a callback run after each notification is queued,
// typically Worker.Wake.
func (e *Enqueuer) WakeWith(wake func()) {
	if wake != nil {
		e.wake = wake
	}
}

// EnqueueNotification schedules delivery of ev to one recipient.
// Notifications outrank purges.
func (e *Enqueuer) EnqueueNotification(ctx context.Context, ev domain.Event, to domain.Recipient) error {
	_, err := EnqueueJob(ctx, e.queries, JobTypeSendNotification,
		SendNotificationPayload{Event: ev, Recipient: to},
		WithPriority(PriorityHigh),
		WithMaxAttempts(5),
	)
	if err != nil {
		return err
	}
	e.wake()
	return nil
}

// EnqueuePurge schedules deletion of orphaned photo keys. Purges run at low
// priority and retry for longer than notifications.
func (e *Enqueuer) EnqueuePurge(ctx context.Context, inspectionID uuid.UUID, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := EnqueueJob(ctx, e.queries, JobTypePurgeAttachments,
		PurgeAttachmentsPayload{InspectionID: inspectionID, Keys: keys},
		WithPriority(PriorityLow),
		WithMaxAttempts(8),
		WithDelay(time.Minute),
	)
	return err
}
