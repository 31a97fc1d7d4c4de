// Package notify fans workflow events out to the parties of a booking.
//
// Delivery is asynchronous: the Dispatcher only records what must be sent
// (one job per recipient) and optionally publishes the event to an SNS topic
// for other systems. Sending happens in the send_notification job.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/DukeRupert/rentcheck/internal/domain"
	"github.com/DukeRupert/rentcheck/internal/metrics"
)

// Queue schedules delivery of an event to one recipient.
type Queue interface {
	EnqueueNotification(ctx context.Context, ev domain.Event, to domain.Recipient) error
}

// Publisher broadcasts an event to external subscribers.
type Publisher interface {
	Publish(ctx context.Context, ev domain.Event) error
}

// Dispatcher implements the workflow's notifier.
type Dispatcher struct {
	queue     Queue
	publisher Publisher
	logger    *slog.Logger
}

// NewDispatcher creates a Dispatcher. publisher may be nil when no topic is
// configured.
func NewDispatcher(queue Queue, publisher Publisher, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{queue: queue, publisher: publisher, logger: logger}
}

// Notify enqueues ev for every recipient and publishes it once. It attempts
// every recipient even when one fails and reports all failures together.
func (d *Dispatcher) Notify(ctx context.Context, ev domain.Event, recipients []domain.Recipient) error {
	var errs []error
	for _, r := range recipients {
		if err := d.queue.EnqueueNotification(ctx, ev, r); err != nil {
			metrics.Notification("queue", err)
			errs = append(errs, fmt.Errorf("enqueue %s notification for %s: %w", ev.Type, r.Party, err))
			continue
		}
		metrics.Notification("queue", nil)
	}

	if d.publisher != nil {
		err := d.publisher.Publish(ctx, ev)
		metrics.Notification("sns", err)
		if err != nil {
			errs = append(errs, fmt.Errorf("publish %s: %w", ev.Type, err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	d.logger.Debug("notification dispatched", "event", ev.Type, "inspection_id", ev.InspectionID, "recipients", len(recipients))
	return nil
}
