// Package jobs contains the background job handlers run by the worker.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/DukeRupert/rentcheck/internal/email"
	"github.com/DukeRupert/rentcheck/internal/metrics"
	"github.com/DukeRupert/rentcheck/internal/worker"
)

// SendNotificationHandler delivers one workflow notification by email.
type SendNotificationHandler struct {
	emailService email.EmailService
	logger       *slog.Logger
}

// NewSendNotificationHandler creates a new handler for notification jobs.
func NewSendNotificationHandler(emailService email.EmailService, logger *slog.Logger) *SendNotificationHandler {
	return &SendNotificationHandler{
		emailService: emailService,
		logger:       logger,
	}
}

// Type returns the job type identifier.
func (h *SendNotificationHandler) Type() string {
	return worker.JobTypeSendNotification
}

// Handle sends the email. A recipient without an address cannot be helped
// by retrying and fails permanently.
func (h *SendNotificationHandler) Handle(ctx context.Context, payload []byte) error {
	var p worker.SendNotificationPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return worker.NewPermanentError(fmt.Errorf("invalid payload: %w", err))
	}
	if p.Event.Type == "" {
		return worker.NewPermanentError(errors.New("notification has no event type"))
	}
	if p.Recipient.Email == "" {
		h.logger.Warn("notification recipient has no email address",
			"event", p.Event.Type,
			"inspection_id", p.Event.InspectionID,
			"party", p.Recipient.Party,
		)
		return worker.NewPermanentError(errors.New("recipient has no email address"))
	}

	err := h.emailService.SendNotification(ctx, p.Recipient, p.Event)
	metrics.Notification("email", err)
	if err != nil {
		return fmt.Errorf("send %s notification: %w", p.Event.Type, err)
	}
	return nil
}
