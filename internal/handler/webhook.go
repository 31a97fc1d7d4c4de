// This file implements the Stripe webhook for third-party inspection
// payments.
//
// Route:
//   - POST /webhooks/stripe -> HandleStripeWebhook
//
// This route is PUBLIC (no actor middleware) because Stripe calls it
// directly. Authentication is via the Stripe webhook signature.

package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/DukeRupert/rentcheck/internal/billing"
	"github.com/DukeRupert/rentcheck/internal/domain"
	"github.com/DukeRupert/rentcheck/internal/service"
	"github.com/google/uuid"
)

const (
	maxWebhookBody  = 65536
	webhookDeadline = 10 * time.Second
)

// systemActor is who payment refreshes run as.
var systemActor = domain.Actor{Role: domain.RoleSystem}

// WebhookHandler handles incoming webhook events from Stripe.
type WebhookHandler struct {
	verifier billing.WebhookVerifier
	service  service.InspectionService
	logger   *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler. verifier may be nil when
// Stripe is not configured.
func NewWebhookHandler(verifier billing.WebhookVerifier, svc service.InspectionService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		verifier: verifier,
		service:  svc,
		logger:   logger,
	}
}

// RegisterRoutes registers webhook routes on the provided mux.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhooks/stripe", h.HandleStripeWebhook)
}

// HandleStripeWebhook verifies the event and, for PaymentIntent events
// tagged with an inspection, refreshes that inspection's payment status.
// The gateway remains the source of truth; the event only says when to look.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.verifier == nil {
		h.logger.Warn("stripe webhook received but billing is not configured")
		w.WriteHeader(http.StatusOK)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	event, err := h.verifier.VerifyWebhook(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.logger.Info("stripe webhook received", "type", event.Type, "id", event.ID)

	if !strings.HasPrefix(event.Type, "payment_intent.") || event.InspectionID == uuid.Nil {
		h.logger.Debug("unhandled webhook event", "type", event.Type)
		w.WriteHeader(http.StatusOK)
		return
	}

	// Stripe retries on non-2xx, so a failed refresh is reported back.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), webhookDeadline)
	defer cancel()
	rec, err := h.service.Get(ctx, systemActor, event.InspectionID)
	if err != nil {
		if domain.ErrorCode(err) == domain.ENOTFOUND {
			h.logger.Warn("webhook for unknown inspection", "inspection_id", event.InspectionID)
			w.WriteHeader(http.StatusOK)
			return
		}
		h.logger.Error("payment refresh failed", "inspection_id", event.InspectionID, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	h.logger.Info("payment status refreshed",
		"inspection_id", rec.ID,
		"payment_status", rec.PaymentStatus,
		"reference", event.Reference,
	)
	w.WriteHeader(http.StatusOK)
}
