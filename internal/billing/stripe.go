// Package billing charges third-party inspection fees through Stripe.
package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/DukeRupert/rentcheck/internal/domain"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/paymentintent"
	"github.com/stripe/stripe-go/v79/webhook"
)

// MetadataInspectionID is the PaymentIntent metadata key carrying the
// inspection id.
const MetadataInspectionID = "inspection_id"

// Gateway charges inspection fees and reports their status.
type Gateway interface {
	Charge(ctx context.Context, req domain.ChargeRequest) (domain.PaymentResult, error)
	Status(ctx context.Context, reference string) (domain.PaymentResult, error)
}

// WebhookEvent is a verified payment notification.
type WebhookEvent struct {
	ID           string
	Type         string
	InspectionID uuid.UUID
	Reference    string
}

// WebhookVerifier authenticates incoming Stripe webhooks.
type WebhookVerifier interface {
	VerifyWebhook(payload []byte, signature string) (WebhookEvent, error)
}

// StripeGateway is the Stripe PaymentIntents implementation of Gateway.
type StripeGateway struct {
	webhookSecret string
}

// NewStripeGateway creates a Stripe-backed gateway.
//
// The secretKey authenticates API calls; webhookSecret verifies webhook
// signatures.
func NewStripeGateway(secretKey, webhookSecret string) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{webhookSecret: webhookSecret}
}

// Charge creates and confirms a PaymentIntent. A declined card is a FAILED
// result, not an error; errors mean Stripe could not be reached or rejected
// the request itself.
func (g *StripeGateway) Charge(ctx context.Context, req domain.ChargeRequest) (domain.PaymentResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(req.AmountCents),
		Currency:    stripe.String(req.Currency),
		Description: stripe.String(req.Description),
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)
	params.AddMetadata(MetadataInspectionID, req.InspectionID.String())

	if req.PaymentMethod != "" {
		params.PaymentMethod = stripe.String(req.PaymentMethod)
		params.Confirm = stripe.Bool(true)
		params.AutomaticPaymentMethods = &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		}
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) && serr.Type == stripe.ErrorTypeCard {
			result := domain.PaymentResult{Status: domain.PaymentStatusFailed}
			if serr.PaymentIntent != nil {
				result.Reference = serr.PaymentIntent.ID
			}
			return result, nil
		}
		return domain.PaymentResult{}, fmt.Errorf("stripe create payment intent: %w", err)
	}
	return domain.PaymentResult{Reference: pi.ID, Status: MapStatus(pi)}, nil
}

func (g *StripeGateway) Status(ctx context.Context, reference string) (domain.PaymentResult, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := paymentintent.Get(reference, params)
	if err != nil {
		return domain.PaymentResult{}, fmt.Errorf("stripe get payment intent: %w", err)
	}
	return domain.PaymentResult{Reference: pi.ID, Status: MapStatus(pi)}, nil
}

// VerifyWebhook checks the signature and extracts the PaymentIntent the
// event is about. Events for other objects come back with
// InspectionID set to uuid.Nil.
func (g *StripeGateway) VerifyWebhook(payload []byte, signature string) (WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, g.webhookSecret)
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("stripe webhook signature verification failed: %w", err)
	}
	out := WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil || event.Data.Object["object"] != "payment_intent" {
		return out, nil
	}

	if id, ok := event.Data.Object["id"].(string); ok {
		out.Reference = id
	}
	if md, ok := event.Data.Object["metadata"].(map[string]interface{}); ok {
		if raw, ok := md[MetadataInspectionID].(string); ok {
			if id, err := uuid.Parse(raw); err == nil {
				out.InspectionID = id
			}
		}
	}
	return out, nil
}

// MapStatus folds Stripe's PaymentIntent lifecycle into the three payment
// states an inspection tracks. An intent waiting for its first payment
// method is pending; one sent back after a declined attempt has failed.
func MapStatus(pi *stripe.PaymentIntent) domain.PaymentStatus {
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return domain.PaymentStatusPaid
	case stripe.PaymentIntentStatusCanceled:
		return domain.PaymentStatusFailed
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		if pi.LastPaymentError != nil {
			return domain.PaymentStatusFailed
		}
	}
	return domain.PaymentStatusPending
}
