package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DukeRupert/rentcheck/internal/billing"
	"github.com/DukeRupert/rentcheck/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVerifier struct {
	event billing.WebhookEvent
	err   error
	body  []byte
	sig   string
}

func (v *fakeVerifier) VerifyWebhook(payload []byte, signature string) (billing.WebhookEvent, error) {
	v.body, v.sig = payload, signature
	return v.event, v.err
}

func postWebhook(t *testing.T, h *WebhookHandler) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{"id":"evt_1"}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	return serve(mux, req)
}

func TestWebhookHandler(t *testing.T) {
	inspectionID := uuid.New()
	paymentEvent := billing.WebhookEvent{
		ID:           "evt_1",
		Type:         "payment_intent.succeeded",
		InspectionID: inspectionID,
		Reference:    "pi_123",
	}

	t.Run("payment event refreshes inspection", func(t *testing.T) {
		v := &fakeVerifier{event: paymentEvent}
		svc := &fakeService{rec: &domain.Inspection{ID: inspectionID, PaymentStatus: domain.PaymentStatusPaid}}
		rec := postWebhook(t, NewWebhookHandler(v, svc, discardLogger()))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Get", svc.method)
		assert.Equal(t, inspectionID, svc.id)
		assert.Equal(t, domain.RoleSystem, svc.actor.Role)
		assert.Equal(t, "t=1,v1=abc", v.sig)
		assert.JSONEq(t, `{"id":"evt_1"}`, string(v.body))
	})

	t.Run("bad signature", func(t *testing.T) {
		v := &fakeVerifier{err: errors.New("no valid signature")}
		svc := &fakeService{}
		rec := postWebhook(t, NewWebhookHandler(v, svc, discardLogger()))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, svc.method)
	})

	t.Run("other event types are acknowledged", func(t *testing.T) {
		v := &fakeVerifier{event: billing.WebhookEvent{ID: "evt_2", Type: "customer.created"}}
		svc := &fakeService{}
		rec := postWebhook(t, NewWebhookHandler(v, svc, discardLogger()))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, svc.method)
	})

	t.Run("unknown inspection is acknowledged", func(t *testing.T) {
		v := &fakeVerifier{event: paymentEvent}
		svc := &fakeService{err: domain.NotFound("store.get", "inspection", inspectionID.String())}
		rec := postWebhook(t, NewWebhookHandler(v, svc, discardLogger()))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("refresh failure asks stripe to retry", func(t *testing.T) {
		v := &fakeVerifier{event: paymentEvent}
		svc := &fakeService{err: domain.Internal(errors.New("db down"), "store.get", "failed to load inspection")}
		rec := postWebhook(t, NewWebhookHandler(v, svc, discardLogger()))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("billing not configured", func(t *testing.T) {
		svc := &fakeService{}
		rec := postWebhook(t, NewWebhookHandler(nil, svc, discardLogger()))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, svc.method)
	})
}

func TestHealthHandler(t *testing.T) {
	get := func(checks map[string]HealthCheck) *httptest.ResponseRecorder {
		mux := http.NewServeMux()
		NewHealthHandler(checks, discardLogger()).RegisterRoutes(mux)
		return serve(mux, httptest.NewRequest(http.MethodGet, "/health", nil))
	}
	ok := func(context.Context) error { return nil }

	rec := get(map[string]HealthCheck{"database": ok})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"database":"ok"}}`, rec.Body.String())

	rec = get(map[string]HealthCheck{
		"database": ok,
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"degraded","checks":{"database":"ok","redis":"unavailable"}}`, rec.Body.String())
}
