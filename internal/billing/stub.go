package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/DukeRupert/rentcheck/internal/domain"
	"github.com/google/uuid"
)

// StubGateway approves every charge without contacting a processor. It is
// used in development when no Stripe key is configured. A payment method
// of "pm_card_declined" fails, mirroring Stripe's test card.
type StubGateway struct {
	mu       sync.Mutex
	payments map[string]domain.PaymentResult
	byKey    map[string]domain.PaymentResult
}

// NewStubGateway creates an in-memory gateway.
func NewStubGateway() *StubGateway {
	return &StubGateway{
		payments: make(map[string]domain.PaymentResult),
		byKey:    make(map[string]domain.PaymentResult),
	}
}

func (g *StubGateway) Charge(_ context.Context, req domain.ChargeRequest) (domain.PaymentResult, error) {
	if req.AmountCents <= 0 {
		return domain.PaymentResult{}, errors.New("stub charge: amount must be positive")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if res, ok := g.byKey[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		return res, nil
	}
	res := domain.PaymentResult{
		Reference: "pi_stub_" + uuid.NewString(),
		Status:    domain.PaymentStatusPaid,
	}
	if req.PaymentMethod == "pm_card_declined" {
		res.Status = domain.PaymentStatusFailed
	}
	g.payments[res.Reference] = res
	if req.IdempotencyKey != "" {
		g.byKey[req.IdempotencyKey] = res
	}
	return res, nil
}

func (g *StubGateway) Status(_ context.Context, reference string) (domain.PaymentResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	res, ok := g.payments[reference]
	if !ok {
		return domain.PaymentResult{}, fmt.Errorf("stub status: unknown payment %q", reference)
	}
	return res, nil
}
