package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestDisputeStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from DisputeStatus
		to   DisputeStatus
		want bool
	}{
		// Valid transitions
		{"pending to under review", DisputeStatusPending, DisputeStatusUnderReview, true},
		{"pending to resolved", DisputeStatusPending, DisputeStatusResolved, true},
		{"pending to rejected", DisputeStatusPending, DisputeStatusRejected, true},
		{"under review to resolved", DisputeStatusUnderReview, DisputeStatusResolved, true},
		{"under review to rejected", DisputeStatusUnderReview, DisputeStatusRejected, true},

		// Invalid transitions
		{"under review to pending", DisputeStatusUnderReview, DisputeStatusPending, false},
		{"resolved to rejected", DisputeStatusResolved, DisputeStatusRejected, false},
		{"rejected to resolved", DisputeStatusRejected, DisputeStatusResolved, false},
		{"resolved to under review", DisputeStatusResolved, DisputeStatusUnderReview, false},
		{"pending to pending", DisputeStatusPending, DisputeStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestInspection_OpenDispute(t *testing.T) {
	pre := Dispute{ID: uuid.New(), Phase: DisputePhasePreRental, Status: DisputeStatusPending}
	rejected := Dispute{ID: uuid.New(), Phase: DisputePhasePostRental, Status: DisputeStatusRejected}
	open := Dispute{ID: uuid.New(), Phase: DisputePhasePostRental, Status: DisputeStatusUnderReview}

	rec := Inspection{Disputes: []Dispute{pre, rejected}}
	assert.Nil(t, rec.OpenDispute(), "pre-rental discrepancies are not post-rental disputes")

	rec.Disputes = append(rec.Disputes, open)
	got := rec.OpenDispute()
	if assert.NotNil(t, got) {
		assert.Equal(t, open.ID, got.ID)
	}

	assert.NotNil(t, rec.FindDispute(pre.ID))
	assert.Nil(t, rec.FindDispute(uuid.New()))
}

func TestInspection_Clone(t *testing.T) {
	rec := Inspection{
		OwnerPreInspection: &OwnerPreInspectionData{Photos: []Photo{{URL: "a"}}},
		Disputes:           []Dispute{{Reason: "dent", Photos: []Photo{{URL: "b"}}}},
	}

	c := rec.Clone()
	c.OwnerPreInspection.Photos[0].URL = "changed"
	c.Disputes[0].Reason = "changed"
	c.Disputes[0].Photos[0].URL = "changed"

	assert.Equal(t, "a", rec.OwnerPreInspection.Photos[0].URL)
	assert.Equal(t, "dent", rec.Disputes[0].Reason)
	assert.Equal(t, "b", rec.Disputes[0].Photos[0].URL)
}

func TestInspection_RequiresPayment(t *testing.T) {
	tests := []struct {
		name string
		rec  Inspection
		want bool
	}{
		{"self inspection", Inspection{}, false},
		{"third party pending", Inspection{IsThirdPartyInspection: true, PaymentStatus: PaymentStatusPending}, true},
		{"third party failed", Inspection{IsThirdPartyInspection: true, PaymentStatus: PaymentStatusFailed}, true},
		{"third party paid", Inspection{IsThirdPartyInspection: true, PaymentStatus: PaymentStatusPaid}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rec.RequiresPayment())
		})
	}
}

func TestOwnerPostReview_IsFinal(t *testing.T) {
	assert.False(t, OwnerPostReview{}.IsFinal())
	assert.True(t, OwnerPostReview{Accepted: true}.IsFinal())
	assert.True(t, OwnerPostReview{DisputeRaised: true}.IsFinal())
	assert.False(t, OwnerPostReview{Accepted: true, DisputeRaised: true}.IsFinal())
}

func TestBooking_PartyFor(t *testing.T) {
	b := Booking{OwnerID: uuid.New(), RenterID: uuid.New()}

	assert.Equal(t, PartyOwner, b.PartyFor(b.OwnerID))
	assert.Equal(t, PartyRenter, b.PartyFor(b.RenterID))
	assert.Equal(t, Party(""), b.PartyFor(uuid.New()))
}
