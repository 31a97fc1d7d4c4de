package workflow

import (
	"testing"
	"time"

	"github.com/DukeRupert/rentcheck/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestIsPostInspectionEligible(t *testing.T) {
	end := time.Date(2025, 3, 9, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"one second before end", end.Add(-time.Second), false},
		{"one nanosecond before end", end.Add(-time.Nanosecond), false},
		{"exactly at end", end, true},
		{"one second after end", end.Add(time.Second), true},
		{"same calendar day earlier hour", end.Add(-2 * time.Hour), false},
		{"next day", end.Add(24 * time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPostInspectionEligible(end, tt.now))
		})
	}
}

func TestIsPostInspectionEligible_OffsetsAgree(t *testing.T) {
	// 2025-03-09 is a US daylight saving change day.
	end := time.Date(2025, 3, 9, 9, 30, 0, 0, time.UTC)

	newYork, err := time.LoadLocation("America/New_York")
	if err != nil {
		newYork = time.FixedZone("UTC-4", -4*60*60)
	}
	zones := []*time.Location{
		time.UTC,
		time.FixedZone("UTC+09:30", 9*60*60+30*60),
		time.FixedZone("UTC-07", -7*60*60),
		newYork,
	}

	for _, delta := range []time.Duration{-time.Second, 0, time.Second, -90 * time.Minute, 90 * time.Minute} {
		now := end.Add(delta)
		want := IsPostInspectionEligible(end, now)
		for _, endZone := range zones {
			for _, nowZone := range zones {
				got := IsPostInspectionEligible(end.In(endZone), now.In(nowZone))
				assert.Equal(t, want, got, "delta=%s end=%s now=%s", delta, endZone, nowZone)
			}
		}
	}
}

func TestPostPhaseOpen(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		typ  domain.InspectionType
		end  *time.Time
		want bool
	}{
		{"pre-rental type before end", domain.InspectionTypePreRental, &future, false},
		{"pre-rental type after end", domain.InspectionTypePreRental, &past, true},
		{"post-rental type before end", domain.InspectionTypePostRental, &future, true},
		{"post-rental type without booking end", domain.InspectionTypePostRental, nil, true},
		{"pre-rental type without booking end", domain.InspectionTypePreRental, nil, false},
		{"damage assessment after end", domain.InspectionTypeDamageAssessment, &past, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &domain.Inspection{InspectionType: tt.typ}
			assert.Equal(t, tt.want, PostPhaseOpen(rec, tt.end, now))
		})
	}
}

func TestRequirePaid(t *testing.T) {
	tests := []struct {
		name     string
		rec      domain.Inspection
		wantCode string
	}{
		{"self inspection", domain.Inspection{}, ""},
		{"third party paid", domain.Inspection{IsThirdPartyInspection: true, PaymentStatus: domain.PaymentStatusPaid}, ""},
		{"third party pending", domain.Inspection{IsThirdPartyInspection: true, PaymentStatus: domain.PaymentStatusPending}, domain.EPAYMENT},
		{"third party failed", domain.Inspection{IsThirdPartyInspection: true, PaymentStatus: domain.PaymentStatusFailed}, domain.EPAYMENT},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RequirePaid("test", &tt.rec)
			assert.Equal(t, tt.wantCode, domain.ErrorCode(err))
		})
	}

	assert.True(t, IsThirdPartyPayable(&domain.Inspection{IsThirdPartyInspection: true, PaymentStatus: domain.PaymentStatusPending}))
	assert.False(t, IsThirdPartyPayable(&domain.Inspection{IsThirdPartyInspection: true, PaymentStatus: domain.PaymentStatusFailed}))
	assert.False(t, IsThirdPartyPayable(&domain.Inspection{PaymentStatus: domain.PaymentStatusPending}))
}
