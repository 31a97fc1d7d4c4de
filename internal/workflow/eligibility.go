package workflow

import (
	"time"

	"github.com/DukeRupert/rentcheck/internal/domain"
)

// IsPostInspectionEligible reports whether the post-rental phase may begin:
// true iff the booking end instant is at or before now.
//
// Both values are compared as UTC instants at full precision. Wall-clock
// components in a local zone are never compared, so offsets and daylight
// saving changes cannot move the result.
func IsPostInspectionEligible(bookingEnd, now time.Time) bool {
	return !bookingEnd.UTC().After(now.UTC())
}

// PostPhaseOpen is the OR of the explicit post-rental inspection type and the
// booking-end fallback. Either signal alone opens the post-rental phase.
func PostPhaseOpen(rec *domain.Inspection, bookingEnd *time.Time, now time.Time) bool {
	if rec.InspectionType == domain.InspectionTypePostRental {
		return true
	}
	return bookingEnd != nil && IsPostInspectionEligible(*bookingEnd, now)
}

// IsThirdPartyPayable reports whether a third-party inspection is waiting on
// its fee.
func IsThirdPartyPayable(rec *domain.Inspection) bool {
	return rec.IsThirdPartyInspection && rec.PaymentStatus == domain.PaymentStatusPending
}

// RequirePaid blocks submission and review actions on unpaid third-party
// inspections. It is a separate gate from post-rental eligibility.
func RequirePaid(op string, rec *domain.Inspection) error {
	if !rec.RequiresPayment() {
		return nil
	}
	if rec.PaymentStatus == domain.PaymentStatusFailed {
		return domain.PaymentRequired(op, "inspection payment failed; retry payment to continue")
	}
	return domain.PaymentRequired(op, "inspection must be paid before it can proceed")
}
