package workflow

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DukeRupert/rentcheck/internal/domain"
	"github.com/google/uuid"
)

// NewInspection validates params and builds a fresh record. The caller
// assigns the stored version.
func NewInspection(params domain.CreateInspectionParams, now time.Time) (domain.Inspection, error) {
	const op = OpCreate

	if params.BookingID == uuid.Nil {
		return domain.Inspection{}, domain.InvalidField(op, "bookingId", "booking id is required")
	}
	if params.ProductID == uuid.Nil {
		return domain.Inspection{}, domain.InvalidField(op, "productId", "product id is required")
	}
	if params.InspectionType == "" {
		params.InspectionType = domain.InspectionTypePreRental
	}
	if !params.InspectionType.IsValid() {
		return domain.Inspection{}, domain.InvalidField(op, "inspectionType",
			fmt.Sprintf("unknown inspection type %q", params.InspectionType))
	}

	now = now.UTC()
	rec := domain.Inspection{
		ID:             uuid.New(),
		BookingID:      params.BookingID,
		ProductID:      params.ProductID,
		InspectionType: params.InspectionType,
		Status:         InitialStatus(params.IsThirdPartyInspection, params.InspectionType),
		Disputes:       []domain.Dispute{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if params.IsThirdPartyInspection {
		if !params.InspectionTier.IsValid() {
			return domain.Inspection{}, domain.InvalidField(op, "inspectionTier",
				fmt.Sprintf("unknown inspection tier %q", params.InspectionTier))
		}
		if params.InspectionCostCents <= 0 {
			return domain.Inspection{}, domain.InvalidField(op, "inspectionCost", "inspection cost must be positive")
		}
		currency := strings.ToLower(strings.TrimSpace(params.Currency))
		if len(currency) != 3 {
			return domain.Inspection{}, domain.InvalidField(op, "currency", "currency must be a 3-letter ISO code")
		}
		rec.IsThirdPartyInspection = true
		rec.InspectionTier = params.InspectionTier
		rec.InspectionCostCents = params.InspectionCostCents
		rec.Currency = currency
		rec.PaymentStatus = domain.PaymentStatusPending
	}

	return rec, nil
}

// InitialStatus is where a new record starts. Third-party records wait for
// payment first.
func InitialStatus(thirdParty bool, t domain.InspectionType) domain.InspectionStatus {
	if thirdParty {
		return domain.InspectionStatusCreated
	}
	return openStatus(t)
}

// openStatus is the first actionable status for an inspection type.
// Post-rental inspections skip the pre-rental exchange.
func openStatus(t domain.InspectionType) domain.InspectionStatus {
	if t == domain.InspectionTypePostRental {
		return domain.InspectionStatusRentalActive
	}
	return domain.InspectionStatusPrePending
}

// ProjectStatus returns the status a reader should see. A rental_active record
// whose post-rental phase is open reads as post_eligible; the stored status
// moves only when the renter submits.
func ProjectStatus(rec *domain.Inspection, bookingEnd *time.Time, now time.Time) domain.InspectionStatus {
	if rec.Status == domain.InspectionStatusRentalActive && PostPhaseOpen(rec, bookingEnd, now) {
		return domain.InspectionStatusPostEligible
	}
	return rec.Status
}

// CheckInvariants reports a record whose flags contradict each other.
func CheckInvariants(rec *domain.Inspection) error {
	if !rec.Status.IsValid() {
		return fmt.Errorf("unknown status %q", rec.Status)
	}
	if rec.RenterPreReviewAccepted && rec.RenterDiscrepancyReported {
		return errors.New("pre-rental review both accepted and disputed")
	}
	if rec.OwnerPostReviewAccepted && rec.OwnerDisputeRaised {
		return errors.New("post-rental review both accepted and disputed")
	}
	if rec.OwnerPostReview != nil && !rec.OwnerPostReview.IsFinal() {
		return errors.New("post-rental review is incomplete")
	}
	if rec.RenterPostInspection != nil && !rec.RenterPostInspection.Confirmed {
		return errors.New("post-rental inspection is unconfirmed")
	}
	return nil
}
