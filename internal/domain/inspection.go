// Package domain contains core business types and interfaces.
//
// This file defines the Inspection aggregate that tracks one rental's
// condition inspections from pre-rental handover to post-rental return.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Inspection Status
// =============================================================================

// InspectionStatus is the single discriminant of where an inspection is in
// its lifecycle. It is computed by the workflow state machine only.
type InspectionStatus string

const (
	// InspectionStatusCreated indicates the inspection exists but is waiting on
	// a prerequisite (payment for third-party inspections).
	InspectionStatusCreated InspectionStatus = "created"

	// InspectionStatusPrePending indicates the owner has not documented the item yet.
	InspectionStatusPrePending InspectionStatus = "pre_pending"

	// InspectionStatusPreSubmitted indicates the owner's pre-inspection awaits
	// the renter's review.
	InspectionStatusPreSubmitted InspectionStatus = "pre_submitted"

	InspectionStatusPreAccepted    InspectionStatus = "pre_accepted"
	InspectionStatusPreDiscrepancy InspectionStatus = "pre_discrepancy"

	// InspectionStatusRentalActive indicates the item is with the renter.
	InspectionStatusRentalActive InspectionStatus = "rental_active"

	// InspectionStatusPostEligible indicates the booking window has ended and
	// the renter may document the return.
	InspectionStatusPostEligible InspectionStatus = "post_eligible"

	// InspectionStatusPostSubmitted indicates the renter's post-inspection
	// awaits the owner's review.
	InspectionStatusPostSubmitted InspectionStatus = "post_submitted"

	InspectionStatusPostAccepted InspectionStatus = "post_accepted"

	// InspectionStatusPostDisputed indicates the owner disputed the return and
	// an external resolver must act.
	InspectionStatusPostDisputed InspectionStatus = "post_disputed"

	// InspectionStatusClosed is terminal.
	InspectionStatusClosed InspectionStatus = "closed"
)

// String returns the string representation of the status.
func (s InspectionStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is a recognized value.
func (s InspectionStatus) IsValid() bool {
	switch s {
	case InspectionStatusCreated, InspectionStatusPrePending, InspectionStatusPreSubmitted,
		InspectionStatusPreAccepted, InspectionStatusPreDiscrepancy, InspectionStatusRentalActive,
		InspectionStatusPostEligible, InspectionStatusPostSubmitted, InspectionStatusPostAccepted,
		InspectionStatusPostDisputed, InspectionStatusClosed:
		return true
	}
	return false
}

// IsTerminal returns true once no further party action is possible.
func (s InspectionStatus) IsTerminal() bool {
	return s == InspectionStatusClosed
}

// =============================================================================
// Inspection Type, Party, Payment
// =============================================================================

// InspectionType identifies which exchange an inspection was requested for.
type InspectionType string

const (
	InspectionTypePreRental        InspectionType = "pre_rental"
	InspectionTypePostRental       InspectionType = "post_rental"
	InspectionTypeDamageAssessment InspectionType = "damage_assessment"
)

// IsValid returns true if the type is a recognized value.
func (t InspectionType) IsValid() bool {
	switch t {
	case InspectionTypePreRental, InspectionTypePostRental, InspectionTypeDamageAssessment:
		return true
	}
	return false
}

// Party is the role of whoever acts on an inspection.
type Party string

const (
	PartyOwner     Party = "owner"
	PartyRenter    Party = "renter"
	PartyInspector Party = "inspector"
	PartyAdmin     Party = "admin"
	PartySystem    Party = "system"
)

// IsValid returns true if the party is a recognized value.
func (p Party) IsValid() bool {
	switch p {
	case PartyOwner, PartyRenter, PartyInspector, PartyAdmin, PartySystem:
		return true
	}
	return false
}

// CanResolveDisputes returns true for external resolvers.
func (p Party) CanResolveDisputes() bool {
	return p == PartyInspector || p == PartyAdmin
}

// PaymentStatus is the settlement state of a third-party inspection fee.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING_PAYMENT"
	PaymentStatusPaid    PaymentStatus = "PAID"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

// InspectionTier is the service level of a third-party inspection.
type InspectionTier string

const (
	InspectionTierBasic    InspectionTier = "basic"
	InspectionTierStandard InspectionTier = "standard"
	InspectionTierPremium  InspectionTier = "premium"
)

// IsValid returns true if the tier is a recognized value.
func (t InspectionTier) IsValid() bool {
	switch t {
	case InspectionTierBasic, InspectionTierStandard, InspectionTierPremium:
		return true
	}
	return false
}

// =============================================================================
// Submissions and Reviews
// =============================================================================

// OwnerPreInspectionData is the owner's documentation of the item before the
// rental starts. It is written exactly once.
type OwnerPreInspectionData struct {
	SubmissionID uuid.UUID           `json:"submissionId"`
	Condition    ConditionAssessment `json:"condition"`
	Photos       []Photo             `json:"photos"`
	Notes        string              `json:"notes,omitempty"`
	Location     *GPSLocation        `json:"location,omitempty"`
	Timestamp    time.Time           `json:"timestamp"`
}

// RenterPreReview is the renter's acceptance of the owner's pre-inspection.
type RenterPreReview struct {
	SubmissionID       uuid.UUID `json:"submissionId"`
	Accepted           bool      `json:"accepted"`
	Concerns           []string  `json:"concerns,omitempty"`
	AdditionalRequests []string  `json:"additionalRequests,omitempty"`
	Timestamp          time.Time `json:"timestamp"`
}

// RenterPostInspectionData is the renter's documentation of the item on return.
type RenterPostInspectionData struct {
	SubmissionID   uuid.UUID           `json:"submissionId"`
	Condition      ConditionAssessment `json:"condition"`
	ReturnPhotos   []Photo             `json:"returnPhotos"`
	Notes          string              `json:"notes,omitempty"`
	ReturnLocation *GPSLocation        `json:"returnLocation"`
	Confirmed      bool                `json:"confirmed"`
	Timestamp      time.Time           `json:"timestamp"`
}

// OwnerPostReview is the owner's decision on the renter's post-inspection.
// Exactly one of Accepted and DisputeRaised is true once finalized.
type OwnerPostReview struct {
	SubmissionID    uuid.UUID   `json:"submissionId"`
	Accepted        bool        `json:"accepted"`
	ConfirmedAt     *time.Time  `json:"confirmedAt,omitempty"`
	DisputeRaised   bool        `json:"disputeRaised"`
	DisputeType     DisputeType `json:"disputeType,omitempty"`
	DisputeReason   string      `json:"disputeReason,omitempty"`
	DisputeEvidence string      `json:"disputeEvidence,omitempty"`
	DisputePhotos   []Photo     `json:"disputePhotos,omitempty"`
}

// IsFinal returns true when exactly one decision is set.
func (r OwnerPostReview) IsFinal() bool {
	return r.Accepted != r.DisputeRaised
}

// =============================================================================
// Inspection Domain Type
// =============================================================================

// Inspection is the aggregate root for one rental's inspection lifecycle.
// Submissions, reviews and disputes are owned by and embedded in it.
type Inspection struct {
	ID             uuid.UUID        `json:"id"`
	BookingID      uuid.UUID        `json:"bookingId"`
	ProductID      uuid.UUID        `json:"productId"`
	InspectionType InspectionType   `json:"inspectionType"`
	Status         InspectionStatus `json:"status"`

	OwnerPreInspection *OwnerPreInspectionData `json:"ownerPreInspectionData,omitempty"`
	RenterPreReview    *RenterPreReview        `json:"renterPreReview,omitempty"`

	RenterPreReviewAccepted   bool `json:"renterPreReviewAccepted"`
	RenterDiscrepancyReported bool `json:"renterDiscrepancyReported"`

	RenterPostInspection          *RenterPostInspectionData `json:"renterPostInspectionData,omitempty"`
	RenterPostInspectionConfirmed bool                      `json:"renterPostInspectionConfirmed"`

	OwnerPostReview         *OwnerPostReview `json:"ownerPostReview,omitempty"`
	OwnerPostReviewAccepted bool             `json:"ownerPostReviewAccepted"`
	OwnerDisputeRaised      bool             `json:"ownerDisputeRaised"`

	Disputes []Dispute `json:"disputes"`

	// Third-party inspection
	IsThirdPartyInspection bool           `json:"isThirdPartyInspection"`
	InspectionTier         InspectionTier `json:"inspectionTier,omitempty"`
	InspectionCostCents    int64          `json:"inspectionCost,omitempty"`
	Currency               string         `json:"currency,omitempty"`
	PaymentStatus          PaymentStatus  `json:"paymentStatus,omitempty"`
	PaymentReference       string         `json:"paymentReference,omitempty"`

	// Version increments on every successful save.
	Version   int64      `json:"version"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	ClosedAt  *time.Time `json:"closedAt,omitempty"`
}

// Clone returns a deep copy so pure transitions never mutate their input.
func (i Inspection) Clone() Inspection {
	c := i
	if i.OwnerPreInspection != nil {
		v := *i.OwnerPreInspection
		v.Photos = append([]Photo(nil), v.Photos...)
		c.OwnerPreInspection = &v
	}
	if i.RenterPreReview != nil {
		v := *i.RenterPreReview
		c.RenterPreReview = &v
	}
	if i.RenterPostInspection != nil {
		v := *i.RenterPostInspection
		v.ReturnPhotos = append([]Photo(nil), v.ReturnPhotos...)
		c.RenterPostInspection = &v
	}
	if i.OwnerPostReview != nil {
		v := *i.OwnerPostReview
		v.DisputePhotos = append([]Photo(nil), v.DisputePhotos...)
		c.OwnerPostReview = &v
	}
	c.Disputes = make([]Dispute, len(i.Disputes))
	for n, d := range i.Disputes {
		d.Photos = append([]Photo(nil), d.Photos...)
		c.Disputes[n] = d
	}
	return c
}

// RequiresPayment returns true if actions are blocked until the fee is paid.
func (i *Inspection) RequiresPayment() bool {
	return i.IsThirdPartyInspection && i.PaymentStatus != PaymentStatusPaid
}

// PreSubmissionID returns the id of the owner's pre-inspection, or uuid.Nil.
func (i *Inspection) PreSubmissionID() uuid.UUID {
	if i.OwnerPreInspection == nil {
		return uuid.Nil
	}
	return i.OwnerPreInspection.SubmissionID
}

// PostSubmissionID returns the id of the renter's post-inspection, or uuid.Nil.
func (i *Inspection) PostSubmissionID() uuid.UUID {
	if i.RenterPostInspection == nil {
		return uuid.Nil
	}
	return i.RenterPostInspection.SubmissionID
}

// FindDispute returns the dispute with the given id, or nil.
func (i *Inspection) FindDispute(id uuid.UUID) *Dispute {
	for n := range i.Disputes {
		if i.Disputes[n].ID == id {
			return &i.Disputes[n]
		}
	}
	return nil
}

// OpenDispute returns the unresolved post-rental dispute, if any.
func (i *Inspection) OpenDispute() *Dispute {
	for n := len(i.Disputes) - 1; n >= 0; n-- {
		d := &i.Disputes[n]
		if d.Phase == DisputePhasePostRental && d.Status.IsOpen() {
			return d
		}
	}
	return nil
}

// AllPhotos returns every photo referenced anywhere on the record.
func (i *Inspection) AllPhotos() []Photo {
	var photos []Photo
	if i.OwnerPreInspection != nil {
		photos = append(photos, i.OwnerPreInspection.Photos...)
	}
	if i.RenterPostInspection != nil {
		photos = append(photos, i.RenterPostInspection.ReturnPhotos...)
	}
	for _, d := range i.Disputes {
		photos = append(photos, d.Photos...)
	}
	return photos
}

// =============================================================================
// Inspection Service Parameters
// =============================================================================

// CreateInspectionParams contains parameters for requesting an inspection.
type CreateInspectionParams struct {
	BookingID              uuid.UUID
	ProductID              uuid.UUID
	InspectionType         InspectionType
	IsThirdPartyInspection bool
	InspectionTier         InspectionTier
	InspectionCostCents    int64
	Currency               string
}
