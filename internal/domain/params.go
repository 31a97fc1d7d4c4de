package domain

import "github.com/google/uuid"

// SubmitPreInspectionParams is the owner's pre-rental documentation.
type SubmitPreInspectionParams struct {
	SubmissionID uuid.UUID
	Condition    ConditionAssessment
	Photos       []PhotoInput
	Notes        string
	Location     *GPSLocation
}

// PreReviewParams is the renter's decision on the owner's pre-inspection.
// Accepted=false reports a discrepancy with Concerns as the issue list.
type PreReviewParams struct {
	SubmissionID       uuid.UUID
	Accepted           bool
	Concerns           []string
	AdditionalRequests []string
	Notes              string
}

// DiscrepancyParams is a renter's pre-rental discrepancy report.
type DiscrepancyParams struct {
	SubmissionID uuid.UUID
	DisputeID    uuid.UUID
	DisputeType  DisputeType
	Issues       []string
	Notes        string
	Photos       []PhotoInput
}

// SubmitPostInspectionParams is the renter's return documentation.
type SubmitPostInspectionParams struct {
	SubmissionID   uuid.UUID
	Condition      ConditionAssessment
	ReturnPhotos   []PhotoInput
	Notes          string
	ReturnLocation *GPSLocation
	Confirmed      bool
}

// PostReviewParams is the owner's decision on the renter's post-inspection.
// Accepted=false raises a dispute.
type PostReviewParams struct {
	SubmissionID uuid.UUID
	Accepted     bool
	DisputeID    uuid.UUID
	DisputeType  DisputeType
	Reason       string
	Evidence     string
	Photos       []PhotoInput
}

// PayParams carries an optional gateway payment method.
type PayParams struct {
	PaymentMethod string
}

// ResolveDisputeParams is an external resolver's final outcome.
type ResolveDisputeParams struct {
	Outcome         DisputeStatus
	ResolutionNotes string
}
