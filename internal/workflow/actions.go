package workflow

import (
	"time"

	"github.com/DukeRupert/rentcheck/internal/domain"
	"github.com/google/uuid"
)

// ActionKind names a transition request.
type ActionKind string

const (
	ActionSubmitPreInspection  ActionKind = "submit_pre_inspection"
	ActionAcceptPreInspection  ActionKind = "accept_pre_inspection"
	ActionReportDiscrepancy    ActionKind = "report_discrepancy"
	ActionStartRental          ActionKind = "start_rental"
	ActionSubmitPostInspection ActionKind = "submit_post_inspection"
	ActionAcceptPostInspection ActionKind = "accept_post_inspection"
	ActionRaisePostDispute     ActionKind = "raise_post_dispute"
	ActionReviewDispute        ActionKind = "review_dispute"
	ActionResolveDispute       ActionKind = "resolve_dispute"
	ActionRecordPayment        ActionKind = "record_payment"
)

// Action is a party's request to move an inspection forward.
type Action interface {
	Kind() ActionKind
}

// Env carries everything outside the record that a transition may read.
type Env struct {
	Now     time.Time
	Actor   domain.Party
	ActorID uuid.UUID

	// BookingEndsAt feeds the post-rental eligibility gate.
	BookingEndsAt *time.Time
}

// SubmitPreInspection is the owner documenting the item before handover.
type SubmitPreInspection struct {
	SubmissionID uuid.UUID
	Condition    domain.ConditionAssessment
	Photos       []domain.Photo
	Notes        string
	Location     *domain.GPSLocation
}

// AcceptPreInspection is the renter accepting the owner's pre-inspection.
type AcceptPreInspection struct {
	SubmissionID       uuid.UUID
	Concerns           []string
	AdditionalRequests []string
}

// ReportDiscrepancy is the renter disagreeing with the owner's pre-inspection.
type ReportDiscrepancy struct {
	SubmissionID uuid.UUID
	DisputeID    uuid.UUID
	DisputeType  domain.DisputeType
	Issues       []string
	Notes        string
	Photos       []domain.Photo
}

// StartRental records that the item was handed over.
type StartRental struct{}

// SubmitPostInspection is the renter documenting the item on return.
type SubmitPostInspection struct {
	SubmissionID   uuid.UUID
	Condition      domain.ConditionAssessment
	ReturnPhotos   []domain.Photo
	Notes          string
	ReturnLocation *domain.GPSLocation
	Confirmed      bool
}

// AcceptPostInspection is the owner accepting the returned item's condition.
type AcceptPostInspection struct {
	SubmissionID uuid.UUID
}

// RaisePostDispute is the owner disputing the renter's post-inspection.
type RaisePostDispute struct {
	SubmissionID uuid.UUID
	DisputeID    uuid.UUID
	DisputeType  domain.DisputeType
	Reason       string
	Evidence     string
	Photos       []domain.Photo
}

// ReviewDispute is an external resolver picking up a pending dispute.
type ReviewDispute struct {
	DisputeID uuid.UUID
}

// ResolveDispute is an external resolver's final outcome on a dispute.
type ResolveDispute struct {
	DisputeID       uuid.UUID
	Outcome         domain.DisputeStatus
	ResolutionNotes string
}

// RecordPayment stores the gateway's view of a third-party inspection fee.
type RecordPayment struct {
	Status    domain.PaymentStatus
	Reference string
}

func (SubmitPreInspection) Kind() ActionKind  { return ActionSubmitPreInspection }
func (AcceptPreInspection) Kind() ActionKind  { return ActionAcceptPreInspection }
func (ReportDiscrepancy) Kind() ActionKind    { return ActionReportDiscrepancy }
func (StartRental) Kind() ActionKind          { return ActionStartRental }
func (SubmitPostInspection) Kind() ActionKind { return ActionSubmitPostInspection }
func (AcceptPostInspection) Kind() ActionKind { return ActionAcceptPostInspection }
func (RaisePostDispute) Kind() ActionKind     { return ActionRaisePostDispute }
func (ReviewDispute) Kind() ActionKind        { return ActionReviewDispute }
func (ResolveDispute) Kind() ActionKind       { return ActionResolveDispute }
func (RecordPayment) Kind() ActionKind        { return ActionRecordPayment }
