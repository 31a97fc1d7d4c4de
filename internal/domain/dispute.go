package domain

import (
	"time"

	"github.com/google/uuid"
)

// DisputeType is the closed set of dispute categories.
type DisputeType string

const (
	DisputeTypeDamageAssessment      DisputeType = "damage_assessment"
	DisputeTypeConditionDisagreement DisputeType = "condition_disagreement"
	DisputeTypeCostDispute           DisputeType = "cost_dispute"
	DisputeTypeProcedureViolation    DisputeType = "procedure_violation"
	DisputeTypeOther                 DisputeType = "other"
)

// DefaultDiscrepancyType is assigned to renter pre-rental discrepancy reports.
const DefaultDiscrepancyType = DisputeTypeConditionDisagreement

// IsValid returns true if the dispute type is a recognized value.
func (t DisputeType) IsValid() bool {
	switch t {
	case DisputeTypeDamageAssessment, DisputeTypeConditionDisagreement,
		DisputeTypeCostDispute, DisputeTypeProcedureViolation, DisputeTypeOther:
		return true
	}
	return false
}

// DisputeStatus is the resolution state of a dispute.
type DisputeStatus string

const (
	DisputeStatusPending     DisputeStatus = "pending"
	DisputeStatusUnderReview DisputeStatus = "under_review"
	DisputeStatusResolved    DisputeStatus = "resolved"
	DisputeStatusRejected    DisputeStatus = "rejected"
)

// IsOpen returns true until the dispute reaches a final outcome.
func (s DisputeStatus) IsOpen() bool {
	return s == DisputeStatusPending || s == DisputeStatusUnderReview
}

// CanTransitionTo checks if the dispute can move to the target status.
//
// Valid transitions:
// - pending -> under_review
// - pending -> resolved | rejected
// - under_review -> resolved | rejected
func (s DisputeStatus) CanTransitionTo(target DisputeStatus) bool {
	switch s {
	case DisputeStatusPending:
		return target == DisputeStatusUnderReview || target == DisputeStatusResolved || target == DisputeStatusRejected
	case DisputeStatusUnderReview:
		return target == DisputeStatusResolved || target == DisputeStatusRejected
	}
	return false
}

// DisputePhase records which exchange a dispute was raised against.
type DisputePhase string

const (
	DisputePhasePreRental  DisputePhase = "pre_rental"
	DisputePhasePostRental DisputePhase = "post_rental"
)

// Dispute is a formal disagreement with the other party's submission. Disputes
// are append-only: resolution updates status, nothing is ever deleted.
type Dispute struct {
	ID           uuid.UUID     `json:"id"`
	InspectionID uuid.UUID     `json:"inspectionId"`
	SubmissionID uuid.UUID     `json:"submissionId"`
	Phase        DisputePhase  `json:"phase"`
	RaisedBy     Party         `json:"raisedBy"`
	DisputeType  DisputeType   `json:"disputeType"`
	Reason       string        `json:"reason"`
	Evidence     string        `json:"evidence,omitempty"`
	Issues       []string      `json:"issues,omitempty"`
	Photos       []Photo       `json:"photos,omitempty"`
	Status       DisputeStatus `json:"status"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`

	ResolvedAt      *time.Time `json:"resolvedAt,omitempty"`
	ResolvedBy      *uuid.UUID `json:"resolvedBy,omitempty"`
	ResolutionNotes string     `json:"resolutionNotes,omitempty"`
}
