package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a workflow notification.
type EventType string

const (
	EventInspectionCreated     EventType = "inspection.created"
	EventInspectionPaid        EventType = "inspection.paid"
	EventPreInspectionSubmit   EventType = "inspection.pre_submitted"
	EventPreInspectionAccepted EventType = "inspection.pre_accepted"
	EventDiscrepancyReported   EventType = "inspection.discrepancy_reported"
	EventRentalStarted         EventType = "inspection.rental_started"
	EventPostInspectionSubmit  EventType = "inspection.post_submitted"
	EventPostInspectionClosed  EventType = "inspection.closed"
	EventDisputeRaised         EventType = "dispute.raised"
	EventDisputeUnderReview    EventType = "dispute.under_review"
	EventDisputeResolved       EventType = "dispute.resolved"
	EventDisputeRejected       EventType = "dispute.rejected"
)

// Recipient is someone to notify about a workflow event.
type Recipient struct {
	UserID uuid.UUID `json:"user_id"`
	Party  Party     `json:"party"`
	Email  string    `json:"email,omitempty"`
}

// Event is a fire-and-forget notification about an inspection.
type Event struct {
	Type         EventType        `json:"type"`
	InspectionID uuid.UUID        `json:"inspection_id"`
	BookingID    uuid.UUID        `json:"booking_id"`
	DisputeID    *uuid.UUID       `json:"dispute_id,omitempty"`
	Status       InspectionStatus `json:"status"`
	OccurredAt   time.Time        `json:"occurred_at"`
}
