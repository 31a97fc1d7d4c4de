package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

type Booking struct {
	ID          uuid.UUID
	ProductID   uuid.UUID
	OwnerID     uuid.UUID
	RenterID    uuid.UUID
	OwnerEmail  string
	RenterEmail string
	StartsAt    time.Time
	EndsAt      time.Time
	Status      string
}

type Inspection struct {
	ID                            uuid.UUID
	BookingID                     uuid.UUID
	ProductID                     uuid.UUID
	InspectionType                string
	Status                        string
	OwnerPreInspection            pqtype.NullRawMessage
	RenterPreReview               pqtype.NullRawMessage
	RenterPreReviewAccepted       bool
	RenterDiscrepancyReported     bool
	RenterPostInspection          pqtype.NullRawMessage
	RenterPostInspectionConfirmed bool
	OwnerPostReview               pqtype.NullRawMessage
	OwnerPostReviewAccepted       bool
	OwnerDisputeRaised            bool
	IsThirdParty                  bool
	InspectionTier                sql.NullString
	InspectionCostCents           int64
	Currency                      sql.NullString
	PaymentStatus                 sql.NullString
	PaymentReference              sql.NullString
	Version                       int64
	CreatedAt                     time.Time
	UpdatedAt                     time.Time
	ClosedAt                      sql.NullTime
}

type Dispute struct {
	ID              uuid.UUID
	InspectionID    uuid.UUID
	SubmissionID    uuid.UUID
	Phase           string
	RaisedBy        string
	DisputeType     string
	Reason          string
	Evidence        string
	Issues          []string
	Photos          json.RawMessage
	Status          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ResolvedAt      sql.NullTime
	ResolvedBy      uuid.NullUUID
	ResolutionNotes string
}

type Job struct {
	ID           uuid.UUID
	JobType      string
	Payload      json.RawMessage
	Status       string
	Priority     int32
	Attempts     int32
	MaxAttempts  int32
	ScheduledAt  time.Time
	StartedAt    sql.NullTime
	CompletedAt  sql.NullTime
	ErrorMessage sql.NullString
	CreatedAt    time.Time
}
