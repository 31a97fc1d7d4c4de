package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

const inspectionColumns = `id, booking_id, product_id, inspection_type, status,
	owner_pre_inspection, renter_pre_review, renter_pre_review_accepted, renter_discrepancy_reported,
	renter_post_inspection, renter_post_inspection_confirmed,
	owner_post_review, owner_post_review_accepted, owner_dispute_raised,
	is_third_party, inspection_tier, inspection_cost_cents, currency, payment_status, payment_reference,
	version, created_at, updated_at, closed_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInspection(row rowScanner) (Inspection, error) {
	var i Inspection
	err := row.Scan(
		&i.ID,
		&i.BookingID,
		&i.ProductID,
		&i.InspectionType,
		&i.Status,
		&i.OwnerPreInspection,
		&i.RenterPreReview,
		&i.RenterPreReviewAccepted,
		&i.RenterDiscrepancyReported,
		&i.RenterPostInspection,
		&i.RenterPostInspectionConfirmed,
		&i.OwnerPostReview,
		&i.OwnerPostReviewAccepted,
		&i.OwnerDisputeRaised,
		&i.IsThirdParty,
		&i.InspectionTier,
		&i.InspectionCostCents,
		&i.Currency,
		&i.PaymentStatus,
		&i.PaymentReference,
		&i.Version,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.ClosedAt,
	)
	return i, err
}

const createInspection = `-- name: CreateInspection :one
INSERT INTO inspections (
	id, booking_id, product_id, inspection_type, status,
	is_third_party, inspection_tier, inspection_cost_cents, currency, payment_status,
	version, created_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1, $11, $11
)
RETURNING ` + inspectionColumns

type CreateInspectionParams struct {
	ID                  uuid.UUID
	BookingID           uuid.UUID
	ProductID           uuid.UUID
	InspectionType      string
	Status              string
	IsThirdParty        bool
	InspectionTier      sql.NullString
	InspectionCostCents int64
	Currency            sql.NullString
	PaymentStatus       sql.NullString
	CreatedAt           time.Time
}

func (q *Queries) CreateInspection(ctx context.Context, arg CreateInspectionParams) (Inspection, error) {
	row := q.db.QueryRowContext(ctx, createInspection,
		arg.ID,
		arg.BookingID,
		arg.ProductID,
		arg.InspectionType,
		arg.Status,
		arg.IsThirdParty,
		arg.InspectionTier,
		arg.InspectionCostCents,
		arg.Currency,
		arg.PaymentStatus,
		arg.CreatedAt,
	)
	return scanInspection(row)
}

const getInspection = `-- name: GetInspection :one
SELECT ` + inspectionColumns + `
FROM inspections
WHERE id = $1`

func (q *Queries) GetInspection(ctx context.Context, id uuid.UUID) (Inspection, error) {
	row := q.db.QueryRowContext(ctx, getInspection, id)
	return scanInspection(row)
}

const getInspectionVersion = `-- name: GetInspectionVersion :one
SELECT version FROM inspections WHERE id = $1`

func (q *Queries) GetInspectionVersion(ctx context.Context, id uuid.UUID) (int64, error) {
	row := q.db.QueryRowContext(ctx, getInspectionVersion, id)
	var version int64
	err := row.Scan(&version)
	return version, err
}

const listInspectionsByBooking = `-- name: ListInspectionsByBooking :many
SELECT ` + inspectionColumns + `
FROM inspections
WHERE booking_id = $1
ORDER BY created_at ASC`

func (q *Queries) ListInspectionsByBooking(ctx context.Context, bookingID uuid.UUID) ([]Inspection, error) {
	rows, err := q.db.QueryContext(ctx, listInspectionsByBooking, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Inspection
	for rows.Next() {
		i, err := scanInspection(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateInspection = `-- name: UpdateInspection :one
UPDATE inspections SET
	status = $3,
	owner_pre_inspection = $4,
	renter_pre_review = $5,
	renter_pre_review_accepted = $6,
	renter_discrepancy_reported = $7,
	renter_post_inspection = $8,
	renter_post_inspection_confirmed = $9,
	owner_post_review = $10,
	owner_post_review_accepted = $11,
	owner_dispute_raised = $12,
	payment_status = $13,
	payment_reference = $14,
	closed_at = $15,
	updated_at = $16,
	version = version + 1
WHERE id = $1 AND version = $2
RETURNING version`

type UpdateInspectionParams struct {
	ID                            uuid.UUID
	ExpectedVersion               int64
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
	PaymentStatus                 sql.NullString
	PaymentReference              sql.NullString
	ClosedAt                      sql.NullTime
	UpdatedAt                     time.Time
}

// UpdateInspection writes the record only if its version still matches.
// It returns sql.ErrNoRows when the version moved or the row is gone.
func (q *Queries) UpdateInspection(ctx context.Context, arg UpdateInspectionParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, updateInspection,
		arg.ID,
		arg.ExpectedVersion,
		arg.Status,
		arg.OwnerPreInspection,
		arg.RenterPreReview,
		arg.RenterPreReviewAccepted,
		arg.RenterDiscrepancyReported,
		arg.RenterPostInspection,
		arg.RenterPostInspectionConfirmed,
		arg.OwnerPostReview,
		arg.OwnerPostReviewAccepted,
		arg.OwnerDisputeRaised,
		arg.PaymentStatus,
		arg.PaymentReference,
		arg.ClosedAt,
		arg.UpdatedAt,
	)
	var version int64
	err := row.Scan(&version)
	return version, err
}
