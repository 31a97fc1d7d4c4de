package repository

import (
	"context"

	"github.com/google/uuid"
)

const getBooking = `-- name: GetBooking :one
SELECT id, product_id, owner_id, renter_id, owner_email, renter_email, starts_at, ends_at, status
FROM bookings
WHERE id = $1`

func (q *Queries) GetBooking(ctx context.Context, id uuid.UUID) (Booking, error) {
	row := q.db.QueryRowContext(ctx, getBooking, id)
	var b Booking
	err := row.Scan(
		&b.ID,
		&b.ProductID,
		&b.OwnerID,
		&b.RenterID,
		&b.OwnerEmail,
		&b.RenterEmail,
		&b.StartsAt,
		&b.EndsAt,
		&b.Status,
	)
	return b, err
}
