package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/DukeRupert/rentcheck/internal/domain"
	"github.com/DukeRupert/rentcheck/internal/repository"
	"github.com/google/uuid"
)

type bookingLookup struct {
	queries *repository.Queries
}

// NewBookingLookup reads bookings from the marketplace's bookings table.
func NewBookingLookup(queries *repository.Queries) BookingLookup {
	return &bookingLookup{queries: queries}
}

func (b *bookingLookup) GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	const op = "booking.get"

	row, err := b.queries.GetBooking(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Booking{}, domain.NotFound(op, "booking", id.String())
		}
		return domain.Booking{}, domain.Internal(err, op, "failed to fetch booking")
	}
	return domain.Booking{
		ID:          row.ID,
		ProductID:   row.ProductID,
		OwnerID:     row.OwnerID,
		RenterID:    row.RenterID,
		OwnerEmail:  row.OwnerEmail,
		RenterEmail: row.RenterEmail,
		StartsAt:    row.StartsAt.UTC(),
		EndsAt:      row.EndsAt.UTC(),
		Status:      domain.BookingStatus(row.Status),
	}, nil
}
