package domain

import (
	"time"

	"github.com/google/uuid"
)

// BookingStatus is the marketplace's booking state. The inspection workflow
// only reads it.
type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusActive    BookingStatus = "active"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusExpired   BookingStatus = "expired"
)

// Booking is the read-only projection of a rental booking the workflow needs.
// EndsAt is the sole input to the post-rental eligibility gate.
type Booking struct {
	ID          uuid.UUID
	ProductID   uuid.UUID
	OwnerID     uuid.UUID
	RenterID    uuid.UUID
	OwnerEmail  string
	RenterEmail string
	StartsAt    time.Time
	EndsAt      time.Time
	Status      BookingStatus
}

// PartyFor returns the role a user plays on this booking, or "" if none.
func (b *Booking) PartyFor(userID uuid.UUID) Party {
	switch userID {
	case b.OwnerID:
		return PartyOwner
	case b.RenterID:
		return PartyRenter
	}
	return ""
}

// IsCancelled returns true if the booking will never run.
func (b *Booking) IsCancelled() bool {
	return b.Status == BookingStatusCancelled
}
