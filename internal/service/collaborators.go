package service

import (
	"context"

	"github.com/DukeRupert/rentcheck/internal/domain"
	"github.com/google/uuid"
)

// InspectionStore persists inspection records with optimistic versioning.
type InspectionStore interface {
	// Create inserts a new record at version 1. A second record of the same
	// type for a booking fails with domain.ECONFLICT.
	Create(ctx context.Context, rec domain.Inspection) (domain.Inspection, error)

	// Get returns domain.ENOTFOUND for unknown ids.
	Get(ctx context.Context, id uuid.UUID) (domain.Inspection, error)

	// Save writes rec only if the stored version equals expectedVersion and
	// returns the record at its new version. A moved version fails with
	// domain.ECONFLICT.
	Save(ctx context.Context, rec domain.Inspection, expectedVersion int64) (domain.Inspection, error)

	ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]domain.Inspection, error)

	// InspectionForDispute returns the id of the record holding a dispute.
	InspectionForDispute(ctx context.Context, disputeID uuid.UUID) (uuid.UUID, error)
}

// AttachmentStore stores photo uploads and removes them again.
type AttachmentStore interface {
	// Store uploads one photo under the inspection and returns its reference.
	// Store failures are domain.EUPLOAD; bad content is domain.EINVALID.
	Store(ctx context.Context, inspectionID uuid.UUID, kind string, upload domain.Upload) (domain.Photo, error)

	// Resolve turns the URL of a photo already stored under the inspection
	// into its reference. Any other URL is domain.EINVALID.
	Resolve(ctx context.Context, inspectionID uuid.UUID, rawURL string) (domain.Photo, error)

	// Remove deletes stored photos and their thumbnails. It returns the keys
	// that could not be deleted.
	Remove(ctx context.Context, photos []domain.Photo) ([]string, error)
}

// BookingLookup reads the booking an inspection belongs to.
type BookingLookup interface {
	GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error)
}

// PaymentGateway collects third-party inspection fees.
type PaymentGateway interface {
	Charge(ctx context.Context, req domain.ChargeRequest) (domain.PaymentResult, error)
	Status(ctx context.Context, reference string) (domain.PaymentResult, error)
}

// Notifier delivers workflow events. Failures never fail the operation that
// raised the event.
type Notifier interface {
	Notify(ctx context.Context, event domain.Event, recipients []domain.Recipient) error
}

// AttachmentPurger schedules deletion of stored keys that synchronous
// cleanup could not remove.
type AttachmentPurger interface {
	EnqueuePurge(ctx context.Context, inspectionID uuid.UUID, keys []string) error
}
