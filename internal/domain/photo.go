package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	// MinReturnPhotos is the fewest photos a renter may return an item with.
	MinReturnPhotos = 2

	// MaxReturnPhotos is the most photos a renter may return an item with.
	MaxReturnPhotos = 20

	// MaxSubmissionPhotos caps photos on pre-inspections and disputes.
	MaxSubmissionPhotos = 20

	// MaxPhotoSize is the maximum allowed size for an uploaded photo (20MB).
	MaxPhotoSize = 20 * 1024 * 1024

	// ThumbnailMaxWidth is the maximum width for generated thumbnails.
	ThumbnailMaxWidth = 320

	// ThumbnailMaxHeight is the maximum height for generated thumbnails.
	ThumbnailMaxHeight = 320

	// ThumbnailJPEGQuality is the JPEG quality for thumbnail generation (0-100).
	ThumbnailJPEGQuality = 85
)

// Photo is a stored attachment referenced from a submission or dispute.
// StorageKey is empty for photos referenced by an external URL.
type Photo struct {
	ID           uuid.UUID `json:"id"`
	URL          string    `json:"url"`
	StorageKey   string    `json:"storageKey,omitempty"`
	ThumbnailKey string    `json:"thumbnailKey,omitempty"`
	ContentType  string    `json:"contentType,omitempty"`
	SizeBytes    int64     `json:"sizeBytes,omitempty"`
	Width        int       `json:"width,omitempty"`
	Height       int       `json:"height,omitempty"`
	UploadedAt   time.Time `json:"uploadedAt"`
}

// IsStored returns true if the photo lives in our attachment store.
func (p Photo) IsStored() bool {
	return p.StorageKey != ""
}

// Upload is a photo that has not been stored yet.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// PhotoInput is either an already-stored photo URL or a pending upload.
type PhotoInput struct {
	URL    string
	Upload *Upload
}

// IsUpload returns true if the input still needs to be stored.
func (p PhotoInput) IsUpload() bool {
	return p.Upload != nil
}
