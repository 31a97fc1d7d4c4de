package service

import (
	"bytes"
	"fmt"
	"io"

	"github.com/DukeRupert/rentcheck/internal/domain"
	"github.com/disintegration/imaging"
)

// ThumbnailProcessor renders the preview shown next to a condition photo.
type ThumbnailProcessor interface {
	// GenerateThumbnail returns a JPEG fitting maxWidth x maxHeight and the
	// upright dimensions of the source photo. It fails for formats it cannot
	// decode; callers store such photos without a preview.
	GenerateThumbnail(data io.Reader, maxWidth, maxHeight int) ([]byte, int, int, error)
}

type imagingProcessor struct{}

// NewImagingProcessor creates a ThumbnailProcessor backed by disintegration/imaging.
func NewImagingProcessor() ThumbnailProcessor {
	return imagingProcessor{}
}

// GenerateThumbnail honors the EXIF orientation phones write instead of
// rotating pixels, so damage photos are previewed the way they were taken.
func (imagingProcessor) GenerateThumbnail(data io.Reader, maxWidth, maxHeight int) ([]byte, int, int, error) {
	img, err := imaging.Decode(data, imaging.AutoOrientation(true))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decode photo: %w", err)
	}
	bounds := img.Bounds()

	var buf bytes.Buffer
	thumb := imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(domain.ThumbnailJPEGQuality)); err != nil {
		return nil, 0, 0, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), bounds.Dx(), bounds.Dy(), nil
}
