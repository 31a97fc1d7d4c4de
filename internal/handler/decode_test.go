package handler

import (
	"testing"

	"github.com/DukeRupert/rentcheck/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestMultipartLimit(t *testing.T) {
	tests := []struct {
		name      string
		maxPhotos int
		want      int64
	}{
		{"unset uses the default maximum", 0, int64(domain.MaxReturnPhotos+1) * domain.MaxPhotoSize},
		{"default maximum", domain.MaxReturnPhotos, int64(domain.MaxReturnPhotos+1) * domain.MaxPhotoSize},
		{"raised maximum", 40, 41 * domain.MaxPhotoSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, multipartLimit(tt.maxPhotos))
		})
	}
}
