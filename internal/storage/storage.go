// Package storage keeps inspection photos and their thumbnails in object
// storage: the local filesystem in development and Cloudflare R2 in
// production.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Storage is the object store behind the photo attachment collaborator.
type Storage interface {
	// Put stores data at key. It fails with ErrKeyExists unless opts.Overwrite
	// is set, and with ErrTooLarge when the data exceeds opts.MaxSize.
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error

	// Delete removes the object at key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// URL returns a stable URL for key. A zero expiry asks for a permanent
	// public URL where the provider supports one.
	URL(ctx context.Context, key string, expires time.Duration) (string, error)

	// Exists reports whether an object is stored at key.
	Exists(ctx context.Context, key string) (bool, error)
}

// PutOptions configures how an object is stored.
type PutOptions struct {
	ContentType string

	// MaxSize in bytes; 0 means unlimited.
	MaxSize int64

	Overwrite bool
	Public    bool

	// CacheControl is sent with the object by providers that support it.
	CacheControl string
}

// =============================================================================
// Configuration
// =============================================================================

const (
	ProviderLocal = "local"
	ProviderR2    = "r2"
)

// LocalConfig holds configuration for local filesystem storage.
type LocalConfig struct {
	// BasePath is the root directory, e.g. "./storage".
	BasePath string

	// BaseURL is the public prefix files are served under,
	// e.g. "http://localhost:8080/files".
	BaseURL string
}

// R2Config holds configuration for Cloudflare R2 storage.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string

	// PublicURL is the bucket's custom domain. Presigned URLs are used when empty.
	PublicURL string

	// Region defaults to "auto".
	Region string
}

// Config selects and configures a provider.
type Config struct {
	Provider string
	Local    LocalConfig
	R2       R2Config
}

// New builds the configured provider.
func New(cfg Config, logger *slog.Logger) (Storage, error) {
	switch cfg.Provider {
	case ProviderLocal, "":
		return NewLocalStorage(cfg.Local, logger)
	case ProviderR2:
		return NewR2Storage(cfg.R2, logger)
	}
	return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
}

// =============================================================================
// Keys
// =============================================================================

// PhotoKey generates a key for a photo attached to an inspection.
// Format: inspections/{inspectionID}/{kind}/{uuid}{ext}
//
// kind groups photos by the submission they belong to, e.g. "pre",
// "post" or "disputes".
func PhotoKey(inspectionID uuid.UUID, kind, contentType string) string {
	return fmt.Sprintf("%s%s/%s%s", InspectionPrefix(inspectionID), kind, uuid.New(), extensionForContentType(contentType))
}

// InspectionPrefix is the key prefix shared by every object of one inspection.
func InspectionPrefix(inspectionID uuid.UUID) string {
	return "inspections/" + inspectionID.String() + "/"
}

// ThumbnailKey derives the thumbnail key for a photo key. Thumbnails are
// always JPEG.
// Example: inspections/{id}/post/{uuid}.png -> inspections/{id}/post/thumbs/{uuid}.jpg
func ThumbnailKey(photoKey string) string {
	dir, file := path.Split(photoKey)
	base := strings.TrimSuffix(file, path.Ext(file))
	return dir + "thumbs/" + base + ".jpg"
}

// validateKey rejects empty keys and path traversal.
func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return ErrInvalidKey
		}
	}
	return nil
}
