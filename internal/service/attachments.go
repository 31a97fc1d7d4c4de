package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/DukeRupert/rentcheck/internal/domain"
	"github.com/DukeRupert/rentcheck/internal/metrics"
	"github.com/DukeRupert/rentcheck/internal/storage"
	"github.com/google/uuid"
)

const photoCacheControl = "private, max-age=31536000, immutable"

// attachmentStore implements AttachmentStore on top of object storage. Each
// photo is stored with a JPEG thumbnail when its format can be decoded.
type attachmentStore struct {
	storage storage.Storage
	thumbs  ThumbnailProcessor
	purger  AttachmentPurger
	maxSize int64
	logger  *slog.Logger
	now     func() time.Time
}

// NewAttachmentStore creates an AttachmentStore. Objects a failed upload
// cannot delete are handed to purger.
func NewAttachmentStore(st storage.Storage, thumbs ThumbnailProcessor, purger AttachmentPurger, logger *slog.Logger) AttachmentStore {
	return &attachmentStore{
		storage: st,
		thumbs:  thumbs,
		purger:  purger,
		maxSize: domain.MaxPhotoSize,
		logger:  logger,
		now:     time.Now,
	}
}

func (a *attachmentStore) Store(ctx context.Context, inspectionID uuid.UUID, kind string, upload domain.Upload) (domain.Photo, error) {
	const op = "attachment.store"

	if len(upload.Data) == 0 {
		metrics.PhotoUpload("rejected")
		return domain.Photo{}, domain.InvalidField(op, "photos", fmt.Sprintf("photo %q is empty", upload.Filename))
	}
	if int64(len(upload.Data)) > a.maxSize {
		metrics.PhotoUpload("rejected")
		return domain.Photo{}, domain.InvalidField(op, "photos",
			fmt.Sprintf("photo %q exceeds %d MB", upload.Filename, a.maxSize/(1024*1024)))
	}
	contentType := storage.DetectContentType(upload.ContentType, upload.Filename, upload.Data)
	if !storage.IsAllowedImageType(contentType) {
		metrics.PhotoUpload("rejected")
		return domain.Photo{}, domain.InvalidField(op, "photos", fmt.Sprintf("unsupported photo type %s", contentType))
	}

	key := storage.PhotoKey(inspectionID, kind, contentType)
	if err := a.storage.Put(ctx, key, bytes.NewReader(upload.Data), storage.PutOptions{
		ContentType:  contentType,
		MaxSize:      a.maxSize,
		CacheControl: photoCacheControl,
	}); err != nil {
		if storage.IsTooLarge(err) {
			metrics.PhotoUpload("rejected")
			return domain.Photo{}, domain.InvalidField(op, "photos",
				fmt.Sprintf("photo %q exceeds %d MB", upload.Filename, a.maxSize/(1024*1024)))
		}
		metrics.PhotoUpload("failed")
		return domain.Photo{}, domain.UploadFailed(err, op, "failed to store photo")
	}

	photo := domain.Photo{
		ID:          uuid.New(),
		StorageKey:  key,
		ContentType: contentType,
		SizeBytes:   int64(len(upload.Data)),
		UploadedAt:  a.now().UTC(),
	}

	// HEIC and WebP are stored without a preview.
	thumb, width, height, err := a.thumbs.GenerateThumbnail(bytes.NewReader(upload.Data),
		domain.ThumbnailMaxWidth, domain.ThumbnailMaxHeight)
	if err != nil {
		a.logger.Debug("thumbnail skipped", "key", key, "content_type", contentType, "error", err)
	} else {
		thumbKey := storage.ThumbnailKey(key)
		if err := a.storage.Put(ctx, thumbKey, bytes.NewReader(thumb), storage.PutOptions{
			ContentType:  "image/jpeg",
			CacheControl: photoCacheControl,
		}); err != nil {
			a.cleanup(ctx, inspectionID, key)
			metrics.PhotoUpload("failed")
			return domain.Photo{}, domain.UploadFailed(err, op, "failed to store thumbnail")
		}
		photo.ThumbnailKey = thumbKey
		photo.Width = width
		photo.Height = height
	}

	photoURL, err := a.storage.URL(ctx, key, 0)
	if err != nil {
		keys := []string{key}
		if photo.ThumbnailKey != "" {
			keys = append(keys, photo.ThumbnailKey)
		}
		a.cleanup(ctx, inspectionID, keys...)
		metrics.PhotoUpload("failed")
		return domain.Photo{}, domain.UploadFailed(err, op, "failed to resolve photo URL")
	}
	photo.URL = photoURL

	metrics.PhotoUpload("stored")
	return photo, nil
}

// cleanup deletes objects of an upload that failed part way. Keys it cannot
// delete are queued for purging.
func (a *attachmentStore) cleanup(ctx context.Context, inspectionID uuid.UUID, keys ...string) {
	ctx = context.WithoutCancel(ctx)
	var failed []string
	for _, key := range keys {
		if err := a.storage.Delete(ctx, key); err != nil && !storage.IsGone(err) {
			a.logger.Warn("failed to delete partial upload", "inspection_id", inspectionID, "key", key, "error", err)
			failed = append(failed, key)
		}
	}
	if len(failed) == 0 {
		return
	}
	if a.purger == nil {
		a.logger.Error("partial upload left in storage", "inspection_id", inspectionID, "keys", failed)
		return
	}
	if err := a.purger.EnqueuePurge(ctx, inspectionID, failed); err != nil {
		a.logger.Error("failed to schedule photo purge", "inspection_id", inspectionID, "keys", failed, "error", err)
	}
}

// Resolve accepts a photo URL only when it points at an image this store
// already holds under the inspection.
func (a *attachmentStore) Resolve(ctx context.Context, inspectionID uuid.UUID, rawURL string) (domain.Photo, error) {
	const op = "attachment.resolve"

	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return domain.Photo{}, domain.InvalidField(op, "photos", "photo URL is not an http(s) URL")
	}
	prefix := storage.InspectionPrefix(inspectionID)
	i := strings.Index(u.Path, prefix)
	if i < 0 {
		return domain.Photo{}, domain.InvalidField(op, "photos", "photo URL does not belong to this inspection")
	}
	key := u.Path[i:]
	if path.Clean(key) != key || strings.Contains(key, "/thumbs/") {
		return domain.Photo{}, domain.InvalidField(op, "photos", "photo URL does not name a stored photo")
	}
	contentType := storage.DetectContentType("", key, nil)
	if !storage.IsAllowedImageType(contentType) {
		return domain.Photo{}, domain.InvalidField(op, "photos", fmt.Sprintf("unsupported photo type %s", contentType))
	}

	canonical, err := a.storage.URL(ctx, key, 0)
	if err != nil {
		return domain.Photo{}, domain.InvalidField(op, "photos", "photo URL does not name a stored photo")
	}
	// Presigned URLs differ in their query only.
	c, err := url.Parse(canonical)
	if err != nil || c.Scheme != u.Scheme || c.Host != u.Host || c.Path != u.Path {
		return domain.Photo{}, domain.InvalidField(op, "photos", "photo URL is not served by the attachment store")
	}

	ok, err := a.storage.Exists(ctx, key)
	if err != nil {
		return domain.Photo{}, domain.Internal(err, op, "failed to check photo")
	}
	if !ok {
		return domain.Photo{}, domain.InvalidField(op, "photos", "photo URL does not name a stored photo")
	}

	photo := domain.Photo{
		ID:          uuid.New(),
		URL:         canonical,
		StorageKey:  key,
		ContentType: contentType,
		UploadedAt:  a.now().UTC(),
	}
	if ok, err := a.storage.Exists(ctx, storage.ThumbnailKey(key)); err == nil && ok {
		photo.ThumbnailKey = storage.ThumbnailKey(key)
	}
	return photo, nil
}

func (a *attachmentStore) Remove(ctx context.Context, photos []domain.Photo) ([]string, error) {
	var failed []string
	var errs []error
	for _, p := range photos {
		if !p.IsStored() {
			continue
		}
		keys := []string{p.StorageKey}
		if p.ThumbnailKey != "" {
			keys = append(keys, p.ThumbnailKey)
		}
		for _, key := range keys {
			if err := a.storage.Delete(ctx, key); err != nil && !storage.IsGone(err) {
				failed = append(failed, key)
				errs = append(errs, err)
			}
		}
		metrics.PhotoUpload("rolled_back")
	}
	return failed, errors.Join(errs...)
}
