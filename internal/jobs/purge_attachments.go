package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/DukeRupert/rentcheck/internal/domain"
	"github.com/DukeRupert/rentcheck/internal/storage"
	"github.com/DukeRupert/rentcheck/internal/worker"
	"github.com/google/uuid"
)

// InspectionReader loads the record whose photos are being purged.
type InspectionReader interface {
	Get(ctx context.Context, id uuid.UUID) (domain.Inspection, error)
}

// PurgeAttachmentsHandler deletes photos that a failed submission uploaded
// but could not remove at the time.
type PurgeAttachmentsHandler struct {
	storage     storage.Storage
	inspections InspectionReader
	logger      *slog.Logger
}

// NewPurgeAttachmentsHandler creates a new handler for purge jobs.
func NewPurgeAttachmentsHandler(st storage.Storage, inspections InspectionReader, logger *slog.Logger) *PurgeAttachmentsHandler {
	return &PurgeAttachmentsHandler{
		storage:     st,
		inspections: inspections,
		logger:      logger,
	}
}

// Type returns the job type identifier.
func (h *PurgeAttachmentsHandler) Type() string {
	return worker.JobTypePurgeAttachments
}

// Handle deletes every listed key the inspection does not reference.
// Deleting is idempotent, so a retry simply runs the whole list again. Keys
// outside the inspection's prefix are never touched.
func (h *PurgeAttachmentsHandler) Handle(ctx context.Context, payload []byte) error {
	var p worker.PurgeAttachmentsPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return worker.NewPermanentError(fmt.Errorf("invalid payload: %w", err))
	}

	referenced, err := h.referenced(ctx, p.InspectionID)
	if err != nil {
		return err
	}

	prefix := storage.InspectionPrefix(p.InspectionID)
	var errs []error
	purged := 0
	for _, key := range p.Keys {
		if !strings.HasPrefix(key, prefix) {
			h.logger.Warn("refusing to purge key outside inspection", "inspection_id", p.InspectionID, "key", key)
			continue
		}
		if referenced[key] {
			h.logger.Debug("keeping referenced photo", "inspection_id", p.InspectionID, "key", key)
			continue
		}
		if err := h.storage.Delete(ctx, key); err != nil {
			if storage.IsGone(err) {
				continue
			}
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
			continue
		}
		purged++
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	h.logger.Info("orphaned photos purged", "inspection_id", p.InspectionID, "keys", purged)
	return nil
}

// referenced returns the keys the stored record points at. A missing record
// references nothing.
func (h *PurgeAttachmentsHandler) referenced(ctx context.Context, inspectionID uuid.UUID) (map[string]bool, error) {
	keys := make(map[string]bool)
	rec, err := h.inspections.Get(ctx, inspectionID)
	if domain.ErrorCode(err) == domain.ENOTFOUND {
		return keys, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load inspection %s: %w", inspectionID, err)
	}
	for _, photo := range rec.AllPhotos() {
		if photo.StorageKey != "" {
			keys[photo.StorageKey] = true
		}
		if photo.ThumbnailKey != "" {
			keys[photo.ThumbnailKey] = true
		}
	}
	return keys, nil
}
