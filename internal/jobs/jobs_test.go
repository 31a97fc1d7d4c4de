package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/DukeRupert/rentcheck/internal/domain"
	"github.com/DukeRupert/rentcheck/internal/storage"
	"github.com/DukeRupert/rentcheck/internal/worker"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeEmail struct {
	sent []domain.Recipient
	err  error
}

func (f *fakeEmail) SendNotification(_ context.Context, to domain.Recipient, _ domain.Event) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to)
	return nil
}

func notificationPayload(t *testing.T, to domain.Recipient) []byte {
	t.Helper()
	b, err := json.Marshal(worker.SendNotificationPayload{
		Event:     domain.Event{Type: domain.EventPostInspectionSubmit, InspectionID: uuid.New()},
		Recipient: to,
	})
	require.NoError(t, err)
	return b
}

func TestSendNotificationHandler(t *testing.T) {
	owner := domain.Recipient{UserID: uuid.New(), Party: domain.PartyOwner, Email: "owner@example.com"}

	tests := []struct {
		name          string
		payload       func(t *testing.T) []byte
		sendErr       error
		wantErr       bool
		wantPermanent bool
		wantSent      int
	}{
		{
			name:     "sends",
			payload:  func(t *testing.T) []byte { return notificationPayload(t, owner) },
			wantSent: 1,
		},
		{
			name:    "smtp failure retries",
			payload: func(t *testing.T) []byte { return notificationPayload(t, owner) },
			sendErr: errors.New("connection refused"),
			wantErr: true,
		},
		{
			name: "missing address is permanent",
			payload: func(t *testing.T) []byte {
				return notificationPayload(t, domain.Recipient{UserID: uuid.New(), Party: domain.PartyRenter})
			},
			wantErr:       true,
			wantPermanent: true,
		},
		{
			name:          "malformed payload is permanent",
			payload:       func(*testing.T) []byte { return []byte(`{`) },
			wantErr:       true,
			wantPermanent: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeEmail{err: tt.sendErr}
			h := NewSendNotificationHandler(svc, discard)
			assert.Equal(t, worker.JobTypeSendNotification, h.Type())

			err := h.Handle(context.Background(), tt.payload(t))
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Len(t, svc.sent, tt.wantSent)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantPermanent, worker.IsPermanent(err))
		})
	}
}

func TestPurgeAttachmentsHandler(t *testing.T) {
	ctx := context.Background()
	st, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir(), BaseURL: "http://localhost:8080/files"}, discard)
	require.NoError(t, err)

	inspectionID := uuid.New()
	orphan := storage.PhotoKey(inspectionID, "post", "image/jpeg")
	thumb := storage.ThumbnailKey(orphan)
	other := storage.PhotoKey(uuid.New(), "post", "image/jpeg")
	for _, key := range []string{orphan, thumb, other} {
		require.NoError(t, st.Put(ctx, key, bytes.NewReader([]byte("jpeg")), storage.PutOptions{ContentType: "image/jpeg"}))
	}

	payload, err := json.Marshal(worker.PurgeAttachmentsPayload{
		InspectionID: inspectionID,
		Keys:         []string{orphan, thumb, other, "inspections/" + inspectionID.String() + "/../escape.jpg"},
	})
	require.NoError(t, err)

	h := NewPurgeAttachmentsHandler(st, inspectionsByID{}, discard)
	require.NoError(t, h.Handle(ctx, payload))

	for key, want := range map[string]bool{orphan: false, thumb: false, other: true} {
		ok, err := st.Exists(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, want, ok, key)
	}

	// Running again is harmless.
	require.NoError(t, h.Handle(ctx, payload))
}

type inspectionsByID map[uuid.UUID]domain.Inspection

func (m inspectionsByID) Get(_ context.Context, id uuid.UUID) (domain.Inspection, error) {
	rec, ok := m[id]
	if !ok {
		return domain.Inspection{}, domain.NotFound("store.get", "inspection", id.String())
	}
	return rec, nil
}

type unreachableInspections struct{}

func (unreachableInspections) Get(context.Context, uuid.UUID) (domain.Inspection, error) {
	return domain.Inspection{}, errors.New("connection refused")
}

func TestPurgeAttachmentsHandler_KeepsReferencedPhotos(t *testing.T) {
	ctx := context.Background()
	st, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir(), BaseURL: "http://localhost:8080/files"}, discard)
	require.NoError(t, err)

	inspectionID := uuid.New()
	kept := storage.PhotoKey(inspectionID, "post", "image/jpeg")
	keptThumb := storage.ThumbnailKey(kept)
	orphan := storage.PhotoKey(inspectionID, "post", "image/jpeg")
	for _, key := range []string{kept, keptThumb, orphan} {
		require.NoError(t, st.Put(ctx, key, bytes.NewReader([]byte("jpeg")), storage.PutOptions{ContentType: "image/jpeg"}))
	}

	records := inspectionsByID{inspectionID: {
		ID: inspectionID,
		RenterPostInspection: &domain.RenterPostInspectionData{
			ReturnPhotos: []domain.Photo{{StorageKey: kept, ThumbnailKey: keptThumb}},
		},
	}}
	payload, err := json.Marshal(worker.PurgeAttachmentsPayload{
		InspectionID: inspectionID,
		Keys:         []string{kept, keptThumb, orphan},
	})
	require.NoError(t, err)

	require.NoError(t, NewPurgeAttachmentsHandler(st, records, discard).Handle(ctx, payload))

	for key, want := range map[string]bool{kept: true, keptThumb: true, orphan: false} {
		ok, err := st.Exists(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, want, ok, key)
	}

	err = NewPurgeAttachmentsHandler(st, unreachableInspections{}, discard).Handle(ctx, payload)
	require.Error(t, err)
	assert.False(t, worker.IsPermanent(err), "an unreadable record is retried")
}
