package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DukeRupert/rentcheck/internal/domain"
	"github.com/google/uuid"
)

// memStore is an in-memory InspectionStore with the same version semantics
// as the Postgres store.
type memStore struct {
	mu   sync.Mutex
	recs map[uuid.UUID]domain.Inspection

	// failSaves makes the next n saves return an internal error. When
	// landFailed is set the failed save is still applied, as if only the
	// response was lost.
	failSaves  int
	landFailed bool
	saves      int

	// failGetsAfterSave makes that many reads fail once a save has failed,
	// so the outcome of the save cannot be checked.
	failGetsAfterSave int
	failGets          int
}

func newMemStore() *memStore {
	return &memStore{recs: map[uuid.UUID]domain.Inspection{}}
}

func (m *memStore) Create(_ context.Context, rec domain.Inspection) (domain.Inspection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.recs {
		if r.BookingID == rec.BookingID && r.InspectionType == rec.InspectionType {
			return domain.Inspection{}, domain.Conflict("store.create", "duplicate")
		}
	}
	rec.Version = 1
	m.recs[rec.ID] = rec.Clone()
	return rec, nil
}

func (m *memStore) Get(_ context.Context, id uuid.UUID) (domain.Inspection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGets > 0 {
		m.failGets--
		return domain.Inspection{}, domain.Internal(errors.New("connection reset"), "store.get", "failed to fetch inspection")
	}
	rec, ok := m.recs[id]
	if !ok {
		return domain.Inspection{}, domain.NotFound("store.get", "inspection", id.String())
	}
	return rec.Clone(), nil
}

func (m *memStore) Save(_ context.Context, rec domain.Inspection, expected int64) (domain.Inspection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.recs[rec.ID]
	if !ok {
		return domain.Inspection{}, domain.NotFound("store.save", "inspection", rec.ID.String())
	}
	if cur.Version != expected {
		return domain.Inspection{}, domain.Conflict("store.save", "inspection was modified concurrently")
	}
	for id, other := range m.recs {
		if id == rec.ID {
			continue
		}
		for _, d := range rec.Disputes {
			if other.FindDispute(d.ID) != nil {
				return domain.Inspection{}, domain.Conflict("store.save", "dispute belongs to another inspection")
			}
		}
	}
	saved := rec.Clone()
	saved.Version = expected + 1

	if m.failSaves > 0 {
		m.failSaves--
		m.failGets = m.failGetsAfterSave
		if m.landFailed {
			m.recs[rec.ID] = saved
		}
		return domain.Inspection{}, domain.Internal(errors.New("connection reset"), "store.save", "failed to update inspection")
	}
	m.saves++
	m.recs[rec.ID] = saved
	return saved.Clone(), nil
}

func (m *memStore) ListByBooking(_ context.Context, bookingID uuid.UUID) ([]domain.Inspection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Inspection
	for _, r := range m.recs {
		if r.BookingID == bookingID {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (m *memStore) InspectionForDispute(_ context.Context, disputeID uuid.UUID) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.recs {
		if r.FindDispute(disputeID) != nil {
			return r.ID, nil
		}
	}
	return uuid.Nil, domain.NotFound("store.inspection_for_dispute", "dispute", disputeID.String())
}

// memAttachments records stored keys. failOn makes the nth Store call fail.
type memAttachments struct {
	mu         sync.Mutex
	stored     map[string]bool
	calls      int
	failOn     int
	removeErr  error
	removedAll []string
}

func newMemAttachments() *memAttachments {
	return &memAttachments{stored: map[string]bool{}}
}

func (a *memAttachments) Store(_ context.Context, inspectionID uuid.UUID, kind string, upload domain.Upload) (domain.Photo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.failOn > 0 && a.calls == a.failOn {
		return domain.Photo{}, domain.UploadFailed(errors.New("bucket unavailable"), "attachment.store", "failed to store photo")
	}
	key := fmt.Sprintf("inspections/%s/%s/%s.jpg", inspectionID, kind, uuid.New())
	a.stored[key] = true
	return domain.Photo{
		ID:          uuid.New(),
		URL:         "https://files.example.com/" + key,
		StorageKey:  key,
		ContentType: "image/jpeg",
		SizeBytes:   int64(len(upload.Data)),
	}, nil
}

func (a *memAttachments) Resolve(_ context.Context, inspectionID uuid.UUID, rawURL string) (domain.Photo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	key, ok := strings.CutPrefix(rawURL, "https://files.example.com/")
	if !ok || !strings.HasPrefix(key, fmt.Sprintf("inspections/%s/", inspectionID)) || !a.stored[key] {
		return domain.Photo{}, domain.InvalidField("attachment.resolve", "photos", "photo URL does not name a stored photo")
	}
	return domain.Photo{ID: uuid.New(), URL: rawURL, StorageKey: key, ContentType: "image/jpeg"}, nil
}

func (a *memAttachments) Remove(_ context.Context, photos []domain.Photo) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var failed []string
	for _, p := range photos {
		if a.removeErr != nil {
			failed = append(failed, p.StorageKey)
			continue
		}
		delete(a.stored, p.StorageKey)
		a.removedAll = append(a.removedAll, p.StorageKey)
	}
	if len(failed) > 0 {
		return failed, a.removeErr
	}
	return nil, nil
}

func (a *memAttachments) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.stored)
}

type fakeBookings struct {
	bookings map[uuid.UUID]domain.Booking
}

func (f *fakeBookings) GetBooking(_ context.Context, id uuid.UUID) (domain.Booking, error) {
	b, ok := f.bookings[id]
	if !ok {
		return domain.Booking{}, domain.NotFound("booking.get", "booking", id.String())
	}
	return b, nil
}

type fakeGateway struct {
	mu       sync.Mutex
	result   domain.PaymentResult
	status   domain.PaymentResult
	err      error
	requests []domain.ChargeRequest
}

func (g *fakeGateway) Charge(_ context.Context, req domain.ChargeRequest) (domain.PaymentResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	return g.result, g.err
}

func (g *fakeGateway) Status(_ context.Context, _ string) (domain.PaymentResult, error) {
	return g.status, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.Event
	to     [][]domain.Recipient
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, ev domain.Event, recipients []domain.Recipient) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	n.to = append(n.to, recipients)
	return n.err
}

func (n *recordingNotifier) types() []domain.EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []domain.EventType
	for _, ev := range n.events {
		out = append(out, ev.Type)
	}
	return out
}

type recordingPurger struct {
	keys []string
}

func (p *recordingPurger) EnqueuePurge(_ context.Context, _ uuid.UUID, keys []string) error {
	p.keys = append(p.keys, keys...)
	return nil
}

// =============================================================================
// Harness
// =============================================================================

var (
	bookingStart = time.Date(2025, 6, 7, 9, 0, 0, 0, time.UTC)
	bookingEnd   = time.Date(2025, 6, 10, 17, 0, 0, 0, time.UTC)
	duringRental = bookingEnd.Add(-24 * time.Hour)
	afterEnd     = bookingEnd.Add(time.Hour)
)

type harness struct {
	svc         *inspectionService
	store       *memStore
	attachments *memAttachments
	gateway     *fakeGateway
	notifier    *recordingNotifier
	purger      *recordingPurger
	bookings    *fakeBookings
	booking     domain.Booking
	owner       domain.Actor
	renter      domain.Actor
	admin       domain.Actor
	clock       time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	booking := domain.Booking{
		ID:          uuid.New(),
		ProductID:   uuid.New(),
		OwnerID:     uuid.New(),
		RenterID:    uuid.New(),
		OwnerEmail:  "owner@example.com",
		RenterEmail: "renter@example.com",
		StartsAt:    bookingStart,
		EndsAt:      bookingEnd,
		Status:      domain.BookingStatusActive,
	}
	h := &harness{
		store:       newMemStore(),
		attachments: newMemAttachments(),
		gateway:     &fakeGateway{},
		notifier:    &recordingNotifier{},
		purger:      &recordingPurger{},
		bookings:    &fakeBookings{bookings: map[uuid.UUID]domain.Booking{booking.ID: booking}},
		booking:     booking,
		owner:       domain.Actor{UserID: booking.OwnerID, Role: domain.RoleUser},
		renter:      domain.Actor{UserID: booking.RenterID, Role: domain.RoleUser},
		admin:       domain.Actor{UserID: uuid.New(), Role: domain.RoleAdmin},
		clock:       duringRental,
	}
	svc := NewInspectionService(Dependencies{
		Store:       h.store,
		Attachments: h.attachments,
		Bookings:    h.bookings,
		Payments:    h.gateway,
		Notifier:    h.notifier,
		Purger:      h.purger,
	}, WorkflowConfig{SaveRetries: 2}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	h.svc = svc.(*inspectionService)
	h.svc.now = func() time.Time { return h.clock }
	return h
}

func uploads(n int) []domain.PhotoInput {
	out := make([]domain.PhotoInput, n)
	for i := range out {
		out[i] = domain.PhotoInput{Upload: &domain.Upload{
			Filename:    fmt.Sprintf("photo-%d.jpg", i),
			ContentType: "image/jpeg",
			Data:        []byte("jpeg"),
		}}
	}
	return out
}

func condition(items int) domain.ConditionAssessment {
	c := domain.ConditionAssessment{OverallCondition: domain.ConditionGood}
	for i := 0; i < items; i++ {
		c.Items = append(c.Items, domain.ItemCondition{Name: fmt.Sprintf("part %d", i), Condition: domain.ConditionGood})
	}
	return c
}

func gps() *domain.GPSLocation {
	lat, lng := 45.52, -122.68
	return &domain.GPSLocation{Latitude: &lat, Longitude: &lng, Timestamp: duringRental}
}
