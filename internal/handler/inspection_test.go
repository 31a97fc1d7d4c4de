package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DukeRupert/rentcheck/internal/auth"
	"github.com/DukeRupert/rentcheck/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeService records the last call and returns rec/err.
type fakeService struct {
	mu       sync.Mutex
	rec      *domain.Inspection
	disputes []domain.Dispute
	err      error

	method string
	actor  domain.Actor
	id     uuid.UUID
	params any
}

func (f *fakeService) record(method string, actor domain.Actor, id uuid.UUID, params any) (*domain.Inspection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.method, f.actor, f.id, f.params = method, actor, id, params
	return f.rec, f.err
}

func (f *fakeService) Create(_ context.Context, a domain.Actor, p domain.CreateInspectionParams) (*domain.Inspection, error) {
	return f.record("Create", a, uuid.Nil, p)
}

func (f *fakeService) Get(_ context.Context, a domain.Actor, id uuid.UUID) (*domain.Inspection, error) {
	return f.record("Get", a, id, nil)
}

func (f *fakeService) ListByBooking(_ context.Context, a domain.Actor, id uuid.UUID) ([]domain.Inspection, error) {
	rec, err := f.record("ListByBooking", a, id, nil)
	if err != nil || rec == nil {
		return nil, err
	}
	return []domain.Inspection{*rec}, nil
}

func (f *fakeService) ListDisputes(_ context.Context, a domain.Actor, id uuid.UUID) ([]domain.Dispute, error) {
	_, err := f.record("ListDisputes", a, id, nil)
	return f.disputes, err
}

func (f *fakeService) SubmitPreInspection(_ context.Context, a domain.Actor, id uuid.UUID, p domain.SubmitPreInspectionParams) (*domain.Inspection, error) {
	return f.record("SubmitPreInspection", a, id, p)
}

func (f *fakeService) SubmitPreReview(_ context.Context, a domain.Actor, id uuid.UUID, p domain.PreReviewParams) (*domain.Inspection, error) {
	return f.record("SubmitPreReview", a, id, p)
}

func (f *fakeService) ReportDiscrepancy(_ context.Context, a domain.Actor, id uuid.UUID, p domain.DiscrepancyParams) (*domain.Inspection, error) {
	return f.record("ReportDiscrepancy", a, id, p)
}

func (f *fakeService) StartRental(_ context.Context, a domain.Actor, id uuid.UUID) (*domain.Inspection, error) {
	return f.record("StartRental", a, id, nil)
}

func (f *fakeService) SubmitPostInspection(_ context.Context, a domain.Actor, id uuid.UUID, p domain.SubmitPostInspectionParams) (*domain.Inspection, error) {
	return f.record("SubmitPostInspection", a, id, p)
}

func (f *fakeService) SubmitPostReview(_ context.Context, a domain.Actor, id uuid.UUID, p domain.PostReviewParams) (*domain.Inspection, error) {
	return f.record("SubmitPostReview", a, id, p)
}

func (f *fakeService) Pay(_ context.Context, a domain.Actor, id uuid.UUID, p domain.PayParams) (*domain.Inspection, error) {
	return f.record("Pay", a, id, p)
}

func (f *fakeService) ReviewDispute(_ context.Context, a domain.Actor, id uuid.UUID) (*domain.Inspection, error) {
	return f.record("ReviewDispute", a, id, nil)
}

func (f *fakeService) ResolveDispute(_ context.Context, a domain.Actor, id uuid.UUID, p domain.ResolveDisputeParams) (*domain.Inspection, error) {
	return f.record("ResolveDispute", a, id, p)
}

var testActor = domain.Actor{UserID: uuid.MustParse("6f1c2d5e-8a7b-4c3d-9e0f-112233445566"), Role: domain.RoleUser}

// withActor stands in for the actor middleware.
func withActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Test-Anonymous") == "" {
			r = r.WithContext(auth.SetActor(r.Context(), &testActor))
		}
		next.ServeHTTP(w, r)
	})
}

func newTestMux(svc *fakeService) *http.ServeMux {
	mux := http.NewServeMux()
	NewInspectionHandler(svc, domain.MaxReturnPhotos, discardLogger()).RegisterRoutes(mux, withActor, withActor)
	return mux
}

func serve(mux http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body JSONError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestInspectionHandler_Get(t *testing.T) {
	id := uuid.New()
	svc := &fakeService{rec: &domain.Inspection{ID: id, Status: domain.InspectionStatusPreSubmitted, Version: 3}}
	rec := serve(newTestMux(svc), httptest.NewRequest(http.MethodGet, "/inspections/"+id.String(), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.Inspection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, id, got.ID)
	assert.Equal(t, int64(3), got.Version)
	assert.Equal(t, testActor, svc.actor)
	assert.Equal(t, id, svc.id)
}

func TestInspectionHandler_RequestErrors(t *testing.T) {
	id := uuid.New().String()

	t.Run("no actor", func(t *testing.T) {
		svc := &fakeService{}
		req := httptest.NewRequest(http.MethodGet, "/inspections/"+id, nil)
		req.Header.Set("X-Test-Anonymous", "1")
		rec := serve(newTestMux(svc), req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, svc.method)
	})

	t.Run("bad id", func(t *testing.T) {
		svc := &fakeService{}
		rec := serve(newTestMux(svc), httptest.NewRequest(http.MethodGet, "/inspections/not-a-uuid", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "id", decodeError(t, rec).Field)
	})

	t.Run("malformed json", func(t *testing.T) {
		svc := &fakeService{}
		rec := serve(newTestMux(svc), jsonRequest(http.MethodPost, "/inspections/"+id+"/pre-review", `{"accepted":`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "body", decodeError(t, rec).Field)
		assert.Empty(t, svc.method)
	})

	t.Run("empty body", func(t *testing.T) {
		svc := &fakeService{}
		rec := serve(newTestMux(svc), jsonRequest(http.MethodPost, "/disputes/"+id+"/resolve", ""))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestInspectionHandler_DomainErrors(t *testing.T) {
	id := uuid.New().String()
	eligibleAt := time.Date(2025, 6, 10, 17, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"stale", domain.Stale("inspection.pre_review", "submission was replaced"), http.StatusConflict, domain.ESTALE},
		{"conflict", domain.Conflict("store.save", "modified concurrently"), http.StatusConflict, domain.ECONFLICT},
		{"already", domain.AlreadyProcessed("inspection.pre_review", "already accepted"), http.StatusConflict, domain.EALREADY},
		{"transition", domain.InvalidTransition("inspection.pre_review", domain.InspectionStatusPrePending, "pre_review"), http.StatusUnprocessableEntity, domain.ETRANSITION},
		{"not eligible", domain.NotEligible("inspection.post", eligibleAt), http.StatusTooEarly, domain.ENOTELIGIBLE},
		{"payment", domain.PaymentRequired("inspection.pre", "inspection fee is unpaid"), http.StatusPaymentRequired, domain.EPAYMENT},
		{"upload", domain.UploadFailed(errors.New("s3 down"), "attachment.store", "failed to store photo"), http.StatusBadGateway, domain.EUPLOAD},
		{"forbidden", domain.Forbidden("inspection.pre_review", "caller is not a party to this booking"), http.StatusForbidden, domain.EFORBIDDEN},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{err: tt.err}
			body := `{"submissionId":"` + uuid.NewString() + `","accepted":true}`
			rec := serve(newTestMux(svc), jsonRequest(http.MethodPost, "/inspections/"+id+"/pre-review", body))
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}
}

func TestInspectionHandler_Create(t *testing.T) {
	bookingID, productID := uuid.New(), uuid.New()
	svc := &fakeService{rec: &domain.Inspection{ID: uuid.New(), Status: domain.InspectionStatusCreated}}
	body := `{"bookingId":"` + bookingID.String() + `","productId":"` + productID.String() +
		`","inspectionType":"pre_rental","isThirdPartyInspection":true,"inspectionTier":"standard","inspectionCost":4900,"currency":"usd"}`

	rec := serve(newTestMux(svc), jsonRequest(http.MethodPost, "/inspections", body))

	require.Equal(t, http.StatusCreated, rec.Code)
	params, ok := svc.params.(domain.CreateInspectionParams)
	require.True(t, ok)
	assert.Equal(t, bookingID, params.BookingID)
	assert.Equal(t, productID, params.ProductID)
	assert.True(t, params.IsThirdPartyInspection)
	assert.Equal(t, int64(4900), params.InspectionCostCents)
}

func TestInspectionHandler_PostReviewJSON(t *testing.T) {
	id, subID, disputeID := uuid.New(), uuid.New(), uuid.New()
	svc := &fakeService{rec: &domain.Inspection{ID: id}}
	body := `{"submissionId":"` + subID.String() + `","accepted":false,"disputeId":"` + disputeID.String() +
		`","disputeType":"damage_assessment","reason":"scratched lens","photos":["https://cdn.example.com/a.jpg"]}`

	rec := serve(newTestMux(svc), jsonRequest(http.MethodPost, "/inspections/"+id.String()+"/post-review", body))

	require.Equal(t, http.StatusOK, rec.Code)
	params, ok := svc.params.(domain.PostReviewParams)
	require.True(t, ok)
	assert.Equal(t, subID, params.SubmissionID)
	assert.Equal(t, disputeID, params.DisputeID)
	assert.False(t, params.Accepted)
	assert.Equal(t, "scratched lens", params.Reason)
	require.Len(t, params.Photos, 1)
	assert.Equal(t, "https://cdn.example.com/a.jpg", params.Photos[0].URL)
}

func TestInspectionHandler_PostInspectionMultipart(t *testing.T) {
	id, subID := uuid.New(), uuid.New()
	svc := &fakeService{rec: &domain.Inspection{ID: id, Status: domain.InspectionStatusPostSubmitted}}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	payload := `{"submissionId":"` + subID.String() + `","confirmed":true,` +
		`"condition":{"overallCondition":"good"},"returnPhotos":["https://cdn.example.com/existing.jpg"],` +
		`"returnLocation":{"latitude":45.5,"longitude":-122.6,"timestamp":"2025-06-10T18:00:00Z"}}`
	require.NoError(t, mw.WriteField(payloadField, payload))
	for _, name := range []string{"front.jpg", "back.jpg"} {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="photos"; filename="`+name+`"`)
		h.Set("Content-Type", "image/jpeg")
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte("jpeg-bytes-" + name))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/inspections/"+id.String()+"/post-inspection", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := serve(newTestMux(svc), req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	params, ok := svc.params.(domain.SubmitPostInspectionParams)
	require.True(t, ok)
	assert.Equal(t, subID, params.SubmissionID)
	assert.True(t, params.Confirmed)
	require.NotNil(t, params.ReturnLocation)
	require.Len(t, params.ReturnPhotos, 3)
	assert.Equal(t, "https://cdn.example.com/existing.jpg", params.ReturnPhotos[0].URL)
	require.True(t, params.ReturnPhotos[1].IsUpload())
	assert.Equal(t, "front.jpg", params.ReturnPhotos[1].Upload.Filename)
	assert.Equal(t, "image/jpeg", params.ReturnPhotos[1].Upload.ContentType)
	assert.Equal(t, []byte("jpeg-bytes-back.jpg"), params.ReturnPhotos[2].Upload.Data)
}

func TestInspectionHandler_MultipartWithoutPayload(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("notes", "forgot the payload"))
	require.NoError(t, mw.Close())

	svc := &fakeService{}
	req := httptest.NewRequest(http.MethodPost, "/inspections/"+uuid.NewString()+"/pre-inspection", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := serve(newTestMux(svc), req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, payloadField, decodeError(t, rec).Field)
	assert.Empty(t, svc.method)
}

func TestInspectionHandler_Disputes(t *testing.T) {
	disputeID := uuid.New()

	t.Run("resolve", func(t *testing.T) {
		svc := &fakeService{rec: &domain.Inspection{ID: uuid.New(), Status: domain.InspectionStatusClosed}}
		rec := serve(newTestMux(svc), jsonRequest(http.MethodPost, "/disputes/"+disputeID.String()+"/resolve",
			`{"outcome":"resolved","resolutionNotes":"owner compensated"}`))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ResolveDispute", svc.method)
		assert.Equal(t, disputeID, svc.id)
		params := svc.params.(domain.ResolveDisputeParams)
		assert.Equal(t, domain.DisputeStatusResolved, params.Outcome)
		assert.Equal(t, "owner compensated", params.ResolutionNotes)
	})

	t.Run("review", func(t *testing.T) {
		svc := &fakeService{rec: &domain.Inspection{ID: uuid.New()}}
		rec := serve(newTestMux(svc), httptest.NewRequest(http.MethodPost, "/disputes/"+disputeID.String()+"/review", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ReviewDispute", svc.method)
	})

	t.Run("empty list is an array", func(t *testing.T) {
		svc := &fakeService{}
		rec := serve(newTestMux(svc), httptest.NewRequest(http.MethodGet, "/inspections/"+uuid.NewString()+"/disputes", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"disputes":[]}`, rec.Body.String())
	})
}

func TestInspectionHandler_PayWithoutBody(t *testing.T) {
	svc := &fakeService{rec: &domain.Inspection{ID: uuid.New(), PaymentStatus: domain.PaymentStatusPaid}}
	rec := serve(newTestMux(svc), httptest.NewRequest(http.MethodPost, "/inspections/"+uuid.NewString()+"/pay", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.PayParams{}, svc.params)
}
