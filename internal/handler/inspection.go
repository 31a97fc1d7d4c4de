// Package handler exposes the inspection workflow over a JSON HTTP API.
//
// Identity is asserted by the upstream gateway; handlers read the caller
// with auth.GetActorFromRequest and leave every workflow decision to the
// service layer. Errors are rendered by ErrorResponse.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/rentcheck/internal/auth"
	"github.com/DukeRupert/rentcheck/internal/domain"
	"github.com/DukeRupert/rentcheck/internal/service"
	"github.com/google/uuid"
)

// InspectionHandler serves inspection endpoints.
type InspectionHandler struct {
	service   service.InspectionService
	maxPhotos int
	logger    *slog.Logger
}

// NewInspectionHandler creates a new InspectionHandler. maxPhotos is the
// configured return photo maximum and bounds multipart request bodies.
func NewInspectionHandler(svc service.InspectionService, maxPhotos int, logger *slog.Logger) *InspectionHandler {
	return &InspectionHandler{
		service:   svc,
		maxPhotos: maxPhotos,
		logger:    logger,
	}
}

// RegisterRoutes registers inspection and dispute routes. read wraps
// queries; write wraps mutations.
func (h *InspectionHandler) RegisterRoutes(mux *http.ServeMux, read, write func(http.Handler) http.Handler) {
	mux.Handle("POST /inspections", write(http.HandlerFunc(h.Create)))
	mux.Handle("GET /inspections/{id}", read(http.HandlerFunc(h.Get)))
	mux.Handle("GET /inspections/{id}/disputes", read(http.HandlerFunc(h.ListDisputes)))
	mux.Handle("GET /bookings/{id}/inspections", read(http.HandlerFunc(h.ListByBooking)))

	mux.Handle("POST /inspections/{id}/pre-inspection", write(http.HandlerFunc(h.SubmitPreInspection)))
	mux.Handle("POST /inspections/{id}/pre-review", write(http.HandlerFunc(h.SubmitPreReview)))
	mux.Handle("POST /inspections/{id}/discrepancy", write(http.HandlerFunc(h.ReportDiscrepancy)))
	mux.Handle("POST /inspections/{id}/start-rental", write(http.HandlerFunc(h.StartRental)))
	mux.Handle("POST /inspections/{id}/post-inspection", write(http.HandlerFunc(h.SubmitPostInspection)))
	mux.Handle("POST /inspections/{id}/post-review", write(http.HandlerFunc(h.SubmitPostReview)))
	mux.Handle("POST /inspections/{id}/pay", write(http.HandlerFunc(h.Pay)))

	mux.Handle("POST /disputes/{id}/review", write(http.HandlerFunc(h.ReviewDispute)))
	mux.Handle("POST /disputes/{id}/resolve", write(http.HandlerFunc(h.ResolveDispute)))
}

// =============================================================================
// Request Bodies
// =============================================================================

type createRequest struct {
	BookingID              uuid.UUID             `json:"bookingId"`
	ProductID              uuid.UUID             `json:"productId"`
	InspectionType         domain.InspectionType `json:"inspectionType"`
	IsThirdPartyInspection bool                  `json:"isThirdPartyInspection"`
	InspectionTier         domain.InspectionTier `json:"inspectionTier"`
	InspectionCost         int64                 `json:"inspectionCost"`
	Currency               string                `json:"currency"`
}

type preInspectionRequest struct {
	SubmissionID uuid.UUID                  `json:"submissionId"`
	Condition    domain.ConditionAssessment `json:"condition"`
	Photos       []string                   `json:"photos"`
	Notes        string                     `json:"notes"`
	Location     *domain.GPSLocation        `json:"location"`
}

type preReviewRequest struct {
	SubmissionID       uuid.UUID `json:"submissionId"`
	Accepted           bool      `json:"accepted"`
	Concerns           []string  `json:"concerns"`
	AdditionalRequests []string  `json:"additionalRequests"`
	Notes              string    `json:"notes"`
}

type discrepancyRequest struct {
	SubmissionID uuid.UUID          `json:"submissionId"`
	DisputeID    uuid.UUID          `json:"disputeId"`
	DisputeType  domain.DisputeType `json:"disputeType"`
	Issues       []string           `json:"issues"`
	Notes        string             `json:"notes"`
	Photos       []string           `json:"photos"`
}

type postInspectionRequest struct {
	SubmissionID   uuid.UUID                  `json:"submissionId"`
	Condition      domain.ConditionAssessment `json:"condition"`
	ReturnPhotos   []string                   `json:"returnPhotos"`
	Notes          string                     `json:"notes"`
	ReturnLocation *domain.GPSLocation        `json:"returnLocation"`
	Confirmed      bool                       `json:"confirmed"`
}

type postReviewRequest struct {
	SubmissionID uuid.UUID          `json:"submissionId"`
	Accepted     bool               `json:"accepted"`
	DisputeID    uuid.UUID          `json:"disputeId"`
	DisputeType  domain.DisputeType `json:"disputeType"`
	Reason       string             `json:"reason"`
	Evidence     string             `json:"evidence"`
	Photos       []string           `json:"photos"`
}

type payRequest struct {
	PaymentMethod string `json:"paymentMethod"`
}

type resolveRequest struct {
	Outcome         domain.DisputeStatus `json:"outcome"`
	ResolutionNotes string               `json:"resolutionNotes"`
}

// =============================================================================
// Queries
// =============================================================================

// Get handles GET /inspections/{id}.
func (h *InspectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	rec, err := h.service.Get(r.Context(), actor, id)
	h.respond(w, r, rec, err)
}

// ListDisputes handles GET /inspections/{id}/disputes.
func (h *InspectionHandler) ListDisputes(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	disputes, err := h.service.ListDisputes(r.Context(), actor, id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if disputes == nil {
		disputes = []domain.Dispute{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"disputes": disputes})
}

// ListByBooking handles GET /bookings/{id}/inspections.
func (h *InspectionHandler) ListByBooking(w http.ResponseWriter, r *http.Request) {
	actor, bookingID, ok := h.target(w, r)
	if !ok {
		return
	}
	recs, err := h.service.ListByBooking(r.Context(), actor, bookingID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if recs == nil {
		recs = []domain.Inspection{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"inspections": recs})
}

// =============================================================================
// Mutations
// =============================================================================

// Create handles POST /inspections.
func (h *InspectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor := auth.GetActorFromRequest(r)
	if actor == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}
	var req createRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	rec, err := h.service.Create(r.Context(), *actor, domain.CreateInspectionParams{
		BookingID:              req.BookingID,
		ProductID:              req.ProductID,
		InspectionType:         req.InspectionType,
		IsThirdPartyInspection: req.IsThirdPartyInspection,
		InspectionTier:         req.InspectionTier,
		InspectionCostCents:    req.InspectionCost,
		Currency:               req.Currency,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// SubmitPreInspection handles POST /inspections/{id}/pre-inspection.
func (h *InspectionHandler) SubmitPreInspection(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req preInspectionRequest
	uploads, err := decodeSubmission(w, r, &req, h.maxPhotos)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	rec, err := h.service.SubmitPreInspection(r.Context(), actor, id, domain.SubmitPreInspectionParams{
		SubmissionID: req.SubmissionID,
		Condition:    req.Condition,
		Photos:       photoInputs(req.Photos, uploads),
		Notes:        req.Notes,
		Location:     req.Location,
	})
	h.respond(w, r, rec, err)
}

// SubmitPreReview handles POST /inspections/{id}/pre-review.
func (h *InspectionHandler) SubmitPreReview(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req preReviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	rec, err := h.service.SubmitPreReview(r.Context(), actor, id, domain.PreReviewParams{
		SubmissionID:       req.SubmissionID,
		Accepted:           req.Accepted,
		Concerns:           req.Concerns,
		AdditionalRequests: req.AdditionalRequests,
		Notes:              req.Notes,
	})
	h.respond(w, r, rec, err)
}

// ReportDiscrepancy handles POST /inspections/{id}/discrepancy.
func (h *InspectionHandler) ReportDiscrepancy(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req discrepancyRequest
	uploads, err := decodeSubmission(w, r, &req, h.maxPhotos)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	rec, err := h.service.ReportDiscrepancy(r.Context(), actor, id, domain.DiscrepancyParams{
		SubmissionID: req.SubmissionID,
		DisputeID:    req.DisputeID,
		DisputeType:  req.DisputeType,
		Issues:       req.Issues,
		Notes:        req.Notes,
		Photos:       photoInputs(req.Photos, uploads),
	})
	h.respond(w, r, rec, err)
}

// StartRental handles POST /inspections/{id}/start-rental.
func (h *InspectionHandler) StartRental(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	rec, err := h.service.StartRental(r.Context(), actor, id)
	h.respond(w, r, rec, err)
}

// SubmitPostInspection handles POST /inspections/{id}/post-inspection.
func (h *InspectionHandler) SubmitPostInspection(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req postInspectionRequest
	uploads, err := decodeSubmission(w, r, &req, h.maxPhotos)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	rec, err := h.service.SubmitPostInspection(r.Context(), actor, id, domain.SubmitPostInspectionParams{
		SubmissionID:   req.SubmissionID,
		Condition:      req.Condition,
		ReturnPhotos:   photoInputs(req.ReturnPhotos, uploads),
		Notes:          req.Notes,
		ReturnLocation: req.ReturnLocation,
		Confirmed:      req.Confirmed,
	})
	h.respond(w, r, rec, err)
}

// SubmitPostReview handles POST /inspections/{id}/post-review.
func (h *InspectionHandler) SubmitPostReview(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req postReviewRequest
	uploads, err := decodeSubmission(w, r, &req, h.maxPhotos)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	rec, err := h.service.SubmitPostReview(r.Context(), actor, id, domain.PostReviewParams{
		SubmissionID: req.SubmissionID,
		Accepted:     req.Accepted,
		DisputeID:    req.DisputeID,
		DisputeType:  req.DisputeType,
		Reason:       req.Reason,
		Evidence:     req.Evidence,
		Photos:       photoInputs(req.Photos, uploads),
	})
	h.respond(w, r, rec, err)
}

// Pay handles POST /inspections/{id}/pay.
func (h *InspectionHandler) Pay(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req payRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			ErrorResponse(w, r, h.logger, err)
			return
		}
	}

	rec, err := h.service.Pay(r.Context(), actor, id, domain.PayParams{PaymentMethod: req.PaymentMethod})
	h.respond(w, r, rec, err)
}

// ReviewDispute handles POST /disputes/{id}/review.
func (h *InspectionHandler) ReviewDispute(w http.ResponseWriter, r *http.Request) {
	actor, disputeID, ok := h.target(w, r)
	if !ok {
		return
	}
	rec, err := h.service.ReviewDispute(r.Context(), actor, disputeID)
	h.respond(w, r, rec, err)
}

// ResolveDispute handles POST /disputes/{id}/resolve.
func (h *InspectionHandler) ResolveDispute(w http.ResponseWriter, r *http.Request) {
	actor, disputeID, ok := h.target(w, r)
	if !ok {
		return
	}
	var req resolveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	rec, err := h.service.ResolveDispute(r.Context(), actor, disputeID, domain.ResolveDisputeParams{
		Outcome:         req.Outcome,
		ResolutionNotes: req.ResolutionNotes,
	})
	h.respond(w, r, rec, err)
}

// =============================================================================
// Helpers
// =============================================================================

// target returns the caller and the {id} path value, writing the error
// response itself when either is missing.
func (h *InspectionHandler) target(w http.ResponseWriter, r *http.Request) (domain.Actor, uuid.UUID, bool) {
	actor := auth.GetActorFromRequest(r)
	if actor == nil {
		UnauthorizedResponse(w, r, h.logger)
		return domain.Actor{}, uuid.Nil, false
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		InvalidResponse(w, r, h.logger, "id", "id must be a UUID")
		return domain.Actor{}, uuid.Nil, false
	}
	return *actor, id, true
}

func (h *InspectionHandler) respond(w http.ResponseWriter, r *http.Request, rec *domain.Inspection, err error) {
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
