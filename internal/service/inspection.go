// Package service contains the business logic layer.
//
// This file implements the inspection workflow orchestrator: the only place
// where the pure state machine meets storage, bookings, payments and
// notifications.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/DukeRupert/rentcheck/internal/domain"
	"github.com/DukeRupert/rentcheck/internal/metrics"
	"github.com/DukeRupert/rentcheck/internal/workflow"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// Interface Definition
// =============================================================================

// InspectionService runs the rental inspection workflow. Every mutating call
// returns the updated record or a *domain.Error.
type InspectionService interface {
	// Create requests an inspection for a booking. Only the booking's owner
	// or staff may create one.
	Create(ctx context.Context, actor domain.Actor, params domain.CreateInspectionParams) (*domain.Inspection, error)

	// Get returns the record with its status projected to now.
	Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Inspection, error)

	ListByBooking(ctx context.Context, actor domain.Actor, bookingID uuid.UUID) ([]domain.Inspection, error)
	ListDisputes(ctx context.Context, actor domain.Actor, inspectionID uuid.UUID) ([]domain.Dispute, error)

	SubmitPreInspection(ctx context.Context, actor domain.Actor, id uuid.UUID, params domain.SubmitPreInspectionParams) (*domain.Inspection, error)
	SubmitPreReview(ctx context.Context, actor domain.Actor, id uuid.UUID, params domain.PreReviewParams) (*domain.Inspection, error)
	ReportDiscrepancy(ctx context.Context, actor domain.Actor, id uuid.UUID, params domain.DiscrepancyParams) (*domain.Inspection, error)
	StartRental(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Inspection, error)

	// SubmitPostInspection fails with domain.ENOTELIGIBLE before the booking
	// ends. No photo is stored unless the submission is otherwise acceptable.
	SubmitPostInspection(ctx context.Context, actor domain.Actor, id uuid.UUID, params domain.SubmitPostInspectionParams) (*domain.Inspection, error)
	SubmitPostReview(ctx context.Context, actor domain.Actor, id uuid.UUID, params domain.PostReviewParams) (*domain.Inspection, error)

	// Pay charges a third-party inspection fee and opens the record once paid.
	Pay(ctx context.Context, actor domain.Actor, id uuid.UUID, params domain.PayParams) (*domain.Inspection, error)

	ReviewDispute(ctx context.Context, actor domain.Actor, disputeID uuid.UUID) (*domain.Inspection, error)
	ResolveDispute(ctx context.Context, actor domain.Actor, disputeID uuid.UUID, params domain.ResolveDisputeParams) (*domain.Inspection, error)
}

// WorkflowConfig carries the workflow tunables. Zero values fall back to
// defaults.
type WorkflowConfig struct {
	MinReturnPhotos int
	MaxReturnPhotos int
	MaxPhotos       int

	// SaveRetries bounds retries of a save that failed for a transient reason.
	SaveRetries int

	// UploadConcurrency bounds parallel photo uploads per submission.
	UploadConcurrency int

	// ResolverRoles are platform roles allowed to review and resolve disputes.
	ResolverRoles []string

	// Currency is used for third-party inspections created without one.
	Currency string

	NotifyTimeout time.Duration
}

func (c WorkflowConfig) withDefaults() WorkflowConfig {
	if c.SaveRetries < 0 {
		c.SaveRetries = 0
	}
	if c.UploadConcurrency <= 0 {
		c.UploadConcurrency = 4
	}
	if len(c.ResolverRoles) == 0 {
		c.ResolverRoles = []string{domain.RoleInspector, domain.RoleAdmin}
	}
	if c.Currency == "" {
		c.Currency = "usd"
	}
	if c.NotifyTimeout <= 0 {
		c.NotifyTimeout = 5 * time.Second
	}
	return c
}

// Dependencies groups the orchestrator's collaborators.
type Dependencies struct {
	Store       InspectionStore
	Attachments AttachmentStore
	Bookings    BookingLookup
	Payments    PaymentGateway
	Notifier    Notifier
	Purger      AttachmentPurger
}

// =============================================================================
// Implementation
// =============================================================================

type inspectionService struct {
	store       InspectionStore
	attachments AttachmentStore
	bookings    BookingLookup
	payments    PaymentGateway
	notifier    Notifier
	purger      AttachmentPurger
	machine     *workflow.Machine
	cfg         WorkflowConfig
	logger      *slog.Logger
	now         func() time.Time
}

// NewInspectionService creates the workflow orchestrator.
func NewInspectionService(deps Dependencies, cfg WorkflowConfig, logger *slog.Logger) InspectionService {
	cfg = cfg.withDefaults()
	return &inspectionService{
		store:       deps.Store,
		attachments: deps.Attachments,
		bookings:    deps.Bookings,
		payments:    deps.Payments,
		notifier:    deps.Notifier,
		purger:      deps.Purger,
		machine: workflow.NewMachine(workflow.Config{
			MinReturnPhotos: cfg.MinReturnPhotos,
			MaxReturnPhotos: cfg.MaxReturnPhotos,
			MaxPhotos:       cfg.MaxPhotos,
		}),
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// =============================================================================
// Create / Read
// =============================================================================

func (s *inspectionService) Create(ctx context.Context, actor domain.Actor, params domain.CreateInspectionParams) (*domain.Inspection, error) {
	const op = workflow.OpCreate

	if params.BookingID == uuid.Nil {
		return nil, domain.InvalidField(op, "bookingId", "booking id is required")
	}
	booking, err := s.bookings.GetBooking(ctx, params.BookingID)
	if err != nil {
		return nil, err
	}
	party, err := s.partyFor(op, actor, booking)
	if err != nil {
		return nil, err
	}
	switch party {
	case domain.PartyOwner, domain.PartyAdmin, domain.PartySystem:
	default:
		return nil, domain.Forbidden(op, "only the owner can request an inspection")
	}
	if booking.IsCancelled() {
		return nil, domain.Invalid(op, "booking is cancelled")
	}

	if params.ProductID == uuid.Nil {
		params.ProductID = booking.ProductID
	} else if params.ProductID != booking.ProductID {
		return nil, domain.InvalidField(op, "productId", "product does not belong to the booking")
	}
	if params.IsThirdPartyInspection && params.Currency == "" {
		params.Currency = s.cfg.Currency
	}

	rec, err := workflow.NewInspection(params, s.now())
	if err != nil {
		return nil, err
	}
	created, err := s.store.Create(ctx, rec)
	if err != nil {
		return nil, err
	}

	metrics.InspectionCreated(created.InspectionType, created.IsThirdPartyInspection)
	s.logger.Info("inspection created",
		"inspection_id", created.ID,
		"booking_id", created.BookingID,
		"type", created.InspectionType,
		"status", created.Status,
	)
	s.notify(ctx, &created, booking, domain.EventInspectionCreated, nil)
	return s.present(&created, booking), nil
}

func (s *inspectionService) Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Inspection, error) {
	const op = "inspection.get"

	rec, booking, _, err := s.load(ctx, op, actor, id)
	if err != nil {
		return nil, err
	}
	if workflow.IsThirdPartyPayable(&rec) && rec.PaymentReference != "" {
		rec = s.refreshPayment(ctx, rec, booking, actor)
	}
	return s.present(&rec, booking), nil
}

func (s *inspectionService) ListByBooking(ctx context.Context, actor domain.Actor, bookingID uuid.UUID) ([]domain.Inspection, error) {
	const op = "inspection.list_by_booking"

	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if _, err := s.partyFor(op, actor, booking); err != nil {
		return nil, err
	}
	recs, err := s.store.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Inspection, 0, len(recs))
	for i := range recs {
		out = append(out, *s.present(&recs[i], booking))
	}
	return out, nil
}

func (s *inspectionService) ListDisputes(ctx context.Context, actor domain.Actor, inspectionID uuid.UUID) ([]domain.Dispute, error) {
	const op = "inspection.list_disputes"

	rec, _, _, err := s.load(ctx, op, actor, inspectionID)
	if err != nil {
		return nil, err
	}
	return rec.Disputes, nil
}

// refreshPayment pulls a pending payment's status from the gateway. Failures
// leave the record as stored.
func (s *inspectionService) refreshPayment(ctx context.Context, rec domain.Inspection, booking domain.Booking, actor domain.Actor) domain.Inspection {
	result, err := s.payments.Status(ctx, rec.PaymentReference)
	if err != nil {
		s.logger.Warn("payment status refresh failed", "inspection_id", rec.ID, "error", err)
		return rec
	}
	if result.Status == rec.PaymentStatus {
		return rec
	}
	env := workflow.Env{Now: s.now().UTC(), Actor: domain.PartySystem, ActorID: actor.UserID, BookingEndsAt: &booking.EndsAt}
	action := workflow.RecordPayment{Status: result.Status, Reference: result.Reference}
	next, err := s.machine.Apply(rec, action, env)
	if err != nil {
		s.logger.Warn("payment status not applied", "inspection_id", rec.ID, "error", err)
		return rec
	}
	saved, err := s.store.Save(ctx, next, rec.Version)
	if err != nil {
		s.logger.Warn("payment status not saved", "inspection_id", rec.ID, "error", err)
		return rec
	}
	metrics.Payment(saved.PaymentStatus)
	if saved.PaymentStatus == domain.PaymentStatusPaid {
		s.notify(ctx, &saved, booking, domain.EventInspectionPaid, nil)
	}
	return saved
}

// =============================================================================
// Pre-rental exchange
// =============================================================================

func (s *inspectionService) SubmitPreInspection(ctx context.Context, actor domain.Actor, id uuid.UUID, params domain.SubmitPreInspectionParams) (*domain.Inspection, error) {
	return s.run(ctx, step{
		op:     workflow.OpSubmitPre,
		id:     id,
		actor:  actor,
		kind:   "pre",
		photos: params.Photos,
		event:  domain.EventPreInspectionSubmit,
		build: func(photos []domain.Photo) workflow.Action {
			return workflow.SubmitPreInspection{
				SubmissionID: params.SubmissionID,
				Condition:    params.Condition,
				Photos:       photos,
				Notes:        params.Notes,
				Location:     params.Location,
			}
		},
	})
}

func (s *inspectionService) SubmitPreReview(ctx context.Context, actor domain.Actor, id uuid.UUID, params domain.PreReviewParams) (*domain.Inspection, error) {
	if !params.Accepted {
		return s.ReportDiscrepancy(ctx, actor, id, domain.DiscrepancyParams{
			SubmissionID: params.SubmissionID,
			Issues:       params.Concerns,
			Notes:        params.Notes,
		})
	}
	return s.run(ctx, step{
		op:    workflow.OpAcceptPre,
		id:    id,
		actor: actor,
		event: domain.EventPreInspectionAccepted,
		build: func([]domain.Photo) workflow.Action {
			return workflow.AcceptPreInspection{
				SubmissionID:       params.SubmissionID,
				Concerns:           params.Concerns,
				AdditionalRequests: params.AdditionalRequests,
			}
		},
	})
}

func (s *inspectionService) ReportDiscrepancy(ctx context.Context, actor domain.Actor, id uuid.UUID, params domain.DiscrepancyParams) (*domain.Inspection, error) {
	// A fixed dispute id makes retries of this request recognizable.
	if params.DisputeID == uuid.Nil {
		params.DisputeID = uuid.New()
	}
	return s.run(ctx, step{
		op:      workflow.OpDiscrepancy,
		id:      id,
		actor:   actor,
		kind:    "disputes",
		photos:  params.Photos,
		event:   domain.EventDiscrepancyReported,
		dispute: &params.DisputeID,
		raises:  true,
		build: func(photos []domain.Photo) workflow.Action {
			return workflow.ReportDiscrepancy{
				SubmissionID: params.SubmissionID,
				DisputeID:    params.DisputeID,
				DisputeType:  params.DisputeType,
				Issues:       params.Issues,
				Notes:        params.Notes,
				Photos:       photos,
			}
		},
	})
}

func (s *inspectionService) StartRental(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Inspection, error) {
	return s.run(ctx, step{
		op:    workflow.OpStartRental,
		id:    id,
		actor: actor,
		event: domain.EventRentalStarted,
		build: func([]domain.Photo) workflow.Action { return workflow.StartRental{} },
	})
}

// =============================================================================
// Post-rental exchange
// =============================================================================

func (s *inspectionService) SubmitPostInspection(ctx context.Context, actor domain.Actor, id uuid.UUID, params domain.SubmitPostInspectionParams) (*domain.Inspection, error) {
	return s.run(ctx, step{
		op:     workflow.OpSubmitPost,
		id:     id,
		actor:  actor,
		kind:   "post",
		photos: params.ReturnPhotos,
		event:  domain.EventPostInspectionSubmit,
		build: func(photos []domain.Photo) workflow.Action {
			return workflow.SubmitPostInspection{
				SubmissionID:   params.SubmissionID,
				Condition:      params.Condition,
				ReturnPhotos:   photos,
				Notes:          params.Notes,
				ReturnLocation: params.ReturnLocation,
				Confirmed:      params.Confirmed,
			}
		},
	})
}

func (s *inspectionService) SubmitPostReview(ctx context.Context, actor domain.Actor, id uuid.UUID, params domain.PostReviewParams) (*domain.Inspection, error) {
	if params.Accepted {
		return s.run(ctx, step{
			op:    workflow.OpAcceptPost,
			id:    id,
			actor: actor,
			event: domain.EventPostInspectionClosed,
			build: func([]domain.Photo) workflow.Action {
				return workflow.AcceptPostInspection{SubmissionID: params.SubmissionID}
			},
		})
	}

	if params.DisputeID == uuid.Nil {
		params.DisputeID = uuid.New()
	}
	return s.run(ctx, step{
		op:      workflow.OpRaiseDispute,
		id:      id,
		actor:   actor,
		kind:    "disputes",
		photos:  params.Photos,
		event:   domain.EventDisputeRaised,
		dispute: &params.DisputeID,
		raises:  true,
		build: func(photos []domain.Photo) workflow.Action {
			return workflow.RaisePostDispute{
				SubmissionID: params.SubmissionID,
				DisputeID:    params.DisputeID,
				DisputeType:  params.DisputeType,
				Reason:       params.Reason,
				Evidence:     params.Evidence,
				Photos:       photos,
			}
		},
	})
}

// =============================================================================
// Disputes
// =============================================================================

func (s *inspectionService) ReviewDispute(ctx context.Context, actor domain.Actor, disputeID uuid.UUID) (*domain.Inspection, error) {
	inspectionID, err := s.store.InspectionForDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, step{
		op:      workflow.OpReviewDispute,
		id:      inspectionID,
		actor:   actor,
		event:   domain.EventDisputeUnderReview,
		dispute: &disputeID,
		build: func([]domain.Photo) workflow.Action {
			return workflow.ReviewDispute{DisputeID: disputeID}
		},
	})
}

func (s *inspectionService) ResolveDispute(ctx context.Context, actor domain.Actor, disputeID uuid.UUID, params domain.ResolveDisputeParams) (*domain.Inspection, error) {
	inspectionID, err := s.store.InspectionForDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	event := domain.EventDisputeResolved
	if params.Outcome == domain.DisputeStatusRejected {
		event = domain.EventDisputeRejected
	}
	rec, err := s.run(ctx, step{
		op:      workflow.OpResolveDispute,
		id:      inspectionID,
		actor:   actor,
		event:   event,
		dispute: &disputeID,
		build: func([]domain.Photo) workflow.Action {
			return workflow.ResolveDispute{
				DisputeID:       disputeID,
				Outcome:         params.Outcome,
				ResolutionNotes: params.ResolutionNotes,
			}
		},
	})
	if err == nil {
		metrics.DisputeResolved(params.Outcome)
	}
	return rec, err
}

// =============================================================================
// Payment
// =============================================================================

func (s *inspectionService) Pay(ctx context.Context, actor domain.Actor, id uuid.UUID, params domain.PayParams) (*domain.Inspection, error) {
	const op = "inspection.pay"

	rec, booking, party, err := s.load(ctx, op, actor, id)
	if err != nil {
		return nil, err
	}
	env := s.env(party, actor, booking)

	// Reject unpayable records before anything is charged.
	if err := s.machine.Permit(rec, workflow.RecordPayment{Status: domain.PaymentStatusPaid}, env); err != nil {
		metrics.Transition(op, err)
		return nil, err
	}

	result, err := s.payments.Charge(ctx, domain.ChargeRequest{
		InspectionID:   rec.ID,
		AmountCents:    rec.InspectionCostCents,
		Currency:       rec.Currency,
		Description:    fmt.Sprintf("%s inspection %s", rec.InspectionTier, rec.ID),
		IdempotencyKey: fmt.Sprintf("inspection-%s-v%d", rec.ID, rec.Version),
		PaymentMethod:  params.PaymentMethod,
	})
	if err != nil {
		metrics.Transition(op, err)
		return nil, domain.Wrap(err, domain.EPAYMENT, op, "payment could not be processed")
	}

	action := workflow.RecordPayment{Status: result.Status, Reference: result.Reference}
	next, err := s.machine.Apply(rec, action, env)
	if err != nil {
		metrics.Transition(op, err)
		return nil, err
	}
	saved, _, err := s.save(ctx, op, next, rec.Version, action, env)
	metrics.Transition(op, err)
	if err != nil {
		return nil, err
	}
	metrics.Payment(saved.PaymentStatus)

	s.logger.Info("inspection payment recorded",
		"inspection_id", saved.ID,
		"payment_status", saved.PaymentStatus,
		"status", saved.Status,
	)

	if saved.PaymentStatus == domain.PaymentStatusFailed {
		return nil, domain.PaymentRequired(op, "payment failed; retry with another payment method")
	}
	if saved.PaymentStatus == domain.PaymentStatusPaid {
		s.notify(ctx, &saved, booking, domain.EventInspectionPaid, nil)
	}
	return s.present(&saved, booking), nil
}

// =============================================================================
// Orchestration
// =============================================================================

// step describes one workflow action for run.
type step struct {
	op    string
	id    uuid.UUID
	actor domain.Actor

	// kind groups uploaded photos in storage.
	kind   string
	photos []domain.PhotoInput

	event   domain.EventType
	dispute *uuid.UUID
	// raises marks dispute as a new id chosen by the caller.
	raises bool

	// build turns stored photos into the action. It is called once with
	// placeholders to check the action before any upload.
	build func(photos []domain.Photo) workflow.Action
}

// run loads the record, checks the action, stores its photos, applies the
// transition and saves it. Photos that end up unreferenced are removed.
func (s *inspectionService) run(ctx context.Context, st step) (*domain.Inspection, error) {
	rec, booking, party, err := s.load(ctx, st.op, st.actor, st.id)
	if err != nil {
		return nil, err
	}
	env := s.env(party, st.actor, booking)

	probe := st.build(make([]domain.Photo, len(st.photos)))
	if workflow.IsReplay(&rec, probe) {
		metrics.Replay(st.op)
		s.logger.Debug("submission replayed", "op", st.op, "inspection_id", rec.ID)
		return s.present(&rec, booking), nil
	}
	if err := s.machine.Permit(rec, probe, env); err != nil {
		metrics.Transition(st.op, err)
		return nil, err
	}
	if st.raises {
		if err := s.checkDisputeID(ctx, st.op, rec.ID, *st.dispute); err != nil {
			metrics.Transition(st.op, err)
			return nil, err
		}
	}

	photos, uploaded, err := s.storePhotos(ctx, st.op, rec.ID, st.kind, st.photos)
	if err != nil {
		metrics.Transition(st.op, err)
		return nil, err
	}

	action := st.build(photos)
	next, err := s.machine.Apply(rec, action, env)
	if err != nil {
		s.discard(ctx, rec.ID, uploaded)
		metrics.Transition(st.op, err)
		return nil, err
	}

	saved, maybeLanded, err := s.save(ctx, st.op, next, rec.Version, action, env)
	if err != nil {
		if maybeLanded {
			s.deferDiscard(ctx, rec.ID, uploaded)
		} else {
			s.discard(ctx, rec.ID, uploaded)
		}
		metrics.Transition(st.op, err)
		return nil, err
	}
	// A concurrent retry of the same submission may have won the save.
	s.discard(ctx, rec.ID, unreferenced(uploaded, &saved))

	metrics.Transition(st.op, nil)
	if st.dispute != nil {
		if d := saved.FindDispute(*st.dispute); d != nil && rec.FindDispute(*st.dispute) == nil {
			metrics.DisputeRaised(*d)
		}
	}
	s.logger.Info("inspection transition",
		"op", st.op,
		"inspection_id", saved.ID,
		"from", rec.Status,
		"to", saved.Status,
		"actor", party,
		"version", saved.Version,
	)
	s.notify(ctx, &saved, booking, st.event, st.dispute)
	return s.present(&saved, booking), nil
}

// save writes next with bounded retries. A retry first re-reads the record:
// if our write already landed the stored record is returned, and if anyone
// else moved the version the save fails with the most specific error the
// state machine gives for the fresh record. maybeLanded reports a failure
// after which nobody could tell whether the write was applied.
func (s *inspectionService) save(ctx context.Context, op string, next domain.Inspection, expected int64, action workflow.Action, env workflow.Env) (domain.Inspection, bool, error) {
	var lastErr error
	maybeLanded := false
	for attempt := 0; attempt <= s.cfg.SaveRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return domain.Inspection{}, maybeLanded, domain.Internal(ctx.Err(), op, "save abandoned")
			case <-time.After(time.Duration(attempt*attempt) * 50 * time.Millisecond):
			}
		}

		saved, err := s.store.Save(ctx, next, expected)
		if err == nil {
			return saved, false, nil
		}
		lastErr = err

		switch domain.ErrorCode(err) {
		case domain.ECONFLICT:
			metrics.SaveConflicts.Inc()
			if maybeLanded {
				// The conflict may be our own earlier write.
				fresh, gerr := s.store.Get(ctx, next.ID)
				if gerr != nil {
					return domain.Inspection{}, true, err
				}
				if workflow.IsReplay(&fresh, action) {
					return fresh, false, nil
				}
			}
			return domain.Inspection{}, false, s.explainConflict(ctx, op, next.ID, action, env, err)
		case domain.EINTERNAL:
			s.logger.Warn("inspection save failed", "op", op, "inspection_id", next.ID, "attempt", attempt+1, "error", err)
		default:
			return domain.Inspection{}, maybeLanded, err
		}

		fresh, gerr := s.store.Get(ctx, next.ID)
		if gerr != nil {
			maybeLanded = true
			continue
		}
		maybeLanded = false
		if fresh.Version != expected {
			if workflow.IsReplay(&fresh, action) {
				return fresh, false, nil
			}
			metrics.SaveConflicts.Inc()
			return domain.Inspection{}, false, s.explainConflict(ctx, op, next.ID, action, env, domain.Conflict(op, "inspection was modified concurrently"))
		}
	}
	return domain.Inspection{}, maybeLanded, lastErr
}

// explainConflict re-checks action against the current record so a losing
// concurrent decision reads as already_processed or stale_submission where
// that is what happened.
func (s *inspectionService) explainConflict(ctx context.Context, op string, id uuid.UUID, action workflow.Action, env workflow.Env, conflict error) error {
	fresh, err := s.store.Get(ctx, id)
	if err != nil {
		return conflict
	}
	if workflow.IsReplay(&fresh, action) {
		return domain.AlreadyProcessed(op, "submission was already recorded")
	}
	if perr := s.machine.Permit(fresh, action, env); perr != nil {
		switch domain.ErrorCode(perr) {
		case domain.EALREADY, domain.ESTALE, domain.ETRANSITION:
			return perr
		}
	}
	return conflict
}

// checkDisputeID rejects a caller-chosen dispute id that another inspection
// already holds. Dispute history is append-only, so an id is never reused.
func (s *inspectionService) checkDisputeID(ctx context.Context, op string, inspectionID, disputeID uuid.UUID) error {
	owner, err := s.store.InspectionForDispute(ctx, disputeID)
	switch {
	case domain.ErrorCode(err) == domain.ENOTFOUND:
		return nil
	case err != nil:
		return err
	case owner != inspectionID:
		return domain.Conflict(op, "dispute id is already in use")
	}
	return nil
}

// storePhotos resolves photo inputs to stored references. URLs must name
// photos already stored under the inspection. Uploads run in parallel; if
// any fails, the ones that succeeded are removed. uploaded holds only the
// photos this call stored.
func (s *inspectionService) storePhotos(ctx context.Context, op string, inspectionID uuid.UUID, kind string, inputs []domain.PhotoInput) (photos, uploaded []domain.Photo, err error) {
	if len(inputs) == 0 {
		return nil, nil, nil
	}
	photos = make([]domain.Photo, len(inputs))

	for i, in := range inputs {
		if in.IsUpload() {
			continue
		}
		p, err := s.attachments.Resolve(ctx, inspectionID, in.URL)
		if err != nil {
			if domain.ErrorCode(err) == domain.EINVALID {
				return nil, nil, domain.InvalidField(op, "photos", fmt.Sprintf("photo %d: %s", i+1, domain.ErrorMessage(err)))
			}
			return nil, nil, err
		}
		photos[i] = p
	}

	fresh := make([]domain.Photo, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.UploadConcurrency)
	for i, in := range inputs {
		if !in.IsUpload() {
			continue
		}
		g.Go(func() error {
			p, err := s.attachments.Store(gctx, inspectionID, kind, *in.Upload)
			if err != nil {
				return err
			}
			fresh[i] = p
			return nil
		})
	}
	werr := g.Wait()
	for i, p := range fresh {
		if p.IsStored() {
			photos[i] = p
			uploaded = append(uploaded, p)
		}
	}
	if werr != nil {
		s.discard(ctx, inspectionID, uploaded)
		if domain.ErrorCode(werr) == domain.EINTERNAL {
			return nil, nil, domain.UploadFailed(werr, op, "photo upload failed")
		}
		return nil, nil, werr
	}
	return photos, uploaded, nil
}

// discard removes stored photos that no record references. Keys that cannot
// be deleted now are handed to the purge queue.
func (s *inspectionService) discard(ctx context.Context, inspectionID uuid.UUID, photos []domain.Photo) {
	stored := slices.DeleteFunc(slices.Clone(photos), func(p domain.Photo) bool { return !p.IsStored() })
	if len(stored) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	failed, err := s.attachments.Remove(ctx, stored)
	if err == nil {
		return
	}
	s.logger.Warn("photo rollback incomplete", "inspection_id", inspectionID, "keys", len(failed), "error", err)
	if perr := s.purger.EnqueuePurge(ctx, inspectionID, failed); perr != nil {
		s.logger.Error("failed to schedule photo purge", "inspection_id", inspectionID, "keys", failed, "error", perr)
	}
}

// deferDiscard queues photos for the purge job instead of deleting them. It
// is used when a save may have landed: the job re-reads the record and keeps
// every key it references.
func (s *inspectionService) deferDiscard(ctx context.Context, inspectionID uuid.UUID, photos []domain.Photo) {
	keys := storedKeys(photos)
	if len(keys) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.logger.Warn("save outcome unknown, deferring photo cleanup", "inspection_id", inspectionID, "keys", len(keys))
	if err := s.purger.EnqueuePurge(ctx, inspectionID, keys); err != nil {
		s.logger.Error("failed to schedule photo purge", "inspection_id", inspectionID, "keys", keys, "error", err)
	}
}

// storedKeys lists the object keys behind photos, thumbnails included.
func storedKeys(photos []domain.Photo) []string {
	var keys []string
	for _, p := range photos {
		if !p.IsStored() {
			continue
		}
		keys = append(keys, p.StorageKey)
		if p.ThumbnailKey != "" {
			keys = append(keys, p.ThumbnailKey)
		}
	}
	return keys
}

// unreferenced returns the photos not present on rec.
func unreferenced(photos []domain.Photo, rec *domain.Inspection) []domain.Photo {
	if len(photos) == 0 {
		return nil
	}
	kept := make(map[string]bool)
	for _, p := range rec.AllPhotos() {
		if p.IsStored() {
			kept[p.StorageKey] = true
		}
	}
	var out []domain.Photo
	for _, p := range photos {
		if p.IsStored() && !kept[p.StorageKey] {
			out = append(out, p)
		}
	}
	return out
}

// =============================================================================
// Helpers
// =============================================================================

// load fetches the record and its booking and resolves the actor's party.
func (s *inspectionService) load(ctx context.Context, op string, actor domain.Actor, id uuid.UUID) (domain.Inspection, domain.Booking, domain.Party, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return domain.Inspection{}, domain.Booking{}, "", err
	}
	booking, err := s.bookings.GetBooking(ctx, rec.BookingID)
	if err != nil {
		return domain.Inspection{}, domain.Booking{}, "", err
	}
	party, err := s.partyFor(op, actor, booking)
	if err != nil {
		return domain.Inspection{}, domain.Booking{}, "", err
	}
	return rec, booking, party, nil
}

// partyFor maps the caller to a workflow party. Staff roles act as
// themselves; everyone else must be the booking's owner or renter.
func (s *inspectionService) partyFor(op string, actor domain.Actor, booking domain.Booking) (domain.Party, error) {
	switch actor.Role {
	case domain.RoleSystem:
		return domain.PartySystem, nil
	case domain.RoleInspector:
		return domain.PartyInspector, nil
	case domain.RoleAdmin:
		return domain.PartyAdmin, nil
	}
	if actor.Role != "" && slices.Contains(s.cfg.ResolverRoles, actor.Role) {
		return domain.PartyAdmin, nil
	}
	if actor.UserID == uuid.Nil {
		return "", domain.Forbidden(op, "caller is not identified")
	}
	if party := booking.PartyFor(actor.UserID); party != "" {
		return party, nil
	}
	return "", domain.Forbidden(op, "caller is not a party to this booking")
}

func (s *inspectionService) env(party domain.Party, actor domain.Actor, booking domain.Booking) workflow.Env {
	end := booking.EndsAt
	return workflow.Env{
		Now:           s.now().UTC(),
		Actor:         party,
		ActorID:       actor.UserID,
		BookingEndsAt: &end,
	}
}

// present returns a copy of rec with its status projected to now.
func (s *inspectionService) present(rec *domain.Inspection, booking domain.Booking) *domain.Inspection {
	out := rec.Clone()
	end := booking.EndsAt
	out.Status = workflow.ProjectStatus(&out, &end, s.now())
	return &out
}

// notify hands the event to the dispatcher. It never fails the caller.
func (s *inspectionService) notify(ctx context.Context, rec *domain.Inspection, booking domain.Booking, event domain.EventType, disputeID *uuid.UUID) {
	if s.notifier == nil || event == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.NotifyTimeout)
	defer cancel()

	ev := domain.Event{
		Type:         event,
		InspectionID: rec.ID,
		BookingID:    rec.BookingID,
		DisputeID:    disputeID,
		Status:       rec.Status,
		OccurredAt:   s.now().UTC(),
	}
	if err := s.notifier.Notify(ctx, ev, recipientsFor(event, booking)); err != nil {
		s.logger.Warn("notification dispatch failed", "event", event, "inspection_id", rec.ID, "error", err)
	}
}

// recipientsFor picks who hears about an event: the counterparty for
// submissions and decisions, both parties otherwise.
func recipientsFor(event domain.EventType, b domain.Booking) []domain.Recipient {
	owner := domain.Recipient{UserID: b.OwnerID, Party: domain.PartyOwner, Email: b.OwnerEmail}
	renter := domain.Recipient{UserID: b.RenterID, Party: domain.PartyRenter, Email: b.RenterEmail}

	switch event {
	case domain.EventPreInspectionSubmit, domain.EventDisputeRaised:
		return []domain.Recipient{renter}
	case domain.EventPreInspectionAccepted, domain.EventDiscrepancyReported, domain.EventPostInspectionSubmit:
		return []domain.Recipient{owner}
	}
	return []domain.Recipient{owner, renter}
}
