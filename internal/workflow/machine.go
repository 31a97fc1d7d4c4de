// Package workflow holds the inspection state machine, the eligibility gates,
// and the dispute rules. Everything here is pure: no I/O, no clocks, no
// globals. The orchestrator in internal/service supplies time and collaborators.
package workflow

import (
	"fmt"
	"time"

	"github.com/DukeRupert/rentcheck/internal/domain"
	"github.com/google/uuid"
)

// Operation names used in returned errors.
const (
	OpSubmitPre      = "inspection.submit_pre"
	OpAcceptPre      = "inspection.accept_pre"
	OpDiscrepancy    = "inspection.report_discrepancy"
	OpStartRental    = "inspection.start_rental"
	OpSubmitPost     = "inspection.submit_post"
	OpAcceptPost     = "inspection.accept_post"
	OpRaiseDispute   = "inspection.raise_dispute"
	OpReviewDispute  = "dispute.review"
	OpResolveDispute = "dispute.resolve"
	OpRecordPayment  = "inspection.record_payment"
	OpCreate         = "inspection.create"
)

// Config holds the tunables of the state machine.
type Config struct {
	MinReturnPhotos int
	MaxReturnPhotos int

	// MaxPhotos caps pre-inspection and dispute photos.
	MaxPhotos int
}

// DefaultConfig returns the production limits.
func DefaultConfig() Config {
	return Config{
		MinReturnPhotos: domain.MinReturnPhotos,
		MaxReturnPhotos: domain.MaxReturnPhotos,
		MaxPhotos:       domain.MaxSubmissionPhotos,
	}
}

// Machine computes inspection transitions.
type Machine struct {
	cfg Config
}

// NewMachine creates a state machine. Zero limits fall back to the defaults.
func NewMachine(cfg Config) *Machine {
	def := DefaultConfig()
	if cfg.MinReturnPhotos <= 0 {
		cfg.MinReturnPhotos = def.MinReturnPhotos
	}
	if cfg.MaxReturnPhotos <= 0 {
		cfg.MaxReturnPhotos = def.MaxReturnPhotos
	}
	if cfg.MaxPhotos <= 0 {
		cfg.MaxPhotos = def.MaxPhotos
	}
	return &Machine{cfg: cfg}
}

// Config returns the limits the machine enforces.
func (m *Machine) Config() Config {
	return m.cfg
}

// Apply validates action against rec and returns the next record. rec is
// never modified. On error the returned record is rec itself.
//
// Checks run in a fixed order: acting party, payment gate, state, then input.
// A replayed submission (see IsReplay) returns rec unchanged with no error.
func (m *Machine) Apply(rec domain.Inspection, action Action, env Env) (domain.Inspection, error) {
	if IsReplay(&rec, action) {
		return rec, nil
	}

	next := rec.Clone()
	var err error

	switch a := action.(type) {
	case SubmitPreInspection:
		err = m.submitPre(&next, a, env)
	case AcceptPreInspection:
		err = m.acceptPre(&next, a, env)
	case ReportDiscrepancy:
		err = m.reportDiscrepancy(&next, a, env)
	case StartRental:
		err = m.startRental(&next, env)
	case SubmitPostInspection:
		err = m.submitPost(&next, a, env)
	case AcceptPostInspection:
		err = m.acceptPost(&next, a, env)
	case RaisePostDispute:
		err = m.raisePostDispute(&next, a, env)
	case ReviewDispute:
		err = m.reviewDispute(&next, a, env)
	case ResolveDispute:
		err = m.resolveDispute(&next, a, env)
	case RecordPayment:
		err = m.recordPayment(&next, a)
	default:
		err = domain.Invalid("inspection.apply", fmt.Sprintf("unknown action %T", action))
	}
	if err != nil {
		return rec, err
	}

	if err := CheckInvariants(&next); err != nil {
		return rec, domain.Internal(err, string(action.Kind()), "transition produced an inconsistent record")
	}

	next.UpdatedAt = env.Now.UTC()
	return next, nil
}

// Permit reports whether action would be accepted, without producing a record.
// The orchestrator calls it before uploading any attachment.
func (m *Machine) Permit(rec domain.Inspection, action Action, env Env) error {
	_, err := m.Apply(rec, action, env)
	return err
}

// IsReplay reports whether action re-sends a submission the record already
// holds. Replays are acknowledged without changing anything.
func IsReplay(rec *domain.Inspection, action Action) bool {
	switch a := action.(type) {
	case SubmitPreInspection:
		return a.SubmissionID != uuid.Nil && a.SubmissionID == rec.PreSubmissionID()
	case SubmitPostInspection:
		return a.SubmissionID != uuid.Nil && a.SubmissionID == rec.PostSubmissionID()
	case ReportDiscrepancy:
		return a.DisputeID != uuid.Nil && rec.FindDispute(a.DisputeID) != nil
	case RaisePostDispute:
		return a.DisputeID != uuid.Nil && rec.FindDispute(a.DisputeID) != nil
	}
	return false
}

// =============================================================================
// Pre-rental exchange
// =============================================================================

func (m *Machine) submitPre(rec *domain.Inspection, a SubmitPreInspection, env Env) error {
	const op = OpSubmitPre

	if !actsAs(env.Actor, rec, domain.PartyOwner) {
		return domain.Forbidden(op, "only the owner may submit the pre-rental inspection")
	}
	if err := RequirePaid(op, rec); err != nil {
		return err
	}
	if rec.OwnerPreInspection != nil {
		return domain.InvalidTransition(op, rec.Status, "resubmit a pre-rental inspection")
	}
	if rec.Status != domain.InspectionStatusPrePending {
		return domain.InvalidTransition(op, rec.Status, "submit a pre-rental inspection")
	}

	if a.SubmissionID == uuid.Nil {
		return domain.InvalidField(op, "submissionId", "submission id is required")
	}
	if err := a.Condition.Validate(op, "condition."); err != nil {
		return err
	}
	if len(a.Photos) > m.cfg.MaxPhotos {
		return domain.InvalidField(op, "photos", fmt.Sprintf("at most %d photos are allowed", m.cfg.MaxPhotos))
	}
	if a.Location != nil {
		if err := a.Location.Validate(op, "location"); err != nil {
			return err
		}
	}

	rec.OwnerPreInspection = &domain.OwnerPreInspectionData{
		SubmissionID: a.SubmissionID,
		Condition:    a.Condition,
		Photos:       append([]domain.Photo(nil), a.Photos...),
		Notes:        a.Notes,
		Location:     a.Location,
		Timestamp:    env.Now.UTC(),
	}
	rec.Status = domain.InspectionStatusPreSubmitted
	return nil
}

// checkPreReview runs the shared preconditions of the renter's two
// alternative decisions on the owner's pre-inspection.
func checkPreReview(op string, rec *domain.Inspection, submissionID uuid.UUID, accepting bool) error {
	if rec.OwnerPreInspection == nil {
		return domain.InvalidTransition(op, rec.Status, "review a pre-rental inspection that was not submitted")
	}
	if submissionID != rec.PreSubmissionID() {
		return domain.Stale(op, "the pre-rental inspection was replaced; refetch and review the current submission")
	}
	if (accepting && rec.RenterPreReviewAccepted) || (!accepting && rec.RenterDiscrepancyReported) {
		return domain.AlreadyProcessed(op, "this pre-rental inspection was already reviewed")
	}
	if rec.RenterPreReviewAccepted || rec.RenterDiscrepancyReported {
		return domain.InvalidTransition(op, rec.Status, "change the pre-rental review decision")
	}
	if rec.Status != domain.InspectionStatusPreSubmitted {
		return domain.InvalidTransition(op, rec.Status, "review a pre-rental inspection")
	}
	return nil
}

func (m *Machine) acceptPre(rec *domain.Inspection, a AcceptPreInspection, env Env) error {
	const op = OpAcceptPre

	if env.Actor != domain.PartyRenter {
		return domain.Forbidden(op, "only the renter may review the pre-rental inspection")
	}
	if err := RequirePaid(op, rec); err != nil {
		return err
	}
	if err := checkPreReview(op, rec, a.SubmissionID, true); err != nil {
		return err
	}

	rec.RenterPreReview = &domain.RenterPreReview{
		SubmissionID:       a.SubmissionID,
		Accepted:           true,
		Concerns:           append([]string(nil), a.Concerns...),
		AdditionalRequests: append([]string(nil), a.AdditionalRequests...),
		Timestamp:          env.Now.UTC(),
	}
	rec.RenterPreReviewAccepted = true
	rec.Status = domain.InspectionStatusPreAccepted
	return nil
}

func (m *Machine) reportDiscrepancy(rec *domain.Inspection, a ReportDiscrepancy, env Env) error {
	const op = OpDiscrepancy

	if env.Actor != domain.PartyRenter {
		return domain.Forbidden(op, "only the renter may report a discrepancy")
	}
	if err := RequirePaid(op, rec); err != nil {
		return err
	}
	if err := checkPreReview(op, rec, a.SubmissionID, false); err != nil {
		return err
	}

	in := DisputeInput{
		DisputeID:   a.DisputeID,
		DisputeType: a.DisputeType,
		Reason:      a.Notes,
		Issues:      a.Issues,
		Photos:      a.Photos,
	}
	if in.DisputeType == "" {
		in.DisputeType = domain.DefaultDiscrepancyType
	}
	if err := m.validateDiscrepancy(op, in); err != nil {
		return err
	}

	d := newDispute(rec, in, a.SubmissionID, domain.DisputePhasePreRental, env)
	rec.Disputes = append(rec.Disputes, d)
	rec.RenterPreReview = &domain.RenterPreReview{
		SubmissionID: a.SubmissionID,
		Accepted:     false,
		Concerns:     append([]string(nil), a.Issues...),
		Timestamp:    env.Now.UTC(),
	}
	rec.RenterDiscrepancyReported = true
	rec.Status = domain.InspectionStatusPreDiscrepancy
	return nil
}

// startRental moves the record into the rental period. A pre-rental
// discrepancy does not block it.
func (m *Machine) startRental(rec *domain.Inspection, env Env) error {
	const op = OpStartRental

	switch env.Actor {
	case domain.PartyOwner, domain.PartyRenter, domain.PartySystem, domain.PartyAdmin:
	default:
		return domain.Forbidden(op, "only a booking party may start the rental")
	}
	switch rec.Status {
	case domain.InspectionStatusPreAccepted, domain.InspectionStatusPreDiscrepancy:
		rec.Status = domain.InspectionStatusRentalActive
		return nil
	case domain.InspectionStatusRentalActive:
		return domain.AlreadyProcessed(op, "the rental has already started")
	}
	return domain.InvalidTransition(op, rec.Status, "start the rental")
}

// =============================================================================
// Post-rental exchange
// =============================================================================

func (m *Machine) submitPost(rec *domain.Inspection, a SubmitPostInspection, env Env) error {
	const op = OpSubmitPost

	if !actsAs(env.Actor, rec, domain.PartyRenter) {
		return domain.Forbidden(op, "only the renter may submit the post-rental inspection")
	}
	if err := RequirePaid(op, rec); err != nil {
		return err
	}
	if rec.RenterPostInspection != nil {
		return domain.InvalidTransition(op, rec.Status, "resubmit a post-rental inspection")
	}

	switch rec.Status {
	case domain.InspectionStatusRentalActive:
		if !PostPhaseOpen(rec, env.BookingEndsAt, env.Now) {
			if env.BookingEndsAt == nil {
				return domain.Errorf(domain.ENOTELIGIBLE, op, "booking end time is unknown")
			}
			return domain.NotEligible(op, *env.BookingEndsAt)
		}
	case domain.InspectionStatusPostEligible:
	default:
		return domain.InvalidTransition(op, rec.Status, "submit a post-rental inspection")
	}

	if a.SubmissionID == uuid.Nil {
		return domain.InvalidField(op, "submissionId", "submission id is required")
	}
	if n := len(a.ReturnPhotos); n < m.cfg.MinReturnPhotos || n > m.cfg.MaxReturnPhotos {
		return domain.InvalidField(op, "returnPhotos",
			fmt.Sprintf("between %d and %d return photos are required, got %d", m.cfg.MinReturnPhotos, m.cfg.MaxReturnPhotos, n))
	}
	if err := a.ReturnLocation.Validate(op, "returnLocation"); err != nil {
		return err
	}
	if !a.Confirmed {
		return domain.InvalidField(op, "confirmed", "the renter must confirm the post-rental inspection")
	}
	if err := a.Condition.Validate(op, "condition."); err != nil {
		return err
	}

	rec.RenterPostInspection = &domain.RenterPostInspectionData{
		SubmissionID:   a.SubmissionID,
		Condition:      a.Condition,
		ReturnPhotos:   append([]domain.Photo(nil), a.ReturnPhotos...),
		Notes:          a.Notes,
		ReturnLocation: a.ReturnLocation,
		Confirmed:      true,
		Timestamp:      env.Now.UTC(),
	}
	rec.RenterPostInspectionConfirmed = true
	rec.Status = domain.InspectionStatusPostSubmitted
	return nil
}

// checkPostReview runs the shared preconditions of the owner's decisions on
// the renter's post-inspection.
func checkPostReview(op string, rec *domain.Inspection, submissionID uuid.UUID) error {
	if rec.RenterPostInspection == nil {
		return domain.InvalidTransition(op, rec.Status, "review a post-rental inspection that was not submitted")
	}
	if submissionID != rec.PostSubmissionID() {
		return domain.Stale(op, "the post-rental inspection was replaced; refetch and review the current submission")
	}
	return nil
}

// acceptPost closes the record. POST_ACCEPTED is transient: acceptance closes
// the rental in the same step.
func (m *Machine) acceptPost(rec *domain.Inspection, a AcceptPostInspection, env Env) error {
	const op = OpAcceptPost

	if env.Actor != domain.PartyOwner {
		return domain.Forbidden(op, "only the owner may review the post-rental inspection")
	}
	if err := RequirePaid(op, rec); err != nil {
		return err
	}
	if err := checkPostReview(op, rec, a.SubmissionID); err != nil {
		return err
	}
	if rec.OwnerPostReviewAccepted {
		return domain.AlreadyProcessed(op, "this post-rental inspection was already accepted")
	}

	switch rec.Status {
	case domain.InspectionStatusPostSubmitted:
	case domain.InspectionStatusPostDisputed:
		// A rejected dispute leaves the owner free to accept instead.
		if rec.OpenDispute() != nil {
			return domain.InvalidTransition(op, rec.Status, "accept while a dispute is open")
		}
	default:
		return domain.InvalidTransition(op, rec.Status, "accept the post-rental inspection")
	}

	now := env.Now.UTC()
	rec.OwnerPostReview = &domain.OwnerPostReview{
		SubmissionID: a.SubmissionID,
		Accepted:     true,
		ConfirmedAt:  &now,
	}
	rec.OwnerPostReviewAccepted = true
	rec.OwnerDisputeRaised = false
	closeRecord(rec, now)
	return nil
}

func (m *Machine) raisePostDispute(rec *domain.Inspection, a RaisePostDispute, env Env) error {
	const op = OpRaiseDispute

	if env.Actor != domain.PartyOwner {
		return domain.Forbidden(op, "only the owner may dispute the post-rental inspection")
	}
	if err := RequirePaid(op, rec); err != nil {
		return err
	}
	if err := checkPostReview(op, rec, a.SubmissionID); err != nil {
		return err
	}

	switch rec.Status {
	case domain.InspectionStatusPostSubmitted:
	case domain.InspectionStatusPostDisputed:
		if rec.OpenDispute() != nil {
			return domain.AlreadyProcessed(op, "a dispute on this post-rental inspection is already open")
		}
	default:
		return domain.InvalidTransition(op, rec.Status, "dispute the post-rental inspection")
	}

	in := DisputeInput{
		DisputeID:   a.DisputeID,
		DisputeType: a.DisputeType,
		Reason:      a.Reason,
		Evidence:    a.Evidence,
		Photos:      a.Photos,
	}
	if err := m.validateDispute(op, in); err != nil {
		return err
	}

	d := newDispute(rec, in, a.SubmissionID, domain.DisputePhasePostRental, env)
	rec.Disputes = append(rec.Disputes, d)
	rec.OwnerPostReview = &domain.OwnerPostReview{
		SubmissionID:    a.SubmissionID,
		DisputeRaised:   true,
		DisputeType:     d.DisputeType,
		DisputeReason:   d.Reason,
		DisputeEvidence: d.Evidence,
		DisputePhotos:   append([]domain.Photo(nil), d.Photos...),
	}
	rec.OwnerDisputeRaised = true
	rec.Status = domain.InspectionStatusPostDisputed
	return nil
}

// =============================================================================
// Payment
// =============================================================================

func (m *Machine) recordPayment(rec *domain.Inspection, a RecordPayment) error {
	const op = OpRecordPayment

	if !rec.IsThirdPartyInspection {
		return domain.Invalid(op, "inspection does not require payment")
	}
	if rec.PaymentStatus == domain.PaymentStatusPaid {
		return domain.AlreadyProcessed(op, "inspection is already paid")
	}
	if !a.Status.IsValid() {
		return domain.InvalidField(op, "paymentStatus", fmt.Sprintf("unknown payment status %q", a.Status))
	}

	rec.PaymentStatus = a.Status
	if a.Reference != "" {
		rec.PaymentReference = a.Reference
	}
	if a.Status == domain.PaymentStatusPaid && rec.Status == domain.InspectionStatusCreated {
		rec.Status = openStatus(rec.InspectionType)
	}
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

// actsAs reports whether actor may act for party. A paid third-party
// inspector substitutes for the party's self-assessment.
func actsAs(actor domain.Party, rec *domain.Inspection, party domain.Party) bool {
	if actor == party {
		return true
	}
	return rec.IsThirdPartyInspection && actor == domain.PartyInspector
}

func closeRecord(rec *domain.Inspection, now time.Time) {
	rec.Status = domain.InspectionStatusClosed
	rec.ClosedAt = &now
}
