package workflow

import (
	"fmt"
	"strings"

	"github.com/DukeRupert/rentcheck/internal/domain"
	"github.com/google/uuid"
)

// DisputeInput is what a party supplies when raising a dispute or reporting
// a discrepancy.
type DisputeInput struct {
	DisputeID   uuid.UUID
	DisputeType domain.DisputeType
	Reason      string
	Evidence    string
	Issues      []string
	Photos      []domain.Photo
}

// validateDispute checks a post-rental dispute before anything changes.
func (m *Machine) validateDispute(op string, in DisputeInput) error {
	if in.DisputeType == "" {
		return domain.InvalidField(op, "disputeType", "dispute type is required")
	}
	if !in.DisputeType.IsValid() {
		return domain.InvalidField(op, "disputeType", fmt.Sprintf("unknown dispute type %q", in.DisputeType))
	}
	if strings.TrimSpace(in.Reason) == "" {
		return domain.InvalidField(op, "reason", "dispute reason is required")
	}
	if len(in.Photos) > m.cfg.MaxPhotos {
		return domain.InvalidField(op, "photos", fmt.Sprintf("at most %d photos are allowed", m.cfg.MaxPhotos))
	}
	return nil
}

// validateDiscrepancy adds the discrepancy's issue list requirement. The
// renter's notes become the dispute reason.
func (m *Machine) validateDiscrepancy(op string, in DisputeInput) error {
	if len(in.Issues) == 0 {
		return domain.InvalidField(op, "issues", "at least one issue is required")
	}
	for i, issue := range in.Issues {
		if strings.TrimSpace(issue) == "" {
			return domain.InvalidField(op, fmt.Sprintf("issues[%d]", i), "issue must not be empty")
		}
	}
	if strings.TrimSpace(in.Reason) == "" {
		return domain.InvalidField(op, "notes", "notes are required")
	}
	return m.validateDispute(op, in)
}

func newDispute(rec *domain.Inspection, in DisputeInput, submissionID uuid.UUID, phase domain.DisputePhase, env Env) domain.Dispute {
	id := in.DisputeID
	if id == uuid.Nil {
		id = uuid.New()
	}
	now := env.Now.UTC()
	return domain.Dispute{
		ID:           id,
		InspectionID: rec.ID,
		SubmissionID: submissionID,
		Phase:        phase,
		RaisedBy:     env.Actor,
		DisputeType:  in.DisputeType,
		Reason:       strings.TrimSpace(in.Reason),
		Evidence:     in.Evidence,
		Issues:       append([]string(nil), in.Issues...),
		Photos:       append([]domain.Photo(nil), in.Photos...),
		Status:       domain.DisputeStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// =============================================================================
// Resolution
// =============================================================================

func (m *Machine) reviewDispute(rec *domain.Inspection, a ReviewDispute, env Env) error {
	const op = OpReviewDispute

	if !env.Actor.CanResolveDisputes() {
		return domain.Forbidden(op, "only an inspector or admin may review disputes")
	}
	d := rec.FindDispute(a.DisputeID)
	if d == nil {
		return domain.NotFound(op, "dispute", a.DisputeID.String())
	}
	if d.Status == domain.DisputeStatusUnderReview {
		return domain.AlreadyProcessed(op, "dispute is already under review")
	}
	if !d.Status.CanTransitionTo(domain.DisputeStatusUnderReview) {
		return domain.Errorf(domain.ETRANSITION, op, "cannot review a dispute that is %s", d.Status)
	}

	d.Status = domain.DisputeStatusUnderReview
	d.UpdatedAt = env.Now.UTC()
	return nil
}

// resolveDispute records the resolver's outcome. A resolved post-rental
// dispute closes the record; a rejected one leaves it disputed until the
// owner accepts or raises a new dispute. Pre-rental discrepancies never move
// the record.
func (m *Machine) resolveDispute(rec *domain.Inspection, a ResolveDispute, env Env) error {
	const op = OpResolveDispute

	if !env.Actor.CanResolveDisputes() {
		return domain.Forbidden(op, "only an inspector or admin may resolve disputes")
	}
	if a.Outcome != domain.DisputeStatusResolved && a.Outcome != domain.DisputeStatusRejected {
		return domain.InvalidField(op, "outcome", "outcome must be resolved or rejected")
	}
	d := rec.FindDispute(a.DisputeID)
	if d == nil {
		return domain.NotFound(op, "dispute", a.DisputeID.String())
	}
	if d.Status == a.Outcome {
		return domain.AlreadyProcessed(op, fmt.Sprintf("dispute is already %s", d.Status))
	}
	if !d.Status.CanTransitionTo(a.Outcome) {
		return domain.Errorf(domain.ETRANSITION, op, "cannot %s a dispute that is %s", outcomeVerb(a.Outcome), d.Status)
	}

	now := env.Now.UTC()
	resolver := env.ActorID
	d.Status = a.Outcome
	d.UpdatedAt = now
	d.ResolvedAt = &now
	d.ResolvedBy = &resolver
	d.ResolutionNotes = strings.TrimSpace(a.ResolutionNotes)

	if d.Phase == domain.DisputePhasePostRental &&
		a.Outcome == domain.DisputeStatusResolved &&
		rec.Status == domain.InspectionStatusPostDisputed {
		closeRecord(rec, now)
	}
	return nil
}

func outcomeVerb(s domain.DisputeStatus) string {
	if s == domain.DisputeStatusRejected {
		return "reject"
	}
	return "resolve"
}
