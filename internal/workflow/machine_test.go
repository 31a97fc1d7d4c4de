package workflow

import (
	"fmt"
	"testing"
	"time"

	"github.com/DukeRupert/rentcheck/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	bookingEnd = time.Date(2025, 6, 10, 17, 0, 0, 0, time.UTC)
	beforeEnd  = bookingEnd.Add(-48 * time.Hour)
	afterEnd   = bookingEnd.Add(time.Hour)
)

func env(actor domain.Party, now time.Time) Env {
	end := bookingEnd
	return Env{Now: now, Actor: actor, ActorID: uuid.New(), BookingEndsAt: &end}
}

func ptr(f float64) *float64 { return &f }

func location() *domain.GPSLocation {
	return &domain.GPSLocation{Latitude: ptr(47.6), Longitude: ptr(-122.3), Timestamp: beforeEnd}
}

func photos(n int) []domain.Photo {
	out := make([]domain.Photo, n)
	for i := range out {
		out[i] = domain.Photo{ID: uuid.New(), URL: fmt.Sprintf("https://cdn.example.com/p/%d.jpg", i)}
	}
	return out
}

func goodCondition(items int) domain.ConditionAssessment {
	c := domain.ConditionAssessment{OverallCondition: domain.ConditionGood}
	for i := 0; i < items; i++ {
		c.Items = append(c.Items, domain.ItemCondition{Name: fmt.Sprintf("part %d", i), Condition: domain.ConditionGood})
	}
	return c
}

func newRecord(t *testing.T) domain.Inspection {
	t.Helper()
	rec, err := NewInspection(domain.CreateInspectionParams{
		BookingID:      uuid.New(),
		ProductID:      uuid.New(),
		InspectionType: domain.InspectionTypePreRental,
	}, beforeEnd)
	require.NoError(t, err)
	return rec
}

func apply(t *testing.T, m *Machine, rec domain.Inspection, a Action, e Env) domain.Inspection {
	t.Helper()
	next, err := m.Apply(rec, a, e)
	require.NoError(t, err)
	require.NoError(t, CheckInvariants(&next))
	return next
}

func submitPre() SubmitPreInspection {
	return SubmitPreInspection{
		SubmissionID: uuid.New(),
		Condition:    goodCondition(3),
		Photos:       photos(1),
		Location:     location(),
	}
}

func submitPost(n int) SubmitPostInspection {
	return SubmitPostInspection{
		SubmissionID:   uuid.New(),
		Condition:      goodCondition(0),
		ReturnPhotos:   photos(n),
		ReturnLocation: location(),
		Confirmed:      true,
	}
}

// rentalActive drives a record through an accepted pre-rental exchange.
func rentalActive(t *testing.T, m *Machine) domain.Inspection {
	t.Helper()
	rec := newRecord(t)
	rec = apply(t, m, rec, submitPre(), env(domain.PartyOwner, beforeEnd))
	rec = apply(t, m, rec, AcceptPreInspection{SubmissionID: rec.PreSubmissionID()}, env(domain.PartyRenter, beforeEnd))
	return apply(t, m, rec, StartRental{}, env(domain.PartyOwner, beforeEnd))
}

func postSubmitted(t *testing.T, m *Machine) domain.Inspection {
	t.Helper()
	rec := rentalActive(t, m)
	return apply(t, m, rec, submitPost(2), env(domain.PartyRenter, afterEnd))
}

func TestScenarioA_AcceptedRoundTrip(t *testing.T) {
	m := NewMachine(DefaultConfig())

	rec := newRecord(t)
	assert.Equal(t, domain.InspectionStatusPrePending, rec.Status)

	rec = apply(t, m, rec, submitPre(), env(domain.PartyOwner, beforeEnd))
	assert.Equal(t, domain.InspectionStatusPreSubmitted, rec.Status)
	require.NotNil(t, rec.OwnerPreInspection)
	assert.Len(t, rec.OwnerPreInspection.Condition.Items, 3)

	rec = apply(t, m, rec, AcceptPreInspection{SubmissionID: rec.PreSubmissionID()}, env(domain.PartyRenter, beforeEnd))
	assert.Equal(t, domain.InspectionStatusPreAccepted, rec.Status)
	assert.True(t, rec.RenterPreReviewAccepted)

	rec = apply(t, m, rec, StartRental{}, env(domain.PartyOwner, beforeEnd))
	assert.Equal(t, domain.InspectionStatusRentalActive, rec.Status)

	rec = apply(t, m, rec, submitPost(2), env(domain.PartyRenter, bookingEnd))
	assert.Equal(t, domain.InspectionStatusPostSubmitted, rec.Status)
	assert.True(t, rec.RenterPostInspectionConfirmed)

	rec = apply(t, m, rec, AcceptPostInspection{SubmissionID: rec.PostSubmissionID()}, env(domain.PartyOwner, afterEnd))
	assert.Equal(t, domain.InspectionStatusClosed, rec.Status)
	assert.True(t, rec.OwnerPostReviewAccepted)
	assert.False(t, rec.OwnerDisputeRaised)
	require.NotNil(t, rec.ClosedAt)
	assert.True(t, rec.ClosedAt.Equal(afterEnd))
}

func TestScenarioB_PostDispute(t *testing.T) {
	m := NewMachine(DefaultConfig())
	rec := postSubmitted(t, m)

	rec = apply(t, m, rec, RaisePostDispute{
		SubmissionID: rec.PostSubmissionID(),
		DisputeType:  domain.DisputeTypeDamageAssessment,
		Reason:       "scratch on lens",
	}, env(domain.PartyOwner, afterEnd))

	assert.Equal(t, domain.InspectionStatusPostDisputed, rec.Status)
	assert.True(t, rec.OwnerDisputeRaised)
	require.Len(t, rec.Disputes, 1)
	d := rec.Disputes[0]
	assert.Equal(t, domain.DisputeStatusPending, d.Status)
	assert.Equal(t, domain.DisputePhasePostRental, d.Phase)
	assert.Equal(t, "scratch on lens", d.Reason)

	// Further post-review actions are rejected while the dispute is open.
	_, err := m.Apply(rec, AcceptPostInspection{SubmissionID: rec.PostSubmissionID()}, env(domain.PartyOwner, afterEnd))
	assert.Equal(t, domain.ETRANSITION, domain.ErrorCode(err))

	_, err = m.Apply(rec, RaisePostDispute{
		SubmissionID: rec.PostSubmissionID(),
		DisputeType:  domain.DisputeTypeCostDispute,
		Reason:       "again",
	}, env(domain.PartyOwner, afterEnd))
	assert.Equal(t, domain.EALREADY, domain.ErrorCode(err))

	// Resolution closes the record.
	admin := env(domain.PartyAdmin, afterEnd)
	rec = apply(t, m, rec, ReviewDispute{DisputeID: d.ID}, admin)
	assert.Equal(t, domain.DisputeStatusUnderReview, rec.Disputes[0].Status)
	assert.Equal(t, domain.InspectionStatusPostDisputed, rec.Status)

	rec = apply(t, m, rec, ResolveDispute{DisputeID: d.ID, Outcome: domain.DisputeStatusResolved, ResolutionNotes: "deposit withheld"}, admin)
	assert.Equal(t, domain.InspectionStatusClosed, rec.Status)
	assert.Equal(t, domain.DisputeStatusResolved, rec.Disputes[0].Status)
	require.NotNil(t, rec.Disputes[0].ResolvedBy)
	assert.Equal(t, admin.ActorID, *rec.Disputes[0].ResolvedBy)
	assert.Equal(t, "deposit withheld", rec.Disputes[0].ResolutionNotes)
}

func TestScenarioC_DiscrepancyDoesNotBlockRental(t *testing.T) {
	m := NewMachine(DefaultConfig())

	rec := newRecord(t)
	rec = apply(t, m, rec, submitPre(), env(domain.PartyOwner, beforeEnd))
	rec = apply(t, m, rec, ReportDiscrepancy{
		SubmissionID: rec.PreSubmissionID(),
		Issues:       []string{"missing lens cap"},
		Notes:        "lens cap not in the bag",
	}, env(domain.PartyRenter, beforeEnd))

	assert.Equal(t, domain.InspectionStatusPreDiscrepancy, rec.Status)
	assert.True(t, rec.RenterDiscrepancyReported)
	assert.False(t, rec.RenterPreReviewAccepted)
	require.Len(t, rec.Disputes, 1)
	assert.Equal(t, domain.DefaultDiscrepancyType, rec.Disputes[0].DisputeType)
	assert.Equal(t, domain.DisputePhasePreRental, rec.Disputes[0].Phase)

	rec = apply(t, m, rec, StartRental{}, env(domain.PartyRenter, beforeEnd))
	assert.Equal(t, domain.InspectionStatusRentalActive, rec.Status)

	rec = apply(t, m, rec, submitPost(3), env(domain.PartyRenter, afterEnd))
	assert.Equal(t, domain.InspectionStatusPostSubmitted, rec.Status)
}

func TestSubmitPost_EligibilityGate(t *testing.T) {
	m := NewMachine(DefaultConfig())
	rec := rentalActive(t, m)

	_, err := m.Apply(rec, submitPost(2), env(domain.PartyRenter, bookingEnd.Add(-time.Second)))
	require.Error(t, err)
	assert.Equal(t, domain.ENOTELIGIBLE, domain.ErrorCode(err))
	at := domain.ErrorEligibleAt(err)
	require.NotNil(t, at)
	assert.True(t, at.Equal(bookingEnd))

	// Same instants expressed in other offsets.
	tokyo := time.FixedZone("UTC+9", 9*60*60)
	e := env(domain.PartyRenter, bookingEnd.Add(-time.Second).In(tokyo))
	localEnd := bookingEnd.In(time.FixedZone("UTC-5", -5*60*60))
	e.BookingEndsAt = &localEnd
	_, err = m.Apply(rec, submitPost(2), e)
	assert.Equal(t, domain.ENOTELIGIBLE, domain.ErrorCode(err))

	e.Now = bookingEnd.In(tokyo)
	_, err = m.Apply(rec, submitPost(2), e)
	assert.NoError(t, err)
}

func TestSubmitPost_PostRentalTypeOpensPhase(t *testing.T) {
	m := NewMachine(DefaultConfig())
	rec, err := NewInspection(domain.CreateInspectionParams{
		BookingID:      uuid.New(),
		ProductID:      uuid.New(),
		InspectionType: domain.InspectionTypePostRental,
	}, beforeEnd)
	require.NoError(t, err)
	assert.Equal(t, domain.InspectionStatusRentalActive, rec.Status)

	rec = apply(t, m, rec, submitPost(2), env(domain.PartyRenter, beforeEnd))
	assert.Equal(t, domain.InspectionStatusPostSubmitted, rec.Status)
}

func TestSubmitPost_PhotoBounds(t *testing.T) {
	m := NewMachine(DefaultConfig())
	rec := rentalActive(t, m)

	tests := []struct {
		count   int
		wantErr bool
	}{
		{0, true},
		{1, true},
		{2, false},
		{20, false},
		{21, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d photos", tt.count), func(t *testing.T) {
			next, err := m.Apply(rec, submitPost(tt.count), env(domain.PartyRenter, afterEnd))
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
				assert.Equal(t, "returnPhotos", domain.ErrorField(err))
				assert.Equal(t, domain.InspectionStatusRentalActive, next.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, domain.InspectionStatusPostSubmitted, next.Status)
		})
	}
}

func TestSubmitPost_Validation(t *testing.T) {
	m := NewMachine(DefaultConfig())
	rec := rentalActive(t, m)

	tests := []struct {
		name      string
		mutate    func(*SubmitPostInspection)
		wantField string
	}{
		{"missing location", func(a *SubmitPostInspection) { a.ReturnLocation = nil }, "returnLocation"},
		{"half location", func(a *SubmitPostInspection) { a.ReturnLocation.Longitude = nil }, "returnLocation"},
		{"unconfirmed", func(a *SubmitPostInspection) { a.Confirmed = false }, "confirmed"},
		{"missing submission id", func(a *SubmitPostInspection) { a.SubmissionID = uuid.Nil }, "submissionId"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := submitPost(2)
			tt.mutate(&a)
			_, err := m.Apply(rec, a, env(domain.PartyRenter, afterEnd))
			require.Error(t, err)
			assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
			assert.Equal(t, tt.wantField, domain.ErrorField(err))
		})
	}

	t.Run("missing overall condition", func(t *testing.T) {
		a := submitPost(2)
		a.Condition.OverallCondition = ""
		_, err := m.Apply(rec, a, env(domain.PartyRenter, afterEnd))
		var ve *domain.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Contains(t, ve.Fields, "condition.overallCondition")
	})
}

func TestPreReview_MutuallyExclusive(t *testing.T) {
	m := NewMachine(DefaultConfig())
	rec := newRecord(t)
	rec = apply(t, m, rec, submitPre(), env(domain.PartyOwner, beforeEnd))
	sub := rec.PreSubmissionID()
	renter := env(domain.PartyRenter, beforeEnd)

	accepted := apply(t, m, rec, AcceptPreInspection{SubmissionID: sub}, renter)

	_, err := m.Apply(accepted, ReportDiscrepancy{SubmissionID: sub, Issues: []string{"x"}, Notes: "y"}, renter)
	assert.Equal(t, domain.ETRANSITION, domain.ErrorCode(err))

	_, err = m.Apply(accepted, AcceptPreInspection{SubmissionID: sub}, renter)
	assert.Equal(t, domain.EALREADY, domain.ErrorCode(err))

	_, err = m.Apply(rec, AcceptPreInspection{SubmissionID: uuid.New()}, renter)
	assert.Equal(t, domain.ESTALE, domain.ErrorCode(err))

	disputed := apply(t, m, rec, ReportDiscrepancy{SubmissionID: sub, Issues: []string{"x"}, Notes: "y"}, renter)
	_, err = m.Apply(disputed, AcceptPreInspection{SubmissionID: sub}, renter)
	assert.Equal(t, domain.ETRANSITION, domain.ErrorCode(err))
}

func TestReportDiscrepancy_Validation(t *testing.T) {
	m := NewMachine(DefaultConfig())
	rec := newRecord(t)
	rec = apply(t, m, rec, submitPre(), env(domain.PartyOwner, beforeEnd))
	sub := rec.PreSubmissionID()

	tests := []struct {
		name      string
		action    ReportDiscrepancy
		wantField string
	}{
		{"no issues", ReportDiscrepancy{SubmissionID: sub, Notes: "notes"}, "issues"},
		{"blank issue", ReportDiscrepancy{SubmissionID: sub, Issues: []string{"  "}, Notes: "notes"}, "issues[0]"},
		{"no notes", ReportDiscrepancy{SubmissionID: sub, Issues: []string{"dent"}}, "notes"},
		{"bad type", ReportDiscrepancy{SubmissionID: sub, Issues: []string{"dent"}, Notes: "n", DisputeType: "bogus"}, "disputeType"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := m.Apply(rec, tt.action, env(domain.PartyRenter, beforeEnd))
			require.Error(t, err)
			assert.Equal(t, tt.wantField, domain.ErrorField(err))
			assert.Equal(t, domain.InspectionStatusPreSubmitted, next.Status)
			assert.Empty(t, next.Disputes)
		})
	}
}

func TestRaisePostDispute_EmptyReasonLeavesRecord(t *testing.T) {
	m := NewMachine(DefaultConfig())
	rec := postSubmitted(t, m)

	for _, reason := range []string{"", "   "} {
		next, err := m.Apply(rec, RaisePostDispute{
			SubmissionID: rec.PostSubmissionID(),
			DisputeType:  domain.DisputeTypeDamageAssessment,
			Reason:       reason,
		}, env(domain.PartyOwner, afterEnd))
		require.Error(t, err)
		assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
		assert.Equal(t, "reason", domain.ErrorField(err))
		assert.Equal(t, domain.InspectionStatusPostSubmitted, next.Status)
		assert.False(t, next.OwnerDisputeRaised)
		assert.Empty(t, next.Disputes)
	}

	assert.Equal(t, domain.InspectionStatusPostSubmitted, rec.Status)
}

func TestAcceptPost_SecondDecision(t *testing.T) {
	m := NewMachine(DefaultConfig())
	rec := postSubmitted(t, m)
	owner := env(domain.PartyOwner, afterEnd)
	sub := rec.PostSubmissionID()

	closed := apply(t, m, rec, AcceptPostInspection{SubmissionID: sub}, owner)

	_, err := m.Apply(closed, AcceptPostInspection{SubmissionID: sub}, owner)
	assert.Equal(t, domain.EALREADY, domain.ErrorCode(err))

	_, err = m.Apply(closed, RaisePostDispute{SubmissionID: sub, DisputeType: domain.DisputeTypeOther, Reason: "late"}, owner)
	assert.Equal(t, domain.ETRANSITION, domain.ErrorCode(err))

	_, err = m.Apply(rec, AcceptPostInspection{SubmissionID: uuid.New()}, owner)
	assert.Equal(t, domain.ESTALE, domain.ErrorCode(err))
}

func TestRejectedDisputeLetsOwnerAccept(t *testing.T) {
	m := NewMachine(DefaultConfig())
	rec := postSubmitted(t, m)
	owner := env(domain.PartyOwner, afterEnd)
	sub := rec.PostSubmissionID()

	rec = apply(t, m, rec, RaisePostDispute{SubmissionID: sub, DisputeType: domain.DisputeTypeCostDispute, Reason: "cleaning fee"}, owner)
	rec = apply(t, m, rec, ResolveDispute{DisputeID: rec.Disputes[0].ID, Outcome: domain.DisputeStatusRejected}, env(domain.PartyInspector, afterEnd))
	assert.Equal(t, domain.InspectionStatusPostDisputed, rec.Status)
	assert.Nil(t, rec.OpenDispute())

	rec = apply(t, m, rec, AcceptPostInspection{SubmissionID: sub}, owner)
	assert.Equal(t, domain.InspectionStatusClosed, rec.Status)
	assert.True(t, rec.OwnerPostReviewAccepted)
	assert.False(t, rec.OwnerDisputeRaised)
	assert.Len(t, rec.Disputes, 1, "dispute history is kept")
}

func TestDispute_ResolutionRules(t *testing.T) {
	m := NewMachine(DefaultConfig())
	rec := postSubmitted(t, m)
	rec = apply(t, m, rec, RaisePostDispute{
		SubmissionID: rec.PostSubmissionID(),
		DisputeType:  domain.DisputeTypeProcedureViolation,
		Reason:       "returned late",
	}, env(domain.PartyOwner, afterEnd))
	id := rec.Disputes[0].ID

	_, err := m.Apply(rec, ResolveDispute{DisputeID: id, Outcome: domain.DisputeStatusResolved}, env(domain.PartyOwner, afterEnd))
	assert.Equal(t, domain.EFORBIDDEN, domain.ErrorCode(err))

	_, err = m.Apply(rec, ResolveDispute{DisputeID: id, Outcome: domain.DisputeStatusPending}, env(domain.PartyAdmin, afterEnd))
	assert.Equal(t, "outcome", domain.ErrorField(err))

	_, err = m.Apply(rec, ResolveDispute{DisputeID: uuid.New(), Outcome: domain.DisputeStatusResolved}, env(domain.PartyAdmin, afterEnd))
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))

	reviewed := apply(t, m, rec, ReviewDispute{DisputeID: id}, env(domain.PartyAdmin, afterEnd))
	_, err = m.Apply(reviewed, ReviewDispute{DisputeID: id}, env(domain.PartyAdmin, afterEnd))
	assert.Equal(t, domain.EALREADY, domain.ErrorCode(err))

	resolved := apply(t, m, reviewed, ResolveDispute{DisputeID: id, Outcome: domain.DisputeStatusResolved}, env(domain.PartyAdmin, afterEnd))
	_, err = m.Apply(resolved, ResolveDispute{DisputeID: id, Outcome: domain.DisputeStatusRejected}, env(domain.PartyAdmin, afterEnd))
	assert.Equal(t, domain.ETRANSITION, domain.ErrorCode(err))

	_, err = m.Apply(resolved, ReviewDispute{DisputeID: id}, env(domain.PartyAdmin, afterEnd))
	assert.Equal(t, domain.ETRANSITION, domain.ErrorCode(err))
}

func TestResolvePreDiscrepancy_KeepsRecordStatus(t *testing.T) {
	m := NewMachine(DefaultConfig())
	rec := newRecord(t)
	rec = apply(t, m, rec, submitPre(), env(domain.PartyOwner, beforeEnd))
	rec = apply(t, m, rec, ReportDiscrepancy{SubmissionID: rec.PreSubmissionID(), Issues: []string{"dent"}, Notes: "dent on lid"}, env(domain.PartyRenter, beforeEnd))
	rec = apply(t, m, rec, StartRental{}, env(domain.PartyOwner, beforeEnd))

	rec = apply(t, m, rec, ResolveDispute{DisputeID: rec.Disputes[0].ID, Outcome: domain.DisputeStatusResolved}, env(domain.PartyAdmin, beforeEnd))
	assert.Equal(t, domain.InspectionStatusRentalActive, rec.Status)
	assert.Equal(t, domain.DisputeStatusResolved, rec.Disputes[0].Status)
}

func TestSubmitPre_Rules(t *testing.T) {
	m := NewMachine(DefaultConfig())
	rec := newRecord(t)
	owner := env(domain.PartyOwner, beforeEnd)

	_, err := m.Apply(rec, submitPre(), env(domain.PartyRenter, beforeEnd))
	assert.Equal(t, domain.EFORBIDDEN, domain.ErrorCode(err))

	tooMany := submitPre()
	tooMany.Photos = photos(21)
	_, err = m.Apply(rec, tooMany, owner)
	assert.Equal(t, "photos", domain.ErrorField(err))

	noPhotos := submitPre()
	noPhotos.Photos = nil
	noPhotos.Location = nil
	_, err = m.Apply(rec, noPhotos, owner)
	assert.NoError(t, err)

	first := submitPre()
	next := apply(t, m, rec, first, owner)

	// Same submission again is acknowledged unchanged.
	replay, err := m.Apply(next, first, owner)
	require.NoError(t, err)
	assert.Equal(t, next.UpdatedAt, replay.UpdatedAt)
	assert.Equal(t, next.OwnerPreInspection, replay.OwnerPreInspection)

	// A different submission breaks the exactly-once rule.
	_, err = m.Apply(next, submitPre(), owner)
	assert.Equal(t, domain.ETRANSITION, domain.ErrorCode(err))
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	m := NewMachine(DefaultConfig())
	rec := postSubmitted(t, m)
	before := rec.Clone()

	_, err := m.Apply(rec, RaisePostDispute{
		SubmissionID: rec.PostSubmissionID(),
		DisputeType:  domain.DisputeTypeDamageAssessment,
		Reason:       "crack",
		Photos:       photos(2),
	}, env(domain.PartyOwner, afterEnd))
	require.NoError(t, err)
	assert.Equal(t, before, rec)
}

func TestThirdParty_PaymentGate(t *testing.T) {
	m := NewMachine(DefaultConfig())
	rec, err := NewInspection(domain.CreateInspectionParams{
		BookingID:              uuid.New(),
		ProductID:              uuid.New(),
		InspectionType:         domain.InspectionTypePreRental,
		IsThirdPartyInspection: true,
		InspectionTier:         domain.InspectionTierStandard,
		InspectionCostCents:    4900,
		Currency:               "USD",
	}, beforeEnd)
	require.NoError(t, err)
	assert.Equal(t, domain.InspectionStatusCreated, rec.Status)
	assert.Equal(t, domain.PaymentStatusPending, rec.PaymentStatus)
	assert.Equal(t, "usd", rec.Currency)

	_, err = m.Apply(rec, submitPre(), env(domain.PartyInspector, beforeEnd))
	assert.Equal(t, domain.EPAYMENT, domain.ErrorCode(err))

	failed := apply(t, m, rec, RecordPayment{Status: domain.PaymentStatusFailed}, env(domain.PartySystem, beforeEnd))
	assert.Equal(t, domain.InspectionStatusCreated, failed.Status)
	_, err = m.Apply(failed, submitPre(), env(domain.PartyInspector, beforeEnd))
	assert.Equal(t, domain.EPAYMENT, domain.ErrorCode(err))

	paid := apply(t, m, rec, RecordPayment{Status: domain.PaymentStatusPaid, Reference: "pi_123"}, env(domain.PartySystem, beforeEnd))
	assert.Equal(t, domain.InspectionStatusPrePending, paid.Status)
	assert.Equal(t, "pi_123", paid.PaymentReference)

	_, err = m.Apply(paid, RecordPayment{Status: domain.PaymentStatusPaid}, env(domain.PartySystem, beforeEnd))
	assert.Equal(t, domain.EALREADY, domain.ErrorCode(err))

	// The inspector documents on the owner's behalf.
	next := apply(t, m, paid, submitPre(), env(domain.PartyInspector, beforeEnd))
	assert.Equal(t, domain.InspectionStatusPreSubmitted, next.Status)
}

func TestNewInspection_Validation(t *testing.T) {
	tests := []struct {
		name      string
		params    domain.CreateInspectionParams
		wantField string
	}{
		{"missing booking", domain.CreateInspectionParams{ProductID: uuid.New()}, "bookingId"},
		{"missing product", domain.CreateInspectionParams{BookingID: uuid.New()}, "productId"},
		{"bad type", domain.CreateInspectionParams{BookingID: uuid.New(), ProductID: uuid.New(), InspectionType: "weekly"}, "inspectionType"},
		{"bad tier", domain.CreateInspectionParams{BookingID: uuid.New(), ProductID: uuid.New(), IsThirdPartyInspection: true, InspectionTier: "gold", InspectionCostCents: 1, Currency: "usd"}, "inspectionTier"},
		{"zero cost", domain.CreateInspectionParams{BookingID: uuid.New(), ProductID: uuid.New(), IsThirdPartyInspection: true, InspectionTier: domain.InspectionTierBasic, Currency: "usd"}, "inspectionCost"},
		{"bad currency", domain.CreateInspectionParams{BookingID: uuid.New(), ProductID: uuid.New(), IsThirdPartyInspection: true, InspectionTier: domain.InspectionTierBasic, InspectionCostCents: 100, Currency: "dollars"}, "currency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewInspection(tt.params, beforeEnd)
			require.Error(t, err)
			assert.Equal(t, tt.wantField, domain.ErrorField(err))
		})
	}
}

func TestProjectStatus(t *testing.T) {
	m := NewMachine(DefaultConfig())
	rec := rentalActive(t, m)
	end := bookingEnd

	assert.Equal(t, domain.InspectionStatusRentalActive, ProjectStatus(&rec, &end, beforeEnd))
	assert.Equal(t, domain.InspectionStatusPostEligible, ProjectStatus(&rec, &end, afterEnd))
}

func TestCheckInvariants(t *testing.T) {
	tests := []struct {
		name    string
		rec     domain.Inspection
		wantErr bool
	}{
		{"clean", domain.Inspection{Status: domain.InspectionStatusPrePending}, false},
		{"both pre flags", domain.Inspection{Status: domain.InspectionStatusPreAccepted, RenterPreReviewAccepted: true, RenterDiscrepancyReported: true}, true},
		{"both post flags", domain.Inspection{Status: domain.InspectionStatusClosed, OwnerPostReviewAccepted: true, OwnerDisputeRaised: true}, true},
		{"incomplete review", domain.Inspection{Status: domain.InspectionStatusPostSubmitted, OwnerPostReview: &domain.OwnerPostReview{}}, true},
		{"unknown status", domain.Inspection{Status: "limbo"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckInvariants(&tt.rec)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
