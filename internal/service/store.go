package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/DukeRupert/rentcheck/internal/domain"
	"github.com/DukeRupert/rentcheck/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sqlc-dev/pqtype"
)

const pgUniqueViolation = "23505"

// postgresStore implements InspectionStore. The inspection row and its
// dispute rows are written in one transaction.
type postgresStore struct {
	db      *sql.DB
	queries *repository.Queries
	logger  *slog.Logger
}

// NewPostgresStore creates an InspectionStore backed by PostgreSQL.
func NewPostgresStore(db *sql.DB, logger *slog.Logger) InspectionStore {
	return &postgresStore{
		db:      db,
		queries: repository.New(db),
		logger:  logger,
	}
}

func (s *postgresStore) Create(ctx context.Context, rec domain.Inspection) (domain.Inspection, error) {
	const op = "store.create"

	row, err := s.queries.CreateInspection(ctx, repository.CreateInspectionParams{
		ID:                  rec.ID,
		BookingID:           rec.BookingID,
		ProductID:           rec.ProductID,
		InspectionType:      string(rec.InspectionType),
		Status:              string(rec.Status),
		IsThirdParty:        rec.IsThirdPartyInspection,
		InspectionTier:      nullString(string(rec.InspectionTier)),
		InspectionCostCents: rec.InspectionCostCents,
		Currency:            nullString(rec.Currency),
		PaymentStatus:       nullString(string(rec.PaymentStatus)),
		CreatedAt:           rec.CreatedAt,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.Inspection{}, domain.Conflict(op,
				fmt.Sprintf("booking already has a %s inspection", rec.InspectionType))
		}
		return domain.Inspection{}, domain.Internal(err, op, "failed to create inspection")
	}
	return rowToInspection(row, nil)
}

func (s *postgresStore) Get(ctx context.Context, id uuid.UUID) (domain.Inspection, error) {
	const op = "store.get"
	return s.load(ctx, s.queries, op, id)
}

func (s *postgresStore) load(ctx context.Context, q *repository.Queries, op string, id uuid.UUID) (domain.Inspection, error) {
	row, err := q.GetInspection(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Inspection{}, domain.NotFound(op, "inspection", id.String())
		}
		return domain.Inspection{}, domain.Internal(err, op, "failed to fetch inspection")
	}
	disputes, err := q.ListDisputesByInspection(ctx, id)
	if err != nil {
		return domain.Inspection{}, domain.Internal(err, op, "failed to fetch disputes")
	}
	rec, err := rowToInspection(row, disputes)
	if err != nil {
		return domain.Inspection{}, domain.Internal(err, op, "stored inspection is unreadable")
	}
	return rec, nil
}

func (s *postgresStore) Save(ctx context.Context, rec domain.Inspection, expectedVersion int64) (domain.Inspection, error) {
	const op = "store.save"

	params, err := inspectionToUpdate(rec, expectedVersion)
	if err != nil {
		return domain.Inspection{}, domain.Internal(err, op, "failed to encode inspection")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Inspection{}, domain.Internal(err, op, "failed to begin transaction")
	}
	defer tx.Rollback()
	q := s.queries.WithTx(tx)

	version, err := q.UpdateInspection(ctx, params)
	if errors.Is(err, sql.ErrNoRows) {
		if _, verr := q.GetInspectionVersion(ctx, rec.ID); errors.Is(verr, sql.ErrNoRows) {
			return domain.Inspection{}, domain.NotFound(op, "inspection", rec.ID.String())
		}
		return domain.Inspection{}, domain.Conflict(op, "inspection was modified concurrently")
	}
	if err != nil {
		return domain.Inspection{}, domain.Internal(err, op, "failed to update inspection")
	}

	for _, d := range rec.Disputes {
		dp, err := disputeToUpsert(rec.ID, d)
		if err != nil {
			return domain.Inspection{}, domain.Internal(err, op, "failed to encode dispute")
		}
		n, err := q.UpsertDispute(ctx, dp)
		if err != nil {
			return domain.Inspection{}, domain.Internal(err, op, "failed to save dispute")
		}
		if n == 0 {
			return domain.Inspection{}, domain.Conflict(op, fmt.Sprintf("dispute %s belongs to another inspection", d.ID))
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.Inspection{}, domain.Internal(err, op, "failed to commit inspection")
	}

	saved := rec.Clone()
	saved.Version = version
	s.logger.Debug("inspection saved", "inspection_id", rec.ID, "status", rec.Status, "version", version)
	return saved, nil
}

func (s *postgresStore) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]domain.Inspection, error) {
	const op = "store.list_by_booking"

	rows, err := s.queries.ListInspectionsByBooking(ctx, bookingID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list inspections")
	}
	out := make([]domain.Inspection, 0, len(rows))
	for _, row := range rows {
		disputes, err := s.queries.ListDisputesByInspection(ctx, row.ID)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to fetch disputes")
		}
		rec, err := rowToInspection(row, disputes)
		if err != nil {
			return nil, domain.Internal(err, op, "stored inspection is unreadable")
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *postgresStore) InspectionForDispute(ctx context.Context, disputeID uuid.UUID) (uuid.UUID, error) {
	const op = "store.inspection_for_dispute"

	id, err := s.queries.GetDisputeInspectionID(ctx, disputeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, domain.NotFound(op, "dispute", disputeID.String())
		}
		return uuid.Nil, domain.Internal(err, op, "failed to fetch dispute")
	}
	return id, nil
}

// =============================================================================
// Row mapping
// =============================================================================

func rowToInspection(row repository.Inspection, disputes []repository.Dispute) (domain.Inspection, error) {
	rec := domain.Inspection{
		ID:                            row.ID,
		BookingID:                     row.BookingID,
		ProductID:                     row.ProductID,
		InspectionType:                domain.InspectionType(row.InspectionType),
		Status:                        domain.InspectionStatus(row.Status),
		RenterPreReviewAccepted:       row.RenterPreReviewAccepted,
		RenterDiscrepancyReported:     row.RenterDiscrepancyReported,
		RenterPostInspectionConfirmed: row.RenterPostInspectionConfirmed,
		OwnerPostReviewAccepted:       row.OwnerPostReviewAccepted,
		OwnerDisputeRaised:            row.OwnerDisputeRaised,
		IsThirdPartyInspection:        row.IsThirdParty,
		InspectionTier:                domain.InspectionTier(row.InspectionTier.String),
		InspectionCostCents:           row.InspectionCostCents,
		Currency:                      row.Currency.String,
		PaymentStatus:                 domain.PaymentStatus(row.PaymentStatus.String),
		PaymentReference:              row.PaymentReference.String,
		Version:                       row.Version,
		CreatedAt:                     row.CreatedAt.UTC(),
		UpdatedAt:                     row.UpdatedAt.UTC(),
		Disputes:                      make([]domain.Dispute, 0, len(disputes)),
	}
	if row.ClosedAt.Valid {
		t := row.ClosedAt.Time.UTC()
		rec.ClosedAt = &t
	}

	if err := decodeJSON(row.OwnerPreInspection, &rec.OwnerPreInspection); err != nil {
		return rec, fmt.Errorf("owner_pre_inspection: %w", err)
	}
	if err := decodeJSON(row.RenterPreReview, &rec.RenterPreReview); err != nil {
		return rec, fmt.Errorf("renter_pre_review: %w", err)
	}
	if err := decodeJSON(row.RenterPostInspection, &rec.RenterPostInspection); err != nil {
		return rec, fmt.Errorf("renter_post_inspection: %w", err)
	}
	if err := decodeJSON(row.OwnerPostReview, &rec.OwnerPostReview); err != nil {
		return rec, fmt.Errorf("owner_post_review: %w", err)
	}

	for _, d := range disputes {
		dispute := domain.Dispute{
			ID:              d.ID,
			InspectionID:    d.InspectionID,
			SubmissionID:    d.SubmissionID,
			Phase:           domain.DisputePhase(d.Phase),
			RaisedBy:        domain.Party(d.RaisedBy),
			DisputeType:     domain.DisputeType(d.DisputeType),
			Reason:          d.Reason,
			Evidence:        d.Evidence,
			Issues:          d.Issues,
			Status:          domain.DisputeStatus(d.Status),
			CreatedAt:       d.CreatedAt.UTC(),
			UpdatedAt:       d.UpdatedAt.UTC(),
			ResolutionNotes: d.ResolutionNotes,
		}
		if len(d.Photos) > 0 {
			if err := json.Unmarshal(d.Photos, &dispute.Photos); err != nil {
				return rec, fmt.Errorf("dispute %s photos: %w", d.ID, err)
			}
		}
		if d.ResolvedAt.Valid {
			t := d.ResolvedAt.Time.UTC()
			dispute.ResolvedAt = &t
		}
		if d.ResolvedBy.Valid {
			id := d.ResolvedBy.UUID
			dispute.ResolvedBy = &id
		}
		rec.Disputes = append(rec.Disputes, dispute)
	}
	return rec, nil
}

func inspectionToUpdate(rec domain.Inspection, expectedVersion int64) (repository.UpdateInspectionParams, error) {
	p := repository.UpdateInspectionParams{
		ID:                            rec.ID,
		ExpectedVersion:               expectedVersion,
		Status:                        string(rec.Status),
		RenterPreReviewAccepted:       rec.RenterPreReviewAccepted,
		RenterDiscrepancyReported:     rec.RenterDiscrepancyReported,
		RenterPostInspectionConfirmed: rec.RenterPostInspectionConfirmed,
		OwnerPostReviewAccepted:       rec.OwnerPostReviewAccepted,
		OwnerDisputeRaised:            rec.OwnerDisputeRaised,
		PaymentStatus:                 nullString(string(rec.PaymentStatus)),
		PaymentReference:              nullString(rec.PaymentReference),
		UpdatedAt:                     rec.UpdatedAt,
	}
	if rec.ClosedAt != nil {
		p.ClosedAt = sql.NullTime{Time: *rec.ClosedAt, Valid: true}
	}

	var err error
	if p.OwnerPreInspection, err = encodeJSON(rec.OwnerPreInspection); err != nil {
		return p, err
	}
	if p.RenterPreReview, err = encodeJSON(rec.RenterPreReview); err != nil {
		return p, err
	}
	if p.RenterPostInspection, err = encodeJSON(rec.RenterPostInspection); err != nil {
		return p, err
	}
	if p.OwnerPostReview, err = encodeJSON(rec.OwnerPostReview); err != nil {
		return p, err
	}
	return p, nil
}

func disputeToUpsert(inspectionID uuid.UUID, d domain.Dispute) (repository.UpsertDisputeParams, error) {
	photos := d.Photos
	if photos == nil {
		photos = []domain.Photo{}
	}
	raw, err := json.Marshal(photos)
	if err != nil {
		return repository.UpsertDisputeParams{}, err
	}
	issues := d.Issues
	if issues == nil {
		issues = []string{}
	}
	p := repository.UpsertDisputeParams{
		ID:              d.ID,
		InspectionID:    inspectionID,
		SubmissionID:    d.SubmissionID,
		Phase:           string(d.Phase),
		RaisedBy:        string(d.RaisedBy),
		DisputeType:     string(d.DisputeType),
		Reason:          d.Reason,
		Evidence:        d.Evidence,
		Issues:          issues,
		Photos:          raw,
		Status:          string(d.Status),
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
		ResolutionNotes: d.ResolutionNotes,
	}
	if d.ResolvedAt != nil {
		p.ResolvedAt = sql.NullTime{Time: *d.ResolvedAt, Valid: true}
	}
	if d.ResolvedBy != nil {
		p.ResolvedBy = uuid.NullUUID{UUID: *d.ResolvedBy, Valid: true}
	}
	return p, nil
}

// encodeJSON maps a nil pointer to SQL NULL.
func encodeJSON[T any](v *T) (pqtype.NullRawMessage, error) {
	if v == nil {
		return pqtype.NullRawMessage{}, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return pqtype.NullRawMessage{}, err
	}
	return pqtype.NullRawMessage{RawMessage: raw, Valid: true}, nil
}

func decodeJSON[T any](raw pqtype.NullRawMessage, dst **T) error {
	if !raw.Valid || len(raw.RawMessage) == 0 {
		return nil
	}
	v := new(T)
	if err := json.Unmarshal(raw.RawMessage, v); err != nil {
		return err
	}
	*dst = v
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
