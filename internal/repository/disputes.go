package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const upsertDispute = `-- name: UpsertDispute :execrows
INSERT INTO disputes (
	id, inspection_id, submission_id, phase, raised_by, dispute_type,
	reason, evidence, issues, photos, status, created_at, updated_at,
	resolved_at, resolved_by, resolution_notes
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
)
ON CONFLICT (id) DO UPDATE SET
	status = EXCLUDED.status,
	updated_at = EXCLUDED.updated_at,
	resolved_at = EXCLUDED.resolved_at,
	resolved_by = EXCLUDED.resolved_by,
	resolution_notes = EXCLUDED.resolution_notes
WHERE disputes.inspection_id = EXCLUDED.inspection_id`

type UpsertDisputeParams struct {
	ID              uuid.UUID
	InspectionID    uuid.UUID
	SubmissionID    uuid.UUID
	Phase           string
	RaisedBy        string
	DisputeType     string
	Reason          string
	Evidence        string
	Issues          []string
	Photos          json.RawMessage
	Status          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ResolvedAt      sql.NullTime
	ResolvedBy      uuid.NullUUID
	ResolutionNotes string
}

// UpsertDispute inserts a dispute or records its resolution. The raised
// fields are never rewritten. It affects no rows when the id already
// belongs to a dispute of another inspection.
func (q *Queries) UpsertDispute(ctx context.Context, arg UpsertDisputeParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, upsertDispute,
		arg.ID,
		arg.InspectionID,
		arg.SubmissionID,
		arg.Phase,
		arg.RaisedBy,
		arg.DisputeType,
		arg.Reason,
		arg.Evidence,
		pq.Array(arg.Issues),
		arg.Photos,
		arg.Status,
		arg.CreatedAt,
		arg.UpdatedAt,
		arg.ResolvedAt,
		arg.ResolvedBy,
		arg.ResolutionNotes,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listDisputesByInspection = `-- name: ListDisputesByInspection :many
SELECT id, inspection_id, submission_id, phase, raised_by, dispute_type,
	reason, evidence, issues, photos, status, created_at, updated_at,
	resolved_at, resolved_by, resolution_notes
FROM disputes
WHERE inspection_id = $1
ORDER BY created_at ASC, id ASC`

func (q *Queries) ListDisputesByInspection(ctx context.Context, inspectionID uuid.UUID) ([]Dispute, error) {
	rows, err := q.db.QueryContext(ctx, listDisputesByInspection, inspectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Dispute
	for rows.Next() {
		var d Dispute
		if err := rows.Scan(
			&d.ID,
			&d.InspectionID,
			&d.SubmissionID,
			&d.Phase,
			&d.RaisedBy,
			&d.DisputeType,
			&d.Reason,
			&d.Evidence,
			pq.Array(&d.Issues),
			&d.Photos,
			&d.Status,
			&d.CreatedAt,
			&d.UpdatedAt,
			&d.ResolvedAt,
			&d.ResolvedBy,
			&d.ResolutionNotes,
		); err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getDisputeInspectionID = `-- name: GetDisputeInspectionID :one
SELECT inspection_id FROM disputes WHERE id = $1`

func (q *Queries) GetDisputeInspectionID(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	row := q.db.QueryRowContext(ctx, getDisputeInspectionID, id)
	var inspectionID uuid.UUID
	err := row.Scan(&inspectionID)
	return inspectionID, err
}
