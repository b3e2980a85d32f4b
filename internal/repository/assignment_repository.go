package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/lead-distribution/internal/domain"
)

// AssignmentTx groups the writes of one assignment batch.
type AssignmentTx interface {
	// BindUnassigned sets the owner of every listed lead that belongs to the
	// company and has no owner yet. Nothing is bound unless staffID is an active
	// member of the same company. It returns the ids actually bound.
	BindUnassigned(ctx context.Context, companyID, staffID int64, leadIDs []int64, assignedBy *int64) ([]int64, error)
	// RecordActivities appends trail entries.
	RecordActivities(ctx context.Context, records []domain.ActivityRecord) error
}

// TxManager runs fn inside a transaction; the transaction is rolled back when fn fails.
type TxManager interface {
	WithinAssignmentTx(ctx context.Context, fn func(ctx context.Context, tx AssignmentTx) error) error
}

type txManager struct {
	pool *pgxpool.Pool
}

// NewTxManager builds a TxManager over the pool.
func NewTxManager(pool *pgxpool.Pool) TxManager {
	return &txManager{pool: pool}
}

func (m *txManager) WithinAssignmentTx(ctx context.Context, fn func(ctx context.Context, tx AssignmentTx) error) error {
	return pgx.BeginFunc(ctx, m.pool, func(tx pgx.Tx) error {
		return fn(ctx, &assignmentTx{tx: tx})
	})
}

type assignmentTx struct {
	tx pgx.Tx
}

func (a *assignmentTx) BindUnassigned(ctx context.Context, companyID, staffID int64, leadIDs []int64, assignedBy *int64) ([]int64, error) {
	const query = `
        UPDATE leads
        SET assigned_to=$1, assigned_by=$2, assigned_at=NOW(), updated_at=NOW()
        WHERE company_id=$3 AND id = ANY($4) AND assigned_to IS NULL
          AND EXISTS (
              SELECT 1 FROM staff_members s
              WHERE s.id=$1 AND s.company_id=$3 AND s.status='active'
          )
        RETURNING id`

	rows, err := a.tx.Query(ctx, query, staffID, assignedBy, companyID, leadIDs)
	if err != nil {
		return nil, err
	}
	bound, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, err
	}
	return inRequestedOrder(leadIDs, bound), nil
}

func (a *assignmentTx) RecordActivities(ctx context.Context, records []domain.ActivityRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := a.tx.CopyFrom(ctx,
		pgx.Identifier{"lead_activities"},
		[]string{"company_id", "lead_id", "performed_by", "action", "note"},
		pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
			rec := records[i]
			return []any{rec.CompanyID, rec.LeadID, rec.ActorID, string(rec.Action), rec.Note}, nil
		}),
	)
	return err
}

// inRequestedOrder filters requested down to the ids present in bound.
func inRequestedOrder(requested, bound []int64) []int64 {
	set := make(map[int64]struct{}, len(bound))
	for _, id := range bound {
		set[id] = struct{}{}
	}
	result := make([]int64, 0, len(bound))
	for _, id := range requested {
		if _, ok := set[id]; ok {
			result = append(result, id)
			delete(set, id)
		}
	}
	return result
}
