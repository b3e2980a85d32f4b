package allocation

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/lead-distribution/internal/domain"
	"github.com/spec-kit/lead-distribution/internal/observability"
	"github.com/spec-kit/lead-distribution/internal/repository"
	apperrors "github.com/spec-kit/lead-distribution/pkg/errorutil"
)

// BatchCommitted is called after a batch transaction commits with at least one bound lead.
type BatchCommitted func(ctx context.Context, result domain.BatchResult)

// Executor commits assignment plans. Each batch runs in its own transaction and
// binds only leads that are still unassigned, so concurrent callers can shrink
// a batch but never double-assign a lead.
type Executor struct {
	tx      repository.TxManager
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewExecutor builds an Executor.
func NewExecutor(tx repository.TxManager, logger *zap.Logger, metrics *observability.Metrics) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{tx: tx, logger: logger, metrics: metrics}
}

// Apply commits plan batch by batch. On failure it returns the results of the
// batches committed so far together with the error; those stay committed.
func (e *Executor) Apply(
	ctx context.Context,
	companyID int64,
	strategy domain.Strategy,
	plan domain.AssignmentPlan,
	assignedBy *int64,
	onCommit BatchCommitted,
) ([]domain.BatchResult, error) {
	results := make([]domain.BatchResult, 0, len(plan))
	for _, batch := range plan {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		bound, err := e.applyBatch(ctx, companyID, strategy, batch, assignedBy)
		if err != nil {
			e.metrics.RecordBatch(false)
			e.logger.Error("assignment batch rolled back",
				zap.Int64("tenant_id", companyID),
				zap.Int64("staff_id", batch.StaffID),
				zap.String("strategy", string(strategy)),
				zap.Error(err))
			return results, apperrors.NewStorageFailure(err)
		}
		e.metrics.RecordBatch(true)
		e.metrics.RecordAssigned(string(strategy), len(batch.LeadIDs), len(bound))

		result := domain.BatchResult{StaffID: batch.StaffID, AssignedLeads: bound}
		results = append(results, result)
		if len(bound) < len(batch.LeadIDs) {
			e.logger.Debug("leads already claimed by another caller",
				zap.Int64("tenant_id", companyID),
				zap.Int64("staff_id", batch.StaffID),
				zap.Int("requested", len(batch.LeadIDs)),
				zap.Int("bound", len(bound)))
		}
		if len(bound) > 0 && onCommit != nil {
			onCommit(ctx, result)
		}
	}
	return results, nil
}

func (e *Executor) applyBatch(
	ctx context.Context,
	companyID int64,
	strategy domain.Strategy,
	batch domain.AssignmentBatch,
	assignedBy *int64,
) ([]int64, error) {
	if len(batch.LeadIDs) == 0 {
		return []int64{}, nil
	}

	var bound []int64
	err := e.tx.WithinAssignmentTx(ctx, func(ctx context.Context, tx repository.AssignmentTx) error {
		ids, err := tx.BindUnassigned(ctx, companyID, batch.StaffID, batch.LeadIDs, assignedBy)
		if err != nil {
			return err
		}
		records := make([]domain.ActivityRecord, 0, len(ids))
		for _, leadID := range ids {
			records = append(records, domain.ActivityRecord{
				CompanyID: companyID,
				LeadID:    leadID,
				ActorID:   assignedBy,
				Action:    domain.ActivityActionAssigned,
				Note:      strategy.ActivityNote(),
			})
		}
		if err := tx.RecordActivities(ctx, records); err != nil {
			return err
		}
		bound = ids
		return nil
	})
	if err != nil {
		return nil, err
	}
	if bound == nil {
		bound = []int64{}
	}
	return bound, nil
}
