package allocation

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/lead-distribution/internal/domain"
	"github.com/spec-kit/lead-distribution/internal/observability"
	apperrors "github.com/spec-kit/lead-distribution/pkg/errorutil"
)

// RoundRobin places leads one at a time. Each lead asks the Sequencer for the
// next staff member, is committed as its own single-lead batch, and only a
// successful bind advances the cursor, so a lead lost to a concurrent caller
// does not consume a rotation slot.
type RoundRobin struct {
	sequencer *Sequencer
	executor  *Executor
	logger    *zap.Logger
	metrics   *observability.Metrics
}

// NewRoundRobin builds the round robin allocator.
func NewRoundRobin(sequencer *Sequencer, executor *Executor, logger *zap.Logger, metrics *observability.Metrics) *RoundRobin {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoundRobin{sequencer: sequencer, executor: executor, logger: logger, metrics: metrics}
}

// Assign walks leads in order and returns one result per bound lead.
func (r *RoundRobin) Assign(
	ctx context.Context,
	companyID int64,
	leads []domain.Lead,
	assignedBy *int64,
	onCommit BatchCommitted,
) ([]domain.BatchResult, error) {
	results := []domain.BatchResult{}
	for _, lead := range leads {
		staff, err := r.sequencer.Next(ctx, companyID)
		if err != nil {
			return results, apperrors.NewStorageFailure(err)
		}
		if staff == nil {
			r.metrics.RecordRotationSkip("no_eligible_staff")
			r.logger.Debug("round robin skipped lead",
				zap.Int64("tenant_id", companyID),
				zap.Int64("lead_id", lead.ID))
			continue
		}

		plan := domain.AssignmentPlan{{StaffID: staff.ID, LeadIDs: []int64{lead.ID}}}
		batchResults, err := r.executor.Apply(ctx, companyID, domain.StrategyRoundRobin, plan, assignedBy, onCommit)
		if err != nil {
			return results, err
		}
		if len(batchResults) == 0 || len(batchResults[0].AssignedLeads) == 0 {
			r.metrics.RecordRotationSkip("already_assigned")
			continue
		}

		if err := r.sequencer.UpdateLastAssigned(ctx, companyID, staff.ID); err != nil {
			return append(results, batchResults[0]), apperrors.NewStorageFailure(err)
		}
		results = append(results, batchResults[0])
	}
	return results, nil
}
