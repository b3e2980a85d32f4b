// Package allocation turns unassigned leads and a staff roster into assignment
// plans and commits them.
//
// Planners are pure: they never read or write storage. The Executor applies a
// plan one batch per transaction, and the Sequencer owns the durable round
// robin cursor.
package allocation

import (
	"github.com/spec-kit/lead-distribution/internal/domain"
	apperrors "github.com/spec-kit/lead-distribution/pkg/errorutil"
)

const (
	// MinCount and MaxCount bound the number of leads a single call may distribute.
	MinCount = 1
	MaxCount = 100

	// DefaultTopPerformerPercent is the share reserved for the top ranked staff member.
	DefaultTopPerformerPercent = 60
)

// ValidateCount rejects counts outside [MinCount, MaxCount].
func ValidateCount(count int) error {
	if count < MinCount || count > MaxCount {
		return apperrors.NewInvalidArgument("count must be between 1 and 100", map[string]any{"count": count})
	}
	return nil
}

// PlanManual validates a caller supplied plan. It does not check whether the
// leads are still unassigned; the Executor decides that.
func PlanManual(requests []domain.AssignmentBatch) (domain.AssignmentPlan, error) {
	if len(requests) == 0 {
		return nil, apperrors.NewInvalidArgument("assignments must not be empty", nil)
	}

	seen := make(map[int64]int)
	plan := make(domain.AssignmentPlan, 0, len(requests))
	for i, req := range requests {
		if req.StaffID <= 0 {
			return nil, apperrors.NewInvalidArgument("staff_id must be a positive id", map[string]any{"index": i})
		}
		if len(req.LeadIDs) == 0 {
			return nil, apperrors.NewInvalidArgument("lead_ids must not be empty", map[string]any{"index": i})
		}
		leadIDs := make([]int64, 0, len(req.LeadIDs))
		for _, leadID := range req.LeadIDs {
			if leadID <= 0 {
				return nil, apperrors.NewInvalidArgument("lead_ids must contain positive ids", map[string]any{"index": i})
			}
			if prev, dup := seen[leadID]; dup {
				return nil, apperrors.NewInvalidArgument("lead listed more than once", map[string]any{
					"lead_id": leadID,
					"indexes": []int{prev, i},
				})
			}
			seen[leadID] = i
			leadIDs = append(leadIDs, leadID)
		}
		plan = append(plan, domain.AssignmentBatch{StaffID: req.StaffID, LeadIDs: leadIDs})
	}
	return plan, nil
}

// CheckRoster rejects a plan that names staff outside active, which holds the
// company's active roster.
func CheckRoster(plan domain.AssignmentPlan, active []domain.StaffMember) error {
	known := make(map[int64]struct{}, len(active))
	for _, member := range active {
		known[member.ID] = struct{}{}
	}
	var unknown []int64
	for _, batch := range plan {
		if _, ok := known[batch.StaffID]; !ok {
			unknown = append(unknown, batch.StaffID)
		}
	}
	if len(unknown) > 0 {
		return apperrors.NewInvalidArgument("staff must be active members of the company", map[string]any{"staff_ids": unknown})
	}
	return nil
}

// PlanAutomatic walks the workload ordered roster cyclically: lead i goes to
// staffIDs[i % len(staffIDs)]. Batches follow roster order.
func PlanAutomatic(leads []domain.Lead, staffIDs []int64) domain.AssignmentPlan {
	if len(leads) == 0 || len(staffIDs) == 0 {
		return domain.AssignmentPlan{}
	}

	buckets := make([][]int64, len(staffIDs))
	for i, lead := range leads {
		idx := i % len(staffIDs)
		buckets[idx] = append(buckets[idx], lead.ID)
	}

	plan := make(domain.AssignmentPlan, 0, len(staffIDs))
	for i, staffID := range staffIDs {
		if len(buckets[i]) == 0 {
			continue
		}
		plan = append(plan, domain.AssignmentBatch{StaffID: staffID, LeadIDs: buckets[i]})
	}
	return plan
}

// PlanPerformanceBased reserves ceil(count*topPercent/100) leads for the first
// ranked staff member and splits the rest of count across the others in rank
// order, ceil(rest/(n-1)) each, until leads run out. A lone staff member only
// receives the top share.
func PlanPerformanceBased(count int, leads []domain.Lead, rankedStaffIDs []int64, topPercent int) domain.AssignmentPlan {
	if len(leads) == 0 || len(rankedStaffIDs) == 0 || count <= 0 {
		return domain.AssignmentPlan{}
	}
	if topPercent <= 0 || topPercent > 100 {
		topPercent = DefaultTopPerformerPercent
	}

	topShare := ceilDiv(count*topPercent, 100)
	plan := domain.AssignmentPlan{}
	next := 0
	take := func(staffID int64, n int) {
		if n > len(leads)-next {
			n = len(leads) - next
		}
		if n <= 0 {
			return
		}
		ids := make([]int64, 0, n)
		for _, lead := range leads[next : next+n] {
			ids = append(ids, lead.ID)
		}
		next += n
		plan = append(plan, domain.AssignmentBatch{StaffID: staffID, LeadIDs: ids})
	}

	take(rankedStaffIDs[0], topShare)

	others := rankedStaffIDs[1:]
	remaining := count - topShare
	if len(others) == 0 || remaining <= 0 {
		return plan
	}
	perStaff := ceilDiv(remaining, len(others))
	for _, staffID := range others {
		if remaining <= 0 || next >= len(leads) {
			break
		}
		n := perStaff
		if n > remaining {
			n = remaining
		}
		take(staffID, n)
		remaining -= n
	}
	return plan
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
