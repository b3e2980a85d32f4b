package domain

// AssignmentBatch is one staff member's portion of a plan.
type AssignmentBatch struct {
	StaffID int64
	LeadIDs []int64
}

// AssignmentPlan is the pre-commit mapping of staff to the leads they are about to receive.
type AssignmentPlan []AssignmentBatch

// LeadCount returns the number of leads referenced by the plan.
func (p AssignmentPlan) LeadCount() int {
	total := 0
	for _, batch := range p {
		total += len(batch.LeadIDs)
	}
	return total
}

// BatchResult reports the leads actually bound to a staff member.
type BatchResult struct {
	StaffID       int64
	AssignedLeads []int64
}

// AssignmentResult is returned by every assign operation.
type AssignmentResult struct {
	Strategy      Strategy
	TotalAssigned int
	Assignments   []BatchResult
}

// NewAssignmentResult merges batch results per staff member, keeping first-seen order.
func NewAssignmentResult(strategy Strategy, batches []BatchResult) *AssignmentResult {
	result := &AssignmentResult{Strategy: strategy, Assignments: []BatchResult{}}
	index := make(map[int64]int, len(batches))
	for _, batch := range batches {
		pos, ok := index[batch.StaffID]
		if !ok {
			pos = len(result.Assignments)
			index[batch.StaffID] = pos
			result.Assignments = append(result.Assignments, BatchResult{
				StaffID:       batch.StaffID,
				AssignedLeads: []int64{},
			})
		}
		result.Assignments[pos].AssignedLeads = append(result.Assignments[pos].AssignedLeads, batch.AssignedLeads...)
		result.TotalAssigned += len(batch.AssignedLeads)
	}
	return result
}
