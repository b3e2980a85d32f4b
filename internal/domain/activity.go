package domain

import "time"

// ActivityAction identifies what happened to a lead.
type ActivityAction string

const ActivityActionAssigned ActivityAction = "assigned"

// ActivityRecord is an immutable lead trail entry. ActorID is nil for
// system-initiated assignments.
type ActivityRecord struct {
	ID        int64
	CompanyID int64
	LeadID    int64
	ActorID   *int64
	Action    ActivityAction
	Note      string
	CreatedAt time.Time
}
