package domain

import "time"

// LeadStatus enumerates pipeline stages for a lead.
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusQualified LeadStatus = "qualified"
	LeadStatusProposal  LeadStatus = "proposal"
	LeadStatusWon       LeadStatus = "won"
	LeadStatusLost      LeadStatus = "lost"
)

// IsOpen reports whether the lead still counts toward a staff member's workload.
func (s LeadStatus) IsOpen() bool {
	return s != LeadStatusWon && s != LeadStatusLost
}

// Lead is an inbound sales lead owned by a company.
type Lead struct {
	ID         int64
	CompanyID  int64
	Name       string
	Email      string
	Phone      string
	Source     string
	Status     LeadStatus
	AssignedTo *int64
	AssignedBy *int64
	AssignedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
