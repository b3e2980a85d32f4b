package domain

import "time"

// StaffRole enumerates internal operator roles.
type StaffRole string

const (
	StaffRoleAdmin   StaffRole = "admin"
	StaffRoleManager StaffRole = "manager"
	StaffRoleAgent   StaffRole = "agent"
)

// StaffStatus enumerates account states. Only active staff receive leads.
type StaffStatus string

const (
	StaffStatusActive    StaffStatus = "active"
	StaffStatusInactive  StaffStatus = "inactive"
	StaffStatusSuspended StaffStatus = "suspended"
)

// StaffMember models a sales representative within a company.
type StaffMember struct {
	ID        int64
	CompanyID int64
	Name      string
	Email     string
	Role      StaffRole
	Status    StaffStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StaffWorkload annotates a staff member with current load.
type StaffWorkload struct {
	StaffMember
	OpenLeadCount      int
	AssignedThisPeriod int
}

// StaffPerformance annotates a staff member with the reporting subsystem's score.
// Rank is 1-based within the ordered roster.
type StaffPerformance struct {
	StaffMember
	PerformanceScore *float64
	ConversionRate   *float64
	Rank             int
}
