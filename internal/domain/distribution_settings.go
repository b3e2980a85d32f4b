package domain

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Strategy names one of the interchangeable allocation algorithms.
type Strategy string

const (
	StrategyManual           Strategy = "manual"
	StrategyAutomatic        Strategy = "automatic"
	StrategyRoundRobin       Strategy = "round_robin"
	StrategyPerformanceBased Strategy = "performance_based"
)

// Strategies lists every supported strategy.
var Strategies = []Strategy{
	StrategyManual,
	StrategyAutomatic,
	StrategyRoundRobin,
	StrategyPerformanceBased,
}

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	for _, known := range Strategies {
		if s == known {
			return true
		}
	}
	return false
}

// ActivityNote is the trail note written for leads bound by this strategy.
func (s Strategy) ActivityNote() string {
	switch s {
	case StrategyManual:
		return "Lead assigned manually"
	case StrategyAutomatic:
		return "Lead assigned automatically by workload"
	case StrategyRoundRobin:
		return "Lead assigned by round robin rotation"
	case StrategyPerformanceBased:
		return "Lead assigned by performance ranking"
	default:
		return "Lead assigned"
	}
}

// StrategyParameters holds the tunable knobs of every strategy. Each field is
// only accepted for the strategies that read it, see Validate.
type StrategyParameters struct {
	// DefaultCount is used by scheduled runs that do not pass a count.
	DefaultCount int `json:"default_count,omitempty" validate:"omitempty,min=1,max=100"`
	// TopPerformerPercent is the share reserved for the top ranked staff member.
	TopPerformerPercent int `json:"top_performer_percent,omitempty" validate:"omitempty,min=1,max=100"`
	// WorkloadWindowDays replaces the calendar month as the "assigned this period" window.
	WorkloadWindowDays int `json:"workload_window_days,omitempty" validate:"omitempty,min=1,max=366"`
}

var parametersValidator = validator.New()

// Validate checks ranges and rejects knobs that do not belong to strategy.
func (p StrategyParameters) Validate(strategy Strategy) error {
	if err := parametersValidator.Struct(p); err != nil {
		return err
	}
	if p.DefaultCount != 0 && strategy == StrategyManual {
		return fmt.Errorf("default_count is not supported by the %s strategy", strategy)
	}
	if p.TopPerformerPercent != 0 && strategy != StrategyPerformanceBased {
		return fmt.Errorf("top_performer_percent is only supported by the %s strategy", StrategyPerformanceBased)
	}
	if p.WorkloadWindowDays != 0 && strategy != StrategyAutomatic {
		return fmt.Errorf("workload_window_days is only supported by the %s strategy", StrategyAutomatic)
	}
	return nil
}

// DistributionSettings is the per-company allocation configuration and the
// durable round robin cursor.
type DistributionSettings struct {
	CompanyID       int64
	Strategy        Strategy
	IsActive        bool
	Parameters      StrategyParameters
	RoundRobinOrder []int64
	LastAssignedTo  *int64
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DefaultSettings is the row a company gets on its first settings or cursor
// write: manual allocation, active. Scheduled runs stay disabled until a
// strategy is chosen explicitly.
func DefaultSettings(companyID int64) *DistributionSettings {
	return &DistributionSettings{
		CompanyID: companyID,
		Strategy:  StrategyManual,
		IsActive:  true,
	}
}
