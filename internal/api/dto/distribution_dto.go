package dto

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/spec-kit/lead-distribution/internal/domain"
	"github.com/spec-kit/lead-distribution/internal/repository"
	apperrors "github.com/spec-kit/lead-distribution/pkg/errorutil"
)

// CountRequest is the body of the batch assign and run endpoints. A missing
// count falls back to the configured default.
type CountRequest struct {
	Count *int `json:"count" validate:"omitempty,min=1,max=100"`
}

// ManualAssignment pairs one staff member with the leads to give them.
type ManualAssignment struct {
	StaffID int64   `json:"staff_id" validate:"required,gt=0"`
	LeadIDs []int64 `json:"lead_ids" validate:"required,min=1,dive,gt=0"`
}

// ManualAssignmentRequest payload.
type ManualAssignmentRequest struct {
	Assignments []ManualAssignment `json:"assignments" validate:"required,min=1,dive"`
}

// Batches converts the request into assignment batches.
func (r ManualAssignmentRequest) Batches() []domain.AssignmentBatch {
	batches := make([]domain.AssignmentBatch, 0, len(r.Assignments))
	for _, a := range r.Assignments {
		batches = append(batches, domain.AssignmentBatch{StaffID: a.StaffID, LeadIDs: a.LeadIDs})
	}
	return batches
}

// settingsFields holds the keys a settings update may carry. Other keys are ignored.
type settingsFields struct {
	Strategy        *domain.Strategy `json:"strategy" validate:"omitempty,strategy"`
	IsActive        *bool            `json:"is_active"`
	RoundRobinOrder []int64          `json:"round_robin_order" validate:"omitempty,dive,gt=0"`
	LastAssignedTo  *int64           `json:"last_assigned_to" validate:"omitempty,gt=0"`
}

// DecodeSettingsPatch turns a settings update body into a patch. Keys outside
// the allow-list are dropped; parameters are decoded strictly.
func DecodeSettingsPatch(body []byte) (repository.SettingsPatch, error) {
	var patch repository.SettingsPatch

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return patch, apperrors.NewInvalidArgument("invalid payload", nil)
	}

	var fields settingsFields
	if err := json.Unmarshal(body, &fields); err != nil {
		return patch, apperrors.NewInvalidArgument("invalid payload", map[string]any{"reason": err.Error()})
	}
	if err := Validate(fields); err != nil {
		return patch, err
	}

	if _, ok := raw["strategy"]; ok {
		if fields.Strategy == nil {
			return patch, apperrors.NewInvalidArgument("strategy cannot be null", nil)
		}
		patch.Strategy = repository.Some(*fields.Strategy)
	}
	if _, ok := raw["is_active"]; ok {
		if fields.IsActive == nil {
			return patch, apperrors.NewInvalidArgument("is_active cannot be null", nil)
		}
		patch.IsActive = repository.Some(*fields.IsActive)
	}
	if value, ok := raw["parameters"]; ok {
		params, err := decodeParameters(value)
		if err != nil {
			return patch, err
		}
		patch.Parameters = repository.Some(params)
	}
	if _, ok := raw["round_robin_order"]; ok {
		patch.RoundRobinOrder = repository.Some(fields.RoundRobinOrder)
	}
	if _, ok := raw["last_assigned_to"]; ok {
		patch.LastAssignedTo = repository.Some(fields.LastAssignedTo)
	}

	if patch.Empty() {
		return patch, apperrors.NewInvalidArgument("no settings fields to update", nil)
	}
	return patch, nil
}

func decodeParameters(value json.RawMessage) (domain.StrategyParameters, error) {
	var params domain.StrategyParameters
	if bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
		return params, nil
	}
	dec := json.NewDecoder(bytes.NewReader(value))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&params); err != nil {
		return params, apperrors.NewInvalidArgument("invalid strategy parameters", map[string]any{"reason": err.Error()})
	}
	return params, nil
}

// SettingsResponse payload.
type SettingsResponse struct {
	Strategy        domain.Strategy           `json:"strategy"`
	IsActive        bool                      `json:"is_active"`
	Parameters      domain.StrategyParameters `json:"parameters"`
	RoundRobinOrder []int64                   `json:"round_robin_order"`
	LastAssignedTo  *int64                    `json:"last_assigned_to"`
	Version         int64                     `json:"version"`
	UpdatedAt       time.Time                 `json:"updated_at"`
}

// NewSettingsResponse maps settings; nil stays nil.
func NewSettingsResponse(s *domain.DistributionSettings) *SettingsResponse {
	if s == nil {
		return nil
	}
	return &SettingsResponse{
		Strategy:        s.Strategy,
		IsActive:        s.IsActive,
		Parameters:      s.Parameters,
		RoundRobinOrder: s.RoundRobinOrder,
		LastAssignedTo:  s.LastAssignedTo,
		Version:         s.Version,
		UpdatedAt:       s.UpdatedAt,
	}
}

// AssignmentEntry is one staff member's share of an assignment result.
type AssignmentEntry struct {
	StaffID       int64   `json:"staff_id"`
	AssignedLeads []int64 `json:"assigned_leads"`
}

// AssignmentResponse payload.
type AssignmentResponse struct {
	TotalAssigned int               `json:"total_assigned"`
	Strategy      domain.Strategy   `json:"strategy"`
	Assignments   []AssignmentEntry `json:"assignments"`
}

// NewAssignmentResponse maps a result.
func NewAssignmentResponse(r *domain.AssignmentResult) AssignmentResponse {
	entries := make([]AssignmentEntry, 0, len(r.Assignments))
	for _, a := range r.Assignments {
		entries = append(entries, AssignmentEntry{StaffID: a.StaffID, AssignedLeads: a.AssignedLeads})
	}
	return AssignmentResponse{TotalAssigned: r.TotalAssigned, Strategy: r.Strategy, Assignments: entries}
}

// LeadSummary response.
type LeadSummary struct {
	ID        int64             `json:"id"`
	Name      string            `json:"name"`
	Email     string            `json:"email,omitempty"`
	Phone     string            `json:"phone,omitempty"`
	Source    string            `json:"source,omitempty"`
	Status    domain.LeadStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
}

// StaffWorkloadEntry response.
type StaffWorkloadEntry struct {
	StaffID            int64            `json:"staff_id"`
	Name               string           `json:"name"`
	Role               domain.StaffRole `json:"role"`
	OpenLeadCount      int              `json:"open_lead_count"`
	AssignedThisPeriod int              `json:"assigned_this_period"`
}

// StaffPerformanceEntry response.
type StaffPerformanceEntry struct {
	StaffID          int64            `json:"staff_id"`
	Name             string           `json:"name"`
	Role             domain.StaffRole `json:"role"`
	PerformanceScore *float64         `json:"performance_score"`
	ConversionRate   *float64         `json:"conversion_rate"`
	PerformanceRank  int              `json:"performance_rank"`
}
