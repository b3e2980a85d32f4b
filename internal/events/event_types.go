package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/lead-distribution/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventLeadsAssigned      EventType = "leads_assigned"
	EventSettingsUpdated    EventType = "distribution_settings_updated"
	EventRoundRobinReseeded EventType = "round_robin_reseeded"
)

// Subject returns the bus subject suffix of the event type.
func (t EventType) Subject() string {
	switch t {
	case EventLeadsAssigned:
		return "leads.assigned"
	case EventSettingsUpdated:
		return "distribution.settings.updated"
	case EventRoundRobinReseeded:
		return "distribution.round_robin.reseeded"
	default:
		return string(t)
	}
}

// ActorType tells staff initiated calls apart from system jobs.
type ActorType string

const (
	ActorStaff  ActorType = "staff"
	ActorSystem ActorType = "system"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type    ActorType `json:"type"`
	StaffID *int64    `json:"staff_id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	CompanyID int64     `json:"company_id"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType EventType, companyID int64, actor Actor, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		CompanyID: companyID,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// ActorFor builds the actor of a call made by staffID, or by the system when nil.
func ActorFor(staffID *int64) Actor {
	if staffID == nil {
		return Actor{Type: ActorSystem}
	}
	id := *staffID
	return Actor{Type: ActorStaff, StaffID: &id}
}

// LeadsAssignedPayload is emitted once per committed batch.
type LeadsAssignedPayload struct {
	Strategy domain.Strategy `json:"strategy"`
	StaffID  int64           `json:"staff_id"`
	LeadIDs  []int64         `json:"lead_ids"`
}

// SettingsUpdatedPayload payload.
type SettingsUpdatedPayload struct {
	Strategy domain.Strategy `json:"strategy"`
	IsActive bool            `json:"is_active"`
	Version  int64           `json:"version"`
}

// RoundRobinReseededPayload payload.
type RoundRobinReseededPayload struct {
	ActiveStaff int `json:"active_staff"`
}
