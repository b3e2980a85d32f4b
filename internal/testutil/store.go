// Package testutil provides an in-memory implementation of the repository
// interfaces for tests.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/lead-distribution/internal/domain"
	"github.com/spec-kit/lead-distribution/internal/repository"
	apperrors "github.com/spec-kit/lead-distribution/pkg/errorutil"
)

type performance struct {
	score      *float64
	conversion *float64
}

// Store keeps leads, staff, settings and activities in memory. Assignment
// transactions are serialized and rolled back when their callback fails.
type Store struct {
	mu          sync.Mutex
	clock       time.Time
	nextID      int64
	leads       map[int64]*domain.Lead
	staff       map[int64]*domain.StaffMember
	perf        map[int64]performance
	settings    map[int64]*domain.DistributionSettings
	activities  []domain.ActivityRecord
	pending     map[int64]int64
	failures    map[string]error
	bindCalls   int
	settingsOps int
}

var (
	_ repository.SettingsRepository = (*Store)(nil)
	_ repository.LeadRepository     = (*Store)(nil)
	_ repository.StaffRepository    = (*Store)(nil)
	_ repository.TxManager          = (*Store)(nil)
)

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		clock:    time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC),
		leads:    map[int64]*domain.Lead{},
		staff:    map[int64]*domain.StaffMember{},
		perf:     map[int64]performance{},
		settings: map[int64]*domain.DistributionSettings{},
		pending:  map[int64]int64{},
		failures: map[string]error{},
	}
}

// Fail makes the named operation return err until cleared with a nil err.
// Names: "bind", "activities", "settings.update", "settings.get", "leads", "staff".
func (s *Store) Fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// Now returns the store clock.
func (s *Store) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock
}

func (s *Store) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// AddStaff adds a staff member and returns its id.
func (s *Store) AddStaff(companyID int64, name string, status domain.StaffStatus) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	now := s.tick()
	s.staff[id] = &domain.StaffMember{
		ID:        id,
		CompanyID: companyID,
		Name:      name,
		Email:     name + "@example.com",
		Role:      domain.StaffRoleAgent,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return id
}

// SetStaffStatus changes a staff member's status.
func (s *Store) SetStaffStatus(staffID int64, status domain.StaffStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staff[staffID].Status = status
}

// SetPerformance records the reporting subsystem's numbers for a staff member.
func (s *Store) SetPerformance(staffID int64, score, conversion *float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.perf[staffID] = performance{score: score, conversion: conversion}
}

// AddLeads adds n unassigned leads, each created one second after the previous one.
func (s *Store) AddLeads(companyID int64, n int) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		id := s.id()
		now := s.tick()
		s.leads[id] = &domain.Lead{
			ID:        id,
			CompanyID: companyID,
			Name:      "lead",
			Status:    domain.LeadStatusNew,
			CreatedAt: now,
			UpdatedAt: now,
		}
		ids = append(ids, id)
	}
	return ids
}

// AddAssignedLead adds a lead already owned by staffID.
func (s *Store) AddAssignedLead(companyID, staffID int64, status domain.LeadStatus, assignedAt time.Time) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	now := s.tick()
	owner := staffID
	at := assignedAt
	s.leads[id] = &domain.Lead{
		ID:         id,
		CompanyID:  companyID,
		Name:       "lead",
		Status:     status,
		AssignedTo: &owner,
		AssignedAt: &at,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return id
}

// Claim assigns a lead directly, as a concurrent caller would.
func (s *Store) Claim(leadID, staffID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claimLocked(leadID, staffID)
}

// ClaimBeforeBind lets a competing caller take leadID right before the next
// bind that includes it.
func (s *Store) ClaimBeforeBind(leadID, staffID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[leadID] = staffID
}

func (s *Store) claimLocked(leadID, staffID int64) {
	lead := s.leads[leadID]
	owner := staffID
	now := s.tick()
	lead.AssignedTo = &owner
	lead.AssignedAt = &now
}

// Lead returns a copy of a lead.
func (s *Store) Lead(id int64) domain.Lead {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.leads[id]
}

// Activities returns a copy of the activity trail.
func (s *Store) Activities() []domain.ActivityRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ActivityRecord{}, s.activities...)
}

// BindCalls returns how many bind statements ran.
func (s *Store) BindCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bindCalls
}

// SettingsWrites returns how many settings create/update calls succeeded.
func (s *Store) SettingsWrites() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settingsOps
}

// Get implements repository.SettingsRepository.
func (s *Store) Get(_ context.Context, companyID int64) (*domain.DistributionSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures["settings.get"]; err != nil {
		return nil, err
	}
	settings, ok := s.settings[companyID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return copySettings(settings), nil
}

// Create implements repository.SettingsRepository.
func (s *Store) Create(_ context.Context, settings *domain.DistributionSettings) (*domain.DistributionSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.settings[settings.CompanyID]; ok {
		return copySettings(existing), nil
	}
	stored := copySettings(settings)
	now := s.tick()
	stored.Version = 1
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.settings[settings.CompanyID] = stored
	s.settingsOps++
	return copySettings(stored), nil
}

// Update implements repository.SettingsRepository.
func (s *Store) Update(_ context.Context, companyID int64, patch repository.SettingsPatch) (*domain.DistributionSettings, error) {
	if patch.Empty() {
		return nil, apperrors.NewInvalidArgument("no settings fields to update", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures["settings.update"]; err != nil {
		return nil, err
	}
	settings, ok := s.settings[companyID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if patch.Strategy.Set {
		settings.Strategy = patch.Strategy.Value
	}
	if patch.IsActive.Set {
		settings.IsActive = patch.IsActive.Value
	}
	if patch.Parameters.Set {
		settings.Parameters = patch.Parameters.Value
	}
	if patch.RoundRobinOrder.Set {
		settings.RoundRobinOrder = append([]int64(nil), patch.RoundRobinOrder.Value...)
	}
	if patch.LastAssignedTo.Set {
		settings.LastAssignedTo = copyID(patch.LastAssignedTo.Value)
	}
	settings.Version++
	settings.UpdatedAt = s.tick()
	s.settingsOps++
	return copySettings(settings), nil
}

// ListUnassigned implements repository.LeadRepository.
func (s *Store) ListUnassigned(_ context.Context, companyID int64, limit int) ([]domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures["leads"]; err != nil {
		return nil, err
	}
	result := []domain.Lead{}
	for _, lead := range s.leads {
		if lead.CompanyID == companyID && lead.AssignedTo == nil {
			result = append(result, *lead)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ListActive implements repository.StaffRepository.
func (s *Store) ListActive(_ context.Context, companyID int64) ([]domain.StaffMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures["staff"]; err != nil {
		return nil, err
	}
	return s.activeLocked(companyID), nil
}

func (s *Store) activeLocked(companyID int64) []domain.StaffMember {
	result := []domain.StaffMember{}
	for _, member := range s.staff {
		if member.CompanyID == companyID && member.Status == domain.StaffStatusActive {
			result = append(result, *member)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// ListByWorkload implements repository.StaffRepository.
func (s *Store) ListByWorkload(_ context.Context, companyID int64, periodStart time.Time) ([]domain.StaffWorkload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures["staff"]; err != nil {
		return nil, err
	}
	result := []domain.StaffWorkload{}
	for _, member := range s.activeLocked(companyID) {
		item := domain.StaffWorkload{StaffMember: member}
		for _, lead := range s.leads {
			if lead.CompanyID != companyID || lead.AssignedTo == nil || *lead.AssignedTo != member.ID {
				continue
			}
			if lead.Status.IsOpen() {
				item.OpenLeadCount++
			}
			if lead.AssignedAt != nil && !lead.AssignedAt.Before(periodStart) {
				item.AssignedThisPeriod++
			}
		}
		result = append(result, item)
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].OpenLeadCount != result[j].OpenLeadCount {
			return result[i].OpenLeadCount < result[j].OpenLeadCount
		}
		if result[i].AssignedThisPeriod != result[j].AssignedThisPeriod {
			return result[i].AssignedThisPeriod < result[j].AssignedThisPeriod
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// ListByPerformance implements repository.StaffRepository.
func (s *Store) ListByPerformance(_ context.Context, companyID int64) ([]domain.StaffPerformance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures["staff"]; err != nil {
		return nil, err
	}
	result := []domain.StaffPerformance{}
	for _, member := range s.activeLocked(companyID) {
		p := s.perf[member.ID]
		result = append(result, domain.StaffPerformance{
			StaffMember:      member,
			PerformanceScore: p.score,
			ConversionRate:   p.conversion,
		})
	}
	sort.SliceStable(result, func(i, j int) bool {
		if c := compareDesc(result[i].PerformanceScore, result[j].PerformanceScore); c != 0 {
			return c < 0
		}
		if c := compareDesc(result[i].ConversionRate, result[j].ConversionRate); c != 0 {
			return c < 0
		}
		return result[i].ID < result[j].ID
	})
	for i := range result {
		result[i].Rank = i + 1
	}
	return result, nil
}

// compareDesc orders larger values first and nil values last.
func compareDesc(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case *a > *b:
		return -1
	case *a < *b:
		return 1
	default:
		return 0
	}
}

// WithinAssignmentTx implements repository.TxManager.
func (s *Store) WithinAssignmentTx(ctx context.Context, fn func(ctx context.Context, tx repository.AssignmentTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(map[int64]domain.Lead, len(s.leads))
	for id, lead := range s.leads {
		snapshot[id] = *lead
	}
	activityCount := len(s.activities)

	if err := fn(ctx, &memTx{store: s}); err != nil {
		for id, lead := range snapshot {
			restored := lead
			s.leads[id] = &restored
		}
		s.activities = s.activities[:activityCount]
		return err
	}
	return nil
}

type memTx struct {
	store *Store
}

func (t *memTx) BindUnassigned(_ context.Context, companyID, staffID int64, leadIDs []int64, assignedBy *int64) ([]int64, error) {
	s := t.store
	s.bindCalls++
	if err := s.failures["bind"]; err != nil {
		return nil, err
	}
	for _, id := range leadIDs {
		if thief, ok := s.pending[id]; ok {
			delete(s.pending, id)
			s.claimLocked(id, thief)
		}
	}

	bound := []int64{}
	if member, ok := s.staff[staffID]; !ok || member.CompanyID != companyID || member.Status != domain.StaffStatusActive {
		return bound, nil
	}
	for _, id := range leadIDs {
		lead, ok := s.leads[id]
		if !ok || lead.CompanyID != companyID || lead.AssignedTo != nil {
			continue
		}
		owner := staffID
		now := s.tick()
		lead.AssignedTo = &owner
		lead.AssignedBy = copyID(assignedBy)
		lead.AssignedAt = &now
		lead.UpdatedAt = now
		bound = append(bound, id)
	}
	return bound, nil
}

func (t *memTx) RecordActivities(_ context.Context, records []domain.ActivityRecord) error {
	s := t.store
	if err := s.failures["activities"]; err != nil {
		return err
	}
	for _, rec := range records {
		rec.ID = s.id()
		rec.ActorID = copyID(rec.ActorID)
		rec.CreatedAt = s.tick()
		s.activities = append(s.activities, rec)
	}
	return nil
}

func copySettings(in *domain.DistributionSettings) *domain.DistributionSettings {
	out := *in
	if in.RoundRobinOrder != nil {
		out.RoundRobinOrder = append([]int64(nil), in.RoundRobinOrder...)
	}
	out.LastAssignedTo = copyID(in.LastAssignedTo)
	return &out
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
