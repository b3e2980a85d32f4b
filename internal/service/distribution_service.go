package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/lead-distribution/internal/allocation"
	"github.com/spec-kit/lead-distribution/internal/config"
	"github.com/spec-kit/lead-distribution/internal/domain"
	"github.com/spec-kit/lead-distribution/internal/events"
	"github.com/spec-kit/lead-distribution/internal/observability"
	"github.com/spec-kit/lead-distribution/internal/repository"
	apperrors "github.com/spec-kit/lead-distribution/pkg/errorutil"
)

// DistributionService is the entry point for every lead allocation operation.
// All operations are scoped to one company; assignedBy is the staff member who
// triggered the call, or nil for system jobs.
type DistributionService struct {
	settings   repository.SettingsRepository
	leads      repository.LeadRepository
	staff      repository.StaffRepository
	executor   *allocation.Executor
	sequencer  *allocation.Sequencer
	roundRobin *allocation.RoundRobin
	locker     allocation.Locker
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.DistributionConfig
	now        func() time.Time
}

// DistributionDependencies bundles collaborators.
type DistributionDependencies struct {
	SettingsRepo repository.SettingsRepository
	LeadRepo     repository.LeadRepository
	StaffRepo    repository.StaffRepository
	TxManager    repository.TxManager
	Locker       allocation.Locker
	Dispatcher   events.Dispatcher
	Metrics      *observability.Metrics
	Logger       *zap.Logger
	Config       config.DistributionConfig
	Now          func() time.Time
}

// NewDistributionService creates the service.
func NewDistributionService(deps DistributionDependencies) *DistributionService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	locker := deps.Locker
	if locker == nil {
		locker = allocation.NopLocker{}
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	executor := allocation.NewExecutor(deps.TxManager, logger, deps.Metrics)
	sequencer := allocation.NewSequencer(deps.SettingsRepo, deps.StaffRepo, allocation.SequencerOptions{
		ReseedOnDrift: deps.Config.ReseedOnDrift,
		Logger:        logger,
	})
	return &DistributionService{
		settings:   deps.SettingsRepo,
		leads:      deps.LeadRepo,
		staff:      deps.StaffRepo,
		executor:   executor,
		sequencer:  sequencer,
		roundRobin: allocation.NewRoundRobin(sequencer, executor, logger, deps.Metrics),
		locker:     locker,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		cfg:        deps.Config,
		now:        now,
	}
}

// GetSettings returns the company's settings, or nil when none were saved yet.
func (s *DistributionService) GetSettings(ctx context.Context, companyID int64) (*domain.DistributionSettings, error) {
	settings, err := s.loadSettings(ctx, companyID)
	if err != nil {
		return nil, apperrors.NewStorageFailure(err)
	}
	return settings, nil
}

// UpsertSettings applies patch, creating the settings row on first write.
func (s *DistributionService) UpsertSettings(ctx context.Context, companyID int64, assignedBy *int64, patch repository.SettingsPatch) (*domain.DistributionSettings, error) {
	if patch.Empty() {
		return nil, apperrors.NewInvalidArgument("no settings fields to update", nil)
	}

	current, err := s.loadSettings(ctx, companyID)
	if err != nil {
		return nil, apperrors.NewStorageFailure(err)
	}
	base := domain.DefaultSettings(companyID)
	if current != nil {
		base = current
	}
	if err := validatePatch(base, patch); err != nil {
		return nil, err
	}

	if current == nil {
		if _, err := s.settings.Create(ctx, base); err != nil {
			return nil, apperrors.NewStorageFailure(err)
		}
	}
	updated, err := s.settings.Update(ctx, companyID, patch)
	if err != nil {
		return nil, apperrors.NewStorageFailure(err)
	}

	s.logger.Info("distribution settings updated",
		zap.Int64("tenant_id", companyID),
		zap.String("strategy", string(updated.Strategy)),
		zap.Bool("is_active", updated.IsActive),
		zap.Int64("version", updated.Version))
	s.publish(ctx, events.NewEvent(events.EventSettingsUpdated, companyID, events.ActorFor(assignedBy), events.SettingsUpdatedPayload{
		Strategy: updated.Strategy,
		IsActive: updated.IsActive,
		Version:  updated.Version,
	}))
	return updated, nil
}

// AssignManual binds the caller's explicit staff to leads pairs. Every staff id
// must belong to the company's active roster.
func (s *DistributionService) AssignManual(ctx context.Context, companyID int64, assignedBy *int64, requests []domain.AssignmentBatch) (*domain.AssignmentResult, error) {
	plan, err := allocation.PlanManual(requests)
	if err != nil {
		return nil, err
	}
	active, err := s.staff.ListActive(ctx, companyID)
	if err != nil {
		return nil, apperrors.NewStorageFailure(err)
	}
	if len(active) == 0 {
		return nil, apperrors.NewNoEligibleStaff(companyID)
	}
	if err := allocation.CheckRoster(plan, active); err != nil {
		return nil, err
	}
	return s.apply(ctx, companyID, domain.StrategyManual, plan, assignedBy)
}

// AssignAutomatic hands out up to count leads to the least loaded staff first.
func (s *DistributionService) AssignAutomatic(ctx context.Context, companyID int64, assignedBy *int64, count int) (*domain.AssignmentResult, error) {
	if err := allocation.ValidateCount(count); err != nil {
		return nil, err
	}
	leads, err := s.leads.ListUnassigned(ctx, companyID, count)
	if err != nil {
		return nil, apperrors.NewStorageFailure(err)
	}
	if len(leads) == 0 {
		return domain.NewAssignmentResult(domain.StrategyAutomatic, nil), nil
	}

	settings, err := s.loadSettings(ctx, companyID)
	if err != nil {
		return nil, apperrors.NewStorageFailure(err)
	}
	roster, err := s.staff.ListByWorkload(ctx, companyID, s.periodStart(settings))
	if err != nil {
		return nil, apperrors.NewStorageFailure(err)
	}
	if len(roster) == 0 {
		return nil, apperrors.NewNoEligibleStaff(companyID)
	}

	staffIDs := make([]int64, 0, len(roster))
	for _, member := range roster {
		staffIDs = append(staffIDs, member.ID)
	}
	return s.apply(ctx, companyID, domain.StrategyAutomatic, allocation.PlanAutomatic(leads, staffIDs), assignedBy)
}

// AssignRoundRobin deals up to count leads one at a time along the stored rotation.
func (s *DistributionService) AssignRoundRobin(ctx context.Context, companyID int64, assignedBy *int64, count int) (*domain.AssignmentResult, error) {
	if err := allocation.ValidateCount(count); err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, rotationLockKey(companyID))
	if err != nil {
		return nil, apperrors.NewStorageFailure(fmt.Errorf("acquire rotation lock: %w", err))
	}
	defer release()

	leads, err := s.leads.ListUnassigned(ctx, companyID, count)
	if err != nil {
		return nil, apperrors.NewStorageFailure(err)
	}
	if len(leads) == 0 {
		return domain.NewAssignmentResult(domain.StrategyRoundRobin, nil), nil
	}
	active, err := s.staff.ListActive(ctx, companyID)
	if err != nil {
		return nil, apperrors.NewStorageFailure(err)
	}
	if len(active) == 0 {
		return nil, apperrors.NewNoEligibleStaff(companyID)
	}

	results, err := s.roundRobin.Assign(ctx, companyID, leads, assignedBy, s.onCommit(companyID, domain.StrategyRoundRobin, assignedBy))
	return s.finish(companyID, domain.StrategyRoundRobin, results, err)
}

// AssignPerformanceBased gives the top ranked staff member the configured share
// of up to count leads and splits the rest evenly down the ranking.
func (s *DistributionService) AssignPerformanceBased(ctx context.Context, companyID int64, assignedBy *int64, count int) (*domain.AssignmentResult, error) {
	if err := allocation.ValidateCount(count); err != nil {
		return nil, err
	}
	leads, err := s.leads.ListUnassigned(ctx, companyID, count)
	if err != nil {
		return nil, apperrors.NewStorageFailure(err)
	}
	if len(leads) == 0 {
		return domain.NewAssignmentResult(domain.StrategyPerformanceBased, nil), nil
	}

	settings, err := s.loadSettings(ctx, companyID)
	if err != nil {
		return nil, apperrors.NewStorageFailure(err)
	}
	ranked, err := s.staff.ListByPerformance(ctx, companyID)
	if err != nil {
		return nil, apperrors.NewStorageFailure(err)
	}
	if len(ranked) == 0 {
		return nil, apperrors.NewNoEligibleStaff(companyID)
	}

	topPercent := allocation.DefaultTopPerformerPercent
	if settings != nil && settings.Parameters.TopPerformerPercent > 0 {
		topPercent = settings.Parameters.TopPerformerPercent
	}
	staffIDs := make([]int64, 0, len(ranked))
	for _, member := range ranked {
		staffIDs = append(staffIDs, member.ID)
	}
	plan := allocation.PlanPerformanceBased(count, leads, staffIDs, topPercent)
	return s.apply(ctx, companyID, domain.StrategyPerformanceBased, plan, assignedBy)
}

// RunConfigured runs the company's configured strategy. A count of zero falls
// back to the saved default_count, then to the service default.
func (s *DistributionService) RunConfigured(ctx context.Context, companyID int64, assignedBy *int64, count int) (*domain.AssignmentResult, error) {
	settings, err := s.loadSettings(ctx, companyID)
	if err != nil {
		return nil, apperrors.NewStorageFailure(err)
	}
	if settings == nil || !settings.IsActive {
		return nil, apperrors.NewDistributionDisabled("distribution is not active", map[string]any{"company_id": companyID})
	}

	if count == 0 {
		count = settings.Parameters.DefaultCount
	}
	if count == 0 {
		count = s.cfg.DefaultCount
	}

	switch settings.Strategy {
	case domain.StrategyAutomatic:
		return s.AssignAutomatic(ctx, companyID, assignedBy, count)
	case domain.StrategyRoundRobin:
		return s.AssignRoundRobin(ctx, companyID, assignedBy, count)
	case domain.StrategyPerformanceBased:
		return s.AssignPerformanceBased(ctx, companyID, assignedBy, count)
	default:
		return nil, apperrors.NewDistributionDisabled("configured strategy requires explicit assignments",
			map[string]any{"company_id": companyID, "strategy": settings.Strategy})
	}
}

// ReseedRotation rebuilds the round robin order from the current active roster
// and restarts the rotation at its head.
func (s *DistributionService) ReseedRotation(ctx context.Context, companyID int64, assignedBy *int64) (*domain.DistributionSettings, error) {
	release, err := s.locker.Acquire(ctx, rotationLockKey(companyID))
	if err != nil {
		return nil, apperrors.NewStorageFailure(fmt.Errorf("acquire rotation lock: %w", err))
	}
	defer release()

	if err := s.sequencer.Reset(ctx, companyID); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewStorageFailure(err)
	}
	if _, err := s.sequencer.Next(ctx, companyID); err != nil {
		return nil, apperrors.NewStorageFailure(err)
	}
	settings, err := s.loadSettings(ctx, companyID)
	if err != nil {
		return nil, apperrors.NewStorageFailure(err)
	}

	active := 0
	if settings != nil {
		active = len(settings.RoundRobinOrder)
	}
	s.logger.Info("round robin rotation reseeded", zap.Int64("tenant_id", companyID), zap.Int("staff", active))
	s.publish(ctx, events.NewEvent(events.EventRoundRobinReseeded, companyID, events.ActorFor(assignedBy),
		events.RoundRobinReseededPayload{ActiveStaff: active}))
	return settings, nil
}

// ListUnassigned returns the oldest unassigned leads. limit <= 0 returns all.
func (s *DistributionService) ListUnassigned(ctx context.Context, companyID int64, limit int) ([]domain.Lead, error) {
	leads, err := s.leads.ListUnassigned(ctx, companyID, limit)
	if err != nil {
		return nil, apperrors.NewStorageFailure(err)
	}
	return leads, nil
}

// StaffWorkload returns active staff ordered the way automatic assignment walks them.
func (s *DistributionService) StaffWorkload(ctx context.Context, companyID int64) ([]domain.StaffWorkload, error) {
	settings, err := s.loadSettings(ctx, companyID)
	if err != nil {
		return nil, apperrors.NewStorageFailure(err)
	}
	roster, err := s.staff.ListByWorkload(ctx, companyID, s.periodStart(settings))
	if err != nil {
		return nil, apperrors.NewStorageFailure(err)
	}
	return roster, nil
}

// StaffPerformance returns active staff in performance rank order.
func (s *DistributionService) StaffPerformance(ctx context.Context, companyID int64) ([]domain.StaffPerformance, error) {
	ranked, err := s.staff.ListByPerformance(ctx, companyID)
	if err != nil {
		return nil, apperrors.NewStorageFailure(err)
	}
	return ranked, nil
}

func (s *DistributionService) apply(ctx context.Context, companyID int64, strategy domain.Strategy, plan domain.AssignmentPlan, assignedBy *int64) (*domain.AssignmentResult, error) {
	results, err := s.executor.Apply(ctx, companyID, strategy, plan, assignedBy, s.onCommit(companyID, strategy, assignedBy))
	return s.finish(companyID, strategy, results, err)
}

func (s *DistributionService) finish(companyID int64, strategy domain.Strategy, results []domain.BatchResult, err error) (*domain.AssignmentResult, error) {
	result := domain.NewAssignmentResult(strategy, results)
	if err != nil {
		s.logger.Error("assignment aborted",
			zap.Int64("tenant_id", companyID),
			zap.String("strategy", string(strategy)),
			zap.Int("assigned", result.TotalAssigned),
			zap.Error(err))
		return nil, err
	}
	s.logger.Info("leads assigned",
		zap.Int64("tenant_id", companyID),
		zap.String("strategy", string(strategy)),
		zap.Int("assigned", result.TotalAssigned))
	return result, nil
}

func (s *DistributionService) onCommit(companyID int64, strategy domain.Strategy, assignedBy *int64) allocation.BatchCommitted {
	actor := events.ActorFor(assignedBy)
	return func(ctx context.Context, batch domain.BatchResult) {
		s.publish(ctx, events.NewEvent(events.EventLeadsAssigned, companyID, actor, events.LeadsAssignedPayload{
			Strategy: strategy,
			StaffID:  batch.StaffID,
			LeadIDs:  batch.AssignedLeads,
		}))
	}
}

func (s *DistributionService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID),
			zap.Error(err))
	}
}

func (s *DistributionService) loadSettings(ctx context.Context, companyID int64) (*domain.DistributionSettings, error) {
	settings, err := s.settings.Get(ctx, companyID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return settings, err
}

// periodStart is the first instant of the current UTC month, or the start of
// the configured rolling window.
func (s *DistributionService) periodStart(settings *domain.DistributionSettings) time.Time {
	now := s.now().UTC()
	if settings != nil && settings.Parameters.WorkloadWindowDays > 0 {
		return now.AddDate(0, 0, -settings.Parameters.WorkloadWindowDays)
	}
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func rotationLockKey(companyID int64) string {
	return fmt.Sprintf("round_robin:%d", companyID)
}


func validatePatch(base *domain.DistributionSettings, patch repository.SettingsPatch) error {
	strategy := base.Strategy
	if patch.Strategy.Set {
		if !patch.Strategy.Value.Valid() {
			return apperrors.NewInvalidArgument("unknown strategy", map[string]any{
				"strategy": patch.Strategy.Value,
				"allowed":  domain.Strategies,
			})
		}
		strategy = patch.Strategy.Value
	}
	params := base.Parameters
	if patch.Parameters.Set {
		params = patch.Parameters.Value
	}
	if patch.Strategy.Set || patch.Parameters.Set {
		if err := params.Validate(strategy); err != nil {
			return apperrors.NewInvalidArgument("invalid strategy parameters", map[string]any{"reason": err.Error()})
		}
	}
	if patch.RoundRobinOrder.Set {
		for _, id := range patch.RoundRobinOrder.Value {
			if id <= 0 {
				return apperrors.NewInvalidArgument("round_robin_order must contain positive staff ids", nil)
			}
		}
	}
	if patch.LastAssignedTo.Set && patch.LastAssignedTo.Value != nil && *patch.LastAssignedTo.Value <= 0 {
		return apperrors.NewInvalidArgument("last_assigned_to must be a positive staff id", nil)
	}
	return nil
}
