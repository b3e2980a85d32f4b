package allocation

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/lead-distribution/internal/domain"
	"github.com/spec-kit/lead-distribution/internal/repository"
)

// Sequencer owns the durable round robin cursor of each company: the stored
// rotation order plus the last staff member that actually received a lead.
type Sequencer struct {
	settings      repository.SettingsRepository
	staff         repository.StaffRepository
	reseedOnDrift bool
	logger        *zap.Logger
}

// SequencerOptions tunes the Sequencer.
type SequencerOptions struct {
	// ReseedOnDrift clears the stored order when its next slot points at a
	// staff member who is no longer active, so the following call reseeds.
	ReseedOnDrift bool
	Logger        *zap.Logger
}

// NewSequencer builds a Sequencer.
func NewSequencer(settings repository.SettingsRepository, staff repository.StaffRepository, opts SequencerOptions) *Sequencer {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sequencer{
		settings:      settings,
		staff:         staff,
		reseedOnDrift: opts.ReseedOnDrift,
		logger:        logger,
	}
}

// Next returns the staff member whose turn it is, or nil when nobody is
// eligible for this call. It never advances the cursor; call UpdateLastAssigned
// once a lead has actually been bound.
func (s *Sequencer) Next(ctx context.Context, companyID int64) (*domain.StaffMember, error) {
	active, err := s.staff.ListActive(ctx, companyID)
	if err != nil {
		return nil, err
	}

	settings, err := s.settings.Get(ctx, companyID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	if settings == nil || len(settings.RoundRobinOrder) == 0 {
		if len(active) == 0 {
			return nil, nil
		}
		if err := s.seed(ctx, companyID, settings, active); err != nil {
			return nil, err
		}
		first := active[0]
		return &first, nil
	}

	order := settings.RoundRobinOrder
	index := -1
	if settings.LastAssignedTo != nil {
		for i, id := range order {
			if id == *settings.LastAssignedTo {
				index = i
				break
			}
		}
	}
	nextID := order[(index+1)%len(order)]

	for i := range active {
		if active[i].ID == nextID {
			member := active[i]
			return &member, nil
		}
	}

	s.logger.Warn("round robin slot points at inactive staff",
		zap.Int64("tenant_id", companyID),
		zap.Int64("staff_id", nextID),
		zap.Bool("reseed", s.reseedOnDrift))
	if s.reseedOnDrift {
		if err := s.Reset(ctx, companyID); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// UpdateLastAssigned advances the cursor to staffID.
func (s *Sequencer) UpdateLastAssigned(ctx context.Context, companyID, staffID int64) error {
	_, err := s.settings.Update(ctx, companyID, repository.SettingsPatch{
		LastAssignedTo: repository.Some(&staffID),
	})
	return err
}

// Reset clears the stored order and cursor; the next call reseeds from the active roster.
func (s *Sequencer) Reset(ctx context.Context, companyID int64) error {
	_, err := s.settings.Update(ctx, companyID, repository.SettingsPatch{
		RoundRobinOrder: repository.Some[[]int64](nil),
		LastAssignedTo:  repository.Some[*int64](nil),
	})
	return err
}

func (s *Sequencer) seed(ctx context.Context, companyID int64, existing *domain.DistributionSettings, active []domain.StaffMember) error {
	order := make([]int64, 0, len(active))
	for _, member := range active {
		order = append(order, member.ID)
	}

	if existing == nil {
		initial := domain.DefaultSettings(companyID)
		initial.RoundRobinOrder = order
		created, err := s.settings.Create(ctx, initial)
		if err != nil {
			return err
		}
		if len(created.RoundRobinOrder) > 0 {
			return nil
		}
	}

	_, err := s.settings.Update(ctx, companyID, repository.SettingsPatch{
		RoundRobinOrder: repository.Some(order),
		LastAssignedTo:  repository.Some[*int64](nil),
	})
	if err == nil {
		s.logger.Info("round robin order seeded",
			zap.Int64("tenant_id", companyID),
			zap.Int("staff", len(order)))
	}
	return err
}
