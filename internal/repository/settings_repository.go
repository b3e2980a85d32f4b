package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/lead-distribution/internal/domain"
	apperrors "github.com/spec-kit/lead-distribution/pkg/errorutil"
)

// Field marks a patch value as present. A present field may carry a zero or nil value.
type Field[T any] struct {
	Set   bool
	Value T
}

// Some returns a present field.
func Some[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: v}
}

// SettingsPatch holds the allow-listed settings columns that may change.
type SettingsPatch struct {
	Strategy        Field[domain.Strategy]
	IsActive        Field[bool]
	Parameters      Field[domain.StrategyParameters]
	RoundRobinOrder Field[[]int64]
	LastAssignedTo  Field[*int64]
}

// Empty reports whether no field is set.
func (p SettingsPatch) Empty() bool {
	return !p.Strategy.Set && !p.IsActive.Set && !p.Parameters.Set &&
		!p.RoundRobinOrder.Set && !p.LastAssignedTo.Set
}

// SettingsRepository persists per-company distribution settings.
type SettingsRepository interface {
	// Get returns pgx.ErrNoRows when the company has no settings row.
	Get(ctx context.Context, companyID int64) (*domain.DistributionSettings, error)
	// Create inserts the row unless one already exists, then returns the stored row.
	Create(ctx context.Context, settings *domain.DistributionSettings) (*domain.DistributionSettings, error)
	Update(ctx context.Context, companyID int64, patch SettingsPatch) (*domain.DistributionSettings, error)
}

type settingsRepository struct {
	pool *pgxpool.Pool
}

// NewSettingsRepository instantiates the repository.
func NewSettingsRepository(pool *pgxpool.Pool) SettingsRepository {
	return &settingsRepository{pool: pool}
}

const settingsColumns = `company_id, strategy, is_active, parameters, round_robin_order, last_assigned_to,
               version, created_at, updated_at`

func (r *settingsRepository) Get(ctx context.Context, companyID int64) (*domain.DistributionSettings, error) {
	query := `SELECT ` + settingsColumns + ` FROM distribution_settings WHERE company_id=$1`
	return scanSettings(r.pool.QueryRow(ctx, query, companyID))
}

func (r *settingsRepository) Create(ctx context.Context, settings *domain.DistributionSettings) (*domain.DistributionSettings, error) {
	const query = `
        INSERT INTO distribution_settings (company_id, strategy, is_active, parameters, round_robin_order, last_assigned_to)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (company_id) DO NOTHING`
	if _, err := r.pool.Exec(ctx, query,
		settings.CompanyID,
		settings.Strategy,
		settings.IsActive,
		settings.Parameters,
		settings.RoundRobinOrder,
		settings.LastAssignedTo,
	); err != nil {
		return nil, err
	}
	return r.Get(ctx, settings.CompanyID)
}

func (r *settingsRepository) Update(ctx context.Context, companyID int64, patch SettingsPatch) (*domain.DistributionSettings, error) {
	if patch.Empty() {
		return nil, apperrors.NewInvalidArgument("no settings fields to update", nil)
	}

	args := []any{}
	sets := []string{}
	if patch.Strategy.Set {
		args = append(args, patch.Strategy.Value)
		sets = append(sets, fmt.Sprintf("strategy=$%d", len(args)))
	}
	if patch.IsActive.Set {
		args = append(args, patch.IsActive.Value)
		sets = append(sets, fmt.Sprintf("is_active=$%d", len(args)))
	}
	if patch.Parameters.Set {
		args = append(args, patch.Parameters.Value)
		sets = append(sets, fmt.Sprintf("parameters=$%d", len(args)))
	}
	if patch.RoundRobinOrder.Set {
		args = append(args, patch.RoundRobinOrder.Value)
		sets = append(sets, fmt.Sprintf("round_robin_order=$%d", len(args)))
	}
	if patch.LastAssignedTo.Set {
		args = append(args, patch.LastAssignedTo.Value)
		sets = append(sets, fmt.Sprintf("last_assigned_to=$%d", len(args)))
	}
	sets = append(sets, "version=version+1", "updated_at=NOW()")
	args = append(args, companyID)

	query := fmt.Sprintf(`UPDATE distribution_settings SET %s WHERE company_id=$%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), settingsColumns)
	return scanSettings(r.pool.QueryRow(ctx, query, args...))
}

func scanSettings(row pgx.Row) (*domain.DistributionSettings, error) {
	var settings domain.DistributionSettings
	if err := row.Scan(
		&settings.CompanyID,
		&settings.Strategy,
		&settings.IsActive,
		&settings.Parameters,
		&settings.RoundRobinOrder,
		&settings.LastAssignedTo,
		&settings.Version,
		&settings.CreatedAt,
		&settings.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &settings, nil
}
