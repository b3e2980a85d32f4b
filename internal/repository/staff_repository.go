package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/lead-distribution/internal/domain"
)

// StaffRepository exposes the active roster of a company in the views the
// allocation strategies need. Every view is filtered to active staff.
type StaffRepository interface {
	// ListActive orders by id; the round robin rotation is seeded from it.
	ListActive(ctx context.Context, companyID int64) ([]domain.StaffMember, error)
	// ListByWorkload orders by open leads, then leads assigned since periodStart, then id.
	ListByWorkload(ctx context.Context, companyID int64, periodStart time.Time) ([]domain.StaffWorkload, error)
	// ListByPerformance orders by score and conversion rate, descending, missing values last.
	ListByPerformance(ctx context.Context, companyID int64) ([]domain.StaffPerformance, error)
}

type staffRepository struct {
	pool *pgxpool.Pool
}

// NewStaffRepository instantiates the repository.
func NewStaffRepository(pool *pgxpool.Pool) StaffRepository {
	return &staffRepository{pool: pool}
}

func (r *staffRepository) ListActive(ctx context.Context, companyID int64) ([]domain.StaffMember, error) {
	const query = `
        SELECT id, company_id, name, email, role, status, created_at, updated_at
        FROM staff_members
        WHERE company_id=$1 AND status='active'
        ORDER BY id ASC`

	rows, err := r.pool.Query(ctx, query, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.StaffMember{}
	for rows.Next() {
		var staff domain.StaffMember
		if err := rows.Scan(
			&staff.ID,
			&staff.CompanyID,
			&staff.Name,
			&staff.Email,
			&staff.Role,
			&staff.Status,
			&staff.CreatedAt,
			&staff.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, staff)
	}
	return result, rows.Err()
}

func (r *staffRepository) ListByWorkload(ctx context.Context, companyID int64, periodStart time.Time) ([]domain.StaffWorkload, error) {
	const query = `
        SELECT s.id, s.company_id, s.name, s.email, s.role, s.status, s.created_at, s.updated_at,
               COUNT(l.id) FILTER (WHERE l.status NOT IN ('won','lost')) AS open_lead_count,
               COUNT(l.id) FILTER (WHERE l.assigned_at >= $2) AS assigned_this_period
        FROM staff_members s
        LEFT JOIN leads l ON l.assigned_to = s.id AND l.company_id = s.company_id
        WHERE s.company_id=$1 AND s.status='active'
        GROUP BY s.id
        ORDER BY open_lead_count ASC, assigned_this_period ASC, s.id ASC`

	rows, err := r.pool.Query(ctx, query, companyID, periodStart)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.StaffWorkload{}
	for rows.Next() {
		var item domain.StaffWorkload
		if err := rows.Scan(
			&item.ID,
			&item.CompanyID,
			&item.Name,
			&item.Email,
			&item.Role,
			&item.Status,
			&item.CreatedAt,
			&item.UpdatedAt,
			&item.OpenLeadCount,
			&item.AssignedThisPeriod,
		); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

func (r *staffRepository) ListByPerformance(ctx context.Context, companyID int64) ([]domain.StaffPerformance, error) {
	const query = `
        SELECT s.id, s.company_id, s.name, s.email, s.role, s.status, s.created_at, s.updated_at,
               p.performance_score, p.conversion_rate
        FROM staff_members s
        LEFT JOIN LATERAL (
            SELECT sp.performance_score, sp.conversion_rate
            FROM staff_performance sp
            WHERE sp.company_id = s.company_id AND sp.staff_id = s.id
            ORDER BY sp.computed_at DESC
            LIMIT 1
        ) p ON TRUE
        WHERE s.company_id=$1 AND s.status='active'
        ORDER BY p.performance_score DESC NULLS LAST, p.conversion_rate DESC NULLS LAST, s.id ASC`

	rows, err := r.pool.Query(ctx, query, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.StaffPerformance{}
	for rows.Next() {
		var item domain.StaffPerformance
		if err := rows.Scan(
			&item.ID,
			&item.CompanyID,
			&item.Name,
			&item.Email,
			&item.Role,
			&item.Status,
			&item.CreatedAt,
			&item.UpdatedAt,
			&item.PerformanceScore,
			&item.ConversionRate,
		); err != nil {
			return nil, err
		}
		item.Rank = len(result) + 1
		result = append(result, item)
	}
	return result, rows.Err()
}
