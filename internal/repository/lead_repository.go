package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/lead-distribution/internal/domain"
)

// LeadRepository reads the pool of leads awaiting an owner.
type LeadRepository interface {
	// ListUnassigned returns leads with no owner, oldest first. limit <= 0 returns all.
	ListUnassigned(ctx context.Context, companyID int64, limit int) ([]domain.Lead, error)
}

type leadRepository struct {
	pool *pgxpool.Pool
}

// NewLeadRepository instantiates repository.
func NewLeadRepository(pool *pgxpool.Pool) LeadRepository {
	return &leadRepository{pool: pool}
}

const leadColumns = `id, company_id, name, email, phone, source, status, assigned_to, assigned_by,
                    assigned_at, created_at, updated_at`

func (r *leadRepository) ListUnassigned(ctx context.Context, companyID int64, limit int) ([]domain.Lead, error) {
	query := `SELECT ` + leadColumns + `
             FROM leads
             WHERE company_id=$1 AND assigned_to IS NULL
             ORDER BY created_at ASC, id ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := r.pool.Query(ctx, query, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLeads(rows)
}

func scanLeads(rows pgx.Rows) ([]domain.Lead, error) {
	result := []domain.Lead{}
	for rows.Next() {
		var lead domain.Lead
		if err := rows.Scan(
			&lead.ID,
			&lead.CompanyID,
			&lead.Name,
			&lead.Email,
			&lead.Phone,
			&lead.Source,
			&lead.Status,
			&lead.AssignedTo,
			&lead.AssignedBy,
			&lead.AssignedAt,
			&lead.CreatedAt,
			&lead.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, lead)
	}
	return result, rows.Err()
}
