// internal/repository/postgres/plan_repo.go
package postgres

import (
	"context"
	"fmt"

	"subgate-service/internal/domain/plan"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const planColumns = `
	id, code, title, description, price_rub, duration_days, is_active,
	created_at, updated_at`

// PlanRepository reads plan reference data. Plans are read-only from the
// lifecycle core's perspective.
type PlanRepository struct {
	db *pgxpool.Pool
}

func NewPlanRepository(db *pgxpool.Pool) *PlanRepository {
	return &PlanRepository{db: db}
}

func scanPlan(row pgx.Row, p *plan.Plan) error {
	return row.Scan(
		&p.ID, &p.Code, &p.Title, &p.Description, &p.PriceRub,
		&p.DurationDays, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
}

func (r *PlanRepository) FindByCode(ctx context.Context, code string) (*plan.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE code = $1`

	var p plan.Plan
	if err := scanPlan(r.db.QueryRow(ctx, query, code), &p); err != nil {
		return nil, translateError(err)
	}
	return &p, nil
}

func (r *PlanRepository) ListActive(ctx context.Context) ([]plan.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE is_active ORDER BY price_rub ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	plans := []plan.Plan{}
	for rows.Next() {
		var p plan.Plan
		if err := scanPlan(rows, &p); err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}
