package repository

import (
	"context"
	"database/sql"

	"agrikonek/internal/domain"
)

// PostgresReportsRepository SQL aggregates backing the dashboards
type PostgresReportsRepository struct {
	db *sql.DB
}

func NewPostgresReportsRepository(db *sql.DB) *PostgresReportsRepository {
	return &PostgresReportsRepository{db: db}
}

var _ ReportsRepository = (*PostgresReportsRepository)(nil)

func (r *PostgresReportsRepository) RegionalMetrics(ctx context.Context, fiscalYear int) ([]domain.RegionalMetric, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT rg.id::text, rg.name,
		       (SELECT COUNT(*) FROM organizations o WHERE o.region_id = rg.id),
		       (SELECT COUNT(*) FROM organization_members m JOIN organizations o ON o.id = m.organization_id
		         WHERE o.region_id = rg.id AND m.status = 'active'),
		       COALESCE((SELECT amount FROM region_budgets rb WHERE rb.region_id = rg.id AND rb.fiscal_year = $1), 0),
		       COALESCE((SELECT SUM(b.total_allocation) FROM organization_budgets b JOIN organizations o ON o.id = b.organization_id
		         WHERE o.region_id = rg.id AND b.fiscal_year = $1), 0),
		       COALESCE((SELECT SUM(b.total_allocation - b.remaining_balance) FROM organization_budgets b JOIN organizations o ON o.id = b.organization_id
		         WHERE o.region_id = rg.id AND b.fiscal_year = $1), 0),
		       (SELECT COUNT(*) FROM budget_requests br WHERE br.region_id = rg.id AND br.status = 'pending')
		FROM regions rg
		ORDER BY rg.code
	`, fiscalYear)
	if err != nil {
		return nil, classify("regional metrics", err)
	}
	defer rows.Close()

	out := []domain.RegionalMetric{}
	for rows.Next() {
		var m domain.RegionalMetric
		if err := rows.Scan(&m.RegionID, &m.RegionName, &m.Organizations, &m.ActiveMembers, &m.BudgetAmount,
			&m.AllocatedToOrgs, &m.UtilizedByOrgs, &m.PendingRequests); err != nil {
			return nil, classify("scan regional metric", err)
		}
		m.UtilizationPermil = permil(m.UtilizedByOrgs, m.AllocatedToOrgs)
		out = append(out, m)
	}
	return out, classify("regional metrics", rows.Err())
}

func (r *PostgresReportsRepository) BudgetUtilizationByMonth(ctx context.Context, fiscalYear int) ([]domain.MonthlyUtilization, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT EXTRACT(MONTH FROM expense_date)::int AS month, SUM(amount), COUNT(*)
		FROM budget_expenses
		WHERE fiscal_year = $1
		GROUP BY month
		ORDER BY month
	`, fiscalYear)
	if err != nil {
		return nil, classify("budget utilization by month", err)
	}
	defer rows.Close()

	out := []domain.MonthlyUtilization{}
	for rows.Next() {
		var m domain.MonthlyUtilization
		if err := rows.Scan(&m.Month, &m.Amount, &m.Count); err != nil {
			return nil, classify("scan monthly utilization", err)
		}
		out = append(out, m)
	}
	return out, classify("budget utilization by month", rows.Err())
}

func (r *PostgresReportsRepository) CategoryDistribution(ctx context.Context, fiscalYear int) ([]domain.CategoryShare, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT category, SUM(amount), COUNT(*)
		FROM budget_expenses
		WHERE fiscal_year = $1
		GROUP BY category
		ORDER BY SUM(amount) DESC, category
	`, fiscalYear)
	if err != nil {
		return nil, classify("category distribution", err)
	}
	defer rows.Close()

	out := []domain.CategoryShare{}
	for rows.Next() {
		var c domain.CategoryShare
		if err := rows.Scan(&c.Category, &c.Amount, &c.Count); err != nil {
			return nil, classify("scan category share", err)
		}
		out = append(out, c)
	}
	return out, classify("category distribution", rows.Err())
}

func (r *PostgresReportsRepository) ApprovalRates(ctx context.Context, fiscalYear int) (domain.ApprovalRates, error) {
	var a domain.ApprovalRates
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'approved'),
			COUNT(*) FILTER (WHERE status = 'rejected'),
			COUNT(*) FILTER (WHERE status = 'pending'),
			(SELECT COUNT(*) FROM organization_members WHERE status = 'active' AND EXTRACT(YEAR FROM created_at) = $1),
			(SELECT COUNT(*) FROM organization_members WHERE status = 'rejected' AND EXTRACT(YEAR FROM created_at) = $1),
			(SELECT COUNT(*) FROM organization_members WHERE status = 'pending' AND EXTRACT(YEAR FROM created_at) = $1)
		FROM budget_requests
		WHERE fiscal_year = $1
	`, fiscalYear).Scan(&a.RequestsApproved, &a.RequestsRejected, &a.RequestsPending,
		&a.ApplicationsActive, &a.ApplicationsRejected, &a.ApplicationsPending)
	return a, classify("approval rates", err)
}

func (r *PostgresReportsRepository) RegionalBudgetReport(ctx context.Context, fiscalYear int, regionID string) ([]domain.RegionalBudgetLine, error) {
	query := `
		SELECT rg.id::text, rg.name, o.id::text, o.name,
		       COALESCE(b.total_allocation, 0), COALESCE(b.remaining_balance, 0)
		FROM organizations o
		JOIN regions rg ON rg.id = o.region_id
		LEFT JOIN organization_budgets b ON b.organization_id = o.id AND b.fiscal_year = $1`
	args := []any{fiscalYear}
	if regionID != "" {
		query += ` WHERE o.region_id = $2`
		args = append(args, regionID)
	}
	query += ` ORDER BY rg.code, o.name`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("regional budget report", err)
	}
	defer rows.Close()

	out := []domain.RegionalBudgetLine{}
	for rows.Next() {
		var l domain.RegionalBudgetLine
		if err := rows.Scan(&l.RegionID, &l.RegionName, &l.OrganizationID, &l.OrganizationName,
			&l.TotalAllocation, &l.RemainingBalance); err != nil {
			return nil, classify("scan regional budget line", err)
		}
		l.Spent = l.TotalAllocation - l.RemainingBalance
		out = append(out, l)
	}
	return out, classify("regional budget report", rows.Err())
}

// permil part/whole in thousandths, integer only
func permil(part, whole int64) int {
	if whole <= 0 {
		return 0
	}
	return int(part * 1000 / whole)
}
