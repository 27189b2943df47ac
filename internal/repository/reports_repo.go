package repository

import (
	"context"

	"agrikonek/internal/domain"
)

// ReportsRepository read-only aggregates for one fiscal year
type ReportsRepository interface {
	RegionalMetrics(ctx context.Context, fiscalYear int) ([]domain.RegionalMetric, error)
	BudgetUtilizationByMonth(ctx context.Context, fiscalYear int) ([]domain.MonthlyUtilization, error)
	CategoryDistribution(ctx context.Context, fiscalYear int) ([]domain.CategoryShare, error)
	ApprovalRates(ctx context.Context, fiscalYear int) (domain.ApprovalRates, error)
	RegionalBudgetReport(ctx context.Context, fiscalYear int, regionID string) ([]domain.RegionalBudgetLine, error)
}
