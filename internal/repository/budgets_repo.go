package repository

import (
	"context"
	"time"

	"agrikonek/internal/domain"
)

// RequestDecision input of ProcessBudgetRequest
type RequestDecision struct {
	RequestID  string
	Status     domain.BudgetRequestStatus // approved or rejected
	Notes      *string
	ApproverID string
	At         time.Time
	// Notice builds the budget notification for every profile mapped to the region (approve only)
	Notice func(req *domain.BudgetRequest) NoticeFunc
}

// BudgetsRepository annual, regional and organizational budgets plus the request workflow.
// All balance arithmetic happens in SQL inside a transaction.
type BudgetsRepository interface {
	// ========== annual / region ==========
	GetAnnualBudget(ctx context.Context, fiscalYear int) (*domain.AnnualBudget, error)
	// SetAnnualBudget fails with ErrInsufficientFunds when total is below the year's region budgets
	SetAnnualBudget(ctx context.Context, fiscalYear int, total int64) (*domain.AnnualBudget, error)
	GetRegionBudget(ctx context.Context, regionID string, fiscalYear int) (*domain.RegionBudget, error)
	ListRegionBudgets(ctx context.Context, fiscalYear int) ([]*domain.RegionBudget, error)
	// SetRegionBudget upserts (region_id, fiscal_year)
	SetRegionBudget(ctx context.Context, regionID string, fiscalYear int, amount int64) (*domain.RegionBudget, error)

	// ========== organization ==========
	GetOrganizationBudget(ctx context.Context, orgID string, fiscalYear int) (*domain.OrganizationBudget, error)
	// AllocateOrganizationBudget upserts (organization_id, fiscal_year), keeping what is already spent
	AllocateOrganizationBudget(ctx context.Context, orgID string, fiscalYear int, total int64) (*domain.OrganizationBudget, error)
	// RecordExpense decrements remaining_balance conditionally; ErrInsufficientFunds when it would go negative
	RecordExpense(ctx context.Context, expense *domain.BudgetExpense) (*domain.OrganizationBudget, error)
	ListExpenses(ctx context.Context, orgID string, fiscalYear int) ([]*domain.BudgetExpense, error)

	// ========== requests ==========
	CreateBudgetRequest(ctx context.Context, req *domain.BudgetRequest) error
	GetBudgetRequest(ctx context.Context, requestID string) (*domain.BudgetRequest, error)
	ListBudgetRequests(ctx context.Context, filter domain.BudgetRequestFilter) ([]*domain.BudgetRequest, error)
	ProcessBudgetRequest(ctx context.Context, decision RequestDecision) (*domain.ProcessOutcome, error)
}
