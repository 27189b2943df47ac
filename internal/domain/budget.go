package domain

import "time"

// OrganizationBudget (organization_budgets); unique per (organization_id, fiscal_year).
// RemainingBalance = TotalAllocation - cumulative expenses, maintained only inside SQL/transactions.
type OrganizationBudget struct {
	ID               string    `json:"id" db:"id"`
	OrganizationID   string    `json:"organization_id" db:"organization_id"`
	FiscalYear       int       `json:"fiscal_year" db:"fiscal_year"`
	TotalAllocation  int64     `json:"total_allocation" db:"total_allocation"`
	RemainingBalance int64     `json:"remaining_balance" db:"remaining_balance"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// Spent is what expenses have consumed so far
func (b OrganizationBudget) Spent() int64 { return b.TotalAllocation - b.RemainingBalance }

// BudgetExpense (budget_expenses)
type BudgetExpense struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	FiscalYear     int       `json:"fiscal_year" db:"fiscal_year"`
	Amount         int64     `json:"amount" db:"amount"`
	Description    string    `json:"description" db:"description"`
	Category       string    `json:"category" db:"category"`
	ExpenseDate    time.Time `json:"expense_date" db:"expense_date"`
	RecordedBy     *string   `json:"recorded_by,omitempty" db:"recorded_by"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

type BudgetRequestStatus string

const (
	RequestPending  BudgetRequestStatus = "pending"
	RequestApproved BudgetRequestStatus = "approved"
	RequestRejected BudgetRequestStatus = "rejected"
)

// BudgetRequest ask for additional regional funds (budget_requests)
type BudgetRequest struct {
	ID              string              `json:"id" db:"id"`
	OrganizationID  string              `json:"organization_id" db:"organization_id"`
	RegionID        string              `json:"region_id" db:"region_id"`
	FiscalYear      int                 `json:"fiscal_year" db:"fiscal_year"`
	RequestedAmount int64               `json:"requested_amount" db:"requested_amount"`
	Reason          string              `json:"reason" db:"reason"`
	Status          BudgetRequestStatus `json:"status" db:"status"`
	RequestDate     time.Time           `json:"request_date" db:"request_date"`
	ProcessedBy     *string             `json:"processed_by,omitempty" db:"processed_by"`
	ProcessedDate   *time.Time          `json:"processed_date,omitempty" db:"processed_date"`
	Notes           *string             `json:"notes,omitempty" db:"notes"`
}

// BudgetRequestFilter list filter
type BudgetRequestFilter struct {
	OrganizationID string
	RegionID       string
	Status         BudgetRequestStatus
}

// ProcessOutcome what ProcessBudgetRequest changed.
// Notified lists the notifications written in the same transaction.
type ProcessOutcome struct {
	Request      *BudgetRequest  `json:"request"`
	RegionBudget *RegionBudget   `json:"region_budget,omitempty"`
	Notified     []*Notification `json:"-"`
	Changed      bool            `json:"changed"`
}
