package domain

// RegionalMetric one row of the regional metrics report
type RegionalMetric struct {
	RegionID          string `json:"region_id"`
	RegionName        string `json:"region_name"`
	Organizations     int    `json:"organizations"`
	ActiveMembers     int    `json:"active_members"`
	BudgetAmount      int64  `json:"budget_amount"`
	AllocatedToOrgs   int64  `json:"allocated_to_orgs"`
	UtilizedByOrgs    int64  `json:"utilized_by_orgs"`
	PendingRequests   int    `json:"pending_requests"`
	UtilizationPermil int    `json:"utilization_permil"` // utilized / allocated in 1/1000
}

// MonthlyUtilization expenses summed per calendar month
type MonthlyUtilization struct {
	Month  int   `json:"month"` // 1-12
	Amount int64 `json:"amount"`
	Count  int   `json:"count"`
}

// CategoryShare expenses summed per category
type CategoryShare struct {
	Category string `json:"category"`
	Amount   int64  `json:"amount"`
	Count    int    `json:"count"`
}

// ApprovalRates budget request and membership decision counts
type ApprovalRates struct {
	RequestsApproved     int `json:"requests_approved"`
	RequestsRejected     int `json:"requests_rejected"`
	RequestsPending      int `json:"requests_pending"`
	ApplicationsActive   int `json:"applications_active"`
	ApplicationsRejected int `json:"applications_rejected"`
	ApplicationsPending  int `json:"applications_pending"`
}

// RegionalBudgetLine one organization inside the regional budget report
type RegionalBudgetLine struct {
	RegionID         string `json:"region_id"`
	RegionName       string `json:"region_name"`
	OrganizationID   string `json:"organization_id"`
	OrganizationName string `json:"organization_name"`
	TotalAllocation  int64  `json:"total_allocation"`
	RemainingBalance int64  `json:"remaining_balance"`
	Spent            int64  `json:"spent"`
}

// Dashboard aggregate of every report for one fiscal year
type Dashboard struct {
	FiscalYear   int                  `json:"fiscal_year"`
	Regions      []RegionalMetric     `json:"regions"`
	Monthly      []MonthlyUtilization `json:"monthly"`
	Categories   []CategoryShare      `json:"categories"`
	Approvals    ApprovalRates        `json:"approvals"`
	AnnualBudget *AnnualBudget        `json:"annual_budget,omitempty"`
}
