package repository

import (
	"context"
	"fmt"
	"sort"

	"agrikonek/internal/domain"
)

// MemoryBudgetsRepo budget ledger when DB is disabled
type MemoryBudgetsRepo struct {
	db *MemoryDB
}

func NewMemoryBudgetsRepo(db *MemoryDB) *MemoryBudgetsRepo {
	return &MemoryBudgetsRepo{db: db}
}

var _ BudgetsRepository = (*MemoryBudgetsRepo)(nil)

func (r *MemoryBudgetsRepo) GetAnnualBudget(_ context.Context, fiscalYear int) (*domain.AnnualBudget, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	b, ok := r.db.annual[fiscalYear]
	if !ok {
		return nil, notFound("get annual budget")
	}
	cp := *b
	return &cp, nil
}

func (m *MemoryDB) regionTotalLocked(fiscalYear int, exceptRegion string) int64 {
	var sum int64
	for _, b := range m.regionBudgets {
		if b.FiscalYear == fiscalYear && b.RegionID != exceptRegion {
			sum += b.Amount
		}
	}
	return sum
}

func (m *MemoryDB) orgAllocationsLocked(regionID string, fiscalYear int, exceptOrg string) int64 {
	var sum int64
	for _, b := range m.orgBudgets {
		o, ok := m.orgs[b.OrganizationID]
		if !ok || o.RegionID != regionID || b.FiscalYear != fiscalYear || b.OrganizationID == exceptOrg {
			continue
		}
		sum += b.TotalAllocation
	}
	return sum
}

func (r *MemoryBudgetsRepo) SetAnnualBudget(_ context.Context, fiscalYear int, total int64) (*domain.AnnualBudget, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if distributed := r.db.regionTotalLocked(fiscalYear, ""); total < distributed {
		return nil, fmt.Errorf("set annual budget: total %d below %d already given to regions: %w",
			total, distributed, domain.ErrInsufficientFunds)
	}
	b, ok := r.db.annual[fiscalYear]
	if !ok {
		b = &domain.AnnualBudget{ID: newID(), FiscalYear: fiscalYear}
		r.db.annual[fiscalYear] = b
	}
	b.TotalAmount = total
	b.UpdatedAt = r.db.now()
	cp := *b
	return &cp, nil
}

func (r *MemoryBudgetsRepo) GetRegionBudget(_ context.Context, regionID string, fiscalYear int) (*domain.RegionBudget, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	b, ok := r.db.regionBudgets[yearKey(regionID, fiscalYear)]
	if !ok {
		return nil, notFound("get region budget")
	}
	cp := *b
	return &cp, nil
}

func (r *MemoryBudgetsRepo) ListRegionBudgets(_ context.Context, fiscalYear int) ([]*domain.RegionBudget, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := []*domain.RegionBudget{}
	for _, b := range r.db.regionBudgets {
		if b.FiscalYear == fiscalYear {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegionID < out[j].RegionID })
	return out, nil
}

// upsertRegionBudgetLocked adds delta (or sets amount when add is false)
func (m *MemoryDB) upsertRegionBudgetLocked(regionID string, fiscalYear int, amount int64, add bool) *domain.RegionBudget {
	key := yearKey(regionID, fiscalYear)
	b, ok := m.regionBudgets[key]
	if !ok {
		b = &domain.RegionBudget{ID: newID(), RegionID: regionID, FiscalYear: fiscalYear}
		m.regionBudgets[key] = b
	}
	if add {
		b.Amount += amount
	} else {
		b.Amount = amount
	}
	b.Allocated = true
	b.UpdatedAt = m.now()
	cp := *b
	return &cp
}

func (r *MemoryBudgetsRepo) SetRegionBudget(_ context.Context, regionID string, fiscalYear int, amount int64) (*domain.RegionBudget, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	m := r.db

	if _, ok := m.regions[regionID]; !ok {
		return nil, constraint("set region budget", "unknown region %q", regionID)
	}
	if amount < 0 {
		return nil, constraint("set region budget", "negative amount")
	}
	if annual, ok := m.annual[fiscalYear]; ok {
		others := m.regionTotalLocked(fiscalYear, regionID)
		if others+amount > annual.TotalAmount {
			return nil, fmt.Errorf("set region budget: %d exceeds annual remainder %d: %w",
				amount, annual.TotalAmount-others, domain.ErrInsufficientFunds)
		}
	}
	if toOrgs := m.orgAllocationsLocked(regionID, fiscalYear, ""); amount < toOrgs {
		return nil, fmt.Errorf("set region budget: %d below %d allocated to organizations: %w",
			amount, toOrgs, domain.ErrInsufficientFunds)
	}
	return m.upsertRegionBudgetLocked(regionID, fiscalYear, amount, false), nil
}

func (r *MemoryBudgetsRepo) GetOrganizationBudget(_ context.Context, orgID string, fiscalYear int) (*domain.OrganizationBudget, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	b, ok := r.db.orgBudgets[yearKey(orgID, fiscalYear)]
	if !ok {
		return nil, notFound("get organization budget")
	}
	cp := *b
	return &cp, nil
}

func (r *MemoryBudgetsRepo) AllocateOrganizationBudget(_ context.Context, orgID string, fiscalYear int, total int64) (*domain.OrganizationBudget, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	m := r.db

	org, ok := m.orgs[orgID]
	if !ok {
		return nil, notFound("allocate organization budget: organization")
	}
	key := yearKey(orgID, fiscalYear)
	current := m.orgBudgets[key]
	var spent int64
	if current != nil {
		spent = current.Spent()
	}
	if total < spent {
		return nil, fmt.Errorf("allocate organization budget: total %d below %d already spent: %w",
			total, spent, domain.ErrInsufficientFunds)
	}
	region, ok := m.regionBudgets[yearKey(org.RegionID, fiscalYear)]
	if !ok {
		return nil, notFound("allocate organization budget: region budget")
	}
	if others := m.orgAllocationsLocked(org.RegionID, fiscalYear, orgID); others+total > region.Amount {
		return nil, fmt.Errorf("allocate organization budget: %d exceeds region remainder %d: %w",
			total, region.Amount-others, domain.ErrInsufficientFunds)
	}

	if current == nil {
		current = &domain.OrganizationBudget{ID: newID(), OrganizationID: orgID, FiscalYear: fiscalYear}
		m.orgBudgets[key] = current
	}
	current.TotalAllocation = total
	current.RemainingBalance = total - spent
	current.UpdatedAt = m.now()

	var allocated int64
	for _, b := range m.orgBudgets {
		if b.OrganizationID == orgID {
			allocated += b.TotalAllocation
		}
	}
	org.AllocatedBudget = allocated
	org.UpdatedAt = current.UpdatedAt

	cp := *current
	return &cp, nil
}

func (r *MemoryBudgetsRepo) RecordExpense(_ context.Context, e *domain.BudgetExpense) (*domain.OrganizationBudget, error) {
	if e.Amount <= 0 {
		return nil, fmt.Errorf("record expense: amount must be positive: %w", domain.ErrInvalidArgument)
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	m := r.db

	b, ok := m.orgBudgets[yearKey(e.OrganizationID, e.FiscalYear)]
	if !ok {
		return nil, fmt.Errorf("record expense: no budget for fiscal year %d: %w", e.FiscalYear, domain.ErrNotFound)
	}
	if b.RemainingBalance < e.Amount {
		return nil, fmt.Errorf("record expense: amount %d: %w", e.Amount, domain.ErrInsufficientFunds)
	}
	now := m.now()
	b.RemainingBalance -= e.Amount
	b.UpdatedAt = now

	if e.Category == "" {
		e.Category = "general"
	}
	e.ID = newID()
	e.CreatedAt = now
	row := *e
	m.expenses = append(m.expenses, &row)
	if org, ok := m.orgs[e.OrganizationID]; ok {
		org.UtilizedBudget += e.Amount
		org.UpdatedAt = now
	}
	cp := *b
	return &cp, nil
}

func (r *MemoryBudgetsRepo) ListExpenses(_ context.Context, orgID string, fiscalYear int) ([]*domain.BudgetExpense, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := []*domain.BudgetExpense{}
	for _, e := range r.db.expenses {
		if e.OrganizationID == orgID && e.FiscalYear == fiscalYear {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ExpenseDate.After(out[j].ExpenseDate) })
	return out, nil
}

func (r *MemoryBudgetsRepo) CreateBudgetRequest(_ context.Context, req *domain.BudgetRequest) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.orgs[req.OrganizationID]; !ok {
		return constraint("create budget request", "unknown organization %q", req.OrganizationID)
	}
	if _, ok := r.db.regions[req.RegionID]; !ok {
		return constraint("create budget request", "unknown region %q", req.RegionID)
	}
	if req.RequestedAmount <= 0 {
		return constraint("create budget request", "requested amount must be positive")
	}
	req.ID = newID()
	req.Status = domain.RequestPending
	req.RequestDate = r.db.now()
	cp := *req
	r.db.requests[req.ID] = &cp
	return nil
}

func (r *MemoryBudgetsRepo) GetBudgetRequest(_ context.Context, requestID string) (*domain.BudgetRequest, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	req, ok := r.db.requests[requestID]
	if !ok {
		return nil, notFound("get budget request")
	}
	cp := *req
	return &cp, nil
}

func (r *MemoryBudgetsRepo) ListBudgetRequests(_ context.Context, f domain.BudgetRequestFilter) ([]*domain.BudgetRequest, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := []*domain.BudgetRequest{}
	for _, req := range r.db.requests {
		if f.OrganizationID != "" && req.OrganizationID != f.OrganizationID {
			continue
		}
		if f.RegionID != "" && req.RegionID != f.RegionID {
			continue
		}
		if f.Status != "" && req.Status != f.Status {
			continue
		}
		cp := *req
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestDate.After(out[j].RequestDate) })
	return out, nil
}

func (r *MemoryBudgetsRepo) ProcessBudgetRequest(_ context.Context, d RequestDecision) (*domain.ProcessOutcome, error) {
	if d.Status != domain.RequestApproved && d.Status != domain.RequestRejected {
		return nil, fmt.Errorf("process budget request: status %q: %w", d.Status, domain.ErrInvalidArgument)
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	m := r.db

	req, ok := m.requests[d.RequestID]
	if !ok {
		return nil, notFound("process budget request")
	}
	out := &domain.ProcessOutcome{}
	if req.Status == d.Status {
		cp := *req
		out.Request = &cp
		return out, nil
	}
	if req.Status != domain.RequestPending {
		return nil, fmt.Errorf("process budget request: %s -> %s: %w", req.Status, d.Status, domain.ErrInvalidTransition)
	}

	if d.Status == domain.RequestApproved {
		out.RegionBudget = m.upsertRegionBudgetLocked(req.RegionID, req.FiscalYear, req.RequestedAmount, true)
		if d.Notice != nil {
			snapshot := *req
			notice := d.Notice(&snapshot)
			for _, user := range m.approvalRecipientsLocked(req) {
				if n := notice(user); n != nil {
					n.UserID = user
					out.Notified = append(out.Notified, m.insertNotificationLocked(*n))
				}
			}
		}
	}

	at := d.At
	approver := d.ApproverID
	req.Status = d.Status
	req.ProcessedBy = &approver
	req.ProcessedDate = &at
	req.Notes = d.Notes
	cp := *req
	out.Request = &cp
	out.Changed = true
	return out, nil
}

// approvalRecipientsLocked profiles mapped to the request's region plus the organization's admins, sorted
func (m *MemoryDB) approvalRecipientsLocked(req *domain.BudgetRequest) []string {
	seen := map[string]bool{}
	for _, p := range m.profilesInRegionLocked(req.RegionID) {
		seen[p.UserID] = true
	}
	for _, a := range m.admins {
		if a.OrganizationID == req.OrganizationID {
			seen[a.UserID] = true
		}
	}
	out := make([]string, 0, len(seen))
	for u := range seen {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}
