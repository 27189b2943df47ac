package repository

import (
	"context"
	"sort"

	"agrikonek/internal/domain"
)

// MemoryReportsRepo aggregates computed from MemoryDB
type MemoryReportsRepo struct {
	db *MemoryDB
}

func NewMemoryReportsRepo(db *MemoryDB) *MemoryReportsRepo {
	return &MemoryReportsRepo{db: db}
}

var _ ReportsRepository = (*MemoryReportsRepo)(nil)

func (r *MemoryReportsRepo) RegionalMetrics(_ context.Context, fiscalYear int) ([]domain.RegionalMetric, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	m := r.db

	regions := make([]*domain.Region, 0, len(m.regions))
	for _, reg := range m.regions {
		regions = append(regions, reg)
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i].Code < regions[j].Code })

	out := []domain.RegionalMetric{}
	for _, reg := range regions {
		rm := domain.RegionalMetric{RegionID: reg.ID, RegionName: reg.Name}
		for _, o := range m.orgs {
			if o.RegionID == reg.ID {
				rm.Organizations++
			}
		}
		for _, mem := range m.members {
			if o, ok := m.orgs[mem.OrganizationID]; ok && o.RegionID == reg.ID && mem.Status == domain.MemberActive {
				rm.ActiveMembers++
			}
		}
		if b, ok := m.regionBudgets[yearKey(reg.ID, fiscalYear)]; ok {
			rm.BudgetAmount = b.Amount
		}
		for _, b := range m.orgBudgets {
			if o, ok := m.orgs[b.OrganizationID]; ok && o.RegionID == reg.ID && b.FiscalYear == fiscalYear {
				rm.AllocatedToOrgs += b.TotalAllocation
				rm.UtilizedByOrgs += b.Spent()
			}
		}
		for _, req := range m.requests {
			if req.RegionID == reg.ID && req.Status == domain.RequestPending {
				rm.PendingRequests++
			}
		}
		rm.UtilizationPermil = permil(rm.UtilizedByOrgs, rm.AllocatedToOrgs)
		out = append(out, rm)
	}
	return out, nil
}

func (r *MemoryReportsRepo) BudgetUtilizationByMonth(_ context.Context, fiscalYear int) ([]domain.MonthlyUtilization, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	byMonth := map[int]*domain.MonthlyUtilization{}
	for _, e := range r.db.expenses {
		if e.FiscalYear != fiscalYear {
			continue
		}
		month := int(e.ExpenseDate.Month())
		mu, ok := byMonth[month]
		if !ok {
			mu = &domain.MonthlyUtilization{Month: month}
			byMonth[month] = mu
		}
		mu.Amount += e.Amount
		mu.Count++
	}
	out := []domain.MonthlyUtilization{}
	for _, mu := range byMonth {
		out = append(out, *mu)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

func (r *MemoryReportsRepo) CategoryDistribution(_ context.Context, fiscalYear int) ([]domain.CategoryShare, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	byCat := map[string]*domain.CategoryShare{}
	for _, e := range r.db.expenses {
		if e.FiscalYear != fiscalYear {
			continue
		}
		cs, ok := byCat[e.Category]
		if !ok {
			cs = &domain.CategoryShare{Category: e.Category}
			byCat[e.Category] = cs
		}
		cs.Amount += e.Amount
		cs.Count++
	}
	out := []domain.CategoryShare{}
	for _, cs := range byCat {
		out = append(out, *cs)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount > out[j].Amount
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}

func (r *MemoryReportsRepo) ApprovalRates(_ context.Context, fiscalYear int) (domain.ApprovalRates, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var a domain.ApprovalRates
	for _, req := range r.db.requests {
		if req.FiscalYear != fiscalYear {
			continue
		}
		switch req.Status {
		case domain.RequestApproved:
			a.RequestsApproved++
		case domain.RequestRejected:
			a.RequestsRejected++
		case domain.RequestPending:
			a.RequestsPending++
		}
	}
	for _, mem := range r.db.members {
		if mem.CreatedAt.Year() != fiscalYear {
			continue
		}
		switch mem.Status {
		case domain.MemberActive:
			a.ApplicationsActive++
		case domain.MemberRejected:
			a.ApplicationsRejected++
		case domain.MemberPending:
			a.ApplicationsPending++
		}
	}
	return a, nil
}

func (r *MemoryReportsRepo) RegionalBudgetReport(_ context.Context, fiscalYear int, regionID string) ([]domain.RegionalBudgetLine, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	m := r.db

	out := []domain.RegionalBudgetLine{}
	codes := map[string]string{}
	for _, o := range m.orgs {
		if regionID != "" && o.RegionID != regionID {
			continue
		}
		reg, ok := m.regions[o.RegionID]
		if !ok {
			continue
		}
		codes[reg.ID] = reg.Code
		line := domain.RegionalBudgetLine{
			RegionID:         reg.ID,
			RegionName:       reg.Name,
			OrganizationID:   o.ID,
			OrganizationName: o.Name,
		}
		if b, ok := m.orgBudgets[yearKey(o.ID, fiscalYear)]; ok {
			line.TotalAllocation = b.TotalAllocation
			line.RemainingBalance = b.RemainingBalance
			line.Spent = b.Spent()
		}
		out = append(out, line)
	}
	sort.Slice(out, func(i, j int) bool {
		ci, cj := codes[out[i].RegionID], codes[out[j].RegionID]
		if ci != cj {
			return ci < cj
		}
		return out[i].OrganizationName < out[j].OrganizationName
	})
	return out, nil
}
