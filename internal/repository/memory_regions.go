package repository

import (
	"context"
	"fmt"
	"sort"

	"agrikonek/internal/domain"
)

// MemoryRegionsRepo region hierarchy when DB is disabled
type MemoryRegionsRepo struct {
	db *MemoryDB
}

func NewMemoryRegionsRepo(db *MemoryDB) *MemoryRegionsRepo {
	return &MemoryRegionsRepo{db: db}
}

var _ RegionsRepository = (*MemoryRegionsRepo)(nil)

func (r *MemoryRegionsRepo) ListIslandGroups(_ context.Context) ([]domain.IslandGroup, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return append([]domain.IslandGroup{}, r.db.islandGroups...), nil
}

func (r *MemoryRegionsRepo) listRegions(match func(*domain.Region) bool) []*domain.Region {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := []*domain.Region{}
	for _, reg := range r.db.regions {
		if match(reg) {
			cp := *reg
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (r *MemoryRegionsRepo) ListRegions(_ context.Context) ([]*domain.Region, error) {
	return r.listRegions(func(*domain.Region) bool { return true }), nil
}

func (r *MemoryRegionsRepo) ListRegionsByIslandGroup(_ context.Context, islandGroupID string) ([]*domain.Region, error) {
	return r.listRegions(func(reg *domain.Region) bool { return reg.IslandGroupID == islandGroupID }), nil
}

func (r *MemoryRegionsRepo) GetRegion(_ context.Context, regionID string) (*domain.Region, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, reg := range r.db.regions {
		if reg.ID == regionID || reg.Code == regionID {
			cp := *reg
			return &cp, nil
		}
	}
	return nil, notFound("get region")
}

func (r *MemoryRegionsRepo) CreateRegion(_ context.Context, region *domain.Region) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	known := false
	for _, g := range r.db.islandGroups {
		if g.ID == region.IslandGroupID {
			known = true
		}
	}
	if !known {
		return constraint("create region", "unknown island group %q", region.IslandGroupID)
	}
	for _, reg := range r.db.regions {
		if reg.Code == region.Code {
			return constraint("create region", "duplicate code %q", region.Code)
		}
	}
	if region.Priority == "" {
		region.Priority = domain.PriorityMedium
	}
	region.ID = newID()
	region.CreatedAt = r.db.now()
	cp := *region
	r.db.regions[cp.ID] = &cp
	return nil
}

func (r *MemoryRegionsRepo) UpdateRegionPriority(_ context.Context, regionID string, priority domain.Priority) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	reg, ok := r.db.regions[regionID]
	if !ok {
		return notFound("update region priority")
	}
	reg.Priority = priority
	return nil
}

func (r *MemoryRegionsRepo) DeleteRegion(_ context.Context, regionID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.regions[regionID]; !ok {
		return notFound("delete region")
	}
	var provinces, orgs int
	for _, p := range r.db.provinces {
		if p.RegionID == regionID {
			provinces++
		}
	}
	for _, o := range r.db.orgs {
		if o.RegionID == regionID {
			orgs++
		}
	}
	if provinces > 0 || orgs > 0 {
		return fmt.Errorf("delete region: %d provinces, %d organizations: %w", provinces, orgs, domain.ErrHasDependents)
	}
	for k, b := range r.db.regionBudgets {
		if b.RegionID == regionID {
			delete(r.db.regionBudgets, k)
		}
	}
	delete(r.db.agri, regionID)
	delete(r.db.regions, regionID)
	for _, p := range r.db.profiles {
		if p.RegionID != nil && *p.RegionID == regionID {
			p.RegionID = nil
		}
	}
	return nil
}

func (r *MemoryRegionsRepo) ListProvinces(_ context.Context, regionID string) ([]*domain.Province, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := []*domain.Province{}
	for _, p := range r.db.provinces {
		if p.RegionID == regionID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRegionsRepo) CreateProvince(_ context.Context, province *domain.Province) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.regions[province.RegionID]; !ok {
		return constraint("create province", "unknown region %q", province.RegionID)
	}
	for _, p := range r.db.provinces {
		if p.RegionID == province.RegionID && p.Name == province.Name {
			return constraint("create province", "duplicate province %q", province.Name)
		}
	}
	if province.Status == "" {
		province.Status = domain.ProvinceActive
	}
	province.ID = newID()
	cp := *province
	r.db.provinces[cp.ID] = &cp
	return nil
}

func (r *MemoryRegionsRepo) GetAgriculturalData(_ context.Context, regionID string) (*domain.AgriculturalData, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	d, ok := r.db.agri[regionID]
	if !ok {
		return nil, notFound("get agricultural data")
	}
	cp := *d
	cp.MajorCrops = append([]string{}, d.MajorCrops...)
	return &cp, nil
}

func (r *MemoryRegionsRepo) UpsertAgriculturalData(_ context.Context, data *domain.AgriculturalData) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.regions[data.RegionID]; !ok {
		return constraint("upsert agricultural data", "unknown region %q", data.RegionID)
	}
	data.UpdatedAt = r.db.now()
	cp := *data
	cp.MajorCrops = append([]string{}, data.MajorCrops...)
	r.db.agri[data.RegionID] = &cp
	return nil
}

// MemoryProfilesRepo profiles when DB is disabled
type MemoryProfilesRepo struct {
	db *MemoryDB
}

func NewMemoryProfilesRepo(db *MemoryDB) *MemoryProfilesRepo {
	return &MemoryProfilesRepo{db: db}
}

var _ ProfilesRepository = (*MemoryProfilesRepo)(nil)

func (r *MemoryProfilesRepo) GetProfile(_ context.Context, userID string) (*domain.Profile, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	p, ok := r.db.profiles[userID]
	if !ok {
		return nil, notFound("get profile")
	}
	cp := *p
	return &cp, nil
}

func (r *MemoryProfilesRepo) UpsertProfile(_ context.Context, p *domain.Profile) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if old, ok := r.db.profiles[p.UserID]; ok {
		p.CreatedAt = old.CreatedAt
	} else {
		p.CreatedAt = r.db.now()
	}
	cp := *p
	r.db.profiles[p.UserID] = &cp
	return nil
}

func (r *MemoryProfilesRepo) CreateProfileIfAbsent(_ context.Context, p *domain.Profile) (*domain.Profile, bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if old, ok := r.db.profiles[p.UserID]; ok {
		cp := *old
		return &cp, false, nil
	}
	stored := *p
	stored.CreatedAt = r.db.now()
	r.db.profiles[p.UserID] = &stored
	cp := stored
	return &cp, true, nil
}

func (r *MemoryProfilesRepo) ListProfilesByRegion(_ context.Context, regionID string) ([]*domain.Profile, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return r.db.profilesInRegionLocked(regionID), nil
}

func (m *MemoryDB) profilesInRegionLocked(regionID string) []*domain.Profile {
	out := []*domain.Profile{}
	for _, p := range m.profiles {
		if p.RegionID != nil && *p.RegionID == regionID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}
