package repository

import (
	"context"
	"fmt"
	"sort"

	"agrikonek/internal/domain"
)

// MemoryFarmersRepo farmer profile and records when DB is disabled
type MemoryFarmersRepo struct {
	db *MemoryDB
}

func NewMemoryFarmersRepo(db *MemoryDB) *MemoryFarmersRepo {
	return &MemoryFarmersRepo{db: db}
}

var _ FarmersRepository = (*MemoryFarmersRepo)(nil)

func copyFarmer(f *domain.FarmerProfile) *domain.FarmerProfile {
	cp := *f
	cp.MainCrops = append([]string{}, f.MainCrops...)
	return &cp
}

func (r *MemoryFarmersRepo) GetFarmerProfileByUser(_ context.Context, userID string) (*domain.FarmerProfile, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	f := r.db.farmerByUserLocked(userID)
	if f == nil {
		return nil, notFound("get farmer profile")
	}
	return copyFarmer(f), nil
}

func (r *MemoryFarmersRepo) GetFarmerProfile(_ context.Context, farmerID string) (*domain.FarmerProfile, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	f, ok := r.db.farmers[farmerID]
	if !ok {
		return nil, notFound("get farmer profile")
	}
	return copyFarmer(f), nil
}

func (r *MemoryFarmersRepo) SaveFarmerProfile(_ context.Context, f *domain.FarmerProfile) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	m := r.db

	if _, ok := m.profiles[f.UserID]; !ok {
		return constraint("save farmer profile", "unknown user %q", f.UserID)
	}
	if f.CertificationStatus == "" {
		f.CertificationStatus = "none"
	}
	now := m.now()
	if existing := m.farmerByUserLocked(f.UserID); existing != nil {
		f.ID = existing.ID
		f.CreatedAt = existing.CreatedAt
		f.OrganizationID = existing.OrganizationID
	} else {
		f.ID = newID()
		f.CreatedAt = now
		f.OrganizationID = nil
	}
	f.UpdatedAt = now
	m.farmers[f.ID] = copyFarmer(f)
	return nil
}

func (r *MemoryFarmersRepo) requireFarmerLocked(op, farmerID string) error {
	if _, ok := r.db.farmers[farmerID]; !ok {
		return constraint(op, "unknown farmer %q", farmerID)
	}
	return nil
}

func (r *MemoryFarmersRepo) CreatePlot(_ context.Context, p *domain.FarmPlot) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.requireFarmerLocked("create plot", p.FarmerID); err != nil {
		return err
	}
	if p.Status == "" {
		p.Status = "active"
	}
	p.ID, p.CreatedAt = newID(), r.db.now()
	cp := *p
	r.db.plots[p.ID] = &cp
	return nil
}

func (r *MemoryFarmersRepo) ListPlots(_ context.Context, farmerID string) ([]*domain.FarmPlot, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := []*domain.FarmPlot{}
	for _, p := range r.db.plots {
		if p.FarmerID == farmerID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryFarmersRepo) CreateCrop(_ context.Context, c *domain.Crop) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.requireFarmerLocked("create crop", c.FarmerID); err != nil {
		return err
	}
	if c.PlotID != nil {
		if p, ok := r.db.plots[*c.PlotID]; !ok || p.FarmerID != c.FarmerID {
			return fmt.Errorf("create crop: plot: %w", domain.ErrNotFound)
		}
	}
	if c.Status == "" {
		c.Status = "planned"
	}
	c.ID, c.CreatedAt = newID(), r.db.now()
	cp := *c
	r.db.crops[c.ID] = &cp
	return nil
}

func (r *MemoryFarmersRepo) ListCrops(_ context.Context, farmerID string) ([]*domain.Crop, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := []*domain.Crop{}
	for _, c := range r.db.crops {
		if c.FarmerID == farmerID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryFarmersRepo) CreateActivity(_ context.Context, a *domain.CropActivity) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.crops[a.CropID]
	if !ok || c.FarmerID != a.FarmerID {
		return fmt.Errorf("create activity: crop: %w", domain.ErrNotFound)
	}
	if a.Status == "" {
		a.Status = "scheduled"
	}
	a.ID, a.CreatedAt = newID(), r.db.now()
	cp := *a
	r.db.activities[a.ID] = &cp
	return nil
}

func (r *MemoryFarmersRepo) ListActivities(_ context.Context, farmerID, cropID string) ([]*domain.CropActivity, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := []*domain.CropActivity{}
	for _, a := range r.db.activities {
		if a.FarmerID == farmerID && (cropID == "" || a.CropID == cropID) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ActivityDate.Before(out[j].ActivityDate) })
	return out, nil
}

func (r *MemoryFarmersRepo) CreateResource(_ context.Context, res *domain.FarmResource) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.requireFarmerLocked("create resource", res.FarmerID); err != nil {
		return err
	}
	if res.Status == "" {
		res.Status = "available"
	}
	res.ID, res.CreatedAt = newID(), r.db.now()
	cp := *res
	r.db.resources[res.ID] = &cp
	return nil
}

func (r *MemoryFarmersRepo) ListResources(_ context.Context, farmerID string) ([]*domain.FarmResource, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := []*domain.FarmResource{}
	for _, res := range r.db.resources {
		if res.FarmerID == farmerID {
			cp := *res
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryFarmersRepo) CreateTask(_ context.Context, t *domain.FarmingTask) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.requireFarmerLocked("create task", t.FarmerID); err != nil {
		return err
	}
	if t.Status == "" {
		t.Status = "todo"
	}
	if t.Priority == "" {
		t.Priority = "medium"
	}
	t.ID, t.CreatedAt = newID(), r.db.now()
	cp := *t
	r.db.tasks[t.ID] = &cp
	return nil
}

func (r *MemoryFarmersRepo) ListTasks(_ context.Context, farmerID string) ([]*domain.FarmingTask, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := []*domain.FarmingTask{}
	for _, t := range r.db.tasks {
		if t.FarmerID == farmerID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// recordLocked returns a pointer to the status field and the owner of one record
func (r *MemoryFarmersRepo) recordLocked(kind domain.RecordKind, id string) (status *string, owner string, ok bool) {
	switch kind {
	case domain.RecordPlot:
		if v, ok := r.db.plots[id]; ok {
			return &v.Status, v.FarmerID, true
		}
	case domain.RecordCrop:
		if v, ok := r.db.crops[id]; ok {
			return &v.Status, v.FarmerID, true
		}
	case domain.RecordActivity:
		if v, ok := r.db.activities[id]; ok {
			return &v.Status, v.FarmerID, true
		}
	case domain.RecordResource:
		if v, ok := r.db.resources[id]; ok {
			return &v.Status, v.FarmerID, true
		}
	case domain.RecordTask:
		if v, ok := r.db.tasks[id]; ok {
			return &v.Status, v.FarmerID, true
		}
	}
	return nil, "", false
}

func (r *MemoryFarmersRepo) UpdateRecordStatus(_ context.Context, kind domain.RecordKind, farmerID, recordID, status string) error {
	if !kind.Valid() || !kind.ValidStatus(status) {
		return fmt.Errorf("update %s status %q: %w", kind, status, domain.ErrInvalidArgument)
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	field, owner, ok := r.recordLocked(kind, recordID)
	if !ok || owner != farmerID {
		return fmt.Errorf("update %s status: %w", kind, domain.ErrNotFound)
	}
	*field = status
	return nil
}

func (r *MemoryFarmersRepo) DeleteRecord(_ context.Context, kind domain.RecordKind, farmerID, recordID string) error {
	if !kind.Valid() {
		return fmt.Errorf("delete record %q: %w", kind, domain.ErrInvalidArgument)
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	m := r.db

	if _, owner, ok := r.recordLocked(kind, recordID); !ok || owner != farmerID {
		return fmt.Errorf("delete %s: %w", kind, domain.ErrNotFound)
	}
	switch kind {
	case domain.RecordPlot:
		delete(m.plots, recordID)
		for _, c := range m.crops {
			if c.PlotID != nil && *c.PlotID == recordID {
				c.PlotID = nil
			}
		}
	case domain.RecordCrop:
		for k, a := range m.activities {
			if a.CropID == recordID {
				delete(m.activities, k)
			}
		}
		delete(m.crops, recordID)
	case domain.RecordActivity:
		delete(m.activities, recordID)
	case domain.RecordResource:
		delete(m.resources, recordID)
	case domain.RecordTask:
		delete(m.tasks, recordID)
	}
	return nil
}
