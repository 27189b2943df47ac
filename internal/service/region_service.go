package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"agrikonek/internal/domain"
	"agrikonek/internal/repository"
	"agrikonek/internal/seed"
)

// RegionService geographic hierarchy, region budgets and the annual envelope.
// Reads fall back to the embedded dataset and say so in their Source.
type RegionService interface {
	ListIslandGroups(ctx context.Context) (domain.Sourced[domain.IslandGroup], error)
	ListRegions(ctx context.Context) (domain.Sourced[*domain.Region], error)
	ListRegionsByIslandGroup(ctx context.Context, islandGroupID string) (domain.Sourced[*domain.Region], error)
	ListProvinces(ctx context.Context, regionID string) (domain.Sourced[*domain.Province], error)
	GetRegion(ctx context.Context, regionID string) (*domain.Region, domain.DataSource, error)

	CreateRegion(ctx context.Context, req CreateRegionRequest) (*domain.Region, error)
	CreateProvince(ctx context.Context, req CreateProvinceRequest) (*domain.Province, error)
	UpdateRegionPriority(ctx context.Context, regionID string, priority domain.Priority) error
	DeleteRegion(ctx context.Context, regionID string) error

	GetAgriculturalData(ctx context.Context, regionID string) (*domain.AgriculturalData, error)
	UpsertAgriculturalData(ctx context.Context, data *domain.AgriculturalData) error

	SetRegionBudget(ctx context.Context, req SetRegionBudgetRequest) (*domain.RegionBudget, error)
	ListRegionBudgets(ctx context.Context, fiscalYear int) ([]*domain.RegionBudget, error)
	SetAnnualBudget(ctx context.Context, req SetAnnualBudgetRequest) (*domain.AnnualBudget, error)
	GetAnnualBudget(ctx context.Context, fiscalYear int) (*domain.AnnualBudget, error)
}

type CreateRegionRequest struct {
	Code          string          `json:"code" validate:"required,max=16"`
	Name          string          `json:"name" validate:"required,max=120"`
	IslandGroupID string          `json:"island_group_id" validate:"required"`
	Priority      domain.Priority `json:"priority" validate:"omitempty,oneof=high medium low"`
}

type CreateProvinceRequest struct {
	Name     string                `json:"name" validate:"required,max=120"`
	RegionID string                `json:"region_id" validate:"required"`
	Status   domain.ProvinceStatus `json:"status" validate:"omitempty,oneof=active pending"`
}

type SetRegionBudgetRequest struct {
	RegionID   string `json:"region_id" validate:"required"`
	FiscalYear int    `json:"fiscal_year" validate:"omitempty,gte=2000,lte=2100"`
	Amount     int64  `json:"amount" validate:"gte=0"`
}

type SetAnnualBudgetRequest struct {
	FiscalYear  int   `json:"fiscal_year" validate:"omitempty,gte=2000,lte=2100"`
	TotalAmount int64 `json:"total_amount" validate:"gte=0"`
}

type regionService struct {
	regions repository.RegionsRepository
	budgets repository.BudgetsRepository
	seed    *seed.Provider // nil disables the fallback
	access  access
	now     func() time.Time
	logger  *zap.Logger
}

func NewRegionService(repos *repository.Repositories, fallback *seed.Provider, logger *zap.Logger) RegionService {
	return &regionService{
		regions: repos.Regions,
		budgets: repos.Budgets,
		seed:    fallback,
		access:  access{profiles: repos.Profiles, orgs: repos.Organizations},
		now:     time.Now,
		logger:  logger,
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// resolve tries the live tier for the exact scope and only then the seed tier.
// Cancellation never degrades into placeholder data.
func resolve[T any](ctx context.Context, s *regionService, scope string,
	live func() ([]T, error), fallback func() []T) (domain.Sourced[T], error) {

	items, err := live()
	if err == nil && len(items) > 0 {
		return domain.Sourced[T]{Items: items, Source: domain.SourceLive}, nil
	}
	if err != nil && isContextErr(err) {
		return domain.Sourced[T]{}, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return domain.Sourced[T]{}, ctxErr
	}
	if s.seed == nil {
		if err != nil {
			return domain.Sourced[T]{}, err
		}
		return domain.Sourced[T]{Items: []T{}, Source: domain.SourceLive}, nil
	}

	seeded := fallback()
	if len(seeded) == 0 {
		// nothing to serve in place of the live answer
		if err != nil {
			return domain.Sourced[T]{}, err
		}
		return domain.Sourced[T]{Items: []T{}, Source: domain.SourceLive}, nil
	}
	if err != nil {
		s.logger.Warn("Live region data unavailable, serving fallback dataset",
			zap.String("scope", scope), zap.Error(err))
	} else {
		s.logger.Info("No live region data, serving fallback dataset", zap.String("scope", scope))
	}
	return domain.Sourced[T]{Items: seeded, Source: domain.SourceSeed}, nil
}

func (s *regionService) ListIslandGroups(ctx context.Context) (domain.Sourced[domain.IslandGroup], error) {
	return resolve(ctx, s, "island_groups",
		func() ([]domain.IslandGroup, error) { return s.regions.ListIslandGroups(ctx) },
		func() []domain.IslandGroup { return s.seed.IslandGroups() })
}

func (s *regionService) ListRegions(ctx context.Context) (domain.Sourced[*domain.Region], error) {
	return resolve(ctx, s, "regions",
		func() ([]*domain.Region, error) { return s.regions.ListRegions(ctx) },
		func() []*domain.Region { return s.seed.Regions() })
}

func (s *regionService) ListRegionsByIslandGroup(ctx context.Context, islandGroupID string) (domain.Sourced[*domain.Region], error) {
	return resolve(ctx, s, "regions:"+islandGroupID,
		func() ([]*domain.Region, error) { return s.regions.ListRegionsByIslandGroup(ctx, islandGroupID) },
		func() []*domain.Region { return s.seed.RegionsByIslandGroup(islandGroupID) })
}

func (s *regionService) ListProvinces(ctx context.Context, regionID string) (domain.Sourced[*domain.Province], error) {
	return resolve(ctx, s, "provinces:"+regionID,
		func() ([]*domain.Province, error) {
			if strings.HasPrefix(regionID, "seed-") {
				return nil, nil
			}
			return s.regions.ListProvinces(ctx, regionID)
		},
		func() []*domain.Province {
			// a live region without provinces borrows the seed list of the same code
			if reg, err := s.regions.GetRegion(ctx, regionID); err == nil {
				out := s.seed.ProvincesByCode(reg.Code)
				for _, p := range out {
					p.RegionID = reg.ID
				}
				return out
			}
			return s.seed.ProvincesByCode(regionID)
		})
}

func (s *regionService) GetRegion(ctx context.Context, regionID string) (*domain.Region, domain.DataSource, error) {
	reg, err := s.regions.GetRegion(ctx, regionID)
	if err == nil {
		return reg, domain.SourceLive, nil
	}
	if isContextErr(err) || s.seed == nil {
		return nil, "", err
	}
	if r, ok := s.seed.Region(regionID); ok {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("Live region lookup failed, serving fallback", zap.String("region", regionID), zap.Error(err))
		}
		return r, domain.SourceSeed, nil
	}
	return nil, "", err
}

func (s *regionService) CreateRegion(ctx context.Context, req CreateRegionRequest) (*domain.Region, error) {
	if _, err := s.access.superadmin(ctx); err != nil {
		return nil, err
	}
	if err := check(req); err != nil {
		return nil, err
	}
	reg := &domain.Region{
		Code:          strings.ToUpper(strings.TrimSpace(req.Code)),
		Name:          strings.TrimSpace(req.Name),
		IslandGroupID: req.IslandGroupID,
		Priority:      req.Priority,
	}
	if err := s.regions.CreateRegion(ctx, reg); err != nil {
		return nil, err
	}
	s.logger.Info("Region created", zap.String("region_id", reg.ID), zap.String("code", reg.Code))
	return reg, nil
}

func (s *regionService) CreateProvince(ctx context.Context, req CreateProvinceRequest) (*domain.Province, error) {
	if _, err := s.access.superadmin(ctx); err != nil {
		return nil, err
	}
	if err := check(req); err != nil {
		return nil, err
	}
	p := &domain.Province{Name: strings.TrimSpace(req.Name), RegionID: req.RegionID, Status: req.Status}
	if p.Status == "" {
		p.Status = domain.ProvinceActive
	}
	if err := s.regions.CreateProvince(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *regionService) UpdateRegionPriority(ctx context.Context, regionID string, priority domain.Priority) error {
	if _, err := s.access.superadmin(ctx); err != nil {
		return err
	}
	if !priority.Valid() {
		return fmt.Errorf("%w: priority %q", domain.ErrInvalidArgument, priority)
	}
	return s.regions.UpdateRegionPriority(ctx, regionID, priority)
}

func (s *regionService) DeleteRegion(ctx context.Context, regionID string) error {
	if _, err := s.access.superadmin(ctx); err != nil {
		return err
	}
	if err := s.regions.DeleteRegion(ctx, regionID); err != nil {
		return err
	}
	s.logger.Info("Region deleted", zap.String("region_id", regionID))
	return nil
}

func (s *regionService) GetAgriculturalData(ctx context.Context, regionID string) (*domain.AgriculturalData, error) {
	return s.regions.GetAgriculturalData(ctx, regionID)
}

func (s *regionService) UpsertAgriculturalData(ctx context.Context, data *domain.AgriculturalData) error {
	if _, err := s.access.superadmin(ctx); err != nil {
		return err
	}
	if data.RegionID == "" {
		return fmt.Errorf("%w: region_id is required", domain.ErrInvalidArgument)
	}
	if data.MajorCrops == nil {
		data.MajorCrops = []string{}
	}
	return s.regions.UpsertAgriculturalData(ctx, data)
}

func (s *regionService) SetRegionBudget(ctx context.Context, req SetRegionBudgetRequest) (*domain.RegionBudget, error) {
	sess, err := s.access.superadmin(ctx)
	if err != nil {
		return nil, err
	}
	if err := check(req); err != nil {
		return nil, err
	}
	b, err := s.budgets.SetRegionBudget(ctx, req.RegionID, fiscalYear(req.FiscalYear, s.now()), req.Amount)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Region budget set",
		zap.String("region_id", b.RegionID),
		zap.Int("fiscal_year", b.FiscalYear),
		zap.Int64("amount", b.Amount),
		zap.String("by", sess.UserID),
	)
	return b, nil
}

func (s *regionService) ListRegionBudgets(ctx context.Context, year int) ([]*domain.RegionBudget, error) {
	return s.budgets.ListRegionBudgets(ctx, fiscalYear(year, s.now()))
}

func (s *regionService) SetAnnualBudget(ctx context.Context, req SetAnnualBudgetRequest) (*domain.AnnualBudget, error) {
	if _, err := s.access.superadmin(ctx); err != nil {
		return nil, err
	}
	if err := check(req); err != nil {
		return nil, err
	}
	return s.budgets.SetAnnualBudget(ctx, fiscalYear(req.FiscalYear, s.now()), req.TotalAmount)
}

func (s *regionService) GetAnnualBudget(ctx context.Context, year int) (*domain.AnnualBudget, error) {
	return s.budgets.GetAnnualBudget(ctx, fiscalYear(year, s.now()))
}
