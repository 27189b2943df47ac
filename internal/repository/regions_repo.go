package repository

import (
	"context"

	"agrikonek/internal/domain"
)

// RegionsRepository island group / region / province hierarchy.
// Lists return an empty slice (not an error) when the scope has no rows.
type RegionsRepository interface {
	// ========== island groups ==========
	ListIslandGroups(ctx context.Context) ([]domain.IslandGroup, error)

	// ========== regions ==========
	ListRegions(ctx context.Context) ([]*domain.Region, error)
	ListRegionsByIslandGroup(ctx context.Context, islandGroupID string) ([]*domain.Region, error)
	GetRegion(ctx context.Context, regionID string) (*domain.Region, error)
	// CreateRegion fills ID and CreatedAt
	CreateRegion(ctx context.Context, region *domain.Region) error
	UpdateRegionPriority(ctx context.Context, regionID string, priority domain.Priority) error
	// DeleteRegion fails with ErrHasDependents while provinces or organizations reference the region.
	// Region budgets and agricultural data are removed in the same transaction.
	DeleteRegion(ctx context.Context, regionID string) error

	// ========== provinces ==========
	ListProvinces(ctx context.Context, regionID string) ([]*domain.Province, error)
	CreateProvince(ctx context.Context, province *domain.Province) error

	// ========== agricultural data ==========
	GetAgriculturalData(ctx context.Context, regionID string) (*domain.AgriculturalData, error)
	UpsertAgriculturalData(ctx context.Context, data *domain.AgriculturalData) error
}
