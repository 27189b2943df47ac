package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"agrikonek/internal/domain"
)

// PostgresRegionsRepository region hierarchy on Postgres
type PostgresRegionsRepository struct {
	db *sql.DB
}

func NewPostgresRegionsRepository(db *sql.DB) *PostgresRegionsRepository {
	return &PostgresRegionsRepository{db: db}
}

var _ RegionsRepository = (*PostgresRegionsRepository)(nil)

func (r *PostgresRegionsRepository) ListIslandGroups(ctx context.Context) ([]domain.IslandGroup, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM island_groups ORDER BY id`)
	if err != nil {
		return nil, classify("list island groups", err)
	}
	defer rows.Close()

	out := []domain.IslandGroup{}
	for rows.Next() {
		var g domain.IslandGroup
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, classify("scan island group", err)
		}
		out = append(out, g)
	}
	return out, classify("list island groups", rows.Err())
}

const regionColumns = `id::text, code, name, island_group_id, priority, created_at`

func scanRegion(row interface{ Scan(...any) error }) (*domain.Region, error) {
	var reg domain.Region
	if err := row.Scan(&reg.ID, &reg.Code, &reg.Name, &reg.IslandGroupID, &reg.Priority, &reg.CreatedAt); err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *PostgresRegionsRepository) queryRegions(ctx context.Context, op, query string, args ...any) ([]*domain.Region, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	out := []*domain.Region{}
	for rows.Next() {
		reg, err := scanRegion(rows)
		if err != nil {
			return nil, classify(op+": scan", err)
		}
		out = append(out, reg)
	}
	return out, classify(op, rows.Err())
}

func (r *PostgresRegionsRepository) ListRegions(ctx context.Context) ([]*domain.Region, error) {
	return r.queryRegions(ctx, "list regions",
		`SELECT `+regionColumns+` FROM regions ORDER BY code`)
}

func (r *PostgresRegionsRepository) ListRegionsByIslandGroup(ctx context.Context, islandGroupID string) ([]*domain.Region, error) {
	return r.queryRegions(ctx, "list regions by island group",
		`SELECT `+regionColumns+` FROM regions WHERE island_group_id = $1 ORDER BY code`, islandGroupID)
}

func (r *PostgresRegionsRepository) GetRegion(ctx context.Context, regionID string) (*domain.Region, error) {
	reg, err := scanRegion(r.db.QueryRowContext(ctx,
		`SELECT `+regionColumns+` FROM regions WHERE id::text = $1 OR code = $1`, regionID))
	if err != nil {
		return nil, classify("get region", err)
	}
	return reg, nil
}

func (r *PostgresRegionsRepository) CreateRegion(ctx context.Context, region *domain.Region) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO regions (code, name, island_group_id, priority)
		VALUES ($1, $2, $3, $4)
		RETURNING id::text, created_at
	`, region.Code, region.Name, region.IslandGroupID, region.Priority).Scan(&region.ID, &region.CreatedAt)
	return classify("create region", err)
}

func (r *PostgresRegionsRepository) UpdateRegionPriority(ctx context.Context, regionID string, priority domain.Priority) error {
	res, err := r.db.ExecContext(ctx, `UPDATE regions SET priority = $2 WHERE id = $1`, regionID, priority)
	if err != nil {
		return classify("update region priority", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update region priority: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *PostgresRegionsRepository) DeleteRegion(ctx context.Context, regionID string) error {
	return withTx(ctx, r.db, "delete region", func(tx *sql.Tx) error {
		// lock the region so no province/organization is attached between the check and the delete
		var id string
		if err := tx.QueryRowContext(ctx, `SELECT id::text FROM regions WHERE id = $1 FOR UPDATE`, regionID).Scan(&id); err != nil {
			return classify("delete region: lock", err)
		}

		var provinces, orgs int
		if err := tx.QueryRowContext(ctx, `
			SELECT
				(SELECT COUNT(*) FROM provinces WHERE region_id = $1),
				(SELECT COUNT(*) FROM organizations WHERE region_id = $1)
		`, regionID).Scan(&provinces, &orgs); err != nil {
			return classify("delete region: count dependents", err)
		}
		if provinces > 0 || orgs > 0 {
			return fmt.Errorf("delete region: %d provinces, %d organizations: %w", provinces, orgs, domain.ErrHasDependents)
		}

		for _, q := range []string{
			`DELETE FROM region_budgets WHERE region_id = $1`,
			`DELETE FROM agricultural_data WHERE region_id = $1`,
			`DELETE FROM regions WHERE id = $1`,
		} {
			if _, err := tx.ExecContext(ctx, q, regionID); err != nil {
				return classify("delete region", err)
			}
		}
		return nil
	})
}

func (r *PostgresRegionsRepository) ListProvinces(ctx context.Context, regionID string) ([]*domain.Province, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id::text, name, region_id::text, farmers, organizations, status
		FROM provinces
		WHERE region_id = $1
		ORDER BY name
	`, regionID)
	if err != nil {
		return nil, classify("list provinces", err)
	}
	defer rows.Close()

	out := []*domain.Province{}
	for rows.Next() {
		var p domain.Province
		if err := rows.Scan(&p.ID, &p.Name, &p.RegionID, &p.Farmers, &p.Organizations, &p.Status); err != nil {
			return nil, classify("scan province", err)
		}
		out = append(out, &p)
	}
	return out, classify("list provinces", rows.Err())
}

func (r *PostgresRegionsRepository) CreateProvince(ctx context.Context, province *domain.Province) error {
	if province.Status == "" {
		province.Status = domain.ProvinceActive
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO provinces (name, region_id, farmers, organizations, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id::text
	`, province.Name, province.RegionID, province.Farmers, province.Organizations, province.Status).Scan(&province.ID)
	return classify("create province", err)
}

func (r *PostgresRegionsRepository) GetAgriculturalData(ctx context.Context, regionID string) (*domain.AgriculturalData, error) {
	var (
		d        domain.AgriculturalData
		climate  sql.NullString
		soil     sql.NullString
		terrain  sql.NullString
		land     sql.NullFloat64
		rainfall sql.NullFloat64
		house    sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT region_id::text, major_crops, land_area_hectares, rainfall, climate_type,
		       soil_type, terrain_description, farming_households, updated_at
		FROM agricultural_data
		WHERE region_id = $1
	`, regionID).Scan(&d.RegionID, pq.Array(&d.MajorCrops), &land, &rainfall, &climate, &soil, &terrain, &house, &d.UpdatedAt)
	if err != nil {
		return nil, classify("get agricultural data", err)
	}
	if land.Valid {
		d.LandAreaHectares = &land.Float64
	}
	if rainfall.Valid {
		d.Rainfall = &rainfall.Float64
	}
	if house.Valid {
		n := int(house.Int64)
		d.FarmingHouseholds = &n
	}
	d.ClimateType = stringPtr(climate)
	d.SoilType = stringPtr(soil)
	d.TerrainDescription = stringPtr(terrain)
	return &d, nil
}

func (r *PostgresRegionsRepository) UpsertAgriculturalData(ctx context.Context, data *domain.AgriculturalData) error {
	crops := data.MajorCrops
	if crops == nil {
		crops = []string{}
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO agricultural_data (region_id, major_crops, land_area_hectares, rainfall, climate_type,
		                               soil_type, terrain_description, farming_households, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (region_id) DO UPDATE SET
			major_crops = EXCLUDED.major_crops,
			land_area_hectares = EXCLUDED.land_area_hectares,
			rainfall = EXCLUDED.rainfall,
			climate_type = EXCLUDED.climate_type,
			soil_type = EXCLUDED.soil_type,
			terrain_description = EXCLUDED.terrain_description,
			farming_households = EXCLUDED.farming_households,
			updated_at = now()
		RETURNING updated_at
	`, data.RegionID, pq.Array(crops), data.LandAreaHectares, data.Rainfall, nullString(data.ClimateType),
		nullString(data.SoilType), nullString(data.TerrainDescription), data.FarmingHouseholds).Scan(&data.UpdatedAt)
	return classify("upsert agricultural data", err)
}
