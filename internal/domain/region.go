package domain

import "time"

// IslandGroup top-level geographic grouping (island_groups), seeded by migration
type IslandGroup struct {
	ID   string `json:"id" db:"id"`     // TEXT slug, e.g. "luzon-island"
	Name string `json:"name" db:"name"` // TEXT, NOT NULL
}

// Priority of a region for budget planning
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// Region (regions); belongs to exactly one island group
type Region struct {
	ID            string    `json:"id" db:"id"`
	Code          string    `json:"code" db:"code"` // UNIQUE
	Name          string    `json:"name" db:"name"`
	IslandGroupID string    `json:"island_group_id" db:"island_group_id"`
	Priority      Priority  `json:"priority" db:"priority"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// AgriculturalData optional 1:1 attributes of a region (agricultural_data)
type AgriculturalData struct {
	RegionID           string    `json:"region_id" db:"region_id"`
	MajorCrops         []string  `json:"major_crops" db:"major_crops"`
	LandAreaHectares   *float64  `json:"land_area_hectares,omitempty" db:"land_area_hectares"`
	Rainfall           *float64  `json:"rainfall,omitempty" db:"rainfall"` // mm per year
	ClimateType        *string   `json:"climate_type,omitempty" db:"climate_type"`
	SoilType           *string   `json:"soil_type,omitempty" db:"soil_type"`
	TerrainDescription *string   `json:"terrain_description,omitempty" db:"terrain_description"`
	FarmingHouseholds  *int      `json:"farming_households,omitempty" db:"farming_households"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// ProvinceStatus lifecycle of a province record
type ProvinceStatus string

const (
	ProvinceActive  ProvinceStatus = "active"
	ProvincePending ProvinceStatus = "pending"
)

// Province (provinces); (name, region_id) unique.
// Farmers and Organizations are denormalised counters, not authoritative.
type Province struct {
	ID            string         `json:"id" db:"id"`
	Name          string         `json:"name" db:"name"`
	RegionID      string         `json:"region_id" db:"region_id"`
	Farmers       int            `json:"farmers" db:"farmers"`
	Organizations int            `json:"organizations" db:"organizations"`
	Status        ProvinceStatus `json:"status" db:"status"`
}

// AnnualBudget one row per fiscal year (annual_budgets)
type AnnualBudget struct {
	ID          string    `json:"id" db:"id"`
	FiscalYear  int       `json:"fiscal_year" db:"fiscal_year"`
	TotalAmount int64     `json:"total_amount" db:"total_amount"` // centavos
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// RegionBudget unique per (region_id, fiscal_year) (region_budgets)
type RegionBudget struct {
	ID         string    `json:"id" db:"id"`
	RegionID   string    `json:"region_id" db:"region_id"`
	FiscalYear int       `json:"fiscal_year" db:"fiscal_year"`
	Amount     int64     `json:"amount" db:"amount"` // centavos
	Allocated  bool      `json:"allocated" db:"allocated"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// DataSource tells callers where a geographic list came from
type DataSource string

const (
	SourceLive DataSource = "live"
	SourceSeed DataSource = "seed"
)

// Sourced wraps a result with its provenance so placeholder data is never mistaken for live data
type Sourced[T any] struct {
	Items  []T        `json:"items"`
	Source DataSource `json:"source"`
}
