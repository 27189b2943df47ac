package domain

import "time"

// FarmerProfile (farmer_profiles); created on first save, UserID immutable afterwards
type FarmerProfile struct {
	ID                  string    `json:"id" db:"id"`
	UserID              string    `json:"user_id" db:"user_id"`
	OrganizationID      *string   `json:"organization_id,omitempty" db:"organization_id"`
	ProvinceID          *string   `json:"province_id,omitempty" db:"province_id"`
	FarmName            string    `json:"farm_name" db:"farm_name"`
	FarmSize            float64   `json:"farm_size" db:"farm_size"` // hectares
	FarmAddress         string    `json:"farm_address" db:"farm_address"`
	YearsOfExperience   int       `json:"years_of_experience" db:"years_of_experience"`
	MainCrops           []string  `json:"main_crops" db:"main_crops"` // TEXT[]
	FarmType            string    `json:"farm_type" db:"farm_type"`
	CertificationStatus string    `json:"certification_status" db:"certification_status"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}

// FarmPlot (farm_plots)
type FarmPlot struct {
	ID           string    `json:"id" db:"id"`
	FarmerID     string    `json:"farmer_id" db:"farmer_id"`
	Name         string    `json:"name" db:"name"`
	AreaHectares float64   `json:"area_hectares" db:"area_hectares"`
	Location     string    `json:"location" db:"location"`
	SoilType     string    `json:"soil_type" db:"soil_type"`
	Status       string    `json:"status" db:"status"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Crop (crops); activities are removed with the crop
type Crop struct {
	ID                  string     `json:"id" db:"id"`
	FarmerID            string     `json:"farmer_id" db:"farmer_id"`
	PlotID              *string    `json:"plot_id,omitempty" db:"plot_id"`
	Name                string     `json:"name" db:"name"`
	Variety             string     `json:"variety" db:"variety"`
	PlantingDate        *time.Time `json:"planting_date,omitempty" db:"planting_date"`
	ExpectedHarvestDate *time.Time `json:"expected_harvest_date,omitempty" db:"expected_harvest_date"`
	Status              string     `json:"status" db:"status"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
}

// CropActivity (crop_activities)
type CropActivity struct {
	ID           string    `json:"id" db:"id"`
	CropID       string    `json:"crop_id" db:"crop_id"`
	FarmerID     string    `json:"farmer_id" db:"farmer_id"`
	ActivityType string    `json:"activity_type" db:"activity_type"`
	Description  string    `json:"description" db:"description"`
	ActivityDate time.Time `json:"activity_date" db:"activity_date"`
	Status       string    `json:"status" db:"status"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// FarmResource (farm_resources)
type FarmResource struct {
	ID           string    `json:"id" db:"id"`
	FarmerID     string    `json:"farmer_id" db:"farmer_id"`
	Name         string    `json:"name" db:"name"`
	ResourceType string    `json:"resource_type" db:"resource_type"`
	Quantity     float64   `json:"quantity" db:"quantity"`
	Unit         string    `json:"unit" db:"unit"`
	Status       string    `json:"status" db:"status"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// FarmingTask (farming_tasks)
type FarmingTask struct {
	ID          string     `json:"id" db:"id"`
	FarmerID    string     `json:"farmer_id" db:"farmer_id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description" db:"description"`
	DueDate     *time.Time `json:"due_date,omitempty" db:"due_date"`
	Priority    string     `json:"priority" db:"priority"`
	Status      string     `json:"status" db:"status"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// RecordKind selects one of the per-farmer record tables for generic status/delete operations
type RecordKind string

const (
	RecordPlot     RecordKind = "plots"
	RecordCrop     RecordKind = "crops"
	RecordActivity RecordKind = "activities"
	RecordResource RecordKind = "resources"
	RecordTask     RecordKind = "tasks"
)

var recordStatuses = map[RecordKind][]string{
	RecordPlot:     {"active", "fallow", "inactive"},
	RecordCrop:     {"planned", "planted", "growing", "harvested", "failed"},
	RecordActivity: {"scheduled", "done", "cancelled"},
	RecordResource: {"available", "low", "depleted"},
	RecordTask:     {"todo", "in_progress", "done"},
}

// Valid reports whether k names a known record table
func (k RecordKind) Valid() bool {
	_, ok := recordStatuses[k]
	return ok
}

// ValidStatus reports whether status is allowed for k
func (k RecordKind) ValidStatus(status string) bool {
	for _, s := range recordStatuses[k] {
		if s == status {
			return true
		}
	}
	return false
}

// Table maps the kind to its SQL table
func (k RecordKind) Table() string {
	switch k {
	case RecordPlot:
		return "farm_plots"
	case RecordCrop:
		return "crops"
	case RecordActivity:
		return "crop_activities"
	case RecordResource:
		return "farm_resources"
	case RecordTask:
		return "farming_tasks"
	}
	return ""
}
