package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"agrikonek/internal/domain"
)

type PostgresFarmersRepository struct {
	db *sql.DB
}

func NewPostgresFarmersRepository(db *sql.DB) *PostgresFarmersRepository {
	return &PostgresFarmersRepository{db: db}
}

var _ FarmersRepository = (*PostgresFarmersRepository)(nil)

const farmerColumns = `id::text, user_id::text, organization_id::text, province_id::text, farm_name, farm_size,
	farm_address, years_of_experience, main_crops, farm_type, certification_status, created_at, updated_at`

func (r *PostgresFarmersRepository) getFarmer(ctx context.Context, where string, arg string) (*domain.FarmerProfile, error) {
	var (
		f        domain.FarmerProfile
		org      sql.NullString
		province sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `SELECT `+farmerColumns+` FROM farmer_profiles WHERE `+where+` = $1`, arg).Scan(
		&f.ID, &f.UserID, &org, &province, &f.FarmName, &f.FarmSize, &f.FarmAddress, &f.YearsOfExperience,
		pq.Array(&f.MainCrops), &f.FarmType, &f.CertificationStatus, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, classify("get farmer profile", err)
	}
	f.OrganizationID = stringPtr(org)
	f.ProvinceID = stringPtr(province)
	return &f, nil
}

func (r *PostgresFarmersRepository) GetFarmerProfileByUser(ctx context.Context, userID string) (*domain.FarmerProfile, error) {
	return r.getFarmer(ctx, "user_id", userID)
}

func (r *PostgresFarmersRepository) GetFarmerProfile(ctx context.Context, farmerID string) (*domain.FarmerProfile, error) {
	return r.getFarmer(ctx, "id", farmerID)
}

// SaveFarmerProfile organization_id is not written here; membership approval owns it
func (r *PostgresFarmersRepository) SaveFarmerProfile(ctx context.Context, f *domain.FarmerProfile) error {
	crops := f.MainCrops
	if crops == nil {
		crops = []string{}
	}
	if f.CertificationStatus == "" {
		f.CertificationStatus = "none"
	}
	var org sql.NullString
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO farmer_profiles (user_id, province_id, farm_name, farm_size, farm_address,
		                             years_of_experience, main_crops, farm_type, certification_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO UPDATE SET
			province_id = EXCLUDED.province_id,
			farm_name = EXCLUDED.farm_name,
			farm_size = EXCLUDED.farm_size,
			farm_address = EXCLUDED.farm_address,
			years_of_experience = EXCLUDED.years_of_experience,
			main_crops = EXCLUDED.main_crops,
			farm_type = EXCLUDED.farm_type,
			certification_status = EXCLUDED.certification_status,
			updated_at = now()
		RETURNING id::text, organization_id::text, created_at, updated_at
	`, f.UserID, nullString(f.ProvinceID), f.FarmName, f.FarmSize, f.FarmAddress, f.YearsOfExperience,
		pq.Array(crops), f.FarmType, f.CertificationStatus).Scan(&f.ID, &org, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return classify("save farmer profile", err)
	}
	f.OrganizationID = stringPtr(org)
	return nil
}

func (r *PostgresFarmersRepository) CreatePlot(ctx context.Context, p *domain.FarmPlot) error {
	if p.Status == "" {
		p.Status = "active"
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO farm_plots (farmer_id, name, area_hectares, location, soil_type, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id::text, created_at
	`, p.FarmerID, p.Name, p.AreaHectares, p.Location, p.SoilType, p.Status).Scan(&p.ID, &p.CreatedAt)
	return classify("create plot", err)
}

func (r *PostgresFarmersRepository) ListPlots(ctx context.Context, farmerID string) ([]*domain.FarmPlot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id::text, farmer_id::text, name, area_hectares, location, soil_type, status, created_at
		FROM farm_plots WHERE farmer_id = $1 ORDER BY created_at
	`, farmerID)
	if err != nil {
		return nil, classify("list plots", err)
	}
	defer rows.Close()

	out := []*domain.FarmPlot{}
	for rows.Next() {
		var p domain.FarmPlot
		if err := rows.Scan(&p.ID, &p.FarmerID, &p.Name, &p.AreaHectares, &p.Location, &p.SoilType, &p.Status, &p.CreatedAt); err != nil {
			return nil, classify("scan plot", err)
		}
		out = append(out, &p)
	}
	return out, classify("list plots", rows.Err())
}

func (r *PostgresFarmersRepository) CreateCrop(ctx context.Context, c *domain.Crop) error {
	if c.Status == "" {
		c.Status = "planned"
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO crops (farmer_id, plot_id, name, variety, planting_date, expected_harvest_date, status)
		SELECT $1, $2, $3, $4, $5, $6, $7
		WHERE $2::uuid IS NULL OR EXISTS (SELECT 1 FROM farm_plots WHERE id = $2::uuid AND farmer_id = $1)
		RETURNING id::text, created_at
	`, c.FarmerID, nullString(c.PlotID), c.Name, c.Variety, c.PlantingDate, c.ExpectedHarvestDate, c.Status).Scan(&c.ID, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return fmt.Errorf("create crop: plot: %w", domain.ErrNotFound)
	}
	return classify("create crop", err)
}

func (r *PostgresFarmersRepository) ListCrops(ctx context.Context, farmerID string) ([]*domain.Crop, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id::text, farmer_id::text, plot_id::text, name, variety, planting_date, expected_harvest_date, status, created_at
		FROM crops WHERE farmer_id = $1 ORDER BY created_at
	`, farmerID)
	if err != nil {
		return nil, classify("list crops", err)
	}
	defer rows.Close()

	out := []*domain.Crop{}
	for rows.Next() {
		var (
			c       domain.Crop
			plot    sql.NullString
			planted sql.NullTime
			harvest sql.NullTime
		)
		if err := rows.Scan(&c.ID, &c.FarmerID, &plot, &c.Name, &c.Variety, &planted, &harvest, &c.Status, &c.CreatedAt); err != nil {
			return nil, classify("scan crop", err)
		}
		c.PlotID = stringPtr(plot)
		if planted.Valid {
			c.PlantingDate = &planted.Time
		}
		if harvest.Valid {
			c.ExpectedHarvestDate = &harvest.Time
		}
		out = append(out, &c)
	}
	return out, classify("list crops", rows.Err())
}

func (r *PostgresFarmersRepository) CreateActivity(ctx context.Context, a *domain.CropActivity) error {
	if a.Status == "" {
		a.Status = "scheduled"
	}
	// the crop must belong to the same farmer
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO crop_activities (crop_id, farmer_id, activity_type, description, activity_date, status)
		SELECT c.id, c.farmer_id, $3, $4, $5, $6 FROM crops c WHERE c.id = $1 AND c.farmer_id = $2
		RETURNING id::text, created_at
	`, a.CropID, a.FarmerID, a.ActivityType, a.Description, a.ActivityDate, a.Status).Scan(&a.ID, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return fmt.Errorf("create activity: crop: %w", domain.ErrNotFound)
	}
	return classify("create activity", err)
}

func (r *PostgresFarmersRepository) ListActivities(ctx context.Context, farmerID, cropID string) ([]*domain.CropActivity, error) {
	query := `
		SELECT id::text, crop_id::text, farmer_id::text, activity_type, description, activity_date, status, created_at
		FROM crop_activities WHERE farmer_id = $1`
	args := []any{farmerID}
	if cropID != "" {
		query += ` AND crop_id = $2`
		args = append(args, cropID)
	}
	query += ` ORDER BY activity_date, created_at`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("list activities", err)
	}
	defer rows.Close()

	out := []*domain.CropActivity{}
	for rows.Next() {
		var a domain.CropActivity
		if err := rows.Scan(&a.ID, &a.CropID, &a.FarmerID, &a.ActivityType, &a.Description, &a.ActivityDate, &a.Status, &a.CreatedAt); err != nil {
			return nil, classify("scan activity", err)
		}
		out = append(out, &a)
	}
	return out, classify("list activities", rows.Err())
}

func (r *PostgresFarmersRepository) CreateResource(ctx context.Context, res *domain.FarmResource) error {
	if res.Status == "" {
		res.Status = "available"
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO farm_resources (farmer_id, name, resource_type, quantity, unit, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id::text, created_at
	`, res.FarmerID, res.Name, res.ResourceType, res.Quantity, res.Unit, res.Status).Scan(&res.ID, &res.CreatedAt)
	return classify("create resource", err)
}

func (r *PostgresFarmersRepository) ListResources(ctx context.Context, farmerID string) ([]*domain.FarmResource, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id::text, farmer_id::text, name, resource_type, quantity, unit, status, created_at
		FROM farm_resources WHERE farmer_id = $1 ORDER BY name
	`, farmerID)
	if err != nil {
		return nil, classify("list resources", err)
	}
	defer rows.Close()

	out := []*domain.FarmResource{}
	for rows.Next() {
		var res domain.FarmResource
		if err := rows.Scan(&res.ID, &res.FarmerID, &res.Name, &res.ResourceType, &res.Quantity, &res.Unit, &res.Status, &res.CreatedAt); err != nil {
			return nil, classify("scan resource", err)
		}
		out = append(out, &res)
	}
	return out, classify("list resources", rows.Err())
}

func (r *PostgresFarmersRepository) CreateTask(ctx context.Context, t *domain.FarmingTask) error {
	if t.Status == "" {
		t.Status = "todo"
	}
	if t.Priority == "" {
		t.Priority = "medium"
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO farming_tasks (farmer_id, title, description, due_date, priority, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id::text, created_at
	`, t.FarmerID, t.Title, t.Description, t.DueDate, t.Priority, t.Status).Scan(&t.ID, &t.CreatedAt)
	return classify("create task", err)
}

func (r *PostgresFarmersRepository) ListTasks(ctx context.Context, farmerID string) ([]*domain.FarmingTask, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id::text, farmer_id::text, title, description, due_date, priority, status, created_at
		FROM farming_tasks WHERE farmer_id = $1 ORDER BY due_date NULLS LAST, created_at
	`, farmerID)
	if err != nil {
		return nil, classify("list tasks", err)
	}
	defer rows.Close()

	out := []*domain.FarmingTask{}
	for rows.Next() {
		var (
			t   domain.FarmingTask
			due sql.NullTime
		)
		if err := rows.Scan(&t.ID, &t.FarmerID, &t.Title, &t.Description, &due, &t.Priority, &t.Status, &t.CreatedAt); err != nil {
			return nil, classify("scan task", err)
		}
		if due.Valid {
			t.DueDate = &due.Time
		}
		out = append(out, &t)
	}
	return out, classify("list tasks", rows.Err())
}

func (r *PostgresFarmersRepository) UpdateRecordStatus(ctx context.Context, kind domain.RecordKind, farmerID, recordID, status string) error {
	if !kind.Valid() || !kind.ValidStatus(status) {
		return fmt.Errorf("update %s status %q: %w", kind, status, domain.ErrInvalidArgument)
	}
	// table name comes from the RecordKind whitelist, never from input
	res, err := r.db.ExecContext(ctx,
		`UPDATE `+kind.Table()+` SET status = $3 WHERE id = $1 AND farmer_id = $2`, recordID, farmerID, status)
	if err != nil {
		return classify("update "+string(kind)+" status", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update %s status: %w", kind, domain.ErrNotFound)
	}
	return nil
}

func (r *PostgresFarmersRepository) DeleteRecord(ctx context.Context, kind domain.RecordKind, farmerID, recordID string) error {
	if !kind.Valid() {
		return fmt.Errorf("delete record %q: %w", kind, domain.ErrInvalidArgument)
	}
	return withTx(ctx, r.db, "delete "+string(kind), func(tx *sql.Tx) error {
		if kind == domain.RecordCrop {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM crop_activities WHERE crop_id = $1 AND farmer_id = $2`, recordID, farmerID); err != nil {
				return classify("delete crop activities", err)
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM `+kind.Table()+` WHERE id = $1 AND farmer_id = $2`, recordID, farmerID)
		if err != nil {
			return classify("delete "+string(kind), err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("delete %s: %w", kind, domain.ErrNotFound)
		}
		return nil
	})
}
