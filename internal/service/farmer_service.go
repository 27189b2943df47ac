package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"agrikonek/internal/domain"
	"agrikonek/internal/repository"
)

// FarmerService the caller's own farmer profile and farm records.
// Every record operation is scoped to the farmer profile of the session user.
type FarmerService interface {
	GetFarmerProfile(ctx context.Context) (*domain.FarmerProfile, error)
	SaveFarmerProfile(ctx context.Context, req SaveFarmerProfileRequest) (*domain.FarmerProfile, error)

	CreatePlot(ctx context.Context, plot *domain.FarmPlot) error
	ListPlots(ctx context.Context) ([]*domain.FarmPlot, error)
	CreateCrop(ctx context.Context, crop *domain.Crop) error
	ListCrops(ctx context.Context) ([]*domain.Crop, error)
	CreateActivity(ctx context.Context, activity *domain.CropActivity) error
	ListActivities(ctx context.Context, cropID string) ([]*domain.CropActivity, error)
	CreateResource(ctx context.Context, resource *domain.FarmResource) error
	ListResources(ctx context.Context) ([]*domain.FarmResource, error)
	CreateTask(ctx context.Context, task *domain.FarmingTask) error
	ListTasks(ctx context.Context) ([]*domain.FarmingTask, error)

	UpdateRecordStatus(ctx context.Context, kind domain.RecordKind, recordID, status string) error
	DeleteRecord(ctx context.Context, kind domain.RecordKind, recordID string) error
}

type SaveFarmerProfileRequest struct {
	ProvinceID          *string  `json:"province_id,omitempty"`
	FarmName            string   `json:"farm_name" validate:"required,max=200"`
	FarmSize            float64  `json:"farm_size" validate:"gte=0"`
	FarmAddress         string   `json:"farm_address" validate:"max=500"`
	YearsOfExperience   int      `json:"years_of_experience" validate:"gte=0,lte=100"`
	MainCrops           []string `json:"main_crops" validate:"max=20,dive,required,max=64"`
	FarmType            string   `json:"farm_type" validate:"max=64"`
	CertificationStatus string   `json:"certification_status" validate:"max=64"`
}

type farmerService struct {
	farmers repository.FarmersRepository
	logger  *zap.Logger
}

func NewFarmerService(repos *repository.Repositories, logger *zap.Logger) FarmerService {
	return &farmerService{farmers: repos.Farmers, logger: logger}
}

// owner the caller's farmer profile; callers without one get ErrNotFound
func (s *farmerService) owner(ctx context.Context) (*domain.FarmerProfile, error) {
	sess, err := currentSession(ctx)
	if err != nil {
		return nil, err
	}
	return s.farmers.GetFarmerProfileByUser(ctx, sess.UserID)
}

func (s *farmerService) GetFarmerProfile(ctx context.Context) (*domain.FarmerProfile, error) {
	return s.owner(ctx)
}

func (s *farmerService) SaveFarmerProfile(ctx context.Context, req SaveFarmerProfileRequest) (*domain.FarmerProfile, error) {
	sess, err := currentSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := check(req); err != nil {
		return nil, err
	}
	crops := make([]string, 0, len(req.MainCrops))
	for _, c := range req.MainCrops {
		crops = append(crops, strings.ToLower(strings.TrimSpace(c)))
	}
	p := &domain.FarmerProfile{
		UserID:              sess.UserID,
		ProvinceID:          req.ProvinceID,
		FarmName:            strings.TrimSpace(req.FarmName),
		FarmSize:            req.FarmSize,
		FarmAddress:         req.FarmAddress,
		YearsOfExperience:   req.YearsOfExperience,
		MainCrops:           crops,
		FarmType:            req.FarmType,
		CertificationStatus: req.CertificationStatus,
	}
	if err := s.farmers.SaveFarmerProfile(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Debug("Farmer profile saved", zap.String("farmer_id", p.ID), zap.String("user_id", p.UserID))
	return p, nil
}

func (s *farmerService) CreatePlot(ctx context.Context, plot *domain.FarmPlot) error {
	f, err := s.owner(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(plot.Name) == "" || plot.AreaHectares < 0 {
		return fmt.Errorf("%w: plot needs a name and a non-negative area", domain.ErrInvalidArgument)
	}
	if err := statusAllowed(domain.RecordPlot, plot.Status); err != nil {
		return err
	}
	plot.FarmerID = f.ID
	return s.farmers.CreatePlot(ctx, plot)
}

func (s *farmerService) ListPlots(ctx context.Context) ([]*domain.FarmPlot, error) {
	f, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	return s.farmers.ListPlots(ctx, f.ID)
}

func (s *farmerService) CreateCrop(ctx context.Context, crop *domain.Crop) error {
	f, err := s.owner(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(crop.Name) == "" {
		return fmt.Errorf("%w: crop name is required", domain.ErrInvalidArgument)
	}
	if crop.PlantingDate != nil && crop.ExpectedHarvestDate != nil && crop.ExpectedHarvestDate.Before(*crop.PlantingDate) {
		return fmt.Errorf("%w: harvest date before planting date", domain.ErrInvalidArgument)
	}
	if err := statusAllowed(domain.RecordCrop, crop.Status); err != nil {
		return err
	}
	crop.FarmerID = f.ID
	return s.farmers.CreateCrop(ctx, crop)
}

func (s *farmerService) ListCrops(ctx context.Context) ([]*domain.Crop, error) {
	f, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	return s.farmers.ListCrops(ctx, f.ID)
}

func (s *farmerService) CreateActivity(ctx context.Context, a *domain.CropActivity) error {
	f, err := s.owner(ctx)
	if err != nil {
		return err
	}
	if a.CropID == "" || strings.TrimSpace(a.ActivityType) == "" {
		return fmt.Errorf("%w: activity needs a crop and a type", domain.ErrInvalidArgument)
	}
	if err := statusAllowed(domain.RecordActivity, a.Status); err != nil {
		return err
	}
	a.FarmerID = f.ID
	return s.farmers.CreateActivity(ctx, a)
}

func (s *farmerService) ListActivities(ctx context.Context, cropID string) ([]*domain.CropActivity, error) {
	f, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	return s.farmers.ListActivities(ctx, f.ID, cropID)
}

func (s *farmerService) CreateResource(ctx context.Context, r *domain.FarmResource) error {
	f, err := s.owner(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(r.Name) == "" || r.Quantity < 0 {
		return fmt.Errorf("%w: resource needs a name and a non-negative quantity", domain.ErrInvalidArgument)
	}
	if err := statusAllowed(domain.RecordResource, r.Status); err != nil {
		return err
	}
	r.FarmerID = f.ID
	return s.farmers.CreateResource(ctx, r)
}

func (s *farmerService) ListResources(ctx context.Context) ([]*domain.FarmResource, error) {
	f, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	return s.farmers.ListResources(ctx, f.ID)
}

func (s *farmerService) CreateTask(ctx context.Context, t *domain.FarmingTask) error {
	f, err := s.owner(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("%w: task title is required", domain.ErrInvalidArgument)
	}
	if err := statusAllowed(domain.RecordTask, t.Status); err != nil {
		return err
	}
	t.FarmerID = f.ID
	return s.farmers.CreateTask(ctx, t)
}

func (s *farmerService) ListTasks(ctx context.Context) ([]*domain.FarmingTask, error) {
	f, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	return s.farmers.ListTasks(ctx, f.ID)
}

func (s *farmerService) UpdateRecordStatus(ctx context.Context, kind domain.RecordKind, recordID, status string) error {
	f, err := s.owner(ctx)
	if err != nil {
		return err
	}
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown record kind %q", domain.ErrInvalidArgument, kind)
	}
	if status == "" {
		return fmt.Errorf("%w: status is required", domain.ErrInvalidArgument)
	}
	if err := statusAllowed(kind, status); err != nil {
		return err
	}
	return s.farmers.UpdateRecordStatus(ctx, kind, f.ID, recordID, status)
}

func (s *farmerService) DeleteRecord(ctx context.Context, kind domain.RecordKind, recordID string) error {
	f, err := s.owner(ctx)
	if err != nil {
		return err
	}
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown record kind %q", domain.ErrInvalidArgument, kind)
	}
	return s.farmers.DeleteRecord(ctx, kind, f.ID, recordID)
}

// statusAllowed empty means the repository default
func statusAllowed(kind domain.RecordKind, status string) error {
	if status == "" || kind.ValidStatus(status) {
		return nil
	}
	return fmt.Errorf("%w: status %q is not valid for %s", domain.ErrInvalidArgument, status, kind)
}
