package repository

import (
	"context"

	"agrikonek/internal/domain"
)

// FarmersRepository farmer profile plus the per-farmer record tables
type FarmersRepository interface {
	GetFarmerProfileByUser(ctx context.Context, userID string) (*domain.FarmerProfile, error)
	GetFarmerProfile(ctx context.Context, farmerID string) (*domain.FarmerProfile, error)
	// SaveFarmerProfile inserts on first save, updates afterwards; user_id never changes
	SaveFarmerProfile(ctx context.Context, profile *domain.FarmerProfile) error

	CreatePlot(ctx context.Context, plot *domain.FarmPlot) error
	ListPlots(ctx context.Context, farmerID string) ([]*domain.FarmPlot, error)
	CreateCrop(ctx context.Context, crop *domain.Crop) error
	ListCrops(ctx context.Context, farmerID string) ([]*domain.Crop, error)
	CreateActivity(ctx context.Context, activity *domain.CropActivity) error
	ListActivities(ctx context.Context, farmerID, cropID string) ([]*domain.CropActivity, error)
	CreateResource(ctx context.Context, resource *domain.FarmResource) error
	ListResources(ctx context.Context, farmerID string) ([]*domain.FarmResource, error)
	CreateTask(ctx context.Context, task *domain.FarmingTask) error
	ListTasks(ctx context.Context, farmerID string) ([]*domain.FarmingTask, error)

	// UpdateRecordStatus / DeleteRecord are scoped to farmerID; another farmer's row is ErrNotFound
	UpdateRecordStatus(ctx context.Context, kind domain.RecordKind, farmerID, recordID, status string) error
	// DeleteRecord of a crop removes its activities in the same transaction
	DeleteRecord(ctx context.Context, kind domain.RecordKind, farmerID, recordID string) error
}
