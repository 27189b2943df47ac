package repository

import (
	"context"

	"agrikonek/internal/domain"
)

// ProfilesRepository user -> role/region/organization mapping
type ProfilesRepository interface {
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
	UpsertProfile(ctx context.Context, profile *domain.Profile) error
	// CreateProfileIfAbsent inserts profile unless the user already has one; returns the stored row
	CreateProfileIfAbsent(ctx context.Context, profile *domain.Profile) (*domain.Profile, bool, error)
	// ListProfilesByRegion everyone mapped to the region (budget notifications fan out to these)
	ListProfilesByRegion(ctx context.Context, regionID string) ([]*domain.Profile, error)
}
