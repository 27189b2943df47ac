package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"agrikonek/internal/domain"
	"agrikonek/internal/repository"
)

// ProfileService maps authenticated users to their role, region and organization.
// A profile is provisioned from the session the first time a user is seen.
type ProfileService interface {
	// Provision creates the caller's profile from the session role if it does not exist yet
	Provision(ctx context.Context) error
	GetMyProfile(ctx context.Context) (*domain.Profile, error)
	UpdateMyProfile(ctx context.Context, req UpdateMyProfileRequest) (*domain.Profile, error)

	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
	UpsertProfile(ctx context.Context, userID string, req UpsertProfileRequest) (*domain.Profile, error)
}

type UpdateMyProfileRequest struct {
	FullName string `json:"full_name" validate:"required,max=200"`
	Email    string `json:"email" validate:"omitempty,email,max=254"`
}

// UpsertProfileRequest nil pointers keep the current value, an empty string clears it
type UpsertProfileRequest struct {
	FullName       *string     `json:"full_name,omitempty" validate:"omitempty,max=200"`
	Email          *string     `json:"email,omitempty" validate:"omitempty,max=254"`
	Role           domain.Role `json:"role,omitempty"`
	RegionID       *string     `json:"region_id,omitempty"`
	OrganizationID *string     `json:"organization_id,omitempty"`
}

type profileService struct {
	profiles repository.ProfilesRepository
	regions  repository.RegionsRepository
	orgs     repository.OrganizationsRepository
	access   access
	logger   *zap.Logger

	known sync.Map // user id -> struct{}, already provisioned
}

func NewProfileService(repos *repository.Repositories, logger *zap.Logger) ProfileService {
	return &profileService{
		profiles: repos.Profiles,
		regions:  repos.Regions,
		orgs:     repos.Organizations,
		access:   access{profiles: repos.Profiles, orgs: repos.Organizations},
		logger:   logger,
	}
}

func (s *profileService) ensure(ctx context.Context) (*domain.Profile, error) {
	sess, err := currentSession(ctx)
	if err != nil {
		return nil, err
	}
	p, created, err := s.profiles.CreateProfileIfAbsent(ctx, &domain.Profile{UserID: sess.UserID, Role: sess.Role})
	if err != nil {
		return nil, err
	}
	s.known.Store(sess.UserID, struct{}{})
	if created {
		s.logger.Info("Profile provisioned", zap.String("user_id", sess.UserID), zap.String("role", string(sess.Role)))
	}
	return p, nil
}

// Provision skips the store round trip for users already seen by this process
func (s *profileService) Provision(ctx context.Context) error {
	sess, err := currentSession(ctx)
	if err != nil {
		return err
	}
	if _, ok := s.known.Load(sess.UserID); ok {
		return nil
	}
	_, err = s.ensure(ctx)
	return err
}

func (s *profileService) GetMyProfile(ctx context.Context) (*domain.Profile, error) {
	return s.ensure(ctx)
}

func (s *profileService) UpdateMyProfile(ctx context.Context, req UpdateMyProfileRequest) (*domain.Profile, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	p, err := s.ensure(ctx)
	if err != nil {
		return nil, err
	}
	p.FullName = strings.TrimSpace(req.FullName)
	p.Email = strings.TrimSpace(req.Email)
	if err := s.profiles.UpsertProfile(ctx, p); err != nil {
		s.logger.Error("Failed to update profile", zap.String("user_id", p.UserID), zap.Error(err))
		return nil, err
	}
	return p, nil
}

func (s *profileService) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	if _, err := s.access.superadmin(ctx); err != nil {
		return nil, err
	}
	return s.profiles.GetProfile(ctx, userID)
}

func (s *profileService) UpsertProfile(ctx context.Context, userID string, req UpsertProfileRequest) (*domain.Profile, error) {
	sess, err := s.access.superadmin(ctx)
	if err != nil {
		return nil, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", domain.ErrInvalidArgument)
	}
	if err := check(req); err != nil {
		return nil, err
	}

	p, err := s.profiles.GetProfile(ctx, userID)
	switch {
	case isNotFound(err):
		p = &domain.Profile{UserID: userID}
	case err != nil:
		return nil, err
	}

	if req.Role != "" {
		p.Role = req.Role
	}
	if !p.Role.Valid() {
		return nil, fmt.Errorf("%w: role %q", domain.ErrInvalidArgument, p.Role)
	}
	if req.FullName != nil {
		p.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		if email != "" {
			if err := v().Var(email, "email"); err != nil {
				return nil, fmt.Errorf("%w: invalid email", domain.ErrInvalidArgument)
			}
		}
		p.Email = email
	}

	if req.RegionID != nil {
		p.RegionID = nil
		if id := strings.TrimSpace(*req.RegionID); id != "" {
			reg, err := s.regions.GetRegion(ctx, id)
			if err != nil {
				if isNotFound(err) {
					return nil, fmt.Errorf("%w: unknown region %q", domain.ErrInvalidArgument, id)
				}
				return nil, err
			}
			p.RegionID = &reg.ID
		}
	}
	if p.Role == domain.RoleRegionalAdmin && p.RegionID == nil {
		return nil, fmt.Errorf("%w: a regional admin needs a region", domain.ErrInvalidArgument)
	}

	if req.OrganizationID != nil {
		p.OrganizationID = nil
		if id := strings.TrimSpace(*req.OrganizationID); id != "" {
			if err := s.belongs(ctx, id, userID); err != nil {
				return nil, err
			}
			p.OrganizationID = &id
		}
	}

	if err := s.profiles.UpsertProfile(ctx, p); err != nil {
		s.logger.Error("Failed to upsert profile", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	s.known.Store(userID, struct{}{})
	s.logger.Info("Profile updated",
		zap.String("user_id", userID),
		zap.String("role", string(p.Role)),
		zap.String("by", sess.UserID),
	)
	return p, nil
}

// belongs the organization cache may only point at an organization the user administers or is an active member of
func (s *profileService) belongs(ctx context.Context, orgID, userID string) error {
	if _, err := s.orgs.GetOrganization(ctx, orgID); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: unknown organization %q", domain.ErrInvalidArgument, orgID)
		}
		return err
	}
	admin, err := s.orgs.IsAdmin(ctx, orgID, userID)
	if err != nil {
		return err
	}
	if admin {
		return nil
	}
	member, err := s.orgs.IsActiveMember(ctx, orgID, userID)
	if err != nil {
		return err
	}
	if !member {
		return fmt.Errorf("%w: user is neither an admin nor an active member of %s", domain.ErrInvalidArgument, orgID)
	}
	return nil
}
