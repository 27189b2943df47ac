package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"agrikonek/internal/domain"
	"agrikonek/internal/repository"
)

// OrganizationService organizations, their admins and the membership workflow
type OrganizationService interface {
	GetOrganization(ctx context.Context, orgID string) (*domain.Organization, error)
	ListOrganizations(ctx context.Context, filter domain.OrganizationFilter) ([]*domain.Organization, error)
	CreateOrganization(ctx context.Context, req CreateOrganizationRequest) (*domain.Organization, error)
	UpdateOrganization(ctx context.Context, orgID string, update domain.OrganizationUpdate) (*domain.Organization, error)
	SetOrganizationStatus(ctx context.Context, orgID string, status domain.OrganizationStatus) (*domain.Organization, error)
	DeleteOrganization(ctx context.Context, orgID string) error

	AssignOrganizationAdmin(ctx context.Context, orgID, userID string) (*domain.OrganizationAdmin, error)
	GetOrganizationByAdmin(ctx context.Context) (*domain.Organization, error)
	GetOrganizationForMember(ctx context.Context) (*domain.Organization, error)
	ListMembers(ctx context.Context, orgID string, status domain.MemberStatus) ([]*domain.OrganizationMember, error)

	ApplyToOrganization(ctx context.Context, req ApplyRequest) (*domain.OrganizationMember, error)
	ApproveApplication(ctx context.Context, memberID string) (*domain.OrganizationMember, error)
	RejectApplication(ctx context.Context, memberID string) (*domain.OrganizationMember, error)
}

type CreateOrganizationRequest struct {
	Name               string  `json:"name" validate:"required,max=200"`
	RegionID           string  `json:"region_id" validate:"required"`
	ProvinceID         *string `json:"province_id,omitempty"`
	RegistrationNumber string  `json:"registration_number" validate:"max=64"`
	Address            string  `json:"address" validate:"max=500"`
	ContactPerson      string  `json:"contact_person" validate:"max=200"`
	ContactEmail       string  `json:"contact_email" validate:"omitempty,email"`
	ContactPhone       string  `json:"contact_phone" validate:"max=32"`
}

type ApplyRequest struct {
	OrganizationID    string `json:"organization_id" validate:"required"`
	ApplicationReason string `json:"application_reason" validate:"max=2000"`
	ExperienceLevel   string `json:"experience_level" validate:"max=64"`
	FarmDescription   string `json:"farm_description" validate:"max=2000"`
}

type organizationService struct {
	orgs     repository.OrganizationsRepository
	profiles repository.ProfilesRepository
	farmers  repository.FarmersRepository
	access   access
	notifier Notifier
	logger   *zap.Logger
}

func NewOrganizationService(repos *repository.Repositories, notifier Notifier, logger *zap.Logger) OrganizationService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &organizationService{
		orgs:     repos.Organizations,
		profiles: repos.Profiles,
		farmers:  repos.Farmers,
		access:   access{profiles: repos.Profiles, orgs: repos.Organizations},
		notifier: notifier,
		logger:   logger,
	}
}

func (s *organizationService) GetOrganization(ctx context.Context, orgID string) (*domain.Organization, error) {
	if _, err := currentSession(ctx); err != nil {
		return nil, err
	}
	return s.orgs.GetOrganization(ctx, orgID)
}

// ListOrganizations regional admins only see their own region
func (s *organizationService) ListOrganizations(ctx context.Context, filter domain.OrganizationFilter) ([]*domain.Organization, error) {
	sess, err := currentSession(ctx)
	if err != nil {
		return nil, err
	}
	if sess.Role == domain.RoleRegionalAdmin {
		p, err := s.profiles.GetProfile(ctx, sess.UserID)
		if err != nil {
			return nil, err
		}
		if p.RegionID == nil {
			return []*domain.Organization{}, nil
		}
		filter.RegionID = *p.RegionID
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: status %q", domain.ErrInvalidArgument, filter.Status)
	}
	filter.Search = strings.TrimSpace(filter.Search)
	return s.orgs.ListOrganizations(ctx, filter)
}

func (s *organizationService) CreateOrganization(ctx context.Context, req CreateOrganizationRequest) (*domain.Organization, error) {
	sess, err := s.access.superadmin(ctx)
	if err != nil {
		return nil, err
	}
	if err := check(req); err != nil {
		return nil, err
	}
	org := &domain.Organization{
		Name:               strings.TrimSpace(req.Name),
		RegionID:           req.RegionID,
		ProvinceID:         req.ProvinceID,
		RegistrationNumber: req.RegistrationNumber,
		Address:            req.Address,
		ContactPerson:      req.ContactPerson,
		ContactEmail:       req.ContactEmail,
		ContactPhone:       req.ContactPhone,
		Status:             domain.OrgPending,
		VerificationStatus: domain.VerificationUnverified,
	}
	if err := s.orgs.CreateOrganization(ctx, org); err != nil {
		return nil, err
	}
	s.logger.Info("Organization created",
		zap.String("organization_id", org.ID),
		zap.String("region_id", org.RegionID),
		zap.String("by", sess.UserID),
	)
	return org, nil
}

// UpdateOrganization status and verification changes are superadmin-only
func (s *organizationService) UpdateOrganization(ctx context.Context, orgID string, u domain.OrganizationUpdate) (*domain.Organization, error) {
	sess, err := s.access.orgAdmin(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if u.Empty() {
		return nil, fmt.Errorf("%w: nothing to update", domain.ErrInvalidArgument)
	}
	if (u.Status != nil || u.VerificationStatus != nil) && !sess.IsSuperadmin() {
		return nil, fmt.Errorf("%w: status changes are superadmin only", domain.ErrForbidden)
	}
	if u.Status != nil && !u.Status.Valid() {
		return nil, fmt.Errorf("%w: status %q", domain.ErrInvalidArgument, *u.Status)
	}
	if u.VerificationStatus != nil && !u.VerificationStatus.Valid() {
		return nil, fmt.Errorf("%w: verification status %q", domain.ErrInvalidArgument, *u.VerificationStatus)
	}
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return nil, fmt.Errorf("%w: name cannot be empty", domain.ErrInvalidArgument)
	}
	return s.orgs.UpdateOrganization(ctx, orgID, u)
}

func (s *organizationService) SetOrganizationStatus(ctx context.Context, orgID string, status domain.OrganizationStatus) (*domain.Organization, error) {
	if _, err := s.access.superadmin(ctx); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: status %q", domain.ErrInvalidArgument, status)
	}
	org, err := s.orgs.UpdateOrganization(ctx, orgID, domain.OrganizationUpdate{Status: &status})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Organization status changed", zap.String("organization_id", orgID), zap.String("status", string(status)))
	return org, nil
}

func (s *organizationService) DeleteOrganization(ctx context.Context, orgID string) error {
	sess, err := s.access.superadmin(ctx)
	if err != nil {
		return err
	}
	if err := s.orgs.DeleteOrganization(ctx, orgID); err != nil {
		s.logger.Error("Failed to delete organization", zap.String("organization_id", orgID), zap.Error(err))
		return err
	}
	s.logger.Info("Organization deleted", zap.String("organization_id", orgID), zap.String("by", sess.UserID))
	return nil
}

func (s *organizationService) AssignOrganizationAdmin(ctx context.Context, orgID, userID string) (*domain.OrganizationAdmin, error) {
	if _, err := s.access.superadmin(ctx); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", domain.ErrInvalidArgument)
	}
	if _, err := s.profiles.GetProfile(ctx, userID); err != nil {
		return nil, err
	}
	return s.orgs.AssignAdmin(ctx, orgID, userID)
}

func (s *organizationService) GetOrganizationByAdmin(ctx context.Context) (*domain.Organization, error) {
	sess, err := currentSession(ctx)
	if err != nil {
		return nil, err
	}
	return s.orgs.GetOrganizationByAdmin(ctx, sess.UserID)
}

// GetOrganizationForMember profile cache first, then the authoritative active membership
func (s *organizationService) GetOrganizationForMember(ctx context.Context) (*domain.Organization, error) {
	sess, err := currentSession(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.profiles.GetProfile(ctx, sess.UserID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if p != nil && p.OrganizationID != nil {
		ok, err := s.orgs.IsActiveMember(ctx, *p.OrganizationID, sess.UserID)
		if err != nil {
			return nil, err
		}
		if ok {
			return s.orgs.GetOrganization(ctx, *p.OrganizationID)
		}
		s.logger.Debug("Stale organization cache on profile", zap.String("user_id", sess.UserID))
	}
	m, err := s.orgs.ActiveMembership(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	return s.orgs.GetOrganization(ctx, m.OrganizationID)
}

func (s *organizationService) ListMembers(ctx context.Context, orgID string, status domain.MemberStatus) ([]*domain.OrganizationMember, error) {
	org, err := s.orgs.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.orgReader(ctx, org); err != nil {
		return nil, err
	}
	switch status {
	case "", domain.MemberPending, domain.MemberActive, domain.MemberRejected:
	default:
		return nil, fmt.Errorf("%w: status %q", domain.ErrInvalidArgument, status)
	}
	return s.orgs.ListMembers(ctx, orgID, status)
}

func (s *organizationService) ApplyToOrganization(ctx context.Context, req ApplyRequest) (*domain.OrganizationMember, error) {
	sess, err := currentSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := check(req); err != nil {
		return nil, err
	}
	farmer, err := s.farmers.GetFarmerProfileByUser(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: save a farmer profile before applying", domain.ErrInvalidArgument)
		}
		return nil, err
	}
	org, err := s.orgs.GetOrganization(ctx, req.OrganizationID)
	if err != nil {
		return nil, err
	}
	if org.Status == domain.OrgSuspended || org.Status == domain.OrgInactive {
		return nil, fmt.Errorf("%w: organization is %s", domain.ErrInvalidArgument, org.Status)
	}
	m := &domain.OrganizationMember{
		FarmerID:          farmer.ID,
		OrganizationID:    org.ID,
		Role:              "member",
		ApplicationReason: strings.TrimSpace(req.ApplicationReason),
		ExperienceLevel:   req.ExperienceLevel,
		FarmDescription:   req.FarmDescription,
	}
	if err := s.orgs.CreateApplication(ctx, m); err != nil {
		return nil, err
	}
	s.logger.Info("Membership application submitted",
		zap.String("member_id", m.ID),
		zap.String("organization_id", org.ID),
		zap.String("user_id", sess.UserID),
	)
	return m, nil
}

func (s *organizationService) ApproveApplication(ctx context.Context, memberID string) (*domain.OrganizationMember, error) {
	return s.decide(ctx, memberID, domain.MemberActive)
}

func (s *organizationService) RejectApplication(ctx context.Context, memberID string) (*domain.OrganizationMember, error) {
	return s.decide(ctx, memberID, domain.MemberRejected)
}

func (s *organizationService) decide(ctx context.Context, memberID string, target domain.MemberStatus) (*domain.OrganizationMember, error) {
	m, err := s.orgs.GetMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	sess, err := s.access.orgAdmin(ctx, m.OrganizationID)
	if err != nil {
		return nil, err
	}
	res, err := s.orgs.DecideApplication(ctx, repository.MemberDecision{
		MemberID: memberID,
		Target:   target,
		Notice:   membershipNotice(target),
	})
	if err != nil {
		return nil, err
	}
	if res.Changed {
		s.notifier.Enqueue(res.Notification)
		s.logger.Info("Membership application decided",
			zap.String("member_id", memberID),
			zap.String("organization_id", m.OrganizationID),
			zap.String("status", string(target)),
			zap.String("by", sess.UserID),
		)
	}
	return res.Member, nil
}

func membershipNotice(target domain.MemberStatus) func(org *domain.Organization) *domain.NewNotification {
	return func(org *domain.Organization) *domain.NewNotification {
		link := "/organizations/" + org.ID
		n := &domain.NewNotification{
			Category: domain.CategorySystem,
			Priority: domain.NotifyHigh,
			Link:     &link,
		}
		if target == domain.MemberActive {
			n.Title = "Membership approved"
			n.Message = fmt.Sprintf("Your application to %s has been approved. Welcome!", org.Name)
		} else {
			n.Title = "Membership application declined"
			n.Message = fmt.Sprintf("Your application to %s was not approved.", org.Name)
			n.Priority = domain.NotifyMedium
		}
		return n
	}
}
