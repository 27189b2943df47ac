package repository

import (
	"context"

	"agrikonek/internal/domain"
)

// NoticeFunc builds the notification written inside a workflow transaction.
// Returning nil skips the notification.
type NoticeFunc func(userID string) *domain.NewNotification

// MemberDecision input of DecideApplication
type MemberDecision struct {
	MemberID string
	Target   domain.MemberStatus // active or rejected
	Notice   func(org *domain.Organization) *domain.NewNotification
}

// MemberDecisionResult what DecideApplication did.
// Changed is false when the application already had the target status.
type MemberDecisionResult struct {
	Member       *domain.OrganizationMember
	Organization *domain.Organization
	FarmerUserID string
	Notification *domain.Notification
	Changed      bool
}

// OrganizationsRepository organizations, admins and membership applications
type OrganizationsRepository interface {
	// ========== organizations ==========
	GetOrganization(ctx context.Context, orgID string) (*domain.Organization, error)
	ListOrganizations(ctx context.Context, filter domain.OrganizationFilter) ([]*domain.Organization, error)
	// CreateOrganization inserts the organization and its group conversation in one transaction
	CreateOrganization(ctx context.Context, org *domain.Organization) error
	UpdateOrganization(ctx context.Context, orgID string, update domain.OrganizationUpdate) (*domain.Organization, error)
	// DeleteOrganization removes admins, then members, then the organization, atomically.
	// Budgets, expenses, requests and the group conversation go with the organization row.
	DeleteOrganization(ctx context.Context, orgID string) error

	// ========== admins ==========
	AssignAdmin(ctx context.Context, orgID, userID string) (*domain.OrganizationAdmin, error)
	ListAdmins(ctx context.Context, orgID string) ([]*domain.OrganizationAdmin, error)
	GetOrganizationByAdmin(ctx context.Context, userID string) (*domain.Organization, error)
	IsAdmin(ctx context.Context, orgID, userID string) (bool, error)

	// ========== membership ==========
	CreateApplication(ctx context.Context, member *domain.OrganizationMember) error
	GetMember(ctx context.Context, memberID string) (*domain.OrganizationMember, error)
	ListMembers(ctx context.Context, orgID string, status domain.MemberStatus) ([]*domain.OrganizationMember, error)
	// ActiveMembership the user's active membership row, ErrNotFound if none
	ActiveMembership(ctx context.Context, userID string) (*domain.OrganizationMember, error)
	IsActiveMember(ctx context.Context, orgID, userID string) (bool, error)
	// DecideApplication moves a pending application to Target in one transaction:
	// status, join_date, member_count, profile organization cache and the farmer's notification.
	DecideApplication(ctx context.Context, decision MemberDecision) (*MemberDecisionResult, error)
}
