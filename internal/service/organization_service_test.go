package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrikonek/internal/domain"
)

func TestCreateOrganization_Defaults(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t, domain.OrgPending, e.org.Status)
	assert.Equal(t, domain.VerificationUnverified, e.org.VerificationStatus)

	_, err := e.svc.Organizations.CreateOrganization(orgAdmin(), CreateOrganizationRequest{Name: "X", RegionID: e.region.ID})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = e.svc.Organizations.CreateOrganization(super(), CreateOrganizationRequest{Name: "X", RegionID: e.region.ID, ContactEmail: "not-an-email"})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	// the group conversation exists from the start
	conv, err := e.svc.Messages.OrganizationConversation(orgAdmin(), e.org.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ConversationOrganization, conv.Kind)
}

func TestMembershipWorkflow_Approve(t *testing.T) {
	e := newEnv(t)

	_, err := e.svc.Organizations.GetOrganizationForMember(farmer())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	m, err := e.svc.Organizations.ApplyToOrganization(farmer(), ApplyRequest{OrganizationID: e.org.ID, ApplicationReason: "I grow rice"})
	require.NoError(t, err)
	assert.Equal(t, domain.MemberPending, m.Status)

	_, err = e.svc.Organizations.ApplyToOrganization(farmer(), ApplyRequest{OrganizationID: e.org.ID})
	assert.ErrorIs(t, err, domain.ErrConstraintViolation, "open application exists")

	_, err = e.svc.Organizations.ApproveApplication(farmer2(), m.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	approved, err := e.svc.Organizations.ApproveApplication(orgAdmin(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MemberActive, approved.Status)
	require.NotNil(t, approved.JoinDate)
	assert.Equal(t, []string{"farmer-1"}, e.sent.users())

	org, err := e.svc.Organizations.GetOrganization(farmer(), e.org.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, org.MemberCount)

	mine, err := e.svc.Organizations.GetOrganizationForMember(farmer())
	require.NoError(t, err)
	assert.Equal(t, e.org.ID, mine.ID)

	p, err := e.repos.Profiles.GetProfile(context.Background(), "farmer-1")
	require.NoError(t, err)
	require.NotNil(t, p.OrganizationID)
	assert.Equal(t, e.org.ID, *p.OrganizationID)

	notes, err := e.svc.Notifications.ListNotifications(farmer(), true, 0)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, domain.CategorySystem, notes[0].Category)

	// idempotent approve; no second notification
	again, err := e.svc.Organizations.ApproveApplication(orgAdmin(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MemberActive, again.Status)
	assert.Len(t, e.sent.users(), 1)
	org, _ = e.svc.Organizations.GetOrganization(farmer(), e.org.ID)
	assert.Equal(t, 1, org.MemberCount)

	_, err = e.svc.Organizations.RejectApplication(orgAdmin(), m.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestMembershipWorkflow_Reject(t *testing.T) {
	e := newEnv(t)
	m, err := e.svc.Organizations.ApplyToOrganization(farmer(), ApplyRequest{OrganizationID: e.org.ID})
	require.NoError(t, err)

	rejected, err := e.svc.Organizations.RejectApplication(super(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MemberRejected, rejected.Status)
	assert.Nil(t, rejected.JoinDate)

	_, err = e.svc.Organizations.RejectApplication(super(), m.ID)
	require.NoError(t, err)
	_, err = e.svc.Organizations.ApproveApplication(super(), m.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	org, _ := e.svc.Organizations.GetOrganization(super(), e.org.ID)
	assert.Equal(t, 0, org.MemberCount)
	assert.Len(t, e.sent.users(), 1)

	// a rejected farmer may apply again
	_, err = e.svc.Organizations.ApplyToOrganization(farmer(), ApplyRequest{OrganizationID: e.org.ID})
	require.NoError(t, err)
}

func TestApply_RequiresFarmerProfile(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.Organizations.ApplyToOrganization(regional(), ApplyRequest{OrganizationID: e.org.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestListMembers_Access(t *testing.T) {
	e := newEnv(t)
	e.join(t)

	for name, ctx := range map[string]context.Context{
		"superadmin": super(), "org admin": orgAdmin(), "regional admin": regional(), "member": farmer(),
	} {
		members, err := e.svc.Organizations.ListMembers(ctx, e.org.ID, domain.MemberActive)
		require.NoError(t, err, name)
		assert.Len(t, members, 1, name)
	}
	_, err := e.svc.Organizations.ListMembers(farmer2(), e.org.ID, "")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = e.svc.Organizations.ListMembers(outsider(), e.org.ID, "")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestUpdateOrganization(t *testing.T) {
	e := newEnv(t)
	name := "NE Rice Growers Coop"
	org, err := e.svc.Organizations.UpdateOrganization(orgAdmin(), e.org.ID, domain.OrganizationUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, org.Name)

	active := domain.OrgActive
	_, err = e.svc.Organizations.UpdateOrganization(orgAdmin(), e.org.ID, domain.OrganizationUpdate{Status: &active})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = e.svc.Organizations.UpdateOrganization(orgAdmin(), e.org.ID, domain.OrganizationUpdate{})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	org, err = e.svc.Organizations.SetOrganizationStatus(super(), e.org.ID, domain.OrgActive)
	require.NoError(t, err)
	assert.Equal(t, domain.OrgActive, org.Status)
	_, err = e.svc.Organizations.SetOrganizationStatus(super(), e.org.ID, "archived")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	byAdmin, err := e.svc.Organizations.GetOrganizationByAdmin(orgAdmin())
	require.NoError(t, err)
	assert.Equal(t, e.org.ID, byAdmin.ID)
}

func TestListOrganizations_RegionalScope(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.Organizations.CreateOrganization(super(), CreateOrganizationRequest{Name: "Davao Banana Growers", RegionID: e.other.ID})
	require.NoError(t, err)

	all, err := e.svc.Organizations.ListOrganizations(super(), domain.OrganizationFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := e.svc.Organizations.ListOrganizations(regional(), domain.OrganizationFilter{RegionID: e.other.ID})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, e.org.ID, mine[0].ID)
}

func TestDeleteOrganization(t *testing.T) {
	e := newEnv(t)
	e.join(t)

	assert.ErrorIs(t, e.svc.Organizations.DeleteOrganization(orgAdmin(), e.org.ID), domain.ErrForbidden)
	require.NoError(t, e.svc.Organizations.DeleteOrganization(super(), e.org.ID))

	_, err := e.svc.Organizations.GetOrganization(super(), e.org.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = e.svc.Organizations.GetOrganizationForMember(farmer())
	assert.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, e.svc.Regions.DeleteRegion(super(), e.region.ID))
}
