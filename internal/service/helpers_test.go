package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"agrikonek/internal/domain"
	"agrikonek/internal/repository"
	"agrikonek/internal/seed"
)

// recorder collects what the services hand to the dispatcher
type recorder struct {
	mu  sync.Mutex
	got []*domain.Notification
}

func (r *recorder) Enqueue(ns ...*domain.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range ns {
		if n != nil {
			r.got = append(r.got, n)
		}
	}
}

func (r *recorder) users() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.got))
	for _, n := range r.got {
		out = append(out, n.UserID)
	}
	return out
}

type env struct {
	db    *repository.MemoryDB
	repos *repository.Repositories
	svc   *Services
	sent  *recorder

	region *domain.Region
	other  *domain.Region
	org    *domain.Organization
}

func as(userID string, role domain.Role) context.Context {
	return domain.WithSession(context.Background(), domain.Session{UserID: userID, Role: role})
}

var (
	super    = func() context.Context { return as("super-1", domain.RoleSuperadmin) }
	regional = func() context.Context { return as("regional-1", domain.RoleRegionalAdmin) }
	outsider = func() context.Context { return as("regional-2", domain.RoleRegionalAdmin) }
	orgAdmin = func() context.Context { return as("admin-1", domain.RoleOrganizationAdmin) }
	farmer   = func() context.Context { return as("farmer-1", domain.RoleFarmer) }
	farmer2  = func() context.Context { return as("farmer-2", domain.RoleFarmer) }
)

// newEnv two regions, one organization administered by admin-1 and two farmers with profiles
func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	db := repository.NewMemoryDB()
	repos := repository.NewMemory(db)
	provider, err := seed.Default()
	require.NoError(t, err)

	e := &env{db: db, repos: repos, sent: &recorder{}}
	e.svc = New(repos, provider, e.sent, zap.NewNop())

	e.region = &domain.Region{Code: "III", Name: "Central Luzon", IslandGroupID: "luzon-island", Priority: domain.PriorityHigh}
	require.NoError(t, repos.Regions.CreateRegion(ctx, e.region))
	e.other = &domain.Region{Code: "XI", Name: "Davao Region", IslandGroupID: "mindanao-island", Priority: domain.PriorityMedium}
	require.NoError(t, repos.Regions.CreateRegion(ctx, e.other))

	in, out := e.region.ID, e.other.ID
	for _, p := range []*domain.Profile{
		{UserID: "super-1", FullName: "Ana Reyes", Email: "ana@da.gov.ph", Role: domain.RoleSuperadmin},
		{UserID: "regional-1", FullName: "Ben Dizon", Email: "ben@da.gov.ph", Role: domain.RoleRegionalAdmin, RegionID: &in},
		{UserID: "regional-2", FullName: "Carla Uy", Email: "carla@da.gov.ph", Role: domain.RoleRegionalAdmin, RegionID: &out},
		{UserID: "admin-1", FullName: "Jose Cruz", Email: "jose@coop.ph", Role: domain.RoleOrganizationAdmin, RegionID: &in},
		{UserID: "farmer-1", FullName: "Maria Santos", Email: "maria@example.ph", Role: domain.RoleFarmer, RegionID: &in},
		{UserID: "farmer-2", FullName: "Pedro Lim", Email: "pedro@example.ph", Role: domain.RoleFarmer, RegionID: &out},
	} {
		require.NoError(t, repos.Profiles.UpsertProfile(ctx, p))
	}

	e.org, err = e.svc.Organizations.CreateOrganization(super(), CreateOrganizationRequest{
		Name: "Nueva Ecija Rice Growers", RegionID: e.region.ID, ContactEmail: "office@nerg.ph",
	})
	require.NoError(t, err)
	_, err = e.svc.Organizations.AssignOrganizationAdmin(super(), e.org.ID, "admin-1")
	require.NoError(t, err)

	for _, ctx := range []context.Context{farmer(), farmer2()} {
		_, err = e.svc.Farmers.SaveFarmerProfile(ctx, SaveFarmerProfileRequest{FarmName: "Farm", FarmSize: 2.5, MainCrops: []string{"Rice"}})
		require.NoError(t, err)
	}
	return e
}

// join farmer-1 applies and admin-1 approves
func (e *env) join(t *testing.T) *domain.OrganizationMember {
	t.Helper()
	m, err := e.svc.Organizations.ApplyToOrganization(farmer(), ApplyRequest{OrganizationID: e.org.ID, ApplicationReason: "rice"})
	require.NoError(t, err)
	m, err = e.svc.Organizations.ApproveApplication(orgAdmin(), m.ID)
	require.NoError(t, err)
	return m
}
