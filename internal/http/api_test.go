package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"agrikonek/internal/config"
	"agrikonek/internal/domain"
	"agrikonek/internal/repository"
	"agrikonek/internal/seed"
	"agrikonek/internal/service"
	"agrikonek/internal/store"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type discard struct{}

func (discard) Enqueue(...*domain.Notification) {}

type api struct {
	router *Router
	auth   *Authenticator
	idem   *store.Idempotency
	repos  *repository.Repositories
}

func newAPI(t *testing.T) *api {
	t.Helper()
	repos := repository.NewMemory(repository.NewMemoryDB())
	for _, p := range []*domain.Profile{
		{UserID: "super-1", FullName: "Ana Reyes", Role: domain.RoleSuperadmin},
		{UserID: "farmer-1", FullName: "Maria Santos", Role: domain.RoleFarmer},
	} {
		require.NoError(t, repos.Profiles.UpsertProfile(context.Background(), p))
	}
	return newAPIWith(t, repos)
}

func newAPIWith(t *testing.T, repos *repository.Repositories) *api {
	t.Helper()
	provider, err := seed.Default()
	require.NoError(t, err)

	a := &api{
		router: NewRouter(zap.NewNop()),
		auth:   NewAuthenticator(config.AuthConfig{JWTSecret: testSecret, Issuer: "agrikonek", TokenTTL: time.Hour}),
		idem:   store.NewIdempotency(store.NewMemoryKV(), time.Hour),
		repos:  repos,
	}
	svcs := service.New(repos, provider, discard{}, zap.NewNop())
	a.router.Use(a.auth.Middleware, Provision(svcs.Profiles, zap.NewNop()), Idempotent(a.idem, zap.NewNop()))
	a.router.RegisterAPI(svcs)
	return a
}

func (a *api) token(t *testing.T, userID string, role domain.Role) string {
	t.Helper()
	tok, err := a.auth.Issue(userID, role)
	require.NoError(t, err)
	return tok
}

func (a *api) do(method, path, token string, body any, header ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func envelope(t *testing.T, rec *httptest.ResponseRecorder) Result[json.RawMessage] {
	t.Helper()
	var res Result[json.RawMessage]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res), rec.Body.String())
	return res
}

func TestAuthMiddleware(t *testing.T) {
	a := newAPI(t)

	rec := a.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(http.MethodGet, "/api/v1/notifications", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, ResultError, envelope(t, rec).Code)

	rec = a.do(http.MethodGet, "/api/v1/notifications", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	stale := NewAuthenticator(config.AuthConfig{JWTSecret: testSecret, Issuer: "agrikonek", TokenTTL: time.Minute})
	stale.now = func() time.Time { return time.Now().Add(-time.Hour) }
	rec = a.do(http.MethodGet, "/api/v1/notifications", a.tokenFrom(t, stale), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, ResultTokenExpired, envelope(t, rec).Code)

	foreign := NewAuthenticator(config.AuthConfig{JWTSecret: testSecret, Issuer: "someone-else", TokenTTL: time.Hour})
	rec = a.do(http.MethodGet, "/api/v1/notifications", a.tokenFrom(t, foreign), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(http.MethodGet, "/api/v1/notifications", a.token(t, "farmer-1", domain.RoleFarmer), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ResultSuccess, envelope(t, rec).Code)
}

func (a *api) tokenFrom(t *testing.T, auth *Authenticator) string {
	t.Helper()
	tok, err := auth.Issue("farmer-1", domain.RoleFarmer)
	require.NoError(t, err)
	return tok
}

func TestIssue_RejectsUnknownRole(t *testing.T) {
	a := newAPI(t)
	_, err := a.auth.Issue("u-1", "overlord")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestRegions_RoleGatedAndSourced(t *testing.T) {
	a := newAPI(t)
	super := a.token(t, "super-1", domain.RoleSuperadmin)
	farmer := a.token(t, "farmer-1", domain.RoleFarmer)

	var list domain.Sourced[*domain.Region]
	rec := a.do(http.MethodGet, "/api/v1/regions", farmer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(envelope(t, rec).Result, &list))
	assert.Equal(t, domain.SourceSeed, list.Source, "empty live table falls back to the bundled dataset")
	assert.NotEmpty(t, list.Items)

	body := map[string]string{"code": "iii", "name": "Central Luzon", "island_group_id": "luzon-island"}
	rec = a.do(http.MethodPost, "/api/v1/regions", farmer, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodPost, "/api/v1/regions", super, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var reg domain.Region
	require.NoError(t, json.Unmarshal(envelope(t, rec).Result, &reg))
	assert.Equal(t, "III", reg.Code)

	rec = a.do(http.MethodGet, "/api/v1/regions", farmer, nil)
	require.NoError(t, json.Unmarshal(envelope(t, rec).Result, &list))
	assert.Equal(t, domain.SourceLive, list.Source)
	assert.Len(t, list.Items, 1)

	rec = a.do(http.MethodPost, "/api/v1/regions", super, body)
	assert.Equal(t, http.StatusConflict, rec.Code, "duplicate code")

	rec = a.do(http.MethodPost, "/api/v1/regions", super, map[string]string{"name": "No code"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodDelete, "/api/v1/regions/missing", super, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(http.MethodPatch, "/api/v1/regions", super, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	rec = a.do(http.MethodGet, "/api/v1/regions/a/b/c", super, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIdempotentPost(t *testing.T) {
	a := newAPI(t)
	super := a.token(t, "super-1", domain.RoleSuperadmin)
	body := map[string]string{"code": "XI", "name": "Davao Region", "island_group_id": "mindanao-island"}

	first := a.do(http.MethodPost, "/api/v1/regions", super, body, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusOK, first.Code)

	again := a.do(http.MethodPost, "/api/v1/regions", super, body, "Idempotency-Key", "k-1")
	assert.Equal(t, http.StatusOK, again.Code, "replayed, not a duplicate-code conflict")
	assert.Equal(t, "true", again.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), again.Body.String())

	regions, err := a.repos.Regions.ListRegions(context.Background())
	require.NoError(t, err)
	assert.Len(t, regions, 1)

	// a concurrent holder of the key
	_, err = a.idem.Begin(context.Background(), "super-1:/api/v1/regions", "k-2")
	require.NoError(t, err)
	rec := a.do(http.MethodPost, "/api/v1/regions", super, body, "Idempotency-Key", "k-2")
	assert.Equal(t, http.StatusConflict, rec.Code)

	// keys are per user
	farmer := a.token(t, "farmer-1", domain.RoleFarmer)
	rec = a.do(http.MethodPost, "/api/v1/regions", farmer, body, "Idempotency-Key", "k-1")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestOrganizationAndMembershipFlow(t *testing.T) {
	a := newAPI(t)
	ctx := context.Background()
	super := a.token(t, "super-1", domain.RoleSuperadmin)
	farmer := a.token(t, "farmer-1", domain.RoleFarmer)

	region := &domain.Region{Code: "III", Name: "Central Luzon", IslandGroupID: "luzon-island"}
	require.NoError(t, a.repos.Regions.CreateRegion(ctx, region))
	require.NoError(t, a.repos.Profiles.UpsertProfile(ctx, &domain.Profile{UserID: "admin-1", FullName: "Jose Cruz", Role: domain.RoleOrganizationAdmin, RegionID: &region.ID}))
	admin := a.token(t, "admin-1", domain.RoleOrganizationAdmin)

	rec := a.do(http.MethodPost, "/api/v1/organizations", super, map[string]string{"name": "NE Rice Growers", "region_id": region.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var org domain.Organization
	require.NoError(t, json.Unmarshal(envelope(t, rec).Result, &org))
	assert.Equal(t, domain.OrgPending, org.Status)

	rec = a.do(http.MethodPost, "/api/v1/organizations/"+org.ID+"/admins", super, map[string]string{"user_id": "admin-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(http.MethodGet, "/api/v1/organizations/mine", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(http.MethodPut, "/api/v1/farmer/profile", farmer, map[string]any{"farm_name": "Santos Farm", "farm_size": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(http.MethodPost, "/api/v1/memberships", farmer, map[string]string{"organization_id": org.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var m domain.OrganizationMember
	require.NoError(t, json.Unmarshal(envelope(t, rec).Result, &m))

	rec = a.do(http.MethodPost, "/api/v1/memberships/"+m.ID+"/approve", farmer, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = a.do(http.MethodPost, "/api/v1/memberships/"+m.ID+"/approve", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = a.do(http.MethodPost, "/api/v1/memberships/"+m.ID+"/reject", admin, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(http.MethodGet, "/api/v1/organizations/joined", farmer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var joined domain.Organization
	require.NoError(t, json.Unmarshal(envelope(t, rec).Result, &joined))
	assert.Equal(t, org.ID, joined.ID)

	rec = a.do(http.MethodGet, "/api/v1/conversations/organization/"+org.ID, farmer, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var conv domain.Conversation
	require.NoError(t, json.Unmarshal(envelope(t, rec).Result, &conv))
	rec = a.do(http.MethodPost, fmt.Sprintf("/api/v1/conversations/%s/messages", conv.ID), farmer, map[string]string{"content": "Salamat!"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestProfiles_ProvisionedOnFirstUse(t *testing.T) {
	a := newAPIWith(t, repository.NewMemory(repository.NewMemoryDB()))
	ctx := context.Background()
	super := a.token(t, "super-1", domain.RoleSuperadmin)
	farmer := a.token(t, "farmer-1", domain.RoleFarmer)

	_, err := a.repos.Profiles.GetProfile(ctx, "farmer-1")
	require.ErrorIs(t, err, domain.ErrNotFound)

	rec := a.do(http.MethodGet, "/api/v1/profiles/me", farmer, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var me domain.Profile
	require.NoError(t, json.Unmarshal(envelope(t, rec).Result, &me))
	assert.Equal(t, "farmer-1", me.UserID)
	assert.Equal(t, domain.RoleFarmer, me.Role)

	rec = a.do(http.MethodPut, "/api/v1/profiles/me", farmer, map[string]string{"full_name": "Maria Santos", "email": "maria@example.ph"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(http.MethodGet, "/api/v1/profiles/farmer-1", farmer, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = a.do(http.MethodGet, "/api/v1/profiles/farmer-1", super, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(envelope(t, rec).Result, &me))
	assert.Equal(t, "Maria Santos", me.FullName)

	rec = a.do(http.MethodPut, "/api/v1/profiles/regional-1", super, map[string]string{"role": "regional_admin"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = a.do(http.MethodDelete, "/api/v1/profiles/me", farmer, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	rec = a.do(http.MethodGet, "/api/v1/profiles/me/extra", farmer, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMembershipScenario_OverHTTPFromEmptyStore(t *testing.T) {
	a := newAPIWith(t, repository.NewMemory(repository.NewMemoryDB()))
	super := a.token(t, "super-1", domain.RoleSuperadmin)
	admin := a.token(t, "admin-1", domain.RoleOrganizationAdmin)
	regional := a.token(t, "regional-1", domain.RoleRegionalAdmin)
	farmer := a.token(t, "farmer-1", domain.RoleFarmer)

	rec := a.do(http.MethodPost, "/api/v1/regions", super, map[string]string{"code": "R1", "name": "Ilocos Region", "island_group_id": "luzon-island"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var region domain.Region
	require.NoError(t, json.Unmarshal(envelope(t, rec).Result, &region))

	rec = a.do(http.MethodPut, "/api/v1/profiles/regional-1", super, map[string]string{"role": "regional_admin", "region_id": region.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = a.do(http.MethodGet, "/api/v1/reports/regional-metrics", regional, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(http.MethodPost, "/api/v1/organizations", super, map[string]string{"name": "Ilocos Garlic Growers", "region_id": region.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var org domain.Organization
	require.NoError(t, json.Unmarshal(envelope(t, rec).Result, &org))

	// first request from the admin creates their profile
	rec = a.do(http.MethodGet, "/api/v1/profiles/me", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = a.do(http.MethodPost, "/api/v1/organizations/"+org.ID+"/admins", super, map[string]string{"user_id": "admin-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(http.MethodPut, "/api/v1/farmer/profile", farmer, map[string]any{"farm_name": "Santos Garlic", "farm_size": 1.5})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = a.do(http.MethodPost, "/api/v1/memberships", farmer, map[string]string{"organization_id": org.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var m domain.OrganizationMember
	require.NoError(t, json.Unmarshal(envelope(t, rec).Result, &m))
	assert.Equal(t, domain.MemberPending, m.Status)

	rec = a.do(http.MethodPost, "/api/v1/memberships/"+m.ID+"/approve", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(envelope(t, rec).Result, &m))
	assert.Equal(t, domain.MemberActive, m.Status)

	rec = a.do(http.MethodGet, "/api/v1/organizations/"+org.ID, farmer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(envelope(t, rec).Result, &org))
	assert.Equal(t, 1, org.MemberCount)

	rec = a.do(http.MethodGet, "/api/v1/notifications", farmer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var notes []domain.Notification
	require.NoError(t, json.Unmarshal(envelope(t, rec).Result, &notes))
	assert.Len(t, notes, 1)
}

func TestBudgetExport(t *testing.T) {
	a := newAPI(t)
	super := a.token(t, "super-1", domain.RoleSuperadmin)

	rec := a.do(http.MethodGet, "/api/v1/reports/budget-export?fiscal_year=2025", super, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "FY2025")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")), "xlsx is a zip container")

	rec = a.do(http.MethodGet, "/api/v1/reports/dashboard", a.token(t, "farmer-1", domain.RoleFarmer), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = a.do(http.MethodGet, "/api/v1/reports/nope", super, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("get: %w", domain.ErrNotFound), http.StatusNotFound},
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.ErrInvalidArgument, http.StatusBadRequest},
		{domain.ErrInsufficientFunds, http.StatusUnprocessableEntity},
		{domain.ErrConstraintViolation, http.StatusConflict},
		{domain.ErrInvalidTransition, http.StatusConflict},
		{domain.ErrHasDependents, http.StatusConflict},
		{domain.ErrDuplicateRequest, http.StatusConflict},
		{domain.ErrUnavailable, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestWriteError_HidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, zap.NewNop(), errors.New("pq: password authentication failed for user \"postgres\""))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", envelope(t, rec).Message)
}
