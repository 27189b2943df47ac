//go:build integration

package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"agrikonek/internal/config"
	"agrikonek/internal/domain"
	"agrikonek/internal/platform/database"
)

const integrationYear = 2099

// setupTestDB connects with the process configuration and applies migrations
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg := config.Load()
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		t.Skipf("Skipping integration test: database not available: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	_, err = database.Migrate(ctx, db, zap.NewNop())
	require.NoError(t, err)
	return db
}

func createTestOrganization(t *testing.T, repos *Repositories) (*domain.Region, *domain.Organization) {
	t.Helper()
	ctx := context.Background()
	region := &domain.Region{
		Code:          "T" + strings.ToUpper(uuid.NewString()[:6]),
		Name:          "Integration Region",
		IslandGroupID: "luzon-island",
	}
	require.NoError(t, repos.Regions.CreateRegion(ctx, region))
	org := &domain.Organization{Name: "Integration Coop " + region.Code, RegionID: region.ID}
	require.NoError(t, repos.Organizations.CreateOrganization(ctx, org))

	t.Cleanup(func() {
		_ = repos.Organizations.DeleteOrganization(ctx, org.ID)
		_ = repos.Regions.DeleteRegion(ctx, region.ID)
	})
	return region, org
}

func TestPostgres_ConcurrentExpensesNeverOverdraw(t *testing.T) {
	db := setupTestDB(t)
	repos := New(db)
	ctx := context.Background()
	region, org := createTestOrganization(t, repos)

	_, err := repos.Budgets.SetRegionBudget(ctx, region.ID, integrationYear, 10_000)
	require.NoError(t, err)
	_, err = repos.Budgets.AllocateOrganizationBudget(ctx, org.ID, integrationYear, 1_000)
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		refused  int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repos.Budgets.RecordExpense(ctx, &domain.BudgetExpense{
				OrganizationID: org.ID, FiscalYear: integrationYear, Amount: 300,
				Description: "Seeds", Category: "inputs", ExpenseDate: time.Now(),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, domain.ErrInsufficientFunds):
				refused++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, accepted)
	assert.Equal(t, 5, refused)
	b, err := repos.Budgets.GetOrganizationBudget(ctx, org.ID, integrationYear)
	require.NoError(t, err)
	assert.EqualValues(t, 100, b.RemainingBalance)

	got, err := repos.Organizations.GetOrganization(ctx, org.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 900, got.UtilizedBudget)
}

func TestPostgres_DeleteRegionWithDependents(t *testing.T) {
	db := setupTestDB(t)
	repos := New(db)
	region, _ := createTestOrganization(t, repos)

	err := repos.Regions.DeleteRegion(context.Background(), region.ID)
	assert.ErrorIs(t, err, domain.ErrHasDependents)
}
