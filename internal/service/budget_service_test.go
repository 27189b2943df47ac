package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrikonek/internal/domain"
)

func (e *env) fund(t *testing.T, year int, region, org int64) {
	t.Helper()
	_, err := e.svc.Regions.SetRegionBudget(super(), SetRegionBudgetRequest{RegionID: e.region.ID, FiscalYear: year, Amount: region})
	require.NoError(t, err)
	_, err = e.svc.Budgets.AllocateOrganizationBudget(regional(), AllocateBudgetRequest{OrganizationID: e.org.ID, FiscalYear: year, Amount: org})
	require.NoError(t, err)
}

func expense(e *env, amount int64) RecordExpenseRequest {
	return RecordExpenseRequest{
		OrganizationID: e.org.ID, FiscalYear: 2025, Amount: amount,
		Description: "Fertilizer", Category: "Inputs",
		ExpenseDate: time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
	}
}

func TestAllocate_RegionScoped(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.Regions.SetRegionBudget(super(), SetRegionBudgetRequest{RegionID: e.region.ID, FiscalYear: 2025, Amount: 10_000})
	require.NoError(t, err)

	_, err = e.svc.Budgets.AllocateOrganizationBudget(outsider(), AllocateBudgetRequest{OrganizationID: e.org.ID, FiscalYear: 2025, Amount: 5_000})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = e.svc.Budgets.AllocateOrganizationBudget(orgAdmin(), AllocateBudgetRequest{OrganizationID: e.org.ID, FiscalYear: 2025, Amount: 5_000})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	b, err := e.svc.Budgets.AllocateOrganizationBudget(regional(), AllocateBudgetRequest{OrganizationID: e.org.ID, FiscalYear: 2025, Amount: 5_000})
	require.NoError(t, err)
	assert.EqualValues(t, 5_000, b.RemainingBalance)
}

func TestRecordExpense_Ledger(t *testing.T) {
	e := newEnv(t)
	e.fund(t, 2025, 10_000, 1_000)

	b, err := e.svc.Budgets.RecordExpense(orgAdmin(), expense(e, 300))
	require.NoError(t, err)
	assert.EqualValues(t, 700, b.RemainingBalance)

	_, err = e.svc.Budgets.RecordExpense(orgAdmin(), expense(e, 701))
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	_, err = e.svc.Budgets.RecordExpense(orgAdmin(), expense(e, 0))
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = e.svc.Budgets.RecordExpense(farmer(), expense(e, 1))
	assert.ErrorIs(t, err, domain.ErrForbidden)

	// reallocation keeps what was spent
	b, err = e.svc.Budgets.AllocateOrganizationBudget(regional(), AllocateBudgetRequest{OrganizationID: e.org.ID, FiscalYear: 2025, Amount: 2_000})
	require.NoError(t, err)
	assert.EqualValues(t, 1_700, b.RemainingBalance)
	_, err = e.svc.Budgets.AllocateOrganizationBudget(regional(), AllocateBudgetRequest{OrganizationID: e.org.ID, FiscalYear: 2025, Amount: 200})
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	list, err := e.svc.Budgets.ListExpenses(orgAdmin(), e.org.ID, 2025)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "inputs", list[0].Category)
	require.NotNil(t, list[0].RecordedBy)
	assert.Equal(t, "admin-1", *list[0].RecordedBy)

	_, err = e.svc.Budgets.ListExpenses(farmer2(), e.org.ID, 2025)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestRecordExpense_ConcurrentAdmins(t *testing.T) {
	e := newEnv(t)
	e.fund(t, 2025, 10_000, 1_000)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.svc.Budgets.RecordExpense(orgAdmin(), expense(e, 300)); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, accepted)
	b, err := e.svc.Budgets.GetOrganizationBudget(orgAdmin(), e.org.ID, 2025)
	require.NoError(t, err)
	assert.EqualValues(t, 100, b.RemainingBalance)
	org, err := e.svc.Organizations.GetOrganization(super(), e.org.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 900, org.UtilizedBudget)
}

func TestRecordExpense_ConcurrentBothFit(t *testing.T) {
	e := newEnv(t)
	e.fund(t, 2025, 10_000, 1_000)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, amount := range []int64{300, 400} {
		i, amount := i, amount
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = e.svc.Budgets.RecordExpense(orgAdmin(), expense(e, amount))
		}()
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	b, err := e.svc.Budgets.GetOrganizationBudget(orgAdmin(), e.org.ID, 2025)
	require.NoError(t, err)
	assert.EqualValues(t, 300, b.RemainingBalance)
}

func TestBudgetRequest_ApproveNotifiesRegion(t *testing.T) {
	e := newEnv(t)
	e.fund(t, 2025, 10_000, 1_000)

	req, err := e.svc.Budgets.RequestBudgetIncrease(orgAdmin(), BudgetIncreaseRequest{
		OrganizationID: e.org.ID, FiscalYear: 2025, Amount: 5_000, Reason: "Typhoon rehabilitation",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RequestPending, req.Status)
	assert.Equal(t, e.region.ID, req.RegionID)

	_, err = e.svc.Budgets.ProcessBudgetRequest(outsider(), ProcessRequest{RequestID: req.ID, Status: domain.RequestApproved})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = e.svc.Budgets.ProcessBudgetRequest(regional(), ProcessRequest{RequestID: req.ID, Status: "maybe"})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	out, err := e.svc.Budgets.ProcessBudgetRequest(regional(), ProcessRequest{RequestID: req.ID, Status: domain.RequestApproved})
	require.NoError(t, err)
	assert.True(t, out.Changed)
	assert.Equal(t, domain.RequestApproved, out.Request.Status)
	require.NotNil(t, out.Request.ProcessedBy)
	assert.Equal(t, "regional-1", *out.Request.ProcessedBy)
	require.NotNil(t, out.RegionBudget)
	assert.EqualValues(t, 15_000, out.RegionBudget.Amount)

	users := e.sent.users()
	sort.Strings(users)
	assert.Equal(t, []string{"admin-1", "farmer-1", "regional-1"}, users, "everyone mapped to the region")
	unread, err := e.svc.Notifications.UnreadCount(farmer())
	require.NoError(t, err)
	assert.Equal(t, 1, unread)
	unread, err = e.svc.Notifications.UnreadCount(farmer2())
	require.NoError(t, err)
	assert.Equal(t, 0, unread)

	// re-approval changes nothing
	again, err := e.svc.Budgets.ProcessBudgetRequest(regional(), ProcessRequest{RequestID: req.ID, Status: domain.RequestApproved})
	require.NoError(t, err)
	assert.False(t, again.Changed)
	assert.Len(t, e.sent.users(), 3)
	rb, err := e.svc.Regions.ListRegionBudgets(super(), 2025)
	require.NoError(t, err)
	require.Len(t, rb, 1)
	assert.EqualValues(t, 15_000, rb[0].Amount)

	_, err = e.svc.Budgets.ProcessBudgetRequest(super(), ProcessRequest{RequestID: req.ID, Status: domain.RequestRejected})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestBudgetRequest_ApprovalReachesAdminsOutsideRegion(t *testing.T) {
	e := newEnv(t)
	e.fund(t, 2025, 10_000, 1_000)
	require.NoError(t, e.repos.Profiles.UpsertProfile(context.Background(), &domain.Profile{
		UserID: "admin-1", FullName: "Jose Cruz", Role: domain.RoleOrganizationAdmin,
	}))

	req, err := e.svc.Budgets.RequestBudgetIncrease(orgAdmin(), BudgetIncreaseRequest{
		OrganizationID: e.org.ID, FiscalYear: 2025, Amount: 2_000, Reason: "Irrigation pump",
	})
	require.NoError(t, err)
	_, err = e.svc.Budgets.ProcessBudgetRequest(regional(), ProcessRequest{RequestID: req.ID, Status: domain.RequestApproved})
	require.NoError(t, err)

	users := e.sent.users()
	sort.Strings(users)
	assert.Equal(t, []string{"admin-1", "farmer-1", "regional-1"}, users, "the requesting admin is notified once")
	unread, err := e.svc.Notifications.UnreadCount(orgAdmin())
	require.NoError(t, err)
	assert.Equal(t, 1, unread)
}

func TestBudgetRequest_RejectAndListScopes(t *testing.T) {
	e := newEnv(t)
	req, err := e.svc.Budgets.RequestBudgetIncrease(orgAdmin(), BudgetIncreaseRequest{
		OrganizationID: e.org.ID, Amount: 1_000, Reason: "Seeds",
	})
	require.NoError(t, err)
	assert.Equal(t, time.Now().Year(), req.FiscalYear)

	notes := "Budget exhausted this year"
	out, err := e.svc.Budgets.ProcessBudgetRequest(super(), ProcessRequest{RequestID: req.ID, Status: domain.RequestRejected, Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, domain.RequestRejected, out.Request.Status)
	assert.Empty(t, out.Notified)
	assert.Empty(t, e.sent.users())

	got, err := e.svc.Budgets.ListBudgetRequests(super(), domain.BudgetRequestFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	got, err = e.svc.Budgets.ListBudgetRequests(regional(), domain.BudgetRequestFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	got, err = e.svc.Budgets.ListBudgetRequests(outsider(), domain.BudgetRequestFilter{RegionID: e.region.ID})
	require.NoError(t, err)
	assert.Empty(t, got, "regional admins are pinned to their own region")
	got, err = e.svc.Budgets.ListBudgetRequests(orgAdmin(), domain.BudgetRequestFilter{Status: domain.RequestRejected})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	_, err = e.svc.Budgets.ListBudgetRequests(farmer(), domain.BudgetRequestFilter{})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestFormatPeso(t *testing.T) {
	assert.Equal(t, "PHP 0.05", formatPeso(5))
	assert.Equal(t, "PHP 1,234.56", formatPeso(123456))
	assert.Equal(t, "PHP 1,000,000.00", formatPeso(100000000))
	assert.Equal(t, "-PHP 12.00", formatPeso(-1200))
}
