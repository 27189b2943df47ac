package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrikonek/internal/domain"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock
}

var (
	orgBudgetCols    = []string{"id", "organization_id", "fiscal_year", "total_allocation", "remaining_balance", "updated_at"}
	regionBudgetCols = []string{"id", "region_id", "fiscal_year", "amount", "allocated", "updated_at"}
	requestCols      = []string{"id", "organization_id", "region_id", "fiscal_year", "requested_amount", "reason",
		"status", "request_date", "processed_by", "processed_date", "notes"}
)

func TestRecordExpense_ConditionalDecrement(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresBudgetsRepository(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE organization_budgets SET remaining_balance = remaining_balance - \$3.*AND remaining_balance >= \$3`).
		WithArgs("org-1", 2024, int64(300)).
		WillReturnRows(sqlmock.NewRows(orgBudgetCols).AddRow("b-1", "org-1", 2024, int64(1000), int64(700), now))
	mock.ExpectQuery(`INSERT INTO budget_expenses`).
		WithArgs("org-1", 2024, int64(300), "seeds", "supplies", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("e-1", now))
	mock.ExpectExec(`UPDATE organizations SET utilized_budget = utilized_budget \+ \$2`).
		WithArgs("org-1", int64(300)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	e := &domain.BudgetExpense{OrganizationID: "org-1", FiscalYear: 2024, Amount: 300, Description: "seeds",
		Category: "supplies", ExpenseDate: now}
	b, err := repo.RecordExpense(context.Background(), e)
	require.NoError(t, err)
	assert.Equal(t, int64(700), b.RemainingBalance)
	assert.Equal(t, "e-1", e.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordExpense_InsufficientFunds(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresBudgetsRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE organization_budgets`).
		WithArgs("org-1", 2024, int64(5000)).
		WillReturnRows(sqlmock.NewRows(orgBudgetCols))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("org-1", 2024).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	_, err := repo.RecordExpense(context.Background(), &domain.BudgetExpense{
		OrganizationID: "org-1", FiscalYear: 2024, Amount: 5000, ExpenseDate: time.Now(),
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordExpense_NoBudgetRow(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresBudgetsRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE organization_budgets`).WillReturnRows(sqlmock.NewRows(orgBudgetCols))
	mock.ExpectQuery(`SELECT EXISTS`).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	_, err := repo.RecordExpense(context.Background(), &domain.BudgetExpense{
		OrganizationID: "org-1", FiscalYear: 2030, Amount: 10, ExpenseDate: time.Now(),
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordExpense_RejectsNonPositive(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresBudgetsRepository(db)

	_, err := repo.RecordExpense(context.Background(), &domain.BudgetExpense{OrganizationID: "org-1", Amount: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetRegionBudget_Upsert(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresBudgetsRepository(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT total_amount FROM annual_budgets WHERE fiscal_year = \$1 FOR UPDATE`).
		WithArgs(2024).
		WillReturnRows(sqlmock.NewRows([]string{"total_amount"}))
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(b.total_allocation\), 0\)`).
		WithArgs("r-1", 2024).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(int64(0)))
	mock.ExpectQuery(`INSERT INTO region_budgets .* ON CONFLICT \(region_id, fiscal_year\) DO UPDATE SET amount = EXCLUDED.amount`).
		WithArgs("r-1", 2024, int64(1_000_000)).
		WillReturnRows(sqlmock.NewRows(regionBudgetCols).AddRow("rb-1", "r-1", 2024, int64(1_000_000), true, now))
	mock.ExpectCommit()

	b, err := repo.SetRegionBudget(context.Background(), "r-1", 2024, 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), b.Amount)
	assert.True(t, b.Allocated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetRegionBudget_ExceedsAnnual(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresBudgetsRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT total_amount FROM annual_budgets`).
		WillReturnRows(sqlmock.NewRows([]string{"total_amount"}).AddRow(int64(1000)))
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(amount\), 0\) FROM region_budgets`).
		WithArgs(2024, "r-1").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(int64(800)))
	mock.ExpectRollback()

	_, err := repo.SetRegionBudget(context.Background(), "r-1", 2024, 300)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessBudgetRequest_ApproveSingleTransaction(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresBudgetsRepository(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM budget_requests WHERE id = \$1 FOR UPDATE`).
		WithArgs("req-1").
		WillReturnRows(sqlmock.NewRows(requestCols).AddRow(
			"req-1", "org-1", "r-1", 2024, int64(50_000), "seed fund", "pending", now, nil, nil, nil))
	mock.ExpectQuery(`INSERT INTO region_budgets .* amount = region_budgets.amount \+ EXCLUDED.amount`).
		WithArgs("r-1", 2024, int64(50_000)).
		WillReturnRows(sqlmock.NewRows(regionBudgetCols).AddRow("rb-1", "r-1", 2024, int64(1_050_000), true, now))
	mock.ExpectQuery(`FROM profiles WHERE region_id = \$1\s+UNION\s+SELECT user_id::text FROM organization_admins WHERE organization_id = \$2`).
		WithArgs("r-1", "org-1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("u-1").AddRow("u-2"))
	for _, id := range []string{"n-1", "n-2"} {
		mock.ExpectQuery(`INSERT INTO notifications`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(id, now))
	}
	mock.ExpectQuery(`UPDATE budget_requests SET status = \$2`).
		WithArgs("req-1", domain.RequestApproved, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"processed_date"}).AddRow(now))
	mock.ExpectCommit()

	out, err := repo.ProcessBudgetRequest(context.Background(), RequestDecision{
		RequestID:  "req-1",
		Status:     domain.RequestApproved,
		ApproverID: "admin-1",
		At:         now,
		Notice: func(req *domain.BudgetRequest) NoticeFunc {
			return func(string) *domain.NewNotification {
				return &domain.NewNotification{Title: "Budget approved", Message: "ok", Category: domain.CategoryBudget}
			}
		},
	})
	require.NoError(t, err)
	assert.True(t, out.Changed)
	assert.Equal(t, domain.RequestApproved, out.Request.Status)
	assert.Equal(t, int64(1_050_000), out.RegionBudget.Amount)
	require.Len(t, out.Notified, 2)
	assert.Equal(t, "u-2", out.Notified[1].UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessBudgetRequest_DecidedRequestIsTerminal(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresBudgetsRepository(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM budget_requests WHERE id = \$1 FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(requestCols).AddRow(
			"req-1", "org-1", "r-1", 2024, int64(50_000), "seed fund", "rejected", now, "admin-1", now, nil))
	mock.ExpectRollback()

	_, err := repo.ProcessBudgetRequest(context.Background(), RequestDecision{
		RequestID: "req-1", Status: domain.RequestApproved, ApproverID: "admin-2", At: now,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessBudgetRequest_SameStatusIsNoop(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresBudgetsRepository(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM budget_requests WHERE id = \$1 FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(requestCols).AddRow(
			"req-1", "org-1", "r-1", 2024, int64(50_000), "seed fund", "approved", now, "admin-1", now, nil))
	mock.ExpectCommit()

	out, err := repo.ProcessBudgetRequest(context.Background(), RequestDecision{
		RequestID: "req-1", Status: domain.RequestApproved, ApproverID: "admin-1", At: now,
	})
	require.NoError(t, err)
	assert.False(t, out.Changed)
	assert.Nil(t, out.RegionBudget)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAllocateOrganizationBudget_BelowSpent(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresBudgetsRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT region_id::text FROM organizations WHERE id = \$1 FOR UPDATE`).
		WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows([]string{"region_id"}).AddRow("r-1"))
	mock.ExpectQuery(`SELECT total_allocation - remaining_balance FROM organization_budgets`).
		WithArgs("org-1", 2024).
		WillReturnRows(sqlmock.NewRows([]string{"spent"}).AddRow(int64(600)))
	mock.ExpectRollback()

	_, err := repo.AllocateOrganizationBudget(context.Background(), "org-1", 2024, 500)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetAnnualBudget_BelowRegions(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPostgresBudgetsRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(amount\), 0\) FROM region_budgets WHERE fiscal_year = \$1`).
		WithArgs(2024).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(int64(2_000)))
	mock.ExpectRollback()

	_, err := repo.SetAnnualBudget(context.Background(), 2024, 1_000)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.False(t, errors.Is(err, domain.ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}
