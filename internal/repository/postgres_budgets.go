package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"agrikonek/internal/domain"
)

// PostgresBudgetsRepository budget ledger on Postgres.
// Balances only change through the statements below; callers never compute them.
type PostgresBudgetsRepository struct {
	db *sql.DB
}

func NewPostgresBudgetsRepository(db *sql.DB) *PostgresBudgetsRepository {
	return &PostgresBudgetsRepository{db: db}
}

var _ BudgetsRepository = (*PostgresBudgetsRepository)(nil)

// ========== annual / region ==========

func (r *PostgresBudgetsRepository) GetAnnualBudget(ctx context.Context, fiscalYear int) (*domain.AnnualBudget, error) {
	var b domain.AnnualBudget
	err := r.db.QueryRowContext(ctx, `
		SELECT id::text, fiscal_year, total_amount, updated_at FROM annual_budgets WHERE fiscal_year = $1
	`, fiscalYear).Scan(&b.ID, &b.FiscalYear, &b.TotalAmount, &b.UpdatedAt)
	if err != nil {
		return nil, classify("get annual budget", err)
	}
	return &b, nil
}

func (r *PostgresBudgetsRepository) SetAnnualBudget(ctx context.Context, fiscalYear int, total int64) (*domain.AnnualBudget, error) {
	var b domain.AnnualBudget
	err := withTx(ctx, r.db, "set annual budget", func(tx *sql.Tx) error {
		var distributed int64
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(SUM(amount), 0) FROM region_budgets WHERE fiscal_year = $1`, fiscalYear,
		).Scan(&distributed); err != nil {
			return classify("set annual budget: sum regions", err)
		}
		if total < distributed {
			return fmt.Errorf("set annual budget: total %d below %d already given to regions: %w",
				total, distributed, domain.ErrInsufficientFunds)
		}
		err := tx.QueryRowContext(ctx, `
			INSERT INTO annual_budgets (fiscal_year, total_amount, updated_at)
			VALUES ($1, $2, now())
			ON CONFLICT (fiscal_year) DO UPDATE SET total_amount = EXCLUDED.total_amount, updated_at = now()
			RETURNING id::text, fiscal_year, total_amount, updated_at
		`, fiscalYear, total).Scan(&b.ID, &b.FiscalYear, &b.TotalAmount, &b.UpdatedAt)
		return classify("set annual budget", err)
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

const regionBudgetColumns = `id::text, region_id::text, fiscal_year, amount, allocated, updated_at`

func scanRegionBudget(row interface{ Scan(...any) error }) (*domain.RegionBudget, error) {
	var b domain.RegionBudget
	if err := row.Scan(&b.ID, &b.RegionID, &b.FiscalYear, &b.Amount, &b.Allocated, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *PostgresBudgetsRepository) GetRegionBudget(ctx context.Context, regionID string, fiscalYear int) (*domain.RegionBudget, error) {
	b, err := scanRegionBudget(r.db.QueryRowContext(ctx,
		`SELECT `+regionBudgetColumns+` FROM region_budgets WHERE region_id = $1 AND fiscal_year = $2`, regionID, fiscalYear))
	if err != nil {
		return nil, classify("get region budget", err)
	}
	return b, nil
}

func (r *PostgresBudgetsRepository) ListRegionBudgets(ctx context.Context, fiscalYear int) ([]*domain.RegionBudget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+regionBudgetColumns+` FROM region_budgets WHERE fiscal_year = $1 ORDER BY region_id`, fiscalYear)
	if err != nil {
		return nil, classify("list region budgets", err)
	}
	defer rows.Close()

	out := []*domain.RegionBudget{}
	for rows.Next() {
		b, err := scanRegionBudget(rows)
		if err != nil {
			return nil, classify("scan region budget", err)
		}
		out = append(out, b)
	}
	return out, classify("list region budgets", rows.Err())
}

func (r *PostgresBudgetsRepository) SetRegionBudget(ctx context.Context, regionID string, fiscalYear int, amount int64) (*domain.RegionBudget, error) {
	var out *domain.RegionBudget
	err := withTx(ctx, r.db, "set region budget", func(tx *sql.Tx) error {
		// the annual row, when present, caps the sum over regions
		var annual int64
		err := tx.QueryRowContext(ctx,
			`SELECT total_amount FROM annual_budgets WHERE fiscal_year = $1 FOR UPDATE`, fiscalYear).Scan(&annual)
		switch {
		case err == sql.ErrNoRows:
		case err != nil:
			return classify("set region budget: annual", err)
		default:
			var others int64
			if err := tx.QueryRowContext(ctx, `
				SELECT COALESCE(SUM(amount), 0) FROM region_budgets WHERE fiscal_year = $1 AND region_id <> $2
			`, fiscalYear, regionID).Scan(&others); err != nil {
				return classify("set region budget: sum regions", err)
			}
			if others+amount > annual {
				return fmt.Errorf("set region budget: %d exceeds annual remainder %d: %w",
					amount, annual-others, domain.ErrInsufficientFunds)
			}
		}

		var toOrgs int64
		if err := tx.QueryRowContext(ctx, `
			SELECT COALESCE(SUM(b.total_allocation), 0)
			FROM organization_budgets b
			JOIN organizations o ON o.id = b.organization_id
			WHERE o.region_id = $1 AND b.fiscal_year = $2
		`, regionID, fiscalYear).Scan(&toOrgs); err != nil {
			return classify("set region budget: sum organizations", err)
		}
		if amount < toOrgs {
			return fmt.Errorf("set region budget: %d below %d allocated to organizations: %w",
				amount, toOrgs, domain.ErrInsufficientFunds)
		}

		out, err = scanRegionBudget(tx.QueryRowContext(ctx, `
			INSERT INTO region_budgets (region_id, fiscal_year, amount, allocated, updated_at)
			VALUES ($1, $2, $3, TRUE, now())
			ON CONFLICT (region_id, fiscal_year) DO UPDATE SET
				amount = EXCLUDED.amount,
				allocated = TRUE,
				updated_at = now()
			RETURNING `+regionBudgetColumns, regionID, fiscalYear, amount))
		return classify("set region budget", err)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ========== organization ==========

const orgBudgetColumns = `id::text, organization_id::text, fiscal_year, total_allocation, remaining_balance, updated_at`

func scanOrgBudget(row interface{ Scan(...any) error }) (*domain.OrganizationBudget, error) {
	var b domain.OrganizationBudget
	if err := row.Scan(&b.ID, &b.OrganizationID, &b.FiscalYear, &b.TotalAllocation, &b.RemainingBalance, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *PostgresBudgetsRepository) GetOrganizationBudget(ctx context.Context, orgID string, fiscalYear int) (*domain.OrganizationBudget, error) {
	b, err := scanOrgBudget(r.db.QueryRowContext(ctx,
		`SELECT `+orgBudgetColumns+` FROM organization_budgets WHERE organization_id = $1 AND fiscal_year = $2`, orgID, fiscalYear))
	if err != nil {
		return nil, classify("get organization budget", err)
	}
	return b, nil
}

func (r *PostgresBudgetsRepository) AllocateOrganizationBudget(ctx context.Context, orgID string, fiscalYear int, total int64) (*domain.OrganizationBudget, error) {
	var out *domain.OrganizationBudget
	err := withTx(ctx, r.db, "allocate organization budget", func(tx *sql.Tx) error {
		var regionID string
		if err := tx.QueryRowContext(ctx,
			`SELECT region_id::text FROM organizations WHERE id = $1 FOR UPDATE`, orgID).Scan(&regionID); err != nil {
			return classify("allocate organization budget: organization", err)
		}

		var spent int64
		err := tx.QueryRowContext(ctx, `
			SELECT total_allocation - remaining_balance FROM organization_budgets
			WHERE organization_id = $1 AND fiscal_year = $2 FOR UPDATE
		`, orgID, fiscalYear).Scan(&spent)
		if err != nil && err != sql.ErrNoRows {
			return classify("allocate organization budget: current", err)
		}
		if total < spent {
			return fmt.Errorf("allocate organization budget: total %d below %d already spent: %w",
				total, spent, domain.ErrInsufficientFunds)
		}

		var regionAmount int64
		if err := tx.QueryRowContext(ctx, `
			SELECT amount FROM region_budgets WHERE region_id = $1 AND fiscal_year = $2 FOR UPDATE
		`, regionID, fiscalYear).Scan(&regionAmount); err != nil {
			return classify("allocate organization budget: region budget", err)
		}
		var others int64
		if err := tx.QueryRowContext(ctx, `
			SELECT COALESCE(SUM(b.total_allocation), 0)
			FROM organization_budgets b
			JOIN organizations o ON o.id = b.organization_id
			WHERE o.region_id = $1 AND b.fiscal_year = $2 AND b.organization_id <> $3
		`, regionID, fiscalYear, orgID).Scan(&others); err != nil {
			return classify("allocate organization budget: sum organizations", err)
		}
		if others+total > regionAmount {
			return fmt.Errorf("allocate organization budget: %d exceeds region remainder %d: %w",
				total, regionAmount-others, domain.ErrInsufficientFunds)
		}

		out, err = scanOrgBudget(tx.QueryRowContext(ctx, `
			INSERT INTO organization_budgets (organization_id, fiscal_year, total_allocation, remaining_balance, updated_at)
			VALUES ($1, $2, $3, $3, now())
			ON CONFLICT (organization_id, fiscal_year) DO UPDATE SET
				remaining_balance = EXCLUDED.total_allocation
					- (organization_budgets.total_allocation - organization_budgets.remaining_balance),
				total_allocation = EXCLUDED.total_allocation,
				updated_at = now()
			RETURNING `+orgBudgetColumns, orgID, fiscalYear, total))
		if err != nil {
			return classify("allocate organization budget: upsert", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE organizations SET
				allocated_budget = (SELECT COALESCE(SUM(total_allocation), 0) FROM organization_budgets WHERE organization_id = $1),
				updated_at = now()
			WHERE id = $1
		`, orgID)
		return classify("allocate organization budget: organization total", err)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresBudgetsRepository) RecordExpense(ctx context.Context, e *domain.BudgetExpense) (*domain.OrganizationBudget, error) {
	if e.Amount <= 0 {
		return nil, fmt.Errorf("record expense: amount must be positive: %w", domain.ErrInvalidArgument)
	}
	if e.Category == "" {
		e.Category = "general"
	}
	var out *domain.OrganizationBudget
	err := withTx(ctx, r.db, "record expense", func(tx *sql.Tx) error {
		var err error
		out, err = scanOrgBudget(tx.QueryRowContext(ctx, `
			UPDATE organization_budgets
			SET remaining_balance = remaining_balance - $3, updated_at = now()
			WHERE organization_id = $1 AND fiscal_year = $2 AND remaining_balance >= $3
			RETURNING `+orgBudgetColumns, e.OrganizationID, e.FiscalYear, e.Amount))
		if err == sql.ErrNoRows {
			var exists bool
			if err := tx.QueryRowContext(ctx, `
				SELECT EXISTS (SELECT 1 FROM organization_budgets WHERE organization_id = $1 AND fiscal_year = $2)
			`, e.OrganizationID, e.FiscalYear).Scan(&exists); err != nil {
				return classify("record expense: budget lookup", err)
			}
			if !exists {
				return fmt.Errorf("record expense: no budget for fiscal year %d: %w", e.FiscalYear, domain.ErrNotFound)
			}
			return fmt.Errorf("record expense: amount %d: %w", e.Amount, domain.ErrInsufficientFunds)
		}
		if err != nil {
			return classify("record expense: decrement", err)
		}

		if err := tx.QueryRowContext(ctx, `
			INSERT INTO budget_expenses (organization_id, fiscal_year, amount, description, category, expense_date, recorded_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id::text, created_at
		`, e.OrganizationID, e.FiscalYear, e.Amount, e.Description, e.Category, e.ExpenseDate, nullString(e.RecordedBy),
		).Scan(&e.ID, &e.CreatedAt); err != nil {
			return classify("record expense: insert", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE organizations SET utilized_budget = utilized_budget + $2, updated_at = now() WHERE id = $1
		`, e.OrganizationID, e.Amount)
		return classify("record expense: organization total", err)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresBudgetsRepository) ListExpenses(ctx context.Context, orgID string, fiscalYear int) ([]*domain.BudgetExpense, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id::text, organization_id::text, fiscal_year, amount, description, category, expense_date,
		       recorded_by::text, created_at
		FROM budget_expenses
		WHERE organization_id = $1 AND fiscal_year = $2
		ORDER BY expense_date DESC, created_at DESC
	`, orgID, fiscalYear)
	if err != nil {
		return nil, classify("list expenses", err)
	}
	defer rows.Close()

	out := []*domain.BudgetExpense{}
	for rows.Next() {
		var (
			e  domain.BudgetExpense
			by sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.OrganizationID, &e.FiscalYear, &e.Amount, &e.Description, &e.Category,
			&e.ExpenseDate, &by, &e.CreatedAt); err != nil {
			return nil, classify("scan expense", err)
		}
		e.RecordedBy = stringPtr(by)
		out = append(out, &e)
	}
	return out, classify("list expenses", rows.Err())
}

// ========== requests ==========

const requestColumns = `id::text, organization_id::text, region_id::text, fiscal_year, requested_amount, reason,
	status, request_date, processed_by::text, processed_date, notes`

func scanRequest(row interface{ Scan(...any) error }) (*domain.BudgetRequest, error) {
	var (
		req   domain.BudgetRequest
		by    sql.NullString
		at    sql.NullTime
		notes sql.NullString
	)
	if err := row.Scan(&req.ID, &req.OrganizationID, &req.RegionID, &req.FiscalYear, &req.RequestedAmount, &req.Reason,
		&req.Status, &req.RequestDate, &by, &at, &notes); err != nil {
		return nil, err
	}
	req.ProcessedBy = stringPtr(by)
	if at.Valid {
		req.ProcessedDate = &at.Time
	}
	req.Notes = stringPtr(notes)
	return &req, nil
}

func (r *PostgresBudgetsRepository) CreateBudgetRequest(ctx context.Context, req *domain.BudgetRequest) error {
	req.Status = domain.RequestPending
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO budget_requests (organization_id, region_id, fiscal_year, requested_amount, reason, status)
		VALUES ($1, $2, $3, $4, $5, 'pending')
		RETURNING id::text, request_date
	`, req.OrganizationID, req.RegionID, req.FiscalYear, req.RequestedAmount, req.Reason).Scan(&req.ID, &req.RequestDate)
	return classify("create budget request", err)
}

func (r *PostgresBudgetsRepository) GetBudgetRequest(ctx context.Context, requestID string) (*domain.BudgetRequest, error) {
	req, err := scanRequest(r.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM budget_requests WHERE id = $1`, requestID))
	if err != nil {
		return nil, classify("get budget request", err)
	}
	return req, nil
}

func (r *PostgresBudgetsRepository) ListBudgetRequests(ctx context.Context, filter domain.BudgetRequestFilter) ([]*domain.BudgetRequest, error) {
	where := []string{"TRUE"}
	args := []any{}
	if filter.OrganizationID != "" {
		args = append(args, filter.OrganizationID)
		where = append(where, fmt.Sprintf("organization_id = $%d", len(args)))
	}
	if filter.RegionID != "" {
		args = append(args, filter.RegionID)
		where = append(where, fmt.Sprintf("region_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+requestColumns+` FROM budget_requests WHERE `+
		strings.Join(where, " AND ")+` ORDER BY request_date DESC`, args...)
	if err != nil {
		return nil, classify("list budget requests", err)
	}
	defer rows.Close()

	out := []*domain.BudgetRequest{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, classify("scan budget request", err)
		}
		out = append(out, req)
	}
	return out, classify("list budget requests", rows.Err())
}

func (r *PostgresBudgetsRepository) ProcessBudgetRequest(ctx context.Context, d RequestDecision) (*domain.ProcessOutcome, error) {
	if d.Status != domain.RequestApproved && d.Status != domain.RequestRejected {
		return nil, fmt.Errorf("process budget request: status %q: %w", d.Status, domain.ErrInvalidArgument)
	}

	out := &domain.ProcessOutcome{}
	err := withTx(ctx, r.db, "process budget request", func(tx *sql.Tx) error {
		req, err := scanRequest(tx.QueryRowContext(ctx,
			`SELECT `+requestColumns+` FROM budget_requests WHERE id = $1 FOR UPDATE`, d.RequestID))
		if err != nil {
			return classify("process budget request: load", err)
		}
		out.Request = req

		if req.Status == d.Status {
			return nil
		}
		if req.Status != domain.RequestPending {
			return fmt.Errorf("process budget request: %s -> %s: %w", req.Status, d.Status, domain.ErrInvalidTransition)
		}

		if d.Status == domain.RequestApproved {
			out.RegionBudget, err = scanRegionBudget(tx.QueryRowContext(ctx, `
				INSERT INTO region_budgets (region_id, fiscal_year, amount, allocated, updated_at)
				VALUES ($1, $2, $3, TRUE, now())
				ON CONFLICT (region_id, fiscal_year) DO UPDATE SET
					amount = region_budgets.amount + EXCLUDED.amount,
					updated_at = now()
				RETURNING `+regionBudgetColumns, req.RegionID, req.FiscalYear, req.RequestedAmount))
			if err != nil {
				return classify("process budget request: region budget", err)
			}

			if d.Notice != nil {
				notice := d.Notice(req)
				// everyone mapped to the region plus the requesting organization's admins
				rows, err := tx.QueryContext(ctx, `
					SELECT user_id::text FROM profiles WHERE region_id = $1
					UNION
					SELECT user_id::text FROM organization_admins WHERE organization_id = $2
					ORDER BY 1
				`, req.RegionID, req.OrganizationID)
				if err != nil {
					return classify("process budget request: region users", err)
				}
				var users []string
				for rows.Next() {
					var u string
					if err := rows.Scan(&u); err != nil {
						rows.Close()
						return classify("process budget request: scan user", err)
					}
					users = append(users, u)
				}
				rows.Close()
				if err := rows.Err(); err != nil {
					return classify("process budget request: region users", err)
				}
				for _, u := range users {
					n := notice(u)
					if n == nil {
						continue
					}
					n.UserID = u
					created, err := insertNotification(ctx, tx, *n)
					if err != nil {
						return err
					}
					out.Notified = append(out.Notified, created)
				}
			}
		}

		var processedAt sql.NullTime
		err = tx.QueryRowContext(ctx, `
			UPDATE budget_requests
			SET status = $2, processed_by = $3, processed_date = $4, notes = $5
			WHERE id = $1
			RETURNING processed_date
		`, req.ID, d.Status, nullString(&d.ApproverID), d.At, nullString(d.Notes)).Scan(&processedAt)
		if err != nil {
			return classify("process budget request: update", err)
		}
		req.Status = d.Status
		req.ProcessedBy = &d.ApproverID
		if processedAt.Valid {
			req.ProcessedDate = &processedAt.Time
		}
		req.Notes = d.Notes
		out.Changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
