package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"agrikonek/internal/domain"
	"agrikonek/internal/repository"
)

// ReportService read-only aggregates for superadmins and regional admins
type ReportService interface {
	RegionalMetrics(ctx context.Context, fiscalYear int) ([]domain.RegionalMetric, error)
	BudgetUtilizationByMonth(ctx context.Context, fiscalYear int) ([]domain.MonthlyUtilization, error)
	CategoryDistribution(ctx context.Context, fiscalYear int) ([]domain.CategoryShare, error)
	ApprovalRates(ctx context.Context, fiscalYear int) (domain.ApprovalRates, error)
	RegionalBudgetReport(ctx context.Context, fiscalYear int, regionID string) ([]domain.RegionalBudgetLine, error)
	Dashboard(ctx context.Context, fiscalYear int) (*domain.Dashboard, error)
	ExportBudgetReport(ctx context.Context, fiscalYear int, regionID string) ([]byte, error)
}

type reportService struct {
	reports  repository.ReportsRepository
	budgets  repository.BudgetsRepository
	profiles repository.ProfilesRepository
	now      func() time.Time
	logger   *zap.Logger
}

func NewReportService(repos *repository.Repositories, logger *zap.Logger) ReportService {
	return &reportService{
		reports:  repos.Reports,
		budgets:  repos.Budgets,
		profiles: repos.Profiles,
		now:      time.Now,
		logger:   logger,
	}
}

// scope superadmins see everything; regional admins are pinned to their region
func (s *reportService) scope(ctx context.Context, regionID string) (string, error) {
	sess, err := currentSession(ctx)
	if err != nil {
		return "", err
	}
	switch sess.Role {
	case domain.RoleSuperadmin:
		return regionID, nil
	case domain.RoleRegionalAdmin:
		p, err := s.profiles.GetProfile(ctx, sess.UserID)
		if err != nil {
			return "", err
		}
		if p.RegionID == nil {
			return "", fmt.Errorf("%w: no region assigned", domain.ErrForbidden)
		}
		if regionID != "" && regionID != *p.RegionID {
			return "", fmt.Errorf("%w: region %s is outside your assignment", domain.ErrForbidden, regionID)
		}
		return *p.RegionID, nil
	}
	return "", fmt.Errorf("%w: reports are for administrators", domain.ErrForbidden)
}

func (s *reportService) RegionalMetrics(ctx context.Context, year int) ([]domain.RegionalMetric, error) {
	region, err := s.scope(ctx, "")
	if err != nil {
		return nil, err
	}
	rows, err := s.reports.RegionalMetrics(ctx, fiscalYear(year, s.now()))
	if err != nil || region == "" {
		return rows, err
	}
	out := make([]domain.RegionalMetric, 0, 1)
	for _, r := range rows {
		if r.RegionID == region {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *reportService) BudgetUtilizationByMonth(ctx context.Context, year int) ([]domain.MonthlyUtilization, error) {
	if _, err := s.scope(ctx, ""); err != nil {
		return nil, err
	}
	return s.reports.BudgetUtilizationByMonth(ctx, fiscalYear(year, s.now()))
}

func (s *reportService) CategoryDistribution(ctx context.Context, year int) ([]domain.CategoryShare, error) {
	if _, err := s.scope(ctx, ""); err != nil {
		return nil, err
	}
	return s.reports.CategoryDistribution(ctx, fiscalYear(year, s.now()))
}

func (s *reportService) ApprovalRates(ctx context.Context, year int) (domain.ApprovalRates, error) {
	if _, err := s.scope(ctx, ""); err != nil {
		return domain.ApprovalRates{}, err
	}
	return s.reports.ApprovalRates(ctx, fiscalYear(year, s.now()))
}

func (s *reportService) RegionalBudgetReport(ctx context.Context, year int, regionID string) ([]domain.RegionalBudgetLine, error) {
	region, err := s.scope(ctx, regionID)
	if err != nil {
		return nil, err
	}
	return s.reports.RegionalBudgetReport(ctx, fiscalYear(year, s.now()), region)
}

// Dashboard runs the aggregates concurrently; the first failure cancels the rest
func (s *reportService) Dashboard(ctx context.Context, year int) (*domain.Dashboard, error) {
	if _, err := s.scope(ctx, ""); err != nil {
		return nil, err
	}
	year = fiscalYear(year, s.now())
	d := &domain.Dashboard{FiscalYear: year}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.RegionalMetrics(gctx, year)
		d.Regions = rows
		return err
	})
	g.Go(func() error {
		rows, err := s.reports.BudgetUtilizationByMonth(gctx, year)
		d.Monthly = rows
		return err
	})
	g.Go(func() error {
		rows, err := s.reports.CategoryDistribution(gctx, year)
		d.Categories = rows
		return err
	})
	g.Go(func() error {
		rates, err := s.reports.ApprovalRates(gctx, year)
		d.Approvals = rates
		return err
	})
	g.Go(func() error {
		ab, err := s.budgets.GetAnnualBudget(gctx, year)
		if err != nil && !isNotFound(err) {
			return err
		}
		d.AnnualBudget = ab
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("Failed to build dashboard", zap.Int("fiscal_year", year), zap.Error(err))
		return nil, err
	}
	return d, nil
}

var budgetReportHeaders = []string{
	"Region", "Organization", "Total Allocation (PHP)", "Spent (PHP)", "Remaining (PHP)", "Utilization %",
}

// ExportBudgetReport the regional budget report as an .xlsx workbook
func (s *reportService) ExportBudgetReport(ctx context.Context, year int, regionID string) ([]byte, error) {
	lines, err := s.RegionalBudgetReport(ctx, year, regionID)
	if err != nil {
		return nil, err
	}
	year = fiscalYear(year, s.now())
	buf, err := BudgetWorkbook(year, lines)
	if err != nil {
		s.logger.Error("Failed to render budget workbook", zap.Int("fiscal_year", year), zap.Error(err))
		return nil, err
	}
	s.logger.Info("Budget report exported", zap.Int("fiscal_year", year), zap.Int("rows", len(lines)))
	return buf, nil
}

// BudgetWorkbook renders report lines into a single-sheet workbook with a totals row
func BudgetWorkbook(year int, lines []domain.RegionalBudgetLine) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := fmt.Sprintf("FY%d", year)
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"2E7D32"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	moneyFmt := "#,##0.00"
	moneyStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &moneyFmt})
	if err != nil {
		return nil, fmt.Errorf("failed to create money style: %w", err)
	}

	for col, h := range budgetReportHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
	}
	if err := f.SetCellStyle(sheet, "A1", "F1", headerStyle); err != nil {
		return nil, err
	}
	for i, w := range []float64{28, 40, 22, 18, 18, 14} {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			return nil, err
		}
	}

	var total, spent, remaining int64
	for i, l := range lines {
		row := i + 2
		util := 0.0
		if l.TotalAllocation > 0 {
			util = float64(l.Spent) * 100 / float64(l.TotalAllocation)
		}
		values := []any{
			l.RegionName, l.OrganizationName,
			pesos(l.TotalAllocation), pesos(l.Spent), pesos(l.RemainingBalance),
			fmt.Sprintf("%.1f", util),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, err
			}
		}
		total += l.TotalAllocation
		spent += l.Spent
		remaining += l.RemainingBalance
	}

	last := len(lines) + 2
	for col, v := range map[int]any{1: "Total", 3: pesos(total), 4: pesos(spent), 5: pesos(remaining)} {
		cell, _ := excelize.CoordinatesToCellName(col, last)
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return nil, err
		}
	}
	if err := f.SetCellStyle(sheet, "C2", fmt.Sprintf("E%d", last), moneyStyle); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// pesos centavos to a float for spreadsheet cells only
func pesos(centavos int64) float64 { return float64(centavos) / 100 }
