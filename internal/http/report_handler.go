package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"agrikonek/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ReportHandler struct {
	reports service.ReportService
	logger  *zap.Logger
}

func NewReportHandler(reports service.ReportService, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{reports: reports, logger: logger}
}

// ServeHTTP GET /api/v1/reports/{name}?fiscal_year=&region_id=
func (h *ReportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	parts := pathParts(r.URL.Path, "/api/v1/reports")
	if len(parts) != 1 {
		notFound(w)
		return
	}
	ctx := r.Context()
	q := r.URL.Query()
	year := parseInt(q.Get("fiscal_year"), 0)

	switch parts[0] {
	case "regional-metrics":
		res, err := h.reports.RegionalMetrics(ctx, year)
		respond(w, h.logger, res, err)
	case "monthly-utilization":
		res, err := h.reports.BudgetUtilizationByMonth(ctx, year)
		respond(w, h.logger, res, err)
	case "category-distribution":
		res, err := h.reports.CategoryDistribution(ctx, year)
		respond(w, h.logger, res, err)
	case "approval-rates":
		res, err := h.reports.ApprovalRates(ctx, year)
		respond(w, h.logger, res, err)
	case "regional-budget":
		res, err := h.reports.RegionalBudgetReport(ctx, year, q.Get("region_id"))
		respond(w, h.logger, res, err)
	case "dashboard":
		res, err := h.reports.Dashboard(ctx, year)
		respond(w, h.logger, res, err)
	case "budget-export":
		buf, err := h.reports.ExportBudgetReport(ctx, year, q.Get("region_id"))
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		if year == 0 {
			year = time.Now().Year()
		}
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="budget-report-FY%d.xlsx"`, year))
		w.Header().Set("Content-Length", strconv.Itoa(len(buf)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf)
	default:
		notFound(w)
	}
}
