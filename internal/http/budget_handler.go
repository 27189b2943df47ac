package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"agrikonek/internal/domain"
	"agrikonek/internal/service"
)

type BudgetHandler struct {
	budgets service.BudgetService
	logger  *zap.Logger
}

func NewBudgetHandler(budgets service.BudgetService, logger *zap.Logger) *BudgetHandler {
	return &BudgetHandler{budgets: budgets, logger: logger}
}

// Budgets /api/v1/budgets/{orgID} (GET, PUT allocate) and /api/v1/budgets/{orgID}/expenses (GET, POST)
func (h *BudgetHandler) Budgets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	parts := pathParts(r.URL.Path, "/api/v1/budgets")
	year := parseInt(r.URL.Query().Get("fiscal_year"), 0)

	switch {
	case len(parts) == 1:
		orgID := parts[0]
		switch r.Method {
		case http.MethodGet:
			b, err := h.budgets.GetOrganizationBudget(ctx, orgID, year)
			respond(w, h.logger, b, err)
		case http.MethodPut:
			var req service.AllocateBudgetRequest
			if !decode(w, r, &req) {
				return
			}
			req.OrganizationID = orgID
			b, err := h.budgets.AllocateOrganizationBudget(ctx, req)
			respond(w, h.logger, b, err)
		default:
			methodNotAllowed(w)
		}
	case len(parts) == 2 && parts[1] == "expenses":
		orgID := parts[0]
		switch r.Method {
		case http.MethodGet:
			res, err := h.budgets.ListExpenses(ctx, orgID, year)
			respond(w, h.logger, res, err)
		case http.MethodPost:
			var req service.RecordExpenseRequest
			if !decode(w, r, &req) {
				return
			}
			req.OrganizationID = orgID
			b, err := h.budgets.RecordExpense(ctx, req)
			respond(w, h.logger, b, err)
		default:
			methodNotAllowed(w)
		}
	default:
		notFound(w)
	}
}

// BudgetRequests /api/v1/budget-requests (GET, POST), POST /api/v1/budget-requests/{id}/process
func (h *BudgetHandler) BudgetRequests(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	parts := pathParts(r.URL.Path, "/api/v1/budget-requests")

	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		q := r.URL.Query()
		res, err := h.budgets.ListBudgetRequests(ctx, domain.BudgetRequestFilter{
			OrganizationID: q.Get("organization_id"),
			RegionID:       q.Get("region_id"),
			Status:         domain.BudgetRequestStatus(q.Get("status")),
		})
		respond(w, h.logger, res, err)
	case len(parts) == 0 && r.Method == http.MethodPost:
		var req service.BudgetIncreaseRequest
		if !decode(w, r, &req) {
			return
		}
		br, err := h.budgets.RequestBudgetIncrease(ctx, req)
		respond(w, h.logger, br, err)
	case len(parts) == 0:
		methodNotAllowed(w)
	case len(parts) == 2 && parts[1] == "process":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		var req service.ProcessRequest
		if !decode(w, r, &req) {
			return
		}
		req.RequestID = parts[0]
		out, err := h.budgets.ProcessBudgetRequest(ctx, req)
		respond(w, h.logger, out, err)
	default:
		notFound(w)
	}
}
