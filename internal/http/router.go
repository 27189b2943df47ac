package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"agrikonek/internal/service"
)

// Router wraps http.ServeMux; API routes go through the middleware chain, Handle routes do not
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
	chain  []func(http.Handler) http.Handler
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

// Use appends middleware for routes registered afterwards; the first one added runs outermost
func (r *Router) Use(mw ...func(http.Handler) http.Handler) {
	r.chain = append(r.chain, mw...)
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) api(pattern string, h http.HandlerFunc) {
	var handler http.Handler = h
	for i := len(r.chain) - 1; i >= 0; i-- {
		handler = r.chain[i](handler)
	}
	r.mux.Handle(pattern, handler)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterHealthRoutes liveness check, outside the auth chain
func (r *Router) RegisterHealthRoutes() {
	r.Handle("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		writeJSON(w, http.StatusOK, Ok("ok"))
	})
}

func (r *Router) RegisterRegionRoutes(h *RegionHandler) {
	r.api("/api/v1/island-groups", h.IslandGroups)
	r.api("/api/v1/island-groups/", h.IslandGroups)
	r.api("/api/v1/regions", h.Regions)
	r.api("/api/v1/regions/", h.Regions)
	r.api("/api/v1/provinces", h.Provinces)
	r.api("/api/v1/region-budgets", h.RegionBudgets)
	r.api("/api/v1/annual-budgets", h.AnnualBudgets)
}

func (r *Router) RegisterOrganizationRoutes(h *OrganizationHandler) {
	r.api("/api/v1/organizations", h.Organizations)
	r.api("/api/v1/organizations/", h.Organizations)
	r.api("/api/v1/memberships", h.Memberships)
	r.api("/api/v1/memberships/", h.Memberships)
}

func (r *Router) RegisterBudgetRoutes(h *BudgetHandler) {
	r.api("/api/v1/budgets/", h.Budgets)
	r.api("/api/v1/budget-requests", h.BudgetRequests)
	r.api("/api/v1/budget-requests/", h.BudgetRequests)
}

func (r *Router) RegisterNotificationRoutes(h *NotificationHandler) {
	r.api("/api/v1/notifications", h.ServeHTTP)
	r.api("/api/v1/notifications/", h.ServeHTTP)
}

func (r *Router) RegisterConversationRoutes(h *ConversationHandler) {
	r.api("/api/v1/conversations", h.ServeHTTP)
	r.api("/api/v1/conversations/", h.ServeHTTP)
}

func (r *Router) RegisterFarmerRoutes(h *FarmerHandler) {
	r.api("/api/v1/farmer/", h.ServeHTTP)
}

func (r *Router) RegisterReportRoutes(h *ReportHandler) {
	r.api("/api/v1/reports/", h.ServeHTTP)
}

func (r *Router) RegisterProfileRoutes(h *ProfileHandler) {
	r.api("/api/v1/profiles/", h.ServeHTTP)
}

// RegisterAPI every /api/v1 route backed by svcs
func (r *Router) RegisterAPI(svcs *service.Services) {
	r.RegisterHealthRoutes()
	r.RegisterProfileRoutes(NewProfileHandler(svcs.Profiles, r.logger))
	r.RegisterRegionRoutes(NewRegionHandler(svcs.Regions, r.logger))
	r.RegisterOrganizationRoutes(NewOrganizationHandler(svcs.Organizations, r.logger))
	r.RegisterBudgetRoutes(NewBudgetHandler(svcs.Budgets, r.logger))
	r.RegisterNotificationRoutes(NewNotificationHandler(svcs.Notifications, r.logger))
	r.RegisterConversationRoutes(NewConversationHandler(svcs.Messages, r.logger))
	r.RegisterFarmerRoutes(NewFarmerHandler(svcs.Farmers, r.logger))
	r.RegisterReportRoutes(NewReportHandler(svcs.Reports, r.logger))
}
