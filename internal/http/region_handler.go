package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"agrikonek/internal/domain"
	"agrikonek/internal/service"
)

// RegionHandler island groups, regions, provinces and the budget envelopes above organizations
type RegionHandler struct {
	regions service.RegionService
	logger  *zap.Logger
}

func NewRegionHandler(regions service.RegionService, logger *zap.Logger) *RegionHandler {
	return &RegionHandler{regions: regions, logger: logger}
}

// IslandGroups GET /api/v1/island-groups, GET /api/v1/island-groups/{id}/regions
func (h *RegionHandler) IslandGroups(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	parts := pathParts(r.URL.Path, "/api/v1/island-groups")
	switch {
	case len(parts) == 0:
		res, err := h.regions.ListIslandGroups(r.Context())
		respond(w, h.logger, res, err)
	case len(parts) == 2 && parts[1] == "regions":
		res, err := h.regions.ListRegionsByIslandGroup(r.Context(), parts[0])
		respond(w, h.logger, res, err)
	default:
		notFound(w)
	}
}

type regionView struct {
	Region *domain.Region    `json:"region"`
	Source domain.DataSource `json:"source"`
}

// Regions /api/v1/regions[/{id}[/priority|/provinces|/agricultural-data]]
func (h *RegionHandler) Regions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	parts := pathParts(r.URL.Path, "/api/v1/regions")

	switch len(parts) {
	case 0:
		switch r.Method {
		case http.MethodGet:
			res, err := h.regions.ListRegions(ctx)
			respond(w, h.logger, res, err)
		case http.MethodPost:
			var req service.CreateRegionRequest
			if !decode(w, r, &req) {
				return
			}
			reg, err := h.regions.CreateRegion(ctx, req)
			respond(w, h.logger, reg, err)
		default:
			methodNotAllowed(w)
		}
		return
	case 1:
		id := parts[0]
		switch r.Method {
		case http.MethodGet:
			reg, src, err := h.regions.GetRegion(ctx, id)
			respond(w, h.logger, regionView{Region: reg, Source: src}, err)
		case http.MethodDelete:
			err := h.regions.DeleteRegion(ctx, id)
			respond(w, h.logger, map[string]string{"id": id}, err)
		default:
			methodNotAllowed(w)
		}
		return
	case 2:
	default:
		notFound(w)
		return
	}

	id := parts[0]
	switch parts[1] {
	case "priority":
		if r.Method != http.MethodPut {
			methodNotAllowed(w)
			return
		}
		var body struct {
			Priority domain.Priority `json:"priority"`
		}
		if !decode(w, r, &body) {
			return
		}
		err := h.regions.UpdateRegionPriority(ctx, id, body.Priority)
		respond(w, h.logger, map[string]any{"id": id, "priority": body.Priority}, err)
	case "provinces":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		res, err := h.regions.ListProvinces(ctx, id)
		respond(w, h.logger, res, err)
	case "agricultural-data":
		switch r.Method {
		case http.MethodGet:
			data, err := h.regions.GetAgriculturalData(ctx, id)
			respond(w, h.logger, data, err)
		case http.MethodPut:
			var data domain.AgriculturalData
			if !decode(w, r, &data) {
				return
			}
			data.RegionID = id
			err := h.regions.UpsertAgriculturalData(ctx, &data)
			respond(w, h.logger, &data, err)
		default:
			methodNotAllowed(w)
		}
	default:
		notFound(w)
	}
}

// Provinces POST /api/v1/provinces
func (h *RegionHandler) Provinces(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req service.CreateProvinceRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.regions.CreateProvince(r.Context(), req)
	respond(w, h.logger, p, err)
}

// RegionBudgets GET ?fiscal_year=, PUT {region_id, fiscal_year, amount}
func (h *RegionHandler) RegionBudgets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		res, err := h.regions.ListRegionBudgets(r.Context(), parseInt(r.URL.Query().Get("fiscal_year"), 0))
		respond(w, h.logger, res, err)
	case http.MethodPut:
		var req service.SetRegionBudgetRequest
		if !decode(w, r, &req) {
			return
		}
		b, err := h.regions.SetRegionBudget(r.Context(), req)
		respond(w, h.logger, b, err)
	default:
		methodNotAllowed(w)
	}
}

// AnnualBudgets GET ?fiscal_year=, PUT {fiscal_year, total_amount}
func (h *RegionHandler) AnnualBudgets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		ab, err := h.regions.GetAnnualBudget(r.Context(), parseInt(r.URL.Query().Get("fiscal_year"), 0))
		respond(w, h.logger, ab, err)
	case http.MethodPut:
		var req service.SetAnnualBudgetRequest
		if !decode(w, r, &req) {
			return
		}
		ab, err := h.regions.SetAnnualBudget(r.Context(), req)
		respond(w, h.logger, ab, err)
	default:
		methodNotAllowed(w)
	}
}
