package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"agrikonek/internal/domain"
	"agrikonek/internal/service"
)

// FarmerHandler /api/v1/farmer/profile and /api/v1/farmer/{plots|crops|activities|resources|tasks}[/{id}]
type FarmerHandler struct {
	farmers service.FarmerService
	logger  *zap.Logger
}

func NewFarmerHandler(farmers service.FarmerService, logger *zap.Logger) *FarmerHandler {
	return &FarmerHandler{farmers: farmers, logger: logger}
}

func (h *FarmerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/api/v1/farmer")
	switch {
	case len(parts) == 1 && parts[0] == "profile":
		h.profile(w, r)
	case len(parts) == 1 && domain.RecordKind(parts[0]).Valid():
		switch r.Method {
		case http.MethodGet:
			h.list(w, r, domain.RecordKind(parts[0]))
		case http.MethodPost:
			h.create(w, r, domain.RecordKind(parts[0]))
		default:
			methodNotAllowed(w)
		}
	case len(parts) == 2 && domain.RecordKind(parts[0]).Valid():
		kind, id := domain.RecordKind(parts[0]), parts[1]
		switch r.Method {
		case http.MethodPatch:
			var body struct {
				Status string `json:"status"`
			}
			if !decode(w, r, &body) {
				return
			}
			err := h.farmers.UpdateRecordStatus(r.Context(), kind, id, body.Status)
			respond(w, h.logger, map[string]string{"id": id, "status": body.Status}, err)
		case http.MethodDelete:
			err := h.farmers.DeleteRecord(r.Context(), kind, id)
			respond(w, h.logger, map[string]string{"id": id}, err)
		default:
			methodNotAllowed(w)
		}
	default:
		notFound(w)
	}
}

func (h *FarmerHandler) profile(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		p, err := h.farmers.GetFarmerProfile(r.Context())
		respond(w, h.logger, p, err)
	case http.MethodPut:
		var req service.SaveFarmerProfileRequest
		if !decode(w, r, &req) {
			return
		}
		p, err := h.farmers.SaveFarmerProfile(r.Context(), req)
		respond(w, h.logger, p, err)
	default:
		methodNotAllowed(w)
	}
}

func (h *FarmerHandler) list(w http.ResponseWriter, r *http.Request, kind domain.RecordKind) {
	ctx := r.Context()
	switch kind {
	case domain.RecordPlot:
		res, err := h.farmers.ListPlots(ctx)
		respond(w, h.logger, res, err)
	case domain.RecordCrop:
		res, err := h.farmers.ListCrops(ctx)
		respond(w, h.logger, res, err)
	case domain.RecordActivity:
		res, err := h.farmers.ListActivities(ctx, r.URL.Query().Get("crop_id"))
		respond(w, h.logger, res, err)
	case domain.RecordResource:
		res, err := h.farmers.ListResources(ctx)
		respond(w, h.logger, res, err)
	case domain.RecordTask:
		res, err := h.farmers.ListTasks(ctx)
		respond(w, h.logger, res, err)
	}
}

func (h *FarmerHandler) create(w http.ResponseWriter, r *http.Request, kind domain.RecordKind) {
	ctx := r.Context()
	switch kind {
	case domain.RecordPlot:
		var v domain.FarmPlot
		if decode(w, r, &v) {
			respond(w, h.logger, &v, h.farmers.CreatePlot(ctx, &v))
		}
	case domain.RecordCrop:
		var v domain.Crop
		if decode(w, r, &v) {
			respond(w, h.logger, &v, h.farmers.CreateCrop(ctx, &v))
		}
	case domain.RecordActivity:
		var v domain.CropActivity
		if decode(w, r, &v) {
			respond(w, h.logger, &v, h.farmers.CreateActivity(ctx, &v))
		}
	case domain.RecordResource:
		var v domain.FarmResource
		if decode(w, r, &v) {
			respond(w, h.logger, &v, h.farmers.CreateResource(ctx, &v))
		}
	case domain.RecordTask:
		var v domain.FarmingTask
		if decode(w, r, &v) {
			respond(w, h.logger, &v, h.farmers.CreateTask(ctx, &v))
		}
	}
}
