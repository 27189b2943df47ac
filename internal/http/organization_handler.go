package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"agrikonek/internal/domain"
	"agrikonek/internal/service"
)

// OrganizationHandler organizations, their admins and membership applications
type OrganizationHandler struct {
	orgs   service.OrganizationService
	logger *zap.Logger
}

func NewOrganizationHandler(orgs service.OrganizationService, logger *zap.Logger) *OrganizationHandler {
	return &OrganizationHandler{orgs: orgs, logger: logger}
}

// Organizations /api/v1/organizations[/mine|/joined|/{id}[/status|/admins|/members]]
func (h *OrganizationHandler) Organizations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	parts := pathParts(r.URL.Path, "/api/v1/organizations")

	if len(parts) == 0 {
		switch r.Method {
		case http.MethodGet:
			q := r.URL.Query()
			res, err := h.orgs.ListOrganizations(ctx, domain.OrganizationFilter{
				RegionID: q.Get("region_id"),
				Status:   domain.OrganizationStatus(q.Get("status")),
				Search:   q.Get("search"),
			})
			respond(w, h.logger, res, err)
		case http.MethodPost:
			var req service.CreateOrganizationRequest
			if !decode(w, r, &req) {
				return
			}
			org, err := h.orgs.CreateOrganization(ctx, req)
			respond(w, h.logger, org, err)
		default:
			methodNotAllowed(w)
		}
		return
	}

	if len(parts) == 1 {
		switch {
		case parts[0] == "mine" && r.Method == http.MethodGet:
			org, err := h.orgs.GetOrganizationByAdmin(ctx)
			respond(w, h.logger, org, err)
		case parts[0] == "joined" && r.Method == http.MethodGet:
			org, err := h.orgs.GetOrganizationForMember(ctx)
			respond(w, h.logger, org, err)
		case r.Method == http.MethodGet:
			org, err := h.orgs.GetOrganization(ctx, parts[0])
			respond(w, h.logger, org, err)
		case r.Method == http.MethodPatch:
			var update domain.OrganizationUpdate
			if !decode(w, r, &update) {
				return
			}
			org, err := h.orgs.UpdateOrganization(ctx, parts[0], update)
			respond(w, h.logger, org, err)
		case r.Method == http.MethodDelete:
			err := h.orgs.DeleteOrganization(ctx, parts[0])
			respond(w, h.logger, map[string]string{"id": parts[0]}, err)
		default:
			methodNotAllowed(w)
		}
		return
	}

	if len(parts) != 2 {
		notFound(w)
		return
	}
	id := parts[0]
	switch parts[1] {
	case "status":
		if r.Method != http.MethodPut {
			methodNotAllowed(w)
			return
		}
		var body struct {
			Status domain.OrganizationStatus `json:"status"`
		}
		if !decode(w, r, &body) {
			return
		}
		org, err := h.orgs.SetOrganizationStatus(ctx, id, body.Status)
		respond(w, h.logger, org, err)
	case "admins":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		var body struct {
			UserID string `json:"user_id"`
		}
		if !decode(w, r, &body) {
			return
		}
		a, err := h.orgs.AssignOrganizationAdmin(ctx, id, body.UserID)
		respond(w, h.logger, a, err)
	case "members":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		res, err := h.orgs.ListMembers(ctx, id, domain.MemberStatus(r.URL.Query().Get("status")))
		respond(w, h.logger, res, err)
	default:
		notFound(w)
	}
}

// Memberships POST /api/v1/memberships, POST /api/v1/memberships/{id}/approve|reject
func (h *OrganizationHandler) Memberships(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	ctx := r.Context()
	parts := pathParts(r.URL.Path, "/api/v1/memberships")

	switch {
	case len(parts) == 0:
		var req service.ApplyRequest
		if !decode(w, r, &req) {
			return
		}
		m, err := h.orgs.ApplyToOrganization(ctx, req)
		respond(w, h.logger, m, err)
	case len(parts) == 2 && parts[1] == "approve":
		m, err := h.orgs.ApproveApplication(ctx, parts[0])
		respond(w, h.logger, m, err)
	case len(parts) == 2 && parts[1] == "reject":
		m, err := h.orgs.RejectApplication(ctx, parts[0])
		respond(w, h.logger, m, err)
	default:
		notFound(w)
	}
}
