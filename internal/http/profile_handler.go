package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"agrikonek/internal/service"
)

// ProfileHandler /api/v1/profiles/me and the superadmin /api/v1/profiles/{userID}
type ProfileHandler struct {
	profiles service.ProfileService
	logger   *zap.Logger
}

func NewProfileHandler(profiles service.ProfileService, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, logger: logger}
}

func (h *ProfileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	parts := pathParts(r.URL.Path, "/api/v1/profiles")
	if len(parts) != 1 {
		notFound(w)
		return
	}

	if parts[0] == "me" {
		switch r.Method {
		case http.MethodGet:
			p, err := h.profiles.GetMyProfile(ctx)
			respond(w, h.logger, p, err)
		case http.MethodPut:
			var req service.UpdateMyProfileRequest
			if !decode(w, r, &req) {
				return
			}
			p, err := h.profiles.UpdateMyProfile(ctx, req)
			respond(w, h.logger, p, err)
		default:
			methodNotAllowed(w)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		p, err := h.profiles.GetProfile(ctx, parts[0])
		respond(w, h.logger, p, err)
	case http.MethodPut:
		var req service.UpsertProfileRequest
		if !decode(w, r, &req) {
			return
		}
		p, err := h.profiles.UpsertProfile(ctx, parts[0], req)
		respond(w, h.logger, p, err)
	default:
		methodNotAllowed(w)
	}
}
