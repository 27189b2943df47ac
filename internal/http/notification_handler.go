package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"agrikonek/internal/service"
)

// NotificationHandler the caller's own notifications and delivery preferences
type NotificationHandler struct {
	notifications service.NotificationService
	logger        *zap.Logger
}

func NewNotificationHandler(notifications service.NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, logger: logger}
}

func (h *NotificationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	parts := pathParts(r.URL.Path, "/api/v1/notifications")

	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		q := r.URL.Query()
		res, err := h.notifications.ListNotifications(ctx, q.Get("unread_only") == "true", parseInt(q.Get("limit"), 0))
		respond(w, h.logger, res, err)
	case len(parts) == 0 && r.Method == http.MethodPost:
		var req service.CreateNotificationRequest
		if !decode(w, r, &req) {
			return
		}
		n, err := h.notifications.CreateNotification(ctx, req)
		respond(w, h.logger, n, err)

	case len(parts) == 1 && parts[0] == "unread-count" && r.Method == http.MethodGet:
		count, err := h.notifications.UnreadCount(ctx)
		respond(w, h.logger, map[string]int{"count": count}, err)
	case len(parts) == 1 && parts[0] == "read-all" && r.Method == http.MethodPost:
		n, err := h.notifications.MarkAllAsRead(ctx)
		respond(w, h.logger, map[string]int64{"updated": n}, err)
	case len(parts) == 1 && parts[0] == "preferences" && r.Method == http.MethodGet:
		p, err := h.notifications.GetPreferences(ctx)
		respond(w, h.logger, p, err)
	case len(parts) == 1 && parts[0] == "preferences" && r.Method == http.MethodPut:
		var req service.UpdatePreferencesRequest
		if !decode(w, r, &req) {
			return
		}
		p, err := h.notifications.UpdatePreferences(ctx, req)
		respond(w, h.logger, p, err)
	case len(parts) == 1 && r.Method == http.MethodDelete:
		err := h.notifications.RemoveNotification(ctx, parts[0])
		respond(w, h.logger, map[string]string{"id": parts[0]}, err)
	case len(parts) == 2 && parts[1] == "read" && r.Method == http.MethodPost:
		err := h.notifications.MarkAsRead(ctx, parts[0])
		respond(w, h.logger, map[string]string{"id": parts[0]}, err)

	case len(parts) <= 2:
		methodNotAllowed(w)
	default:
		notFound(w)
	}
}
