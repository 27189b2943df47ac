package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"agrikonek/internal/service"
)

type ConversationHandler struct {
	messages service.MessageService
	logger   *zap.Logger
}

func NewConversationHandler(messages service.MessageService, logger *zap.Logger) *ConversationHandler {
	return &ConversationHandler{messages: messages, logger: logger}
}

// ServeHTTP /api/v1/conversations[/organization/{orgID}|/{id}/messages|/{id}/read]
func (h *ConversationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	parts := pathParts(r.URL.Path, "/api/v1/conversations")

	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		res, err := h.messages.ListConversations(ctx)
		respond(w, h.logger, res, err)
	case len(parts) == 0 && r.Method == http.MethodPost:
		var body struct {
			UserID string `json:"user_id"`
		}
		if !decode(w, r, &body) {
			return
		}
		c, err := h.messages.StartDirectConversation(ctx, body.UserID)
		respond(w, h.logger, c, err)

	case len(parts) == 2 && parts[0] == "organization" && r.Method == http.MethodGet:
		c, err := h.messages.OrganizationConversation(ctx, parts[1])
		respond(w, h.logger, c, err)

	case len(parts) == 2 && parts[1] == "messages" && r.Method == http.MethodGet:
		res, err := h.messages.GetMessages(ctx, parts[0], parseInt(r.URL.Query().Get("limit"), 0))
		respond(w, h.logger, res, err)
	case len(parts) == 2 && parts[1] == "messages" && r.Method == http.MethodPost:
		var body struct {
			Content string `json:"content"`
		}
		if !decode(w, r, &body) {
			return
		}
		m, err := h.messages.SendMessage(ctx, parts[0], body.Content)
		respond(w, h.logger, m, err)
	case len(parts) == 2 && parts[1] == "read" && r.Method == http.MethodPost:
		err := h.messages.MarkConversationRead(ctx, parts[0])
		respond(w, h.logger, map[string]string{"id": parts[0]}, err)

	case len(parts) == 0, len(parts) == 2:
		methodNotAllowed(w)
	default:
		notFound(w)
	}
}
