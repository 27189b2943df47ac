package repository

import (
	"context"
	"time"

	"agrikonek/internal/domain"
)

// MessagesRepository direct and organization conversations
type MessagesRepository interface {
	GetConversation(ctx context.Context, conversationID string) (*domain.Conversation, error)
	// GetOrCreateDirect is idempotent on the unordered pair
	GetOrCreateDirect(ctx context.Context, userA, userB string) (*domain.Conversation, bool, error)
	GetOrCreateOrganization(ctx context.Context, orgID string) (*domain.Conversation, error)
	// ListConversations direct conversations of the user plus the group of every organization
	// where the user is an active member or an admin
	ListConversations(ctx context.Context, userID string) ([]*domain.ConversationSummary, error)

	// CreateMessage inserts the message and, when notice is non-nil, the recipient's notification
	CreateMessage(ctx context.Context, msg *domain.Message, notice *domain.NewNotification) (*domain.Notification, error)
	// ListMessages ascending by created_at, ties broken by insertion order
	ListMessages(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error)
	MarkConversationRead(ctx context.Context, conversationID, userID string, at time.Time) error
}
