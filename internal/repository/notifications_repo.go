package repository

import (
	"context"

	"agrikonek/internal/domain"
)

// NotificationsRepository per-user notifications and delivery preferences.
// Owner-scoped mutations return ErrForbidden for someone else's row and ErrNotFound for a missing one.
type NotificationsRepository interface {
	CreateNotification(ctx context.Context, n domain.NewNotification) (*domain.Notification, error)
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*domain.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkAsRead(ctx context.Context, userID, notificationID string) error
	MarkAllAsRead(ctx context.Context, userID string) (int64, error)
	DeleteNotification(ctx context.Context, userID, notificationID string) error

	// GetPreferences ErrNotFound when the user never saved preferences
	GetPreferences(ctx context.Context, userID string) (*domain.NotificationPreferences, error)
	UpsertPreferences(ctx context.Context, prefs *domain.NotificationPreferences) error
}
