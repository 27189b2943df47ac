package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"agrikonek/internal/domain"
	"agrikonek/internal/repository"
)

// NotificationService in-app notifications of the calling user plus delivery preferences
type NotificationService interface {
	CreateNotification(ctx context.Context, req CreateNotificationRequest) (*domain.Notification, error)
	ListNotifications(ctx context.Context, unreadOnly bool, limit int) ([]*domain.Notification, error)
	UnreadCount(ctx context.Context) (int, error)
	MarkAsRead(ctx context.Context, notificationID string) error
	MarkAllAsRead(ctx context.Context) (int64, error)
	RemoveNotification(ctx context.Context, notificationID string) error
	GetPreferences(ctx context.Context) (*domain.NotificationPreferences, error)
	UpdatePreferences(ctx context.Context, req UpdatePreferencesRequest) (*domain.NotificationPreferences, error)
}

type CreateNotificationRequest struct {
	UserID   string                      `json:"user_id" validate:"required"`
	Title    string                      `json:"title" validate:"required,max=200"`
	Message  string                      `json:"message" validate:"required,max=2000"`
	Category domain.NotificationCategory `json:"category" validate:"omitempty,oneof=system budget message alert"`
	Priority domain.NotificationPriority `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Link     *string                     `json:"link,omitempty"`
	Metadata json.RawMessage             `json:"metadata,omitempty"`
}

type UpdatePreferencesRequest struct {
	EmailEnabled        *bool                                `json:"email_enabled"`
	PushEnabled         *bool                                `json:"push_enabled"`
	CategoryPreferences map[domain.NotificationCategory]bool `json:"category_preferences"`
	QuietHoursStart     *string                              `json:"quiet_hours_start" validate:"omitempty,clock"`
	QuietHoursEnd       *string                              `json:"quiet_hours_end" validate:"omitempty,clock"`
	Timezone            *string                              `json:"timezone"`
}

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

type notificationService struct {
	notifications repository.NotificationsRepository
	notifier      Notifier
	logger        *zap.Logger
}

func NewNotificationService(repos *repository.Repositories, notifier Notifier, logger *zap.Logger) NotificationService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &notificationService{notifications: repos.Notifications, notifier: notifier, logger: logger}
}

// CreateNotification lets admins notify a user directly; anyone may notify themselves
func (s *notificationService) CreateNotification(ctx context.Context, req CreateNotificationRequest) (*domain.Notification, error) {
	sess, err := currentSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := check(req); err != nil {
		return nil, err
	}
	if req.UserID != sess.UserID && sess.Role == domain.RoleFarmer {
		return nil, fmt.Errorf("%w: farmers can only notify themselves", domain.ErrForbidden)
	}
	if len(req.Metadata) > 0 && !json.Valid(req.Metadata) {
		return nil, fmt.Errorf("%w: metadata is not valid JSON", domain.ErrInvalidArgument)
	}
	in := domain.NewNotification{
		UserID:   req.UserID,
		Title:    strings.TrimSpace(req.Title),
		Message:  strings.TrimSpace(req.Message),
		Category: req.Category,
		Priority: req.Priority,
		Link:     req.Link,
		Metadata: req.Metadata,
	}
	if in.Category == "" {
		in.Category = domain.CategorySystem
	}
	if in.Priority == "" {
		in.Priority = domain.NotifyMedium
	}
	n, err := s.notifications.CreateNotification(ctx, in)
	if err != nil {
		return nil, err
	}
	s.notifier.Enqueue(n)
	return n, nil
}

func (s *notificationService) ListNotifications(ctx context.Context, unreadOnly bool, limit int) ([]*domain.Notification, error) {
	sess, err := currentSession(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}
	return s.notifications.ListNotifications(ctx, sess.UserID, unreadOnly, limit)
}

func (s *notificationService) UnreadCount(ctx context.Context) (int, error) {
	sess, err := currentSession(ctx)
	if err != nil {
		return 0, err
	}
	return s.notifications.UnreadCount(ctx, sess.UserID)
}

func (s *notificationService) MarkAsRead(ctx context.Context, notificationID string) error {
	sess, err := currentSession(ctx)
	if err != nil {
		return err
	}
	return s.notifications.MarkAsRead(ctx, sess.UserID, notificationID)
}

func (s *notificationService) MarkAllAsRead(ctx context.Context) (int64, error) {
	sess, err := currentSession(ctx)
	if err != nil {
		return 0, err
	}
	return s.notifications.MarkAllAsRead(ctx, sess.UserID)
}

func (s *notificationService) RemoveNotification(ctx context.Context, notificationID string) error {
	sess, err := currentSession(ctx)
	if err != nil {
		return err
	}
	return s.notifications.DeleteNotification(ctx, sess.UserID, notificationID)
}

func (s *notificationService) GetPreferences(ctx context.Context) (*domain.NotificationPreferences, error) {
	sess, err := currentSession(ctx)
	if err != nil {
		return nil, err
	}
	prefs, err := s.notifications.GetPreferences(ctx, sess.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		def := domain.DefaultPreferences(sess.UserID)
		return &def, nil
	}
	return prefs, err
}

func (s *notificationService) UpdatePreferences(ctx context.Context, req UpdatePreferencesRequest) (*domain.NotificationPreferences, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	prefs, err := s.GetPreferences(ctx)
	if err != nil {
		return nil, err
	}
	if req.EmailEnabled != nil {
		prefs.EmailEnabled = *req.EmailEnabled
	}
	if req.PushEnabled != nil {
		prefs.PushEnabled = *req.PushEnabled
	}
	if prefs.CategoryPreferences == nil {
		prefs.CategoryPreferences = map[domain.NotificationCategory]bool{}
	}
	for c, on := range req.CategoryPreferences {
		if !c.Valid() {
			return nil, fmt.Errorf("%w: unknown category %q", domain.ErrInvalidArgument, c)
		}
		prefs.CategoryPreferences[c] = on
	}
	// empty string clears the bound
	if req.QuietHoursStart != nil {
		prefs.QuietHoursStart = emptyToNil(*req.QuietHoursStart)
	}
	if req.QuietHoursEnd != nil {
		prefs.QuietHoursEnd = emptyToNil(*req.QuietHoursEnd)
	}
	if (prefs.QuietHoursStart == nil) != (prefs.QuietHoursEnd == nil) {
		return nil, fmt.Errorf("%w: quiet hours need both start and end", domain.ErrInvalidArgument)
	}
	if req.Timezone != nil {
		if _, err := time.LoadLocation(*req.Timezone); err != nil {
			return nil, fmt.Errorf("%w: unknown timezone %q", domain.ErrInvalidArgument, *req.Timezone)
		}
		prefs.Timezone = *req.Timezone
	}
	if err := s.notifications.UpsertPreferences(ctx, prefs); err != nil {
		return nil, err
	}
	return prefs, nil
}

func emptyToNil(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
