package repository

import (
	"context"
	"fmt"
	"sort"

	"agrikonek/internal/domain"
)

// MemoryNotificationsRepo notifications when DB is disabled
type MemoryNotificationsRepo struct {
	db *MemoryDB
}

func NewMemoryNotificationsRepo(db *MemoryDB) *MemoryNotificationsRepo {
	return &MemoryNotificationsRepo{db: db}
}

var _ NotificationsRepository = (*MemoryNotificationsRepo)(nil)

func (r *MemoryNotificationsRepo) CreateNotification(_ context.Context, n domain.NewNotification) (*domain.Notification, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.insertNotificationLocked(n), nil
}

func (r *MemoryNotificationsRepo) ListNotifications(_ context.Context, userID string, unreadOnly bool, limit int) ([]*domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := []*domain.Notification{}
	for _, n := range r.db.notifications {
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		cp := *n
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryNotificationsRepo) UnreadCount(_ context.Context, userID string) (int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	count := 0
	for _, n := range r.db.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *MemoryNotificationsRepo) ownedLocked(op, userID, id string) (*domain.Notification, error) {
	n, ok := r.db.notifications[id]
	if !ok {
		return nil, notFound(op)
	}
	if n.UserID != userID {
		return nil, fmt.Errorf("%s: notification belongs to another user: %w", op, domain.ErrForbidden)
	}
	return n, nil
}

func (r *MemoryNotificationsRepo) MarkAsRead(_ context.Context, userID, notificationID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n, err := r.ownedLocked("mark as read", userID, notificationID)
	if err != nil {
		return err
	}
	n.IsRead = true
	return nil
}

func (r *MemoryNotificationsRepo) MarkAllAsRead(_ context.Context, userID string) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var changed int64
	for _, n := range r.db.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			changed++
		}
	}
	return changed, nil
}

func (r *MemoryNotificationsRepo) DeleteNotification(_ context.Context, userID, notificationID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, err := r.ownedLocked("delete notification", userID, notificationID); err != nil {
		return err
	}
	delete(r.db.notifications, notificationID)
	return nil
}

func copyPrefs(p *domain.NotificationPreferences) *domain.NotificationPreferences {
	cp := *p
	cp.CategoryPreferences = make(map[domain.NotificationCategory]bool, len(p.CategoryPreferences))
	for k, v := range p.CategoryPreferences {
		cp.CategoryPreferences[k] = v
	}
	return &cp
}

func (r *MemoryNotificationsRepo) GetPreferences(_ context.Context, userID string) (*domain.NotificationPreferences, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	p, ok := r.db.prefs[userID]
	if !ok {
		return nil, notFound("get preferences")
	}
	return copyPrefs(p), nil
}

func (r *MemoryNotificationsRepo) UpsertPreferences(_ context.Context, p *domain.NotificationPreferences) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if p.Timezone == "" {
		p.Timezone = "Asia/Manila"
	}
	p.UpdatedAt = r.db.now()
	r.db.prefs[p.UserID] = copyPrefs(p)
	return nil
}
