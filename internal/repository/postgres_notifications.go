package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"agrikonek/internal/domain"
)

type PostgresNotificationsRepository struct {
	db *sql.DB
}

func NewPostgresNotificationsRepository(db *sql.DB) *PostgresNotificationsRepository {
	return &PostgresNotificationsRepository{db: db}
}

var _ NotificationsRepository = (*PostgresNotificationsRepository)(nil)

// insertNotification is shared by every workflow that notifies inside its own transaction
func insertNotification(ctx context.Context, q queryer, n domain.NewNotification) (*domain.Notification, error) {
	if n.Priority == "" {
		n.Priority = domain.NotifyMedium
	}
	meta := n.Metadata
	if len(meta) == 0 {
		meta = json.RawMessage(`{}`)
	}
	out := &domain.Notification{
		UserID:   n.UserID,
		Title:    n.Title,
		Message:  n.Message,
		Category: n.Category,
		Priority: n.Priority,
		Link:     n.Link,
		Metadata: meta,
	}
	err := q.QueryRowContext(ctx, `
		INSERT INTO notifications (user_id, title, message, category, priority, link, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id::text, created_at
	`, n.UserID, n.Title, n.Message, n.Category, n.Priority, nullString(n.Link), []byte(meta)).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		return nil, classify("insert notification", err)
	}
	return out, nil
}

func (r *PostgresNotificationsRepository) CreateNotification(ctx context.Context, n domain.NewNotification) (*domain.Notification, error) {
	return insertNotification(ctx, r.db, n)
}

func (r *PostgresNotificationsRepository) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id::text, user_id::text, title, message, category, priority, is_read, link, metadata, created_at
		FROM notifications
		WHERE user_id = $1
	`
	if unreadOnly {
		query += ` AND is_read = FALSE`
	}
	query += ` ORDER BY created_at DESC LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, classify("list notifications", err)
	}
	defer rows.Close()

	out := []*domain.Notification{}
	for rows.Next() {
		var (
			n    domain.Notification
			link sql.NullString
			meta []byte
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Category, &n.Priority, &n.IsRead, &link, &meta, &n.CreatedAt); err != nil {
			return nil, classify("scan notification", err)
		}
		n.Link = stringPtr(link)
		if len(meta) > 0 {
			n.Metadata = json.RawMessage(meta)
		}
		out = append(out, &n)
	}
	return out, classify("list notifications", rows.Err())
}

func (r *PostgresNotificationsRepository) UnreadCount(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE`, userID).Scan(&n)
	return n, classify("unread count", err)
}

// checkOwner distinguishes a missing row from someone else's row
func (r *PostgresNotificationsRepository) checkOwner(ctx context.Context, op, userID, notificationID string) error {
	var owner string
	err := r.db.QueryRowContext(ctx, `SELECT user_id::text FROM notifications WHERE id = $1`, notificationID).Scan(&owner)
	if err != nil {
		return classify(op, err)
	}
	if owner != userID {
		return fmt.Errorf("%s: notification belongs to another user: %w", op, domain.ErrForbidden)
	}
	return nil
}

func (r *PostgresNotificationsRepository) MarkAsRead(ctx context.Context, userID, notificationID string) error {
	if err := r.checkOwner(ctx, "mark as read", userID, notificationID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, notificationID, userID)
	return classify("mark as read", err)
}

func (r *PostgresNotificationsRepository) MarkAllAsRead(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE`, userID)
	if err != nil {
		return 0, classify("mark all as read", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *PostgresNotificationsRepository) DeleteNotification(ctx context.Context, userID, notificationID string) error {
	if err := r.checkOwner(ctx, "delete notification", userID, notificationID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1 AND user_id = $2`, notificationID, userID)
	return classify("delete notification", err)
}

func (r *PostgresNotificationsRepository) GetPreferences(ctx context.Context, userID string) (*domain.NotificationPreferences, error) {
	var (
		p     domain.NotificationPreferences
		cats  []byte
		start sql.NullString
		end   sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id::text, email_enabled, push_enabled, category_preferences,
		       quiet_hours_start, quiet_hours_end, timezone, updated_at
		FROM notification_preferences
		WHERE user_id = $1
	`, userID).Scan(&p.UserID, &p.EmailEnabled, &p.PushEnabled, &cats, &start, &end, &p.Timezone, &p.UpdatedAt)
	if err != nil {
		return nil, classify("get preferences", err)
	}
	p.CategoryPreferences = map[domain.NotificationCategory]bool{}
	if len(cats) > 0 {
		if err := json.Unmarshal(cats, &p.CategoryPreferences); err != nil {
			return nil, fmt.Errorf("get preferences: decode category_preferences: %w", err)
		}
	}
	p.QuietHoursStart = stringPtr(start)
	p.QuietHoursEnd = stringPtr(end)
	return &p, nil
}

func (r *PostgresNotificationsRepository) UpsertPreferences(ctx context.Context, p *domain.NotificationPreferences) error {
	cats := p.CategoryPreferences
	if cats == nil {
		cats = map[domain.NotificationCategory]bool{}
	}
	raw, err := json.Marshal(cats)
	if err != nil {
		return fmt.Errorf("upsert preferences: encode category_preferences: %w", err)
	}
	if p.Timezone == "" {
		p.Timezone = "Asia/Manila"
	}
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO notification_preferences (user_id, email_enabled, push_enabled, category_preferences,
		                                      quiet_hours_start, quiet_hours_end, timezone, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (user_id) DO UPDATE SET
			email_enabled = EXCLUDED.email_enabled,
			push_enabled = EXCLUDED.push_enabled,
			category_preferences = EXCLUDED.category_preferences,
			quiet_hours_start = EXCLUDED.quiet_hours_start,
			quiet_hours_end = EXCLUDED.quiet_hours_end,
			timezone = EXCLUDED.timezone,
			updated_at = now()
		RETURNING updated_at
	`, p.UserID, p.EmailEnabled, p.PushEnabled, raw, nullString(p.QuietHoursStart), nullString(p.QuietHoursEnd), p.Timezone).Scan(&p.UpdatedAt)
	return classify("upsert preferences", err)
}
