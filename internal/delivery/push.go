// Package delivery sends committed notifications over external channels.
package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"agrikonek/internal/domain"
)

// Pusher push channel
type Pusher interface {
	Push(ctx context.Context, n *domain.Notification) error
}

// Mailer email channel
type Mailer interface {
	Send(ctx context.Context, to string, n *domain.Notification) error
}

// Publisher is satisfied by *platform/mqtt.Client
type Publisher interface {
	Publish(topic string, payload []byte, timeout time.Duration) error
}

// Topic per-user notification topic
func Topic(prefix, userID string) string {
	return fmt.Sprintf("%s/users/%s/notifications", prefix, userID)
}

type pushPayload struct {
	ID        string                      `json:"id"`
	Title     string                      `json:"title"`
	Message   string                      `json:"message"`
	Category  domain.NotificationCategory `json:"category"`
	Priority  domain.NotificationPriority `json:"priority"`
	Link      *string                     `json:"link,omitempty"`
	CreatedAt int64                       `json:"created_at"`
}

// MQTTPusher publishes to <prefix>/users/<user_id>/notifications
type MQTTPusher struct {
	pub     Publisher
	prefix  string
	timeout time.Duration
	logger  *zap.Logger
}

func NewMQTTPusher(pub Publisher, prefix string, logger *zap.Logger) *MQTTPusher {
	return &MQTTPusher{pub: pub, prefix: prefix, timeout: 5 * time.Second, logger: logger}
}

func (p *MQTTPusher) Push(ctx context.Context, n *domain.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(pushPayload{
		ID:        n.ID,
		Title:     n.Title,
		Message:   n.Message,
		Category:  n.Category,
		Priority:  n.Priority,
		Link:      n.Link,
		CreatedAt: n.CreatedAt.Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal push payload: %w", err)
	}

	timeout := p.timeout
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) < timeout {
		timeout = time.Until(dl)
	}
	topic := Topic(p.prefix, n.UserID)
	if err := p.pub.Publish(topic, payload, timeout); err != nil {
		return err
	}
	p.logger.Debug("Notification pushed", zap.String("topic", topic), zap.String("notification_id", n.ID))
	return nil
}
