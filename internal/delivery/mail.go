package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"agrikonek/internal/domain"
)

// MailRequest body posted to the transactional mail API
type MailRequest struct {
	From     string            `json:"from"`
	To       string            `json:"to"`
	Subject  string            `json:"subject"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// MailResponse answer of the mail API
type MailResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// MailClient email channel over an HTTP mail API
type MailClient struct {
	httpClient *resty.Client
	from       string
	logger     *zap.Logger
}

func NewMailClient(baseURL, apiKey, from string, logger *zap.Logger) *MailClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10*time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(3*time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == 429 || r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetAuthToken(apiKey)

	return &MailClient{httpClient: client, from: from, logger: logger}
}

func (c *MailClient) Send(ctx context.Context, to string, n *domain.Notification) error {
	if to == "" {
		return fmt.Errorf("send mail for notification %s: no address: %w", n.ID, domain.ErrInvalidArgument)
	}
	text := n.Message
	if n.Link != nil && *n.Link != "" {
		text += "\n\n" + *n.Link
	}
	req := MailRequest{
		From:    c.from,
		To:      to,
		Subject: n.Title,
		Text:    text,
		Metadata: map[string]string{
			"notification_id": n.ID,
			"category":        string(n.Category),
		},
	}

	var out MailResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/v1/send")
	if err != nil {
		return fmt.Errorf("failed to call mail API: %w", err)
	}
	if resp.IsError() {
		c.logger.Warn("Mail API rejected message",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("notification_id", n.ID),
		)
		return fmt.Errorf("mail API error: status %d", resp.StatusCode())
	}
	c.logger.Debug("Notification mailed", zap.String("notification_id", n.ID), zap.String("mail_id", out.ID))
	return nil
}
