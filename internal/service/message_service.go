package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"agrikonek/internal/domain"
	"agrikonek/internal/repository"
)

// MessageService direct and organization conversations of the calling user
type MessageService interface {
	ListConversations(ctx context.Context) ([]*domain.ConversationSummary, error)
	StartDirectConversation(ctx context.Context, otherUserID string) (*domain.Conversation, error)
	OrganizationConversation(ctx context.Context, orgID string) (*domain.Conversation, error)
	SendMessage(ctx context.Context, conversationID, content string) (*domain.Message, error)
	GetMessages(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error)
	MarkConversationRead(ctx context.Context, conversationID string) error
}

const (
	maxMessageLength    = 4000
	defaultMessageLimit = 100
	maxMessageLimit     = 500
)

type messageService struct {
	messages repository.MessagesRepository
	profiles repository.ProfilesRepository
	orgs     repository.OrganizationsRepository
	notifier Notifier
	now      func() time.Time
	logger   *zap.Logger
}

func NewMessageService(repos *repository.Repositories, notifier Notifier, logger *zap.Logger) MessageService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &messageService{
		messages: repos.Messages,
		profiles: repos.Profiles,
		orgs:     repos.Organizations,
		notifier: notifier,
		now:      time.Now,
		logger:   logger,
	}
}

func (s *messageService) ListConversations(ctx context.Context) ([]*domain.ConversationSummary, error) {
	sess, err := currentSession(ctx)
	if err != nil {
		return nil, err
	}
	return s.messages.ListConversations(ctx, sess.UserID)
}

func (s *messageService) StartDirectConversation(ctx context.Context, otherUserID string) (*domain.Conversation, error) {
	sess, err := currentSession(ctx)
	if err != nil {
		return nil, err
	}
	otherUserID = strings.TrimSpace(otherUserID)
	if otherUserID == "" || otherUserID == sess.UserID {
		return nil, fmt.Errorf("%w: pick another user to talk to", domain.ErrInvalidArgument)
	}
	if _, err := s.profiles.GetProfile(ctx, otherUserID); err != nil {
		return nil, err
	}
	c, created, err := s.messages.GetOrCreateDirect(ctx, sess.UserID, otherUserID)
	if err != nil {
		return nil, err
	}
	if created {
		s.logger.Debug("Direct conversation started", zap.String("conversation_id", c.ID))
	}
	return c, nil
}

func (s *messageService) OrganizationConversation(ctx context.Context, orgID string) (*domain.Conversation, error) {
	sess, err := currentSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.orgParticipant(ctx, sess, orgID); err != nil {
		return nil, err
	}
	return s.messages.GetOrCreateOrganization(ctx, orgID)
}

func (s *messageService) SendMessage(ctx context.Context, conversationID, content string) (*domain.Message, error) {
	sess, err := currentSession(ctx)
	if err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: message is empty", domain.ErrInvalidArgument)
	}
	if utf8.RuneCountInString(content) > maxMessageLength {
		return nil, fmt.Errorf("%w: message longer than %d characters", domain.ErrInvalidArgument, maxMessageLength)
	}
	c, err := s.authorize(ctx, sess, conversationID)
	if err != nil {
		return nil, err
	}

	var notice *domain.NewNotification
	if c.Kind == domain.ConversationDirect {
		notice = s.messageNotice(ctx, sess, c, content)
	}
	msg := &domain.Message{ConversationID: c.ID, SenderID: sess.UserID, Content: content}
	n, err := s.messages.CreateMessage(ctx, msg, notice)
	if err != nil {
		return nil, err
	}
	if n != nil {
		s.notifier.Enqueue(n)
	}
	return msg, nil
}

func (s *messageService) GetMessages(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error) {
	sess, err := currentSession(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(ctx, sess, conversationID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultMessageLimit
	}
	if limit > maxMessageLimit {
		limit = maxMessageLimit
	}
	return s.messages.ListMessages(ctx, conversationID, limit)
}

func (s *messageService) MarkConversationRead(ctx context.Context, conversationID string) error {
	sess, err := currentSession(ctx)
	if err != nil {
		return err
	}
	if _, err := s.authorize(ctx, sess, conversationID); err != nil {
		return err
	}
	return s.messages.MarkConversationRead(ctx, conversationID, sess.UserID, s.now())
}

// authorize direct: the two participants; organization: active members and admins. Superadmins pass.
func (s *messageService) authorize(ctx context.Context, sess domain.Session, conversationID string) (*domain.Conversation, error) {
	c, err := s.messages.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if sess.IsSuperadmin() {
		return c, nil
	}
	switch c.Kind {
	case domain.ConversationDirect:
		for _, p := range c.Participants() {
			if p == sess.UserID {
				return c, nil
			}
		}
		return nil, fmt.Errorf("%w: not a participant", domain.ErrForbidden)
	case domain.ConversationOrganization:
		if c.OrganizationID == nil {
			return nil, fmt.Errorf("%w: conversation has no organization", domain.ErrForbidden)
		}
		if err := s.orgParticipant(ctx, sess, *c.OrganizationID); err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, fmt.Errorf("%w: unknown conversation kind %q", domain.ErrForbidden, c.Kind)
}

func (s *messageService) orgParticipant(ctx context.Context, sess domain.Session, orgID string) error {
	if sess.IsSuperadmin() {
		return nil
	}
	admin, err := s.orgs.IsAdmin(ctx, orgID, sess.UserID)
	if err != nil {
		return err
	}
	if admin {
		return nil
	}
	member, err := s.orgs.IsActiveMember(ctx, orgID, sess.UserID)
	if err != nil {
		return err
	}
	if !member {
		return fmt.Errorf("%w: not a member of organization %s", domain.ErrForbidden, orgID)
	}
	return nil
}

func (s *messageService) messageNotice(ctx context.Context, sess domain.Session, c *domain.Conversation, content string) *domain.NewNotification {
	recipient := c.Other(sess.UserID)
	if recipient == "" {
		return nil
	}
	sender := "Someone"
	if p, err := s.profiles.GetProfile(ctx, sess.UserID); err == nil && p.FullName != "" {
		sender = p.FullName
	}
	preview := content
	if utf8.RuneCountInString(preview) > 80 {
		preview = string([]rune(preview)[:80]) + "..."
	}
	link := "/messages/" + c.ID
	return &domain.NewNotification{
		UserID:   recipient,
		Title:    "New message from " + sender,
		Message:  preview,
		Category: domain.CategoryMessage,
		Priority: domain.NotifyMedium,
		Link:     &link,
	}
}
