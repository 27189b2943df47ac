package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"agrikonek/internal/domain"
)

// MemoryMessagesRepo conversations when DB is disabled
type MemoryMessagesRepo struct {
	db *MemoryDB
}

func NewMemoryMessagesRepo(db *MemoryDB) *MemoryMessagesRepo {
	return &MemoryMessagesRepo{db: db}
}

var _ MessagesRepository = (*MemoryMessagesRepo)(nil)

func copyConversation(c *domain.Conversation) *domain.Conversation {
	cp := *c
	return &cp
}

func (r *MemoryMessagesRepo) GetConversation(_ context.Context, conversationID string) (*domain.Conversation, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	c, ok := r.db.conversations[conversationID]
	if !ok {
		return nil, notFound("get conversation")
	}
	return copyConversation(c), nil
}

func (r *MemoryMessagesRepo) GetOrCreateDirect(_ context.Context, userA, userB string) (*domain.Conversation, bool, error) {
	if userA == userB {
		return nil, false, fmt.Errorf("direct conversation with self: %w", domain.ErrInvalidArgument)
	}
	lo, hi := domain.OrderedPair(userA, userB)

	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, c := range r.db.conversations {
		if c.Kind == domain.ConversationDirect && *c.UserLow == lo && *c.UserHigh == hi {
			return copyConversation(c), false, nil
		}
	}
	for _, u := range []string{lo, hi} {
		if _, ok := r.db.profiles[u]; !ok {
			return nil, false, constraint("create direct conversation", "unknown user %q", u)
		}
	}
	c := &domain.Conversation{ID: newID(), Kind: domain.ConversationDirect, UserLow: &lo, UserHigh: &hi, CreatedAt: r.db.now()}
	r.db.conversations[c.ID] = c
	return copyConversation(c), true, nil
}

func (r *MemoryMessagesRepo) GetOrCreateOrganization(_ context.Context, orgID string) (*domain.Conversation, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, c := range r.db.conversations {
		if c.OrganizationID != nil && *c.OrganizationID == orgID {
			return copyConversation(c), nil
		}
	}
	if _, ok := r.db.orgs[orgID]; !ok {
		return nil, constraint("create organization conversation", "unknown organization %q", orgID)
	}
	id := orgID
	c := &domain.Conversation{ID: newID(), Kind: domain.ConversationOrganization, OrganizationID: &id, CreatedAt: r.db.now()}
	r.db.conversations[c.ID] = c
	return copyConversation(c), nil
}

func (r *MemoryMessagesRepo) ListConversations(_ context.Context, userID string) ([]*domain.ConversationSummary, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	m := r.db

	out := []*domain.ConversationSummary{}
	for _, c := range m.conversations {
		s := &domain.ConversationSummary{Conversation: *c}
		switch c.Kind {
		case domain.ConversationDirect:
			if *c.UserLow != userID && *c.UserHigh != userID {
				continue
			}
			if p, ok := m.profiles[c.Other(userID)]; ok {
				s.Title = p.FullName
			}
		case domain.ConversationOrganization:
			orgID := *c.OrganizationID
			if !m.isAdminLocked(orgID, userID) && m.activeMembershipLocked(userID, orgID) == nil {
				continue
			}
			if o, ok := m.orgs[orgID]; ok {
				s.Title = o.Name
			}
		}
		lastRead := m.reads[pairKey(c.ID, userID)]
		for _, mm := range m.messagesLocked(c.ID) {
			msg := mm.msg
			s.LastMessage = &msg
			if msg.SenderID != userID && msg.CreatedAt.After(lastRead) {
				s.UnreadCount++
			}
		}
		out = append(out, s)
	}
	at := func(s *domain.ConversationSummary) time.Time {
		if s.LastMessage != nil {
			return s.LastMessage.CreatedAt
		}
		return s.CreatedAt
	}
	sort.Slice(out, func(i, j int) bool { return at(out[i]).After(at(out[j])) })
	return out, nil
}

// messagesLocked ascending by created_at then insertion order
func (m *MemoryDB) messagesLocked(conversationID string) []memMessage {
	var out []memMessage
	for _, mm := range m.messages {
		if mm.msg.ConversationID == conversationID {
			out = append(out, mm)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].msg.CreatedAt.Equal(out[j].msg.CreatedAt) {
			return out[i].msg.CreatedAt.Before(out[j].msg.CreatedAt)
		}
		return out[i].seq < out[j].seq
	})
	return out
}

func (r *MemoryMessagesRepo) CreateMessage(_ context.Context, msg *domain.Message, notice *domain.NewNotification) (*domain.Notification, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	m := r.db

	if _, ok := m.conversations[msg.ConversationID]; !ok {
		return nil, constraint("create message", "unknown conversation %q", msg.ConversationID)
	}
	m.seq++
	msg.ID = newID()
	msg.CreatedAt = m.now()
	msg.IsRead = false
	m.messages = append(m.messages, memMessage{seq: m.seq, msg: *msg})
	if prev := m.reads[pairKey(msg.ConversationID, msg.SenderID)]; msg.CreatedAt.After(prev) {
		m.reads[pairKey(msg.ConversationID, msg.SenderID)] = msg.CreatedAt
	}
	if notice == nil {
		return nil, nil
	}
	return m.insertNotificationLocked(*notice), nil
}

func (r *MemoryMessagesRepo) ListMessages(_ context.Context, conversationID string, limit int) ([]*domain.Message, error) {
	if limit <= 0 {
		limit = 200
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	all := r.db.messagesLocked(conversationID)
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]*domain.Message, 0, len(all))
	for _, mm := range all {
		msg := mm.msg
		out = append(out, &msg)
	}
	return out, nil
}

func (r *MemoryMessagesRepo) MarkConversationRead(_ context.Context, conversationID, userID string, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	key := pairKey(conversationID, userID)
	if at.After(r.db.reads[key]) {
		r.db.reads[key] = at
	}
	for i := range r.db.messages {
		mm := &r.db.messages[i]
		if mm.msg.ConversationID == conversationID && mm.msg.SenderID != userID && !mm.msg.CreatedAt.After(at) {
			mm.msg.IsRead = true
		}
	}
	return nil
}
