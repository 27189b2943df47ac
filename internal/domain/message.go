package domain

import "time"

type ConversationKind string

const (
	ConversationDirect       ConversationKind = "direct"
	ConversationOrganization ConversationKind = "organization"
)

// Conversation (conversations). Direct: ordered pair UserLow < UserHigh. Organization: one per org.
type Conversation struct {
	ID             string           `json:"id" db:"id"`
	Kind           ConversationKind `json:"kind" db:"kind"`
	OrganizationID *string          `json:"organization_id,omitempty" db:"organization_id"`
	UserLow        *string          `json:"-" db:"user_low"`
	UserHigh       *string          `json:"-" db:"user_high"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
}

// Participants of a direct conversation; nil for organization conversations
func (c Conversation) Participants() []string {
	if c.Kind != ConversationDirect || c.UserLow == nil || c.UserHigh == nil {
		return nil
	}
	return []string{*c.UserLow, *c.UserHigh}
}

// Other returns the participant that is not userID
func (c Conversation) Other(userID string) string {
	for _, p := range c.Participants() {
		if p != userID {
			return p
		}
	}
	return ""
}

// OrderedPair canonical (low, high) for a direct conversation
func OrderedPair(a, b string) (string, string) {
	if a < b {
		return a, b
	}
	return b, a
}

// Message (messages); listed by created_at ascending
type Message struct {
	ID             string    `json:"id" db:"id"`
	ConversationID string    `json:"conversation_id" db:"conversation_id"`
	SenderID       string    `json:"sender_id" db:"sender_id"`
	Content        string    `json:"content" db:"content"`
	IsRead         bool      `json:"is_read" db:"is_read"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// ConversationSummary list row for the inbox view
type ConversationSummary struct {
	Conversation
	Title       string   `json:"title"`
	LastMessage *Message `json:"last_message,omitempty"`
	UnreadCount int      `json:"unread_count"`
}
