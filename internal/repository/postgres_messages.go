package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"agrikonek/internal/domain"
)

type PostgresMessagesRepository struct {
	db *sql.DB
}

func NewPostgresMessagesRepository(db *sql.DB) *PostgresMessagesRepository {
	return &PostgresMessagesRepository{db: db}
}

var _ MessagesRepository = (*PostgresMessagesRepository)(nil)

const conversationColumns = `c.id::text, c.kind, c.organization_id::text, c.user_low::text, c.user_high::text, c.created_at`

func scanConversation(row interface{ Scan(...any) error }, extra ...any) (*domain.Conversation, error) {
	var (
		c         domain.Conversation
		org       sql.NullString
		low, high sql.NullString
	)
	dest := append([]any{&c.ID, &c.Kind, &org, &low, &high, &c.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	c.OrganizationID = stringPtr(org)
	c.UserLow = stringPtr(low)
	c.UserHigh = stringPtr(high)
	return &c, nil
}

func (r *PostgresMessagesRepository) GetConversation(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	c, err := scanConversation(r.db.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM conversations c WHERE c.id = $1`, conversationID))
	if err != nil {
		return nil, classify("get conversation", err)
	}
	return c, nil
}

func (r *PostgresMessagesRepository) GetOrCreateDirect(ctx context.Context, userA, userB string) (*domain.Conversation, bool, error) {
	if userA == userB {
		return nil, false, fmt.Errorf("direct conversation with self: %w", domain.ErrInvalidArgument)
	}
	lo, hi := domain.OrderedPair(userA, userB)

	c, err := scanConversation(r.db.QueryRowContext(ctx, `
		INSERT INTO conversations AS c (kind, user_low, user_high)
		VALUES ('direct', $1, $2)
		ON CONFLICT (user_low, user_high) DO NOTHING
		RETURNING `+conversationColumns, lo, hi))
	if err == nil {
		return c, true, nil
	}
	if err != sql.ErrNoRows {
		return nil, false, classify("create direct conversation", err)
	}
	c, err = scanConversation(r.db.QueryRowContext(ctx, `
		SELECT `+conversationColumns+` FROM conversations c WHERE c.user_low = $1 AND c.user_high = $2
	`, lo, hi))
	if err != nil {
		return nil, false, classify("get direct conversation", err)
	}
	return c, false, nil
}

func (r *PostgresMessagesRepository) GetOrCreateOrganization(ctx context.Context, orgID string) (*domain.Conversation, error) {
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO conversations (kind, organization_id) VALUES ('organization', $1)
		ON CONFLICT (organization_id) DO NOTHING
	`, orgID); err != nil {
		return nil, classify("create organization conversation", err)
	}
	c, err := scanConversation(r.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations c WHERE c.organization_id = $1`, orgID))
	if err != nil {
		return nil, classify("get organization conversation", err)
	}
	return c, nil
}

func (r *PostgresMessagesRepository) ListConversations(ctx context.Context, userID string) ([]*domain.ConversationSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+conversationColumns+`,
		       COALESCE(o.name, p.full_name, ''),
		       lm.id::text, lm.sender_id::text, lm.content, lm.is_read, lm.created_at,
		       (SELECT COUNT(*) FROM messages um
		         WHERE um.conversation_id = c.id AND um.sender_id <> $1
		           AND um.created_at > COALESCE(cr.last_read_at, '-infinity'::timestamptz))
		FROM conversations c
		LEFT JOIN organizations o ON o.id = c.organization_id
		LEFT JOIN profiles p ON p.user_id = CASE WHEN c.user_low = $1 THEN c.user_high ELSE c.user_low END
		LEFT JOIN conversation_reads cr ON cr.conversation_id = c.id AND cr.user_id = $1
		LEFT JOIN LATERAL (
			SELECT m.id, m.sender_id, m.content, m.is_read, m.created_at
			FROM messages m
			WHERE m.conversation_id = c.id
			ORDER BY m.created_at DESC, m.seq DESC
			LIMIT 1
		) lm ON TRUE
		WHERE (c.kind = 'direct' AND (c.user_low = $1 OR c.user_high = $1))
		   OR (c.kind = 'organization' AND (
		        EXISTS (SELECT 1 FROM organization_admins a WHERE a.organization_id = c.organization_id AND a.user_id = $1)
		     OR EXISTS (SELECT 1 FROM organization_members om
		                JOIN farmer_profiles f ON f.id = om.farmer_id
		                WHERE om.organization_id = c.organization_id AND f.user_id = $1 AND om.status = 'active')))
		ORDER BY COALESCE(lm.created_at, c.created_at) DESC
	`, userID)
	if err != nil {
		return nil, classify("list conversations", err)
	}
	defer rows.Close()

	out := []*domain.ConversationSummary{}
	for rows.Next() {
		var (
			s       domain.ConversationSummary
			mID     sql.NullString
			mSender sql.NullString
			mText   sql.NullString
			mRead   sql.NullBool
			mAt     sql.NullTime
		)
		c, err := scanConversation(rows, &s.Title, &mID, &mSender, &mText, &mRead, &mAt, &s.UnreadCount)
		if err != nil {
			return nil, classify("scan conversation", err)
		}
		s.Conversation = *c
		if mID.Valid {
			s.LastMessage = &domain.Message{
				ID:             mID.String,
				ConversationID: c.ID,
				SenderID:       mSender.String,
				Content:        mText.String,
				IsRead:         mRead.Bool,
				CreatedAt:      mAt.Time,
			}
		}
		out = append(out, &s)
	}
	return out, classify("list conversations", rows.Err())
}

func (r *PostgresMessagesRepository) CreateMessage(ctx context.Context, msg *domain.Message, notice *domain.NewNotification) (*domain.Notification, error) {
	var created *domain.Notification
	err := withTx(ctx, r.db, "create message", func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO messages (conversation_id, sender_id, content)
			VALUES ($1, $2, $3)
			RETURNING id::text, created_at
		`, msg.ConversationID, msg.SenderID, msg.Content).Scan(&msg.ID, &msg.CreatedAt); err != nil {
			return classify("create message", err)
		}
		if err := upsertRead(ctx, tx, msg.ConversationID, msg.SenderID, msg.CreatedAt); err != nil {
			return err
		}
		if notice != nil {
			var err error
			created, err = insertNotification(ctx, tx, *notice)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func upsertRead(ctx context.Context, q queryer, conversationID, userID string, at time.Time) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO conversation_reads (conversation_id, user_id, last_read_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (conversation_id, user_id) DO UPDATE SET
			last_read_at = GREATEST(conversation_reads.last_read_at, EXCLUDED.last_read_at)
	`, conversationID, userID, at)
	return classify("mark conversation read", err)
}

func (r *PostgresMessagesRepository) ListMessages(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error) {
	if limit <= 0 {
		limit = 200
	}
	// newest `limit` messages, returned oldest first
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, conversation_id, sender_id, content, is_read, created_at FROM (
			SELECT id::text, conversation_id::text, sender_id::text, content, is_read, created_at, seq
			FROM messages
			WHERE conversation_id = $1
			ORDER BY created_at DESC, seq DESC
			LIMIT $2
		) t
		ORDER BY created_at, seq
	`, conversationID, limit)
	if err != nil {
		return nil, classify("list messages", err)
	}
	defer rows.Close()

	out := []*domain.Message{}
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.IsRead, &m.CreatedAt); err != nil {
			return nil, classify("scan message", err)
		}
		out = append(out, &m)
	}
	return out, classify("list messages", rows.Err())
}

func (r *PostgresMessagesRepository) MarkConversationRead(ctx context.Context, conversationID, userID string, at time.Time) error {
	return withTx(ctx, r.db, "mark conversation read", func(tx *sql.Tx) error {
		if err := upsertRead(ctx, tx, conversationID, userID, at); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE messages SET is_read = TRUE
			WHERE conversation_id = $1 AND sender_id <> $2 AND created_at <= $3 AND is_read = FALSE
		`, conversationID, userID, at)
		return classify("mark messages read", err)
	})
}
