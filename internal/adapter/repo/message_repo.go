package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// MessageRepositoryPG implements domain.MessageRepository backed by
// PostgreSQL.
type MessageRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewMessageRepository creates a new MessageRepositoryPG.
func NewMessageRepository(pool *pgxpool.Pool) *MessageRepositoryPG {
	return &MessageRepositoryPG{pool: pool}
}

// ListByChat returns the chat's messages in creation order.
func (r *MessageRepositoryPG) ListByChat(ctx context.Context, chatID string) ([]domain.Message, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, role, content, user_id, chat_id, created_at, updated_at
FROM messages
WHERE chat_id = $1
ORDER BY created_at ASC
`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		var contentJSON []byte
		if err := rows.Scan(&m.ID, &m.Role, &contentJSON, &m.UserID, &m.ChatID, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(contentJSON, &m.Content); err != nil {
			return nil, fmt.Errorf("unmarshal content: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// UpdateUserContent rewrites a user-authored message's content. The triple
// predicate plus the role restriction means a mismatch affects zero rows,
// which is deliberately not an error.
func (r *MessageRepositoryPG) UpdateUserContent(ctx context.Context, chatID, messageID, userID string, content domain.MessageContent) error {
	contentJSON, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("marshal content: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
UPDATE messages
SET content = $4, updated_at = now()
WHERE id = $1 AND chat_id = $2 AND user_id = $3 AND role = 'user'
`, messageID, chatID, userID, contentJSON)
	return err
}

// Delete removes a message when the owner/chat/message triple matches.
func (r *MessageRepositoryPG) Delete(ctx context.Context, chatID, messageID, userID string) error {
	_, err := r.pool.Exec(ctx, `
DELETE FROM messages
WHERE id = $1 AND chat_id = $2 AND user_id = $3
`, messageID, chatID, userID)
	return err
}

var _ domain.MessageRepository = (*MessageRepositoryPG)(nil)
