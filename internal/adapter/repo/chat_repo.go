package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

const chatColumns = `id, title, usage, user_id, shared, created_at, updated_at`

const uniqueViolation = "23505"

// ChatRepositoryPG implements domain.ChatRepository backed by PostgreSQL.
// Quota charges ride inside the same transaction as the chat writes: the
// counter moves as a conditional UPDATE whose predicate re-checks the limit,
// so concurrent requests cannot overrun it, and a failed insert rolls the
// counter back with the rest of the transaction.
type ChatRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewChatRepository creates a new ChatRepositoryPG.
func NewChatRepository(pool *pgxpool.Pool) *ChatRepositoryPG {
	return &ChatRepositoryPG{pool: pool}
}

// chargeSQL returns the conditional counter update for a charge. The WHERE
// clause is the atomic re-check of the limit the policy approved against.
func chargeSQL(charge domain.QuotaCharge) (string, bool) {
	switch charge {
	case domain.ChargeFreeDailyPro:
		return `
UPDATE users
SET pro_usage_today = pro_usage_today + 1,
    pro_usage_month = pro_usage_month - 1,
    updated_at = now()
WHERE id = $1 AND pro_usage_today < ` + fmt.Sprint(domain.FreeProPerDay), true
	case domain.ChargeMonthlyPro:
		return `
UPDATE users
SET pro_usage_month = pro_usage_month - 1, updated_at = now()
WHERE id = $1 AND pro_usage_month > 0`, true
	case domain.ChargeMonthlyElite:
		return `
UPDATE users
SET elite_usage_month = elite_usage_month - 1, updated_at = now()
WHERE id = $1 AND elite_usage_month > 0`, true
	}
	return "", false
}

func applyCharge(ctx context.Context, tx pgx.Tx, userID string, charge domain.QuotaCharge) error {
	query, ok := chargeSQL(charge)
	if !ok {
		return nil
	}
	tag, err := tx.Exec(ctx, query, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.QuotaDenial(charge.Limit())
	}
	return nil
}

// CreateWithQuota persists chat and seed message atomically with the counter
// movement. Nothing is written when the quota guard fails.
func (r *ChatRepositoryPG) CreateWithQuota(ctx context.Context, chat *domain.Chat, seed *domain.Message, charge domain.QuotaCharge) error {
	usageJSON, err := json.Marshal(chat.Usage)
	if err != nil {
		return fmt.Errorf("marshal usage: %w", err)
	}
	_, err = json.Marshal(seed.Content)
	if err != nil {
		return fmt.Errorf("marshal content: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := applyCharge(ctx, tx, chat.UserID, charge); err != nil {
		return err
	}

	row := tx.QueryRow(ctx, `
INSERT INTO chats (id, title, usage, user_id, shared)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at, updated_at
`, chat.ID, chat.Title, usageJSON, chat.UserID, chat.Shared)
	if err := row.Scan(&chat.CreatedAt, &chat.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrConflict
		}
		return err
	}

	if err := insertMessage(ctx, tx, seed, chat.ID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// AppendMessages appends to an owned chat, applying optional field updates
// and a quota charge in the same transaction. The ownership predicate on the
// chat UPDATE doubles as the existence check: zero rows means not found.
func (r *ChatRepositoryPG) AppendMessages(ctx context.Context, userID, chatID string, msgs []domain.Message, updates domain.ChatUpdates, charge domain.QuotaCharge) error {
	var usageJSON []byte
	if updates.Usage != nil {
		var err error
		usageJSON, err = json.Marshal(updates.Usage)
		if err != nil {
			return fmt.Errorf("marshal usage: %w", err)
		}
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := applyCharge(ctx, tx, userID, charge); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
UPDATE chats
SET title = COALESCE($3, title),
    shared = COALESCE($4, shared),
    usage = COALESCE($5, usage),
    updated_at = now()
WHERE id = $1 AND user_id = $2
`, chatID, userID, updates.Title, updates.Shared, usageJSON)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	for i := range msgs {
		if err := insertMessage(ctx, tx, &msgs[i], chatID); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// insertMessage stamps created_at with clock_timestamp() rather than the
// transaction-fixed now(), so messages inserted in one transaction still
// order by true insertion sequence.
func insertMessage(ctx context.Context, tx pgx.Tx, msg *domain.Message, chatID string) error {
	contentJSON, err := json.Marshal(msg.Content)
	if err != nil {
		return fmt.Errorf("marshal content: %w", err)
	}
	msg.ChatID = chatID
	row := tx.QueryRow(ctx, `
INSERT INTO messages (id, role, content, user_id, chat_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, clock_timestamp(), clock_timestamp())
RETURNING created_at, updated_at
`, msg.ID, msg.Role, contentJSON, msg.UserID, chatID)
	return row.Scan(&msg.CreatedAt, &msg.UpdatedAt)
}

// GetByIDForUser fetches an owned chat. A miss and an ownership mismatch are
// indistinguishable to the caller.
func (r *ChatRepositoryPG) GetByIDForUser(ctx context.Context, id, userID string) (*domain.Chat, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+chatColumns+` FROM chats WHERE id = $1 AND user_id = $2`, id, userID)
	return scanChat(row)
}

// GetShared fetches a chat by identifier only when it is flagged shared.
func (r *ChatRepositoryPG) GetShared(ctx context.Context, id string) (*domain.Chat, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+chatColumns+` FROM chats WHERE id = $1 AND shared = true`, id)
	return scanChat(row)
}

// ListByUser returns the caller's chats, newest first.
func (r *ChatRepositoryPG) ListByUser(ctx context.Context, userID string) ([]domain.Chat, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+chatColumns+` FROM chats WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var chats []domain.Chat
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, *chat)
	}
	return chats, rows.Err()
}

// Delete removes an owned chat; messages go with it via the cascade. A zero
// row count is not an error, matching delete idempotency.
func (r *ChatRepositoryPG) Delete(ctx context.Context, id, userID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM chats WHERE id = $1 AND user_id = $2`, id, userID)
	return err
}

// DeleteAllForUser removes every chat the user owns.
func (r *ChatRepositoryPG) DeleteAllForUser(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM chats WHERE user_id = $1`, userID)
	return err
}

func scanChat(row pgx.Row) (*domain.Chat, error) {
	var c domain.Chat
	var usageJSON []byte
	if err := row.Scan(&c.ID, &c.Title, &usageJSON, &c.UserID, &c.Shared, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(usageJSON, &c.Usage); err != nil {
		return nil, fmt.Errorf("unmarshal usage: %w", err)
	}
	return &c, nil
}

var _ domain.ChatRepository = (*ChatRepositoryPG)(nil)
