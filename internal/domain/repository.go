package domain

import "context"

// UserRepository defines access methods for users.
type UserRepository interface {
	// EnsureUser provisions the row with default counters on first contact
	// and returns the current state either way.
	EnsureUser(ctx context.Context, id string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	// ResetDailyUsage zeroes the daily pro counter and stamps today, only if
	// the stored reset date differs. The reset persists regardless of any
	// later quota verdict.
	ResetDailyUsage(ctx context.Context, id, today string) error
	// SetSubscribed flags the user as a subscriber and records the payment
	// customer reference. Idempotent under webhook replays.
	SetSubscribed(ctx context.Context, id, stripeCustomerID string) error
	// ResetAllDaily and ResetAllMonthly back the scheduled maintenance
	// operation; they touch every user row.
	ResetAllDaily(ctx context.Context) (int64, error)
	ResetAllMonthly(ctx context.Context) (int64, error)
}

// ChatRepository defines persistence for chats. Ownership is enforced here,
// in SQL predicates, not assumed of callers; owner mismatches read as
// ErrNotFound so existence never leaks.
type ChatRepository interface {
	// CreateWithQuota persists the chat and its seed message and applies the
	// quota charge in one transaction. A charge whose guard fails returns
	// ErrQuotaExceeded with nothing written; a duplicate chat ID returns
	// ErrConflict.
	CreateWithQuota(ctx context.Context, chat *Chat, seed *Message, charge QuotaCharge) error
	// AppendMessages adds messages to an owned chat and applies optional
	// field updates and a quota charge in one transaction. Prior messages
	// are never touched.
	AppendMessages(ctx context.Context, userID, chatID string, msgs []Message, updates ChatUpdates, charge QuotaCharge) error
	GetByIDForUser(ctx context.Context, id, userID string) (*Chat, error)
	// GetShared returns the chat only when shared is set; it does not check
	// ownership.
	GetShared(ctx context.Context, id string) (*Chat, error)
	ListByUser(ctx context.Context, userID string) ([]Chat, error)
	Delete(ctx context.Context, id, userID string) error
	DeleteAllForUser(ctx context.Context, userID string) error
}

// MessageRepository defines persistence for individual messages.
type MessageRepository interface {
	ListByChat(ctx context.Context, chatID string) ([]Message, error)
	// UpdateUserContent replaces the content of a user-authored message. A
	// non-matching owner/chat/message triple affects zero rows and is not an
	// error.
	UpdateUserContent(ctx context.Context, chatID, messageID, userID string, content MessageContent) error
	Delete(ctx context.Context, chatID, messageID, userID string) error
}
