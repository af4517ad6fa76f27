// Package service orchestrates chat mutations: it joins the quota policy and
// the repositories under the ownership rules, leaving HTTP concerns to the
// handlers and SQL to the adapters.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"server/internal/domain"
)

// MessageInput is a caller-supplied message. The identifier is optional;
// clients that pre-generate ids keep them, otherwise one is assigned.
type MessageInput struct {
	ID      string                `json:"id"`
	Role    domain.MessageRole    `json:"role"`
	Content domain.MessageContent `json:"content"`
}

// CreateChatInput is the payload for chat creation. A non-empty ChatID means
// the caller is continuing an existing chat rather than opening a new one.
type CreateChatInput struct {
	ChatID   string
	Title    string
	Usage    domain.ChatUsage
	Messages []MessageInput
}

// UpdateChatInput carries appended messages and optional chat-level field
// changes applied in the same call.
type UpdateChatInput struct {
	Title    *string
	Shared   *bool
	Usage    *domain.ChatUsage
	Messages []MessageInput
}

// ChatService implements the chat mutation operations.
type ChatService struct {
	users    domain.UserRepository
	chats    domain.ChatRepository
	messages domain.MessageRepository
	now      func() time.Time
	logger   zerolog.Logger
}

// NewChatService wires the service over its repositories.
func NewChatService(users domain.UserRepository, chats domain.ChatRepository, messages domain.MessageRepository, logger zerolog.Logger) *ChatService {
	return &ChatService{
		users:    users,
		chats:    chats,
		messages: messages,
		now:      time.Now,
		logger:   logger,
	}
}

// proContinuationDenial is the tier-laundering rejection: the stored chat
// model, not the incoming request, decides the tier of a continuation.
func proContinuationDenial() *domain.QuotaError {
	return &domain.QuotaError{
		Limit:   domain.LimitProOnly,
		Message: "You cannot continue using Pro models as a free user.",
	}
}

// Create opens a new chat, or continues an existing one when in.ChatID is
// set. Exactly one seed message with role "user" is required. The quota
// verdict is computed first and the counter movement commits atomically with
// the chat write.
func (s *ChatService) Create(ctx context.Context, userID string, in CreateChatInput) (*domain.Chat, error) {
	if len(in.Messages) != 1 {
		return nil, domain.Invalidf("messages must contain exactly one seed message")
	}
	seedIn := in.Messages[0]
	if seedIn.Role != domain.RoleUser {
		return nil, domain.Invalidf("the seed message must have role %q", domain.RoleUser)
	}
	if err := seedIn.Content.Validate(); err != nil {
		return nil, err
	}

	model, ok := domain.LookupModel(in.Usage.Model)
	if !ok {
		return nil, domain.Invalidf("invalid model: %s", in.Usage.Model)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Daily window reset persists regardless of the verdict below.
	today := domain.Today(s.now())
	if user.LastResetDate != today {
		if err := s.users.ResetDailyUsage(ctx, userID, today); err != nil {
			return nil, err
		}
		user.ProUsageToday = 0
		user.LastResetDate = today
	}

	seed := domain.Message{
		ID:      seedIn.ID,
		Role:    seedIn.Role,
		Content: seedIn.Content,
		UserID:  userID,
	}
	if seed.ID == "" {
		seed.ID = uuid.NewString()
	}

	if in.ChatID != "" {
		return s.continueChat(ctx, user, in.ChatID, seed)
	}

	decision := domain.DecideQuota(model.Tier, user.IsPro, user.Counters())
	if !decision.Allowed {
		return nil, decision.Denial
	}

	title, err := domain.NormalizeChatTitle(in.Title)
	if err != nil {
		return nil, err
	}
	chat := &domain.Chat{
		ID:     uuid.NewString(),
		Title:  title,
		Usage:  in.Usage,
		UserID: userID,
	}
	if err := s.chats.CreateWithQuota(ctx, chat, &seed, decision.Charge); err != nil {
		return nil, err
	}
	s.logger.Info().Str("chat_id", chat.ID).Str("model", model.Name).Str("tier", string(model.Tier)).Msg("chat created")
	chat.Messages = []domain.Message{seed}
	return chat, nil
}

// continueChat appends the seed message to an existing chat. The tier is
// re-derived from the chat's stored model so switching models in the request
// cannot launder a cheaper tier; the chat's stored usage is left untouched
// for the same reason.
func (s *ChatService) continueChat(ctx context.Context, user *domain.User, chatID string, seed domain.Message) (*domain.Chat, error) {
	chat, err := s.chats.GetByIDForUser(ctx, chatID, user.ID)
	if err != nil {
		return nil, err
	}
	stored, ok := domain.LookupModel(chat.Usage.Model)
	if !ok {
		return nil, domain.Invalidf("invalid model selection in chat")
	}
	if !user.IsPro && stored.Tier == domain.TierPro {
		return nil, proContinuationDenial()
	}
	decision := domain.DecideQuota(stored.Tier, user.IsPro, user.Counters())
	if !decision.Allowed {
		return nil, decision.Denial
	}
	if err := s.chats.AppendMessages(ctx, user.ID, chatID, []domain.Message{seed}, domain.ChatUpdates{}, decision.Charge); err != nil {
		return nil, err
	}
	return s.Get(ctx, user.ID, chatID)
}

// Append adds messages to an owned chat and applies any chat-level field
// updates in the same transaction. Prior messages are never deleted or
// reordered.
func (s *ChatService) Append(ctx context.Context, userID, chatID string, in UpdateChatInput) (*domain.Chat, error) {
	updates := domain.ChatUpdates{Shared: in.Shared, Usage: in.Usage}
	if in.Title != nil {
		title, err := domain.NormalizeChatTitle(*in.Title)
		if err != nil {
			return nil, err
		}
		updates.Title = &title
	}
	if in.Usage != nil {
		if _, ok := domain.LookupModel(in.Usage.Model); !ok {
			return nil, domain.Invalidf("invalid model: %s", in.Usage.Model)
		}
	}

	msgs := make([]domain.Message, 0, len(in.Messages))
	for _, m := range in.Messages {
		msg := domain.Message{ID: m.ID, Role: m.Role, Content: m.Content, UserID: userID}
		if err := msg.Validate(); err != nil {
			return nil, err
		}
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}
		msgs = append(msgs, msg)
	}

	if err := s.chats.AppendMessages(ctx, userID, chatID, msgs, updates, domain.ChargeNone); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID, chatID)
}

// Get returns an owned chat with its messages in creation order.
func (s *ChatService) Get(ctx context.Context, userID, chatID string) (*domain.Chat, error) {
	chat, err := s.chats.GetByIDForUser(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	chat.Messages = msgs
	return chat, nil
}

// GetShared returns a chat and its messages without an ownership check, but
// only when the chat is flagged shared. Private chats read as not found.
func (s *ChatService) GetShared(ctx context.Context, chatID string) (*domain.Chat, error) {
	chat, err := s.chats.GetShared(ctx, chatID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	chat.Messages = msgs
	return chat, nil
}

// List returns the caller's chats, newest first, without messages.
func (s *ChatService) List(ctx context.Context, userID string) ([]domain.Chat, error) {
	return s.chats.ListByUser(ctx, userID)
}

// UpdateMessage rewrites a user-authored message. A non-matching
// owner/chat/message triple affects zero rows and still reports success;
// callers needing confirmation should re-read.
func (s *ChatService) UpdateMessage(ctx context.Context, userID, chatID, messageID string, in MessageInput) error {
	if in.Role != domain.RoleUser {
		return domain.Invalidf(`only messages with role "user" can be updated`)
	}
	if err := in.Content.Validate(); err != nil {
		return err
	}
	return s.messages.UpdateUserContent(ctx, chatID, messageID, userID, in.Content)
}

// DeleteMessage removes one message when the triple matches.
func (s *ChatService) DeleteMessage(ctx context.Context, userID, chatID, messageID string) error {
	return s.messages.Delete(ctx, chatID, messageID, userID)
}

// Delete removes one owned chat and, through the cascade, its messages.
func (s *ChatService) Delete(ctx context.Context, userID, chatID string) error {
	return s.chats.Delete(ctx, chatID, userID)
}

// DeleteAll removes every chat the caller owns.
func (s *ChatService) DeleteAll(ctx context.Context, userID string) error {
	return s.chats.DeleteAllForUser(ctx, userID)
}
