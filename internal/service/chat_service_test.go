package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"server/internal/domain"
)

// memStore is the shared backing state for the repository fakes. Charges are
// applied with the same conditional semantics as the SQL implementation:
// re-check the limit, fail with a quota denial when the guard does not hold.
type memStore struct {
	users map[string]*domain.User
	chats map[string]*domain.Chat
	msgs  map[string][]domain.Message
	seq   int
}

func newMemStore() *memStore {
	return &memStore{
		users: make(map[string]*domain.User),
		chats: make(map[string]*domain.Chat),
		msgs:  make(map[string][]domain.Message),
	}
}

func (s *memStore) addUser(u domain.User) *domain.User {
	cp := u
	s.users[u.ID] = &cp
	return &cp
}

func (s *memStore) stamp() time.Time {
	s.seq++
	return time.Date(2026, 8, 30, 12, 0, 0, s.seq, time.UTC)
}

func (s *memStore) applyCharge(userID string, charge domain.QuotaCharge) error {
	u, ok := s.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	switch charge {
	case domain.ChargeFreeDailyPro:
		if u.ProUsageToday >= domain.FreeProPerDay {
			return domain.QuotaDenial(domain.LimitDailyPro)
		}
		u.ProUsageToday++
		u.ProUsageMonth--
	case domain.ChargeMonthlyPro:
		if u.ProUsageMonth <= 0 {
			return domain.QuotaDenial(domain.LimitMonthlyPro)
		}
		u.ProUsageMonth--
	case domain.ChargeMonthlyElite:
		if u.EliteUsageMonth <= 0 {
			return domain.QuotaDenial(domain.LimitMonthlyElite)
		}
		u.EliteUsageMonth--
	}
	return nil
}

type fakeUsers struct{ s *memStore }

func (f *fakeUsers) EnsureUser(ctx context.Context, id string) (*domain.User, error) {
	if u, ok := f.s.users[id]; ok {
		return u, nil
	}
	return f.s.addUser(domain.User{
		ID:              id,
		ProUsageMonth:   domain.DefaultProUsageMonth,
		EliteUsageMonth: domain.DefaultEliteUsageMonth,
	}), nil
}

func (f *fakeUsers) GetByID(ctx context.Context, id string) (*domain.User, error) {
	u, ok := f.s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) ResetDailyUsage(ctx context.Context, id, today string) error {
	u, ok := f.s.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	if u.LastResetDate != today {
		u.ProUsageToday = 0
		u.LastResetDate = today
	}
	return nil
}

func (f *fakeUsers) SetSubscribed(ctx context.Context, id, customerID string) error {
	u, ok := f.s.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.IsPro = true
	u.StripeCustomerID = customerID
	return nil
}

func (f *fakeUsers) ResetAllDaily(ctx context.Context) (int64, error) {
	for _, u := range f.s.users {
		u.ProUsageToday = 0
	}
	return int64(len(f.s.users)), nil
}

func (f *fakeUsers) ResetAllMonthly(ctx context.Context) (int64, error) {
	for _, u := range f.s.users {
		u.ProUsageMonth = domain.DefaultProUsageMonth
		u.EliteUsageMonth = domain.DefaultEliteUsageMonth
	}
	return int64(len(f.s.users)), nil
}

type fakeChats struct{ s *memStore }

func (f *fakeChats) CreateWithQuota(ctx context.Context, chat *domain.Chat, seed *domain.Message, charge domain.QuotaCharge) error {
	if err := f.s.applyCharge(chat.UserID, charge); err != nil {
		return err
	}
	if _, exists := f.s.chats[chat.ID]; exists {
		return domain.ErrConflict
	}
	now := f.s.stamp()
	chat.CreatedAt, chat.UpdatedAt = now, now
	cp := *chat
	f.s.chats[chat.ID] = &cp
	seed.ChatID = chat.ID
	seed.CreatedAt, seed.UpdatedAt = now, now
	f.s.msgs[chat.ID] = append(f.s.msgs[chat.ID], *seed)
	return nil
}

func (f *fakeChats) AppendMessages(ctx context.Context, userID, chatID string, msgs []domain.Message, updates domain.ChatUpdates, charge domain.QuotaCharge) error {
	if err := f.s.applyCharge(userID, charge); err != nil {
		return err
	}
	chat, ok := f.s.chats[chatID]
	if !ok || chat.UserID != userID {
		return domain.ErrNotFound
	}
	if updates.Title != nil {
		chat.Title = *updates.Title
	}
	if updates.Shared != nil {
		chat.Shared = *updates.Shared
	}
	if updates.Usage != nil {
		chat.Usage = *updates.Usage
	}
	for i := range msgs {
		msgs[i].ChatID = chatID
		now := f.s.stamp()
		msgs[i].CreatedAt, msgs[i].UpdatedAt = now, now
		f.s.msgs[chatID] = append(f.s.msgs[chatID], msgs[i])
	}
	return nil
}

func (f *fakeChats) GetByIDForUser(ctx context.Context, id, userID string) (*domain.Chat, error) {
	chat, ok := f.s.chats[id]
	if !ok || chat.UserID != userID {
		return nil, domain.ErrNotFound
	}
	cp := *chat
	return &cp, nil
}

func (f *fakeChats) GetShared(ctx context.Context, id string) (*domain.Chat, error) {
	chat, ok := f.s.chats[id]
	if !ok || !chat.Shared {
		return nil, domain.ErrNotFound
	}
	cp := *chat
	return &cp, nil
}

func (f *fakeChats) ListByUser(ctx context.Context, userID string) ([]domain.Chat, error) {
	var out []domain.Chat
	for _, chat := range f.s.chats {
		if chat.UserID == userID {
			out = append(out, *chat)
		}
	}
	return out, nil
}

func (f *fakeChats) Delete(ctx context.Context, id, userID string) error {
	chat, ok := f.s.chats[id]
	if ok && chat.UserID == userID {
		delete(f.s.chats, id)
		delete(f.s.msgs, id)
	}
	return nil
}

func (f *fakeChats) DeleteAllForUser(ctx context.Context, userID string) error {
	for id, chat := range f.s.chats {
		if chat.UserID == userID {
			delete(f.s.chats, id)
			delete(f.s.msgs, id)
		}
	}
	return nil
}

type fakeMsgs struct{ s *memStore }

func (f *fakeMsgs) ListByChat(ctx context.Context, chatID string) ([]domain.Message, error) {
	return append([]domain.Message(nil), f.s.msgs[chatID]...), nil
}

func (f *fakeMsgs) UpdateUserContent(ctx context.Context, chatID, messageID, userID string, content domain.MessageContent) error {
	for i, m := range f.s.msgs[chatID] {
		if m.ID == messageID && m.UserID == userID && m.Role == domain.RoleUser {
			f.s.msgs[chatID][i].Content = content
		}
	}
	return nil
}

func (f *fakeMsgs) Delete(ctx context.Context, chatID, messageID, userID string) error {
	msgs := f.s.msgs[chatID]
	for i, m := range msgs {
		if m.ID == messageID && m.UserID == userID {
			f.s.msgs[chatID] = append(msgs[:i], msgs[i+1:]...)
			return nil
		}
	}
	return nil
}

func newTestService(s *memStore) *ChatService {
	svc := NewChatService(&fakeUsers{s}, &fakeChats{s}, &fakeMsgs{s}, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC) }
	return svc
}

func seedInput(model string) CreateChatInput {
	return CreateChatInput{
		Usage:    domain.ChatUsage{Model: model},
		Messages: []MessageInput{{Role: domain.RoleUser, Content: domain.TextContent("hello")}},
	}
}

func TestCreateBasicModel(t *testing.T) {
	s := newMemStore()
	s.addUser(domain.User{ID: "u1", ProUsageMonth: 150, EliteUsageMonth: 50, LastResetDate: "2026-08-30"})
	svc := newTestService(s)

	chat, err := svc.Create(context.Background(), "u1", seedInput("gpt-3.5-turbo"))
	require.NoError(t, err)
	require.NotEmpty(t, chat.ID)
	assert.Equal(t, domain.DefaultChatTitle, chat.Title)
	require.Len(t, chat.Messages, 1)
	assert.Equal(t, domain.RoleUser, chat.Messages[0].Role)
	assert.NotEmpty(t, chat.Messages[0].ID)

	u := s.users["u1"]
	assert.Equal(t, 0, u.ProUsageToday)
	assert.Equal(t, 150, u.ProUsageMonth)
}

func TestCreateFreeUserProDailyLimit(t *testing.T) {
	s := newMemStore()
	s.addUser(domain.User{ID: "u1", ProUsageMonth: 150, EliteUsageMonth: 50, LastResetDate: "2026-08-30"})
	svc := newTestService(s)

	for i := 0; i < 2; i++ {
		_, err := svc.Create(context.Background(), "u1", seedInput("gpt-4o"))
		require.NoError(t, err, "creation %d", i)
	}
	u := s.users["u1"]
	assert.Equal(t, 2, u.ProUsageToday)
	// The free daily allowance also draws down the monthly counter.
	assert.Equal(t, 148, u.ProUsageMonth)

	_, err := svc.Create(context.Background(), "u1", seedInput("gpt-4o"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
	assert.EqualError(t, err, "You've reached your daily Pro limit (2/day).")

	assert.Len(t, s.chats, 2)
	assert.Equal(t, 2, u.ProUsageToday)
	assert.Equal(t, 148, u.ProUsageMonth)
}

func TestCreateFreeUserEliteDenied(t *testing.T) {
	s := newMemStore()
	s.addUser(domain.User{ID: "u1", ProUsageMonth: 150, EliteUsageMonth: 50, LastResetDate: "2026-08-30"})
	svc := newTestService(s)

	_, err := svc.Create(context.Background(), "u1", seedInput("claude-3-opus-20240229"))
	require.Error(t, err)
	assert.EqualError(t, err, "Elite models are for Pro users only.")
	assert.Empty(t, s.chats)
	assert.Equal(t, 50, s.users["u1"].EliteUsageMonth)
}

func TestCreateSubscriberMonthlyExhausted(t *testing.T) {
	s := newMemStore()
	s.addUser(domain.User{ID: "u1", IsPro: true, ProUsageMonth: 0, EliteUsageMonth: 0, LastResetDate: "2026-08-30"})
	svc := newTestService(s)

	_, err := svc.Create(context.Background(), "u1", seedInput("gpt-4o"))
	assert.EqualError(t, err, "You've used all 150 Pro messages this month.")

	_, err = svc.Create(context.Background(), "u1", seedInput("o1-preview"))
	assert.EqualError(t, err, "You've used all 50 Elite messages this month.")

	assert.Empty(t, s.chats)
}

func TestCreateUnknownModel(t *testing.T) {
	s := newMemStore()
	s.addUser(domain.User{ID: "u1", ProUsageMonth: 150, LastResetDate: "2026-08-30"})
	svc := newTestService(s)

	_, err := svc.Create(context.Background(), "u1", seedInput("gpt-12"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Empty(t, s.chats)
	assert.Equal(t, 150, s.users["u1"].ProUsageMonth)
}

func TestCreateSeedValidation(t *testing.T) {
	s := newMemStore()
	s.addUser(domain.User{ID: "u1", ProUsageMonth: 150, LastResetDate: "2026-08-30"})
	svc := newTestService(s)

	in := seedInput("gpt-3.5-turbo")
	in.Messages = nil
	_, err := svc.Create(context.Background(), "u1", in)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	in = seedInput("gpt-3.5-turbo")
	in.Messages = append(in.Messages, in.Messages[0])
	_, err = svc.Create(context.Background(), "u1", in)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	in = seedInput("gpt-3.5-turbo")
	in.Messages[0].Role = domain.RoleAssistant
	_, err = svc.Create(context.Background(), "u1", in)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCreateDailyReset(t *testing.T) {
	s := newMemStore()
	s.addUser(domain.User{ID: "u1", ProUsageToday: 2, ProUsageMonth: 148, LastResetDate: "2026-08-29"})
	svc := newTestService(s)

	chat, err := svc.Create(context.Background(), "u1", seedInput("gpt-4o"))
	require.NoError(t, err)
	require.NotNil(t, chat)

	u := s.users["u1"]
	assert.Equal(t, "2026-08-30", u.LastResetDate)
	assert.Equal(t, 1, u.ProUsageToday)
}

func TestCreateDailyResetPersistsOnDenial(t *testing.T) {
	s := newMemStore()
	s.addUser(domain.User{ID: "u1", ProUsageToday: 2, ProUsageMonth: 0, IsPro: true, LastResetDate: "2026-08-29"})
	svc := newTestService(s)

	_, err := svc.Create(context.Background(), "u1", seedInput("gpt-4o"))
	require.Error(t, err)

	u := s.users["u1"]
	assert.Equal(t, "2026-08-30", u.LastResetDate)
	assert.Equal(t, 0, u.ProUsageToday)
}

func TestCreateDuplicateChatID(t *testing.T) {
	s := newMemStore()
	s.addUser(domain.User{ID: "u1", ProUsageMonth: 150, LastResetDate: "2026-08-30"})
	svc := newTestService(s)

	chat, err := svc.Create(context.Background(), "u1", seedInput("gpt-3.5-turbo"))
	require.NoError(t, err)

	// A second creation raced to the same identifier.
	s2 := &fakeChats{s}
	err = s2.CreateWithQuota(context.Background(), &domain.Chat{ID: chat.ID, UserID: "u1"},
		&domain.Message{ID: "m-dup", Role: domain.RoleUser, Content: domain.TextContent("x"), UserID: "u1"},
		domain.ChargeNone)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestContinueChatTierLaundering(t *testing.T) {
	s := newMemStore()
	s.addUser(domain.User{ID: "u1", IsPro: true, ProUsageMonth: 150, LastResetDate: "2026-08-30"})
	svc := newTestService(s)

	chat, err := svc.Create(context.Background(), "u1", seedInput("gpt-4o"))
	require.NoError(t, err)
	require.Equal(t, 149, s.users["u1"].ProUsageMonth)

	// Subscription lapses; the continuation names a basic model but the
	// stored chat is pro-tier.
	s.users["u1"].IsPro = false
	s.users["u1"].ProUsageToday = 0

	in := seedInput("gpt-3.5-turbo")
	in.ChatID = chat.ID
	_, err = svc.Create(context.Background(), "u1", in)
	require.Error(t, err)
	assert.EqualError(t, err, "You cannot continue using Pro models as a free user.")
	assert.Len(t, s.msgs[chat.ID], 1)
	// Stored usage still names the pro model.
	assert.Equal(t, "gpt-4o", s.chats[chat.ID].Usage.Model)
}

func TestContinueChatAppendsSeed(t *testing.T) {
	s := newMemStore()
	s.addUser(domain.User{ID: "u1", ProUsageMonth: 150, LastResetDate: "2026-08-30"})
	svc := newTestService(s)

	chat, err := svc.Create(context.Background(), "u1", seedInput("gpt-3.5-turbo"))
	require.NoError(t, err)

	in := seedInput("gpt-3.5-turbo")
	in.ChatID = chat.ID
	in.Messages[0].Content = domain.TextContent("second question")
	got, err := svc.Create(context.Background(), "u1", in)
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "second question", got.Messages[1].Content.PlainText())
}

func TestContinueChatConsumesStoredTierQuota(t *testing.T) {
	s := newMemStore()
	s.addUser(domain.User{ID: "u1", IsPro: true, ProUsageMonth: 2, EliteUsageMonth: 50, LastResetDate: "2026-08-30"})
	svc := newTestService(s)

	chat, err := svc.Create(context.Background(), "u1", seedInput("gpt-4o"))
	require.NoError(t, err)
	require.Equal(t, 1, s.users["u1"].ProUsageMonth)

	in := seedInput("gpt-4o")
	in.ChatID = chat.ID
	_, err = svc.Create(context.Background(), "u1", in)
	require.NoError(t, err)
	assert.Equal(t, 0, s.users["u1"].ProUsageMonth)

	_, err = svc.Create(context.Background(), "u1", in)
	assert.EqualError(t, err, "You've used all 150 Pro messages this month.")
	assert.Len(t, s.msgs[chat.ID], 2)
}

func TestContinueChatNotOwned(t *testing.T) {
	s := newMemStore()
	s.addUser(domain.User{ID: "u1", ProUsageMonth: 150, LastResetDate: "2026-08-30"})
	s.addUser(domain.User{ID: "u2", ProUsageMonth: 150, LastResetDate: "2026-08-30"})
	svc := newTestService(s)

	chat, err := svc.Create(context.Background(), "u1", seedInput("gpt-3.5-turbo"))
	require.NoError(t, err)

	in := seedInput("gpt-3.5-turbo")
	in.ChatID = chat.ID
	_, err = svc.Create(context.Background(), "u2", in)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAppendMessagesAndUpdates(t *testing.T) {
	s := newMemStore()
	s.addUser(domain.User{ID: "u1", ProUsageMonth: 150, LastResetDate: "2026-08-30"})
	svc := newTestService(s)

	chat, err := svc.Create(context.Background(), "u1", seedInput("gpt-3.5-turbo"))
	require.NoError(t, err)

	title := "Renamed"
	shared := true
	got, err := svc.Append(context.Background(), "u1", chat.ID, UpdateChatInput{
		Title:  &title,
		Shared: &shared,
		Messages: []MessageInput{
			{Role: domain.RoleAssistant, Content: domain.TextContent("answer")},
			{Role: domain.RoleUser, Content: domain.TextContent("follow-up")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.True(t, got.Shared)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "answer", got.Messages[1].Content.PlainText())
	// Appends never move counters.
	assert.Equal(t, 150, s.users["u1"].ProUsageMonth)
}

func TestAppendRejectsBadMessages(t *testing.T) {
	s := newMemStore()
	s.addUser(domain.User{ID: "u1", ProUsageMonth: 150, LastResetDate: "2026-08-30"})
	svc := newTestService(s)

	chat, err := svc.Create(context.Background(), "u1", seedInput("gpt-3.5-turbo"))
	require.NoError(t, err)

	_, err = svc.Append(context.Background(), "u1", chat.ID, UpdateChatInput{
		Messages: []MessageInput{{Role: "system", Content: domain.TextContent("x")}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	bad := domain.ChatUsage{Model: "nope"}
	_, err = svc.Append(context.Background(), "u1", chat.ID, UpdateChatInput{Usage: &bad})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestUpdateMessageRoleRestriction(t *testing.T) {
	s := newMemStore()
	s.addUser(domain.User{ID: "u1", ProUsageMonth: 150, LastResetDate: "2026-08-30"})
	svc := newTestService(s)

	err := svc.UpdateMessage(context.Background(), "u1", "c1", "m1", MessageInput{
		Role:    domain.RoleAssistant,
		Content: domain.TextContent("x"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestUpdateMessageSilentNoOp(t *testing.T) {
	s := newMemStore()
	s.addUser(domain.User{ID: "u1", ProUsageMonth: 150, LastResetDate: "2026-08-30"})
	svc := newTestService(s)

	// Nothing matches; the operation still reports success.
	err := svc.UpdateMessage(context.Background(), "u1", "c-none", "m-none", MessageInput{
		Role:    domain.RoleUser,
		Content: domain.TextContent("rewritten"),
	})
	assert.NoError(t, err)
}

func TestGetSharedVisibility(t *testing.T) {
	s := newMemStore()
	s.addUser(domain.User{ID: "u1", ProUsageMonth: 150, LastResetDate: "2026-08-30"})
	svc := newTestService(s)

	chat, err := svc.Create(context.Background(), "u1", seedInput("gpt-3.5-turbo"))
	require.NoError(t, err)

	_, err = svc.GetShared(context.Background(), chat.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	shared := true
	_, err = svc.Append(context.Background(), "u1", chat.ID, UpdateChatInput{Shared: &shared})
	require.NoError(t, err)

	got, err := svc.GetShared(context.Background(), chat.ID)
	require.NoError(t, err)
	assert.Len(t, got.Messages, 1)
}

func TestDeleteAll(t *testing.T) {
	s := newMemStore()
	s.addUser(domain.User{ID: "u1", ProUsageMonth: 150, LastResetDate: "2026-08-30"})
	s.addUser(domain.User{ID: "u2", ProUsageMonth: 150, LastResetDate: "2026-08-30"})
	svc := newTestService(s)

	for i := 0; i < 3; i++ {
		in := seedInput("gpt-3.5-turbo")
		in.Messages[0].ID = fmt.Sprintf("m%d", i)
		_, err := svc.Create(context.Background(), "u1", in)
		require.NoError(t, err)
	}
	other, err := svc.Create(context.Background(), "u2", seedInput("gpt-3.5-turbo"))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteAll(context.Background(), "u1"))
	chats, err := svc.List(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, chats)

	_, err = svc.Get(context.Background(), "u2", other.ID)
	assert.NoError(t, err)
}
