package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v72"

	"server/internal/domain"
)

type fakeUserRepo struct {
	users       map[string]*domain.User
	subscribed  []string
	customerIDs map[string]string
}

func newFakeUserRepo(users ...domain.User) *fakeUserRepo {
	f := &fakeUserRepo{
		users:       make(map[string]*domain.User),
		customerIDs: make(map[string]string),
	}
	for _, u := range users {
		cp := u
		f.users[u.ID] = &cp
	}
	return f
}

func (f *fakeUserRepo) EnsureUser(ctx context.Context, id string) (*domain.User, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserRepo) ResetDailyUsage(ctx context.Context, id, today string) error { return nil }

func (f *fakeUserRepo) SetSubscribed(ctx context.Context, id, customerID string) error {
	u, ok := f.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.IsPro = true
	u.StripeCustomerID = customerID
	f.subscribed = append(f.subscribed, id)
	f.customerIDs[id] = customerID
	return nil
}

func (f *fakeUserRepo) ResetAllDaily(ctx context.Context) (int64, error)   { return 0, nil }
func (f *fakeUserRepo) ResetAllMonthly(ctx context.Context) (int64, error) { return 0, nil }

var _ domain.UserRepository = (*fakeUserRepo)(nil)

// signStripePayload reproduces Stripe's v1 signature scheme for webhook
// payloads.
func signStripePayload(payload []byte, secret string, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", at.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func newTestService(t *testing.T, users domain.UserRepository) *Service {
	t.Helper()
	svc, err := New(Config{
		SecretKey:     "sk_test_123",
		WebhookSecret: "whsec_test",
		SuccessURL:    "http://localhost:3000/?payment=success",
		CancelURL:     "http://localhost:3000/?payment=cancelled",
		ReturnURL:     "http://localhost:3000/settings",
	}, users, zerolog.Nop())
	require.NoError(t, err)
	return svc
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	users := newFakeUserRepo(domain.User{ID: "u1"})
	svc := newTestService(t, users)

	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)

	err := svc.HandleWebhook(context.Background(), payload, "t=1,v1=deadbeef")
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
	assert.Empty(t, users.subscribed)

	err = svc.HandleWebhook(context.Background(), payload, "")
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
	assert.Empty(t, users.subscribed)
}

func TestHandleWebhookVerifiedCheckoutCompleted(t *testing.T) {
	users := newFakeUserRepo(domain.User{ID: "u1"})
	svc := newTestService(t, users)

	payload := []byte(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {
			"object": {
				"id": "cs_1",
				"customer": "cus_123",
				"metadata": {"userId": "u1"}
			}
		}
	}`)
	sig := signStripePayload(payload, "whsec_test", time.Now())

	require.NoError(t, svc.HandleWebhook(context.Background(), payload, sig))
	u := users.users["u1"]
	assert.True(t, u.IsPro)
	assert.Equal(t, "cus_123", u.StripeCustomerID)
}

func TestApplyIsIdempotentUnderReplay(t *testing.T) {
	users := newFakeUserRepo(domain.User{ID: "u1"})
	svc := newTestService(t, users)

	event := stripe.Event{
		Type: "checkout.session.completed",
		Data: &stripe.EventData{
			Raw: []byte(`{"id":"cs_1","customer":"cus_123","metadata":{"userId":"u1"}}`),
		},
	}

	require.NoError(t, svc.Apply(context.Background(), event))
	require.NoError(t, svc.Apply(context.Background(), event))

	u := users.users["u1"]
	assert.True(t, u.IsPro)
	assert.Equal(t, "cus_123", u.StripeCustomerID)
}

func TestApplyIgnoresUnrelatedEvents(t *testing.T) {
	users := newFakeUserRepo(domain.User{ID: "u1"})
	svc := newTestService(t, users)

	event := stripe.Event{
		Type: "invoice.paid",
		Data: &stripe.EventData{Raw: []byte(`{}`)},
	}
	require.NoError(t, svc.Apply(context.Background(), event))
	assert.False(t, users.users["u1"].IsPro)
}

func TestApplyRejectsIncompleteSession(t *testing.T) {
	users := newFakeUserRepo(domain.User{ID: "u1"})
	svc := newTestService(t, users)

	event := stripe.Event{
		Type: "checkout.session.completed",
		Data: &stripe.EventData{Raw: []byte(`{"id":"cs_1","customer":"cus_123","metadata":{}}`)},
	}
	err := svc.Apply(context.Background(), event)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.False(t, users.users["u1"].IsPro)
}

func TestPortalURLRequiresCustomer(t *testing.T) {
	users := newFakeUserRepo(domain.User{ID: "u1"})
	svc := newTestService(t, users)

	_, err := svc.PortalURL(context.Background(), "u1")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCheckoutURLValidatesInput(t *testing.T) {
	users := newFakeUserRepo(domain.User{ID: "u1"})
	svc := newTestService(t, users)

	_, err := svc.CheckoutURL(context.Background(), "u1", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.CheckoutURL(context.Background(), "missing", "price_1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
