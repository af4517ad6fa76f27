// Package billing integrates the Stripe payment processor: subscription
// checkout, the billing portal, and the webhook that syncs payment state back
// onto the user entity.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
	"github.com/stripe/stripe-go/v72/webhook"

	"server/internal/domain"
)

// Config carries the Stripe credentials and redirect targets.
type Config struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
	ReturnURL     string
}

// Service handles interactions with Stripe. All state lives in Stripe and in
// the users table; the service itself is stateless.
type Service struct {
	client        *client.API
	users         domain.UserRepository
	webhookSecret string
	successURL    string
	cancelURL     string
	returnURL     string
	logger        zerolog.Logger
}

// New creates a Stripe billing service.
func New(cfg Config, users domain.UserRepository, logger zerolog.Logger) (*Service, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("stripe secret key is required")
	}
	sc := &client.API{}
	sc.Init(cfg.SecretKey, nil)
	return &Service{
		client:        sc,
		users:         users,
		webhookSecret: cfg.WebhookSecret,
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
		returnURL:     cfg.ReturnURL,
		logger:        logger,
	}, nil
}

// CheckoutURL creates a subscription checkout session for the given price and
// returns the hosted page URL. The user identifier travels in the session
// metadata so the webhook can attribute the completed payment.
func (s *Service) CheckoutURL(ctx context.Context, userID, priceID string) (string, error) {
	if priceID == "" {
		return "", domain.Invalidf("priceId is required")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(priceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL: stripe.String(s.successURL),
		CancelURL:  stripe.String(s.cancelURL),
	}
	params.Context = ctx
	params.AddMetadata("userId", userID)
	if user.StripeCustomerID != "" {
		params.Customer = stripe.String(user.StripeCustomerID)
	} else if user.Email != "" {
		params.CustomerEmail = stripe.String(user.Email)
	}

	session, err := s.client.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return session.URL, nil
}

// PortalURL creates a billing-portal session for a user with a recorded
// payment customer. Users without one cannot manage a subscription yet.
func (s *Service) PortalURL(ctx context.Context, userID string) (string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.StripeCustomerID == "" {
		return "", domain.Invalidf("no billing profile for this user")
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(user.StripeCustomerID),
		ReturnURL: stripe.String(s.returnURL),
	}
	params.Context = ctx
	session, err := s.client.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create portal session: %w", err)
	}
	return session.URL, nil
}

// HandleWebhook verifies the payload signature and applies the event. An
// unverifiable payload changes no state.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}
	return s.Apply(ctx, event)
}

// Apply reconciles a verified Stripe event into local state. Replays are
// harmless: flipping the subscription flag on twice is the same as once.
func (s *Service) Apply(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return domain.Invalidf("malformed checkout session payload")
		}
		userID := session.Metadata["userId"]
		if userID == "" || session.Customer == nil || session.Customer.ID == "" {
			return domain.Invalidf("missing user or customer in checkout session")
		}
		if err := s.users.SetSubscribed(ctx, userID, session.Customer.ID); err != nil {
			return err
		}
		s.logger.Info().Str("user_id", userID).Msg("subscription activated")
	default:
		s.logger.Debug().Str("type", string(event.Type)).Msg("ignoring stripe event")
	}
	return nil
}
