package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"server/internal/middleware"
)

// webhookBodyLimit caps the payload read for signature verification.
const webhookBodyLimit = 65536

type checkoutRequest struct {
	PriceID string `json:"priceId"`
}

// BillingCheckout creates a subscription checkout session and returns its URL.
func (a *App) BillingCheckout(w http.ResponseWriter, r *http.Request) {
	if a.Billing == nil {
		a.error(w, http.StatusServiceUnavailable, "billing is not configured")
		return
	}
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid payload")
		return
	}
	userID := middleware.UserIDFromContext(r.Context())
	url, err := a.Billing.CheckoutURL(r.Context(), userID, req.PriceID)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"url": url})
}

// BillingPortal creates a billing-portal session for subscription management.
func (a *App) BillingPortal(w http.ResponseWriter, r *http.Request) {
	if a.Billing == nil {
		a.error(w, http.StatusServiceUnavailable, "billing is not configured")
		return
	}
	userID := middleware.UserIDFromContext(r.Context())
	url, err := a.Billing.PortalURL(r.Context(), userID)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"url": url})
}

// BillingWebhook receives Stripe events. The signature gate runs before any
// state change; an unverifiable payload is rejected outright.
func (a *App) BillingWebhook(w http.ResponseWriter, r *http.Request) {
	if a.Billing == nil {
		a.error(w, http.StatusServiceUnavailable, "billing is not configured")
		return
	}
	payload, err := io.ReadAll(io.LimitReader(r.Body, webhookBodyLimit))
	if err != nil {
		a.error(w, http.StatusBadRequest, "could not read payload")
		return
	}
	if err := a.Billing.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]bool{"received": true})
}
