package handlers

import (
	"net/http"

	"server/internal/middleware"
)

// Me returns the caller's profile with current usage counters.
func (a *App) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	user, err := a.Users.GetByID(r.Context(), userID)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, user)
}

// SubscriptionStatus reports whether the caller has an active subscription.
func (a *App) SubscriptionStatus(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	user, err := a.Users.GetByID(r.Context(), userID)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]bool{"isSubscribed": user.IsPro})
}
