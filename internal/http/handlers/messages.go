package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
	"server/internal/middleware"
	"server/internal/service"
)

type messageUpdateRequest struct {
	Role    domain.MessageRole    `json:"role"`
	Content domain.MessageContent `json:"content"`
}

// MessageUpdate rewrites a user-authored message in place.
func (a *App) MessageUpdate(w http.ResponseWriter, r *http.Request) {
	var req messageUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Role == "" {
		req.Role = domain.RoleUser
	}
	userID := middleware.UserIDFromContext(r.Context())
	err := a.Chats.UpdateMessage(r.Context(), userID, chi.URLParam(r, "id"), chi.URLParam(r, "mid"), service.MessageInput{
		Role:    req.Role,
		Content: req.Content,
	})
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]bool{"success": true})
}

// MessageDelete removes one message from an owned chat.
func (a *App) MessageDelete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if err := a.Chats.DeleteMessage(r.Context(), userID, chi.URLParam(r, "id"), chi.URLParam(r, "mid")); err != nil {
		a.domainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
