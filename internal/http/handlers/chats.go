package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
	"server/internal/middleware"
	"server/internal/service"
)

type chatCreateRequest struct {
	ChatID   string                 `json:"chatId"`
	Title    string                 `json:"title"`
	Usage    domain.ChatUsage       `json:"usage"`
	Messages []service.MessageInput `json:"messages"`
}

type chatUpdateRequest struct {
	Title    *string                `json:"title"`
	Shared   *bool                  `json:"shared"`
	Usage    *domain.ChatUsage      `json:"usage"`
	Messages []service.MessageInput `json:"messages"`
}

// ChatsList returns the caller's chats without messages, newest first.
func (a *App) ChatsList(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	chats, err := a.Chats.List(r.Context(), userID)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	if chats == nil {
		chats = []domain.Chat{}
	}
	a.json(w, http.StatusOK, chats)
}

// ChatsCreate opens a new chat, or continues an existing one when chatId is
// set. Both paths are quota-checked.
func (a *App) ChatsCreate(w http.ResponseWriter, r *http.Request) {
	var req chatCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid payload")
		return
	}
	userID := middleware.UserIDFromContext(r.Context())
	chat, err := a.Chats.Create(r.Context(), userID, service.CreateChatInput{
		ChatID:   req.ChatID,
		Title:    req.Title,
		Usage:    req.Usage,
		Messages: req.Messages,
	})
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	status := http.StatusCreated
	if req.ChatID != "" {
		status = http.StatusOK
	}
	a.json(w, status, chat)
}

// ChatsDeleteAll removes every chat the caller owns.
func (a *App) ChatsDeleteAll(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if err := a.Chats.DeleteAll(r.Context(), userID); err != nil {
		a.domainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ChatGet returns one owned chat with its messages.
func (a *App) ChatGet(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	chat, err := a.Chats.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, chat)
}

// ChatUpdate appends messages and applies optional title/shared/usage changes.
func (a *App) ChatUpdate(w http.ResponseWriter, r *http.Request) {
	var req chatUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid payload")
		return
	}
	userID := middleware.UserIDFromContext(r.Context())
	chat, err := a.Chats.Append(r.Context(), userID, chi.URLParam(r, "id"), service.UpdateChatInput{
		Title:    req.Title,
		Shared:   req.Shared,
		Usage:    req.Usage,
		Messages: req.Messages,
	})
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, chat)
}

// ChatDelete removes one owned chat and its messages.
func (a *App) ChatDelete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if err := a.Chats.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		a.domainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
