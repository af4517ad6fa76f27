package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// SharedGet is the unauthenticated read-only view of a shared chat. Private
// and nonexistent chats answer identically.
func (a *App) SharedGet(w http.ResponseWriter, r *http.Request) {
	chat, err := a.Chats.GetShared(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, chat)
}
