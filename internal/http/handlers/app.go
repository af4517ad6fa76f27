// Package handlers is the HTTP boundary: it decodes requests, delegates to
// the services, and maps domain errors onto status codes.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/providers/completion"
	"server/internal/service"
)

// ChatAPI is the slice of the chat service the handlers consume.
type ChatAPI interface {
	Create(ctx context.Context, userID string, in service.CreateChatInput) (*domain.Chat, error)
	Append(ctx context.Context, userID, chatID string, in service.UpdateChatInput) (*domain.Chat, error)
	Get(ctx context.Context, userID, chatID string) (*domain.Chat, error)
	GetShared(ctx context.Context, chatID string) (*domain.Chat, error)
	List(ctx context.Context, userID string) ([]domain.Chat, error)
	UpdateMessage(ctx context.Context, userID, chatID, messageID string, in service.MessageInput) error
	DeleteMessage(ctx context.Context, userID, chatID, messageID string) error
	Delete(ctx context.Context, userID, chatID string) error
	DeleteAll(ctx context.Context, userID string) error
}

// BillingAPI is the slice of the billing service the handlers consume.
type BillingAPI interface {
	CheckoutURL(ctx context.Context, userID, priceID string) (string, error)
	PortalURL(ctx context.Context, userID string) (string, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

// App bundles the handler dependencies.
type App struct {
	Chats     ChatAPI
	Billing   BillingAPI
	Users     domain.UserRepository
	Providers *completion.Registry
	Logger    zerolog.Logger
}

func NewApp(chats ChatAPI, billing BillingAPI, users domain.UserRepository, providers *completion.Registry, logger zerolog.Logger) *App {
	return &App{
		Chats:     chats,
		Billing:   billing,
		Users:     users,
		Providers: providers,
		Logger:    logger,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, msg string) {
	a.json(w, code, map[string]string{"error": msg})
}

// domainError translates a service error into its response. Ownership misses
// come back as the same 404 a nonexistent resource gets, so probing cannot
// distinguish them.
func (a *App) domainError(w http.ResponseWriter, r *http.Request, err error) {
	var quotaErr *domain.QuotaError
	var validationErr *domain.ValidationError
	switch {
	case errors.As(err, &quotaErr):
		a.error(w, http.StatusForbidden, quotaErr.Message)
	case errors.As(err, &validationErr):
		a.error(w, http.StatusBadRequest, validationErr.Message)
	case errors.Is(err, domain.ErrInvalidInput):
		a.error(w, http.StatusBadRequest, "invalid request")
	case errors.Is(err, domain.ErrQuotaExceeded):
		a.error(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrConflict):
		a.error(w, http.StatusConflict, "resource already exists")
	case errors.Is(err, domain.ErrInvalidSignature):
		a.error(w, http.StatusBadRequest, "invalid signature")
	case errors.Is(err, domain.ErrProviderFailure):
		a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("upstream provider failure")
		a.error(w, http.StatusBadGateway, "upstream provider failure")
	default:
		a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("internal error")
		a.error(w, http.StatusInternalServerError, "internal error")
	}
}
