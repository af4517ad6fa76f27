package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"server/internal/http/handlers"
	"server/internal/middleware"
)

// RouterOptions carries the boundary configuration the router needs beyond
// the handlers themselves.
type RouterOptions struct {
	JWTSecret       string
	AllowedOrigins  []string
	RateLimitPerMin int
	Users           middleware.UserProvisioner
}

// NewRouter assembles the HTTP surface. The webhook and the shared view stay
// outside the auth group; everything else requires a session token.
func NewRouter(app *handlers.App, opts RouterOptions) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(opts.AllowedOrigins),
	)

	// Health
	r.Get("/v1/healthz", app.Health)

	// Public surface: read-only shared view behind the per-IP limit, and the
	// Stripe webhook which authenticates by signature instead.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
		r.Get("/shared/{id}", app.SharedGet)
	})
	r.Post("/billing/webhook", app.BillingWebhook)

	// Authenticated surface.
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(opts.JWTSecret, opts.Users))

		r.Route("/chats", func(r chi.Router) {
			r.Get("/", app.ChatsList)
			r.Post("/", app.ChatsCreate)
			r.Delete("/", app.ChatsDeleteAll)
			r.Get("/{id}", app.ChatGet)
			r.Put("/{id}", app.ChatUpdate)
			r.Delete("/{id}", app.ChatDelete)
			r.Put("/{id}/messages/{mid}", app.MessageUpdate)
			r.Delete("/{id}/messages/{mid}", app.MessageDelete)
		})

		r.Post("/completions/{provider}", app.CompletionsCreate)

		r.Post("/billing/checkout", app.BillingCheckout)
		r.Post("/billing/portal", app.BillingPortal)
		r.Get("/subscription-status", app.SubscriptionStatus)
		r.Get("/users/me", app.Me)
	})

	return r
}
