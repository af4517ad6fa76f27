package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"server/internal/adapter/repo"
	"server/internal/billing"
	"server/internal/domain"
	httpapi "server/internal/http"
	"server/internal/http/handlers"
	"server/internal/infra"
	"server/internal/providers/completion"
	"server/internal/service"
)

// provisioner adapts the user repository to the auth middleware's narrow
// contract.
type provisioner struct {
	users domain.UserRepository
}

func (p provisioner) Provision(ctx context.Context, userID string) error {
	_, err := p.users.EnsureUser(ctx, userID)
	return err
}

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	if err := infra.Migrate(ctx, dbpool); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	users := repo.NewUserRepository(dbpool)
	chats := repo.NewChatRepository(dbpool)
	messages := repo.NewMessageRepository(dbpool)

	chatService := service.NewChatService(users, chats, messages, logger)

	var billingService *billing.Service
	if cfg.StripeSecretKey != "" {
		billingService, err = billing.New(billing.Config{
			SecretKey:     cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhookSecret,
			SuccessURL:    cfg.StripeSuccessURL,
			CancelURL:     cfg.StripeCancelURL,
			ReturnURL:     cfg.StripeReturnURL,
		}, users, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure billing")
		}
	} else {
		logger.Warn().Msg("STRIPE_SECRET_KEY not set, billing endpoints disabled")
	}

	registry := buildProviderRegistry(cfg, logger)

	app := handlers.NewApp(chatService, billingAPI(billingService), users, registry, logger)

	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		JWTSecret:       cfg.JWTSecret,
		AllowedOrigins:  cfg.AllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		Users:           provisioner{users: users},
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on %s", server.Addr())
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

// billingAPI keeps the App's billing field nil when Stripe is not configured,
// instead of a typed-nil interface that would dodge the handler's nil check.
func billingAPI(s *billing.Service) handlers.BillingAPI {
	if s == nil {
		return nil
	}
	return s
}

func buildProviderRegistry(cfg *infra.Config, logger infra.Logger) *completion.Registry {
	registry := completion.NewRegistry()

	register := func(name string, c completion.Completer, err error) {
		if err != nil {
			logger.Warn().Err(err).Str("provider", name).Msg("provider not configured")
			return
		}
		registry.Register(name, c)
	}

	if cfg.OpenAIAPIKey != "" {
		c, err := completion.NewOpenAICompleter(completion.OpenAIOptions{
			APIKey: cfg.OpenAIAPIKey, BaseURL: cfg.OpenAIBaseURL, Provider: "openai",
		})
		register("openai", c, err)
	}
	if cfg.DeepSeekAPIKey != "" {
		c, err := completion.NewOpenAICompleter(completion.OpenAIOptions{
			APIKey: cfg.DeepSeekAPIKey, BaseURL: cfg.DeepSeekBaseURL, Provider: "deepseek",
		})
		register("deepseek", c, err)
	}
	if cfg.XAIAPIKey != "" {
		c, err := completion.NewOpenAICompleter(completion.OpenAIOptions{
			APIKey: cfg.XAIAPIKey, BaseURL: cfg.XAIBaseURL, Provider: "xai",
		})
		register("xai", c, err)
	}
	if cfg.AnthropicAPIKey != "" {
		c, err := completion.NewAnthropicCompleter(completion.AnthropicOptions{
			APIKey: cfg.AnthropicAPIKey, BaseURL: cfg.AnthropicBaseURL,
		})
		register("anthropic", c, err)
	}
	if cfg.GoogleAPIKey != "" {
		c, err := completion.NewGoogleCompleter(completion.GoogleOptions{
			APIKey: cfg.GoogleAPIKey, BaseURL: cfg.GoogleBaseURL,
		})
		register("google", c, err)
	}

	logger.Info().Strs("providers", registry.Names()).Msg("completion providers registered")
	return registry
}
