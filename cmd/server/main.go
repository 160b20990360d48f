// Package main is the entry point for the Community Gateway.
// @title Community Gateway API
// @version 1.0
// @description Session-gated gateway for the community site: blog content, sign-in and a streaming AI chat proxy.

// @contact.name API Support
// @contact.url https://github.com/unifiedui/community-gateway

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http https
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	_ "github.com/unifiedui/community-gateway/docs"
	"github.com/unifiedui/community-gateway/internal/api/handlers"
	"github.com/unifiedui/community-gateway/internal/api/middleware"
	"github.com/unifiedui/community-gateway/internal/api/routes"
	"github.com/unifiedui/community-gateway/internal/config"
	"github.com/unifiedui/community-gateway/internal/core/vault"
	rediscache "github.com/unifiedui/community-gateway/internal/infrastructure/cache/redis"
	"github.com/unifiedui/community-gateway/internal/infrastructure/docdb/mongodb"
	"github.com/unifiedui/community-gateway/internal/infrastructure/identity/gotrue"
	dotenvvault "github.com/unifiedui/community-gateway/internal/infrastructure/vault/dotenv"
	"github.com/unifiedui/community-gateway/internal/observability"
	"github.com/unifiedui/community-gateway/internal/pkg/encryption"
	"github.com/unifiedui/community-gateway/internal/pkg/logging"
	"github.com/unifiedui/community-gateway/internal/services/authgate"
	"github.com/unifiedui/community-gateway/internal/services/chat"
	"github.com/unifiedui/community-gateway/internal/services/content"
	"github.com/unifiedui/community-gateway/internal/services/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if _, err := logging.Setup(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}); err != nil {
		log.Fatal().Err(err).Msg("failed to configure logging")
	}

	ctx := context.Background()

	vaultClient, err := createVault(cfg.Vault)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize vault")
	}
	defer vaultClient.Close()

	identityKey, err := vault.Resolve(ctx, vaultClient, cfg.Identity.APIKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to resolve identity API key")
	}
	identityClient, err := gotrue.NewClient(&gotrue.ClientConfig{
		BaseURL: cfg.Identity.URL,
		APIKey:  identityKey,
		Timeout: cfg.Identity.Timeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize identity client")
	}

	cacheClient, err := rediscache.NewClient(rediscache.Config{
		Host:       cfg.Cache.Host,
		Port:       cfg.Cache.Port,
		Password:   cfg.Cache.Password,
		DB:         cfg.Cache.DB,
		DefaultTTL: cfg.Cache.TTL,
		KeyPrefix:  cfg.Cache.KeyPrefix,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize cache client")
	}
	defer cacheClient.Close()

	docDBClient, err := mongodb.NewClient(ctx, &mongodb.ClientConfig{
		URI:          cfg.DocDB.URI,
		DatabaseName: cfg.DocDB.Database,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize document db client")
	}
	defer docDBClient.Close(ctx)

	if err := docDBClient.EnsureIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to ensure indexes")
	}

	encryptor, err := createEncryptor(ctx, cfg.Vault, vaultClient)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize encryptor")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	sessionService, err := session.NewService(&session.Config{
		Provider:     identityClient,
		CacheClient:  cacheClient,
		Encryptor:    encryptor,
		CookiePrefix: cfg.Session.CookiePrefix,
		CookieDomain: cfg.Session.CookieDomain,
		CookieSecure: cfg.Session.CookieSecure,
		CookieMaxAge: cfg.Session.CookieMaxAge,
		UserCacheTTL: cfg.Session.UserCacheTTL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize session service")
	}

	gate, err := authgate.NewGate(cfg.RouteConfig(), sessionService, authgate.WithMetrics(metrics))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize session gate")
	}

	contentService, err := content.NewService(&content.Config{
		Posts:       docDBClient.Posts(),
		CacheClient: cacheClient,
		CacheTTL:    cfg.Cache.TTL,
		Metrics:     metrics,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize content service")
	}

	chatService, err := createChatService(ctx, cfg.Chat, vaultClient, docDBClient, metrics)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize chat service")
	}
	defer chatService.Close()

	gin.SetMode(cfg.Server.GinMode)

	router := gin.New()
	routes.SetupWithMiddleware(router, &routes.Config{
		HealthHandler: handlers.NewHealthHandler(map[string]handlers.Pinger{
			"cache":    cacheClient,
			"docdb":    docDBClient,
			"identity": identityClient,
		}),
		AuthHandler:    handlers.NewAuthHandler(sessionService, gate.Routes()),
		ChatHandler:    handlers.NewChatHandler(chatService, cfg.Chat.KeepAlive),
		PostsHandler:   handlers.NewPostsHandler(contentService),
		PagesHandler:   handlers.NewPagesHandler(cfg.Server.StaticDir),
		SessionGate:    middleware.NewSessionGateMiddleware(gate),
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		StaticDir:      cfg.Server.StaticDir,
		EnableDocs:     cfg.Server.EnableDocs,
	},
		middleware.NewLoggingMiddleware(),
		middleware.NewErrorMiddleware(),
		corsMiddleware(cfg.Server.CORSOrigins),
	)

	srv := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited")
}

// createVault creates a vault based on the configuration.
func createVault(cfg config.VaultConfig) (vault.Vault, error) {
	switch vault.Type(cfg.Type) {
	case vault.TypeDotEnv:
		return dotenvvault.NewVault(cfg.Files...)
	default:
		return nil, fmt.Errorf("unsupported vault type: %s", cfg.Type)
	}
}

// createEncryptor creates the encryptor for user profiles cached in Redis.
// Without a key, cached profiles are stored in plain text.
func createEncryptor(ctx context.Context, cfg config.VaultConfig, v vault.Vault) (encryption.Encryptor, error) {
	key, err := vault.Resolve(ctx, v, cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve encryption key: %w", err)
	}
	if key == "" {
		log.Warn().Msg("SECRETS_ENCRYPTION_KEY not set, cached user profiles are not encrypted")
		return encryption.PlainEncryptor{}, nil
	}
	return encryption.NewAESEncryptor(key)
}

func createChatService(ctx context.Context, cfg config.ChatConfig, v vault.Vault, docDBClient *mongodb.Client, metrics *observability.Metrics) (chat.Service, error) {
	apiKey, err := vault.Resolve(ctx, v, cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve chat API key: %w", err)
	}

	backend, err := chat.NewBackend(&chat.BackendConfig{
		Type:         chat.BackendType(cfg.Type),
		BaseURL:      cfg.URL,
		ChatflowID:   cfg.ChatflowID,
		APIKey:       apiKey,
		Model:        cfg.Model,
		SystemPrompt: cfg.SystemPrompt,
		Timeout:      cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}

	return chat.NewService(&chat.Config{
		Backend:           backend,
		Exchanges:         docDBClient.Exchanges(),
		Metrics:           metrics,
		MaxQuestionLength: cfg.MaxQuestionLength,
		MaxHistory:        cfg.MaxHistory,
		RateLimit:         rate.Limit(cfg.RateLimit),
		RateBurst:         cfg.RateBurst,
	})
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	if len(origins) == 0 {
		return nil
	}
	return middleware.NewCORSMiddleware(middleware.DefaultCORSConfig(origins))
}
