package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/taxline/whatsapp-engine/internal/api/router"
	"github.com/taxline/whatsapp-engine/internal/appointments"
	appconfig "github.com/taxline/whatsapp-engine/internal/config"
	"github.com/taxline/whatsapp-engine/internal/conversation"
	"github.com/taxline/whatsapp-engine/internal/documents"
	"github.com/taxline/whatsapp-engine/internal/events"
	"github.com/taxline/whatsapp-engine/internal/http/handlers"
	"github.com/taxline/whatsapp-engine/internal/observability/metrics"
	"github.com/taxline/whatsapp-engine/internal/taxfilings"
	"github.com/taxline/whatsapp-engine/internal/tickets"
	"github.com/taxline/whatsapp-engine/internal/whatsapp"
	"github.com/taxline/whatsapp-engine/pkg/logging"
)

// redisPinger adapts go-redis's Ping to the health handler.
type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting whatsapp-engine API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to reach postgres", "error", err)
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		opts := &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			// Transcripts are best-effort; the engine runs without them.
			logger.Warn("redis unreachable, chat history disabled", "error", err)
			_ = redisClient.Close()
			redisClient = nil
		} else {
			defer func() { _ = redisClient.Close() }()
		}
	}

	waClient, err := whatsapp.New(whatsapp.Config{
		BaseURL:       cfg.WhatsAppBaseURL,
		AccessToken:   cfg.WhatsAppAccessToken,
		PhoneNumberID: cfg.WhatsAppPhoneNumberID,
		AppSecret:     cfg.WhatsAppAppSecret,
		Timeout:       cfg.WhatsAppTimeout,
		Logger:        logger.Component("whatsapp").Logger,
	})
	if err != nil {
		logger.Error("failed to create whatsapp client", "error", err)
		os.Exit(1)
	}

	engineMetrics := metrics.NewEngineMetrics(nil)

	engine, err := conversation.NewEngine(conversation.EngineConfig{
		Store:        conversation.NewStore(pool),
		Cache:        conversation.NewCache(cfg.CacheSize, cfg.CacheTTL),
		Sender:       waClient,
		Advisor:      conversation.NewCannedAdvisor(),
		Appointments: appointments.NewRepository(pool),
		Tickets:      tickets.NewRepository(pool),
		Filings:      taxfilings.NewRepository(pool),
		Documents:    documents.NewRepository(pool),
		History:      conversation.NewHistoryStore(redisClient, cfg.HistoryTTL),
		Metrics:      engineMetrics,
		Logger:       logger.Component("engine").Logger,
	})
	if err != nil {
		logger.Error("failed to create conversation engine", "error", err)
		os.Exit(1)
	}

	webhookCfg := handlers.WhatsAppWebhookConfig{
		Engine:      engine,
		Verifier:    waClient,
		VerifyToken: cfg.WhatsAppVerifyToken,
		Logger:      logger.Component("webhooks"),
		Metrics:     engineMetrics,
	}
	if cfg.DedupEnabled {
		webhookCfg.Processed = events.NewProcessedStore(pool)
	}

	healthHandler := handlers.NewHealthHandler(pool, nil)
	if redisClient != nil {
		healthHandler = handlers.NewHealthHandler(pool, redisPinger{client: redisClient})
	}

	r := router.New(&router.Config{
		Logger:           logger,
		Health:           healthHandler,
		WhatsAppWebhooks: handlers.NewWhatsAppWebhookHandler(webhookCfg),
		MetricsHandler:   promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
