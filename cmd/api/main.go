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

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/zhouzirui/mindful-chat/backend/internal/config"
	"github.com/zhouzirui/mindful-chat/backend/internal/handler"
	"github.com/zhouzirui/mindful-chat/backend/internal/middleware"
	"github.com/zhouzirui/mindful-chat/backend/internal/model/turn"
	"github.com/zhouzirui/mindful-chat/backend/internal/observability"
	"github.com/zhouzirui/mindful-chat/backend/internal/service/ai"
	"github.com/zhouzirui/mindful-chat/backend/internal/service/chat"
	"github.com/zhouzirui/mindful-chat/backend/internal/service/sentiment"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := observability.NewLogger(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if envErr != nil {
		log.Info("no .env file loaded, using process environment", "error", envErr)
	}

	shutdownTracing, err := observability.InitTracing(ctx, log, observability.TracingConfig{
		Enabled:     cfg.Telemetry.Enabled,
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		log.Fatal("failed to initialize tracing", "error", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Warn("tracing shutdown failed", "error", err)
		}
	}()

	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		log.Fatal("failed to open turn store", "backend", cfg.Store.Backend, "error", err)
	}
	log.Info("turn store ready", "backend", cfg.Store.Backend)

	classifier := sentiment.NewAdapter(newClassifier(cfg.Sentiment), cfg.Sentiment.Timeout, log)
	log.Info("sentiment classifier configured", "backend", cfg.Sentiment.Backend)

	generator, err := newGenerator(ctx, cfg.AI, log)
	if err != nil {
		log.Fatal("failed to initialize generation service", "error", err)
	}

	chatService := chat.NewService(classifier, generator, store, chat.WithLogger(log))

	limiter, closeLimiter := newAdminLimiter(ctx, cfg, log)
	defer closeLimiter()

	router := handler.NewRouter(handler.Deps{
		Turns:          chatService,
		Admin:          store,
		Auth:           middleware.NewAuthenticator(cfg.Auth.JWTSecret, log),
		AdminLimiter:   limiter,
		AdminWindow:    cfg.RateLimit.AdminWindow,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Log:            log,
	})

	startServer(ctx, log, cfg.Server, router)
}

func openStore(ctx context.Context, cfg config.StoreConfig) (turn.AdminStore, error) {
	if cfg.Backend == config.StoreBackendMemory {
		return turn.NewMemoryStore(), nil
	}
	db, err := turn.OpenDB(cfg.Backend, cfg.DSN)
	if err != nil {
		return nil, err
	}
	store := turn.NewGormStore(db)
	if err := store.AutoMigrate(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func newClassifier(cfg config.SentimentConfig) sentiment.Classifier {
	switch cfg.Backend {
	case config.SentimentBackendOpenAI:
		return sentiment.NewOpenAIClassifier(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	case config.SentimentBackendHeuristic:
		return sentiment.HeuristicClassifier{}
	default:
		return sentiment.NewHTTPClassifier(cfg.ServiceURL, &http.Client{Timeout: cfg.Timeout})
	}
}

// newGenerator tolerates missing model credentials: every reply then uses the configuration fallback.
func newGenerator(ctx context.Context, cfg config.AIConfig, log *observability.Logger) (*ai.Service, error) {
	if !cfg.Enabled() {
		log.Warn("ark credentials not configured, replies will use the configuration fallback")
		return ai.NewService(ctx, nil, cfg.Timeout, log)
	}
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		log.Warn("failed to create chat model, replies will use the configuration fallback", "error", err)
		return ai.NewService(ctx, nil, cfg.Timeout, log)
	}
	log.Info("generation model ready", "model", cfg.Model)
	return ai.NewService(ctx, chatModel, cfg.Timeout, log)
}

func newAdminLimiter(ctx context.Context, cfg *config.Config, log *observability.Logger) (middleware.Limiter, func()) {
	rl := cfg.RateLimit
	if !cfg.Redis.Enabled() {
		return middleware.NewMemoryLimiter(rl.AdminMax, rl.AdminWindow), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis unavailable, using in-process rate limiter", "addr", cfg.Redis.Addr, "error", err)
		_ = client.Close()
		return middleware.NewMemoryLimiter(rl.AdminMax, rl.AdminWindow), func() {}
	}
	log.Info("admin rate limiter using redis", "addr", cfg.Redis.Addr)
	return middleware.NewRedisLimiter(client, "mindful-chat:admin", rl.AdminMax, rl.AdminWindow), func() { _ = client.Close() }
}

func startServer(ctx context.Context, log *observability.Logger, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info("Mindful Chat backend listening", "addr", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatal("server error", "error", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
