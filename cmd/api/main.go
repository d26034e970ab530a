package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/edusummarizer/hub/internal/api"
	"github.com/edusummarizer/hub/internal/auth"
	"github.com/edusummarizer/hub/internal/billing"
	"github.com/edusummarizer/hub/internal/cache"
	"github.com/edusummarizer/hub/internal/config"
	"github.com/edusummarizer/hub/internal/database"
	"github.com/edusummarizer/hub/internal/inference"
	"github.com/edusummarizer/hub/internal/middleware"
	"github.com/edusummarizer/hub/internal/quiz"
	"github.com/edusummarizer/hub/internal/quota"
	iredis "github.com/edusummarizer/hub/internal/redis"
	"github.com/edusummarizer/hub/internal/server"
	"github.com/edusummarizer/hub/internal/summarize"
	"github.com/edusummarizer/hub/internal/translate"
	"github.com/edusummarizer/hub/internal/upload"
	"github.com/edusummarizer/hub/internal/users"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.DB.MigrationsPath != "" {
		if err := database.RunMigrations(cfg.DB.DSN(), cfg.DB.MigrationsPath); err != nil {
			slog.Error("running migrations", "error", err)
			os.Exit(1)
		}
	}

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// Users & auth
	userRepo := users.NewRepository(pool)
	userSvc := users.NewService(userRepo)
	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Expiry)
	authHandler := auth.NewHandler(jwtManager, userSvc)

	// Usage gate & fingerprint cache
	gate := quota.NewGate(userRepo)
	cacheStore := cache.NewRedisStore(redisClient, cfg.Cache.TTL)

	// Inference proxy
	aiClient := inference.NewClient(cfg.Inference)
	summarizeHandler := summarize.NewHandler(gate, cacheStore, aiClient)
	translateHandler := translate.NewHandler(gate, cacheStore, aiClient)
	quizHandler := quiz.NewHandler(gate, cacheStore)
	uploadHandler := upload.NewHandler()

	// Billing
	billingSvc := billing.NewService(userSvc, cfg.Stripe)
	billingHandler := billing.NewHandler(billingSvc)

	// Router
	authLimiter := middleware.NewRateLimiter(redisClient, 10, 60)
	router := api.NewRouter(pool, api.RouterConfig{
		CORSAllowedOrigins: cfg.CORS.AllowedOrigins,
		AuthRateLimiter:    authLimiter.Middleware,
	}, api.HandlerSet{
		Register: authHandler.Register,
		Login:    authHandler.Login,
		Me:       authHandler.Me,

		Summarize:    summarizeHandler.Summarize,
		Translate:    translateHandler.Translate,
		GenerateQuiz: quizHandler.GenerateQuiz,
		Upload:       uploadHandler.Upload,

		CreateSubscription: billingHandler.CreateSubscription,
		StripeWebhook:      billingHandler.Webhook,

		AuthMiddleware: auth.Middleware(jwtManager, userSvc),
	})

	// Start server
	srv := server.New(cfg.Server, router)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
