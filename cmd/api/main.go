package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/timmyl2410/PlatelyAI-sub000/config"
	"github.com/timmyl2410/PlatelyAI-sub000/internal/api"
	"github.com/timmyl2410/PlatelyAI-sub000/internal/database"
	"github.com/timmyl2410/PlatelyAI-sub000/internal/logger"
	"github.com/timmyl2410/PlatelyAI-sub000/internal/middleware"
	"github.com/timmyl2410/PlatelyAI-sub000/internal/router"
	"github.com/timmyl2410/PlatelyAI-sub000/internal/server"
	"github.com/timmyl2410/PlatelyAI-sub000/internal/service"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Component("main").WithError(err).Fatal("failed to load configuration")
	}
	logger.New(cfg)
	log := logger.Component("main").WithField("env", config.GetEnvironment())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	gdb, err := db.Gorm(cfg.LogLevel == "debug")
	if err != nil {
		log.WithError(err).Fatal("failed to open gorm")
	}
	migrationsDir := os.Getenv("MIGRATIONS_DIR")
	if migrationsDir == "" {
		migrationsDir = "migrations"
	}
	if err := database.RunMigrations(gdb, migrationsDir); err != nil {
		log.WithError(err).Fatal("failed to run migrations")
	}

	redisClient, err := database.NewRedisClient(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to redis")
	}
	defer redisClient.Close()

	blobs, err := config.NewS3Config(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to configure blob storage")
	}

	var verifier service.ITokenVerifier
	if cfg.AuthDisabled {
		log.Warn("auth disabled via AUTH_DISABLED for local development")
	} else {
		verifier, err = service.NewFirebaseVerifier(ctx, cfg)
		if err != nil {
			log.WithError(err).Fatal("failed to init token verifier")
		}
	}

	httpClient := &http.Client{Timeout: 2 * time.Minute}
	chat := service.NewOpenAIClient(cfg, httpClient)
	entitlements := service.NewEntitlementsService(gdb, cfg.FreeMealLimit)
	categorizer := service.NewCategorizer(chat, cfg.ChatModel, cfg.AICategorizationEnabled)

	deps := api.Dependencies{
		Verifier:     verifier,
		AuthDisabled: cfg.AuthDisabled,
		Scans:        service.NewScanService(gdb, chat, cfg.VisionModel, categorizer),
		Categorizer:  categorizer,
		Meals:        service.NewMealService(chat, cfg.ChatModel, entitlements),
		Images: service.NewRecipeImageService(gdb, service.NewImageService(cfg, httpClient),
			blobs, cfg.RecipeImageURLTTL),
		Entitlements: entitlements,
		Billing:      service.NewBillingService(cfg, service.NewStripeGateway(cfg.StripeSecretKey), entitlements),
		Uploads:      service.NewUploadService(blobs, cfg.UploadURLTTL, cfg.ReadURLTTL),
		Sessions:     service.NewSessionService(service.NewRedisSessionStore(redisClient), cfg.SessionTTL),
		RateLimiters: map[string]*middleware.RateLimiter{
			middleware.BucketScan:      middleware.NewScanRateLimiter(redisClient, cfg.ScanRateLimit),
			middleware.BucketMealImage: middleware.NewMealImageRateLimiter(redisClient, cfg.MealImageRateLimit),
		},
		HealthChecks: map[string]api.HealthCheck{
			"database": db.HealthCheck,
			"redis":    func(ctx context.Context) error { return pingRedis(ctx, redisClient) },
		},
	}

	srv := server.New(cfg, router.SetupRouter(cfg, deps))
	if err := srv.Run(ctx); err != nil {
		log.WithError(err).Fatal("server error")
	}
}

func pingRedis(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}
