package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"

	"monitorflow/internal/api"
	"monitorflow/internal/api/handlers"
	"monitorflow/internal/api/middleware"
	"monitorflow/internal/engine/ingest"
	"monitorflow/internal/engine/notify"
	"monitorflow/internal/engine/webhooks"
	"monitorflow/internal/pkg/logger"
	"monitorflow/internal/platform/auth"
	"monitorflow/internal/platform/config"
	"monitorflow/internal/platform/database"
	"monitorflow/internal/platform/repositories"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.Logging)

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// Repositories
	userRepo := repositories.NewUserRepository(db)
	categoryRepo := repositories.NewCategoryRepository(db)
	eventRepo := repositories.NewEventRepository(db)
	webhookRepo := repositories.NewWebhookRepository(db)
	deliveryRepo := repositories.NewDeliveryRepository(db)
	quotaRepo := repositories.NewQuotaRepository(db)
	rateLimitRepo := repositories.NewRateLimitRepository(db)

	// Services
	tokenSvc := auth.NewTokenService(cfg.JWT)
	discord := notify.NewDiscordClient(cfg.Discord)
	webhookClient := webhooks.NewClient(cfg.Webhooks.Timeout)

	pipeline := ingest.NewPipeline(
		categoryRepo,
		eventRepo,
		webhookRepo,
		deliveryRepo,
		quotaRepo,
		discord,
		webhookClient,
		cfg.Plans,
	)

	// Handlers
	authHandler := handlers.NewAuthHandler(tokenSvc, cfg.JWT)
	eventsHandler := handlers.NewEventsHandler(pipeline, eventRepo, categoryRepo)
	categoryHandler := handlers.NewCategoryHandler(categoryRepo, cfg.Plans)
	webhookHandler := handlers.NewWebhookHandler(webhookRepo, deliveryRepo, cfg.Plans)
	healthHandler := handlers.NewHealthHandler(db)
	metricsHandler := handlers.NewMetricsHandler()

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(userRepo, tokenSvc)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(rateLimitRepo, cfg.RateLimit)

	router := api.NewRouter(&api.Dependencies{
		AuthHandler:         authHandler,
		EventsHandler:       eventsHandler,
		CategoryHandler:     categoryHandler,
		WebhookHandler:      webhookHandler,
		HealthHandler:       healthHandler,
		MetricsHandler:      metricsHandler,
		AuthMiddleware:      authMiddleware,
		RateLimitMiddleware: rateLimitMiddleware,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	log.Printf("Server starting on %s", addr)
	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
