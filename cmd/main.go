package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"escrow-market/internal/auth"
	"escrow-market/internal/config"
	"escrow-market/internal/database"
	"escrow-market/internal/handlers"
	"escrow-market/internal/jobs"
	"escrow-market/internal/logger"
	"escrow-market/internal/repository"
	"escrow-market/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zl, err := logger.New(cfg.Server.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync()

	// Initialize JWT
	auth.InitJWT(cfg.App.JWTSecret)

	// Connect to database
	if err := database.Connect(cfg.Database.Driver, cfg.GetDSN(), zl); err != nil {
		zl.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run migrations
	if err := database.AutoMigrate(zl); err != nil {
		zl.Fatal("failed to run migrations", zap.Error(err))
	}

	// Initialize repository
	repo := repository.NewRepository(database.GetDB())

	// Status history goes to MongoDB when configured, else to the main database
	var activity repository.ActivityLog = repository.NewSQLActivityLog(database.GetDB())
	if cfg.Mongo.URI != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		client, err := repository.ConnectMongo(ctx, cfg.Mongo.URI)
		cancel()
		if err != nil {
			zl.Fatal("failed to connect to MongoDB", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(ctx)
		}()
		activity = repository.NewMongoActivityLog(client, cfg.Mongo.Database)
		zl.Info("activity log stored in MongoDB", zap.String("database", cfg.Mongo.Database))
	}

	// Initialize services
	fees := services.FeeScheduleFromConfig(cfg.Fees)
	authService := services.NewAuthService(repo, zl)
	userService := services.NewUserService(repo)
	adminService := services.NewAdminService(repo, activity, zl)
	dealService := services.NewDealService(repo, fees, activity, zl)
	disputeService := services.NewDisputeService(repo, dealService, activity, zl)
	walletService := services.NewWalletService(repo, fees, activity, zl)
	chatService := services.NewChatService(repo)
	notificationService := services.NewNotificationService(repo)
	dashboardService := services.NewDashboardService(repo)

	// Initialize handlers
	h := &handlers.Handlers{
		Auth:      handlers.NewAuthHandler(authService),
		User:      handlers.NewUserHandler(userService, adminService),
		Deal:      handlers.NewDealHandler(dealService, adminService),
		Dispute:   handlers.NewDisputeHandler(disputeService, adminService),
		Wallet:    handlers.NewWalletHandler(walletService, cfg.App.WebhookSecret),
		Chat:      handlers.NewChatHandler(chatService, notificationService),
		Dashboard: handlers.NewDashboardHandler(dashboardService),
		Admin:     handlers.NewAdminHandler(adminService, disputeService),
	}

	// Start deal expiry job
	expiryJob := jobs.NewDealExpiryJob(dealService, cfg.App.DealExpiryInterval, zl)
	go expiryJob.Start()

	// Set up Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(handlers.RequestLogger(zl))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With", "Idempotency-Key"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	handlers.RegisterRoutes(router, h)

	// Create HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		zl.Info("server starting",
			zap.String("port", cfg.Server.Port),
			zap.String("health", "http://localhost:"+cfg.Server.Port+"/health"))

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zl.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("shutting down server")
	expiryJob.Stop()

	// Graceful shutdown with 5 second timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zl.Error("server forced to shutdown", zap.Error(err))
	}

	zl.Info("server exited")
}
