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

	"prediction-settlement/internal/auth"
	"prediction-settlement/internal/blockchain"
	"prediction-settlement/internal/config"
	"prediction-settlement/internal/database"
	"prediction-settlement/internal/handlers"
	"prediction-settlement/internal/jobs"
	"prediction-settlement/internal/ledger"
	"prediction-settlement/internal/logger"
	"prediction-settlement/internal/notify"
	"prediction-settlement/internal/repository"
	"prediction-settlement/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

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
	db := database.GetDB()

	programID := cfg.Solana.ProgramID
	if programID == "" {
		programID = blockchain.DefaultProgramID
	}
	deriver, err := blockchain.NewAccountDeriver(programID)
	if err != nil {
		zl.Fatal("invalid settlement program id", zap.String("program_id", programID), zap.Error(err))
	}

	// BetPlaced notifications go to Redis when enabled
	var publisher notify.Publisher = notify.NopPublisher{}
	var redisPublisher *notify.RedisPublisher
	var subscriber notify.Subscriber
	if cfg.Redis.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisPublisher, err = notify.NewRedisPublisher(ctx, notify.RedisConfig{
			Addr:          cfg.Redis.Addr,
			Password:      cfg.Redis.Password,
			DB:            cfg.Redis.DB,
			ChannelPrefix: cfg.Redis.ChannelPrefix,
		})
		cancel()
		if err != nil {
			zl.Fatal("failed to connect to redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		publisher = redisPublisher
		subscriber = redisPublisher
		zl.Info("publishing bet events", zap.String("channel", redisPublisher.Channel()))
	}

	// Initialize services
	l := ledger.New(db, zl)
	repo := repository.NewRepository(db)
	settlementService, err := services.NewSettlementService(
		db,
		repo,
		l,
		deriver,
		publisher,
		cfg.Settlement.DefaultFeeBps,
		zl,
	)
	if err != nil {
		zl.Fatal("failed to create settlement service", zap.Error(err))
	}
	authService := services.NewAuthService(db, zl)
	userService := services.NewUserService(db)

	// Start escrow auditor
	auditor := jobs.NewEscrowAuditor(settlementService, cfg.Settlement.AuditInterval, zl)
	go auditor.Start()
	zl.Info("escrow auditor started", zap.Duration("interval", cfg.Settlement.AuditInterval))

	// Set up Gin router
	router := gin.Default()

	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.Server.AllowedOrigins) == 1 && cfg.Server.AllowedOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.Server.AllowedOrigins
		corsConfig.AllowCredentials = true
	}
	router.Use(cors.New(corsConfig))

	handlers.RegisterRoutes(router, handlers.Handlers{
		Auth:   handlers.NewAuthHandler(authService, zl),
		User:   handlers.NewUserHandler(userService, settlementService, zl),
		Market: handlers.NewMarketHandler(settlementService, zl),
		Wallet: handlers.NewWalletHandler(l, cfg.IsLedgerOperator, zl),
		Stream: handlers.NewStreamHandler(subscriber, settlementService, zl),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		zl.Info("server starting",
			zap.String("port", cfg.Server.Port),
			zap.String("program_id", programID),
			zap.Uint16("default_fee_bps", cfg.Settlement.DefaultFeeBps),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zl.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("shutting down server")
	auditor.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zl.Error("server forced to shutdown", zap.Error(err))
	}
	if redisPublisher != nil {
		if err := redisPublisher.Close(); err != nil {
			zl.Warn("failed to close redis publisher", zap.Error(err))
		}
	}

	zl.Info("server exited")
}
