package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/noTilt3/SMARKETECH/internal/api"
	"github.com/noTilt3/SMARKETECH/internal/cache"
	"github.com/noTilt3/SMARKETECH/internal/chat"
	"github.com/noTilt3/SMARKETECH/internal/config"
	"github.com/noTilt3/SMARKETECH/internal/db"
	"github.com/noTilt3/SMARKETECH/internal/middleware"
	"github.com/noTilt3/SMARKETECH/internal/observ"
	"github.com/noTilt3/SMARKETECH/internal/repository/postgres"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// ---------------------------------------------------------------
	// 1. Load config
	// ---------------------------------------------------------------
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// ---------------------------------------------------------------
	// 2. Create logger
	// ---------------------------------------------------------------
	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	// ---------------------------------------------------------------
	// 3. Connect to Postgres
	//
	// Background() at startup: there is no request to inherit a
	// deadline from yet, and connecting may legitimately take a while.
	// ---------------------------------------------------------------
	database, err := db.New(context.Background(), cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	// ---------------------------------------------------------------
	// 4. Connect to Redis (optional)
	//
	// Redis only backs the latest-timestamp cache. Without REDIS_URL
	// the cache is nil-safe and every lookup goes to Postgres — the
	// app is fully functional either way.
	// ---------------------------------------------------------------
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		logger.Info("redis connection established")
	}
	latestCache := cache.NewLatestCache(rdb, logger)

	// ---------------------------------------------------------------
	// 5. Repositories, registry, publisher, chat service
	//
	// The registry is built here and injected — it is the only shared
	// mutable state in the chat core, and owning it at the composition
	// root keeps its lifecycle out of package-level variables.
	// ---------------------------------------------------------------
	pool := database.Pool()
	userRepo := postgres.NewUserStore(pool)
	contactRepo := postgres.NewContactStore(pool)
	messageRepo := postgres.NewMessageStore(pool)

	registry := chat.NewRegistry(logger)
	publisher := chat.NewPublisher(registry, logger)
	chatService := chat.NewService(userRepo, contactRepo, messageRepo, publisher, latestCache, logger)

	authHandler := api.NewAuthHandler(userRepo, cfg.JWTSecret, logger)
	chatHandler := api.NewChatHandler(chatService, logger)
	streamHandler := api.NewStreamHandler(registry, cfg.JWTSecret, logger)

	// ---------------------------------------------------------------
	// 6. HTTP server and routes
	// ---------------------------------------------------------------
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := gin.New()
	srv.Use(gin.Logger(), gin.Recovery())

	// Public: health probe and the token-producing endpoints.
	srv.GET("/api/health", func(c *gin.Context) {
		if err := database.Health(c.Request.Context()); err != nil {
			c.JSON(503, gin.H{"status": "degraded"})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})
	srv.POST("/api/auth/register", authHandler.Register)
	srv.POST("/api/auth/login", authHandler.Login)

	// The stream authenticates itself from the token query parameter,
	// so it stays outside the header middleware.
	srv.GET("/api/chat/stream", streamHandler.Stream)

	chatGroup := srv.Group("/api/chat")
	chatGroup.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	chatGroup.GET("/contatos", chatHandler.ListContacts)
	chatGroup.POST("/contatos", chatHandler.AddContact)
	chatGroup.GET("/mensagens", chatHandler.ListMessages)
	chatGroup.POST("/mensagens", chatHandler.SendMessage)
	chatGroup.GET("/latest", chatHandler.Latest)

	logger.Info("starting server",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
	)

	return srv.Run(":" + cfg.Port)
}
