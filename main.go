package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/szabolcsnagy0/kindly/cache"
	"github.com/szabolcsnagy0/kindly/config"
	"github.com/szabolcsnagy0/kindly/db"
	"github.com/szabolcsnagy0/kindly/handlers"
	"github.com/szabolcsnagy0/kindly/middleware"
	"github.com/szabolcsnagy0/kindly/routes"
	"github.com/szabolcsnagy0/kindly/services"
	"github.com/szabolcsnagy0/kindly/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	utils.InitLogger(cfg.Log)
	defer utils.Logger.Sync()
	utils.InitMetrics()
	logger := utils.Logger

	logger.Info("starting_application")

	conn, err := db.Connect(cfg.DB, logger)
	if err != nil {
		logger.Fatal("database_connection_failed", zap.Error(err))
	}
	if err := db.Migrate(conn); err != nil {
		logger.Fatal("migration_failed", zap.Error(err))
	}
	if n, err := db.SeedRequestTypes(conn); err != nil {
		logger.Fatal("seed_request_types_failed", zap.Error(err))
	} else if n > 0 {
		logger.Info("request_types_seeded", zap.Int("count", n))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := cache.InitRedis(ctx, cfg.Redis, logger); err != nil {
		logger.Warn("running_without_cache", zap.Error(err))
	}
	cancel()
	defer cache.Close()

	h := buildHandlers(cfg, conn, logger)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.SecurityHeaders())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.CSRFHeader, handlers.AdminKeyHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader, middleware.CSRFHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.RateLimitMiddleware(cfg.RateLimit, cfg.RateLimitWindow))
	if cfg.CSRFAuthKey != "" {
		r.Use(middleware.CSRFProtection([]byte(cfg.CSRFAuthKey), true))
	}

	routes.Setup(r, h, h.Users, routes.Options{ResponseTTL: cfg.ResponseTTL})

	startServer(r, cfg.Port)
}

func buildHandlers(cfg config.Config, conn *gorm.DB, logger *zap.Logger) *handlers.Handlers {
	if cfg.AdminAPIKey == "" {
		logger.Warn("admin_api_key_not_set")
	}
	badges := services.NewBadgeService(conn, services.NewAdminGuard(cfg.AdminAPIKey), logger)
	progression := services.NewProgression(badges, logger)
	quests := services.NewQuestService(conn, progression, logger)
	tokens := utils.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)

	var classifier services.CategoryClassifier
	if c := services.NewOpenAIClassifier(cfg.AI); c != nil {
		classifier = c
	} else {
		logger.Info("category_classifier_disabled")
	}

	return &handlers.Handlers{
		Users:        services.NewUserService(conn, quests, tokens, logger),
		Requests:     services.NewRequestService(conn, badges, progression, quests, logger),
		Applications: services.NewApplicationService(conn, badges, progression, logger),
		Badges:       badges,
		Quests:       quests,
		Categories:   services.NewCategoryService(conn, classifier, logger),
		Stats:        services.NewStatsService(conn, logger),
	}
}

func startServer(router *gin.Engine, port string) {
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	utils.Logger.Info("starting_http_server", zap.String("port", port))

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Logger.Fatal("http_server_failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	utils.Logger.Info("shutting_down_server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		utils.Logger.Fatal("server_forced_shutdown", zap.Error(err))
	}

	utils.Logger.Info("server_stopped")
}
