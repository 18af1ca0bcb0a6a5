package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"userapi/docs"
	"userapi/internal/auth"
	"userapi/internal/cache"
	"userapi/internal/config"
	"userapi/internal/db"
	"userapi/internal/graph"
	"userapi/internal/handler"
	"userapi/internal/logging"
	"userapi/internal/repository"
	"userapi/internal/router"
	"userapi/internal/service"
	"userapi/internal/telemetry"
)

// @title User API
// @version 1.0
// @description User registration, login, token refresh and profile API with a GraphQL endpoint at /graphql.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.Environment)
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	tp, err := telemetry.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("telemetry init: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}()

	gormDB, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN, db.Options{MaxOpenConns: cfg.DBMaxOpenConn})
	if err != nil {
		return fmt.Errorf("database init: %w", err)
	}
	if cfg.AutoMigrate {
		if err := db.Migrate(ctx, gormDB, cfg.DBDriver); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	redisClient := cache.NewRedis(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, cfg.RedisTimeout)
	defer func() { _ = redisClient.Close() }()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		// The user view cache degrades to misses; token operations will return 503 until redis is back.
		logger.Warn("redis unreachable at startup", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}

	// Initialize repositories and stores
	userRepo := repository.NewUserRepository(gormDB, cfg.DBOpTimeout)
	userCache := cache.NewUserCache(cache.New(redisClient, logger), cfg.UserCacheTTL, logger)
	tokenStore := auth.NewTokenStore(redisClient)
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	// Initialize services
	authService := service.NewAuthService(userRepo, jwtService, tokenStore, userCache,
		service.WithRefreshRotation(cfg.RotateRefreshTokens),
		service.WithLogger(logger),
	)
	userService := service.NewUserService(userRepo, userCache, tokenStore, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	router.Register(e, cfg, logger, authService, router.Handlers{
		Auth:    handler.NewAuthHandler(authService),
		User:    handler.NewUserHandler(userService),
		GraphQL: handler.NewGraphQLHandler(graph.NewSchema(), authService, userService),
	})

	if cfg.SwaggerHost != "" {
		docs.SwaggerInfo.Host = strings.TrimPrefix(strings.TrimPrefix(cfg.SwaggerHost, "https://"), "http://")
	}
	logger.Info("swagger documentation available", zap.String("url", "http://"+docs.SwaggerInfo.Host+"/swagger/index.html"))

	addr := ":" + cfg.ServerPort
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		logger.Info("http server stopped")
		return nil
	})

	return g.Wait()
}
