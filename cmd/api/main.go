package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"signals-auth/internal/config"
	"signals-auth/internal/db"
	apihttp "signals-auth/internal/http"
	"signals-auth/internal/oauth"
	"signals-auth/internal/repository"
	"signals-auth/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool); err != nil {
			logger.Fatal("db migrate", zap.Error(err))
		}
	}

	var (
		loginLimiter = service.NewLoginRateLimiter(cfg.LoginRateLimitWindow, cfg.LoginRateLimitMax)
		replayGuard  = service.NewMemoryReplayGuard()
		redisClient  *redis.Client
	)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory limiter and replay guard", zap.Error(err))
		} else {
			loginLimiter = service.NewRedisLoginRateLimiter(redisClient, cfg.LoginRateLimitWindow, cfg.LoginRateLimitMax)
			replayGuard = service.NewRedisReplayGuard(redisClient)
		}
		cancel()
	}

	if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
		logger.Warn("google oauth client not configured")
	}
	googleProvider := oauth.NewGoogleProvider(oauth.GoogleConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		Timeout:      cfg.OAuthTimeout,
	}, logger)

	accountRepo := repository.NewPgAccountRepository(pool)
	authSvc := service.NewAuthService(
		logger,
		service.NewCredentialVerifier(accountRepo, cfg.StoreTimeout),
		service.NewBotSignatureVerifier(cfg.TelegramBotToken, cfg.BotAuthMaxAge, replayGuard),
		service.NewOAuthExchanger(googleProvider, cfg.OAuthTimeout),
		service.NewSessionTokenService(cfg.JWTSecret),
		service.NewAccountResolver(logger, accountRepo, cfg.StoreTimeout),
		loginLimiter,
	)

	authHandler := apihttp.NewAuthHandler(logger, authSvc, apihttp.AuthHandlerConfig{
		Production:        cfg.IsProduction(),
		LoginPath:         cfg.LoginPath,
		PostLoginRedirect: cfg.PostLoginRedirect,
	})
	profileHandler := apihttp.NewProfileHandler(logger, authSvc)
	healthHandler := apihttp.NewHealthHandler(logger, pool)
	router := apihttp.NewRouter(logger, authHandler, profileHandler, healthHandler, apihttp.SessionMiddleware(authSvc))

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort), zap.String("env", cfg.AppEnv))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
