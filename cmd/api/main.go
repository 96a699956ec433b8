package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"identity-sync/internal/config"
	apihttp "identity-sync/internal/http"
	"identity-sync/internal/service"
	"identity-sync/internal/store"
	"identity-sync/internal/store/postgres"
	"identity-sync/internal/store/supabase"

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

	var st store.Store
	switch cfg.StoreBackend {
	case "postgres":
		if cfg.DatabaseURL == "" {
			logger.Fatal("postgres backend requires DATABASE_URL")
		}
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("db connect", zap.Error(err))
		}
		defer pool.Close()
		st = postgres.NewStore(pool)
	default:
		if cfg.HasSupabaseURL() && cfg.HasServiceKey() {
			st = supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseKey, nil)
		} else {
			// Sin configuración el servicio arranca igual; user-sync
			// responde 500 y whoami degrada.
			logger.Warn("supabase gateway not configured")
		}
	}

	var limiter service.SyncRateLimiter
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			limiter = service.NewRedisSyncRateLimiter(redisClient, time.Minute, 10)
		}
		cancel()
	}

	syncSvc := service.NewSyncService(logger, st, limiter)
	syncHandler := apihttp.NewSyncHandler(logger, syncSvc)
	whoamiHandler := apihttp.NewWhoamiHandler(logger, cfg, st)
	router := apihttp.NewRouter(logger, syncHandler, whoamiHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort), zap.String("store_backend", cfg.StoreBackend))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
