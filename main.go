package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"hotly-cache/internal/cache"
	"hotly-cache/internal/common/logging"
	"hotly-cache/internal/config"
	"hotly-cache/internal/handlers"
	"hotly-cache/internal/keys"
	"hotly-cache/internal/locks"
	"hotly-cache/internal/middleware"
	"hotly-cache/internal/redis"
	"hotly-cache/internal/server"
	"hotly-cache/internal/tiers/disk"
	"hotly-cache/internal/tiers/memory"
	"hotly-cache/internal/tiers/remote"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.NewZapLogger(logging.LogConfig{
		Level: logging.ParseLevel(cfg.LogLevel),
		Name:  "hotly-cache",
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logging.SetGlobalLogger(logger)

	// The Redis connection is lazy: an unreachable server leaves L3 and the
	// distributed features degraded, never blocks startup.
	redisClient, err := redis.NewClient(&redis.Config{
		Address:  cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		PoolSize: cfg.RedisPoolSize,
	})
	if err != nil {
		logger.Error("failed to initialize redis client", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	l1 := memory.New(memory.Config{
		MaxEntries: cfg.L1MaxEntries,
		MaxBytes:   cfg.L1MaxBytes,
		DefaultTTL: cfg.L1DefaultTTL,
	})

	l2, err := disk.New(disk.Config{
		Directory:    cfg.L2Directory,
		MaxSizeBytes: cfg.L2MaxBytes,
		DefaultTTL:   cfg.L2DefaultTTL,
		Compression:  cfg.L2Compression,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize disk tier", err)
		os.Exit(1)
	}

	l3, err := remote.New(redisClient)
	if err != nil {
		logger.Error("failed to initialize remote tier", err)
		os.Exit(1)
	}

	locker, err := locks.New(redisClient, cfg.LockDefaultTimeout, logger)
	if err != nil {
		logger.Error("failed to initialize distributed locker", err)
		os.Exit(1)
	}

	orchestrator, err := cache.New(l1, l2, l3, locker, redisClient, cache.Config{
		DefaultL1TTL:    cfg.L1DefaultTTL,
		DefaultL2TTL:    cfg.L2DefaultTTL,
		DefaultL3TTL:    cfg.L3DefaultTTL,
		StatsFlushEvery: cfg.StatsFlushEvery,
		StatsKey:        cfg.KeyPrefix + ":cache:stats",
	}, logger)
	if err != nil {
		logger.Error("failed to initialize cache", err)
		os.Exit(1)
	}

	h := handlers.NewCacheHandler(orchestrator, keys.NewCodec(cfg.KeyPrefix), logger)

	router := mux.NewRouter()
	router.Use(middleware.Logging(logger))
	h.Routes(router)

	srv := server.New(router, cfg.Port)
	errCh := srv.Start()
	logger.Info("server started", logging.String("port", cfg.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Error("server failed", err)
	case sig := <-quit:
		logger.Info("shutting down", logging.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", err)
	}
	if err := orchestrator.Close(ctx); err != nil {
		logger.Warn("final stats flush failed", logging.Err(err))
	}

	logger.Info("server exited")
}
