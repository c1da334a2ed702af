package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tumbleweb-data/internal/blob"
	"tumbleweb-data/internal/config"
	"tumbleweb-data/internal/database"
	httpapi "tumbleweb-data/internal/http"
	"tumbleweb-data/internal/logging"
	"tumbleweb-data/internal/repository"
	"tumbleweb-data/internal/service"
	"tumbleweb-data/internal/store"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	logger, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Format, "tumbleweb-data")
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	blobs, err := blob.NewStore(cfg.DataDir)
	if err != nil {
		logger.Fatal("Failed to prepare payload directory", zap.String("dir", cfg.DataDir), zap.Error(err))
	}

	// Redis is optional: the latest-sample cache degrades to an in-process
	// map when it is disabled or unreachable.
	var kv store.KV = store.NewMemoryKV()
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err == nil {
			kv = store.NewRedisKV(redisClient)
			logger.Info("Redis enabled for tumbleweb-data")
		} else {
			logger.Warn("Redis enabled but unreachable, using in-memory cache", zap.Error(err))
			_ = redisClient.Close()
			redisClient = nil
		}
	}

	// Same fallback for the relational store: without a reachable database
	// the service runs on the in-memory repositories for local development.
	var db *sql.DB
	repos := repository.NewMemoryRepos()
	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(&cfg.Database); err == nil {
			db = d
			repos = repository.NewPostgresRepos(db, logger)
			logger.Info("DB enabled for tumbleweb-data")
		} else {
			logger.Warn("DB enabled but connection failed, using in-memory repositories", zap.Error(err))
		}
	}

	locks := service.NewAddressLocks()
	relay := service.NewRelayClient(time.Duration(cfg.RelayTimeoutSeconds)*time.Second, logger)

	topology := service.NewTopologyService(repos, logger)
	runs := service.NewRunService(repos, locks, logger)
	ingest := service.NewIngestService(repos, blobs, kv, locks, logger)
	commands := service.NewCommandService(repos, relay, logger)
	deletion := service.NewDeletionService(repos, blobs, logger)

	api := httpapi.NewAPI(topology, runs, ingest, commands, deletion, logger)
	router := httpapi.NewRouter(logger)
	router.RegisterRoutes(api)

	srv := service.NewServer(cfg.HTTP.Addr, router, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server exited", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	if redisClient != nil {
		_ = redisClient.Close()
	}
	_ = database.Close(db)
}
