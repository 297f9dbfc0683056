// Package main runs the indexing worker pool: it claims queued indexing
// jobs, extracts text, chunks it, optionally augments and embeds it, and
// persists the result, per spec §4 end to end.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/northbound/drive-chat/internal/augment"
	"github.com/northbound/drive-chat/internal/clients"
	"github.com/northbound/drive-chat/internal/config"
	"github.com/northbound/drive-chat/internal/embeddings"
	"github.com/northbound/drive-chat/internal/logger"
	"github.com/northbound/drive-chat/internal/queue"
	"github.com/northbound/drive-chat/internal/semaphore"
	"github.com/northbound/drive-chat/internal/storage"
	"github.com/northbound/drive-chat/internal/worker"
)

var configPath = flag.String("config", "", "path to a YAML config file (optional, env vars override)")

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		logger.Infof("indexer-worker: no .env file found, using environment variables: %v", err)
	}

	if _, err := logger.Init("indexer-worker.log"); err != nil {
		logger.Warnf("indexer-worker: failed to initialize file logging: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Errorf("indexer-worker: load config: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(ctx, cfg.DatabaseURL, cfg.EmbeddingDimension)
	if err != nil {
		logger.Errorf("indexer-worker: connect storage: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	redisClient, err := config.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Errorf("indexer-worker: connect redis: %v", err)
		os.Exit(1)
	}

	embedderSem, err := semaphore.New(ctx, redisClient, "sem:embedder", cfg.EmbedderConcurrency)
	if err != nil {
		logger.Errorf("indexer-worker: build embedder semaphore: %v", err)
		os.Exit(1)
	}
	augmenterSem, err := semaphore.New(ctx, redisClient, "sem:augmenter", cfg.AugmenterConcurrency)
	if err != nil {
		logger.Errorf("indexer-worker: build augmenter semaphore: %v", err)
		os.Exit(1)
	}

	embedderHTTP := embeddings.NewHTTPClient(cfg.EmbeddingServiceURL, cfg.EmbeddingAPIKey, cfg.EmbeddingDimension, cfg.EmbedderTimeout)
	embedder := embeddings.New(embedderHTTP, embedderSem)

	augmenterHTTP := augment.NewHTTPClient(cfg.GeneratorServiceURL, cfg.GeneratorAPIKey, cfg.GeneratorTimeout)
	augmenter := augment.New(augmenterHTTP, augmenterSem, cfg.ContextualChunkingEnabled)

	driveClient := clients.NewDriveClient(cfg.DriveServiceURL, "", cfg.DriveTimeout)
	ocrClient := clients.NewOCRClient(cfg.OCRServiceURL, "", cfg.OCRTimeout)

	wake, err := queue.NewRedisQueue(redisClient, "indexing:wake")
	if err != nil {
		logger.Errorf("indexer-worker: build wake queue: %v", err)
		os.Exit(1)
	}

	pool := worker.New(store, driveClient, ocrClient, embedder, augmenter, wake, cfg.MaxJobAttempts)
	pool.Start(ctx, cfg.WorkerConcurrency)
	logger.Infof("indexer-worker: started %d workers", cfg.WorkerConcurrency)

	<-ctx.Done()
	logger.Infof("indexer-worker: shutdown signal received, draining")
	pool.Wait()
	logger.Infof("indexer-worker: stopped")
}
