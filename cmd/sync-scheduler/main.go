// Package main runs the background synchronizer: on a fixed tick it asks
// storage for every folder whose sync interval has elapsed and reconciles
// each one against its drive listing (spec §4.I).
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/northbound/drive-chat/internal/clients"
	"github.com/northbound/drive-chat/internal/config"
	"github.com/northbound/drive-chat/internal/logger"
	"github.com/northbound/drive-chat/internal/queue"
	"github.com/northbound/drive-chat/internal/storage"
	"github.com/northbound/drive-chat/internal/sync"
)

var configPath = flag.String("config", "", "path to a YAML config file (optional, env vars override)")

// tickInterval is how often the scheduler checks for due folders. It is
// deliberately finer-grained than SyncInterval so a folder becomes
// eligible shortly after crossing the threshold rather than waiting for
// the next multiple of SyncInterval.
const tickInterval = time.Minute

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		logger.Infof("sync-scheduler: no .env file found, using environment variables: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Errorf("sync-scheduler: load config: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(ctx, cfg.DatabaseURL, cfg.EmbeddingDimension)
	if err != nil {
		logger.Errorf("sync-scheduler: connect storage: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	redisClient, err := config.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Errorf("sync-scheduler: connect redis: %v", err)
		os.Exit(1)
	}
	wake, err := queue.NewRedisQueue(redisClient, "indexing:wake")
	if err != nil {
		logger.Errorf("sync-scheduler: build wake queue: %v", err)
		os.Exit(1)
	}

	driveClient := clients.NewDriveClient(cfg.DriveServiceURL, "", cfg.DriveTimeout)
	synchronizer := sync.New(store, driveClient, wake)

	logger.Infof("sync-scheduler: polling every %s for folders due past %s", tickInterval, cfg.SyncInterval)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	runDue(ctx, store, synchronizer, cfg.SyncInterval)
	for {
		select {
		case <-ctx.Done():
			logger.Infof("sync-scheduler: shutdown signal received")
			return
		case <-ticker.C:
			runDue(ctx, store, synchronizer, cfg.SyncInterval)
		}
	}
}

func runDue(ctx context.Context, store *storage.Store, synchronizer *sync.Synchronizer, interval time.Duration) {
	folders, err := store.ListFoldersDue(ctx, interval)
	if err != nil {
		logger.Errorf("sync-scheduler: list due folders: %v", err)
		return
	}

	for _, folder := range folders {
		result, err := synchronizer.Sync(ctx, folder.TenantID, folder.ID)
		if err != nil {
			logger.Errorf("sync-scheduler: sync folder %s failed: %v", folder.ID, err)
			continue
		}
		logger.Infof("sync-scheduler: folder %s synced (added=%d modified=%d deleted=%d)", folder.ID, result.Added, result.Modified, result.Deleted)
	}
}
