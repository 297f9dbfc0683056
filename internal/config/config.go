// Package config loads runtime settings once at process start and hands
// them to component constructors explicitly, rather than letting those
// components reach into global state.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds every setting shared across the indexer worker, the sync
// scheduler, and the chat entry point.
type Config struct {
	// Storage
	DatabaseURL string `mapstructure:"database_url"`

	// Redis backs the embedding/augmenter concurrency semaphores and the
	// indexing workers' wake-up queue.
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisDB       int    `mapstructure:"redis_db"`
	RedisPassword string `mapstructure:"redis_password"`

	// External service endpoints (spec.md §6 outbound contracts)
	EmbeddingServiceURL string `mapstructure:"embedding_service_url"`
	EmbeddingAPIKey     string `mapstructure:"embedding_api_key"`
	EmbeddingDimension  int    `mapstructure:"embedding_dimension"`
	OCRServiceURL       string `mapstructure:"ocr_service_url"`
	GeneratorServiceURL string `mapstructure:"generator_service_url"`
	GeneratorAPIKey     string `mapstructure:"generator_api_key"`
	RerankerServiceURL  string `mapstructure:"reranker_service_url"`
	DriveServiceURL     string `mapstructure:"drive_service_url"`

	// Indexing worker
	WorkerConcurrency          int  `mapstructure:"worker_concurrency"`
	EmbedderConcurrency        int  `mapstructure:"embedder_concurrency"`
	AugmenterConcurrency       int  `mapstructure:"augmenter_concurrency"`
	EmbedderBatchSize          int  `mapstructure:"embedder_batch_size"`
	MaxJobAttempts             int  `mapstructure:"max_job_attempts"`
	ContextualChunkingEnabled  bool `mapstructure:"contextual_chunking_enabled"`
	RerankEnabled              bool `mapstructure:"rerank_enabled"`

	// Chat loop
	MaxIterations int `mapstructure:"max_iterations"`

	// Synchronizer
	SyncInterval time.Duration `mapstructure:"sync_interval"`

	// Timeouts (spec.md §5)
	DriveTimeout     time.Duration `mapstructure:"drive_timeout"`
	OCRTimeout       time.Duration `mapstructure:"ocr_timeout"`
	EmbedderTimeout  time.Duration `mapstructure:"embedder_timeout"`
	GeneratorTimeout time.Duration `mapstructure:"generator_timeout"`
}

// Load reads configuration from environment variables (prefixed HIVECHAT_)
// and an optional config file, applying defaults for anything unset.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("database_url", "postgres://localhost:5432/drivechat?sslmode=disable")
	v.SetDefault("redis_addr", "127.0.0.1:6379")
	v.SetDefault("redis_db", 0)
	v.SetDefault("embedding_dimension", 768)
	v.SetDefault("worker_concurrency", 20)
	v.SetDefault("embedder_concurrency", 6)
	v.SetDefault("augmenter_concurrency", 5)
	v.SetDefault("embedder_batch_size", 50)
	v.SetDefault("max_job_attempts", 3)
	v.SetDefault("contextual_chunking_enabled", false)
	v.SetDefault("rerank_enabled", false)
	v.SetDefault("max_iterations", 3)
	v.SetDefault("sync_interval", "1h")
	v.SetDefault("drive_timeout", "30s")
	v.SetDefault("ocr_timeout", "60s")
	v.SetDefault("embedder_timeout", "30s")
	v.SetDefault("generator_timeout", "60s")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("HIVECHAT")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.MaxIterations > 10 {
		cfg.MaxIterations = 10
	}
	if cfg.MaxIterations < 1 {
		cfg.MaxIterations = 1
	}

	return &cfg, nil
}
