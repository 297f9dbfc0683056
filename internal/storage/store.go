// Package storage is the single source of truth for folders, files,
// chunks, indexing jobs, conversations, and messages. It is backed by
// Postgres with the pgvector extension so that a chunk's embedding,
// its full-text tokens, and every relational constraint (tenant scoping,
// cascading deletes, job-claim uniqueness) live behind one transactional
// boundary instead of being split across a vector store and a relational
// store.
package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/northbound/drive-chat/internal/logger"
)

// Store is the shared handle every component uses to read and write
// persistent state.
type Store struct {
	pool      *pgxpool.Pool
	dimension int
}

// New connects to dsn and ensures the schema exists, sizing the chunk
// embedding column to dimension (the configured embedder's vector width).
func New(ctx context.Context, dsn string, dimension int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage: connect: %w", err)
	}

	s := &Store{pool: pool, dimension: dimension}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: ensure schema: %w", err)
	}

	logger.Infof("storage: connected, embedding dimension=%d", dimension)
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Pool exposes the underlying connection pool for packages (retrieve) that
// need to run a query this store doesn't itself model as a method.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *Store) ensureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS folders (
		id              UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		tenant_id       TEXT NOT NULL,
		drive_folder_id TEXT NOT NULL,
		name            TEXT NOT NULL,
		status          TEXT NOT NULL DEFAULT 'pending',
		files_total     INT NOT NULL DEFAULT 0,
		files_indexed   INT NOT NULL DEFAULT 0,
		last_synced_at  TIMESTAMPTZ,
		last_error      TEXT,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (tenant_id, drive_folder_id)
	);

	CREATE TABLE IF NOT EXISTS files (
		id             UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		folder_id      UUID NOT NULL REFERENCES folders(id) ON DELETE CASCADE,
		tenant_id      TEXT NOT NULL,
		drive_file_id  TEXT NOT NULL,
		name           TEXT NOT NULL,
		mime_type      TEXT NOT NULL,
		modified_time  TIMESTAMPTZ NOT NULL,
		status         TEXT NOT NULL DEFAULT 'pending',
		last_error     TEXT,
		deep_link      TEXT,
		preview        TEXT,
		embedding      vector(%d),
		preview_tsv    tsvector GENERATED ALWAYS AS (to_tsvector('english', coalesce(preview, ''))) STORED,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (folder_id, drive_file_id)
	);
	CREATE INDEX IF NOT EXISTS idx_files_folder ON files(folder_id);
	CREATE INDEX IF NOT EXISTS idx_files_tenant ON files(tenant_id);
	CREATE INDEX IF NOT EXISTS idx_files_preview_tsv ON files USING GIN(preview_tsv);

	CREATE TABLE IF NOT EXISTS chunks (
		id           UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		file_id      UUID NOT NULL REFERENCES files(id) ON DELETE CASCADE,
		folder_id    UUID NOT NULL REFERENCES folders(id) ON DELETE CASCADE,
		tenant_id    TEXT NOT NULL,
		chunk_index  INT NOT NULL,
		text         TEXT NOT NULL,
		location     JSONB NOT NULL,
		embedding    vector(%d),
		tsv          tsvector GENERATED ALWAYS AS (to_tsvector('english', text)) STORED,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_file ON chunks(file_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_folder ON chunks(folder_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_tsv ON chunks USING GIN(tsv);

	CREATE TABLE IF NOT EXISTS indexing_jobs (
		id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		file_id     UUID NOT NULL REFERENCES files(id) ON DELETE CASCADE,
		folder_id   UUID NOT NULL REFERENCES folders(id) ON DELETE CASCADE,
		tenant_id   TEXT NOT NULL,
		job_type    TEXT NOT NULL,
		status      TEXT NOT NULL DEFAULT 'queued',
		attempts    INT NOT NULL DEFAULT 0,
		priority    INT NOT NULL DEFAULT 0,
		last_error  TEXT,
		next_run_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (file_id, job_type, status)
	);
	CREATE INDEX IF NOT EXISTS idx_jobs_claim ON indexing_jobs(status, next_run_at, priority DESC);

	CREATE TABLE IF NOT EXISTS conversations (
		id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		folder_id  UUID NOT NULL REFERENCES folders(id) ON DELETE CASCADE,
		tenant_id  TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS messages (
		id              UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		role            TEXT NOT NULL,
		content         TEXT NOT NULL,
		citations       JSONB,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);

	CREATE TABLE IF NOT EXISTS audit_logs (
		id          BIGSERIAL PRIMARY KEY,
		tenant_id   TEXT NOT NULL,
		action      TEXT NOT NULL,
		resource_id TEXT,
		details     TEXT,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_tenant ON audit_logs(tenant_id, created_at DESC);
	`, s.dimension, s.dimension)

	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return err
	}

	return s.ensureVectorIndex(ctx)
}

// ensureVectorIndex creates the ivfflat index only when pg_indexes does
// not already list it, so the index is not rebuilt on every process
// start.
func (s *Store) ensureVectorIndex(ctx context.Context) error {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_chunks_embedding')`,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check vector index: %w", err)
	}
	if exists {
		return nil
	}

	_, err = s.pool.Exec(ctx,
		`CREATE INDEX idx_chunks_embedding ON chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`,
	)
	if err != nil {
		return fmt.Errorf("create vector index: %w", err)
	}
	return nil
}
