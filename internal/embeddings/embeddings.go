// Package embeddings turns chunk text into dense vectors through the
// external embedding service, batching requests and bounding concurrency
// so the indexing worker never overruns the service's rate limit.
package embeddings

import (
	"context"
	"fmt"
	"time"

	"github.com/northbound/drive-chat/internal/apperr"
	"github.com/northbound/drive-chat/internal/logger"
	"github.com/northbound/drive-chat/internal/semaphore"
)

// Mode distinguishes document embeddings (stored at index time) from query
// embeddings (computed at retrieval time); many embedding models expect a
// different instruction prefix for each.
type Mode string

const (
	ModeDocument Mode = "document"
	ModeQuery    Mode = "query"
)

// Client is the raw external embedding service collaborator: one HTTP call
// in, one batch of vectors out. Implemented by *HTTPClient.
type Client interface {
	Embed(ctx context.Context, texts []string, mode Mode) ([][]float32, error)
	Dimension() int
}

// maxBatch caps how many texts are sent in a single request to the
// embedding service, matching the configured embedder_batch_size default.
const maxBatch = 50

const (
	maxRetries     = 3
	initialBackoff = 500 * time.Millisecond
)

// Embedder wraps a Client with batching, bounded concurrency, and retry.
// A single chunk failing permanently fails the whole job per the
// all-or-nothing batch contract; transient failures are retried with
// capped exponential backoff before being surfaced.
type Embedder struct {
	client  Client
	sem     *semaphore.Semaphore
	batch   int
}

// New wraps client with a semaphore-bounded batcher. sem may be nil, in
// which case calls run unbounded (useful in tests).
func New(client Client, sem *semaphore.Semaphore) *Embedder {
	return &Embedder{client: client, sem: sem, batch: maxBatch}
}

// Dimension returns the embedding vector width.
func (e *Embedder) Dimension() int {
	return e.client.Dimension()
}

// EmbedDocuments embeds texts in document mode, batching maxBatch at a
// time and running batches concurrently under the shared semaphore.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return e.embedBatched(ctx, texts, ModeDocument)
}

// EmbedQuery embeds a single query-mode text, unbatched.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.callWithRetry(ctx, []string{text}, ModeQuery)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *Embedder) embedBatched(ctx context.Context, texts []string, mode Mode) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	type batchResult struct {
		offset  int
		vectors [][]float32
		err     error
	}

	var batches [][]string
	var offsets []int
	for i := 0; i < len(texts); i += e.batch {
		end := i + e.batch
		if end > len(texts) {
			end = len(texts)
		}
		batches = append(batches, texts[i:end])
		offsets = append(offsets, i)
	}

	results := make(chan batchResult, len(batches))
	for i, b := range batches {
		go func(offset int, batch []string) {
			vectors, err := e.callWithRetry(ctx, batch, mode)
			results <- batchResult{offset: offset, vectors: vectors, err: err}
		}(offsets[i], b)
	}

	out := make([][]float32, len(texts))
	var firstErr error
	for range batches {
		res := <-results
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		copy(out[res.offset:res.offset+len(res.vectors)], res.vectors)
	}

	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func (e *Embedder) callWithRetry(ctx context.Context, texts []string, mode Mode) ([][]float32, error) {
	if e.sem != nil {
		if err := e.sem.Acquire(ctx); err != nil {
			return nil, fmt.Errorf("embeddings: acquire concurrency permit: %w", err)
		}
		defer e.sem.Release(context.Background())
	}

	backoff := initialBackoff
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		vectors, err := e.client.Embed(ctx, texts, mode)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		if !apperr.IsTransient(err) {
			return nil, err
		}
		if attempt == maxRetries {
			break
		}
		logger.Warnf("embeddings: transient failure (attempt %d/%d): %v", attempt+1, maxRetries, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("embeddings: exhausted retries: %w", lastErr)
}
