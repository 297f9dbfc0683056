// Package augment prepends a short situating sentence to each chunk,
// generated from the surrounding document, so a chunk embedded and
// retrieved in isolation still carries the context a reader would get
// from seeing it in place.
package augment

import (
	"context"
	"sync"

	"github.com/northbound/drive-chat/internal/logger"
	"github.com/northbound/drive-chat/internal/model"
	"github.com/northbound/drive-chat/internal/semaphore"
)

// excerptLimit bounds how much of the surrounding document is sent to the
// generator alongside each chunk, keeping the prompt a fixed, small size
// regardless of file length.
const excerptLimit = 6000

// Client is the external generator collaborator used to produce the
// situating sentence. Implemented by *HTTPClient.
type Client interface {
	GenerateContext(ctx context.Context, fileName, excerpt, chunkText string) (string, error)
}

// Augmenter runs the contextual augmentation pass over a file's chunks.
// It is gated by enabled (contextual_chunking_enabled) and, when a chunk's
// generation call fails, falls back to the chunk's raw text rather than
// failing the whole indexing job.
type Augmenter struct {
	client  Client
	sem     *semaphore.Semaphore
	enabled bool
}

// New builds an Augmenter. sem may be nil to run unbounded (tests).
func New(client Client, sem *semaphore.Semaphore, enabled bool) *Augmenter {
	return &Augmenter{client: client, sem: sem, enabled: enabled}
}

// Augment returns, for each chunk, the text that should be sent to the
// embedder: the chunk's own text prefixed by a generated situating
// sentence, run concurrently under the shared semaphore. Chunks are never
// modified — the chunk text stored for display and full-text search stays
// whatever the caller passed in; only the returned slice carries the
// augmentation. When disabled, or when a single chunk's generation fails,
// that chunk's returned entry is just its original text.
func (a *Augmenter) Augment(ctx context.Context, fileName, fullText string, chunks []model.Chunk) []string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	if !a.enabled || len(chunks) == 0 {
		return texts
	}

	excerpt := fullText
	if len(excerpt) > excerptLimit {
		excerpt = excerpt[:excerptLimit]
	}

	var wg sync.WaitGroup
	for i := range chunks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			texts[i] = a.augmentOne(ctx, fileName, excerpt, chunks[i].Text)
		}(i)
	}
	wg.Wait()

	return texts
}

func (a *Augmenter) augmentOne(ctx context.Context, fileName, excerpt, chunkText string) string {
	if a.sem != nil {
		if err := a.sem.Acquire(ctx); err != nil {
			logger.Warnf("augment: acquire concurrency permit: %v", err)
			return chunkText
		}
		defer a.sem.Release(context.Background())
	}

	situating, err := a.client.GenerateContext(ctx, fileName, excerpt, chunkText)
	if err != nil {
		logger.Warnf("augment: context generation failed for %s, falling back to raw chunk: %v", fileName, err)
		return chunkText
	}
	if situating == "" {
		return chunkText
	}
	return situating + "\n\n" + chunkText
}
