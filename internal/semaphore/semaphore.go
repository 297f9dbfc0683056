// Package semaphore provides a Redis-backed counting semaphore so that the
// embedder and augmenter concurrency caps hold across every worker process
// sharing a Redis instance, not just within one process.
package semaphore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/northbound/drive-chat/internal/logger"
)

// Semaphore bounds concurrent external-service calls to capacity permits,
// represented as tokens sitting in a Redis list. Acquire blocks (via BLPOP)
// until a token is available or the context is cancelled; Release returns
// the token (via RPUSH) for the next waiter.
type Semaphore struct {
	client   *redis.Client
	key      string
	capacity int
}

// New creates a semaphore over key with the given capacity, seeding the
// list with capacity tokens the first time it sees this key (guarded by a
// SETNX marker so a restarted process doesn't over-seed the list).
func New(ctx context.Context, client *redis.Client, key string, capacity int) (*Semaphore, error) {
	s := &Semaphore{client: client, key: key, capacity: capacity}

	seededKey := key + ":seeded"
	ok, err := client.SetNX(ctx, seededKey, "1", 0).Result()
	if err != nil {
		return nil, fmt.Errorf("semaphore: seed guard for %s: %w", key, err)
	}
	if ok {
		pipe := client.Pipeline()
		for i := 0; i < capacity; i++ {
			pipe.RPush(ctx, key, "1")
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("semaphore: seed tokens for %s: %w", key, err)
		}
		logger.Debugf("semaphore: seeded %s with %d tokens", key, capacity)
	}

	return s, nil
}

// Acquire blocks until a permit is available or ctx is cancelled.
func (s *Semaphore) Acquire(ctx context.Context) error {
	type result struct {
		val []string
		err error
	}
	resultChan := make(chan result, 1)

	go func() {
		val, err := s.client.BLPop(ctx, 0, s.key).Result()
		resultChan <- result{val: val, err: err}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-resultChan:
		if res.err != nil {
			if res.err == redis.Nil {
				return ctx.Err()
			}
			return fmt.Errorf("semaphore: acquire %s: %w", s.key, res.err)
		}
		return nil
	}
}

// Release returns a permit to the pool.
func (s *Semaphore) Release(ctx context.Context) error {
	if err := s.client.RPush(ctx, s.key, "1").Err(); err != nil {
		return fmt.Errorf("semaphore: release %s: %w", s.key, err)
	}
	return nil
}
