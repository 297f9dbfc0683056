package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/northbound/drive-chat/internal/logger"
)

// RedisQueue implements Queue as a Redis list: Enqueue RPUSHes, Dequeue
// blocks on BLPOP. It backs the indexing worker pool's wake-up signal
// (internal/worker), not a durable job record — a lost or duplicated
// entry on this queue costs an idle worker a few seconds of poll delay,
// nothing more.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue binds a RedisQueue to key, defaulting to "jobs:default"
// when key is empty, and verifies connectivity up front so a
// misconfigured Redis address fails at startup rather than on the first
// Enqueue or Dequeue call.
func NewRedisQueue(client *redis.Client, key string) (Queue, error) {
	if key == "" {
		key = "jobs:default"
	}
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("queue: ping redis: %w", err)
	}
	return &RedisQueue{client: client, key: key}, nil
}

// Enqueue serializes job and RPUSHes it onto the list.
func (r *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: marshal job: %w", err)
	}
	if err := r.client.RPush(ctx, r.key, data).Err(); err != nil {
		return fmt.Errorf("queue: rpush %s: %w", r.key, err)
	}
	return nil
}

// Dequeue blocks on BLPOP until a job arrives or ctx is cancelled. The
// blocking call runs in its own goroutine so ctx cancellation returns
// promptly instead of waiting out Redis's own timeout handling.
func (r *RedisQueue) Dequeue(ctx context.Context) (Job, error) {
	type popResult struct {
		val []string
		err error
	}
	done := make(chan popResult, 1)
	go func() {
		val, err := r.client.BLPop(ctx, 0, r.key).Result()
		done <- popResult{val: val, err: err}
	}()

	select {
	case <-ctx.Done():
		return Job{}, ctx.Err()
	case res := <-done:
		if res.err != nil {
			if res.err == redis.Nil {
				return Job{}, ctx.Err()
			}
			return Job{}, fmt.Errorf("queue: blpop %s: %w", r.key, res.err)
		}
		if len(res.val) < 2 {
			return Job{}, fmt.Errorf("queue: blpop %s: unexpected result shape", r.key)
		}

		var job Job
		if err := json.Unmarshal([]byte(res.val[1]), &job); err != nil {
			return Job{}, fmt.Errorf("queue: unmarshal job: %w", err)
		}
		logger.Debugf("queue: dequeued type=%s key=%s", job.Type, r.key)
		return job, nil
	}
}
