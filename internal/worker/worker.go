// Package worker runs the indexing pipeline: claim a queued job, fetch the
// file from the drive, extract, chunk, contextualize, embed, and persist.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/northbound/drive-chat/internal/augment"
	"github.com/northbound/drive-chat/internal/clients"
	"github.com/northbound/drive-chat/internal/embeddings"
	"github.com/northbound/drive-chat/internal/extract"
	"github.com/northbound/drive-chat/internal/logger"
	"github.com/northbound/drive-chat/internal/queue"
	"github.com/northbound/drive-chat/internal/storage"
)

// pollInterval is how long an idle worker waits before re-polling the
// indexing_jobs table when ClaimNextJob finds nothing to do.
const pollInterval = 2 * time.Second

// Pool runs workerCount goroutines pulling jobs from storage. wake is an
// optional queue.Queue used purely as a wake-up signal: internal/sync's
// Synchronizer enqueues an entry onto it whenever a reconcile pass has
// just filled the jobs table, so an idle worker can skip the rest of its
// pollInterval instead of discovering the new work late. The durable job
// record and its claim semantics live entirely in storage; wake carries
// no job data a worker actually acts on.
type Pool struct {
	store       *storage.Store
	drive       *clients.DriveClient
	ocr         extract.OCRClient
	embedder    *embeddings.Embedder
	augmenter   *augment.Augmenter
	wake        queue.Queue
	maxAttempts int

	wg sync.WaitGroup
}

// New builds a worker pool. augmenter and wake may be nil: augmenter nil
// disables contextual retrieval augmentation, wake nil falls back to
// pure polling at pollInterval.
func New(store *storage.Store, drive *clients.DriveClient, ocr extract.OCRClient, embedder *embeddings.Embedder, augmenter *augment.Augmenter, wake queue.Queue, maxAttempts int) *Pool {
	return &Pool{
		store:       store,
		drive:       drive,
		ocr:         ocr,
		embedder:    embedder,
		augmenter:   augmenter,
		wake:        wake,
		maxAttempts: maxAttempts,
	}
}

// Start launches workerCount goroutines and returns immediately. Call
// Wait to block until ctx is cancelled and every worker has exited.
func (p *Pool) Start(ctx context.Context, workerCount int) {
	logger.Infof("worker: starting pool workerCount=%d", workerCount)
	p.wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		id := i + 1
		go func() {
			defer p.wg.Done()
			p.loop(ctx, id)
		}()
	}
}

// Wait blocks until every worker goroutine started by Start has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) loop(ctx context.Context, id int) {
	logger.Infof("worker: %d started", id)
	for {
		select {
		case <-ctx.Done():
			logger.Infof("worker: %d stopping, context cancelled", id)
			return
		default:
		}

		job, err := p.store.ClaimNextJob(ctx)
		if err != nil {
			logger.Errorf("worker: %d claim error: %v", id, err)
			p.sleep(ctx, pollInterval)
			continue
		}
		if job == nil {
			p.sleep(ctx, pollInterval)
			continue
		}

		logger.Infof("worker: %d processing job=%s file=%s type=%s", id, job.ID, job.FileName, job.JobType)
		jobErr := p.processJob(ctx, job)
		if jobErr != nil {
			logger.Warnf("worker: %d job=%s failed: %v", id, job.ID, jobErr)
		}
		if err := p.store.CompleteJob(ctx, job.ID, p.maxAttempts, jobErr); err != nil {
			logger.Errorf("worker: %d complete job=%s error: %v", id, job.ID, err)
		}
	}
}

// sleep waits up to d for either cancellation or a wake-up notification,
// whichever comes first.
func (p *Pool) sleep(ctx context.Context, d time.Duration) {
	if p.wake == nil {
		select {
		case <-ctx.Done():
		case <-time.After(d):
		}
		return
	}

	woken := make(chan struct{}, 1)
	wakeCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	go func() {
		if _, err := p.wake.Dequeue(wakeCtx); err == nil {
			woken <- struct{}{}
		}
	}()

	select {
	case <-ctx.Done():
	case <-wakeCtx.Done():
	case <-woken:
	}
}
