// Package sync reconciles a folder's stored file rows against the
// drive's current listing: new files are queued for indexing, modified
// files are re-queued after their stale chunks are dropped, and files no
// longer present remotely are removed.
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/northbound/drive-chat/internal/apperr"
	"github.com/northbound/drive-chat/internal/clients"
	"github.com/northbound/drive-chat/internal/logger"
	"github.com/northbound/drive-chat/internal/queue"
	"github.com/northbound/drive-chat/internal/storage"
)

// deepLinkFormat builds a browser-openable URL for a drive file, used as
// the citation target returned alongside chat answers. The drive service
// contract (spec §6) gives only ids, names, and mime types, not a
// pre-built link, so this mirrors the public drive web-view URL shape.
const deepLinkFormat = "https://drive.google.com/file/d/%s/view"

// indexJobPriority is the priority every synchronizer-enqueued job runs
// at; manually triggered re-indexes may later want a higher priority, but
// nothing in this system issues those yet.
const indexJobPriority = 0

const (
	rateLimitBackoffBase = 5 * time.Second
	rateLimitMaxRetries  = 5
)

// DriveLister is the subset of *clients.DriveClient the synchronizer
// needs.
type DriveLister interface {
	List(ctx context.Context, folderID, pageToken string) ([]clients.DriveEntry, string, error)
}

// Store is the subset of *storage.Store the synchronizer needs.
type Store interface {
	GetFolder(ctx context.Context, tenantID, folderID string) (*storage.Folder, error)
	ListFilesByFolder(ctx context.Context, folderID string) ([]*storage.File, error)
	UpsertFile(ctx context.Context, folderID, tenantID, driveFileID, name, mimeType string, modifiedTime time.Time, deepLink string) (*storage.File, error)
	DeleteChunksByFile(ctx context.Context, fileID string) error
	DeleteFile(ctx context.Context, fileID string) error
	EnqueueJob(ctx context.Context, fileID, folderID, tenantID string, jobType storage.JobType, priority int) error
	UpdateFolderProgress(ctx context.Context, folderID string, filesTotal int, syncedAt time.Time) error
	UpdateFolderStatus(ctx context.Context, folderID string, status storage.FolderStatus, lastError string) error
	RecomputeFolderProgress(ctx context.Context, folderID string) error
}

// Result summarizes one sync pass, returned to the caller of Sync folder
// (spec §6).
type Result struct {
	Added    int
	Modified int
	Deleted  int
}

// ErrReauthorizationRequired signals that the drive rejected the request
// with 401/403; the caller must prompt the tenant to reconnect the drive
// before syncing this folder again.
var ErrReauthorizationRequired = errors.New("sync: drive reauthorization required")

// Synchronizer runs folder reconciliation passes.
type Synchronizer struct {
	store Store
	drive DriveLister
	wake  queue.Queue
}

// New builds a Synchronizer. wake may be nil: a reconcile pass that
// enqueues jobs then just relies on the indexing workers' own poll
// interval to pick them up instead of waking them early.
func New(store Store, drive DriveLister, wake queue.Queue) *Synchronizer {
	return &Synchronizer{store: store, drive: drive, wake: wake}
}

// Sync reconciles folderID against its current drive listing per spec
// §4.I's algorithm, setting the folder to *syncing* while it runs. A pass
// that enqueues index jobs leaves the folder *indexing* — the terminal
// *ready*/*error* transition happens once every job those jobs spawned
// has actually completed (internal/storage.Store.RecomputeFolderProgress,
// driven by the worker pool). A pass that enqueues nothing resolves the
// folder's status immediately, since no later job completion will do it.
func (s *Synchronizer) Sync(ctx context.Context, tenantID, folderID string) (Result, error) {
	folder, err := s.store.GetFolder(ctx, tenantID, folderID)
	if err != nil {
		return Result{}, fmt.Errorf("sync: load folder: %w", err)
	}

	if err := s.store.UpdateFolderStatus(ctx, folderID, storage.FolderStatusSyncing, ""); err != nil {
		return Result{}, fmt.Errorf("sync: mark syncing: %w", err)
	}

	result, syncErr := s.reconcile(ctx, folder)
	if syncErr != nil {
		_ = s.store.UpdateFolderStatus(ctx, folderID, storage.FolderStatusError, syncErr.Error())
		return result, syncErr
	}

	if result.Added+result.Modified == 0 {
		if err := s.store.RecomputeFolderProgress(ctx, folderID); err != nil {
			return result, fmt.Errorf("sync: recompute progress: %w", err)
		}
		return result, nil
	}

	if err := s.store.UpdateFolderStatus(ctx, folderID, storage.FolderStatusIndexing, ""); err != nil {
		return result, fmt.Errorf("sync: mark indexing: %w", err)
	}

	if s.wake != nil {
		if err := s.wake.Enqueue(ctx, queue.Job{Type: "index-wake", CreatedAt: time.Now()}); err != nil {
			logger.Warnf("sync: wake enqueue for folder %s failed: %v", folderID, err)
		}
	}

	return result, nil
}

func (s *Synchronizer) reconcile(ctx context.Context, folder *storage.Folder) (Result, error) {
	remote, err := s.listAll(ctx, folder.DriveFolderID)
	if err != nil {
		return Result{}, err
	}

	existing, err := s.store.ListFilesByFolder(ctx, folder.ID)
	if err != nil {
		return Result{}, fmt.Errorf("sync: list stored files: %w", err)
	}
	byDriveID := make(map[string]*storage.File, len(existing))
	for _, f := range existing {
		byDriveID[f.DriveFileID] = f
	}

	var result Result
	seen := make(map[string]bool, len(remote))

	for _, entry := range remote {
		if entry.IsFolder {
			continue
		}
		seen[entry.ID] = true
		deepLink := fmt.Sprintf(deepLinkFormat, entry.ID)

		current, known := byDriveID[entry.ID]
		switch {
		case !known:
			file, err := s.store.UpsertFile(ctx, folder.ID, folder.TenantID, entry.ID, entry.Name, entry.MimeType, entry.ModifiedTime, deepLink)
			if err != nil {
				return result, fmt.Errorf("sync: insert file %s: %w", entry.Name, err)
			}
			if err := s.store.EnqueueJob(ctx, file.ID, folder.ID, folder.TenantID, storage.JobTypeIndex, indexJobPriority); err != nil {
				return result, fmt.Errorf("sync: enqueue index job for %s: %w", entry.Name, err)
			}
			result.Added++

		case entry.ModifiedTime.After(current.ModifiedTime):
			file, err := s.store.UpsertFile(ctx, folder.ID, folder.TenantID, entry.ID, entry.Name, entry.MimeType, entry.ModifiedTime, deepLink)
			if err != nil {
				return result, fmt.Errorf("sync: update file %s: %w", entry.Name, err)
			}
			if err := s.store.DeleteChunksByFile(ctx, file.ID); err != nil {
				return result, fmt.Errorf("sync: invalidate chunks for %s: %w", entry.Name, err)
			}
			if err := s.store.EnqueueJob(ctx, file.ID, folder.ID, folder.TenantID, storage.JobTypeIndex, indexJobPriority); err != nil {
				return result, fmt.Errorf("sync: enqueue reindex job for %s: %w", entry.Name, err)
			}
			result.Modified++
		}
	}

	for _, f := range existing {
		if !seen[f.DriveFileID] {
			if err := s.store.DeleteFile(ctx, f.ID); err != nil {
				return result, fmt.Errorf("sync: delete file %s: %w", f.Name, err)
			}
			result.Deleted++
		}
	}

	filesTotal := countFiles(remote)
	if err := s.store.UpdateFolderProgress(ctx, folder.ID, filesTotal, time.Now()); err != nil {
		return result, fmt.Errorf("sync: update progress: %w", err)
	}

	return result, nil
}

// listAll pages through the drive's listing until the response carries no
// next-page token, retrying rate-limited pages with exponential backoff.
func (s *Synchronizer) listAll(ctx context.Context, driveFolderID string) ([]clients.DriveEntry, error) {
	var all []clients.DriveEntry
	pageToken := ""

	for {
		entries, next, err := s.listPageWithRetry(ctx, driveFolderID, pageToken)
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
		if next == "" {
			return all, nil
		}
		pageToken = next
	}
}

func (s *Synchronizer) listPageWithRetry(ctx context.Context, driveFolderID, pageToken string) ([]clients.DriveEntry, string, error) {
	var lastErr error
	for attempt := 0; attempt <= rateLimitMaxRetries; attempt++ {
		entries, next, err := s.drive.List(ctx, driveFolderID, pageToken)
		if err == nil {
			return entries, next, nil
		}
		lastErr = err

		if errors.Is(err, apperr.ErrAccessDenied) {
			return nil, "", fmt.Errorf("%w: %v", ErrReauthorizationRequired, err)
		}
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, "", fmt.Errorf("sync: folder not found on drive: %w", apperr.ErrPermanent)
		}
		if !errors.Is(err, apperr.ErrTransient) {
			return nil, "", err
		}

		delay := rateLimitBackoffBase * time.Duration(1<<uint(attempt))
		select {
		case <-ctx.Done():
			return nil, "", ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, "", fmt.Errorf("sync: list exhausted retries: %w", lastErr)
}

func countFiles(entries []clients.DriveEntry) int {
	n := 0
	for _, e := range entries {
		if !e.IsFolder {
			n++
		}
	}
	return n
}

