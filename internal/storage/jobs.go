package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/northbound/drive-chat/internal/apperr"
)

// EnqueueJob creates a queued indexing job for fileID, or leaves the
// existing queued job for that (file, type) pair untouched — a file
// already waiting for reindex doesn't get a second queued job. A job of
// that pair already in processing does not block a new queued one.
func (s *Store) EnqueueJob(ctx context.Context, fileID, folderID, tenantID string, jobType JobType, priority int) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO indexing_jobs (file_id, folder_id, tenant_id, job_type, status, priority)
		VALUES ($1, $2, $3, $4, 'queued', $5)
		ON CONFLICT (file_id, job_type, status) DO NOTHING
	`, fileID, folderID, tenantID, jobType, priority)
	if err != nil {
		return fmt.Errorf("storage: enqueue job: %w", err)
	}
	return nil
}

// ClaimNextJob atomically claims the highest-priority, oldest-eligible
// queued job using SELECT ... FOR UPDATE SKIP LOCKED, so multiple worker
// processes can poll the same table without claiming the same job twice
// or blocking on each other's in-flight claims.
func (s *Store) ClaimNextJob(ctx context.Context) (*IndexingJob, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: begin claim: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		SELECT j.id, j.file_id, j.folder_id, j.tenant_id, j.job_type, j.status, j.attempts,
		       j.priority, j.last_error, j.next_run_at, j.created_at,
		       f.drive_file_id, f.name, f.mime_type
		FROM indexing_jobs j
		JOIN files f ON f.id = j.file_id
		WHERE j.status = 'queued' AND j.next_run_at <= now()
		ORDER BY j.priority DESC, j.created_at ASC
		FOR UPDATE OF j SKIP LOCKED
		LIMIT 1
	`)

	job, err := scanJob(row)
	if err != nil {
		if apperr.IsTransient(err) {
			return nil, nil
		}
		return nil, err
	}

	_, err = tx.Exec(ctx, `UPDATE indexing_jobs SET status = 'processing', updated_at = now() WHERE id = $1`, job.ID)
	if err != nil {
		return nil, fmt.Errorf("storage: mark job processing: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("storage: commit claim: %w", err)
	}
	return job, nil
}

// backoffBase and maxAttempts govern job retry scheduling: attempts grow
// the retry delay exponentially until maxAttempts is reached, at which
// point the job is marked permanently failed.
const backoffBase = 30 * time.Second

// CompleteJob marks a job done. On failure it either reschedules with
// exponential backoff (attempts < maxAttempts) or marks the job — and its
// file — permanently failed. Either terminal outcome (done, or
// permanently failed) recomputes its folder's progress and status, since
// that is the only point a file's contribution to the folder changes
// from outstanding to settled; a reschedule leaves the file outstanding
// and triggers no recompute.
func (s *Store) CompleteJob(ctx context.Context, jobID string, maxAttempts int, jobErr error) error {
	var attempts int
	var fileID, folderID string
	err := s.pool.QueryRow(ctx, `SELECT attempts, file_id, folder_id FROM indexing_jobs WHERE id = $1`, jobID).
		Scan(&attempts, &fileID, &folderID)
	if err != nil {
		if err == pgx.ErrNoRows {
			// A delete job's row cascades away the moment processJob
			// deletes the file row it references, before we get here.
			return nil
		}
		return fmt.Errorf("storage: load job: %w", err)
	}

	if jobErr == nil {
		if _, err := s.pool.Exec(ctx, `UPDATE indexing_jobs SET status = 'done', updated_at = now() WHERE id = $1`, jobID); err != nil {
			return fmt.Errorf("storage: complete job: %w", err)
		}
		return s.RecomputeFolderProgress(ctx, folderID)
	}

	attempts++

	if apperr.IsPermanent(jobErr) || attempts >= maxAttempts {
		_, err = s.pool.Exec(ctx, `
			UPDATE indexing_jobs SET status = 'failed', attempts = $1, last_error = $2, updated_at = now() WHERE id = $3
		`, attempts, jobErr.Error(), jobID)
		if err != nil {
			return fmt.Errorf("storage: fail job: %w", err)
		}
		if err := s.UpdateFileStatus(ctx, fileID, FileStatusFailed, jobErr.Error()); err != nil {
			return err
		}
		return s.RecomputeFolderProgress(ctx, folderID)
	}

	delay := backoffBase * time.Duration(1<<uint(attempts-1))
	_, err = s.pool.Exec(ctx, `
		UPDATE indexing_jobs
		SET status = 'queued', attempts = $1, last_error = $2, next_run_at = now() + $3::interval, updated_at = now()
		WHERE id = $4
	`, attempts, jobErr.Error(), delay.String(), jobID)
	if err != nil {
		return fmt.Errorf("storage: reschedule job: %w", err)
	}
	return nil
}

func scanJob(row pgx.Row) (*IndexingJob, error) {
	var j IndexingJob
	var lastError *string
	err := row.Scan(&j.ID, &j.FileID, &j.FolderID, &j.TenantID, &j.JobType, &j.Status, &j.Attempts,
		&j.Priority, &lastError, &j.NextRunAt, &j.CreatedAt, &j.DriveFileID, &j.FileName, &j.MimeType)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("storage: no job available: %w", apperr.ErrTransient)
		}
		return nil, fmt.Errorf("storage: scan job: %w", err)
	}
	if lastError != nil {
		j.LastError = *lastError
	}
	return &j, nil
}
