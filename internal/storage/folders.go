package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/northbound/drive-chat/internal/apperr"
)

// RegisterFolder creates a new folder record, or returns the existing one
// if this tenant already registered driveFolderID (registration is
// idempotent).
func (s *Store) RegisterFolder(ctx context.Context, tenantID, driveFolderID, name string) (*Folder, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO folders (tenant_id, drive_folder_id, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, drive_folder_id) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, tenant_id, drive_folder_id, name, status, files_total, files_indexed, last_synced_at, last_error, created_at
	`, tenantID, driveFolderID, name)

	return scanFolder(row)
}

// GetFolder fetches a folder by id, scoped to tenantID.
func (s *Store) GetFolder(ctx context.Context, tenantID, folderID string) (*Folder, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, drive_folder_id, name, status, files_total, files_indexed, last_synced_at, last_error, created_at
		FROM folders WHERE id = $1 AND tenant_id = $2
	`, folderID, tenantID)

	f, err := scanFolder(row)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// DeleteFolder removes a folder and, via cascade, every file, chunk, job,
// conversation, and message scoped to it.
func (s *Store) DeleteFolder(ctx context.Context, tenantID, folderID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM folders WHERE id = $1 AND tenant_id = $2`, folderID, tenantID)
	if err != nil {
		return fmt.Errorf("storage: delete folder: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage: folder %s: %w", folderID, apperr.ErrNotFound)
	}
	return nil
}

// UpdateFolderStatus sets a folder's lifecycle status and optional error.
func (s *Store) UpdateFolderStatus(ctx context.Context, folderID string, status FolderStatus, lastError string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE folders SET status = $1, last_error = $2 WHERE id = $3`,
		status, nullIfEmpty(lastError), folderID,
	)
	if err != nil {
		return fmt.Errorf("storage: update folder status: %w", err)
	}
	return nil
}

// UpdateFolderProgress records the result of a sync pass: how many files
// the folder now contains and when the listing completed. files_indexed
// is not set here — it tracks files that have actually reached a
// terminal indexing outcome, which RecomputeFolderProgress derives from
// the files table itself as jobs complete.
func (s *Store) UpdateFolderProgress(ctx context.Context, folderID string, filesTotal int, syncedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE folders SET files_total = $1, last_synced_at = $2
		WHERE id = $3
	`, filesTotal, syncedAt, folderID)
	if err != nil {
		return fmt.Errorf("storage: update folder progress: %w", err)
	}
	return nil
}

// RecomputeFolderProgress recounts folderID's non-deleted files by
// indexing outcome and updates files_indexed. While any file remains
// pending or queued, the folder's status is left untouched (it stays
// whatever the synchronizer already set, normally indexing); once none
// remain outstanding the folder resolves to ready, or to error if any
// file failed. Called after every terminal job transition (worker.go,
// via CompleteJob) and after a sync pass that enqueued no jobs.
func (s *Store) RecomputeFolderProgress(ctx context.Context, folderID string) error {
	var indexed, failed, outstanding int
	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'indexed'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COUNT(*) FILTER (WHERE status IN ('pending', 'queued'))
		FROM files WHERE folder_id = $1 AND status != 'deleted'
	`, folderID).Scan(&indexed, &failed, &outstanding)
	if err != nil {
		return fmt.Errorf("storage: folder file progress: %w", err)
	}

	if _, err := s.pool.Exec(ctx, `UPDATE folders SET files_indexed = $1 WHERE id = $2`, indexed, folderID); err != nil {
		return fmt.Errorf("storage: update files indexed: %w", err)
	}

	if outstanding > 0 {
		return nil
	}

	status, lastError := FolderStatusReady, ""
	if failed > 0 {
		status = FolderStatusError
		lastError = fmt.Sprintf("%d file(s) failed to index", failed)
	}
	return s.UpdateFolderStatus(ctx, folderID, status, lastError)
}

// ListFoldersDue returns folders whose sync interval has elapsed, for the
// sync scheduler to pick up.
func (s *Store) ListFoldersDue(ctx context.Context, interval time.Duration) ([]*Folder, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, drive_folder_id, name, status, files_total, files_indexed, last_synced_at, last_error, created_at
		FROM folders
		WHERE status != $1 AND (last_synced_at IS NULL OR last_synced_at < now() - $2::interval)
		ORDER BY last_synced_at ASC NULLS FIRST
	`, FolderStatusDeleting, interval.String())
	if err != nil {
		return nil, fmt.Errorf("storage: list due folders: %w", err)
	}
	defer rows.Close()

	var folders []*Folder
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, err
		}
		folders = append(folders, f)
	}
	return folders, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFolder(row rowScanner) (*Folder, error) {
	var f Folder
	var lastError *string
	err := row.Scan(&f.ID, &f.TenantID, &f.DriveFolderID, &f.Name, &f.Status,
		&f.FilesTotal, &f.FilesIndexed, &f.LastSyncedAt, &lastError, &f.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("storage: folder: %w", apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: scan folder: %w", err)
	}
	if lastError != nil {
		f.LastError = *lastError
	}
	return &f, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
