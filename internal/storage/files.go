package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/northbound/drive-chat/internal/apperr"
)

// UpsertFile records or updates one file within a folder, keyed on
// (folder_id, drive_file_id). Called by the folder synchronizer when it
// sees a new or modified file in a drive listing.
func (s *Store) UpsertFile(ctx context.Context, folderID, tenantID, driveFileID, name, mimeType string, modifiedTime time.Time, deepLink string) (*File, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO files (folder_id, tenant_id, drive_file_id, name, mime_type, modified_time, deep_link, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending')
		ON CONFLICT (folder_id, drive_file_id) DO UPDATE
			SET name = EXCLUDED.name, mime_type = EXCLUDED.mime_type,
			    modified_time = EXCLUDED.modified_time, deep_link = EXCLUDED.deep_link,
			    status = 'pending', preview = NULL, embedding = NULL, updated_at = now()
		RETURNING id, folder_id, tenant_id, drive_file_id, name, mime_type, modified_time, status, last_error, deep_link, preview, created_at, updated_at
	`, folderID, tenantID, driveFileID, name, mimeType, modifiedTime, deepLink)

	return scanFile(row)
}

// GetFile fetches a single file by id, used by the chat tool loop to
// resolve get_file/get_file_chunks requests and check folder ownership
// before returning any content.
func (s *Store) GetFile(ctx context.Context, fileID string) (*File, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, folder_id, tenant_id, drive_file_id, name, mime_type, modified_time, status, last_error, deep_link, preview, created_at, updated_at
		FROM files WHERE id = $1
	`, fileID)
	return scanFile(row)
}

// ListFilesByFolder returns every file currently tracked under folderID.
func (s *Store) ListFilesByFolder(ctx context.Context, folderID string) ([]*File, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, folder_id, tenant_id, drive_file_id, name, mime_type, modified_time, status, last_error, deep_link, preview, created_at, updated_at
		FROM files WHERE folder_id = $1 AND status != 'deleted'
	`, folderID)
	if err != nil {
		return nil, fmt.Errorf("storage: list files: %w", err)
	}
	defer rows.Close()

	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// MarkFileDeleted tombstones a file by setting its status to deleted. The
// row and its chunks stay in place; they are removed only when DeleteFile
// deletes the row and the chunks follow by cascade.
func (s *Store) MarkFileDeleted(ctx context.Context, fileID string) error {
	_, err := s.pool.Exec(ctx, `UPDATE files SET status = 'deleted', updated_at = now() WHERE id = $1`, fileID)
	if err != nil {
		return fmt.Errorf("storage: mark file deleted: %w", err)
	}
	return nil
}

// DeleteFile removes a file row outright, cascading to its chunks.
func (s *Store) DeleteFile(ctx context.Context, fileID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM files WHERE id = $1`, fileID)
	if err != nil {
		return fmt.Errorf("storage: delete file: %w", err)
	}
	return nil
}

// UpdateFileStatus sets a file's indexing status and optional error.
func (s *Store) UpdateFileStatus(ctx context.Context, fileID string, status FileStatus, lastError string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE files SET status = $1, last_error = $2, updated_at = now() WHERE id = $3`,
		status, nullIfEmpty(lastError), fileID,
	)
	if err != nil {
		return fmt.Errorf("storage: update file status: %w", err)
	}
	return nil
}

// UpdateFileIndexed marks fileID completed and stores the preview and
// file-level embedding computed by the worker. embedding may be nil for
// an empty file, in which case the column is left null. preview may be
// the empty string.
func (s *Store) UpdateFileIndexed(ctx context.Context, fileID, preview string, embedding []float32) error {
	var vec interface{}
	if embedding != nil {
		vec = pgvector.NewVector(embedding)
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE files SET status = 'indexed', last_error = NULL, preview = $1, embedding = $2, updated_at = now()
		WHERE id = $3
	`, preview, vec, fileID)
	if err != nil {
		return fmt.Errorf("storage: update file indexed: %w", err)
	}
	return nil
}

func scanFile(row rowScanner) (*File, error) {
	var f File
	var lastError *string
	var preview *string
	err := row.Scan(&f.ID, &f.FolderID, &f.TenantID, &f.DriveFileID, &f.Name, &f.MimeType,
		&f.ModifiedTime, &f.Status, &lastError, &f.DeepLink, &preview, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("storage: file: %w", apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: scan file: %w", err)
	}
	if lastError != nil {
		f.LastError = *lastError
	}
	if preview != nil {
		f.Preview = *preview
	}
	return &f, nil
}
