package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/northbound/drive-chat/internal/model"
)

// ChunkInput is one chunk ready to be persisted, already embedded.
type ChunkInput struct {
	Text      string
	Location  model.Location
	Vector    []float32
}

// chunkInsertColumns is the column list shared by ReplaceChunks' generated
// multi-row INSERT.
const chunkInsertColumns = "file_id, folder_id, tenant_id, chunk_index, text, location, embedding"

// ReplaceChunks atomically deletes every existing chunk for fileID and
// inserts chunks in its place, so a re-indexed file never briefly holds a
// mix of old and new chunks and a failed insert never leaves the file
// with partial chunks from two different versions. The new batch is sent
// as a single multi-row INSERT rather than one statement per chunk, so a
// large file doesn't pay one round trip per chunk. An empty batch is a
// valid replacement (a file with zero extracted chunks) and only runs
// the delete.
func (s *Store) ReplaceChunks(ctx context.Context, fileID, folderID, tenantID string, chunks []ChunkInput) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin replace chunks: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE file_id = $1`, fileID); err != nil {
		return fmt.Errorf("storage: delete existing chunks: %w", err)
	}

	if len(chunks) > 0 {
		var sql strings.Builder
		sql.WriteString("INSERT INTO chunks (" + chunkInsertColumns + ") VALUES ")
		args := make([]interface{}, 0, len(chunks)*7)

		for i, c := range chunks {
			loc, err := json.Marshal(c.Location)
			if err != nil {
				return fmt.Errorf("storage: marshal chunk location: %w", err)
			}
			if i > 0 {
				sql.WriteString(", ")
			}
			base := i * 7
			fmt.Fprintf(&sql, "($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
				base+1, base+2, base+3, base+4, base+5, base+6, base+7)
			args = append(args, fileID, folderID, tenantID, i, c.Text, loc, pgvector.NewVector(c.Vector))
		}

		if _, err := tx.Exec(ctx, sql.String(), args...); err != nil {
			return fmt.Errorf("storage: batch insert chunks: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage: commit replace chunks: %w", err)
	}
	return nil
}

// DeleteChunksByFile removes every chunk belonging to fileID without
// touching the file row itself, used when a sync pass detects a modified
// file and needs to invalidate its old chunks ahead of re-indexing.
func (s *Store) DeleteChunksByFile(ctx context.Context, fileID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM chunks WHERE file_id = $1`, fileID)
	if err != nil {
		return fmt.Errorf("storage: delete chunks by file: %w", err)
	}
	return nil
}

// ChunkRow is one stored chunk as returned to the retriever or chat tools.
type ChunkRow struct {
	ID         string
	FileID     string
	FolderID   string
	ChunkIndex int
	Text       string
	Location   model.Location
}

// GetChunksByFile returns every chunk belonging to fileID in chunk_index
// order, for the get_file_chunks chat tool and full-file reconstruction.
func (s *Store) GetChunksByFile(ctx context.Context, fileID string) ([]ChunkRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, file_id, folder_id, chunk_index, text, location
		FROM chunks WHERE file_id = $1 ORDER BY chunk_index ASC
	`, fileID)
	if err != nil {
		return nil, fmt.Errorf("storage: get chunks by file: %w", err)
	}
	defer rows.Close()

	return scanChunkRows(rows)
}

// GetChunksByIDs fetches chunks by id, used to resolve citation targets.
func (s *Store) GetChunksByIDs(ctx context.Context, ids []string) ([]ChunkRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, file_id, folder_id, chunk_index, text, location
		FROM chunks WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("storage: get chunks by ids: %w", err)
	}
	defer rows.Close()

	return scanChunkRows(rows)
}

func scanChunkRows(rows pgx.Rows) ([]ChunkRow, error) {
	var out []ChunkRow
	for rows.Next() {
		var c ChunkRow
		var loc []byte
		if err := rows.Scan(&c.ID, &c.FileID, &c.FolderID, &c.ChunkIndex, &c.Text, &loc); err != nil {
			return nil, fmt.Errorf("storage: scan chunk: %w", err)
		}
		if err := json.Unmarshal(loc, &c.Location); err != nil {
			return nil, fmt.Errorf("storage: unmarshal chunk location: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
