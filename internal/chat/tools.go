package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/northbound/drive-chat/internal/apperr"
	"github.com/northbound/drive-chat/internal/clients"
	"github.com/northbound/drive-chat/internal/retrieve"
	"github.com/northbound/drive-chat/internal/storage"
)

const maxToolContentLen = 500

var toolSchemas = []clients.ToolSpec{
	{
		Name:        "search_folder",
		Description: "Search the current folder's documents for chunks relevant to a query.",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"}},"required":["query"]}`),
	},
	{
		Name:        "get_file_chunks",
		Description: "Fetch every chunk of one file, in order, to widen context within that file.",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"file_id":{"type":"string"}},"required":["file_id"]}`),
	},
	{
		Name:        "get_file",
		Description: "Fetch a file's name, MIME type, and a short preview.",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"file_id":{"type":"string"}},"required":["file_id"]}`),
	},
	{
		Name:        "rewrite_query",
		Description: "Reformulate a search query given feedback about why the prior results were poor.",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"original_query":{"type":"string"},"feedback":{"type":"string"}},"required":["original_query","feedback"]}`),
	},
}

type searchFolderArgs struct {
	Query string `json:"query"`
}

type fileArgs struct {
	FileID string `json:"file_id"`
}

type rewriteQueryArgs struct {
	OriginalQuery string `json:"original_query"`
	Feedback      string `json:"feedback"`
}

type searchResult struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
	Content  string `json:"content"`
	Location any    `json:"location"`
	Score    float32 `json:"score"`
}

// dispatchTool runs one tool call and returns its JSON-encodable result.
// It also reports the file names the call touched (for the searched-files
// list) and the phase it ran under (for status events).
func (c *Chatter) dispatchTool(ctx context.Context, tc *clients.ToolCall) (result interface{}, phase Phase, touchedFiles []string, err error) {
	switch tc.Name {
	case "search_folder":
		var args searchFolderArgs
		if err := json.Unmarshal(tc.Arguments, &args); err != nil {
			return nil, PhaseSearching, nil, fmt.Errorf("chat: search_folder args: %w", apperr.ErrValidation)
		}
		return c.toolSearchFolder(ctx, args.Query)

	case "get_file_chunks":
		var args fileArgs
		if err := json.Unmarshal(tc.Arguments, &args); err != nil {
			return nil, PhaseReadingFile, nil, fmt.Errorf("chat: get_file_chunks args: %w", apperr.ErrValidation)
		}
		return c.toolGetFileChunks(ctx, args.FileID)

	case "get_file":
		var args fileArgs
		if err := json.Unmarshal(tc.Arguments, &args); err != nil {
			return nil, PhaseReadingFile, nil, fmt.Errorf("chat: get_file args: %w", apperr.ErrValidation)
		}
		return c.toolGetFile(ctx, args.FileID)

	case "rewrite_query":
		var args rewriteQueryArgs
		if err := json.Unmarshal(tc.Arguments, &args); err != nil {
			return nil, PhaseRewriting, nil, fmt.Errorf("chat: rewrite_query args: %w", apperr.ErrValidation)
		}
		return c.toolRewriteQuery(ctx, args.OriginalQuery, args.Feedback)

	default:
		return map[string]string{"error": "unknown tool"}, PhaseProcessing, nil, nil
	}
}

func (c *Chatter) toolSearchFolder(ctx context.Context, query string) (interface{}, Phase, []string, error) {
	results, err := c.retriever.Search(ctx, c.req.TenantID, c.req.FolderID, query, 10)
	if err != nil {
		return map[string]string{"error": "search failed"}, PhaseSearching, nil, nil
	}

	out := make([]searchResult, 0, len(results))
	files := make([]string, 0, len(results))
	seen := make(map[string]bool)
	for _, r := range results {
		out = append(out, searchResult{
			FileID:   r.FileID,
			FileName: r.FileName,
			Content:  truncate(r.Excerpt, maxToolContentLen),
			Location: r.Location,
			Score:    r.Score,
		})
		c.recordCitation(r)
		if !seen[r.FileName] {
			seen[r.FileName] = true
			files = append(files, r.FileName)
		}
	}
	return out, PhaseSearching, files, nil
}

// authorizeFile parses fileID as a UUID and loads it, returning
// apperr.ErrValidation for a malformed identifier (never touching
// storage) and apperr.ErrAccessDenied for a file outside the requested
// folder, so cross-folder probing and genuinely missing files look
// identical to the caller.
func (c *Chatter) authorizeFile(ctx context.Context, fileID string) (*fileInfo, error) {
	if _, err := uuid.Parse(fileID); err != nil {
		return nil, fmt.Errorf("chat: file id: %w", apperr.ErrValidation)
	}
	f, err := c.store.GetFile(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("chat: file: %w", apperr.ErrAccessDenied)
	}
	if f.FolderID != c.req.FolderID || f.TenantID != c.req.TenantID {
		return nil, fmt.Errorf("chat: file outside folder: %w", apperr.ErrAccessDenied)
	}
	return &fileInfo{ID: f.ID, Name: f.Name, MimeType: f.MimeType, Preview: f.Preview}, nil
}

type fileInfo struct {
	ID       string
	Name     string
	MimeType string
	Preview  string
}

func (c *Chatter) toolGetFileChunks(ctx context.Context, fileID string) (interface{}, Phase, []string, error) {
	info, err := c.authorizeFile(ctx, fileID)
	if err != nil {
		c.logDenied(ctx, fileID)
		return map[string]string{"error": "access denied"}, PhaseReadingFile, nil, nil
	}

	chunks, err := c.store.GetChunksByFile(ctx, fileID)
	if err != nil {
		return map[string]string{"error": "read failed"}, PhaseReadingFile, nil, nil
	}

	out := make([]searchResult, 0, len(chunks))
	for _, ch := range chunks {
		out = append(out, searchResult{FileID: ch.FileID, FileName: info.Name, Content: ch.Text, Location: ch.Location})
	}
	return out, PhaseReadingFile, []string{info.Name}, nil
}

func (c *Chatter) toolGetFile(ctx context.Context, fileID string) (interface{}, Phase, []string, error) {
	info, err := c.authorizeFile(ctx, fileID)
	if err != nil {
		c.logDenied(ctx, fileID)
		return map[string]string{"error": "access denied"}, PhaseReadingFile, nil, nil
	}

	preview := truncate(info.Preview, maxToolContentLen)
	return map[string]string{"file_name": info.Name, "mime_type": info.MimeType, "preview": preview}, PhaseReadingFile, []string{info.Name}, nil
}

func (c *Chatter) toolRewriteQuery(ctx context.Context, original, feedback string) (interface{}, Phase, []string, error) {
	messages := []clients.Message{
		{Role: "system", Content: "Rewrite the user's search query given feedback about why it performed poorly. Respond with only the rewritten query, no explanation."},
		{Role: "user", Content: fmt.Sprintf("Original query: %q\nFeedback: %s", original, feedback)},
	}

	events, err := c.generator.Stream(ctx, messages, nil)
	if err != nil {
		return map[string]string{"rewritten_query": original}, PhaseRewriting, nil, nil
	}

	var rewritten string
	for evt := range events {
		if evt.Kind == clients.StreamEventToken {
			rewritten += evt.Token
		}
	}
	rewritten = trimSpace(rewritten)
	if rewritten == "" {
		rewritten = original
	}
	return map[string]string{"rewritten_query": rewritten}, PhaseRewriting, nil, nil
}

func (c *Chatter) logDenied(ctx context.Context, fileID string) {
	_ = c.store.LogAudit(ctx, c.req.TenantID, storage.AuditActionAccessDenied, fileID, "chat tool cross-folder file access")
}

func (c *Chatter) recordCitation(r retrieve.Result) {
	for _, existing := range c.citationOrder {
		if existing == r.ChunkID {
			return
		}
	}
	c.citationOrder = append(c.citationOrder, r.ChunkID)
	c.citationsByChunk[r.ChunkID] = Citation{
		ChunkID:       r.ChunkID,
		FileID:        r.FileID,
		FileName:      r.FileName,
		Location:      r.Location,
		Excerpt:       truncate(r.Excerpt, 300),
		DriveDeepLink: r.DeepLink,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
