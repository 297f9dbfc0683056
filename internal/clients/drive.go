// Package clients holds the raw HTTP/JSON collaborators for every external
// service this system talks to: the drive (folder listing + file export),
// OCR, the generator, and the reranker. Every client follows the same
// request/response shape used throughout this codebase rather than a
// vendor SDK, since each of these is modeled as a plain HTTP contract.
package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/northbound/drive-chat/internal/apperr"
)

// DriveEntry is one file or folder returned by a drive listing.
type DriveEntry struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	MimeType     string    `json:"mime_type"`
	ModifiedTime time.Time `json:"modified_time"`
	Size         int64     `json:"size"`
	IsFolder     bool      `json:"is_folder"`
}

// DriveClient lists a folder's contents one page at a time (the caller
// follows the page token) and exports or downloads individual files.
type DriveClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewDriveClient builds a client for the drive service at baseURL.
func NewDriveClient(baseURL, apiKey string, timeout time.Duration) *DriveClient {
	return &DriveClient{baseURL: baseURL, apiKey: apiKey, client: &http.Client{Timeout: timeout}}
}

type listResponse struct {
	Entries       []DriveEntry `json:"entries"`
	NextPageToken string       `json:"next_page_token"`
}

// List returns one page of folderID's contents. An empty NextPageToken in
// the response means the caller has reached the last page.
func (c *DriveClient) List(ctx context.Context, folderID, pageToken string) ([]DriveEntry, string, error) {
	url := fmt.Sprintf("%s/folders/%s/list?page_token=%s", c.baseURL, folderID, pageToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("drive: build list request: %w", err)
	}
	c.authorize(req)

	var out listResponse
	if err := c.do(req, &out); err != nil {
		return nil, "", fmt.Errorf("drive: list %s: %w", folderID, err)
	}
	return out.Entries, out.NextPageToken, nil
}

// ExportNative exports a native (Docs/Sheets-style) file to a portable
// format, returning the exported bytes and the MIME type they were
// exported as.
func (c *DriveClient) ExportNative(ctx context.Context, fileID string) ([]byte, string, error) {
	url := fmt.Sprintf("%s/files/%s/export", c.baseURL, fileID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("drive: build export request: %w", err)
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("drive: export %s request failed: %w: %w", fileID, err, apperr.ErrTransient)
	}
	defer resp.Body.Close()

	if err := statusErr(resp); err != nil {
		return nil, "", fmt.Errorf("drive: export %s: %w", fileID, err)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("drive: read export body: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// Download fetches a non-native file's raw bytes.
func (c *DriveClient) Download(ctx context.Context, fileID string) ([]byte, error) {
	url := fmt.Sprintf("%s/files/%s/download", c.baseURL, fileID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("drive: build download request: %w", err)
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("drive: download %s request failed: %w: %w", fileID, err, apperr.ErrTransient)
	}
	defer resp.Body.Close()

	if err := statusErr(resp); err != nil {
		return nil, fmt.Errorf("drive: download %s: %w", fileID, err)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("drive: read download body: %w", err)
	}
	return data, nil
}

func (c *DriveClient) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func (c *DriveClient) do(req *http.Request, out interface{}) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w: %w", err, apperr.ErrTransient)
	}
	defer resp.Body.Close()

	if err := statusErr(resp); err != nil {
		return err
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// statusErr classifies a response by status code: 401/403 signal the
// caller needs to re-authenticate, 404 is a permanent not-found, 429 and
// 5xx are transient, and anything else 4xx is a permanent rejection.
func statusErr(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("reauthorization required (status %d): %s: %w", resp.StatusCode, string(raw), apperr.ErrAccessDenied)
	case resp.StatusCode == http.StatusNotFound:
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("not found (status %d): %s: %w", resp.StatusCode, string(raw), apperr.ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("service error (status %d): %s: %w", resp.StatusCode, string(raw), apperr.ErrTransient)
	default:
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("rejected (status %d): %s: %w", resp.StatusCode, string(raw), apperr.ErrPermanent)
	}
}
