package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/northbound/drive-chat/internal/apperr"
	"github.com/northbound/drive-chat/internal/extract"
)

// OCRClient implements extract.OCRClient against the remote OCR service,
// posting the raw file bytes as multipart form data and getting back
// recognized text per page.
type OCRClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewOCRClient builds a client for the OCR service at baseURL.
func NewOCRClient(baseURL, apiKey string, timeout time.Duration) *OCRClient {
	return &OCRClient{baseURL: baseURL, apiKey: apiKey, client: &http.Client{Timeout: timeout}}
}

type ocrResponse struct {
	Pages []extract.OCRPage `json:"pages"`
}

// OCR sends data (and its declared mime) to the OCR service and returns
// recognized text per page.
func (c *OCRClient) OCR(ctx context.Context, data []byte, mime string) ([]extract.OCRPage, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", "document")
	if err != nil {
		return nil, fmt.Errorf("ocr: build multipart body: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("ocr: write multipart body: %w", err)
	}
	if err := w.WriteField("mime_type", mime); err != nil {
		return nil, fmt.Errorf("ocr: write mime field: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("ocr: close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ocr", &body)
	if err != nil {
		return nil, fmt.Errorf("ocr: build request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ocr: request failed: %w: %w", err, apperr.ErrTransient)
	}
	defer resp.Body.Close()

	if err := statusErr(resp); err != nil {
		return nil, fmt.Errorf("ocr: %w", err)
	}

	var parsed ocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("ocr: decode response: %w", err)
	}
	return parsed.Pages, nil
}
