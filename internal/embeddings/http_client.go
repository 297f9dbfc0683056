package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/northbound/drive-chat/internal/apperr"
)

// HTTPClient calls the external embedding service over plain HTTP/JSON,
// following the raw net/http request shape used for every outbound
// collaborator in this system rather than a model-specific SDK.
type HTTPClient struct {
	baseURL string
	apiKey  string
	dim     int
	client  *http.Client
}

// NewHTTPClient builds a client for the embedding service at baseURL.
// dim is the vector width the service is configured to return.
func NewHTTPClient(baseURL, apiKey string, dim int, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		dim:     dim,
		client:  &http.Client{Timeout: timeout},
	}
}

// Dimension returns the configured embedding width.
func (c *HTTPClient) Dimension() int {
	return c.dim
}

type embedRequest struct {
	Input []string `json:"input"`
	Mode  string   `json:"mode"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed sends one batch request to the embedding service and returns the
// vectors in the same order as texts. A non-2xx response in the 5xx range
// or a network error is wrapped as transient (retryable); 4xx responses
// are permanent.
func (c *HTTPClient) Embed(ctx context.Context, texts []string, mode Mode) ([][]float32, error) {
	payload := embedRequest{Input: texts, Mode: string(mode)}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("embeddings: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embeddings: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embeddings: request failed: %w: %w", err, apperr.ErrTransient)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embeddings: service error (status %d): %s: %w", resp.StatusCode, string(raw), apperr.ErrTransient)
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embeddings: rejected (status %d): %s: %w", resp.StatusCode, string(raw), apperr.ErrPermanent)
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("embeddings: decode response: %w", err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings: expected %d vectors, got %d: %w", len(texts), len(parsed.Data), apperr.ErrPermanent)
	}

	vectors := make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}
