package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/northbound/drive-chat/internal/apperr"
)

// RerankedResult is one candidate's position and score after reranking.
type RerankedResult struct {
	Index int     `json:"index"`
	Score float32 `json:"score"`
}

// RerankerClient asks the reranker service to score a query against a
// pool of candidate texts and returns them ordered best-first.
type RerankerClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewRerankerClient builds a client for the reranker service at baseURL.
func NewRerankerClient(baseURL, apiKey string, timeout time.Duration) *RerankerClient {
	return &RerankerClient{baseURL: baseURL, apiKey: apiKey, client: &http.Client{Timeout: timeout}}
}

type rerankRequest struct {
	Query      string   `json:"query"`
	Candidates []string `json:"candidates"`
}

type rerankResponse struct {
	Results []RerankedResult `json:"results"`
}

// Rerank scores candidates against query and returns results ordered
// best-first; Index refers back into the candidates slice.
func (c *RerankerClient) Rerank(ctx context.Context, query string, candidates []string) ([]RerankedResult, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	payload := rerankRequest{Query: query, Candidates: candidates}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("reranker: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("reranker: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reranker: request failed: %w: %w", err, apperr.ErrTransient)
	}
	defer resp.Body.Close()

	if err := statusErr(resp); err != nil {
		return nil, fmt.Errorf("reranker: %w", err)
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("reranker: decode response: %w", err)
	}
	return parsed.Results, nil
}
