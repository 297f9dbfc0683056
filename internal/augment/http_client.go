package augment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/northbound/drive-chat/internal/apperr"
)

// HTTPClient asks the generator service for a one- or two-sentence
// situating statement for a chunk, following the same raw JSON
// chat-completion shape used for chat generation.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient builds a client against the generator service at baseURL.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

const situatingSystemPrompt = "You are a helpful assistant that gives concise, one- or two-sentence context " +
	"that situates a chunk within the overall document for the purpose of improving search retrieval of the chunk."

// GenerateContext asks the generator for a short situating sentence for
// chunkText given the document excerpt it was drawn from.
func (c *HTTPClient) GenerateContext(ctx context.Context, fileName, excerpt, chunkText string) (string, error) {
	userPrompt := fmt.Sprintf(
		"<document name=\"%s\">\n%s\n</document>\nHere is the chunk we want to situate within the whole document:\n<chunk>\n%s\n</chunk>\nGive a short succinct context to situate this chunk within the overall document for search retrieval purposes. Answer only with the context.",
		fileName, excerpt, chunkText,
	)

	payload := map[string]interface{}{
		"messages": []map[string]string{
			{"role": "system", "content": situatingSystemPrompt},
			{"role": "user", "content": userPrompt},
		},
		"max_tokens":  200,
		"temperature": 0.0,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("augment: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("augment: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("augment: request failed: %w: %w", err, apperr.ErrTransient)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("augment: service error (status %d): %s: %w", resp.StatusCode, string(raw), apperr.ErrTransient)
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("augment: rejected (status %d): %s: %w", resp.StatusCode, string(raw), apperr.ErrPermanent)
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("augment: decode response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("augment: no choices returned: %w", apperr.ErrPermanent)
	}

	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}
