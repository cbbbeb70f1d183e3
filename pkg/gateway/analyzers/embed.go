// Package analyzers holds the three passive analysis pipelines that run
// against caller audio during a call: speaker verification, synthetic
// speech detection, and social engineering detection. Each pipeline
// wraps its upstream service behind a small client so handlers and the
// ingest loop depend on interfaces, not HTTP details.
package analyzers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Embedder extracts a speaker embedding from WAV audio.
type Embedder interface {
	Embed(ctx context.Context, wav []byte) ([]float64, error)
}

// EmbedClient calls the speaker embedding service.
type EmbedClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type EmbedOption func(*EmbedClient)

func WithEmbedHTTPClient(c *http.Client) EmbedOption {
	return func(e *EmbedClient) { e.httpClient = c }
}

func NewEmbedClient(baseURL, apiKey string, opts ...EmbedOption) *EmbedClient {
	e := &EmbedClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

func (e *EmbedClient) Embed(ctx context.Context, wav []byte) ([]float64, error) {
	body, contentType, err := wavForm(wav, "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embed", body)
	if err != nil {
		return nil, fmt.Errorf("embed: create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if e.apiKey != "" {
		req.Header.Set("X-API-Key", e.apiKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embed: upstream status %d: %s", resp.StatusCode, snippet)
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("embed: decode response: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("embed: empty embedding in response")
	}
	return out.Embedding, nil
}
