package analyzers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Transcriber converts WAV audio to text.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

// ASRClient calls the speech-to-text service.
type ASRClient struct {
	baseURL    string
	apiKey     string
	language   string
	httpClient *http.Client
}

type ASROption func(*ASRClient)

func WithASRHTTPClient(c *http.Client) ASROption {
	return func(a *ASRClient) { a.httpClient = c }
}

func WithASRLanguage(lang string) ASROption {
	return func(a *ASRClient) { a.language = lang }
}

func NewASRClient(baseURL, apiKey string, opts ...ASROption) *ASRClient {
	a := &ASRClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		language:   "en",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type asrResponse struct {
	Text string `json:"text"`
}

func (a *ASRClient) Transcribe(ctx context.Context, wav []byte) (string, error) {
	body, contentType, err := wavForm(wav, "audio.wav")
	if err != nil {
		return "", fmt.Errorf("asr: %w", err)
	}

	url := a.baseURL + "/v1/asr"
	if a.language != "" {
		url += "?language=" + a.language
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return "", fmt.Errorf("asr: create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("asr: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("asr: upstream status %d: %s", resp.StatusCode, snippet)
	}

	var out asrResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("asr: decode response: %w", err)
	}
	return out.Text, nil
}
