package analyzers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DeepfakeDetector scores WAV audio for synthetic speech.
type DeepfakeDetector interface {
	Detect(ctx context.Context, wav []byte) (float64, error)
}

// DeepfakeClient calls the synthetic speech detection service. The
// upstream splits the clip into segments and returns a per-segment
// verdict plus fake probabilities; the clip score is the mean
// probability across segments.
type DeepfakeClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type DeepfakeOption func(*DeepfakeClient)

func WithDeepfakeHTTPClient(c *http.Client) DeepfakeOption {
	return func(d *DeepfakeClient) { d.httpClient = c }
}

func NewDeepfakeClient(baseURL, apiKey string, opts ...DeepfakeOption) *DeepfakeClient {
	d := &DeepfakeClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type deepfakeResponse struct {
	Predictions       []string  `json:"predictions"`
	GlobalProbability []float64 `json:"global_probability"`
}

func (d *DeepfakeClient) Detect(ctx context.Context, wav []byte) (float64, error) {
	body, contentType, err := wavForm(wav, "recording.wav")
	if err != nil {
		return 0, fmt.Errorf("deepfake: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/predict", body)
	if err != nil {
		return 0, fmt.Errorf("deepfake: create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-api-key", d.apiKey)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("deepfake: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("deepfake: upstream status %d: %s", resp.StatusCode, snippet)
	}

	var out deepfakeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("deepfake: decode response: %w", err)
	}
	if len(out.Predictions) == 0 || len(out.GlobalProbability) == 0 {
		return 0, fmt.Errorf("deepfake: empty response")
	}

	var sum float64
	for _, p := range out.GlobalProbability {
		sum += p
	}
	return sum / float64(len(out.GlobalProbability)), nil
}
