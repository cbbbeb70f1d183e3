package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/callshield/callshield/pkg/gateway/config"
	"github.com/callshield/callshield/pkg/gateway/registry"
)

func testConfig() config.Config {
	return config.Config{
		Addr:               ":0",
		AuthMode:           config.AuthModeDisabled,
		SampleRate:         16000,
		MaxSessions:        10,
		SessionTimeout:     5 * time.Minute,
		ReceiveTimeout:     10 * time.Second,
		MaxCallerTimeouts:  3,
		GracePeriod:        30 * time.Second,
		MatchMinDuration:   time.Millisecond,
		MatchWindow:        10 * time.Second,
		FakeInterval:       5 * time.Second,
		FakeMinDuration:    time.Millisecond,
		SEInterval:         8 * time.Second,
		SEMinDuration:      time.Millisecond,
		AnalyzerTimeout:    5 * time.Second,
		MatchThreshold:     0.8,
		FakeThreshold:      0.2,
		MaxAudioFrameBytes: 65536,
	}
}

func testRegistry() *registry.Registry {
	return registry.New(registry.Config{MaxSessions: 10, SessionTimeout: 5 * time.Minute})
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Fatalf("Content-Type = %q", ct)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
}

func errorType(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	decodeJSON(t, rec, &envelope)
	return envelope.Error.Type
}

func pathRequest(method, target, id string) *http.Request {
	r := httptest.NewRequest(method, target, nil)
	r.SetPathValue("id", id)
	return r
}

var testCtx = context.Background()
