package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/callshield/callshield/pkg/core/audio"
	"github.com/callshield/callshield/pkg/core/risk"
	"github.com/callshield/callshield/pkg/core/script"
	"github.com/callshield/callshield/pkg/gateway/lifecycle"
	"github.com/callshield/callshield/pkg/gateway/registry"
)

func TestCreateSession(t *testing.T) {
	reg := testRegistry()
	timeline := script.Default()
	h := CreateSessionHandler{Registry: reg, Timeline: timeline, Lifecycle: &lifecycle.Lifecycle{}}

	body := strings.NewReader(`{"user_id":"user-1"}`)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/sessions", body))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}
	var resp createSessionResponse
	decodeJSON(t, rec, &resp)
	if resp.SessionID == "" {
		t.Fatal("session_id is empty")
	}
	if resp.AgentGreeting != timeline.Segment(0).Text {
		t.Fatalf("agent_greeting = %q", resp.AgentGreeting)
	}
	if v, ok := reg.Get(resp.SessionID); !ok || v.UserID != "user-1" {
		t.Fatalf("session not registered: %+v ok=%v", v, ok)
	}
}

func TestCreateSessionMissingUserID(t *testing.T) {
	h := CreateSessionHandler{Registry: testRegistry(), Timeline: script.Default(), Lifecycle: &lifecycle.Lifecycle{}}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/sessions", strings.NewReader(`{}`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if typ := errorType(t, rec); typ != "invalid_request_error" {
		t.Fatalf("error type = %q", typ)
	}
}

func TestCreateSessionCapacity(t *testing.T) {
	reg := registry.New(registry.Config{MaxSessions: 1, SessionTimeout: time.Hour})
	if _, err := reg.Create("existing"); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	h := CreateSessionHandler{Registry: reg, Timeline: script.Default(), Lifecycle: &lifecycle.Lifecycle{}}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/sessions", strings.NewReader(`{"user_id":"user-2"}`)))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if typ := errorType(t, rec); typ != "capacity_error" {
		t.Fatalf("error type = %q", typ)
	}
}

func TestCreateSessionDraining(t *testing.T) {
	lc := &lifecycle.Lifecycle{}
	lc.SetDraining(true)
	h := CreateSessionHandler{Registry: testRegistry(), Timeline: script.Default(), Lifecycle: lc}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/sessions", strings.NewReader(`{"user_id":"user-1"}`)))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestRiskInitial(t *testing.T) {
	reg := testRegistry()
	v, err := reg.Create("user-1")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	h := RiskHandler{Registry: reg, Engine: risk.NewEngine()}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, pathRequest(http.MethodGet, "/v1/sessions/"+v.ID+"/risk", v.ID))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp riskResponse
	decodeJSON(t, rec, &resp)
	if resp.Status != "INITIAL" {
		t.Fatalf("status = %q, want INITIAL", resp.Status)
	}
}

func TestRiskWithScores(t *testing.T) {
	reg := testRegistry()
	v, err := reg.Create("user-1")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	reg.AppendMatchScore(v.ID, 0.9)
	reg.AppendMatchScore(v.ID, 0.9)
	reg.AppendFakeScore(v.ID, 0.1)
	reg.AppendSEResult(v.ID, registry.SEResult{RiskScore: 10, RiskLevel: "SAFE"})

	h := RiskHandler{Registry: reg, Engine: risk.NewEngine()}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, pathRequest(http.MethodGet, "/v1/sessions/"+v.ID+"/risk", v.ID))

	var resp riskResponse
	decodeJSON(t, rec, &resp)
	if resp.Status != "SAFE" {
		t.Fatalf("status = %q, want SAFE (reason %q)", resp.Status, resp.Reason)
	}
	if resp.MatchScore != 90 || resp.FakeScore != 10 {
		t.Fatalf("scores = %d/%d, want 90/10", resp.MatchScore, resp.FakeScore)
	}
	if len(resp.SEResults) != 1 {
		t.Fatalf("se_results = %v", resp.SEResults)
	}
}

func TestRiskUnknownSession(t *testing.T) {
	h := RiskHandler{Registry: testRegistry(), Engine: risk.NewEngine()}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, pathRequest(http.MethodGet, "/v1/sessions/nope/risk", "nope"))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if typ := errorType(t, rec); typ != "not_found_error" {
		t.Fatalf("error type = %q", typ)
	}
}

func TestDeleteSessionIdempotent(t *testing.T) {
	reg := testRegistry()
	v, err := reg.Create("user-1")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	h := DeleteSessionHandler{Registry: reg}

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, pathRequest(http.MethodDelete, "/v1/sessions/"+v.ID, v.ID))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("delete %d: status = %d, want 204", i, rec.Code)
		}
	}
	if _, ok := reg.Get(v.ID); ok {
		t.Fatal("session still present after delete")
	}
}

func TestAudioExport(t *testing.T) {
	reg := testRegistry()
	v, err := reg.Create("user-1")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	pcm := bytes.Repeat([]byte{0x01, 0x02}, 160)
	reg.AppendRaw(v.ID, pcm)

	h := AudioExportHandler{Registry: reg, Audio: audio.DefaultConfig()}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, pathRequest(http.MethodGet, "/v1/sessions/"+v.ID+"/audio", v.ID))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/wav" {
		t.Fatalf("Content-Type = %q", ct)
	}
	body := rec.Body.Bytes()
	if len(body) < 44 || string(body[:4]) != "RIFF" || string(body[8:12]) != "WAVE" {
		t.Fatalf("body is not a WAV file (%d bytes)", len(body))
	}
	if !bytes.Equal(body[44:], pcm) {
		t.Fatal("WAV payload does not match recorded audio")
	}
}

func TestAudioExportUnknownSession(t *testing.T) {
	h := AudioExportHandler{Registry: testRegistry(), Audio: audio.DefaultConfig()}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, pathRequest(http.MethodGet, "/v1/sessions/nope/audio", "nope"))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
