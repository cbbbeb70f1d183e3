package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/callshield/callshield/pkg/core/audio"
	"github.com/callshield/callshield/pkg/core/risk"
	"github.com/callshield/callshield/pkg/core/script"
	"github.com/callshield/callshield/pkg/gateway/apierror"
	"github.com/callshield/callshield/pkg/gateway/auth"
	"github.com/callshield/callshield/pkg/gateway/lifecycle"
	"github.com/callshield/callshield/pkg/gateway/registry"
)

// CreateSessionHandler starts a monitored call session.
type CreateSessionHandler struct {
	Registry  *registry.Registry
	Timeline  *script.Timeline
	Lifecycle *lifecycle.Lifecycle
}

type createSessionRequest struct {
	UserID string `json:"user_id"`
}

type createSessionResponse struct {
	SessionID     string `json:"session_id"`
	AgentGreeting string `json:"agent_greeting"`
}

func (h CreateSessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Lifecycle.IsDraining() {
		writeError(w, r, apierror.TypeCapacity, "gateway is draining", "")
		return
	}

	var req createSessionRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, r, apierror.TypeInvalidRequest, "invalid request body", "")
			return
		}
	}

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		// Fall back to the authenticated principal so token-auth clients
		// do not need to repeat their identity.
		if p, ok := auth.PrincipalFrom(r.Context()); ok {
			userID = p.Subject
		}
	}
	if userID == "" {
		writeError(w, r, apierror.TypeInvalidRequest, "user_id is required", "user_id")
		return
	}

	v, err := h.Registry.Create(userID)
	if err != nil {
		if errors.Is(err, registry.ErrCapacity) {
			writeError(w, r, apierror.TypeCapacity, "session capacity exceeded", "")
			return
		}
		writeError(w, r, apierror.TypeAPI, "failed to create session", "")
		return
	}

	writeJSON(w, http.StatusCreated, createSessionResponse{
		SessionID:     v.ID,
		AgentGreeting: h.Timeline.Segment(0).Text,
	})
}

// RiskHandler reports the aggregate risk assessment for a session.
type RiskHandler struct {
	Registry *registry.Registry
	Engine   risk.Engine
}

type riskResponse struct {
	SessionID  string              `json:"session_id"`
	MatchScore int                 `json:"match_score"`
	FakeScore  int                 `json:"fake_score"`
	Status     string              `json:"status"`
	Reason     string              `json:"reason"`
	SEResults  []registry.SEResult `json:"se_results,omitempty"`
}

func (h RiskHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	match, fake, ok := h.Registry.Scores(id)
	if !ok {
		writeError(w, r, apierror.TypeNotFound, "session not found", "id")
		return
	}

	assessment := h.Engine.Compute(match, fake)
	writeJSON(w, http.StatusOK, riskResponse{
		SessionID:  id,
		MatchScore: risk.NormalizeTo100(assessment.MeanMatch),
		FakeScore:  risk.NormalizeTo100(assessment.MeanFake),
		Status:     assessment.Status.String(),
		Reason:     assessment.Reason,
		SEResults:  h.Registry.SEResults(id),
	})
}

// DeleteSessionHandler removes a session. Deleting an unknown id is a
// no-op so clients can retry safely.
type DeleteSessionHandler struct {
	Registry *registry.Registry
}

func (h DeleteSessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.Registry.Delete(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

// AudioExportHandler streams the session's received audio as a WAV file.
type AudioExportHandler struct {
	Registry *registry.Registry
	Audio    audio.Config
}

func (h AudioExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if _, ok := h.Registry.Get(id); !ok {
		writeError(w, r, apierror.TypeNotFound, "session not found", "id")
		return
	}

	pcm := h.Registry.RawAll(id)
	wav := audio.EncodeWAV(pcm, h.Audio)

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", `attachment; filename="session-`+id+`.wav"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(wav)
}
