package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/callshield/callshield/pkg/core/audio"
	"github.com/callshield/callshield/pkg/core/script"
	"github.com/callshield/callshield/pkg/gateway/apierror"
	"github.com/callshield/callshield/pkg/gateway/config"
	"github.com/callshield/callshield/pkg/gateway/ingest"
	"github.com/callshield/callshield/pkg/gateway/lifecycle"
	"github.com/callshield/callshield/pkg/gateway/mw"
	"github.com/callshield/callshield/pkg/gateway/registry"
)

// StreamHandler upgrades audio-ingest connections and runs the per-call
// stream loop until the call ends or the gateway drains.
type StreamHandler struct {
	Config    config.Config
	Logger    *slog.Logger
	Lifecycle *lifecycle.Lifecycle
	Registry  *registry.Registry
	Timeline  *script.Timeline
	Tracker   *ingest.Tracker
	Match     ingest.MatchAnalyzer
	Fake      ingest.FakeAnalyzer
	Social    ingest.SocialAnalyzer
	Audio     audio.Config
}

func (h StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Lifecycle.IsDraining() {
		writeError(w, r, apierror.TypeCapacity, "gateway is draining", "")
		return
	}
	if !h.originAllowed(r) {
		writeError(w, r, apierror.TypeAuthentication, "origin is not allowed", "Origin")
		return
	}

	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		writeError(w, r, apierror.TypeInvalidRequest, "session_id is required", "session_id")
		return
	}

	view, known := h.Registry.Get(sessionID)

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	// Unknown sessions still get a clean websocket close frame so the
	// client sees the reason instead of a failed handshake.
	if !known {
		msg := websocket.FormatCloseMessage(ingest.CloseSessionNotFound, "session not found")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(5*time.Second))
		_ = conn.Close()
		return
	}

	if h.Config.MaxAudioFrameBytes > 0 {
		conn.SetReadLimit(int64(h.Config.MaxAudioFrameBytes) + 1024)
	}

	reqID, _ := mw.RequestIDFrom(r.Context())
	logger := h.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("session_id", sessionID, "request_id", reqID)

	loop := ingest.NewLoop(sessionID, view.UserID, ingest.Deps{
		Conn:     conn,
		Logger:   logger,
		Registry: h.Registry,
		Timeline: h.Timeline,
		Match:    h.Match,
		Fake:     h.Fake,
		Social:   h.Social,
		Audio:    h.Audio,
		Cfg:      h.Config,
	})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	unregister := h.Tracker.Register(sessionID, ingest.Handle{
		Cancel: cancel,
		Warn:   loop.Warn,
	})
	defer unregister()

	logger.Info("stream connected", "user_id", view.UserID)
	loop.Run(ctx)
}

func (h StreamHandler) originAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	if len(h.Config.CORSAllowedOrigins) == 0 {
		return false
	}
	_, ok := h.Config.CORSAllowedOrigins[origin]
	return ok
}
