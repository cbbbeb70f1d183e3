package server

import (
	"log/slog"
	"net/http"

	"github.com/callshield/callshield/pkg/core/audio"
	"github.com/callshield/callshield/pkg/core/risk"
	"github.com/callshield/callshield/pkg/core/script"
	"github.com/callshield/callshield/pkg/gateway/analyzers"
	"github.com/callshield/callshield/pkg/gateway/auth"
	"github.com/callshield/callshield/pkg/gateway/config"
	"github.com/callshield/callshield/pkg/gateway/enroll"
	"github.com/callshield/callshield/pkg/gateway/handlers"
	"github.com/callshield/callshield/pkg/gateway/ingest"
	"github.com/callshield/callshield/pkg/gateway/lifecycle"
	"github.com/callshield/callshield/pkg/gateway/mw"
	"github.com/callshield/callshield/pkg/gateway/registry"
)

// Deps are the shared components the HTTP surface is wired to. The
// caller owns construction and shutdown; the server only routes.
type Deps struct {
	Lifecycle *lifecycle.Lifecycle
	Registry  *registry.Registry
	Tracker   *ingest.Tracker
	Timeline  *script.Timeline
	Enroll    enroll.Store
	// Voiceprints serves enrollment; it is usually the same object as
	// Match.
	Voiceprints *analyzers.Verifier
	Match       ingest.MatchAnalyzer
	Fake        ingest.FakeAnalyzer
	Social      ingest.SocialAnalyzer
	Engine      risk.Engine
	Audio       audio.Config
}

type Server struct {
	cfg      config.Config
	logger   *slog.Logger
	mux      *http.ServeMux
	deps     Deps
	verifier *auth.Verifier
}

func New(cfg config.Config, logger *slog.Logger, deps Deps) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Lifecycle == nil {
		deps.Lifecycle = &lifecycle.Lifecycle{}
	}
	if deps.Timeline == nil {
		deps.Timeline = script.Default()
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		mux:      http.NewServeMux(),
		deps:     deps,
		verifier: auth.NewVerifier(cfg.APIKeys, cfg.JWTSecret, cfg.JWTAudience),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.Handle("/", handlers.NotFoundHandler{})

	s.mux.Handle("GET /healthz", handlers.HealthHandler{})
	s.mux.Handle("GET /readyz", handlers.ReadyHandler{
		Config:    s.cfg,
		Lifecycle: s.deps.Lifecycle,
		Registry:  s.deps.Registry,
	})

	s.mux.Handle("POST /v1/sessions", handlers.CreateSessionHandler{
		Registry:  s.deps.Registry,
		Timeline:  s.deps.Timeline,
		Lifecycle: s.deps.Lifecycle,
	})
	s.mux.Handle("GET /v1/sessions/{id}/risk", handlers.RiskHandler{
		Registry: s.deps.Registry,
		Engine:   s.deps.Engine,
	})
	s.mux.Handle("GET /v1/sessions/{id}/audio", handlers.AudioExportHandler{
		Registry: s.deps.Registry,
		Audio:    s.deps.Audio,
	})
	s.mux.Handle("DELETE /v1/sessions/{id}", handlers.DeleteSessionHandler{
		Registry: s.deps.Registry,
	})

	s.mux.Handle("GET /v1/script", handlers.ScriptHandler{Timeline: s.deps.Timeline})

	s.mux.Handle("POST /v1/enroll", handlers.EnrollHandler{Verifier: s.deps.Voiceprints})
	s.mux.Handle("GET /v1/enroll/{user_id}", handlers.EnrollStatusHandler{Store: s.deps.Enroll})
	s.mux.Handle("DELETE /v1/enroll/{user_id}", handlers.EnrollDeleteHandler{Store: s.deps.Enroll})

	s.mux.Handle("GET /v1/stream", handlers.StreamHandler{
		Config:    s.cfg,
		Logger:    s.logger,
		Lifecycle: s.deps.Lifecycle,
		Registry:  s.deps.Registry,
		Timeline:  s.deps.Timeline,
		Tracker:   s.deps.Tracker,
		Match:     s.deps.Match,
		Fake:      s.deps.Fake,
		Social:    s.deps.Social,
		Audio:     s.deps.Audio,
	})
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.Auth(s.cfg, s.verifier, h)
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}
