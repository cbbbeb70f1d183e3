package handlers

import (
	"net/http"

	"github.com/callshield/callshield/pkg/gateway/config"
	"github.com/callshield/callshield/pkg/gateway/lifecycle"
	"github.com/callshield/callshield/pkg/gateway/registry"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

type ReadyHandler struct {
	Config    config.Config
	Lifecycle *lifecycle.Lifecycle
	Registry  *registry.Registry
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK       bool     `json:"ok"`
		Draining bool     `json:"draining"`
		AuthMode string   `json:"auth_mode"`
		Sessions int      `json:"sessions"`
		Issues   []string `json:"issues,omitempty"`
	}

	issues := make([]string, 0, 4)

	switch h.Config.AuthMode {
	case config.AuthModeRequired, config.AuthModeOptional, config.AuthModeDisabled:
	default:
		issues = append(issues, "invalid auth_mode")
	}
	if h.Config.AuthMode == config.AuthModeRequired && len(h.Config.APIKeys) == 0 && h.Config.JWTSecret == "" {
		issues = append(issues, "auth_mode=required but no credentials configured")
	}
	if h.Config.SampleRate <= 0 {
		issues = append(issues, "sample_rate must be > 0")
	}
	if h.Config.MaxSessions <= 0 {
		issues = append(issues, "max_sessions must be > 0")
	}
	if h.Config.ReceiveTimeout <= 0 || h.Config.GracePeriod <= 0 {
		issues = append(issues, "stream timeouts must be > 0")
	}
	if h.Config.MatchThreshold < 0 || h.Config.MatchThreshold > 1 ||
		h.Config.FakeThreshold < 0 || h.Config.FakeThreshold > 1 {
		issues = append(issues, "thresholds must be in [0, 1]")
	}

	draining := h.Lifecycle.IsDraining()
	ok := len(issues) == 0 && !draining
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}

	sessions := 0
	if h.Registry != nil {
		sessions = h.Registry.Count()
	}

	writeJSON(w, status, readyResp{
		OK:       ok,
		Draining: draining,
		AuthMode: string(h.Config.AuthMode),
		Sessions: sessions,
		Issues:   issues,
	})
}
