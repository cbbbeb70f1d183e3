package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type AuthMode string

const (
	AuthModeRequired AuthMode = "required"
	AuthModeOptional AuthMode = "optional"
	AuthModeDisabled AuthMode = "disabled"
)

type EnrollStore string

const (
	EnrollStoreMemory EnrollStore = "memory"
	EnrollStoreRedis  EnrollStore = "redis"
)

type Config struct {
	Addr string

	AuthMode AuthMode
	APIKeys  map[string]struct{}

	// HS256 shared secret for bearer JWTs. When empty, bearer tokens are
	// matched against APIKeys only.
	JWTSecret   string
	JWTAudience string

	// CORS
	CORSAllowedOrigins map[string]struct{} // empty => disabled

	// Audio format of the inbound PCM stream.
	SampleRate int

	// Session registry bounds.
	MaxSessions    int
	SessionTimeout time.Duration

	// Stream loop timings.
	ReceiveTimeout    time.Duration
	MaxCallerTimeouts int
	GracePeriod       time.Duration

	// Analyzer cadences. Min durations gate whether enough caller audio
	// has accumulated to be worth analyzing.
	MatchMinDuration time.Duration
	MatchWindow      time.Duration
	FakeInterval     time.Duration
	FakeMinDuration  time.Duration
	SEInterval       time.Duration
	SEMinDuration    time.Duration
	AnalyzerTimeout  time.Duration

	// Risk thresholds.
	MatchThreshold float64
	FakeThreshold  float64

	MaxAudioFrameBytes int

	// Analysis backends.
	EmbedURL       string
	EmbedAPIKey    string
	DeepfakeURL    string
	DeepfakeAPIKey string
	ASRURL         string
	ASRAPIKey      string
	GeminiAPIKey   string
	GeminiModel    string

	// Voiceprint storage driver.
	EnrollStore EnrollStore
	RedisAddr   string

	// Operational defaults
	ReadHeaderTimeout   time.Duration
	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                envOr("CALLSHIELD_ADDR", ":8080"),
		AuthMode:            AuthMode(envOr("CALLSHIELD_AUTH_MODE", string(AuthModeDisabled))),
		APIKeys:             make(map[string]struct{}),
		JWTSecret:           os.Getenv("CALLSHIELD_JWT_SECRET"),
		JWTAudience:         envOr("CALLSHIELD_JWT_AUDIENCE", "authenticated"),
		CORSAllowedOrigins:  make(map[string]struct{}),
		SampleRate:          envIntOr("CALLSHIELD_SAMPLE_RATE", 16000),
		MaxSessions:         envIntOr("CALLSHIELD_MAX_SESSIONS", 100),
		SessionTimeout:      envDurationOr("CALLSHIELD_SESSION_TIMEOUT", 5*time.Minute),
		ReceiveTimeout:      envDurationOr("CALLSHIELD_RECEIVE_TIMEOUT", 5*time.Second),
		MaxCallerTimeouts:   envIntOr("CALLSHIELD_MAX_CALLER_TIMEOUTS", 3),
		GracePeriod:         envDurationOr("CALLSHIELD_GRACE_PERIOD", 30*time.Second),
		MatchMinDuration:    envDurationOr("CALLSHIELD_MATCH_MIN_DURATION", 3*time.Second),
		MatchWindow:         envDurationOr("CALLSHIELD_MATCH_WINDOW", 5*time.Second),
		FakeInterval:        envDurationOr("CALLSHIELD_FAKE_INTERVAL", 5*time.Second),
		FakeMinDuration:     envDurationOr("CALLSHIELD_FAKE_MIN_DURATION", 5*time.Second),
		SEInterval:          envDurationOr("CALLSHIELD_SE_INTERVAL", 8*time.Second),
		SEMinDuration:       envDurationOr("CALLSHIELD_SE_MIN_DURATION", 3*time.Second),
		AnalyzerTimeout:     envDurationOr("CALLSHIELD_ANALYZER_TIMEOUT", 30*time.Second),
		MatchThreshold:      envFloat64Or("CALLSHIELD_MATCH_THRESHOLD", 0.8),
		FakeThreshold:       envFloat64Or("CALLSHIELD_FAKE_THRESHOLD", 0.2),
		MaxAudioFrameBytes:  envIntOr("CALLSHIELD_MAX_AUDIO_FRAME_BYTES", 65536),
		EmbedURL:            os.Getenv("CALLSHIELD_EMBED_URL"),
		EmbedAPIKey:         os.Getenv("CALLSHIELD_EMBED_API_KEY"),
		DeepfakeURL:         os.Getenv("CALLSHIELD_DEEPFAKE_URL"),
		DeepfakeAPIKey:      os.Getenv("CALLSHIELD_DEEPFAKE_API_KEY"),
		ASRURL:              os.Getenv("CALLSHIELD_ASR_URL"),
		ASRAPIKey:           os.Getenv("CALLSHIELD_ASR_API_KEY"),
		GeminiAPIKey:        os.Getenv("CALLSHIELD_GEMINI_API_KEY"),
		GeminiModel:         envOr("CALLSHIELD_GEMINI_MODEL", "gemini-2.5-flash"),
		EnrollStore:         EnrollStore(envOr("CALLSHIELD_ENROLL_STORE", string(EnrollStoreMemory))),
		RedisAddr:           envOr("CALLSHIELD_REDIS_ADDR", "localhost:6379"),
		ReadHeaderTimeout:   envDurationOr("CALLSHIELD_READ_HEADER_TIMEOUT", 10*time.Second),
		ShutdownGracePeriod: envDurationOr("CALLSHIELD_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	switch cfg.AuthMode {
	case AuthModeRequired, AuthModeOptional, AuthModeDisabled:
	default:
		return Config{}, fmt.Errorf("CALLSHIELD_AUTH_MODE must be one of required|optional|disabled")
	}

	switch cfg.EnrollStore {
	case EnrollStoreMemory, EnrollStoreRedis:
	default:
		return Config{}, fmt.Errorf("CALLSHIELD_ENROLL_STORE must be one of memory|redis")
	}

	for _, key := range splitCSV(os.Getenv("CALLSHIELD_API_KEYS")) {
		cfg.APIKeys[key] = struct{}{}
	}

	for _, origin := range splitCSV(os.Getenv("CALLSHIELD_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	if cfg.SampleRate <= 0 {
		return Config{}, fmt.Errorf("CALLSHIELD_SAMPLE_RATE must be > 0")
	}
	if cfg.MaxSessions <= 0 {
		return Config{}, fmt.Errorf("CALLSHIELD_MAX_SESSIONS must be > 0")
	}
	if cfg.SessionTimeout <= 0 {
		return Config{}, fmt.Errorf("CALLSHIELD_SESSION_TIMEOUT must be > 0")
	}
	if cfg.ReceiveTimeout <= 0 {
		return Config{}, fmt.Errorf("CALLSHIELD_RECEIVE_TIMEOUT must be > 0")
	}
	if cfg.MaxCallerTimeouts <= 0 {
		return Config{}, fmt.Errorf("CALLSHIELD_MAX_CALLER_TIMEOUTS must be > 0")
	}
	if cfg.GracePeriod <= 0 {
		return Config{}, fmt.Errorf("CALLSHIELD_GRACE_PERIOD must be > 0")
	}
	if cfg.MatchMinDuration <= 0 {
		return Config{}, fmt.Errorf("CALLSHIELD_MATCH_MIN_DURATION must be > 0")
	}
	if cfg.MatchWindow <= 0 {
		return Config{}, fmt.Errorf("CALLSHIELD_MATCH_WINDOW must be > 0")
	}
	if cfg.FakeInterval <= 0 {
		return Config{}, fmt.Errorf("CALLSHIELD_FAKE_INTERVAL must be > 0")
	}
	if cfg.FakeMinDuration <= 0 {
		return Config{}, fmt.Errorf("CALLSHIELD_FAKE_MIN_DURATION must be > 0")
	}
	if cfg.SEInterval <= 0 {
		return Config{}, fmt.Errorf("CALLSHIELD_SE_INTERVAL must be > 0")
	}
	if cfg.SEMinDuration <= 0 {
		return Config{}, fmt.Errorf("CALLSHIELD_SE_MIN_DURATION must be > 0")
	}
	if cfg.AnalyzerTimeout <= 0 {
		return Config{}, fmt.Errorf("CALLSHIELD_ANALYZER_TIMEOUT must be > 0")
	}
	if cfg.MatchThreshold < 0 || cfg.MatchThreshold > 1 {
		return Config{}, fmt.Errorf("CALLSHIELD_MATCH_THRESHOLD must be in [0, 1]")
	}
	if cfg.FakeThreshold < 0 || cfg.FakeThreshold > 1 {
		return Config{}, fmt.Errorf("CALLSHIELD_FAKE_THRESHOLD must be in [0, 1]")
	}
	if cfg.MaxAudioFrameBytes <= 0 {
		return Config{}, fmt.Errorf("CALLSHIELD_MAX_AUDIO_FRAME_BYTES must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("CALLSHIELD_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("CALLSHIELD_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	if cfg.EnrollStore == EnrollStoreRedis && strings.TrimSpace(cfg.RedisAddr) == "" {
		return Config{}, fmt.Errorf("CALLSHIELD_REDIS_ADDR must be set when CALLSHIELD_ENROLL_STORE=redis")
	}

	if cfg.AuthMode == AuthModeRequired && len(cfg.APIKeys) == 0 && cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("CALLSHIELD_API_KEYS or CALLSHIELD_JWT_SECRET must be set when CALLSHIELD_AUTH_MODE=required")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envFloat64Or(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
