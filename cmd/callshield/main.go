package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/callshield/callshield/internal/dotenv"
	"github.com/callshield/callshield/pkg/core/audio"
	"github.com/callshield/callshield/pkg/core/risk"
	"github.com/callshield/callshield/pkg/core/script"
	"github.com/callshield/callshield/pkg/gateway/analyzers"
	"github.com/callshield/callshield/pkg/gateway/config"
	"github.com/callshield/callshield/pkg/gateway/enroll"
	"github.com/callshield/callshield/pkg/gateway/ingest"
	"github.com/callshield/callshield/pkg/gateway/lifecycle"
	"github.com/callshield/callshield/pkg/gateway/registry"
	gatewayserver "github.com/callshield/callshield/pkg/gateway/server"
)

type gatewayDeps struct {
	loadConfig   func() (config.Config, error)
	buildRuntime func(ctx context.Context, cfg config.Config, logger *slog.Logger) (*runtime, error)
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
}

func defaultGatewayDeps() gatewayDeps {
	return gatewayDeps{
		loadConfig:   config.LoadFromEnv,
		buildRuntime: buildRuntime,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
	}
}

// runtime bundles the long-lived components behind the HTTP surface.
type runtime struct {
	server    *gatewayserver.Server
	lifecycle *lifecycle.Lifecycle
	tracker   *ingest.Tracker
	enroll    enroll.Store
}

func buildRuntime(ctx context.Context, cfg config.Config, logger *slog.Logger) (*runtime, error) {
	store, err := buildEnrollStore(cfg)
	if err != nil {
		return nil, err
	}

	rt := &runtime{
		lifecycle: &lifecycle.Lifecycle{},
		tracker:   ingest.NewTracker(),
		enroll:    store,
	}

	deps := gatewayserver.Deps{
		Lifecycle: rt.lifecycle,
		Registry: registry.New(registry.Config{
			MaxSessions:    cfg.MaxSessions,
			SessionTimeout: cfg.SessionTimeout,
		}),
		Tracker:  rt.tracker,
		Timeline: script.Default(),
		Enroll:   store,
		Engine: risk.Engine{
			MatchThreshold: cfg.MatchThreshold,
			FakeThreshold:  cfg.FakeThreshold,
		},
		Audio: audio.Config{
			SampleRate:    cfg.SampleRate,
			Channels:      1,
			BitsPerSample: 16,
		},
	}

	if cfg.EmbedURL != "" {
		verifier := analyzers.NewVerifier(store, analyzers.NewEmbedClient(cfg.EmbedURL, cfg.EmbedAPIKey))
		deps.Voiceprints = verifier
		deps.Match = verifier
	} else {
		logger.Warn("embedding backend not configured, speaker matching disabled")
	}

	if cfg.DeepfakeURL != "" {
		deps.Fake = analyzers.NewDeepfakeClient(cfg.DeepfakeURL, cfg.DeepfakeAPIKey)
	} else {
		logger.Warn("deepfake backend not configured, synthetic speech detection disabled")
	}

	if cfg.ASRURL != "" && cfg.GeminiAPIKey != "" {
		gem, err := analyzers.NewGeminiAnalyzer(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("init gemini analyzer: %w", err)
		}
		deps.Social = analyzers.NewSocialDetector(analyzers.NewASRClient(cfg.ASRURL, cfg.ASRAPIKey), gem)
	} else {
		logger.Warn("asr or gemini not configured, social engineering detection disabled")
	}

	rt.server = gatewayserver.New(cfg, logger, deps)
	return rt, nil
}

func buildEnrollStore(cfg config.Config) (enroll.Store, error) {
	switch cfg.EnrollStore {
	case config.EnrollStoreRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return enroll.NewRedisStore(client, 0), nil
	case config.EnrollStoreMemory, "":
		return enroll.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown enroll store %q", cfg.EnrollStore)
	}
}

func buildHTTPServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func runGateway(ctx context.Context, logger *slog.Logger, deps gatewayDeps) error {
	if deps.loadConfig == nil {
		return errors.New("missing loadConfig dependency")
	}
	if deps.buildRuntime == nil {
		return errors.New("missing buildRuntime dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	rt, err := deps.buildRuntime(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build runtime: %w", err)
	}
	defer rt.enroll.Close()

	httpSrv := buildHTTPServer(cfg, rt.server.Handler())

	logger.Info("starting gateway",
		"addr", cfg.Addr,
		"auth_mode", cfg.AuthMode,
		"enroll_store", cfg.EnrollStore,
	)

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	rt.lifecycle.SetDraining(true)
	warned := rt.tracker.WarnAll("server shutting down")
	logger.Info("draining live streams", "warned", warned, "grace", cfg.ShutdownGracePeriod)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer waitCancel()
	if !rt.tracker.Wait(waitCtx) {
		canceled := rt.tracker.CancelAll()
		logger.Warn("grace period expired, cancelled remaining streams", "cancelled", canceled)
	}

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("gateway stopped")
	return nil
}

func runMain(ctx context.Context, stderr io.Writer, deps gatewayDeps) int {
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(stderr, nil))

	if err := dotenv.Load(".env"); err != nil {
		fmt.Fprintf(stderr, "callshield: %v\n", err)
		return 1
	}

	if err := runGateway(ctx, logger, deps); err != nil {
		fmt.Fprintf(stderr, "callshield: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr, defaultGatewayDeps()))
}
