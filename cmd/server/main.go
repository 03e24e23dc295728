// Package main is the entrypoint for the VideoLens API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiranshivaraju/videolens/internal/ai"
	"github.com/kiranshivaraju/videolens/internal/api"
	"github.com/kiranshivaraju/videolens/internal/api/handler"
	mw "github.com/kiranshivaraju/videolens/internal/api/middleware"
	"github.com/kiranshivaraju/videolens/internal/api/response"
	"github.com/kiranshivaraju/videolens/internal/cache"
	"github.com/kiranshivaraju/videolens/internal/config"
	"github.com/kiranshivaraju/videolens/internal/ingest"
	"github.com/kiranshivaraju/videolens/internal/store"
)

const (
	shutdownTimeout = 30 * time.Second
	// drainTimeout bounds the wait for detached analyses after the HTTP
	// server has stopped.
	drainTimeout   = 2 * time.Minute
	streamInterval = 500 * time.Millisecond
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, failing fast when invalid
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.SetDefault(newLogger(cfg.Server.LogLevel))
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Status mirror and rate limit backend (optional)
	var statusCache cache.Cache = cache.NopCache{}
	if cfg.Redis.URL != "" {
		redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("create redis cache: %w", err)
		}
		defer redisCache.Close()

		if err := redisCache.Ping(ctx); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		statusCache = redisCache
		slog.Info("redis connected")
	} else {
		slog.Info("redis not configured, status mirror and rate limit disabled")
	}

	// 3. Ingestion
	if err := os.MkdirAll(cfg.Ingest.TempDir, 0o700); err != nil {
		return fmt.Errorf("create ingest temp dir: %w", err)
	}
	fetchers := ingest.LoadFetchers(ctx, cfg.Ingest.Sources, ingest.FetcherOptions{
		YTDLPBin:     cfg.Ingest.YTDLP.Bin,
		YTDLPFormat:  cfg.Ingest.YTDLP.Format,
		AzureAccount: cfg.Ingest.Azure.Account,
		AzureKey:     cfg.Ingest.Azure.Key,
		SFTPUser:     cfg.Ingest.SFTP.User,
		SFTPPassword: cfg.Ingest.SFTP.Password,
		SFTPKeyPath:  cfg.Ingest.SFTP.KeyPath,
		FTPUser:      cfg.Ingest.FTP.User,
		FTPPassword:  cfg.Ingest.FTP.Password,
	})
	ingestor := ingest.NewIngestor(cfg.Ingest.TempDir, cfg.Ingest.MaxUploadBytes, fetchers...)
	slog.Info("ingestion ready", "schemes", ingestor.Schemes(), "temp_dir", cfg.Ingest.TempDir)

	// 4. Create AI provider
	aiProvider, err := ai.NewProvider(cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI provider: %w", err)
	}
	slog.Info("AI provider initialized", "provider", aiProvider.Name())

	// 5. Orchestrator over the in-memory job store
	jobs := store.NewMemoryStore()
	svc := ai.NewAnalysisService(aiProvider, ingestor, jobs, statusCache, ai.Options{
		PollInterval:     cfg.AI.PollInterval,
		PollAttempts:     cfg.AI.PollAttempts,
		InferenceTimeout: cfg.AI.InferenceTimeout,
		MaxOutputTokens:  cfg.AI.MaxOutputTokens,
		MirrorTTL:        cfg.Redis.MirrorTTL,
	})

	// 6. Build router with dependencies
	deps := api.Dependencies{
		HealthHandler:      healthHandler(statusCache, jobs, svc.ProviderName()),
		AnalyzeHandler:     handler.NewAnalyzeHandler(svc, cfg.Ingest.MaxUploadBytes),
		GetAnalysisHandler: handler.NewGetAnalysisHandler(svc),
		StreamHandler:      handler.NewStreamHandler(svc, streamInterval),
	}
	if cfg.Redis.URL != "" {
		deps.RateLimit = mw.NewRateLimit(statusCache, cfg.RateLimit.PerMinute)
	}

	router := api.NewRouter(deps)

	// 7. Start HTTP server. Synchronous submissions hold the request for the
	// whole analysis, so there is no write timeout.
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	if err := shutdown(srv, svc, shutdownTimeout, drainTimeout); err != nil {
		return err
	}
	slog.Info("server stopped gracefully")
	return nil
}

type waiter interface {
	Wait(ctx context.Context) error
}

// shutdown stops the HTTP server, then waits for detached analyses. The two
// phases have separate deadlines, and the wait runs even when the HTTP drain
// timed out.
func shutdown(srv *http.Server, jobs waiter, httpTimeout, jobTimeout time.Duration) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpTimeout)
	defer cancel()
	shutdownErr := srv.Shutdown(shutdownCtx)
	if shutdownErr != nil {
		slog.Error("server shutdown incomplete", "error", shutdownErr)
	}

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), jobTimeout)
	defer cancelDrain()
	if err := jobs.Wait(drainCtx); err != nil {
		slog.Warn("detached analyses still running at shutdown", "error", err)
	}

	if shutdownErr != nil {
		return fmt.Errorf("server shutdown: %w", shutdownErr)
	}
	return nil
}

// newLogger builds the JSON logger at the configured level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// jobCounter reports how many jobs this replica holds in memory.
type jobCounter interface {
	Len() int
}

// healthHandler reports status mirror connectivity, the AI provider in use and
// the number of jobs held in memory.
func healthHandler(c cache.Cache, jobs jobCounter, provider string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"cache":       "ok",
			"ai_provider": provider,
		}

		err := c.Ping(r.Context())
		switch {
		case errors.Is(err, cache.ErrDisabled):
			checks["cache"] = "disabled"
		case err != nil:
			checks["cache"] = "degraded"
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
			"jobs":     jobs.Len(),
		})
	}
}
