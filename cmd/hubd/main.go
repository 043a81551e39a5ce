// Package main is the entrypoint for the EOM Hub orchestrator daemon.
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

	"github.com/kiranshivaraju/eomhub/internal/api"
	"github.com/kiranshivaraju/eomhub/internal/api/handler"
	mw "github.com/kiranshivaraju/eomhub/internal/api/middleware"
	"github.com/kiranshivaraju/eomhub/internal/api/response"
	"github.com/kiranshivaraju/eomhub/internal/cache"
	"github.com/kiranshivaraju/eomhub/internal/config"
	"github.com/kiranshivaraju/eomhub/internal/orchestrator"
	"github.com/kiranshivaraju/eomhub/internal/store"
	"github.com/kiranshivaraju/eomhub/internal/transport"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("hubd failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"env", cfg.Server.Env,
		"hub", cfg.Hub.BaseURL,
		"bridge", cfg.Hub.BridgeURL,
		"force_fallback", cfg.Hub.ForceFallback,
		"session_id", cfg.Hub.SessionID,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Build the hub transport
	var bridge transport.Channel
	if cfg.Hub.BridgeURL != "" && !cfg.Hub.ForceFallback {
		ws := transport.NewWSBridge(cfg.Hub.BridgeURL)
		defer ws.Close()
		bridge = ws
	}
	tr := transport.New(bridge, transport.NewHTTPChannel(cfg.Hub.BaseURL, cfg.Hub.HTTPTimeout), transport.Options{
		BridgeTimeout: cfg.Hub.BridgeTimeout,
		ForceFallback: cfg.Hub.ForceFallback,
	})
	hub := transport.NewClient(tr)

	opts := orchestrator.Options{
		PollInterval:   cfg.Orchestrator.PollInterval,
		StatusInterval: cfg.Orchestrator.StatusInterval,
		OverlayGrace:   cfg.Orchestrator.OverlayGrace,
		MirrorTTL:      cfg.Orchestrator.CountedTTL,
		SessionID:      cfg.Hub.SessionID,
	}

	// 3. Job history (optional)
	var (
		history store.Store
		db      pinger
	)
	if cfg.Database.URL != "" {
		pool, err := store.Connect(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()
		slog.Info("database connected")

		if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		slog.Info("database migrations applied")

		pgStore := store.NewPostgresStore(pool)
		history, db = pgStore, pgStore
		opts.History = pgStore
	} else {
		slog.Info("job history disabled")
	}

	// 4. Redis counted set, status mirror and rate limit counter (optional)
	var (
		counter mw.Counter
		redis   pinger
		jobOpts []handler.GetJobOption
	)
	if cfg.Redis.URL != "" {
		redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("create redis cache: %w", err)
		}
		defer redisCache.Close()

		if err := redisCache.Ping(ctx); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		slog.Info("redis connected")

		counted := cache.NewCountedSet(redisCache, cfg.Hub.SessionID, cfg.Orchestrator.CountedTTL)
		opts.Counted = counted
		opts.Mirror = redisCache
		counter, redis = redisCache, redisCache
		jobOpts = append(jobOpts, handler.WithLiveStatus(redisCache), handler.WithCounted(counted))
	} else {
		slog.Info("redis disabled, counted set kept in memory")
	}

	// 5. Create the controller
	ctrl := orchestrator.New(hub, opts)
	defer ctrl.Close()

	// 6. Build router with dependencies
	intents := handler.NewIntents(ctx, ctrl, tr)
	deps := api.Dependencies{
		Auth:      mw.NewAuth(cfg.Server.TokenHash),
		RateLimit: mw.NewRateLimit(counter, cfg.Server.RateLimit),

		HealthHandler: healthHandler(db, redis, func() string {
			if bridge == nil || tr.BridgeFailed() {
				return transport.ChannelHTTP
			}
			return transport.ChannelBridge
		}),
		StateHandler: intents.State,

		RunHandler:                  intents.Run,
		CancelHandler:               intents.Cancel,
		ConfirmHandler:              intents.Confirm,
		ResetSavingsHandler:         intents.ResetSavings,
		SetCategoryHandler:          intents.SetCategory,
		SetResultTabHandler:         intents.SetResultTab,
		ToggleConnectionHelpHandler: intents.ToggleConnectionHelp,
		ReconnectHandler:            intents.Reconnect,
	}
	if history != nil {
		deps.ListJobsHandler = handler.NewListJobsHandler(history, cfg.Hub.SessionID)
		deps.GetJobHandler = handler.NewGetJobHandler(history, jobOpts...)
	}

	router := api.NewRouter(deps)

	// 7. Start the orchestrator loops
	runDone := make(chan error, 1)
	go func() {
		runDone <- ctrl.Run(ctx)
	}()

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

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
		stop()
		<-runDone
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if err := <-runDone; err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}

	slog.Info("hubd stopped gracefully")
	return nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

// healthHandler reports the optional backing services and the hub channel in
// use. A nil pinger is reported as disabled.
func healthHandler(db, redis pinger, channel func() string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": check(r.Context(), db),
			"cache":    check(r.Context(), redis),
		}

		degraded := checks["database"] == "degraded" || checks["cache"] == "degraded"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":    "ok",
			"services":  checks,
			"transport": channel(),
		})
	}
}

func check(ctx context.Context, p pinger) string {
	if p == nil {
		return "disabled"
	}
	if err := p.Ping(ctx); err != nil {
		return "degraded"
	}
	return "ok"
}
