package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wellnessgrid/wellnessgrid/db"
	"github.com/wellnessgrid/wellnessgrid/internal/api"
	"github.com/wellnessgrid/wellnessgrid/internal/auth"
	"github.com/wellnessgrid/wellnessgrid/internal/config"
	"github.com/wellnessgrid/wellnessgrid/internal/database"
	"github.com/wellnessgrid/wellnessgrid/internal/inference"
	"github.com/wellnessgrid/wellnessgrid/internal/knowledge"
	"github.com/wellnessgrid/wellnessgrid/internal/observability"
	"github.com/wellnessgrid/wellnessgrid/internal/postgres"
	"github.com/wellnessgrid/wellnessgrid/internal/rag"
)

// runServe initializes and starts the HTTP API server.
func runServe(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err = cfg.ValidateServe(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	addr, err := parseServeAddr(cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("parsing address: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting wellnessgrid server", "version", Version)

	if cfg.TracingEnabled {
		shutdown, err := observability.Setup(ctx, observability.Config{
			Endpoint:    cfg.TracingEndpoint,
			ServiceName: cfg.TracingService,
			Environment: cfg.TracingEnv,
		}, logger)
		if err != nil {
			return fmt.Errorf("setting up tracing: %w", err)
		}
		defer func() {
			flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer flushCancel()
			if err := shutdown(flushCtx); err != nil {
				logger.Warn("trace flush failed", "error", err)
			}
		}()
	}

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	pool, err := database.Open(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	backend, err := inference.New(inference.Config{
		BaseURL: cfg.InferenceURL,
		Timeout: cfg.InferenceTimeout,
	}, logger.With("component", "inference"))
	if err != nil {
		return fmt.Errorf("creating inference client: %w", err)
	}

	store := knowledge.New(pool, logger.With("component", "knowledge"))
	pipeline := rag.New(store, backend, rag.Config{
		TopK:          cfg.RAGTopK,
		Threshold:     cfg.RAGThreshold,
		ContextBudget: cfg.RAGContextBudget,
		MaxTokens:     cfg.RAGMaxTokens,
		Temperature:   cfg.RAGTemperature,
	}, logger.With("component", "rag"))

	apiServer, err := api.NewServer(api.ServerConfig{
		Logger:      logger,
		Pool:        pool,
		Tokens:      auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL),
		Pipeline:    pipeline,
		Backend:     backend,
		Docs:        store,
		Users:       postgres.NewUsers(pool, logger),
		Conditions:  postgres.NewConditions(pool, logger),
		Medications: postgres.NewMedications(pool, logger),
		Entries:     postgres.NewEntries(pool, logger),
		Resources:   postgres.NewResources(pool, logger),
		Settings:    postgres.NewSettings(pool, logger),
		Sessions:    postgres.NewSessions(pool, logger),
		CORSOrigins: cfg.CORSOrigins,
		TrustProxy:  cfg.TrustProxy,
		IsDev:       cfg.Dev,
		RateWindow:  cfg.RateLimitWindow,
		RateMax:     cfg.RateLimitMax,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	handler := apiServer.Handler()
	if cfg.TracingEnabled {
		handler = otelhttp.NewHandler(handler, "http.server")
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: api.ReadHeaderTimeout,
		ReadTimeout:       api.ReadTimeout,
		WriteTimeout:      api.WriteTimeout,
		IdleTimeout:       api.IdleTimeout,
	}

	logger.Info("HTTP server ready",
		"addr", addr,
		"api", "/api/*",
		"health", "/health, /ready",
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), api.ShutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	}
}
