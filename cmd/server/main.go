// MindProbe conversation server.
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

	"github.com/ashureev/mindprobe/internal/api"
	"github.com/ashureev/mindprobe/internal/config"
	"github.com/ashureev/mindprobe/internal/content"
	"github.com/ashureev/mindprobe/internal/followup"
	"github.com/ashureev/mindprobe/internal/grpcserver"
	"github.com/ashureev/mindprobe/internal/identity"
	"github.com/ashureev/mindprobe/internal/llm"
	"github.com/ashureev/mindprobe/internal/middleware"
	"github.com/ashureev/mindprobe/internal/observability"
	"github.com/ashureev/mindprobe/internal/protocol"
	"github.com/ashureev/mindprobe/internal/store"
	"github.com/ashureev/mindprobe/internal/transport"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

const (
	shutdownTimeout    = 10 * time.Second
	limiterSweepEvery  = time.Minute
	limiterIdleTimeout = 10 * time.Minute
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string
	cmd := &cobra.Command{
		Use:          "mindprobe-server",
		Short:        "Serve the MindProbe conversation over WebSocket",
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), envFile)
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	return cmd
}

//nolint:funlen // Startup wiring is intentionally sequential to keep dependency setup explicit.
func run(ctx context.Context, envFile string) error {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := godotenv.Load(envFile); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return err
	}
	level.Set(cfg.SlogLevel())

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "version", version)

	shutdownTracing, err := observability.SetupTracing(ctx, "mindprobe", version, cfg.OTelEndpoint)
	if err != nil {
		slog.Warn("Tracing disabled", "error", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Warn("Failed to flush traces", "error", err)
		}
	}()

	repo, err := openRepository(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		return err
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	metrics := observability.NewMetrics()

	gen, err := llm.New(ctx, llm.Config{
		Provider:      cfg.Generator.Provider,
		GeminiAPIKey:  cfg.Generator.GeminiAPIKey,
		GeminiModel:   cfg.Generator.GeminiModel,
		OpenAIAPIKey:  cfg.Generator.OpenAIAPIKey,
		OpenAIBaseURL: cfg.Generator.OpenAIBaseURL,
		OpenAIModel:   cfg.Generator.OpenAIModel,
		Temperature:   0.9,
		MaxTokens:     200,
	})
	if err != nil {
		slog.Error("Failed to initialize text generator", "error", err)
		return err
	}
	if d, ok := gen.(llm.Disabled); ok {
		slog.Warn("Text generation disabled, every follow-up uses the fallback bank", "reason", d.Reason)
	} else {
		slog.Info("Text generator ready", "backend", gen.Name())
	}

	tables := content.Default()
	deps := protocol.Deps{
		FollowUps: followup.New(gen, tables, followup.Config{
			Timeout:  cfg.Generator.Timeout,
			Recorder: metrics,
			Logger:   logger,
		}),
		Tables:   tables,
		Pauses:   revealPauses(cfg.Reveal),
		Recorder: metrics,
		Logger:   logger,
	}

	sm := transport.NewSessionManager()
	wsHandler := transport.NewWebSocketHandler(deps, repo, sm, metrics, transport.Config{
		AllowedOrigin:   cfg.FrontendURL,
		IsDev:           cfg.IsDevelopment(),
		MaxMessageBytes: cfg.WebSocket.MaxMessageBytes,
	})
	limiter := middleware.NewRateLimiter(cfg.WebSocket.RateLimitRPS, cfg.WebSocket.RateLimitBurst)
	apiHandler := api.NewHandler(repo, api.Info{
		Version:   version,
		Model:     gen.Name(),
		Generator: llm.IsEnabled(gen),
		Ledger:    cfg.LedgerEnabled(),
	})

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(allowedOrigins(cfg)))

	apiHandler.RegisterRoutes(r)
	r.Handle("/metrics", metrics.Handler())
	r.With(
		limiter.Middleware(metrics.RateLimited),
		identity.Middleware(cfg.IsDevelopment()),
	).Get("/ws", wsHandler.ServeHTTP)

	// WebSocket sessions are long-lived, so there is no WriteTimeout.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	var grpcSrv *grpcserver.Server
	if cfg.GRPCEnabled() {
		grpcSrv, err = grpcserver.New(":" + cfg.GRPCPort)
		if err != nil {
			slog.Error("Failed to start gRPC health server", "error", err)
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	if grpcSrv != nil {
		g.Go(func() error { return grpcSrv.Serve(gctx) })
	}
	if cfg.LedgerEnabled() {
		g.Go(func() error {
			return store.RunRetention(gctx, repo, cfg.OutcomeRetention, store.DefaultRetentionInterval)
		})
	}
	g.Go(func() error { return limiter.Run(gctx, limiterSweepEvery, limiterIdleTimeout) })

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")
		if grpcSrv != nil {
			grpcSrv.SetServing(false)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// Shutdown does not track hijacked connections.
		sm.CloseAll("server shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server stopped with error", "error", err)
		return err
	}
	slog.Info("Server stopped successfully")
	return nil
}

func openRepository(ctx context.Context, cfg *config.Config) (store.Repository, error) {
	if !cfg.LedgerEnabled() {
		slog.Info("Outcome ledger disabled")
		return store.Noop{}, nil
	}

	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := repo.Ping(ctx); err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("database health check: %w", err)
	}
	slog.Info("Database connected", "path", cfg.DBPath)
	return repo, nil
}

func revealPauses(c config.RevealConfig) protocol.Pauses {
	return protocol.Pauses{
		Transition:  c.Transition,
		Analyzing:   c.Analyzing,
		PreReveal:   c.PreReveal,
		Personality: c.Personality,
		MindReading: c.MindReading,
		Secret:      c.Secret,
		Choice:      c.Choice,
		Finale:      c.Finale,
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if cfg.FrontendURL == "" {
		return []string{"*"}
	}
	return []string{cfg.FrontendURL}
}
