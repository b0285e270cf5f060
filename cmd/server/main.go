// Planfab - Conversational Plan Generation Server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/planfab/planfab/internal/api"
	"github.com/planfab/planfab/internal/auth"
	"github.com/planfab/planfab/internal/config"
	"github.com/planfab/planfab/internal/llm"
	"github.com/planfab/planfab/internal/middleware"
	"github.com/planfab/planfab/internal/notify"
	"github.com/planfab/planfab/internal/plan"
	"github.com/planfab/planfab/internal/storage"
	"github.com/planfab/planfab/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// Document storage: Supabase when configured, local disk otherwise.
	var docs api.DocumentStore
	var localDocs *storage.LocalStore
	if cfg.Supabase.ProjectURL != "" {
		docs = storage.NewClient(cfg.Supabase.ProjectURL, cfg.Supabase.ServiceKey, cfg.Supabase.StorageBucket)
		slog.Info("Supabase storage configured", "bucket", cfg.Supabase.StorageBucket)
	} else {
		localDocs, err = storage.NewLocalStore(filepath.Join(filepath.Dir(cfg.DBPath), "documents"), "http://localhost:"+cfg.Port)
		if err != nil {
			slog.Error("Failed to initialize local document store", "error", err)
			os.Exit(1)
		}
		docs = localDocs
		slog.Warn("Supabase not configured, storing plan documents on local disk", "dir", localDocs.Dir())
	}

	// Auth: validate Supabase JWTs when a project is configured, otherwise
	// fall back to a fixed development identity.
	var jwks *auth.JWKSClient
	if cfg.Supabase.ProjectURL != "" {
		jwks = auth.NewJWKSClient(cfg.Supabase.ProjectURL)
		slog.Info("JWT validation enabled", "project_url", cfg.Supabase.ProjectURL)
	} else {
		slog.Warn("Supabase not configured, requests run as a development identity")
	}

	gateway, err := llm.NewAnthropicGateway(cfg.Anthropic.APIKey, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens)
	if err != nil {
		slog.Error("Failed to initialize model gateway", "error", err)
		os.Exit(1)
	}
	slog.Info("Model gateway initialized", "model", cfg.Anthropic.Model)

	notifier := notify.NewNotifier()

	engine, err := plan.NewEngine(gateway, notifier, repo, docs, cfg.MaxFollowupQuestions)
	if err != nil {
		slog.Error("Failed to initialize plan engine", "error", err)
		os.Exit(1)
	}

	// Initialize handlers.
	planHandler := api.NewHandler(repo, engine, docs)
	healthHandler := api.NewHealthHandler(repo)
	wsHandler := api.NewWebSocketHandler(engine, notifier, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(corsOrigins(cfg)))

	// Public routes.
	healthHandler.RegisterHealth(r)
	if localDocs != nil {
		r.Handle("/files/*", http.StripPrefix("/files/", http.FileServer(http.Dir(localDocs.Dir()))))
	}

	// Authenticated routes.
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(jwks))
		planHandler.RegisterRoutes(r)
		r.Get("/ws/plan", wsHandler.ServeHTTP)
	})

	// Create server.
	// Note: WebSocket connections require long timeouts (no WriteTimeout).
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	// Start background session cleanup.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	plan.StartJanitor(ctx, repo, cfg.SessionTTL)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

func corsOrigins(cfg *config.Config) []string {
	if cfg.FrontendURL == "" {
		return []string{"*"}
	}
	return []string{cfg.FrontendURL}
}
