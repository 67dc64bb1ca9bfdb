// Package main is the entry point for the CivicLens routing server.
// It provides a REST API that turns a citizen's coordinates and issue text
// into a routed, recorded, and dispatched complaint:
//
//   - Reverse geocoding via LocationIQ (degrades to the raw coordinates)
//   - Department routing via Gemini with JSON-constrained output and a
//     local fallback when the model's output is unusable
//   - Durable complaint records keyed by a unique complaint number
//   - Email dispatch through the Gmail API under the citizen's own OAuth
//     credential, with token refresh
//
// The record is always written before the send is attempted, so a mail
// failure never loses a submission.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/civiclens/routing-server/internal/classify"
	"github.com/civiclens/routing-server/internal/config"
	"github.com/civiclens/routing-server/internal/database"
	"github.com/civiclens/routing-server/internal/geo"
	"github.com/civiclens/routing-server/internal/handlers"
	"github.com/civiclens/routing-server/internal/mail"
	"github.com/civiclens/routing-server/internal/middleware"
	"github.com/civiclens/routing-server/internal/pipeline"
	"github.com/civiclens/routing-server/internal/store"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// Initialize structured logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	sugar := logger.Sugar()

	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		sugar.Fatalf("Failed to load config: %v", err)
	}

	sugar.Infow("Starting CivicLens Routing Server",
		"port", cfg.Port,
		"env", cfg.Environment,
		"model", cfg.GeminiModel,
	)

	// Storage: Postgres when configured, in-memory otherwise (development)
	var complaintStore store.ComplaintStore
	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool, err = database.NewPool(cfg.DatabaseURL)
		if err != nil {
			sugar.Fatalf("Failed to connect to database: %v", err)
		}
		defer pool.Close()

		if err := database.Migrate(context.Background(), pool); err != nil {
			sugar.Fatalf("Failed to apply schema: %v", err)
		}
		complaintStore = store.NewPostgresStore(pool, sugar)
	} else {
		sugar.Warn("DATABASE_URL not set, using in-memory store")
		complaintStore = store.NewMemoryStore()
	}

	// Redis geocode cache (optional)
	var cache *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			sugar.Fatalf("Invalid REDIS_URL: %v", err)
		}
		cache = redis.NewClient(opts)
		defer cache.Close()
	}

	// External collaborators share one HTTP client with a per-call timeout
	httpClient := &http.Client{Timeout: cfg.UpstreamTimeout}

	resolver := geo.NewResolver(httpClient, cache, cfg.LocationIQKey, cfg.LocationIQURL, sugar)
	router := classify.NewRouter(httpClient, cfg.GeminiAPIKey, cfg.GeminiURL, cfg.GeminiModel, sugar)
	dispatcher := mail.NewDispatcher(httpClient, cfg.GmailSendURL, cfg.OAuthClientID, cfg.OAuthClientSecret, cfg.OAuthTokenURL, sugar)

	orchestrator := pipeline.NewOrchestrator(resolver, router, complaintStore, dispatcher, sugar)

	// Initialize handlers
	complaintHandler := handlers.NewComplaintHandler(orchestrator, sugar)
	issueHandler := handlers.NewIssueHandler(orchestrator, sugar)
	healthHandler := handlers.NewHealthHandler(pool, sugar)

	// Build router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Rate limiting
	r.Use(middleware.RateLimit(cfg.RateLimitRPM))

	// API Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check
		r.Get("/health", healthHandler.Check)
		r.Get("/health/ready", healthHandler.Ready)

		// Everything else runs on behalf of an authenticated citizen
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(cfg.JWTSecret))

			r.Post("/issues/describe", issueHandler.Describe)

			r.Route("/complaints", func(r chi.Router) {
				r.Post("/classify", complaintHandler.Classify) // Route + compose a draft
				r.Post("/", complaintHandler.Submit)           // Persist + dispatch
				r.Get("/", complaintHandler.List)              // Owner-scoped listing
				r.Get("/{id}", complaintHandler.Get)           // Owner-scoped detail
			})
		})
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sugar.Infof("Server listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	sugar.Info("Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		sugar.Fatalf("Forced shutdown: %v", err)
	}

	sugar.Info("Server stopped")
}
