package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cinbrain/shortlinks/internal/auth"
	"github.com/cinbrain/shortlinks/internal/cache"
	"github.com/cinbrain/shortlinks/internal/config"
	"github.com/cinbrain/shortlinks/internal/httpx"
	"github.com/cinbrain/shortlinks/internal/link"
	"github.com/cinbrain/shortlinks/internal/ratelimit"
)

// Server represents the HTTP server with all dependencies.
type Server struct {
	config      *config.Config
	logger      *slog.Logger
	links       *link.Handler
	authHandler *auth.Handler
	tokens      *auth.TokenManager
	blacklist   *auth.Blacklist
	limiter     *ratelimit.Limiter
	cacheClient *cache.Client
	clickQueue  *link.ClickQueue
	server      *http.Server
}

// Deps bundles the handlers and shared components the server routes to.
type Deps struct {
	Links       *link.Handler
	Auth        *auth.Handler
	Tokens      *auth.TokenManager
	Blacklist   *auth.Blacklist
	Limiter     *ratelimit.Limiter
	CacheClient *cache.Client
	ClickQueue  *link.ClickQueue
}

// New creates a new Server instance.
func New(cfg *config.Config, logger *slog.Logger, deps Deps) *Server {
	return &Server{
		config:      cfg,
		logger:      logger,
		links:       deps.Links,
		authHandler: deps.Auth,
		tokens:      deps.Tokens,
		blacklist:   deps.Blacklist,
		limiter:     deps.Limiter,
		cacheClient: deps.CacheClient,
		clickQueue:  deps.ClickQueue,
	}
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	mux := s.setupRoutes()
	handler := s.applyMiddleware(mux)
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Server.Host, s.config.Server.Port),
		Handler:      handler,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}

	// Listen for errors from the server
	serverErrors := make(chan error, 1)

	// Start server in a goroutine
	go func() {
		s.logger.Info("starting http server",
			"addr", s.server.Addr,
			"env", s.config.App.Environment,
		)
		serverErrors <- s.server.ListenAndServe()
	}()

	// Listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		s.logger.Info("received shutdown signal", "signal", sig.String())

		// Create context with timeout for shutdown
		ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()

		// Attempt graceful shutdown
		if err := s.server.Shutdown(ctx); err != nil {
			// Force close if graceful shutdown fails
			if closeErr := s.server.Close(); closeErr != nil {
				return fmt.Errorf("failed to close server: %w", closeErr)
			}
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		s.logger.Info("server stopped gracefully")
		return nil
	}
}

// setupRoutes configures all HTTP routes. Management routes require a valid,
// non-revoked token; resolution stays anonymous.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	requireAuth := auth.RequireAuth(s.tokens, s.blacklist, s.logger)

	// Health check endpoint
	mux.HandleFunc("GET /x/health", s.healthCheckHandler)

	// Link management
	mux.Handle("POST /api/links", requireAuth(http.HandlerFunc(s.links.CreateLink)))
	mux.Handle("PATCH /api/links/{slug}", requireAuth(http.HandlerFunc(s.links.UpdateLink)))
	mux.Handle("DELETE /api/links/{slug}", requireAuth(http.HandlerFunc(s.links.DeleteLink)))

	// Auth flows
	mux.Handle("POST /api/auth/logout", requireAuth(http.HandlerFunc(s.authHandler.Logout)))
	mux.HandleFunc("POST /api/auth/password-reset", s.authHandler.RequestPasswordReset)
	mux.HandleFunc("POST /api/auth/password-reset/confirm", s.authHandler.ConfirmPasswordReset)

	// Resolution
	mux.HandleFunc("GET /{slug}/preview", s.links.PreviewLink)
	mux.HandleFunc("GET /{slug}", s.links.ResolveLink)

	return mux
}

// applyMiddleware wraps the handler with middleware in the correct order.
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	return httpx.Chain(
		httpx.Recovery(s.logger), // Outermost: catch panics
		httpx.RequestID,          // Add request ID
		httpx.Logger(s.logger),   // Log requests
		httpx.CORS(nil),          // CORS headers (allow all in dev)
		ratelimit.Middleware(s.limiter, s.config.RateLimit.Limit, s.config.RateLimit.Window),
	)(handler)
}

// healthCheckHandler reports liveness plus cache availability. A degraded
// cache is not a failure; the service keeps serving from the durable store.
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":  "ok",
		"service": s.config.Observability.ServiceName,
		"version": s.config.Observability.ServiceVersion,
	}

	if s.cacheClient != nil {
		available := s.cacheClient.Available(r.Context())
		body["cache"] = map[string]any{"available": available}
		if available && s.clickQueue != nil {
			if depth, err := s.clickQueue.Pending(r.Context()); err == nil {
				body["clicks_pending"] = depth
			}
		}
	}

	httpx.WriteJSON(w, http.StatusOK, body)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	s.logger.Info("shutting down server")

	if err := s.server.Shutdown(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("shutdown timeout exceeded, forcing close")
			return s.server.Close()
		}
		return err
	}

	return nil
}
