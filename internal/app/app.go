package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/cinbrain/shortlinks/internal/auth"
	"github.com/cinbrain/shortlinks/internal/cache"
	"github.com/cinbrain/shortlinks/internal/config"
	"github.com/cinbrain/shortlinks/internal/link"
	"github.com/cinbrain/shortlinks/internal/ratelimit"
	"github.com/cinbrain/shortlinks/internal/server"
)

// App holds the application dependencies and configuration.
type App struct {
	Config       *config.Config
	Logger       *slog.Logger
	DBPool       *pgxpool.Pool
	Cache        *cache.Client
	Server       *server.Server
	ClickCounter *link.ClickCounter
}

// New initializes and returns a new App instance with all dependencies wired up.
func New(ctx context.Context) (*App, error) {
	if err := loadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(cfg.App.LogLevel)

	logger.Info("starting application",
		"env", cfg.App.Environment,
		"version", cfg.Observability.ServiceVersion,
	)

	// Connect to database
	dbPool, err := connectDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Cache client connects lazily on first use; an unreachable cache
	// degrades lookups to the database instead of failing startup.
	cacheClient := cache.NewClient(cache.Config{
		URL:          cfg.Redis.URL,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
		PoolSize:     cfg.Redis.PoolSize,
	}, logger)

	reserved := cfg.Cache.Reserved()

	// Link resolution and management
	repo := link.NewRepository(dbPool, nil)
	linkCache := link.NewCache(cacheClient, cfg.Cache.LinkTTL)
	clickQueue := link.NewClickQueue(cacheClient, logger)
	clickCounter := link.NewClickCounter(clickQueue, repo, &link.ClickCounterConfig{
		Workers:      cfg.Clicks.Workers,
		BatchSize:    cfg.Clicks.BatchSize,
		PollInterval: cfg.Clicks.PollInterval,
	}, logger)
	resolver := link.NewResolver(repo, linkCache, &link.ResolverConfig{
		Clicks:        clickQueue,
		ReservedSlugs: reserved,
		Logger:        logger,
	})
	svc := link.NewService(repo, linkCache, &link.ServiceConfig{
		ReservedSlugs: reserved,
		Logger:        logger,
	})
	linkHandler := link.NewHandler(link.HandlerConfig{
		Service:  svc,
		Resolver: resolver,
		Logger:   logger,
		BaseURL:  cfg.Server.BaseURL,
	})

	// Auth: token verification, revocation, password reset
	tokens, err := auth.NewTokenManager(auth.TokenManagerConfig{
		Secret:   cfg.Auth.JWTSecret,
		Lifetime: cfg.Auth.AccessTokenTTL,
		Issuer:   cfg.Auth.Issuer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create token manager: %w", err)
	}
	blacklist := auth.NewBlacklist(cacheClient, cfg.Cache.BlacklistTTL, logger)
	resetTokens := auth.NewResetTokens(cacheClient, cfg.Cache.ResetTokenTTL)
	authHandler := auth.NewHandler(auth.HandlerConfig{
		Blacklist:        blacklist,
		ResetTokens:      resetTokens,
		Users:            auth.NewUserStore(dbPool),
		Logger:           logger,
		ExposeResetToken: cfg.App.Environment != "production",
	})

	limiter := ratelimit.NewLimiter(cacheClient, logger)

	// Create server
	srv := server.New(cfg, logger, server.Deps{
		Links:       linkHandler,
		Auth:        authHandler,
		Tokens:      tokens,
		Blacklist:   blacklist,
		Limiter:     limiter,
		CacheClient: cacheClient,
		ClickQueue:  clickQueue,
	})

	logger.Info("application initialized",
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)

	return &App{
		Config:       cfg,
		Logger:       logger,
		DBPool:       dbPool,
		Cache:        cacheClient,
		Server:       srv,
		ClickCounter: clickCounter,
	}, nil
}

// Start starts the click workers and the application server.
func (a *App) Start(ctx context.Context) error {
	if err := a.ClickCounter.Start(ctx); err != nil {
		return fmt.Errorf("failed to start click counter: %w", err)
	}

	a.Logger.Info("server starting",
		"port", a.Config.Server.Port,
		"base_url", a.Config.Server.BaseURL,
	)

	if err := a.Server.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Info("shutting down application")

	if err := a.ClickCounter.Stop(ctx); err != nil {
		a.Logger.Warn("click counter stop", "error", err)
	}

	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.Logger.Warn("cache close", "error", err)
		}
	}

	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Info("database connection closed")
	}

	return nil
}

// loadEnv loads .env file only in non-production environments.
func loadEnv() error {
	env := os.Getenv("APP_ENV")
	if env == "development" || env == "test" {
		if err := godotenv.Load("../.env"); err != nil {
			log.Println("no .env file found.")
		}
	}
	return nil
}

// setupLogger creates a structured logger based on the log level.
func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}

// connectDatabase establishes a connection to the PostgreSQL database.
func connectDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// Set pool configuration
	poolConfig.MaxConns = cfg.Database.MaxConns
	poolConfig.MinConns = cfg.Database.MinConns

	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established")

	return pool, nil
}
