package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"authgate/internal/config"
	"authgate/internal/guard"
	"authgate/internal/logger"
	"authgate/internal/provider"
	"authgate/internal/session"
	"authgate/internal/web"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Initialize structured logger
	log := logger.New()
	logger.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting authgate",
		"port", cfg.Port,
		"provider_url", cfg.ProviderURL,
		"store_backend", cfg.StoreBackend,
	)

	// Identity provider client (publishable key)
	api, err := provider.NewClient(provider.Config{
		BaseURL: cfg.ProviderURL,
		AnonKey: cfg.ProviderAnonKey,
		Timeout: cfg.ProviderTimeout,
	})
	if err != nil {
		slog.Error("Failed to create provider client", "error", err)
		os.Exit(1)
	}

	// Session store backend
	factory, storeCheck, cleanup, err := buildStores(cfg)
	if err != nil {
		slog.Error("Failed to initialize session store backend", "error", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}
	slog.Info("Session store ready", "backend", cfg.StoreBackend)

	// Route table: dashboard and profile require a user, login requires
	// the absence of one
	policy := guard.NewPolicy("/login", "/dashboard", "/dashboard", "/profile")

	origins := web.NewOrigins(api, factory, cfg.CookieSecure)
	defer origins.Close()

	handler := web.NewHandler(policy, storeCheck)
	router := web.NewRouter(handler, origins, policy, cfg.CORSOrigins)
	server := web.NewServer(cfg, router)

	// Start server in a goroutine
	go func() {
		slog.Info("authgate listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down authgate")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("authgate stopped")
}

// buildStores selects the session store backend and returns the per-origin
// factory, a reachability probe for the health endpoint, and a cleanup for
// the shared connection.
func buildStores(cfg *config.Config) (web.StoreFactory, func(context.Context) error, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			client.Close()
			return nil, nil, nil, err
		}
		factory := func(origin string) (session.Store, error) {
			return session.NewRedisStore(client, origin)
		}
		check := func(ctx context.Context) error { return client.Ping(ctx).Err() }
		cleanup := func() { client.Close() }
		return factory, check, cleanup, nil

	case config.StorePostgres:
		pool, err := pgxpool.New(context.Background(), cfg.PostgresDSN)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := pool.Ping(context.Background()); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		factory := func(origin string) (session.Store, error) {
			return session.NewPostgresStore(context.Background(), pool, origin)
		}
		check := pool.Ping
		cleanup := pool.Close
		return factory, check, cleanup, nil

	default:
		factory := func(string) (session.Store, error) {
			return session.NewMemoryStore(), nil
		}
		return factory, nil, nil, nil
	}
}
