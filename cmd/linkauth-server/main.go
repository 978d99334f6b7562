// Command linkauth-server serves the linkauth HTTP API.
//
// Configuration comes from the environment (and .env when present); see
// internal/config for every variable. JWT_SECRET is the only required one.
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

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/linkauth"
	"github.com/MrEthical07/linkauth/exchange"
	"github.com/MrEthical07/linkauth/internal/config"
	"github.com/MrEthical07/linkauth/internal/stores"
	"github.com/MrEthical07/linkauth/metrics/export/prometheus"
	"github.com/MrEthical07/linkauth/oauth/google"
	"github.com/MrEthical07/linkauth/store/memory"
	"github.com/MrEthical07/linkauth/store/postgres"
	"github.com/MrEthical07/linkauth/transport/httpapi"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(2)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, logger *slog.Logger) error {
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		logger.Info("redis connected", slog.String("addr", cfg.Redis.Addr))
	}

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	builder := linkauth.New().
		WithConfig(cfg.EngineConfig()).
		WithCredentialStore(store).
		WithLogger(logger)

	if rdb != nil {
		builder = builder.
			WithRedis(rdb).
			WithExchangeStore(exchange.NewRedisStore(rdb, cfg.Redis.Prefix+":oauth:code"))
	} else {
		codes := exchange.NewMemoryStore()
		go codes.Janitor(ctx, cfg.ExchangeJanitor)
		builder = builder.WithExchangeStore(codes)
	}
	if cfg.Audit.Enabled {
		builder = builder.WithAuditSink(linkauth.NewSlogSink(logger.With(slog.String("stream", "audit"))))
	}

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	go func() {
		if err := engine.RunRefreshSweeper(ctx); err != nil {
			logger.Error("refresh sweeper failed", slog.String("error", err.Error()))
		}
	}()

	apiCfg := httpapi.Config{
		FrontendURL: cfg.FrontendURL,
		StateTTL:    cfg.OAuthStateTTL,
		Logger:      logger,

		TrustProxyHeaders: cfg.TrustProxyHeaders,
	}
	if cfg.Metrics.Enabled {
		apiCfg.Metrics = prometheus.New(engine).Handler()
	}
	if cfg.Google.Enabled() {
		apiCfg.Provider = google.New(cfg.GoogleConfig())
		apiCfg.States = stores.NewOAuthStateStore(rdb, cfg.Redis.Prefix+":oauth:state")
	} else {
		logger.Warn("google oauth disabled: GOOGLE_CLIENT_ID or GOOGLE_CLIENT_SECRET not set")
	}

	api, err := httpapi.New(engine, apiCfg)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", cfg.HTTPAddr), slog.String("store", cfg.StoreDriver))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg config.Server, logger *slog.Logger) (linkauth.CredentialStore, func(), error) {
	if cfg.StoreDriver != config.StorePostgres {
		logger.Warn("using in-memory credential store; accounts are lost on restart")
		return memory.New(), func() {}, nil
	}

	pool, err := postgres.Connect(ctx, cfg.PostgresConfig())
	if err != nil {
		return nil, nil, err
	}
	db := postgres.OpenDB(pool)
	closeAll := func() {
		_ = db.Close()
		pool.Close()
	}

	if cfg.Postgres.Migrate {
		if err := postgres.Migrate(ctx, db, logger); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return postgres.New(db), closeAll, nil
}
