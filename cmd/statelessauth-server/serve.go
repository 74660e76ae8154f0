package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/statelessauth"
	"github.com/MrEthical07/statelessauth/httpapi"
	"github.com/MrEthical07/statelessauth/internal/rate"
	promexport "github.com/MrEthical07/statelessauth/metrics/export/prometheus"
	"github.com/MrEthical07/statelessauth/store/memstore"
	"github.com/MrEthical07/statelessauth/store/pgstore"
	"github.com/MrEthical07/statelessauth/store/redisstore"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(cfg.Log)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return serve(ctx, cfg, logger)
	},
}

func init() {
	serveCmd.Flags().String("server.addr", "", "listen address, e.g. :8080")
	rootCmd.AddCommand(serveCmd)
}

// backend is the set of resources a server run owns.
type backend struct {
	store   statelessauth.PrincipalStore
	redis   redis.UniversalClient
	closers []func()
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackend(ctx context.Context, c *serverConfig, logger *zap.Logger) (*backend, error) {
	b := &backend{}

	if c.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		b.redis = client
		b.closers = append(b.closers, func() { _ = client.Close() })
	}

	switch c.Store.Driver {
	case "memory":
		logger.Warn("using in-memory principal store; accounts are lost on restart")
		b.store = memstore.New()
	case "postgres":
		pcfg := pgstore.DefaultPoolConfig(c.Postgres.DSN)
		if c.Postgres.MaxConns > 0 {
			pcfg.MaxConns = c.Postgres.MaxConns
		}
		pool, err := pgstore.Connect(ctx, pcfg)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)
		store := pgstore.New(pool)
		if c.Store.Migrate {
			if err := store.EnsureSchema(ctx); err != nil {
				b.Close()
				return nil, err
			}
			logger.Info("database schema ensured")
		}
		b.store = store
	case "redis":
		b.store = redisstore.New(b.redis, redisstore.Options{Prefix: c.Redis.Prefix})
	default:
		b.Close()
		return nil, fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	logger.Info("principal store ready", zap.String("driver", c.Store.Driver))
	return b, nil
}

func buildEngine(c *serverConfig, store statelessauth.PrincipalStore, logger *zap.Logger) (*statelessauth.Engine, error) {
	ecfg, err := c.engineConfig()
	if err != nil {
		return nil, err
	}

	b := statelessauth.New().
		WithConfig(ecfg).
		WithPrincipalStore(store).
		WithLogger(logger)
	if ecfg.Audit.Enabled {
		b = b.WithAuditSink(statelessauth.NewZapSink(logger.Named("audit")))
	}
	return b.Build()
}

func buildRouter(c *serverConfig, engine *statelessauth.Engine, rdb redis.UniversalClient, logger *zap.Logger) (http.Handler, error) {
	opts := httpapi.RouterOptions{
		Service: engine,
		Logger:  logger,
	}

	if c.Server.Metrics {
		opts.MetricsHandler = promexport.NewExporter(engine).Handler()
	}
	if len(c.CORS.AllowedOrigins) > 0 {
		co := httpapi.DefaultCORSOptions()
		co.AllowedOrigins = c.CORS.AllowedOrigins
		opts.CORSOptions = &co
	} else if c.Security.ProductionMode {
		// No cross-origin access unless configured.
		opts.CORSOptions = &cors.Options{}
	}
	if c.Rate.Enabled {
		limiter, err := rate.New(rdb, rate.Config{
			Prefix:      c.Redis.Prefix + "rl:",
			MaxAttempts: c.Rate.MaxAttempts,
			Window:      c.Rate.Window,
		})
		if err != nil {
			return nil, err
		}
		opts.Limiter = limiter
	}

	return httpapi.NewRouter(opts), nil
}

func serve(ctx context.Context, c *serverConfig, logger *zap.Logger) error {
	be, err := openBackend(ctx, c, logger)
	if err != nil {
		return err
	}
	defer be.Close()

	engine, err := buildEngine(c, be.store, logger)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	report := engine.SecurityReport()
	logger.Info("security posture",
		zap.Bool("production_mode", report.ProductionMode),
		zap.String("signing_algorithm", report.SigningAlgorithm),
		zap.Duration("access_ttl", report.AccessTTL),
		zap.Duration("refresh_ttl", report.RefreshTTL),
		zap.Bool("cookie_secure", report.CookieSecure),
		zap.String("cookie_same_site", report.CookieSameSite),
		zap.Bool("audit_enabled", report.AuditEnabled),
	)

	handler, err := buildRouter(c, engine, be.redis, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         c.Server.Addr,
		Handler:      handler,
		ReadTimeout:  c.Server.ReadTimeout,
		WriteTimeout: c.Server.WriteTimeout,
		IdleTimeout:  c.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", c.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownTimeout := c.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
