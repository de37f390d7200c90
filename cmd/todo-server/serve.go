package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	goTodo "github.com/MrEthical07/goTodo"
	"github.com/MrEthical07/goTodo/internal/audit"
	"github.com/MrEthical07/goTodo/internal/backends"
	"github.com/MrEthical07/goTodo/internal/bootstrap"
	"github.com/MrEthical07/goTodo/internal/logging"
	"github.com/MrEthical07/goTodo/internal/users"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	flagTrustProxy      bool
	flagShutdownTimeout time.Duration

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Connect to MongoDB and Redis and serve the HTTP API",
		RunE:  runServe,
	}
)

func init() {
	serveCmd.Flags().BoolVar(&flagTrustProxy, "trust-proxy", false, "take the client IP from X-Forwarded-For")
	serveCmd.Flags().DurationVar(&flagShutdownTimeout, "shutdown-timeout", 10*time.Second, "time allowed for in-flight requests on shutdown")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := goTodo.LoadConfig(flagEnvFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer closer.Close()

	logger.Info().
		Str("app", cfg.App.Name).
		Str("version", cfg.App.Version).
		Str("config_source", cfg.App.ConfigSource).
		Msg("starting")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := goTodo.NewMetrics(cfg.Metrics)
	probeFailed := func(int, error) { metrics.Inc(goTodo.MetricBootstrapProbeFailure) }

	mongoHandle := bootstrap.NewHandle[*mongo.Client]("mongo")
	redisHandle := bootstrap.NewHandle[*redis.Client]("redis")

	mongoLife := backends.MongoLifespan(cfg.Mongo, cfg.Bootstrap.Cleanup, logger)
	mongoLife.OnRetry = probeFailed
	redisLife := backends.RedisLifespan(cfg.Redis, cfg.Bootstrap.Cleanup, logger)
	redisLife.OnRetry = probeFailed

	return mongoLife.Run(ctx, mongoHandle, func(ctx context.Context) error {
		return redisLife.Run(ctx, redisHandle, func(ctx context.Context) error {
			return serve(ctx, cfg, logger, metrics, mongoHandle, redisHandle)
		})
	})
}

func serve(
	ctx context.Context,
	cfg goTodo.Config,
	logger zerolog.Logger,
	metrics *goTodo.Metrics,
	mongoHandle *bootstrap.Handle[*mongo.Client],
	redisHandle *bootstrap.Handle[*redis.Client],
) error {
	db, err := backends.Database(mongoHandle, cfg.Mongo.Database)
	if err != nil {
		return err
	}
	rdb, err := redisHandle.Get()
	if err != nil {
		return err
	}

	if err := users.EnsureIndexes(ctx, db); err != nil {
		logger.Warn().Err(err).Msg("could not ensure user indexes")
	}

	engine, err := goTodo.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(users.NewRepository(db)).
		WithAuditSink(audit.MultiSink{audit.NewMongoSink(db), audit.NewLogSink(logger)}).
		WithLogger(logger).
		WithMetrics(metrics).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	report := engine.SecurityReport()
	logger.Info().
		Str("password_algorithm", string(report.PasswordAlgorithm)).
		Dur("access_ttl", report.AccessTTL).
		Dur("refresh_ttl", report.RefreshTTL).
		Bool("rate_limiting", report.RateLimitingActive).
		Bool("audit", report.AuditEnabled).
		Int("findings", len(report.Findings)).
		Msg("security posture")

	handler := newRouter(routerConfig{
		App:        cfg.App,
		Engine:     engine,
		Metrics:    cfg.Metrics.Enabled,
		TrustProxy: flagTrustProxy,
		Logger:     logger,
		Checks: map[string]healthCheck{
			"redis": func(ctx context.Context) error {
				_, err := engine.Ping(ctx)
				return err
			},
			"mongo": func(ctx context.Context) error {
				client, err := mongoHandle.Get()
				if err != nil {
					return err
				}
				return backends.PingMongo(ctx, client)
			},
		},
	})

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.App.Host, strconv.Itoa(cfg.App.Port)),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), flagShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
