package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"blog/internal/config"
	grpcServer "blog/internal/delivery/grpc/server"
	routes "blog/internal/delivery/http"
	httpAuthHandler "blog/internal/delivery/http/auth_handler"
	httpBlogHandler "blog/internal/delivery/http/blog_handler"
	"blog/internal/metrics"
	"blog/internal/policy"
	psql "blog/internal/storage/postgres"
	authRepo "blog/internal/storage/postgres/auth"
	blogRepo "blog/internal/storage/postgres/blog"
	redisStore "blog/internal/storage/redis"
	authUs "blog/internal/usecase/auth"
	blogUs "blog/internal/usecase/blog"
	errHandler "blog/pkg/error_handler"
	"blog/pkg/jwt"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/health"
)

const (
	startupWait     = 30 * time.Second
	healthInterval  = 10 * time.Second
	cleanupInterval = time.Hour
)

func main() {
	config := config.LoadConfig()
	logger := setupLogger(config.Env)
	slog.SetDefault(logger)
	logger.Info("Application started", "env", config.Env)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Initialize Postgres connection
	DSN := config.PostgresConfig.DSN()
	pool, err := psql.NewPostgresConnection(ctx, DSN, config.PostgresConfig.MaxConns, startupWait)
	if err != nil {
		logger.Error("Failed to connect to the database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("Connected to the database successfully")

	if err := psql.Migrate(DSN); err != nil {
		logger.Error("Failed to apply migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("Database migrations applied")

	// Initialize Redis connection
	rdb, err := redisStore.NewClient(ctx, config.RedisConfig.Addr, config.RedisConfig.Password, config.RedisConfig.DB, startupWait)
	if err != nil {
		logger.Error("Failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()
	logger.Info("Connected to redis successfully")

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(registry)

	jwtManager := jwt.NewJWTManager(config.JWTConfig.Secret, config.JWTConfig.Issuer, config.JWTConfig.AccessTTL, config.JWTConfig.RefreshTTL)

	// Initialize repositories
	authRepo := authRepo.NewAuthRepo(pool, m)
	blogRepo := blogRepo.NewBlogRepo(pool, m)
	blacklist := redisStore.NewBlacklist(rdb)
	limiter := redisStore.NewRateLimiter(rdb, config.RateLimiterConfig.Limit, config.RateLimiterConfig.Window)

	// Initialize use cases
	authUsecase, err := authUs.NewAuthUsecase(authRepo, authRepo, blacklist, jwtManager, m, logger, 0)
	if err != nil {
		logger.Error("Failed to initialize auth usecase", "error", err)
		os.Exit(1)
	}
	blogUsecase := blogUs.NewBlogUsecase(blogRepo, blogRepo, blogRepo, policy.New(config.PolicyConfig.OwnerOnlyWrites), logger).WithMetrics(m)

	healthHandler := routes.NewHealthHandler(map[string]routes.Pinger{
		"postgres": authRepo,
		"redis": routes.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}),
	})

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = errHandler.HandleError

	routes.MapRoutes(e, routes.Handlers{
		Auth:    httpAuthHandler.NewAuthHandler(authUsecase),
		Blog:    httpBlogHandler.NewBlogHandler(blogUsecase),
		Health:  healthHandler,
		Metrics: promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
	}, authUsecase, limiter, logger, m)

	serverParams := &http.Server{
		Addr:         net.JoinHostPort(config.Server.Host, strconv.Itoa(config.Server.Port)),
		Handler:      e,
		ReadTimeout:  config.Server.Timeout,
		WriteTimeout: config.Server.Timeout,
		IdleTimeout:  config.Server.IdleTimeout,
	}

	healthServer := health.NewServer()
	grpcSrv := grpcServer.NewServer(logger, healthServer)
	reporter := grpcServer.NewHealthReporter(healthServer, healthHandler.Status, healthInterval, logger)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := net.JoinHostPort(config.GrpcServer.Host, strconv.Itoa(config.GrpcServer.Port))
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return err
		}
		logger.Info("gRPC server is starting", slog.String("addr", lis.Addr().String()))
		return grpcSrv.Serve(lis)
	})
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("addr", serverParams.Addr))
		if err := serverParams.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return reporter.Run(gCtx)
	})
	g.Go(func() error {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gCtx.Done():
				return nil
			case <-ticker.C:
				n, err := authRepo.DeleteExpiredRefreshTokens(gCtx, time.Now())
				if err != nil {
					logger.Warn("expired refresh token cleanup failed", "error", err)
					continue
				}
				logger.Info("expired refresh tokens removed", "count", n)
			}
		}
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down servers...")

		shutDownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var wg sync.WaitGroup
		wg.Add(2)

		go func() {
			defer wg.Done()
			if err := serverParams.Shutdown(shutDownCtx); err != nil {
				logger.Error("HTTP server shutdown failed", slog.String("error", err.Error()))
			}
		}()

		go func() {
			defer wg.Done()
			grpcSrv.GracefulStop()
		}()

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			logger.Info("All servers stopped gracefully")
		case <-shutDownCtx.Done():
			logger.Warn("Shutdown timeout exceeded, forcing stop")
			grpcSrv.Stop()
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Error("Application stopped with error", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

// setupLogger configures the logger based on the environment (production, development, local).
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger
	switch env {
	case "production":
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	case "development", "local":
		log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return log
}
