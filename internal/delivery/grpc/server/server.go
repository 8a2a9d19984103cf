package server

import (
	"context"
	"log/slog"
	"time"

	"blog/internal/delivery/grpc/interceptor"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name health checks are reported under.
const ServiceName = "blog.v1.BlogAPI"

// Check returns the failing dependencies by name; empty means healthy.
type Check func(ctx context.Context) map[string]string

func NewServer(logger *slog.Logger, healthServer *health.Server) *grpc.Server {
	s := grpc.NewServer(grpc.UnaryInterceptor(interceptor.LoggingInterceptor(logger)))
	healthpb.RegisterHealthServer(s, healthServer)
	return s
}

// HealthReporter keeps the gRPC health status in sync with the dependency check.
type HealthReporter struct {
	server   *health.Server
	check    Check
	interval time.Duration
	logger   *slog.Logger
}

func NewHealthReporter(server *health.Server, check Check, interval time.Duration, logger *slog.Logger) *HealthReporter {
	return &HealthReporter{server: server, check: check, interval: interval, logger: logger}
}

// Run checks immediately and then every interval until ctx is done, at which
// point every service is reported NOT_SERVING.
func (r *HealthReporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		r.report(ctx)
		select {
		case <-ctx.Done():
			r.server.Shutdown()
			return nil
		case <-ticker.C:
		}
	}
}

func (r *HealthReporter) report(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if failed := r.check(ctx); len(failed) > 0 {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		r.logger.Warn("dependencies unhealthy", "failed", failed)
	}
	r.server.SetServingStatus("", status)
	r.server.SetServingStatus(ServiceName, status)
}
