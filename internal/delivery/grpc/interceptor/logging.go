package interceptor

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// LoggingInterceptor logs every unary call with its method, status code and duration.
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		if err != nil {
			logger.Warn("gRPC request error", "method", info.FullMethod, "code", code.String(), "error", err, "duration", time.Since(start))
			return resp, err
		}
		logger.Debug("gRPC request", "method", info.FullMethod, "code", code.String(), "duration", time.Since(start))
		return resp, nil
	}
}
