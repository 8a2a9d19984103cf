package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"blog/internal/delivery/http/requestctx"
	"blog/internal/metrics"
	authUs "blog/internal/usecase/auth"
	"blog/pkg/customerrors"
	errHandler "blog/pkg/error_handler"

	"github.com/labstack/echo/v4"
)

type AuthUsecase interface {
	// VerifyUser verifies the access token and returns the calling identity.
	VerifyUser(ctx context.Context, token string) (authUs.Identity, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

func AuthMiddleware(authUsecase AuthUsecase) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {

			header := c.Request().Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				return customerrors.ErrUnauthorized
			}

			accessToken := strings.TrimPrefix(header, "Bearer ")

			identity, err := authUsecase.VerifyUser(c.Request().Context(), accessToken)
			if err != nil {
				return err
			}

			requestctx.SetCaller(c, identity.UserID, identity.Username)
			return next(c)
		}
	}
}

// RateLimitMiddleware limits requests per client IP and route. Limiter
// failures let the request through.
func RateLimitMiddleware(limiter RateLimiter, logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.Path() + ":" + c.RealIP()
			allowed, err := limiter.Allow(c.Request().Context(), key)
			if err != nil {
				logger.Error("rate limiter unavailable", "key", key, "error", err)
				return next(c)
			}
			if !allowed {
				return customerrors.ErrTooManyRequests
			}
			return next(c)
		}
	}
}

// MetricsMiddleware records request duration labelled with the route pattern and final status.
func MetricsMiddleware(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				status, _ = errHandler.Status(err)
				m.TotalErrors.WithLabelValues(errorType(err, status)).Inc()
			}

			m.RequestDuration.WithLabelValues(c.Request().Method, c.Path(), strconv.Itoa(status)).
				Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func errorType(err error, status int) string {
	var he *echo.HTTPError
	switch {
	case customerrors.IsValidation(err):
		return "validation"
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return "auth"
	case status == http.StatusNotFound:
		return "not_found"
	case status == http.StatusTooManyRequests:
		return "throttled"
	case errors.As(err, &he):
		return "http"
	default:
		return "internal"
	}
}
