package http

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is a dependency the service needs to serve requests.
type Pinger interface {
	Ping(ctx context.Context) error
}

type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type HealthHandler struct {
	deps    map[string]Pinger
	timeout time.Duration
}

func NewHealthHandler(deps map[string]Pinger) *HealthHandler {
	return &HealthHandler{deps: deps, timeout: 2 * time.Second}
}

// Status pings every dependency and returns the failures by name.
func (h *HealthHandler) Status(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	failed := map[string]string{}
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	return failed
}

func (h *HealthHandler) Check(c echo.Context) error {
	failed := h.Status(c.Request().Context())
	if len(failed) > 0 {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failed": failed})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
