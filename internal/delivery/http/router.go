package http

import (
	"log/slog"
	"net/http"

	authHandler "blog/internal/delivery/http/auth_handler"
	blogHandler "blog/internal/delivery/http/blog_handler"
	"blog/internal/delivery/http/requestctx"
	metrics "blog/internal/metrics"

	"github.com/labstack/echo/v4"
	middleware "github.com/labstack/echo/v4/middleware"
)

type Handlers struct {
	Auth    *authHandler.AuthHandler
	Blog    *blogHandler.BlogHandler
	Health  *HealthHandler
	Metrics http.Handler
}

func MapRoutes(
	e *echo.Echo,
	h Handlers,
	authUsecase AuthUsecase,
	limiter RateLimiter,
	logger *slog.Logger,
	m *metrics.Metrics,
) {
	// Middlewares
	e.Pre(middleware.AddTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper:   middleware.DefaultSkipper,
		LogURI:    true,
		LogMethod: true,
		LogStatus: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				logger.Error("HTTP request error",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"user", requestctx.Username(c),
					"error", v.Error,
				)
				return nil
			}

			logger.Info("HTTP request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"user", requestctx.Username(c),
			)

			return nil
		},
	},
	))
	e.Use(MetricsMiddleware(m))

	requireAuth := AuthMiddleware(authUsecase)
	rateLimit := RateLimitMiddleware(limiter, logger)

	//auth routes
	e.POST("/register/", h.Auth.Register, rateLimit)
	e.POST("/login/", h.Auth.Login, rateLimit)
	e.POST("/logout/", h.Auth.Logout, requireAuth)
	e.POST("/token/refresh/", h.Auth.RefreshToken)

	//categories
	e.GET("/categories/", h.Blog.ListCategories)
	e.POST("/categories/", h.Blog.CreateCategory, requireAuth)
	e.GET("/categories/:id/", h.Blog.GetCategory)
	e.PUT("/categories/:id/", h.Blog.PutCategory, requireAuth)
	e.PATCH("/categories/:id/", h.Blog.PatchCategory, requireAuth)
	e.DELETE("/categories/:id/", h.Blog.DeleteCategory, requireAuth)

	//posts
	e.GET("/posts/", h.Blog.ListPosts)
	e.POST("/posts/", h.Blog.CreatePost, requireAuth)
	e.GET("/posts/:id/", h.Blog.GetPost)
	e.PUT("/posts/:id/", h.Blog.PutPost, requireAuth)
	e.PATCH("/posts/:id/", h.Blog.PatchPost, requireAuth)
	e.DELETE("/posts/:id/", h.Blog.DeletePost, requireAuth)

	//comments
	e.GET("/comments/", h.Blog.ListComments)
	e.POST("/comments/", h.Blog.CreateComment, requireAuth)
	e.GET("/comments/:id/", h.Blog.GetComment)
	e.PUT("/comments/:id/", h.Blog.PutComment, requireAuth)
	e.PATCH("/comments/:id/", h.Blog.PatchComment, requireAuth)
	e.DELETE("/comments/:id/", h.Blog.DeleteComment, requireAuth)

	//service
	e.GET("/healthz/", h.Health.Check)
	if h.Metrics != nil {
		e.GET("/metrics/", echo.WrapHandler(h.Metrics))
	}

	logger.Info("HTTP routes mapped successfully")
}
