package router

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"userapi/internal/config"
	"userapi/internal/errors"
	"userapi/internal/handler"
	"userapi/internal/middleware"
	"userapi/internal/service"
)

// Handlers groups the HTTP handlers mounted by Register.
type Handlers struct {
	Auth    *handler.AuthHandler
	User    *handler.UserHandler
	GraphQL *handler.GraphQLHandler
}

// Register wires routes and middleware.
func Register(e *echo.Echo, cfg *config.Config, logger *zap.Logger, authenticator middleware.Authenticator, h Handlers) {
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logger))
	e.Use(echomw.Recover())
	e.Use(otelecho.Middleware(cfg.ServiceName))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSAllowedOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	e.Validator = &CustomValidator{}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	requireAuth := middleware.RequireAuth(authenticator)
	limiter := rateLimiter(cfg.RateLimitRPM)

	api := e.Group("/api", limiter)

	// Public routes
	api.POST("/auth/register", h.Auth.Register)
	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/token/refresh", h.Auth.Refresh)

	// Secured routes (require a bearer access token)
	secured := api.Group("", requireAuth)
	secured.POST("/auth/logout", h.Auth.Logout)
	secured.GET("/auth/profile", h.User.GetProfile)
	secured.PATCH("/auth/profile", h.User.UpdateProfile)
	secured.PUT("/auth/profile", h.User.UpdateProfile)
	secured.DELETE("/auth/profile", h.User.DeleteProfile)
	secured.GET("/users", h.User.ListUsers)
	secured.GET("/users/:id", h.User.GetUser)

	e.POST("/graphql", h.GraphQL.Serve, limiter, middleware.OptionalAuth(authenticator))
}

// rateLimiter throttles per client IP. A non-positive budget disables it.
func rateLimiter(requestsPerMinute int) echo.MiddlewareFunc {
	if requestsPerMinute <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}
	store := echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(requestsPerMinute) / 60.0),
		Burst:     burst,
		ExpiresIn: 5 * time.Minute,
	})
	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Store: store,
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, errors.ErrorResponse{
				Error: "too many requests, please slow down",
				Code:  "RATE_LIMITED",
			})
		},
	})
}

// CustomValidator adapts struct validation to echo. Failures come back as
// field-level validation errors.
type CustomValidator struct{}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return service.ValidateStruct(i)
}
