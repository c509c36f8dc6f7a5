package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/ecotrack-accounts/internal/infra/config"
	"github.com/arklim/ecotrack-accounts/internal/transport/http/handlers"
	"github.com/arklim/ecotrack-accounts/internal/transport/http/middleware"
)

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config         *config.AppConfig
	Logger         *zap.Logger
	RateLimiter    *middleware.RateLimiter
	Accounts       handlers.AccountService
	Tokens         middleware.TokenParser
	HTTPMetrics    *middleware.HTTPMetrics
	TracerProvider trace.TracerProvider
	// MetricsHandler serves /metrics. Defaults to the global Prometheus registry.
	MetricsHandler http.Handler
	Store          ReadinessChecker
	Cache          ReadinessChecker
}

// ReadinessChecker exposes readiness behaviour for backing services.
type ReadinessChecker interface {
	Ping(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config != nil && deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Tracing(middleware.TracingOptions{TracerProvider: deps.TracerProvider}))
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(deps.HTTPMetrics.Handler())
	if deps.Config != nil && len(deps.Config.HTTP.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(deps.Config.HTTP.AllowedOrigins))
	}

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Store != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("store", deps.Store.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.Ping))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	metricsHandler := deps.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.GET("/metrics", gin.WrapH(metricsHandler))

	if deps.Accounts == nil {
		return r
	}

	accountHandler := handlers.NewAccountHandler(deps.Accounts)
	users := r.Group("/api/v1/users")
	{
		users.POST("/register", withMiddlewares(accountHandler.Register, buildRegisterMiddlewares(deps)...)...)
		users.POST("/login", withMiddlewares(accountHandler.Login, buildLoginMiddlewares(deps)...)...)

		owned := users.Group("")
		if requireAuth(deps) {
			owned.Use(middleware.RequireAuth(deps.Tokens), middleware.RequireSelf("id"))
		}
		owned.GET("/profile/:id", accountHandler.GetProfile)
		owned.PUT("/profile/:id", accountHandler.UpdateProfile)
		owned.PUT("/email/:id", accountHandler.UpdateEmail)
		owned.PUT("/password/:id", accountHandler.UpdatePassword)
		owned.PUT("/preferences/:id", accountHandler.UpdatePreferences)
		owned.DELETE("/:id", accountHandler.DeleteAccount)
	}

	return r
}

func requireAuth(deps Dependencies) bool {
	if deps.Config == nil {
		return deps.Tokens != nil
	}
	return deps.Config.HTTP.RequireAuth
}

func withMiddlewares(handler gin.HandlerFunc, middlewares ...gin.HandlerFunc) []gin.HandlerFunc {
	return append(middlewares, handler)
}

func buildLoginMiddlewares(deps Dependencies) []gin.HandlerFunc {
	if deps.Config == nil {
		return nil
	}
	return buildIPRateLimit(deps, "login_ip", deps.Config.RateLimit.LoginMaxAttempts)
}

func buildRegisterMiddlewares(deps Dependencies) []gin.HandlerFunc {
	if deps.Config == nil {
		return nil
	}
	return buildIPRateLimit(deps, "register_ip", deps.Config.RateLimit.RegisterMaxAttempts)
}

func buildIPRateLimit(deps Dependencies, name string, limit int) []gin.HandlerFunc {
	if deps.RateLimiter == nil || limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	rule := middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}
