package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/identityhub/internal/auth"
	"github.com/geocoder89/identityhub/internal/domain/user"
	"github.com/geocoder89/identityhub/internal/http/handlers"
	"github.com/geocoder89/identityhub/internal/http/middlewares"
	"github.com/geocoder89/identityhub/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type Deps struct {
	Log   *slog.Logger
	Dev   bool
	Users *handlers.UsersHandler
	Auth  *handlers.AuthHandler
	// Secret serves GET /secret-resource behind the multi-channel gate.
	Secret *handlers.SecretHandler
	Health *handlers.HealthHandler
	Guard  *auth.Guard

	RateLimitStore  middlewares.CounterStore
	RateLimitMax    int
	RateLimitWindow time.Duration

	// UserRateLimitMax caps authenticated /users traffic per caller; 0 disables it.
	UserRateLimitMax int

	CORSAllowedOrigins []string
	MaxBodyBytes       int64

	// Prom and Gatherer are optional; without them /metrics is not mounted.
	Prom        *observability.Prom
	Gatherer    prometheus.Gatherer
	ServiceName string
}

func NewRouter(d Deps) *gin.Engine {
	if !d.Dev {
		gin.SetMode(gin.ReleaseMode)
	}
	log := d.Log
	if log == nil {
		log = slog.Default()
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true

	// middleware
	r.Use(middlewares.Recovery(log))
	if d.ServiceName != "" {
		r.Use(otelgin.Middleware(d.ServiceName))
	}
	r.Use(middlewares.RequestID())
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders(!d.Dev))
	r.Use(middlewares.CORSMiddleware(d.CORSAllowedOrigins))
	if d.MaxBodyBytes > 0 {
		r.Use(middlewares.MaxBodyBytes(d.MaxBodyBytes))
	}
	r.Use(middlewares.RequireJSON())

	r.NoRoute(func(ctx *gin.Context) {
		handlers.RespondError(ctx, http.StatusNotFound, "not_found", "Endpoint not found", nil)
	})
	r.NoMethod(func(ctx *gin.Context) {
		handlers.RespondError(ctx, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed", nil)
	})

	// health
	h := d.Health
	if h == nil {
		h = handlers.NewHealthHandler()
	}
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	r.GET("/health", h.Health)

	if d.Prom != nil && d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	r.GET("/docs", handlers.SwaggerUI)
	r.GET("/docs/openapi.yaml", handlers.OpenAPISpec)

	var tokenMetrics middlewares.TokenMetrics
	var rateMetrics middlewares.RateLimitMetrics
	if d.Prom != nil {
		tokenMetrics = d.Prom
		rateMetrics = d.Prom
	}
	authMW := middlewares.NewAuthMiddleware(d.Guard, tokenMetrics, log)

	// auth
	authGroup := r.Group("/auth")
	if d.RateLimitStore != nil && d.RateLimitMax > 0 {
		rl := middlewares.NewRateLimiter(d.RateLimitStore, d.RateLimitMax, d.RateLimitWindow, rateMetrics, log)
		authGroup.Use(rl.RateLimiterMiddleware(middlewares.KeyByIP))
	}
	authGroup.POST("/login", d.Auth.Login)
	authGroup.POST("/register", d.Auth.Register)

	// users
	users := r.Group("/users", authMW.RequireAuth())
	if d.RateLimitStore != nil && d.UserRateLimitMax > 0 {
		perUser := middlewares.NewRateLimiter(d.RateLimitStore, d.UserRateLimitMax, d.RateLimitWindow, rateMetrics, log)
		users.Use(perUser.RateLimiterMiddleware(middlewares.KeyByUserOrIP))
	}
	users.GET("", d.Users.ListUsers)
	users.GET("/:id", d.Users.GetUser)
	users.PUT("/:id", d.Users.UpdateUser)
	users.DELETE("/:id", authMW.RequireRole(user.RoleAdmin), d.Users.DeleteUser)

	// gated stats; the gate runs its own bearer check
	r.GET("/secret-resource", d.Secret.GetStats)

	return r
}
