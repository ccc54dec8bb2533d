package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/medischedule-api/internal/handler"
	aihandler "github.com/jwalitptl/medischedule-api/internal/handler/ai"
	"github.com/jwalitptl/medischedule-api/internal/handler/health"
	promhandler "github.com/jwalitptl/medischedule-api/internal/handler/prometheus"
	"github.com/jwalitptl/medischedule-api/internal/middleware"
)

// APIPrefix is the path every API route lives under.
const APIPrefix = "/api"

type Handler interface {
	RegisterRoutes(*gin.RouterGroup, *middleware.AuthMiddleware)
}

type Handlers struct {
	Auth           Handler
	Directory      Handler
	Appointment    Handler
	Chat           Handler
	Admin          Handler
	DepartmentHead Handler
	AI             *aihandler.Handler
	Health         *health.Handler
}

type RouterConfig struct {
	RateLimit        rate.Limit
	RateBurst        int
	AIRateLimit      rate.Limit
	AIRateBurst      int
	CORSConfig       middleware.CORSConfig
	MetricsNamespace string
	RequestTimeout   time.Duration
	MaxBodySize      int64
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	handlers Handlers
	metrics  *promhandler.Handler
	aiLimit  *middleware.RateLimiter
}

// NewRouter builds the engine and its global middleware chain. HTTP metrics
// are registered on registry, which /metrics then serves.
func NewRouter(auth *middleware.AuthMiddleware, handlers Handlers, registry *prometheus.Registry, config RouterConfig) (*Router, error) {
	if err := middleware.RegisterValidators(); err != nil {
		return nil, err
	}

	engine := gin.New()
	r := &Router{
		engine:   engine,
		auth:     auth,
		handlers: handlers,
		metrics:  promhandler.New(registry, config.MetricsNamespace),
		aiLimit: middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.AIRateLimit,
			Burst: config.AIRateBurst,
		}),
	}

	maxBody := config.MaxBodySize
	if maxBody <= 0 {
		maxBody = middleware.DefaultMaxBodySize
	}
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:  config.RateLimit,
		Burst: config.RateBurst,
	})

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(),
		r.metrics.Middleware(),
		middleware.CORS(config.CORSConfig),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.SizeLimit(maxBody),
		middleware.Timeout(config.RequestTimeout),
		rateLimiter.RateLimit(),
	)
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, handler.NewErrorResponse("not found"))
	})

	r.setup()
	return r, nil
}

func (r *Router) setup() {
	r.engine.GET("/metrics", r.metrics.Handler())
	r.handlers.Health.RegisterRoutes(r.engine)

	api := r.engine.Group(APIPrefix)
	r.handlers.Health.RegisterRoutes(api)

	for _, h := range []Handler{
		r.handlers.Auth,
		r.handlers.Directory,
		r.handlers.Appointment,
		r.handlers.Chat,
		r.handlers.Admin,
		r.handlers.DepartmentHead,
	} {
		h.RegisterRoutes(api, r.auth)
	}
	r.handlers.AI.RegisterRoutes(api, r.auth, r.aiLimit.RateLimit())
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
