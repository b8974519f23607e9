package httpapi

import (
	"delivery-marketplace/pkg/auth"
	"delivery-marketplace/pkg/config"
	"delivery-marketplace/pkg/health"
	"delivery-marketplace/pkg/metrics"
	"delivery-marketplace/pkg/middleware"
	"delivery-marketplace/pkg/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

var Module = fx.Module("httpapi",
	fx.Provide(NewEngine, NewRouter),
	fx.Invoke(registerOperationalEndpoints),
)

// Router exposes the route groups services mount their handlers on.
// Public is anonymous and limited per IP. Private requires a verified token
// and a policy match, and is limited per user. Webhooks mount on Engine directly.
type Router struct {
	Engine  *gin.Engine
	Public  *gin.RouterGroup
	Private *gin.RouterGroup
}

func NewEngine(cfg *config.Config) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(), middleware.Metrics(), middleware.Error())
	return r
}

type RouterParams struct {
	fx.In
	Engine   *gin.Engine
	Verifier *auth.Verifier
	Enforcer *auth.Enforcer
	Limiter  ratelimit.Limiter
}

func NewRouter(p RouterParams) *Router {
	limit := middleware.RateLimit(p.Limiter)
	return &Router{
		Engine:  p.Engine,
		Public:  p.Engine.Group("/api", limit),
		Private: p.Engine.Group("/api", middleware.Authenticate(p.Verifier), limit, middleware.Authorize(p.Enforcer)),
	}
}

func registerOperationalEndpoints(r *gin.Engine, h health.HealthService) {
	metrics.Register()

	r.GET("/healthz", h.Liveness)
	r.GET("/readyz", h.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
