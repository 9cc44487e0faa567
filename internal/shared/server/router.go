package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"plantdoc/internal/analyses"
	"plantdoc/internal/history"
	"plantdoc/internal/services/health"
	"plantdoc/internal/shared/config"
	"plantdoc/internal/shared/metrics"
	"plantdoc/internal/shared/server/middleware"
	"plantdoc/internal/shared/server/respond"
	"plantdoc/internal/shared/telemetry"
	"plantdoc/internal/treatments"
)

const analysisRateGroup = "ANALYSIS"

// RouterDeps holds handlers used to build the router.
type RouterDeps struct {
	Config           config.Config
	AnalysisHandler  *analyses.Handler
	HistoryHandler   *history.Handler
	TreatmentHandler *treatments.Handler
	Health           *health.Service
	RateLimiter      *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.HandleMethodNotAllowed = true
	if err := r.SetTrustedProxies(deps.Config.TrustedProxies); err != nil {
		telemetry.Warn("server.trusted_proxies_invalid", map[string]any{"error": err})
		_ = r.SetTrustedProxies(nil)
	}

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)
	r.NoRoute(func(c *gin.Context) {
		respond.Error(c, http.StatusNotFound, "not_found", "route not found", nil)
	})
	r.NoMethod(func(c *gin.Context) {
		respond.Error(c, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
	})

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		if deps.Health == nil {
			respond.OK(c, gin.H{"ok": true})
			return
		}
		st := deps.Health.Status(c.Request.Context())
		status := http.StatusOK
		if !st.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, st)
	})
	api.GET("/metrics", metrics.Handler())

	if deps.AnalysisHandler != nil {
		limited := api.Group("", middleware.RateLimit(middleware.RateLimitConfig{
			Rules: map[string]middleware.RateLimitRule{
				analysisRateGroup: {
					PerMinute: float64(deps.Config.RateLimitPerMinute),
					Burst:     deps.Config.RateLimitBurst,
				},
			},
			DefaultGroup: analysisRateGroup,
			Limiter:      deps.RateLimiter,
		}))
		deps.AnalysisHandler.RegisterRoutes(limited)
	}
	if deps.HistoryHandler != nil {
		deps.HistoryHandler.RegisterRoutes(api)
	}
	if deps.TreatmentHandler != nil {
		deps.TreatmentHandler.RegisterRoutes(api)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
