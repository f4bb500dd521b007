package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"invoice-backend/internal/events"
	"invoice-backend/internal/records"
	"invoice-backend/internal/services/health"
	"invoice-backend/internal/shared/config"
	"invoice-backend/internal/shared/metrics"
	"invoice-backend/internal/shared/server/middleware"
	"invoice-backend/internal/shared/server/respond"
)

const uploadRateGroup = "UPLOAD"

// RouterDeps carries the handlers the router mounts.
type RouterDeps struct {
	Config  config.Config
	Records *records.Handler
	Events  *events.Handler
	Health  *health.Service
	// Limiter is shared across routers in tests; nil builds a fresh one.
	Limiter *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules: map[string]middleware.RateLimitRule{
				uploadRateGroup: {Rate: deps.Config.UploadRatePerSec, Burst: deps.Config.UploadRateBurst},
			},
			GroupFor: rateGroup,
			Limiter:  deps.Limiter,
		}),
	)

	r.GET("/healthz", func(c *gin.Context) {
		if deps.Health == nil {
			respond.OK(c, gin.H{"ok": true})
			return
		}
		payload, ok := deps.Health.Status(c.Request.Context())
		status := http.StatusOK
		if !ok {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, payload)
	})
	r.GET("/metrics", metrics.Handler())

	if deps.Records != nil {
		deps.Records.RegisterRoutes(r)
	}
	if deps.Events != nil {
		deps.Events.RegisterRoutes(r)
	}

	return r
}

func rateGroup(c *gin.Context) string {
	if c.Request.Method == http.MethodPost && c.FullPath() == "/upload" {
		return uploadRateGroup
	}
	return ""
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
