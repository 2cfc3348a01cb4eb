// Package control is the HTTP operator surface: anomaly injection control,
// fleet inspection, health and prometheus metrics.
package control

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	emulator "github.com/synaptecltd/sensorsim"
	"github.com/synaptecltd/sensorsim/anomaly"
	"go.uber.org/zap"
)

// Dependencies groups objects the HTTP layer needs.
type Dependencies struct {
	Controller   *anomaly.Controller
	Fleet        *emulator.Fleet     // optional, serves /api/sensors and category lookup
	Gatherer     prometheus.Gatherer // defaults to prometheus.DefaultGatherer
	Logger       *zap.Logger
	AllowOrigins []string // empty allows all origins
}

// NewRouter configures all HTTP routes.
func NewRouter(deps Dependencies) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(deps.Logger))

	corsCfg := cors.DefaultConfig()
	if len(deps.AllowOrigins) > 0 {
		corsCfg.AllowOrigins = deps.AllowOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	r.Use(cors.New(corsCfg))

	h := &handler{ctrl: deps.Controller, fleet: deps.Fleet, logger: deps.Logger}

	api := r.Group("/api")
	anomalies := api.Group("/anomalies")
	anomalies.GET("/status", h.status)
	anomalies.POST("/enable", h.enable)
	anomalies.POST("/disable", h.disable)
	anomalies.POST("/force", h.force)
	anomalies.POST("/clear", h.clear)
	api.GET("/sensors", h.sensors)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))

	return r
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}
