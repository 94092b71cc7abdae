package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"

	"github.com/mrodz/mql-grouping-engine/pkg/infrastructure/logging"
)

// NewRouter wires the routes. metrics may be nil.
func NewRouter(handler *AllocationHandler, metrics http.Handler, logger logr.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	router.GET("/healthz", handler.Health)
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}

	v1 := router.Group("/v1")
	{
		v1.POST("/allocate", handler.Allocate)
		v1.GET("/solutions", handler.ListSolutions)
		v1.GET("/solutions/:id", handler.GetSolution)
		v1.GET("/solutions/:id/events", handler.GetSolutionEvents)
		v1.GET("/events", handler.ListEvents)
	}
	return router
}

func requestLogger(logger logr.Logger) gin.HandlerFunc {
	logger = logger.WithName("http")
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()
		logger.V(logging.DEBUG).Info("Request served",
			"method", ctx.Request.Method,
			"path", ctx.FullPath(),
			"status", ctx.Writer.Status(),
			"latency", time.Since(start))
	}
}
