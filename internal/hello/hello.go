// Package hello serves the standalone Hello World endpoint.
package hello

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const Greeting = "Hello World"

// NewRouter returns the HTTP handler of the hello server.
func NewRouter(logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(logger))

	engine.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, Greeting)
	})
	return engine
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("HTTP request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("took", time.Since(start)),
		)
	}
}
