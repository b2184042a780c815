package mcpserver

import (
	"net/http"
	"time"

	"brokerage-mcp/internal/logger"
	"brokerage-mcp/internal/metrics"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
)

// Router serves the streamable HTTP transport at /mcp next to /metrics and
// /healthz.
func (s *Server) Router() *gin.Engine {
	zl := logger.Zap()

	router := gin.New()
	router.Use(ginzap.Ginzap(zl, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(zl, true))

	router.Any("/mcp", gin.WrapH(s.Handler()))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": s.now().UTC().Format(time.RFC3339)})
	})
	return router
}
