package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/plonguo/portfolio-api/internal/common"
	"github.com/plonguo/portfolio-api/internal/config"
	"github.com/plonguo/portfolio-api/internal/httpapi/handlers"
	"github.com/plonguo/portfolio-api/internal/httpapi/middleware"
)

func NewRouter(cfg config.Config, h *handlers.Handler) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, common.CodeValidation, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, common.CodeValidation, "Method not allowed")
	})

	r.GET("/ping", h.Ping)

	chatGate := middleware.OriginGate(cfg.AllowedOrigins, "POST, OPTIONS", true)
	r.POST("/chat", chatGate, h.ChatStream)
	r.OPTIONS("/chat", chatGate)

	// the commits widget tolerates origin-less callers (curl, health checks)
	commitsGate := middleware.OriginGate(cfg.AllowedOrigins, "GET, OPTIONS", false)
	r.GET("/commits", commitsGate, h.RecentCommits)
	r.OPTIONS("/commits", commitsGate)

	return r
}
