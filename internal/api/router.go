package api

import (
	"github.com/gin-gonic/gin"

	"reelscope/internal/api/handler"
	"reelscope/internal/api/middleware"
	"reelscope/internal/config"
	"reelscope/internal/logger"
	"reelscope/internal/store"
)

// Version is the reported service version, overridable at build time with
// -ldflags "-X reelscope/internal/api.Version=...".
var Version = "dev"

// SetupRouter configures the Gin router with all routes
func SetupRouter(
	cfg *config.Config,
	st store.Store,
	analyze *handler.AnalyzeHandler,
	log *logger.Logger,
) *gin.Engine {
	// Set Gin mode
	switch cfg.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(cfg.Server.CORS))

	healthHandler := handler.NewHealthHandler(st, Version)

	// Health check
	r.GET("/health", healthHandler.Health)

	// Analysis job lifecycle
	r.POST("/analyze", analyze.Submit)
	r.GET("/analyze/:job_id", analyze.Status)
	r.DELETE("/analyze/:job_id", analyze.Cancel)

	return r
}
