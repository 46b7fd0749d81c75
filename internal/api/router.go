package api

import (
	"github.com/gin-gonic/gin"

	"github.com/timmy/cryptoetl/internal/api/handler"
	"github.com/timmy/cryptoetl/internal/api/middleware"
	"github.com/timmy/cryptoetl/internal/logger"
	"github.com/timmy/cryptoetl/internal/repository"
)

// SetupRouter configures the Gin router with all routes.
// etlHandler is shared with callers that trigger runs outside HTTP.
func SetupRouter(
	etlHandler *handler.ETLHandler,
	repo *repository.ETLRepository,
	log *logger.Logger,
	mode string,
) *gin.Engine {
	return newRouter(etlHandler, repo, log, mode)
}

func newRouter(
	etlHandler *handler.ETLHandler,
	checker handler.HealthChecker,
	log *logger.Logger,
	mode string,
) *gin.Engine {
	switch mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))

	healthHandler := handler.NewHealthHandler(checker)

	r.GET("/health", healthHandler.Health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/stats", etlHandler.Stats)
		v1.GET("/runs", etlHandler.Runs)
		v1.GET("/drift", etlHandler.Drift)

		etl := v1.Group("/etl")
		etl.GET("/status", etlHandler.Status)
		etl.POST("/run", etlHandler.RunAll)
		etl.POST("/run/:source", etlHandler.RunSource)
	}

	return r
}
