package api

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/f1-velocity/internal/api/handlers"
	"github.com/stitts-dev/f1-velocity/internal/prediction"
	"github.com/stitts-dev/f1-velocity/internal/services"
)

// Dependencies are the services the routes are served from. Stats and
// Images may be nil, in which case their routes are not registered.
// Retrain and Breakers are reported by /health when set.
type Dependencies struct {
	Predictor *prediction.Service
	Stats     handlers.StatsStore
	Images    *services.ImageService
	Database  handlers.Pinger
	Retrain   handlers.RetrainStatus
	Breakers  handlers.BreakerStatus
	Logger    *logrus.Logger
}

// SetupRoutes registers /health on router and the API under /api/v1
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler(deps.Predictor, deps.Database, deps.Retrain, deps.Breakers, deps.Logger)
	predictionHandler := handlers.NewPredictionHandler(deps.Predictor, deps.Logger)

	var imageReloader services.Reloader
	if deps.Images != nil {
		imageReloader = services.ReloaderFunc(deps.Images.Load)
	}
	adminHandler := handlers.NewAdminHandler(deps.Predictor, deps.Predictor, imageReloader, deps.Logger)

	router.GET("/health", healthHandler.GetHealth)

	group := router.Group("/api/v1")

	// Prediction endpoints
	group.GET("/predict", predictionHandler.GetPrediction)
	group.GET("/lookups/:kind", predictionHandler.GetLookup)

	// Stats endpoints
	if deps.Stats != nil {
		statsHandler := handlers.NewStatsHandler(deps.Stats, deps.Logger)
		dashboardHandler := handlers.NewDashboardHandler(deps.Stats, deps.Logger)

		group.GET("/stats/overview", statsHandler.GetOverview)
		group.GET("/stats/decades", statsHandler.GetDecades)
		group.GET("/stats/hall-of-fame", statsHandler.GetHallOfFame)
		group.GET("/stats/drivers/:name", statsHandler.GetDriverProfile)
		group.GET("/dashboard/hall-of-fame", dashboardHandler.GetHallOfFameChart)
	}

	// Image endpoints
	if deps.Images != nil {
		imageHandler := handlers.NewImageHandler(deps.Images)
		group.GET("/images/drivers/:name", imageHandler.GetDriverImage)
		group.GET("/images/teams/:name", imageHandler.GetTeamImage)
	}

	// Admin endpoints (should be protected in production)
	admin := group.Group("/admin")
	{
		admin.POST("/reload", adminHandler.Reload)
	}
}
