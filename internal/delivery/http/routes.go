package http

import (
	"github.com/gin-gonic/gin"
	"github.com/shogun-olives/hacksc-2024-WildIn/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.MaxMultipartMemory = int64(maxUploadMB(cfg)) << 20

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(LoggerMiddleware())
	cors := NewCORSPolicy(cfg.Server.AllowedOrigins)
	router.Use(CORSMiddleware(cors))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	// Annotated images
	if cfg.Storage.DownloadDir != "" {
		router.Static("/files", cfg.Storage.DownloadDir)
	}

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		plants := v1.Group("/plants")
		{
			plants.POST("/identify", handler.IdentifyPlants)
			plants.GET("/results/:id", handler.GetResult)
		}

		catalog := v1.Group("/catalog")
		{
			catalog.GET("/recipes", handler.ListRecipes)
			catalog.GET("/species/:name", handler.GetSpecies)
			catalog.POST("/reload", handler.ReloadCatalog)
		}
	}

	// Preflights advertise exactly the methods registered above
	cors.AllowRoutes(router.Routes())

	return router
}

func maxUploadMB(cfg *config.Config) int {
	if cfg.Server.MaxUploadMB <= 0 {
		return 20
	}
	return cfg.Server.MaxUploadMB
}
