package api

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures the API routes
func SetupRoutes(handler *Handler) *gin.Engine {
	router := gin.New()
	router.Use(Recovery())
	router.Use(CORS())
	router.Use(Logger())

	router.GET("/health", handler.HealthCheck)

	v1 := router.Group("/api/v1")
	{
		repos := v1.Group("/repos/:owner/:repo")
		{
			repos.GET("/items", handler.GetItems)
			repos.GET("/summary", handler.GetSummary)
		}
	}

	return router
}
