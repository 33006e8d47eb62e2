package router

import (
	"net/http"

	"github.com/Rohit-kaushik45/bullreckon/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "realtime-service",
		})
	})

	jobHandler := handler.NewJobHandler(deps)
	wsHandler := handler.NewWSHandler(deps)

	// WebSocket endpoint
	r.GET("/ws", wsHandler.Connect)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			jobs.POST("", jobHandler.CreateJob)
			jobs.GET("/:job_id", jobHandler.GetJob)
		}

		v1.GET("/queues/:queue/stats", jobHandler.QueueStats)
		v1.POST("/broadcast", wsHandler.Broadcast)
	}

	return r
}
