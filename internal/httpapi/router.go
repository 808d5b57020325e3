// Package httpapi exposes the pipeline over HTTP.
package httpapi

import "github.com/gin-gonic/gin"

// Setup configures the Gin engine with all routes and middleware.
func Setup(runH *RunHandler) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(Logger())

	r.GET("/healthz", Liveness)

	runs := r.Group("/api/v1/runs")
	runs.POST("", runH.Submit)
	runs.GET("/:id", runH.Get)
	runs.DELETE("/:id", runH.Cancel)

	return r
}
