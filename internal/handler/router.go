package handler

import (
	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	Search    *SearchHandler
	Materials *MaterialHandler
	Health    *HealthHandler
	// PageLimit guards the page rendering route; nil disables it.
	PageLimit gin.HandlerFunc
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/health", deps.Health.Check)
	api.POST("/search/semantic", deps.Search.Semantic)
	api.GET("/material/:material_id/info", deps.Materials.Info)

	page := []gin.HandlerFunc{deps.Materials.Page}
	if deps.PageLimit != nil {
		page = append([]gin.HandlerFunc{deps.PageLimit}, page...)
	}
	api.GET("/pdf/:material_id/page/:page", page...)
}
