package v1

import (
	"github.com/gin-gonic/gin"
)

// CRUDRouteHandler is implemented by handlers exposing the standard resource routes.
type CRUDRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
}

// MutableRouteHandler adds update and delete to CRUDRouteHandler.
type MutableRouteHandler interface {
	CRUDRouteHandler
	Update(c *gin.Context)
	Delete(c *gin.Context)
}

// MovementsRouteHandler is an optional interface for resources with stock movements.
type MovementsRouteHandler interface {
	Movements(c *gin.Context)
}

// RegisterCRUDRoutes registers the standard routes for a resource. Update and
// delete are registered when the handler supports them, as is the movements
// sub-resource.
func RegisterCRUDRoutes(group *gin.RouterGroup, handler CRUDRouteHandler) {
	group.GET("", handler.List)
	group.POST("", handler.Create)
	group.GET("/:id", handler.Get)

	if mutable, ok := handler.(MutableRouteHandler); ok {
		group.PUT("/:id", mutable.Update)
		group.DELETE("/:id", mutable.Delete)
	}
	if mv, ok := handler.(MovementsRouteHandler); ok {
		group.GET("/:id/movements", mv.Movements)
	}
}
