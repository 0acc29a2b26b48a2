package v1

import (
	"github.com/gin-gonic/gin"
)

// CatalogRouteHandler defines the interface for catalog handlers.
type CatalogRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	GetByCode(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
}

// ActionRouteHandler defines the interface for the action-based document
// endpoints: one GET for fetch and list, POST to create, PUT with an
// action, DELETE with ?id=.
type ActionRouteHandler interface {
	Get(c *gin.Context)
	Create(c *gin.Context)
	Action(c *gin.Context)
}

// ActionDeleter is an optional interface for documents that can be deleted.
type ActionDeleter interface {
	Delete(c *gin.Context)
}

// RegisterCatalogRoutes registers standard CRUD routes for a catalog.
//
// Usage:
//
//	handler := handlers.NewCatalogHandler(base, handlers.CatalogHandlerConfig[*product.Product, dto.ProductRequest]{...})
//	RegisterCatalogRoutes(api.Group("/products"), handler)
func RegisterCatalogRoutes(group *gin.RouterGroup, handler CatalogRouteHandler) {
	group.GET("", handler.List)
	group.POST("", handler.Create)
	group.GET("/by-code/:code", handler.GetByCode)
	group.GET("/:id", handler.Get)
	group.PUT("/:id", handler.Update)
	group.DELETE("/:id", handler.Delete)
}

// RegisterActionRoutes registers the routes of an action-based endpoint.
// If the handler also implements ActionDeleter, DELETE is registered too.
func RegisterActionRoutes(group *gin.RouterGroup, handler ActionRouteHandler) {
	group.GET("", handler.Get)
	group.POST("", handler.Create)
	group.PUT("", handler.Action)

	if deleter, ok := handler.(ActionDeleter); ok {
		group.DELETE("", deleter.Delete)
	}
}
