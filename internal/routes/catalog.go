package routes

import (
	"github.com/gin-gonic/gin"

	"tabledesk/internal/handlers"
)

type CatalogRoutes struct {
	catalogHandler *handlers.CatalogHandler
	authenticate   gin.HandlerFunc
}

func NewCatalogRoutes(catalogHandler *handlers.CatalogHandler, authenticate gin.HandlerFunc) *CatalogRoutes {
	return &CatalogRoutes{catalogHandler: catalogHandler, authenticate: authenticate}
}

func (r *CatalogRoutes) RegisterRoutes(router *gin.RouterGroup) {
	catalog := router.Group("")
	catalog.Use(r.authenticate)
	{
		catalog.GET("/tables", r.catalogHandler.ListTables)
		catalog.GET("/roles", r.catalogHandler.ListRoles)
		catalog.GET("/functions", r.catalogHandler.ListFunctions)
	}
}
