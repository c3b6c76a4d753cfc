package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tabledesk/internal/handlers"
)

func RegisterRoutes(
	router *gin.Engine,
	authenticate gin.HandlerFunc,
	tableHandler *handlers.TableHandler,
	catalogHandler *handlers.CatalogHandler,
	userHandler *handlers.UserHandler,
) {
	api := router.Group("/api/v1")

	NewTableRoutes(tableHandler, authenticate).RegisterRoutes(api)
	NewCatalogRoutes(catalogHandler, authenticate).RegisterRoutes(api)
	NewUserRoutes(userHandler, authenticate).RegisterRoutes(api)

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})
}
