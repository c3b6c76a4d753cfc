package routes

import (
	"github.com/gin-gonic/gin"

	"tabledesk/internal/handlers"
)

type TableRoutes struct {
	tableHandler *handlers.TableHandler
	authenticate gin.HandlerFunc
}

func NewTableRoutes(tableHandler *handlers.TableHandler, authenticate gin.HandlerFunc) *TableRoutes {
	return &TableRoutes{
		tableHandler: tableHandler,
		authenticate: authenticate,
	}
}

func (r *TableRoutes) RegisterRoutes(router *gin.RouterGroup) {
	sessions := router.Group("/sessions")
	sessions.Use(r.authenticate)
	{
		sessions.POST("", r.tableHandler.OpenSession)
		sessions.GET("/:session_id", r.tableHandler.GetSession)
		sessions.PATCH("/:session_id", r.tableHandler.UpdateProperties)
		sessions.DELETE("/:session_id", r.tableHandler.Cancel)

		sessions.POST("/:session_id/columns", r.tableHandler.AddColumn)
		sessions.PUT("/:session_id/columns/:column", r.tableHandler.ChangeColumn)
		sessions.DELETE("/:session_id/columns/:column", r.tableHandler.RemoveColumn)

		sessions.POST("/:session_id/constraints", r.tableHandler.AddConstraint)
		sessions.DELETE("/:session_id/constraints/:index", r.tableHandler.RemoveConstraint)

		sessions.POST("/:session_id/inherits", r.tableHandler.AddParent)
		sessions.DELETE("/:session_id/inherits/:parent", r.tableHandler.RemoveParent)

		sessions.GET("/:session_id/plan", r.tableHandler.Preview)
		sessions.POST("/:session_id/commit", r.tableHandler.Commit)
	}

	router.GET("/history", r.authenticate, r.tableHandler.History)
}
