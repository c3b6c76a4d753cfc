package routes

import (
	"github.com/gin-gonic/gin"

	"tabledesk/internal/handlers"
	"tabledesk/internal/middlewares"
	"tabledesk/internal/utils"
)

type UserRoutes struct {
	userHandler  *handlers.UserHandler
	authenticate gin.HandlerFunc
}

func NewUserRoutes(userHandler *handlers.UserHandler, authenticate gin.HandlerFunc) *UserRoutes {
	return &UserRoutes{
		userHandler:  userHandler,
		authenticate: authenticate,
	}
}

func (r *UserRoutes) RegisterRoutes(router *gin.RouterGroup) {
	users := router.Group("/users")
	users.Use(r.authenticate) // All user routes require authentication
	{
		users.GET("", r.userHandler.ListUsers)
		users.GET("/:name", r.userHandler.GetUser)

		// Admin-only routes
		users.DELETE("/:name", middlewares.RequireRole(utils.RoleAdmin), r.userHandler.DeleteUser)
	}
}
