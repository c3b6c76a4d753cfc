package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tabledesk/internal/responses"
	"tabledesk/internal/services"
)

// UserHandler serves the login roles of the administered server.
type UserHandler struct {
	catalogService *services.CatalogService
}

func NewUserHandler(catalogService *services.CatalogService) *UserHandler {
	return &UserHandler{catalogService: catalogService}
}

// ListUsers handles GET /api/v1/users
func (h *UserHandler) ListUsers(c *gin.Context) {
	users, err := h.catalogService.Users(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to retrieve users")
		return
	}
	responses.Success(c, http.StatusOK, users, "Users retrieved successfully")
}

// GetUser handles GET /api/v1/users/:name
func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.catalogService.User(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondError(c, err, "Failed to retrieve user")
		return
	}
	responses.Success(c, http.StatusOK, objectView{Object: user, Properties: user.Properties(), SQL: user.SQL()}, "User retrieved successfully")
}

// DeleteUser handles DELETE /api/v1/users/:name?confirm=true (admin only)
func (h *UserHandler) DeleteUser(c *gin.Context) {
	confirm, _ := strconv.ParseBool(c.Query("confirm"))

	if err := h.catalogService.DropUser(c.Request.Context(), c.Param("name"), confirm); err != nil {
		respondError(c, err, "Failed to drop user")
		return
	}
	responses.Success(c, http.StatusOK, nil, "User dropped successfully")
}
