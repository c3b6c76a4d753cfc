package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tabledesk/internal/models"
	"tabledesk/internal/responses"
	"tabledesk/internal/services"
)

type CatalogHandler struct {
	catalogService *services.CatalogService
}

func NewCatalogHandler(catalogService *services.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService}
}

// objectView pairs an object with its property list and reverse engineered SQL.
type objectView struct {
	Object     interface{}       `json:"object"`
	Properties []models.Property `json:"properties"`
	SQL        string            `json:"sql"`
}

// ListTables handles GET /api/v1/tables?schema=public&system=false
func (h *CatalogHandler) ListTables(c *gin.Context) {
	showSystem, _ := strconv.ParseBool(c.DefaultQuery("system", "false"))

	tables, err := h.catalogService.Tables(c.Request.Context(), c.Query("schema"), showSystem)
	if err != nil {
		respondError(c, err, "Failed to retrieve tables")
		return
	}
	responses.Success(c, http.StatusOK, tables, "Tables retrieved successfully")
}

// ListRoles handles GET /api/v1/roles
func (h *CatalogHandler) ListRoles(c *gin.Context) {
	roles, err := h.catalogService.Roles(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to retrieve roles")
		return
	}
	responses.Success(c, http.StatusOK, roles, "Roles retrieved successfully")
}

// ListFunctions handles GET /api/v1/functions?schema=public&triggers=false
func (h *CatalogHandler) ListFunctions(c *gin.Context) {
	triggers, _ := strconv.ParseBool(c.DefaultQuery("triggers", "false"))

	functions, err := h.catalogService.Functions(c.Request.Context(), c.Query("schema"), triggers)
	if err != nil {
		respondError(c, err, "Failed to retrieve functions")
		return
	}

	views := make([]objectView, 0, len(functions))
	for _, f := range functions {
		views = append(views, objectView{Object: f, Properties: f.Properties(), SQL: f.SQL()})
	}
	responses.Success(c, http.StatusOK, views, "Functions retrieved successfully")
}
