package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"tabledesk/internal/editor"
	"tabledesk/internal/middlewares"
	"tabledesk/internal/models"
	"tabledesk/internal/reconciler"
	"tabledesk/internal/responses"
	"tabledesk/internal/services"
	"tabledesk/internal/utils"
)

type TableHandler struct {
	tableService *services.TableService
}

func NewTableHandler(tableService *services.TableService) *TableHandler {
	return &TableHandler{
		tableService: tableService,
	}
}

type OpenSessionRequest struct {
	Mode   string `json:"mode" binding:"required"`
	Schema string `json:"schema"`
	Name   string `json:"name" binding:"required"`
}

// PropertiesRequest changes table level properties; absent fields are kept.
type PropertiesRequest struct {
	Name       *string            `json:"name"`
	Owner      *string            `json:"owner"`
	Comment    *string            `json:"comment"`
	Tablespace *string            `json:"tablespace"`
	HasOids    *bool              `json:"has_oids"`
	Grants     []reconciler.Grant `json:"grants"`
}

type ColumnRequest struct {
	Name     string `json:"name"`
	DataType string `json:"data_type" binding:"required"`
	NotNull  bool   `json:"not_null"`
	Default  string `json:"default"`
}

func (r ColumnRequest) spec() reconciler.ColumnSpec {
	return reconciler.ColumnSpec{Name: r.Name, DataType: r.DataType, NotNull: r.NotNull, Default: r.Default}
}

type ConstraintRequest struct {
	Name string                    `json:"name"`
	Kind reconciler.ConstraintKind `json:"kind" binding:"required"`
	Body string                    `json:"body" binding:"required"`
}

type ParentRequest struct {
	Schema string `json:"schema"`
	Name   string `json:"name" binding:"required"`
}

func owner(c *gin.Context) (string, bool) {
	id := c.GetString(middlewares.UserIDKey)
	if id == "" {
		responses.Fail(c, http.StatusUnauthorized, nil, "Unauthorized")
		return "", false
	}
	return id, true
}

func sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := utils.ParseUUID(c.Param("session_id"))
	if err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid session id format")
		return uuid.Nil, false
	}
	return id, true
}

// OpenSession handles POST /api/v1/sessions
func (h *TableHandler) OpenSession(c *gin.Context) {
	userID, ok := owner(c)
	if !ok {
		return
	}

	var req OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	if !utils.Contains([]string{string(editor.ModeEdit), string(editor.ModeCreate)}, req.Mode) {
		responses.Fail(c, http.StatusBadRequest, nil, "Mode must be edit or create")
		return
	}

	table := reconciler.TableRef{Schema: req.Schema, Name: req.Name}
	var (
		view models.SessionView
		err  error
	)
	if req.Mode == string(editor.ModeEdit) {
		view, err = h.tableService.OpenEdit(c.Request.Context(), userID, table)
	} else {
		view, err = h.tableService.OpenCreate(userID, table)
	}
	if err != nil {
		respondError(c, err, "Failed to open edit session")
		return
	}

	responses.Success(c, http.StatusCreated, view, "Edit session opened")
}

// GetSession handles GET /api/v1/sessions/:session_id
func (h *TableHandler) GetSession(c *gin.Context) {
	userID, ok := owner(c)
	if !ok {
		return
	}
	id, ok := sessionID(c)
	if !ok {
		return
	}

	view, err := h.tableService.Get(userID, id)
	if err != nil {
		respondError(c, err, "Failed to retrieve edit session")
		return
	}
	responses.Success(c, http.StatusOK, view, "Edit session retrieved successfully")
}

// update binds req, runs fn against the session state and replies with the new view.
func (h *TableHandler) update(c *gin.Context, req interface{}, fn func(state *editor.State) error) {
	userID, ok := owner(c)
	if !ok {
		return
	}
	id, ok := sessionID(c)
	if !ok {
		return
	}
	if req != nil {
		if err := c.ShouldBindJSON(req); err != nil {
			responses.Fail(c, http.StatusBadRequest, err, "Invalid request body")
			return
		}
	}

	view, err := h.tableService.Update(userID, id, fn)
	if err != nil {
		respondError(c, err, "Failed to update edit session")
		return
	}
	responses.Success(c, http.StatusOK, view, "Edit session updated")
}

// UpdateProperties handles PATCH /api/v1/sessions/:session_id
func (h *TableHandler) UpdateProperties(c *gin.Context) {
	var req PropertiesRequest
	h.update(c, &req, func(state *editor.State) error {
		if req.Name != nil {
			state.SetName(*req.Name)
		}
		if req.Owner != nil {
			state.SetOwner(*req.Owner)
		}
		if req.Comment != nil {
			state.SetComment(*req.Comment)
		}
		if req.Tablespace != nil {
			state.SetTablespace(*req.Tablespace)
		}
		if req.HasOids != nil {
			state.SetHasOids(*req.HasOids)
		}
		if req.Grants != nil {
			state.SetGrants(req.Grants)
		}
		return nil
	})
}

// AddColumn handles POST /api/v1/sessions/:session_id/columns
func (h *TableHandler) AddColumn(c *gin.Context) {
	var req ColumnRequest
	h.update(c, &req, func(state *editor.State) error {
		return state.AddColumn(req.spec())
	})
}

// ChangeColumn handles PUT /api/v1/sessions/:session_id/columns/:column
func (h *TableHandler) ChangeColumn(c *gin.Context) {
	var req ColumnRequest
	h.update(c, &req, func(state *editor.State) error {
		return state.ChangeColumn(c.Param("column"), req.spec())
	})
}

// RemoveColumn handles DELETE /api/v1/sessions/:session_id/columns/:column
func (h *TableHandler) RemoveColumn(c *gin.Context) {
	h.update(c, nil, func(state *editor.State) error {
		return state.RemoveColumn(c.Param("column"))
	})
}

// AddConstraint handles POST /api/v1/sessions/:session_id/constraints
func (h *TableHandler) AddConstraint(c *gin.Context) {
	var req ConstraintRequest
	h.update(c, &req, func(state *editor.State) error {
		return state.AddConstraint(reconciler.ConstraintDefinition{Name: req.Name, Kind: req.Kind, Body: req.Body})
	})
}

// RemoveConstraint handles DELETE /api/v1/sessions/:session_id/constraints/:index
func (h *TableHandler) RemoveConstraint(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid constraint index")
		return
	}
	h.update(c, nil, func(state *editor.State) error {
		return state.RemoveConstraint(index)
	})
}

// AddParent handles POST /api/v1/sessions/:session_id/inherits
func (h *TableHandler) AddParent(c *gin.Context) {
	userID, ok := owner(c)
	if !ok {
		return
	}
	id, ok := sessionID(c)
	if !ok {
		return
	}

	var req ParentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	view, err := h.tableService.AddInheritance(c.Request.Context(), userID, id, reconciler.TableRef{Schema: req.Schema, Name: req.Name})
	if err != nil {
		respondError(c, err, "Failed to add parent table")
		return
	}
	responses.Success(c, http.StatusOK, view, "Edit session updated")
}

// RemoveParent handles DELETE /api/v1/sessions/:session_id/inherits/:parent
// where parent is "schema.table".
func (h *TableHandler) RemoveParent(c *gin.Context) {
	h.update(c, nil, func(state *editor.State) error {
		return state.RemoveInheritance(reconciler.ParseTableRef(c.Param("parent")))
	})
}

// Preview handles GET /api/v1/sessions/:session_id/plan
func (h *TableHandler) Preview(c *gin.Context) {
	userID, ok := owner(c)
	if !ok {
		return
	}
	id, ok := sessionID(c)
	if !ok {
		return
	}

	plan, err := h.tableService.Preview(userID, id)
	if err != nil {
		respondError(c, err, "Failed to build change plan")
		return
	}
	responses.Success(c, http.StatusOK, plan, "Change plan built successfully")
}

// Commit handles POST /api/v1/sessions/:session_id/commit
func (h *TableHandler) Commit(c *gin.Context) {
	userID, ok := owner(c)
	if !ok {
		return
	}
	id, ok := sessionID(c)
	if !ok {
		return
	}

	result, err := h.tableService.Commit(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, err, "Failed to commit changes")
		return
	}
	responses.Success(c, http.StatusOK, result, "Changes committed successfully")
}

// Cancel handles DELETE /api/v1/sessions/:session_id
func (h *TableHandler) Cancel(c *gin.Context) {
	userID, ok := owner(c)
	if !ok {
		return
	}
	id, ok := sessionID(c)
	if !ok {
		return
	}

	if err := h.tableService.Cancel(userID, id); err != nil {
		respondError(c, err, "Failed to cancel edit session")
		return
	}
	responses.Success(c, http.StatusOK, nil, "Edit session cancelled")
}

// History handles GET /api/v1/history?target=schema.table&limit=n
func (h *TableHandler) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	batches, err := h.tableService.History(c.Request.Context(), c.Query("target"), limit)
	if err != nil {
		respondError(c, err, "Failed to retrieve change history")
		return
	}
	responses.Success(c, http.StatusOK, batches, "Change history retrieved successfully")
}
