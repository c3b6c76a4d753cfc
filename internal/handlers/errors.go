package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tabledesk/internal/editor"
	"tabledesk/internal/reconciler"
	"tabledesk/internal/repositories"
	"tabledesk/internal/responses"
	"tabledesk/internal/services"
)

type rejection struct {
	Index             int                  `json:"index"`
	Operation         reconciler.Operation `json:"operation"`
	Statement         string               `json:"statement"`
	Applied           int                  `json:"applied"`
	StatementsApplied int                  `json:"statements_applied"`
}

// respondError maps service errors onto HTTP statuses. message is used for
// errors nothing more specific is known about.
func respondError(c *gin.Context, err error, message string) {
	var (
		validation *reconciler.ValidationError
		rejected   *repositories.ApplyRejectedError
		gone       *services.ConfigurationError
	)

	switch {
	case errors.As(err, &validation):
		responses.Fail(c, http.StatusUnprocessableEntity, err, "Invalid table definition")
	case errors.As(err, &rejected):
		responses.FailWithData(c, http.StatusConflict, err, rejected.Message, rejection{
			Index:             rejected.Index,
			Operation:         rejected.Operation,
			Statement:         rejected.Statement,
			Applied:           rejected.Index,
			StatementsApplied: rejected.StatementsApplied,
		})
	case errors.As(err, &gone):
		responses.Fail(c, http.StatusGone, err, services.ConfigurationMessage)
	case errors.Is(err, repositories.ErrSessionNotFound):
		responses.Fail(c, http.StatusNotFound, err, "Edit session not found")
	case errors.Is(err, services.ErrConfirmationRequired):
		responses.Fail(c, http.StatusPreconditionRequired, err, "Confirmation required")
	case isEditorError(err):
		responses.Fail(c, http.StatusBadRequest, err, "Invalid change")
	default:
		responses.Fail(c, http.StatusInternalServerError, err, message)
	}
}

func isEditorError(err error) bool {
	for _, target := range []error{
		editor.ErrColumnNotFound,
		editor.ErrDuplicateColumn,
		editor.ErrInheritedColumn,
		editor.ErrPrimaryKeyExists,
		editor.ErrConstraintNotFound,
		editor.ErrAlreadyInherited,
		editor.ErrNotInherited,
		editor.ErrRequired,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
