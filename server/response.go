package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/wirekit/errors"
	"github.com/kbukum/wirekit/graph"
)

// DataResponse is the standard success envelope.
type DataResponse struct {
	Data any   `json:"data"`
	Meta *Meta `json:"meta,omitempty"`
}

// Meta carries listing metadata.
type Meta struct {
	Total int    `json:"total"`
	RunID string `json:"run_id,omitempty"`
}

// RespondWithError inspects err: resolution failures answer 422 with every
// failure in the body, an *apperrors.AppError answers with its own status,
// anything else is a generic 500.
func RespondWithError(c *gin.Context, err error) {
	var failures graph.Failures
	if errors.As(err, &failures) {
		RespondWithFailures(c, failures)
		return
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus, appErr.ToResponse())
		return
	}
	c.JSON(http.StatusInternalServerError, apperrors.Internal(err).ToResponse())
}

// RespondWithFailures sends a 422 listing every failure.
func RespondWithFailures(c *gin.Context, failures graph.Failures) {
	c.JSON(http.StatusUnprocessableEntity, apperrors.ToListResponse(failures.AppErrors()))
}

// RespondOK sends a 200 response wrapping data.
func RespondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, DataResponse{Data: data})
}

// RespondOKWithMeta sends a 200 response with data and metadata.
func RespondOKWithMeta(c *gin.Context, data any, meta *Meta) {
	c.JSON(http.StatusOK, DataResponse{Data: data, Meta: meta})
}
