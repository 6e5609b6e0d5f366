package provider

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/LeonardoBeccarini/sensor_provider/internal/model"
)

// APIError is a client-facing failure: a status code and the message sent in
// the {"message": ...} body.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string { return e.Message }

var (
	ErrMissingCredentials = &APIError{http.StatusBadRequest, "Missing projectId or refreshToken"}
	ErrInvalidCredentials = &APIError{http.StatusBadRequest, "Invalid projectId or refreshToken"}
	ErrInvalidPagination  = &APIError{http.StatusBadRequest, "Invalid pagination parameters."}
	ErrInvalidDateRange   = &APIError{http.StatusBadRequest, "Invalid from or to date."}
	ErrMissingProjectID   = &APIError{http.StatusUnauthorized, `Missing "X-ProjectId" header.`}
	ErrUnauthorized       = &APIError{http.StatusUnauthorized, "Unauthorized."}
	ErrSensorNotInProject = &APIError{http.StatusUnauthorized, "Sensor does not exist in a project."}
	ErrTooMuchData        = &APIError{http.StatusForbidden, "Requested too much data."}
	ErrNotImplemented     = &APIError{http.StatusNotImplemented, "Not implemented."}
	ErrInternal           = &APIError{http.StatusInternalServerError, "Internal server error."}
	ErrStoreUnavailable   = &APIError{http.StatusServiceUnavailable, "Measurement store unavailable."}
)

// abort writes e and stops the handler chain.
func abort(c *gin.Context, e *APIError) {
	c.AbortWithStatusJSON(e.Status, model.ErrorResponse{Message: e.Message})
}
