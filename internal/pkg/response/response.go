// internal/pkg/response/response.go
package response

import (
	"net/http"

	xerrors "subgate-service/internal/pkg/errors"

	"github.com/gin-gonic/gin"
)

// Response defines the standard API response format.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Success sends a successful response with a message and optional data.
func Success(c *gin.Context, status int, message string, data interface{}) {
	if status == 0 {
		status = http.StatusOK
	}

	c.JSON(status, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Error sends a standardized error response.
func Error(c *gin.Context, code int, message string, err error) {
	c.Abort()

	resp := Response{
		Success: false,
		Message: message,
	}
	if err != nil {
		resp.Error = err.Error()
	}

	c.JSON(code, resp)
}

// DomainError maps a lifecycle error onto its HTTP status so callers can
// branch on distinct kinds instead of a generic failure.
func DomainError(c *gin.Context, err error) {
	switch {
	case xerrors.Is(err, xerrors.ErrForbidden):
		Error(c, http.StatusForbidden, "operation not permitted for capability", err)
	case xerrors.Is(err, xerrors.ErrUnauthorized):
		Error(c, http.StatusUnauthorized, "unauthorized", err)
	case xerrors.Is(err, xerrors.ErrNotFound):
		Error(c, http.StatusNotFound, "resource not found", err)
	case xerrors.Is(err, xerrors.ErrConflict):
		Error(c, http.StatusConflict, "conflicting concurrent update", err)
	case xerrors.Is(err, xerrors.ErrAlreadyMatched):
		Error(c, http.StatusConflict, "payment event already matched", err)
	case xerrors.Is(err, xerrors.ErrAmountMismatch):
		Error(c, http.StatusUnprocessableEntity, "payment amount mismatch", err)
	case xerrors.Is(err, xerrors.ErrNotPending):
		Error(c, http.StatusConflict, "subscription is not pending", err)
	case xerrors.Is(err, xerrors.ErrInvalidState):
		Error(c, http.StatusUnprocessableEntity, "invalid state", err)
	case xerrors.Is(err, xerrors.ErrInvalidInput), xerrors.Is(err, xerrors.ErrBadRequest):
		Error(c, http.StatusBadRequest, "invalid input", err)
	case xerrors.Is(err, xerrors.ErrRateLimited):
		Error(c, http.StatusTooManyRequests, "too many requests", err)
	default:
		Error(c, http.StatusInternalServerError, "internal server error", err)
	}
}

// ValidationError sends a 400 Bad Request response for invalid input.
func ValidationError(c *gin.Context, message string, err error) {
	Error(c, http.StatusBadRequest, message, err)
}

// Unauthorized sends a 401 Unauthorized response.
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message, nil)
}

// Forbidden sends a 403 Forbidden response.
func Forbidden(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, message, nil)
}
