package httptransport

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// APIResponse is the unified envelope returned by every endpoint.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// snapshotPayload wraps job output with its fetch timestamp.
type snapshotPayload struct {
	Data      any       `json:"data"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RespondSuccess writes a successful response.
func RespondSuccess(c *gin.Context, httpStatus int, data any, message string) {
	if message == "" {
		message = "ok"
	}
	c.JSON(httpStatus, APIResponse{
		Success: true,
		Message: message,
		Code:    httpStatus,
		Data:    data,
	})
}

// RespondError writes a failure response.
func RespondError(c *gin.Context, httpStatus int, message string, data any) {
	c.JSON(httpStatus, APIResponse{
		Success: false,
		Message: message,
		Code:    httpStatus,
		Data:    data,
	})
}

// RespondSnapshot serves data a background job cached earlier, stamped
// with when that job last ran. Callers check for a missing snapshot first.
func RespondSnapshot(c *gin.Context, data any, updatedAt time.Time) {
	RespondSuccess(c, http.StatusOK, snapshotPayload{Data: data, UpdatedAt: updatedAt}, "")
}

// RespondNotLoaded is the 404 used while a snapshot's first fetch is still
// pending.
func RespondNotLoaded(c *gin.Context, message string) {
	RespondError(c, http.StatusNotFound, message, nil)
}
