package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/carecall-backend/internal/platform/apierr"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: payload})
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: payload})
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, Envelope{Success: false, Error: msg, Code: code})
}

// RespondServiceError maps a service error onto status, code and message.
// Errors that carry no status are reported as a generic 500.
func RespondServiceError(c *gin.Context, err error) {
	var ae *apierr.Error
	if !errors.As(err, &ae) || ae.Status >= http.StatusInternalServerError && ae.Code == "" {
		_ = c.Error(err)
		RespondError(c, http.StatusInternalServerError, "internal_error", errors.New("Internal server error"))
		return
	}
	if ae.Status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	RespondError(c, apierr.StatusCode(err), apierr.CodeOf(err), err)
}

// Abort writes an error envelope and stops the handler chain.
func Abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, Envelope{Success: false, Error: msg, Code: code})
}
