package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/courseforge/courseforge-backend/internal/platform/apperr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondAppError maps a typed application error onto the envelope using
// its kind's HTTP status and code.
func RespondAppError(c *gin.Context, err error) {
	RespondError(c, apperr.HTTPStatus(err), apperr.Code(err), err)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondAccepted(c *gin.Context, payload any) {
	c.JSON(http.StatusAccepted, payload)
}
