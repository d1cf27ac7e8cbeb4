package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mentorbridge/internal/platform/apierr"
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

// RespondAPIError answers with the status and code carried by err. Errors
// outside the taxonomy are reported as internal without leaking their text.
func RespondAPIError(c *gin.Context, err error) {
	ae := apierr.As(err)
	if ae.Status >= http.StatusInternalServerError && ae.Code == "internal_error" {
		_ = c.Error(err)
		RespondError(c, ae.Status, ae.Code, errInternal)
		return
	}
	RespondError(c, ae.Status, ae.Code, ae)
}

// RespondAPIErrorWith answers like RespondAPIError but adds payload fields
// next to the error envelope, e.g. the wizard state after a failed action.
func RespondAPIErrorWith(c *gin.Context, err error, extra gin.H) {
	ae := apierr.As(err)
	msg := ae.Error()
	if ae.Status >= http.StatusInternalServerError && ae.Code == "internal_error" {
		_ = c.Error(err)
		msg = errInternal.Error()
	}
	body := gin.H{"error": APIError{Message: msg, Code: ae.Code}}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(ae.Status, body)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

type internalError struct{}

func (internalError) Error() string { return "internal server error" }

var errInternal error = internalError{}
