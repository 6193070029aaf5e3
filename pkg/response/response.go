package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/internhub/pkg/errors"
	"github.com/charlesng35/internhub/pkg/flash"
)

// Response defines the base payload for pages and errors.
type Response struct {
	Success bool            `json:"success"`
	Data    interface{}     `json:"data,omitempty"`
	Error   *ErrorInfo      `json:"error,omitempty"`
	Flash   []flash.Message `json:"flash,omitempty"`
}

// ErrorInfo holds error details to send to clients.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Success writes a JSON success response.
func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, Response{
		Success: true,
		Data:    data,
	})
}

// Page renders a view model together with any flash messages queued for it.
func Page(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
		Flash:   flash.Consume(c),
	})
}

// Error writes a JSON error response derived from an AppError.
func Error(c *gin.Context, err error) {
	if err == nil {
		err = appErrors.ErrInternalServer
	}

	appErr := appErrors.FromError(err)
	c.JSON(appErr.Status(), Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    appErr.Code,
			Message: appErr.Message,
		},
	})
}

// Redirect queues a flash message and answers 303 See Other.
func Redirect(c *gin.Context, location, category, message string) {
	if message != "" {
		flash.Add(c, category, message)
	}
	c.Redirect(http.StatusSeeOther, location)
}
