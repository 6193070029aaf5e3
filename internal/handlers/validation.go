package handlers

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/internhub/pkg/flash"
	"github.com/charlesng35/internhub/pkg/response"
	appValidator "github.com/charlesng35/internhub/pkg/validator"
)

// bindAndValidate binds the submitted form into dest and runs struct
// validation rules. On failure the client is redirected to back with a flash
// and false is returned.
func bindAndValidate[T any](c *gin.Context, dest *T, back string) bool {
	if err := c.ShouldBind(dest); err != nil {
		response.Redirect(c, back, flash.Danger, "Invalid form submission")
		return false
	}

	if err := appValidator.ValidateStruct(dest); err != nil {
		response.Redirect(c, back, flash.Danger, formatValidationError(err))
		return false
	}

	return true
}

func formatValidationError(err error) string {
	if err == nil {
		return "Invalid form submission"
	}

	ve, ok := err.(appValidator.ValidationErrors)
	if !ok || len(ve) == 0 {
		return "Invalid form submission"
	}

	messages := make([]string, 0, len(ve))
	for _, failure := range ve {
		field := prettifyFieldName(failure.Field)
		switch failure.Tag {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", field))
		case "max":
			messages = append(messages, fmt.Sprintf("%s must be at most %s characters", field, failure.Param))
		case "oneof":
			messages = append(messages, fmt.Sprintf("%s must be one of: %s", field, failure.Param))
		case "mobile":
			messages = append(messages, fmt.Sprintf("%s must be a valid mobile number", field))
		default:
			messages = append(messages, fmt.Sprintf("%s is invalid", field))
		}
	}
	return strings.Join(messages, "; ")
}

func prettifyFieldName(name string) string {
	if name == "" {
		return "Field"
	}
	name = strings.ReplaceAll(name, "_", " ")
	return strings.ToUpper(name[:1]) + name[1:]
}
