package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/internhub/pkg/flash"
	"github.com/charlesng35/internhub/pkg/response"
)

// RequireRole admits only authenticated users with role. Anonymous visitors
// are sent to the login page; users with another role go back home.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := IdentityFrom(c)
		if !ok {
			response.Redirect(c, "/login", flash.Warning, "Please log in to continue")
			c.Abort()
			return
		}
		if identity.Role != role {
			response.Redirect(c, "/", flash.Danger, "Access denied")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireLogin admits any authenticated user.
func RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := IdentityFrom(c); !ok {
			response.Redirect(c, "/login", flash.Warning, "Please log in to continue")
			c.Abort()
			return
		}
		c.Next()
	}
}
