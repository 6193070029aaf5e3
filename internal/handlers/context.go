package handlers

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	iauth "github.com/charlesng35/internhub/internal/auth"
	"github.com/charlesng35/internhub/internal/middleware"
	appErrors "github.com/charlesng35/internhub/pkg/errors"
	"github.com/charlesng35/internhub/pkg/flash"
	"github.com/charlesng35/internhub/pkg/logger"
	"github.com/charlesng35/internhub/pkg/response"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// identity returns the authenticated principal. Role gated routes always have one.
func identity(c *gin.Context) *iauth.Identity {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return &iauth.Identity{}
	}
	return id
}

// redirectWithError turns a service error into a flash and a redirect.
// Missing records answer 404 and unexpected failures answer 500.
func redirectWithError(c *gin.Context, err error, location string) {
	appErr := appErrors.FromError(err)
	switch {
	case appErrors.IsInternal(err):
		logger.WithModule("handlers").Error("request failed",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		response.Error(c, appErr)
	case errors.Is(err, appErrors.ErrNotFound):
		response.Error(c, appErr)
	default:
		response.Redirect(c, location, flash.Danger, appErr.Message)
	}
}

// pageError answers a page request that could not be rendered.
func pageError(c *gin.Context, err error) {
	if appErrors.IsInternal(err) {
		logger.WithModule("handlers").Error("page failed",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
	}
	response.Error(c, err)
}
