package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/internhub/internal/app"
	"github.com/charlesng35/internhub/internal/handlers"
	"github.com/charlesng35/internhub/internal/middleware"
)

const (
	defaultRateLimitRequests = 20
	defaultRateLimitWindow   = time.Minute
)

type authRouteDeps struct {
	Handler   *handlers.AuthHandler
	Home      *handlers.HomeHandler
	RateStore middleware.RateStore
	RateLimit app.RateLimitConfig
}

func registerAuthRoutes(r *gin.Engine, deps authRouteDeps) {
	requests := deps.RateLimit.Requests
	if requests <= 0 {
		requests = defaultRateLimitRequests
	}
	window := deps.RateLimit.Window
	if window <= 0 {
		window = defaultRateLimitWindow
	}
	limited := middleware.RateLimit(deps.RateStore, requests, window)

	r.GET("/", deps.Home.Index)

	r.GET("/register", deps.Handler.RegisterPage)
	r.POST("/register", limited, deps.Handler.Register)
	r.GET("/verify-otp", deps.Handler.VerifyPage)
	r.POST("/verify-otp", limited, deps.Handler.Verify)
	r.GET("/login", deps.Handler.LoginPage)
	r.POST("/login", limited, deps.Handler.Login)
	r.GET("/logout", deps.Handler.Logout)
}
