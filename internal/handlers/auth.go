package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	iauth "github.com/charlesng35/internhub/internal/auth"
	"github.com/charlesng35/internhub/internal/auth/providers"
	"github.com/charlesng35/internhub/internal/middleware"
	"github.com/charlesng35/internhub/internal/models"
	"github.com/charlesng35/internhub/internal/services"
	"github.com/charlesng35/internhub/pkg/flash"
	"github.com/charlesng35/internhub/pkg/logger"
	"github.com/charlesng35/internhub/pkg/metrics"
	"github.com/charlesng35/internhub/pkg/response"
)

// RegistrationCookieName identifies the pending OTP registration of a browser.
const RegistrationCookieName = "internhub_registration"

// AuthHandler manages registration, login and logout.
type AuthHandler struct {
	users        *services.UserService
	registration *services.RegistrationService
	local        *providers.LocalProvider
	sessions     *iauth.SessionService
	secure       bool
	log          *zap.Logger
}

// NewAuthHandler wires the auth flows. A nil registration service selects
// direct registration without SMS confirmation.
func NewAuthHandler(users *services.UserService, registration *services.RegistrationService, local *providers.LocalProvider, sessions *iauth.SessionService, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		users:        users,
		registration: registration,
		local:        local,
		sessions:     sessions,
		secure:       secureCookies,
		log:          logger.WithModule("handlers.auth"),
	}
}

type registerForm struct {
	Username string `form:"username" validate:"required,max=150"`
	Password string `form:"password" validate:"required"`
	Role     string `form:"role" validate:"required,oneof=company student"`
	Mobile   string `form:"mobile"`
}

type loginForm struct {
	Username string `form:"username" validate:"required"`
	Password string `form:"password" validate:"required"`
}

type verifyForm struct {
	Code string `form:"otp" validate:"required"`
}

// GET /register
func (h *AuthHandler) RegisterPage(c *gin.Context) {
	response.Page(c, gin.H{
		"otp_enabled": h.registration != nil,
		"roles":       []string{models.RoleCompany, models.RoleStudent},
		"csrf_token":  middleware.CSRFToken(c),
	})
}

// POST /register
func (h *AuthHandler) Register(c *gin.Context) {
	var form registerForm
	if !bindAndValidate(c, &form, "/register") {
		return
	}
	input := services.RegisterInput{
		Username: form.Username,
		Password: form.Password,
		Role:     form.Role,
		Mobile:   form.Mobile,
	}

	if h.registration == nil {
		if _, err := h.users.Register(requestContext(c), input); err != nil {
			redirectWithError(c, err, "/register")
			return
		}
		response.Redirect(c, "/login", flash.Success, "Registered! Please login.")
		return
	}

	previous, _ := c.Cookie(RegistrationCookieName)
	token, err := h.registration.Start(requestContext(c), input, previous)
	if err != nil {
		if errors.Is(err, services.ErrCodeDeliveryFailed) {
			h.log.Warn("registration code not delivered", zap.Error(err))
			h.clearRegistrationCookie(c)
			response.Redirect(c, "/register", flash.Danger, services.ErrCodeDeliveryFailed.Message)
			return
		}
		redirectWithError(c, err, "/register")
		return
	}

	h.setRegistrationCookie(c, token, h.registration.CodeTTL())
	response.Redirect(c, "/verify-otp", flash.Info, "OTP sent to "+services.MaskMobile(input.Mobile))
}

// GET /verify-otp
func (h *AuthHandler) VerifyPage(c *gin.Context) {
	if h.registration == nil {
		response.Redirect(c, "/register", "", "")
		return
	}
	token, _ := c.Cookie(RegistrationCookieName)
	pending, err := h.registration.Pending(requestContext(c), token)
	if err != nil {
		h.clearRegistrationCookie(c)
		redirectWithError(c, err, "/register")
		return
	}

	response.Page(c, gin.H{
		"username":   pending.Username,
		"mobile":     services.MaskMobile(pending.Mobile),
		"expires_at": pending.ExpiresAt,
		"csrf_token": middleware.CSRFToken(c),
	})
}

// POST /verify-otp
func (h *AuthHandler) Verify(c *gin.Context) {
	if h.registration == nil {
		response.Redirect(c, "/register", "", "")
		return
	}
	var form verifyForm
	if !bindAndValidate(c, &form, "/verify-otp") {
		return
	}

	ctx := requestContext(c)
	token, _ := c.Cookie(RegistrationCookieName)
	_, err := h.registration.Verify(ctx, token, form.Code)
	switch {
	case err == nil:
		h.clearRegistrationCookie(c)
		response.Redirect(c, "/login", flash.Success, "Registration successful! Please login.")
	case errors.Is(err, services.ErrInvalidCode):
		if _, pendingErr := h.registration.Pending(ctx, token); pendingErr != nil {
			h.clearRegistrationCookie(c)
			redirectWithError(c, err, "/register")
			return
		}
		redirectWithError(c, err, "/verify-otp")
	case errors.Is(err, services.ErrNoPendingRegistration):
		h.clearRegistrationCookie(c)
		redirectWithError(c, err, "/register")
	default:
		redirectWithError(c, err, "/register")
	}
}

// GET /login
func (h *AuthHandler) LoginPage(c *gin.Context) {
	response.Page(c, gin.H{"csrf_token": middleware.CSRFToken(c)})
}

// POST /login
func (h *AuthHandler) Login(c *gin.Context) {
	var form loginForm
	if !bindAndValidate(c, &form, "/login") {
		return
	}

	ctx := requestContext(c)
	user, err := h.local.Authenticate(ctx, providers.AuthenticateInput{
		Username:  form.Username,
		Password:  form.Password,
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		if errors.Is(err, providers.ErrInvalidCredentials) {
			redirectWithError(c, services.ErrInvalidCredentials, "/login")
			return
		}
		redirectWithError(c, err, "/login")
		return
	}

	token, _, err := h.sessions.CreateSession(ctx, user, iauth.SessionMetadata{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		redirectWithError(c, err, "/login")
		return
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	middleware.SetSessionCookie(c, token, int(h.sessions.TTL().Seconds()), h.secure)

	destination := "/student"
	if user.IsCompany() {
		destination = "/company"
	}
	response.Redirect(c, destination, flash.Success, "Logged in")
}

// GET /logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if id, ok := middleware.IdentityFrom(c); ok {
		if err := h.sessions.RevokeSession(requestContext(c), id.SessionID); err != nil {
			h.log.Warn("revoke session failed", zap.String("session_id", id.SessionID), zap.Error(err))
		}
	}
	middleware.ClearSessionCookie(c, h.secure)
	response.Redirect(c, "/", flash.Info, "Logged out")
}

func (h *AuthHandler) setRegistrationCookie(c *gin.Context, token string, ttl time.Duration) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     RegistrationCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		Secure:   h.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearRegistrationCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     RegistrationCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   h.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
