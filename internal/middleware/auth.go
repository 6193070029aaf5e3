package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	iauth "github.com/charlesng35/internhub/internal/auth"
	"github.com/charlesng35/internhub/pkg/logger"
)

const (
	// SessionCookieName carries the signed session token.
	SessionCookieName = "internhub_session"

	CtxIdentityKey  = "authIdentity"
	CtxUserIDKey    = "userID"
	CtxSessionIDKey = "sessionID"
	CtxRoleKey      = "userRole"
)

// SessionResolver turns a session token into an identity.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*iauth.Identity, error)
}

// Session loads the identity named by the session cookie, if any. Requests
// without a valid session continue anonymously and a stale cookie is cleared.
func Session(resolver SessionResolver, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(SessionCookieName)
		if err != nil || token == "" {
			c.Next()
			return
		}

		identity, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			logger.WithModule("auth").Debug("session rejected",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
			ClearSessionCookie(c, secure)
			c.Next()
			return
		}

		c.Set(CtxIdentityKey, identity)
		c.Set(CtxUserIDKey, identity.UserID)
		c.Set(CtxSessionIDKey, identity.SessionID)
		c.Set(CtxRoleKey, identity.Role)
		c.Next()
	}
}

// IdentityFrom returns the identity attached by Session.
func IdentityFrom(c *gin.Context) (*iauth.Identity, bool) {
	v, ok := c.Get(CtxIdentityKey)
	if !ok {
		return nil, false
	}
	identity, ok := v.(*iauth.Identity)
	return identity, ok && identity != nil
}

// SetSessionCookie stores the session token in an HTTP-only cookie.
func SetSessionCookie(c *gin.Context, token string, maxAge int, secure bool) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(c *gin.Context, secure bool) {
	SetSessionCookie(c, "", -1, secure)
}
