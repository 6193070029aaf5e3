package middleware

import (
	"crypto/subtle"
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/internhub/pkg/crypto"
	"github.com/charlesng35/internhub/pkg/errors"
	"github.com/charlesng35/internhub/pkg/logger"
	"github.com/charlesng35/internhub/pkg/response"
)

const (
	// CSRFCookieName is the cookie used to transport the CSRF token to clients.
	CSRFCookieName = "internhub_csrf"
	// CSRFHeaderName is the header clients may present for unsafe HTTP methods.
	CSRFHeaderName = "X-CSRF-Token"
	// CSRFFormField is the form field accepted in place of the header.
	CSRFFormField = "csrf_token"

	csrfTokenLength  = 32
	csrfCookieMaxAge = 12 * 60 * 60
	csrfLoggerModule = "csrf"
	csrfContextKey   = "csrfToken"
)

var unsafeMethods = map[string]struct{}{
	http.MethodPost:   {},
	http.MethodPut:    {},
	http.MethodPatch:  {},
	http.MethodDelete: {},
}

// CSRFOption customises the CSRF middleware.
type CSRFOption func(*csrfSettings)

type csrfSettings struct {
	maxFormBytes int64
}

// WithCSRFBodyLimit caps the body read when the token travels in a form
// field, so multipart uploads cannot bypass the route's own size limit.
func WithCSRFBodyLimit(n int64) CSRFOption {
	return func(s *csrfSettings) {
		s.maxFormBytes = n
	}
}

// CSRF implements the double-submit-cookie pattern. Safe methods receive a
// token via cookie and header. Mutating requests must echo it in the
// X-CSRF-Token header or the csrf_token form field.
func CSRF(opts ...CSRFOption) gin.HandlerFunc {
	var settings csrfSettings
	for _, opt := range opts {
		opt(&settings)
	}

	return func(c *gin.Context) {
		method := c.Request.Method
		if method == http.MethodOptions {
			c.Next()
			return
		}

		token, issued, err := ensureCSRFCookie(c)
		if err != nil {
			response.Error(c, errors.ErrInternalServer)
			c.Abort()
			return
		}
		c.Set(csrfContextKey, token)

		if isUnsafeMethod(method) {
			submitted := strings.TrimSpace(c.GetHeader(CSRFHeaderName))
			if submitted == "" {
				if settings.maxFormBytes > 0 {
					c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, settings.maxFormBytes)
				}
				submitted, err = formToken(c)
				if isBodyTooLarge(err) {
					response.Error(c, errors.ErrPayloadTooLarge)
					c.Abort()
					return
				}
			}
			if !constantTimeEqual(token, submitted) {
				logger.WithModule(csrfLoggerModule).Warn("csrf validation failed",
					zap.String("method", method),
					zap.String("path", c.FullPath()),
					zap.Bool("cookie_issued", issued),
				)
				response.Error(c, errors.ErrCSRFInvalid)
				c.Abort()
				return
			}
		} else {
			c.Header(CSRFHeaderName, token)
		}

		c.Next()
	}
}

// CSRFToken returns the token issued for the current request, if CSRF is on.
func CSRFToken(c *gin.Context) string {
	return c.GetString(csrfContextKey)
}

func ensureCSRFCookie(c *gin.Context) (token string, issued bool, err error) {
	if existing, err := c.Cookie(CSRFCookieName); err == nil && len(existing) > 0 {
		setCSRFCookie(c, existing)
		return existing, false, nil
	}

	token, err = crypto.GenerateToken(csrfTokenLength)
	if err != nil {
		return "", false, err
	}
	setCSRFCookie(c, token)
	return token, true, nil
}

func setCSRFCookie(c *gin.Context, token string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		Secure:   isSecureRequest(c.Request),
		HttpOnly: false,
		MaxAge:   csrfCookieMaxAge,
		SameSite: http.SameSiteLaxMode,
	})
}

// formToken parses the body as a form and returns the submitted token.
func formToken(c *gin.Context) (string, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		if _, err := c.MultipartForm(); err != nil {
			return "", err
		}
	} else if err := c.Request.ParseForm(); err != nil {
		return "", err
	}
	return strings.TrimSpace(c.Request.PostFormValue(CSRFFormField)), nil
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return stderrors.As(err, &maxErr)
}

func isSecureRequest(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	scheme := r.Header.Get("X-Forwarded-Proto")
	return strings.EqualFold(scheme, "https")
}

func isUnsafeMethod(method string) bool {
	_, ok := unsafeMethods[method]
	return ok
}

func constantTimeEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
