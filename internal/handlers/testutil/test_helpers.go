package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/internhub/internal/api"
	"github.com/charlesng35/internhub/internal/app"
	iauth "github.com/charlesng35/internhub/internal/auth"
	"github.com/charlesng35/internhub/internal/cache"
	sharedtestutil "github.com/charlesng35/internhub/internal/database/testutil"
	"github.com/charlesng35/internhub/internal/middleware"
	"github.com/charlesng35/internhub/internal/models"
	"github.com/charlesng35/internhub/internal/storage"
	"github.com/charlesng35/internhub/pkg/crypto"
	"github.com/charlesng35/internhub/pkg/flash"
	"github.com/charlesng35/internhub/pkg/response"
)

// Env encapsulates a fully-wired router backed by an in-memory database for handler tests.
type Env struct {
	T      *testing.T
	DB     *gorm.DB
	Router *gin.Engine
	Config *app.Config
	Files  *storage.LocalStore
	SMS    *SMSRecorder
}

// EnvOption customises NewEnv.
type EnvOption func(*app.Config)

// WithOTPRegistration enables SMS confirmed registration.
func WithOTPRegistration() EnvOption {
	return func(cfg *app.Config) {
		cfg.Registration.OTP.Enabled = true
	}
}

// WithCSRF turns on CSRF protection. Clients then echo the token automatically.
func WithCSRF() EnvOption {
	return func(cfg *app.Config) {
		cfg.Server.CSRF.Enabled = true
	}
}

// WithRateLimit bounds POSTs to the credential endpoints.
func WithRateLimit(requests int, window time.Duration) EnvOption {
	return func(cfg *app.Config) {
		cfg.Server.RateLimit = app.RateLimitConfig{Requests: requests, Window: window}
	}
}

// WithMaxUploadBytes limits resume uploads.
func WithMaxUploadBytes(n int64) EnvOption {
	return func(cfg *app.Config) {
		cfg.Storage.MaxUploadBytes = n
	}
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())

	cfg := &app.Config{
		Server: app.ServerConfig{
			RateLimit: app.RateLimitConfig{Requests: 1000, Window: time.Minute},
		},
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{
				Secret: "test-suite-super-secret-key-32-bytes!!",
				Issuer: "test-suite",
			},
			Session: app.SessionSettings{TTL: time.Hour},
		},
		Registration: app.RegistrationConfig{
			OTP: app.OTPConfig{CodeTTL: 10 * time.Minute, MaxAttempts: 5},
		},
		Storage: app.StorageConfig{MaxUploadBytes: 1 << 20},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	require.NoError(t, err)

	store := cache.NewDatabaseStore(db)
	sessions, err := iauth.NewSessionService(db, jwtSvc, iauth.SessionConfig{Cache: iauth.NewSessionCache(store)})
	require.NoError(t, err)

	files, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	sms := &SMSRecorder{}
	router, err := api.NewRouter(api.Dependencies{
		DB:        db,
		Config:    cfg,
		Sessions:  sessions,
		Cache:     store,
		Files:     files,
		SMS:       sms,
		RateStore: middleware.NewMemoryRateStore(),
	})
	require.NoError(t, err)

	return &Env{
		T:      t,
		DB:     db,
		Router: router,
		Config: cfg,
		Files:  files,
		SMS:    sms,
	}
}

// CreateUser inserts a verified user directly and returns the record.
func (e *Env) CreateUser(username, password, role string) *models.User {
	e.T.Helper()

	hashed, err := crypto.HashPassword(password)
	require.NoError(e.T, err)

	user := &models.User{
		Username:     username,
		PasswordHash: hashed,
		Role:         role,
		IsVerified:   true,
	}
	require.NoError(e.T, e.DB.Create(user).Error)
	return user
}

// Login authenticates through POST /login and returns a client carrying the session cookie.
func (e *Env) Login(username, password string) *Client {
	e.T.Helper()

	client := e.NewClient()
	w := client.PostForm("/login", url.Values{"username": {username}, "password": {password}})
	require.Equal(e.T, http.StatusSeeOther, w.Code, w.Body.String())
	require.NotEqual(e.T, "/login", w.Header().Get("Location"), "login rejected")
	require.NotNil(e.T, client.Cookie(middleware.SessionCookieName))
	return client
}

// SMSRecorder captures outbound text messages.
type SMSRecorder struct {
	mu       sync.Mutex
	messages []SentSMS
	Err      error
}

// SentSMS is one captured message.
type SentSMS struct {
	Mobile  string
	Message string
}

func (r *SMSRecorder) Send(_ context.Context, mobile, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.messages = append(r.messages, SentSMS{Mobile: mobile, Message: message})
	return nil
}

// Messages returns a copy of everything sent so far.
func (r *SMSRecorder) Messages() []SentSMS {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SentSMS(nil), r.messages...)
}

var codePattern = regexp.MustCompile(`\d{4,8}`)

// LastCode extracts the numeric code from the latest message.
func (r *SMSRecorder) LastCode(t *testing.T) string {
	t.Helper()
	messages := r.Messages()
	require.NotEmpty(t, messages, "no sms sent")
	code := codePattern.FindString(messages[len(messages)-1].Message)
	require.NotEmpty(t, code, "no code in %q", messages[len(messages)-1].Message)
	return code
}

// Client issues requests with a cookie jar, the way a browser would.
type Client struct {
	env     *Env
	cookies map[string]*http.Cookie
}

// NewClient returns an anonymous client.
func (e *Env) NewClient() *Client {
	return &Client{env: e, cookies: make(map[string]*http.Cookie)}
}

// Cookie returns the stored cookie named name, if any.
func (c *Client) Cookie(name string) *http.Cookie {
	return c.cookies[name]
}

// Get requests path.
func (c *Client) Get(path string) *httptest.ResponseRecorder {
	c.env.T.Helper()
	req, err := http.NewRequest(http.MethodGet, path, nil)
	require.NoError(c.env.T, err)
	return c.Do(req)
}

// PostForm submits an url encoded form.
func (c *Client) PostForm(path string, form url.Values) *httptest.ResponseRecorder {
	c.env.T.Helper()
	req, err := http.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	require.NoError(c.env.T, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.Do(req)
}

// FilePart is a file field of a multipart form.
type FilePart struct {
	Field    string
	Filename string
	Content  []byte
}

// PostMultipart submits a multipart form with an optional file.
func (c *Client) PostMultipart(path string, fields map[string]string, file *FilePart) *httptest.ResponseRecorder {
	c.env.T.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(c.env.T, mw.WriteField(k, v))
	}
	if file != nil {
		part, err := mw.CreateFormFile(file.Field, file.Filename)
		require.NoError(c.env.T, err)
		_, err = io.Copy(part, bytes.NewReader(file.Content))
		require.NoError(c.env.T, err)
	}
	require.NoError(c.env.T, mw.Close())

	req, err := http.NewRequest(http.MethodPost, path, &body)
	require.NoError(c.env.T, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.Do(req)
}

// Do executes req against the router with the jar's cookies and stores the
// cookies of the response.
func (c *Client) Do(req *http.Request) *httptest.ResponseRecorder {
	c.env.T.Helper()

	if c.env.Config.Server.CSRF.Enabled && requiresCSRFAttestation(req.Method) {
		c.ensureCSRFToken()
		req.Header.Set(middleware.CSRFHeaderName, c.cookies[middleware.CSRFCookieName].Value)
	}
	for _, cookie := range c.cookies {
		req.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value})
	}

	w := httptest.NewRecorder()
	c.env.Router.ServeHTTP(w, req)
	c.capture(w.Result())
	return w
}

func (c *Client) ensureCSRFToken() {
	if _, ok := c.cookies[middleware.CSRFCookieName]; ok {
		return
	}
	w := c.Get("/health")
	require.Equal(c.env.T, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(c.env.T, c.cookies[middleware.CSRFCookieName], "csrf cookie not issued")
}

func (c *Client) capture(resp *http.Response) {
	if resp == nil {
		return
	}
	defer resp.Body.Close()

	for _, cookie := range resp.Cookies() {
		if cookie.MaxAge < 0 || cookie.Value == "" {
			delete(c.cookies, cookie.Name)
			continue
		}
		copied := *cookie
		c.cookies[cookie.Name] = &copied
	}
}

func requiresCSRFAttestation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

// APIResponse represents the page envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Flash   []flash.Message     `json:"flash"`
}

// DecodeResponse parses the standard response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Flashes returns the flash messages queued by a response.
func Flashes(w *httptest.ResponseRecorder) []flash.Message {
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == flash.CookieName && cookie.Value != "" {
			return flash.Decode(cookie.Value)
		}
	}
	return nil
}

// RequireRedirect asserts a 303 to location and returns the queued flash, if any.
func RequireRedirect(t *testing.T, w *httptest.ResponseRecorder, location string) *flash.Message {
	t.Helper()
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
	require.Equal(t, location, w.Header().Get("Location"))
	messages := Flashes(w)
	if len(messages) == 0 {
		return nil
	}
	return &messages[len(messages)-1]
}

// Serve runs req against the router without cookies or CSRF handling.
func (e *Env) Serve(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
