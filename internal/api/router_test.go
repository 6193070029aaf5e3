package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/internhub/internal/app"
	iauth "github.com/charlesng35/internhub/internal/auth"
	"github.com/charlesng35/internhub/internal/cache"
	testutil "github.com/charlesng35/internhub/internal/database/testutil"
	"github.com/charlesng35/internhub/internal/storage"
)

func newTestDependencies(t *testing.T, mutate func(*app.Config)) Dependencies {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	cfg := &app.Config{
		Auth: app.AuthConfig{JWT: app.JWTSettings{Secret: "router-secret", Issuer: "test"}},
	}
	cfg.Monitoring.Prometheus.Enabled = true
	cfg.Monitoring.Prometheus.Endpoint = "/metrics"
	if mutate != nil {
		mutate(cfg)
	}

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "router-secret", Issuer: "test", AccessTokenTTL: time.Hour})
	if err != nil {
		t.Fatalf("jwt service: %v", err)
	}
	sessions, err := iauth.NewSessionService(db, jwtSvc, iauth.SessionConfig{})
	if err != nil {
		t.Fatalf("session service: %v", err)
	}
	files, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("file store: %v", err)
	}

	return Dependencies{
		DB:       db,
		Config:   cfg,
		Sessions: sessions,
		Cache:    cache.NewDatabaseStore(db),
		Files:    files,
	}
}

func serve(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, nil)
	router.ServeHTTP(rec, req)
	return rec
}

func TestRouter_PublicAndProtectedRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router, err := NewRouter(newTestDependencies(t, nil))
	if err != nil {
		t.Fatalf("router: %v", err)
	}

	for _, path := range []string{"/", "/health", "/login", "/register"} {
		if rec := serve(router, http.MethodGet, path); rec.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s, got %d", path, rec.Code)
		}
	}

	for _, path := range []string{"/company", "/company/new", "/student", "/uploads/cv.pdf"} {
		rec := serve(router, http.MethodGet, path)
		if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
			t.Fatalf("expected redirect to /login for %s, got %d %q", path, rec.Code, rec.Header().Get("Location"))
		}
	}

	// Without OTP registration the verify page sends visitors back.
	rec := serve(router, http.MethodGet, "/verify-otp")
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/register" {
		t.Fatalf("expected redirect to /register, got %d", rec.Code)
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router, err := NewRouter(newTestDependencies(t, nil))
	if err != nil {
		t.Fatalf("router: %v", err)
	}

	// Trigger a request to generate metrics
	if rec := serve(router, http.MethodGet, "/health"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for /health, got %d", rec.Code)
	}

	metricsRec := serve(router, http.MethodGet, "/metrics")
	if metricsRec.Code != http.StatusOK {
		t.Fatalf("expected 200 for /metrics, got %d", metricsRec.Code)
	}

	body := metricsRec.Body.String()
	if !strings.Contains(body, `internhub_api_latency_seconds_count{method="GET",path="/health",status="200"}`) {
		t.Fatalf("metrics output missing latency series: %s", body)
	}
}

func TestRouter_MetricsDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router, err := NewRouter(newTestDependencies(t, func(cfg *app.Config) {
		cfg.Monitoring.Prometheus.Enabled = false
	}))
	if err != nil {
		t.Fatalf("router: %v", err)
	}

	if rec := serve(router, http.MethodGet, "/metrics"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for disabled /metrics, got %d", rec.Code)
	}
}

func TestRouter_RequiresDependencies(t *testing.T) {
	deps := newTestDependencies(t, nil)
	deps.Files = nil
	if _, err := NewRouter(deps); err == nil {
		t.Fatal("expected error without a file store")
	}

	deps = newTestDependencies(t, nil)
	deps.Config = nil
	if _, err := NewRouter(deps); err == nil {
		t.Fatal("expected error without config")
	}
}
