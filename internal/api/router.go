package api

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/charlesng35/internhub/internal/app"
	iauth "github.com/charlesng35/internhub/internal/auth"
	"github.com/charlesng35/internhub/internal/auth/providers"
	"github.com/charlesng35/internhub/internal/cache"
	"github.com/charlesng35/internhub/internal/events"
	"github.com/charlesng35/internhub/internal/handlers"
	"github.com/charlesng35/internhub/internal/middleware"
	"github.com/charlesng35/internhub/internal/monitoring"
	"github.com/charlesng35/internhub/internal/monitoring/checks"
	"github.com/charlesng35/internhub/internal/notify"
	"github.com/charlesng35/internhub/internal/services"
	"github.com/charlesng35/internhub/internal/storage"
)

// Dependencies carries the infrastructure the router wires handlers from.
// Events, SMS and RateStore fall back to no-op, log and cache backed
// implementations when nil. Without a Health manager only the database is probed.
type Dependencies struct {
	DB        *gorm.DB
	Config    *app.Config
	Sessions  *iauth.SessionService
	Cache     cache.Store
	Files     storage.FileStore
	SMS       notify.Sender
	Events    events.Publisher
	RateStore middleware.RateStore
	Health    *monitoring.HealthManager
}

func (d Dependencies) validate() error {
	switch {
	case d.DB == nil:
		return errors.New("database handle must be provided")
	case d.Config == nil:
		return errors.New("config must be provided")
	case d.Sessions == nil:
		return errors.New("session service must be provided")
	case d.Cache == nil:
		return errors.New("cache store must be provided")
	case d.Files == nil:
		return errors.New("file store must be provided")
	}
	return nil
}

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	cfg := deps.Config

	publisher := deps.Events
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	sender := deps.SMS
	if sender == nil {
		sender = notify.NewLogSender()
	}
	rateStore := deps.RateStore
	if rateStore == nil {
		rateStore = middleware.NewCacheRateStore(deps.Cache)
	}
	health := deps.Health
	if health == nil {
		health = monitoring.NewHealthManager()
		health.RegisterReadiness(checks.Database(deps.DB, 0))
	}

	users, err := services.NewUserService(deps.DB, services.WithUserEvents(publisher))
	if err != nil {
		return nil, fmt.Errorf("user service: %w", err)
	}
	postings, err := services.NewPostingService(deps.DB)
	if err != nil {
		return nil, fmt.Errorf("posting service: %w", err)
	}

	maxUpload := cfg.Storage.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = services.DefaultMaxUploadBytes
	}
	applications, err := services.NewApplicationService(deps.DB, deps.Files,
		services.WithApplicationEvents(publisher),
		services.WithMaxUploadBytes(maxUpload),
	)
	if err != nil {
		return nil, fmt.Errorf("application service: %w", err)
	}

	var registration *services.RegistrationService
	if cfg.Registration.OTP.Enabled {
		pending, err := services.NewPendingRegistrationStore(deps.Cache)
		if err != nil {
			return nil, fmt.Errorf("pending registrations: %w", err)
		}
		var opts []services.RegistrationOption
		if ttl := cfg.Registration.OTP.CodeTTL; ttl > 0 {
			opts = append(opts, services.WithCodeTTL(ttl))
		}
		if attempts := cfg.Registration.OTP.MaxAttempts; attempts > 0 {
			opts = append(opts, services.WithMaxCodeAttempts(attempts))
		}
		registration, err = services.NewRegistrationService(users, pending, sender, opts...)
		if err != nil {
			return nil, fmt.Errorf("registration service: %w", err)
		}
	}

	local, err := providers.NewLocalProvider(deps.DB, providers.LocalConfig{})
	if err != nil {
		return nil, fmt.Errorf("local provider: %w", err)
	}

	secure := cfg.Auth.Session.SecureCookie

	maxBody := maxUpload + (1 << 20)
	r := gin.New()
	r.MaxMultipartMemory = maxBody

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	if cfg.Server.CSRF.Enabled {
		r.Use(middleware.CSRF(middleware.WithCSRFBodyLimit(maxBody)))
	}
	r.Use(middleware.Session(deps.Sessions, secure))

	registerHealthRoutes(r, handlers.NewHealthHandler(health), cfg.Monitoring)

	registerAuthRoutes(r, authRouteDeps{
		Handler:   handlers.NewAuthHandler(users, registration, local, deps.Sessions, secure),
		Home:      handlers.NewHomeHandler(postings, users),
		RateStore: rateStore,
		RateLimit: cfg.Server.RateLimit,
	})
	registerCompanyRoutes(r, handlers.NewCompanyHandler(postings))
	registerStudentRoutes(r, handlers.NewStudentHandler(applications))
	registerUploadRoutes(r, handlers.NewUploadHandler(applications))

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
