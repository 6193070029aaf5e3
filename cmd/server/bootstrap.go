package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/internhub/internal/api"
	"github.com/charlesng35/internhub/internal/app"
	"github.com/charlesng35/internhub/internal/app/maintenance"
	iauth "github.com/charlesng35/internhub/internal/auth"
	"github.com/charlesng35/internhub/internal/cache"
	"github.com/charlesng35/internhub/internal/database"
	"github.com/charlesng35/internhub/internal/events"
	"github.com/charlesng35/internhub/internal/monitoring"
	"github.com/charlesng35/internhub/internal/monitoring/checks"
	"github.com/charlesng35/internhub/internal/notify"
	"github.com/charlesng35/internhub/internal/storage"
	"github.com/charlesng35/internhub/pkg/flash"
	"github.com/charlesng35/internhub/pkg/logger"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB         *gorm.DB
	Redis      *cache.RedisClient
	Cache      cache.Store
	SessionSvc *iauth.SessionService
	Files      storage.FileStore
	Events     events.Publisher
	SMS        notify.Sender
	Cleaner    *maintenance.Cleaner
	Health     *monitoring.HealthManager
	Router     *gin.Engine
}

// bootstrapRuntime initialises databases, caches, services, and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// release mode unless GIN_DEBUG=true
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	flash.Configure(flash.Options{Secure: cfg.Auth.Session.SecureCookie})

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	dbStore := cache.NewDatabaseStore(stack.DB)
	stack.Cache = dbStore

	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = cache.NewRedisClient(cfg.Cache.RedisClientConfig()); err != nil {
			log.Warn("redis unavailable; falling back to database-backed operations", zap.Error(err))
			stack.Redis = nil
		} else {
			stack.Cache = stack.Redis
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	stack.SessionSvc, err = iauth.NewSessionService(stack.DB, jwtSvc, iauth.SessionConfig{
		Cache: iauth.NewSessionCache(stack.Cache),
	})
	if err != nil {
		return nil, fmt.Errorf("initialise session service: %w", err)
	}

	stack.Files, err = initialiseStorage(cfg)
	if err != nil {
		return nil, err
	}

	stack.Events = initialiseEvents(cfg, log)

	stack.SMS, err = initialiseSMS(cfg, log)
	if err != nil {
		return nil, err
	}

	// Redis expires keys itself; only the database cache needs purging.
	var purger maintenance.CachePurger
	if stack.Redis == nil {
		purger = dbStore
	}
	opts := []maintenance.Option{}
	if schedule := strings.TrimSpace(cfg.Maintenance.Schedule); schedule != "" {
		opts = append(opts, maintenance.WithCacheSchedule(schedule), maintenance.WithSessionSchedule(schedule))
	}
	stack.Cleaner = maintenance.NewCleaner(stack.SessionSvc, purger, opts...)
	if err := stack.Cleaner.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	stack.Health = monitoring.NewHealthManager()
	stack.Health.RegisterReadiness(checks.Database(stack.DB, 0))
	if stack.Redis != nil {
		stack.Health.RegisterReadiness(checks.Redis(stack.Redis, true, cfg.Cache.Redis.Timeout))
	} else {
		stack.Health.RegisterReadiness(checks.Redis(nil, cfg.Cache.Redis.Enabled, 0))
	}
	stack.Health.RegisterReadiness(checks.Maintenance(stack.Cleaner, 0, nil))

	stack.Router, err = api.NewRouter(api.Dependencies{
		DB:       stack.DB,
		Config:   cfg,
		Sessions: stack.SessionSvc,
		Cache:    stack.Cache,
		Files:    stack.Files,
		SMS:      stack.SMS,
		Events:   stack.Events,
		Health:   stack.Health,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		stopCtx := s.Cleaner.Stop()
		if stopCtx != nil {
			ctx = stopCtx
		}
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	var errs error
	if s.Events != nil {
		errs = multierr.Append(errs, s.Events.Close())
	}
	if s.Redis != nil {
		errs = multierr.Append(errs, s.Redis.Close())
	}
	if s.DB != nil {
		errs = multierr.Append(errs, database.Close(s.DB))
	}
	for _, err := range multierr.Errors(errs) {
		log.Warn("shutdown", zap.Error(err))
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := convertDatabaseConfig(cfg)
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", dbCfg.Driver))

	return db, nil
}

func convertDatabaseConfig(cfg *app.Config) database.Config {
	dbCfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:   strings.TrimSpace(cfg.Database.Path),
		DSN:    strings.TrimSpace(cfg.Database.DSN),
	}

	switch dbCfg.Driver {
	case "", "sqlite":
		dbCfg.Driver = "sqlite"
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		dbCfg.Host = strings.TrimSpace(cfg.Database.Postgres.Host)
		dbCfg.Port = cfg.Database.Postgres.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.Postgres.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.Postgres.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.Postgres.Password)
	case "mysql":
		dbCfg.Host = strings.TrimSpace(cfg.Database.MySQL.Host)
		dbCfg.Port = cfg.Database.MySQL.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.MySQL.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.MySQL.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.MySQL.Password)
	default:
		// Leave driver as-is to surface unsupported driver error during open.
	}

	return dbCfg
}

func initialiseStorage(cfg *app.Config) (storage.FileStore, error) {
	switch driver := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)); driver {
	case "", "local", "filesystem":
		store, err := storage.NewLocalStore(cfg.Storage.Local.Path)
		if err != nil {
			return nil, fmt.Errorf("initialise local storage: %w", err)
		}
		return store, nil
	case "minio", "s3":
		store, err := storage.NewMinIOStore(cfg.Storage.MinIOStoreConfig())
		if err != nil {
			return nil, fmt.Errorf("initialise minio storage: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}
}

// initialiseEvents connects to RabbitMQ when enabled. An unreachable broker
// downgrades to a no-op publisher.
func initialiseEvents(cfg *app.Config, log *zap.Logger) events.Publisher {
	if !cfg.Events.RabbitMQ.Enabled {
		return events.NoopPublisher{}
	}
	publisher, err := events.NewRabbitMQPublisher(events.RabbitMQConfig{
		URL:      cfg.Events.RabbitMQ.URL,
		Exchange: cfg.Events.RabbitMQ.Exchange,
	})
	if err != nil {
		log.Warn("rabbitmq unavailable; domain events disabled", zap.Error(err))
		return events.NoopPublisher{}
	}
	log.Info("rabbitmq connected", zap.String("exchange", cfg.Events.RabbitMQ.Exchange))
	return publisher
}

func initialiseSMS(cfg *app.Config, log *zap.Logger) (notify.Sender, error) {
	if !cfg.SMS.Enabled {
		if cfg.Registration.OTP.Enabled {
			log.Warn("otp registration enabled without an sms gateway; codes are only logged")
		}
		return notify.NewLogSender(), nil
	}
	sender, err := notify.NewHTTPSender(cfg.SMS.SenderConfig(), nil)
	if err != nil {
		return nil, fmt.Errorf("initialise sms gateway: %w", err)
	}
	return sender, nil
}
