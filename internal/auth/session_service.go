package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/internhub/internal/models"
	"github.com/charlesng35/internhub/pkg/logger"
	"github.com/charlesng35/internhub/pkg/metrics"
)

// SessionConfig describes tunable behaviour for the SessionService.
type SessionConfig struct {
	Clock func() time.Time
	Cache SessionCache
}

// SessionMetadata captures contextual information about the client.
type SessionMetadata struct {
	IPAddress string
	UserAgent string
}

var (
	// ErrSessionNotFound indicates that no session matches the provided token or identifier.
	ErrSessionNotFound = errors.New("session: not found")
	// ErrSessionRevoked marks a session ended by logout.
	ErrSessionRevoked = errors.New("session: revoked")
	ErrSessionExpired = errors.New("session: expired")
	// ErrSessionInvalidToken is returned when the cookie token is malformed or badly signed.
	ErrSessionInvalidToken = errors.New("session: invalid token")
)

var errSessionCacheMiss = errors.New("session cache miss")

// SessionCache represents a cache backend for session objects keyed by session ID.
type SessionCache interface {
	Get(ctx context.Context, sessionID string) (*models.Session, error)
	Set(ctx context.Context, session *models.Session, ttl time.Duration) error
	Delete(ctx context.Context, sessionIDs ...string) error
}

// Identity is the authenticated principal resolved from a session cookie.
type Identity struct {
	UserID    string
	SessionID string
	Role      string
}

// SessionService issues, resolves and revokes login sessions. The session
// token is a JWT naming a server-side Session row.
type SessionService struct {
	db    *gorm.DB
	jwt   *JWTService
	now   func() time.Time
	cache SessionCache
	log   *zap.Logger
}

// NewSessionService constructs a session manager backed by the provided database and JWT service.
func NewSessionService(db *gorm.DB, jwtService *JWTService, cfg SessionConfig) (*SessionService, error) {
	if db == nil {
		return nil, errors.New("session service: db is required")
	}
	if jwtService == nil {
		return nil, errors.New("session service: jwt service is required")
	}

	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}

	return &SessionService{
		db:    db,
		jwt:   jwtService,
		now:   clock,
		cache: cfg.Cache,
		log:   logger.WithModule("auth.sessions"),
	}, nil
}

// TTL is the lifetime of new sessions.
func (s *SessionService) TTL() time.Duration {
	return s.jwt.TTL()
}

// CreateSession persists a session for user and returns its signed token.
func (s *SessionService) CreateSession(ctx context.Context, user *models.User, meta SessionMetadata) (string, *models.Session, error) {
	if user == nil || strings.TrimSpace(user.ID) == "" {
		return "", nil, errors.New("session service: user is required")
	}

	now := s.now()
	session := &models.Session{
		UserID:     user.ID,
		IPAddress:  strings.TrimSpace(meta.IPAddress),
		UserAgent:  strings.TrimSpace(meta.UserAgent),
		ExpiresAt:  now.Add(s.jwt.TTL()),
		LastUsedAt: now,
	}

	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return "", nil, fmt.Errorf("session service: create session: %w", err)
	}

	metrics.ActiveSessions.Inc()

	token, err := s.jwt.Issue(TokenInput{
		UserID:    user.ID,
		SessionID: session.ID,
		Role:      user.Role,
	})
	if err != nil {
		return "", nil, fmt.Errorf("session service: generate token: %w", err)
	}

	s.cacheSession(ctx, session)
	return token, session, nil
}

// Resolve validates a session token and the session it names.
func (s *SessionService) Resolve(ctx context.Context, token string) (*Identity, error) {
	claims, err := s.jwt.Parse(strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionInvalidToken, err)
	}
	session, err := s.loadSession(ctx, claims.SessionID())
	if err != nil {
		return nil, err
	}
	if session.UserID != claims.UserID() {
		return nil, ErrSessionInvalidToken
	}
	if session.RevokedAt != nil {
		return nil, ErrSessionRevoked
	}
	if !session.ExpiresAt.After(s.now()) {
		return nil, ErrSessionExpired
	}

	return &Identity{
		UserID:    claims.UserID(),
		SessionID: session.ID,
		Role:      claims.Role,
	}, nil
}

func (s *SessionService) loadSession(ctx context.Context, sessionID string) (*models.Session, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, sessionID)
		if err == nil && cached != nil {
			return cached, nil
		}
		if err != nil && !errors.Is(err, errSessionCacheMiss) {
			s.log.Warn("session cache lookup failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}

	var session models.Session
	err := s.db.WithContext(ctx).Take(&session, "id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session service: find session: %w", err)
	}

	s.cacheSession(ctx, &session)
	return &session, nil
}

func (s *SessionService) cacheSession(ctx context.Context, session *models.Session) {
	if s.cache == nil {
		return
	}
	ttl := session.ExpiresAt.Sub(s.now())
	if ttl <= 0 || session.RevokedAt != nil {
		return
	}
	if err := s.cache.Set(ctx, session, ttl); err != nil {
		s.log.Warn("session cache write failed", zap.String("session_id", session.ID), zap.Error(err))
	}
}

// RevokeSession marks a session as revoked so its token stops authenticating.
func (s *SessionService) RevokeSession(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrSessionInvalidToken
	}

	result := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("id = ? AND revoked_at IS NULL", sessionID).
		Update("revoked_at", s.now())
	if result.Error != nil {
		return fmt.Errorf("session service: revoke session: %w", result.Error)
	}

	if s.cache != nil {
		_ = s.cache.Delete(ctx, sessionID)
	}

	if result.RowsAffected == 0 {
		return ErrSessionNotFound
	}

	metrics.ActiveSessions.Sub(float64(result.RowsAffected))
	return nil
}

// CleanupExpired removes expired and revoked sessions.
func (s *SessionService) CleanupExpired(ctx context.Context) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	now := s.now()

	var activeExpired int64
	if err := s.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("expires_at < ? AND revoked_at IS NULL", now).
		Count(&activeExpired).Error; err != nil {
		return 0, fmt.Errorf("session service: count expired sessions: %w", err)
	}

	var ids []string
	if err := s.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("expires_at < ?", now).
		Or("revoked_at IS NOT NULL").
		Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("session service: list expired sessions: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	result := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.Session{})
	if result.Error != nil {
		return 0, fmt.Errorf("session service: cleanup expired sessions: %w", result.Error)
	}

	if s.cache != nil {
		_ = s.cache.Delete(ctx, ids...)
	}

	if activeExpired > 0 {
		metrics.ActiveSessions.Sub(float64(activeExpired))
	}

	return result.RowsAffected, nil
}
