package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/charlesng35/internhub/internal/models"
)

// DefaultAccessTokenTTL defines the fallback validity period for session tokens.
const DefaultAccessTokenTTL = 12 * time.Hour

// JWTConfig bundles the configuration required to build a JWTService.
type JWTConfig struct {
	Secret         string
	Issuer         string
	AccessTokenTTL time.Duration
	Clock          func() time.Time
}

// Claims is the payload of a session token. The subject is the user id and
// the token id is the session id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// UserID returns the user the token was issued to.
func (c *Claims) UserID() string {
	if c == nil {
		return ""
	}
	return c.Subject
}

// SessionID returns the server-side session the token belongs to.
func (c *Claims) SessionID() string {
	if c == nil {
		return ""
	}
	return c.ID
}

// TokenInput holds the parameters of a new session token.
type TokenInput struct {
	UserID    string
	SessionID string
	Role      string
}

// JWTService signs and verifies session tokens with HS256.
type JWTService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTService constructs a JWTService instance when provided with the required configuration.
func NewJWTService(cfg JWTConfig) (*JWTService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt: secret must be provided")
	}

	ttl := cfg.AccessTokenTTL
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}

	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	return &JWTService{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    ttl,
		now:    now,
	}, nil
}

// TTL reports how long issued tokens remain valid.
func (s *JWTService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for the given user, session and role.
func (s *JWTService) Issue(input TokenInput) (string, error) {
	switch {
	case input.UserID == "":
		return "", errors.New("jwt: user id is required")
	case input.SessionID == "":
		return "", errors.New("jwt: session id is required")
	case !models.ValidRole(input.Role):
		return "", fmt.Errorf("jwt: unknown role %q", input.Role)
	}

	now := s.now()
	claims := &Claims{
		Role: input.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        input.SessionID,
			Subject:   input.UserID,
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies signature, expiry and issuer and returns the claims.
func (s *JWTService) Parse(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("jwt: token string is empty")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	var claims Claims
	_, err := jwt.NewParser(opts...).ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("jwt: parse token: %w", err)
	}

	if claims.Subject == "" || claims.ID == "" {
		return nil, errors.New("jwt: missing subject or session claim")
	}
	if !models.ValidRole(claims.Role) {
		return nil, fmt.Errorf("jwt: unknown role %q", claims.Role)
	}
	return &claims, nil
}
