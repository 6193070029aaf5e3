package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/internhub/internal/models"
	"github.com/charlesng35/internhub/pkg/crypto"
)

// ErrInvalidCredentials is returned when the supplied username/password pair is invalid.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// LocalConfig defines tunable behaviour for the local provider.
type LocalConfig struct {
	Clock func() time.Time
}

// AuthenticateInput contains metadata required to authenticate a local user.
type AuthenticateInput struct {
	Username  string
	Password  string
	IPAddress string
}

// LocalProvider implements username/password authentication against bcrypt hashes.
type LocalProvider struct {
	db    *gorm.DB
	clock func() time.Time
}

// NewLocalProvider builds a provider with sane defaults.
func NewLocalProvider(db *gorm.DB, cfg LocalConfig) (*LocalProvider, error) {
	if db == nil {
		return nil, errors.New("local provider: db is required")
	}

	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}

	return &LocalProvider{db: db, clock: clock}, nil
}

// Authenticate verifies the supplied credentials and returns the associated user when successful.
// Unknown usernames and wrong passwords are indistinguishable to the caller.
func (p *LocalProvider) Authenticate(ctx context.Context, input AuthenticateInput) (*models.User, error) {
	username := strings.TrimSpace(input.Username)
	password := crypto.NormalizePassword(input.Password)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	var user models.User
	err := p.db.WithContext(ctx).Where("username = ?", username).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("local provider: query user: %w", err)
	}

	if !crypto.VerifyPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	now := p.clock()
	user.LastLoginAt = &now
	user.LastLoginIP = strings.TrimSpace(input.IPAddress)

	if err := p.db.WithContext(ctx).Model(&user).Updates(map[string]any{
		"last_login_at": now,
		"last_login_ip": user.LastLoginIP,
	}).Error; err != nil {
		return nil, fmt.Errorf("local provider: update user: %w", err)
	}

	return &user, nil
}
