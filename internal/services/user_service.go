package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/internhub/internal/events"
	"github.com/charlesng35/internhub/internal/models"
	"github.com/charlesng35/internhub/pkg/crypto"
	apperrors "github.com/charlesng35/internhub/pkg/errors"
	"github.com/charlesng35/internhub/pkg/logger"
	"github.com/charlesng35/internhub/pkg/metrics"
	"github.com/charlesng35/internhub/pkg/validator"
)

// RegisterInput describes the fields accepted by both registration flows.
type RegisterInput struct {
	Username string `json:"username" validate:"required,max=150"`
	Password string `json:"password" validate:"required,maxbytes=72"`
	Role     string `json:"role" validate:"required,oneof=company student"`
	Mobile   string `json:"mobile" validate:"omitempty,mobile"`
}

func (in *RegisterInput) normalise() {
	in.Username = strings.TrimSpace(in.Username)
	in.Password = crypto.NormalizePassword(in.Password)
	in.Role = strings.ToLower(strings.TrimSpace(in.Role))
	in.Mobile = strings.TrimSpace(in.Mobile)
}

// UserOption customises the UserService.
type UserOption func(*UserService)

// WithUserClock injects a custom time source.
func WithUserClock(clock func() time.Time) UserOption {
	return func(s *UserService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithUserEvents publishes user.registered events.
func WithUserEvents(publisher events.Publisher) UserOption {
	return func(s *UserService) {
		s.events = ensurePublisher(publisher)
	}
}

// UserService owns the identity store.
type UserService struct {
	db     *gorm.DB
	now    func() time.Time
	events events.Publisher
	log    *zap.Logger
}

// NewUserService constructs a UserService instance.
func NewUserService(db *gorm.DB, opts ...UserOption) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	svc := &UserService{
		db:     db,
		now:    time.Now,
		events: events.NoopPublisher{},
		log:    logger.WithModule("services.users"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Register creates an account immediately. The password is stored as a bcrypt hash.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	ctx = ensureContext(ctx)
	input.normalise()

	if err := validateRegistration(input); err != nil {
		metrics.Registrations.WithLabelValues("direct", "invalid").Inc()
		return nil, err
	}
	if err := s.ensureAvailable(ctx, input.Username, input.Mobile); err != nil {
		metrics.Registrations.WithLabelValues("direct", "duplicate").Inc()
		return nil, err
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("user service: hash password: %w", err)
	}

	user := &models.User{
		Username:     input.Username,
		PasswordHash: hashed,
		Role:         input.Role,
		Mobile:       optionalString(input.Mobile),
	}
	if err := s.create(ctx, user); err != nil {
		return nil, err
	}

	metrics.Registrations.WithLabelValues("direct", "success").Inc()
	return user, nil
}

// createVerified persists a confirmed staged registration.
func (s *UserService) createVerified(ctx context.Context, pending *PendingRegistration) (*models.User, error) {
	user := &models.User{
		Username:     pending.Username,
		PasswordHash: pending.PasswordHash,
		Role:         pending.Role,
		Mobile:       optionalString(pending.Mobile),
		IsVerified:   true,
	}
	if err := s.create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) create(ctx context.Context, user *models.User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return s.duplicateError(ctx, user)
		}
		return fmt.Errorf("user service: create user: %w", err)
	}

	s.log.Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("role", user.Role),
		zap.Bool("verified", user.IsVerified))

	publishEvent(ctx, s.events, s.log, events.New(events.UserRegistered, s.now(), map[string]any{
		"user_id":     user.ID,
		"username":    user.Username,
		"role":        user.Role,
		"is_verified": user.IsVerified,
	}))
	return nil
}

// duplicateError names the column a racing insert collided on.
func (s *UserService) duplicateError(ctx context.Context, user *models.User) error {
	mobile := ""
	if user.Mobile != nil {
		mobile = *user.Mobile
	}
	if err := s.ensureAvailable(ctx, user.Username, mobile); err != nil {
		return err
	}
	return ErrDuplicateUsername
}

// ensureAvailable checks username and mobile uniqueness up front.
func (s *UserService) ensureAvailable(ctx context.Context, username, mobile string) error {
	taken, err := s.exists(ctx, "username = ?", username)
	if err != nil {
		return err
	}
	if taken {
		return ErrDuplicateUsername
	}

	if mobile == "" {
		return nil
	}
	taken, err = s.exists(ctx, "mobile = ?", mobile)
	if err != nil {
		return err
	}
	if taken {
		return ErrDuplicateMobile
	}
	return nil
}

func (s *UserService) exists(ctx context.Context, query string, arg any) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where(query, arg).Count(&count).Error; err != nil {
		return false, fmt.Errorf("user service: lookup user: %w", err)
	}
	return count > 0, nil
}

// GetByID loads a user by identifier.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).Take(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: get user: %w", err)
	}
	return &user, nil
}

func validateRegistration(input RegisterInput) error {
	if err := validator.ValidateStruct(input); err != nil {
		var failures validator.ValidationErrors
		if errors.As(err, &failures) && len(failures) > 0 {
			return apperrors.NewBadRequest(registrationMessage(failures[0]))
		}
		return apperrors.NewBadRequest("Invalid registration details")
	}
	return nil
}

func registrationMessage(failure validator.ValidationError) string {
	if failure.Tag == "maxbytes" {
		return fmt.Sprintf("%s must be at most %s bytes", strings.ToUpper(failure.Field[:1])+failure.Field[1:], failure.Param)
	}
	if failure.Tag == "max" {
		return fmt.Sprintf("%s must be at most %s characters", strings.ToUpper(failure.Field[:1])+failure.Field[1:], failure.Param)
	}
	switch failure.Field {
	case "username":
		return "Username is required"
	case "password":
		return "Password is required"
	case "role":
		return "Role must be company or student"
	case "mobile":
		if failure.Tag == "required" {
			return "Mobile number is required"
		}
		return "Mobile number is invalid"
	}
	return "Invalid registration details"
}
