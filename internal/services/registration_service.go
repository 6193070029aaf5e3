package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/internhub/internal/models"
	"github.com/charlesng35/internhub/internal/notify"
	"github.com/charlesng35/internhub/pkg/crypto"
	"github.com/charlesng35/internhub/pkg/logger"
	"github.com/charlesng35/internhub/pkg/metrics"
)

const (
	defaultCodeTTL         = 10 * time.Minute
	defaultMaxCodeAttempts = 5
	registrationTokenBytes = 32

	codeMin = 100000
	codeMax = 999999
)

// RegistrationOption customises the RegistrationService.
type RegistrationOption func(*RegistrationService)

// WithRegistrationClock injects a custom time source.
func WithRegistrationClock(clock func() time.Time) RegistrationOption {
	return func(s *RegistrationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithCodeTTL overrides how long a staged registration waits for its code.
func WithCodeTTL(d time.Duration) RegistrationOption {
	return func(s *RegistrationService) {
		if d > 0 {
			s.codeTTL = d
		}
	}
}

// WithMaxCodeAttempts overrides how many wrong codes discard a registration.
func WithMaxCodeAttempts(n int) RegistrationOption {
	return func(s *RegistrationService) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithCodeGenerator replaces the random code source.
func WithCodeGenerator(gen func() (string, error)) RegistrationOption {
	return func(s *RegistrationService) {
		if gen != nil {
			s.generate = gen
		}
	}
}

// RegistrationService stages registrations behind a one-time code delivered
// by SMS. Nothing reaches the user table until the code is confirmed.
type RegistrationService struct {
	users       *UserService
	pending     *PendingRegistrationStore
	sender      notify.Sender
	codeTTL     time.Duration
	maxAttempts int
	generate    func() (string, error)
	now         func() time.Time
	log         *zap.Logger
}

// NewRegistrationService wires the OTP registration flow.
func NewRegistrationService(users *UserService, pending *PendingRegistrationStore, sender notify.Sender, opts ...RegistrationOption) (*RegistrationService, error) {
	if users == nil {
		return nil, errors.New("registration service: user service is required")
	}
	if pending == nil {
		return nil, errors.New("registration service: pending store is required")
	}
	if sender == nil {
		sender = notify.NewLogSender()
	}

	svc := &RegistrationService{
		users:       users,
		pending:     pending,
		sender:      sender,
		codeTTL:     defaultCodeTTL,
		maxAttempts: defaultMaxCodeAttempts,
		generate:    GenerateCode,
		now:         time.Now,
		log:         logger.WithModule("services.registration"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CodeTTL is how long a staged registration waits for its code.
func (s *RegistrationService) CodeTTL() time.Duration {
	return s.codeTTL
}

// GenerateCode returns a six digit code drawn uniformly from [100000, 999999].
func GenerateCode() (string, error) {
	return crypto.GenerateNumericCode(codeMin, codeMax)
}

// Start stages a registration and sends its code. A previous registration
// held under previousToken is abandoned. The returned token identifies the
// new pending registration.
func (s *RegistrationService) Start(ctx context.Context, input RegisterInput, previousToken string) (string, error) {
	ctx = ensureContext(ctx)
	input.normalise()

	if input.Mobile == "" {
		metrics.Registrations.WithLabelValues("otp", "invalid").Inc()
		return "", mobileRequired()
	}
	if err := validateRegistration(input); err != nil {
		metrics.Registrations.WithLabelValues("otp", "invalid").Inc()
		return "", err
	}
	if err := s.users.ensureAvailable(ctx, input.Username, input.Mobile); err != nil {
		metrics.Registrations.WithLabelValues("otp", "duplicate").Inc()
		return "", err
	}

	if previousToken != "" {
		if err := s.pending.Delete(ctx, previousToken); err != nil {
			s.log.Warn("discard previous registration failed", zap.Error(err))
		}
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return "", fmt.Errorf("registration service: hash password: %w", err)
	}
	code, err := s.generate()
	if err != nil {
		return "", fmt.Errorf("registration service: generate code: %w", err)
	}
	token, err := crypto.GenerateToken(registrationTokenBytes)
	if err != nil {
		return "", fmt.Errorf("registration service: generate token: %w", err)
	}

	now := s.now()
	pending := &PendingRegistration{
		Username:     input.Username,
		PasswordHash: hashed,
		Role:         input.Role,
		Mobile:       input.Mobile,
		CodeHash:     crypto.HashToken(code),
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.codeTTL),
	}
	if err := s.pending.Save(ctx, token, pending, now); err != nil {
		return "", fmt.Errorf("registration service: stage registration: %w", err)
	}

	if err := s.sender.Send(ctx, input.Mobile, notify.CodeMessage(code)); err != nil {
		_ = s.pending.Delete(ctx, token)
		metrics.Registrations.WithLabelValues("otp", "delivery_failed").Inc()
		s.log.Error("code delivery failed", zap.String("username", input.Username), zap.Error(err))
		return "", ErrCodeDeliveryFailed.WithInternal(err)
	}

	metrics.Registrations.WithLabelValues("otp", "staged").Inc()
	s.log.Info("registration staged", zap.String("username", input.Username), zap.String("role", input.Role))
	return token, nil
}

// Pending returns the staged registration for token.
func (s *RegistrationService) Pending(ctx context.Context, token string) (*PendingRegistration, error) {
	pending, err := s.pending.Load(ensureContext(ctx), token, s.now())
	if err != nil {
		return nil, err
	}
	if pending == nil {
		return nil, ErrNoPendingRegistration
	}
	return pending, nil
}

// Verify confirms the staged registration with code and persists the user
// as verified. A wrong code keeps the registration pending until the
// attempt limit is reached.
func (s *RegistrationService) Verify(ctx context.Context, token, code string) (*models.User, error) {
	ctx = ensureContext(ctx)
	now := s.now()

	pending, err := s.pending.Load(ctx, token, now)
	if err != nil {
		return nil, err
	}
	if pending == nil || pending.Attempts >= s.maxAttempts {
		metrics.OTPVerifications.WithLabelValues("missing").Inc()
		return nil, ErrNoPendingRegistration
	}

	if !crypto.EqualHash(pending.CodeHash, crypto.HashToken(strings.TrimSpace(code))) {
		return nil, s.rejectCode(ctx, token, pending, now)
	}

	user, err := s.users.createVerified(ctx, pending)
	if err != nil {
		return nil, err
	}
	if err := s.pending.Delete(ctx, token); err != nil {
		s.log.Warn("discard confirmed registration failed", zap.Error(err))
	}

	metrics.OTPVerifications.WithLabelValues("verified").Inc()
	return user, nil
}

func (s *RegistrationService) rejectCode(ctx context.Context, token string, pending *PendingRegistration, now time.Time) error {
	attempts, err := s.pending.RecordFailure(ctx, token, pending.ExpiresAt, now)
	if err != nil {
		return fmt.Errorf("registration service: record attempt: %w", err)
	}
	pending.Attempts = attempts
	if attempts >= s.maxAttempts {
		if err := s.pending.Delete(ctx, token); err != nil {
			return fmt.Errorf("registration service: discard registration: %w", err)
		}
		metrics.OTPVerifications.WithLabelValues("exhausted").Inc()
		s.log.Info("registration abandoned after failed codes", zap.String("username", pending.Username))
		return ErrInvalidCode.WithMessage("Invalid OTP. Too many attempts, please register again.")
	}

	metrics.OTPVerifications.WithLabelValues("invalid").Inc()
	return ErrInvalidCode
}

// MaskMobile hides all but the last three digits.
func MaskMobile(mobile string) string {
	if len(mobile) <= 3 {
		return mobile
	}
	return strings.Repeat("*", len(mobile)-3) + mobile[len(mobile)-3:]
}

func mobileRequired() error {
	return validationError("Mobile number is required")
}
