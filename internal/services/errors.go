package services

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/charlesng35/internhub/pkg/errors"
)

var (
	ErrDuplicateUsername = apperrors.New("DUPLICATE_USERNAME", "Username already exists", http.StatusConflict)
	ErrDuplicateMobile   = apperrors.New("DUPLICATE_MOBILE", "Mobile number already registered", http.StatusConflict)
	// ErrInvalidCredentials covers both unknown usernames and wrong passwords.
	ErrInvalidCredentials = apperrors.ErrInvalidCredentials
	// ErrAccessDenied is returned when a user acts on another user's records.
	ErrAccessDenied = apperrors.ErrForbidden

	ErrUserNotFound        = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)
	ErrPostingNotFound     = apperrors.New("NOT_FOUND", "Internship not found", http.StatusNotFound)
	ErrApplicationNotFound = apperrors.New("NOT_FOUND", "Application not found", http.StatusNotFound)
	ErrResumeNotFound      = apperrors.New("NOT_FOUND", "File not found", http.StatusNotFound)

	ErrInvalidTestDefinition = apperrors.New("INVALID_TEST_DEFINITION", "Invalid test JSON. Use valid JSON list of questions.", http.StatusBadRequest)
	ErrInvalidCutoff         = apperrors.New("INVALID_CUTOFF", "Cutoff must be between 0 and 100", http.StatusBadRequest)

	ErrAlreadyApplied       = apperrors.New("ALREADY_APPLIED", "You have already applied or attempted this internship", http.StatusConflict)
	ErrTestAlreadySubmitted = apperrors.New("TEST_ALREADY_SUBMITTED", "You have already submitted this test", http.StatusConflict)
	ErrNotEligible          = apperrors.New("NOT_ELIGIBLE", "You must pass the test first", http.StatusForbidden)
	ErrNoFileSelected       = apperrors.New("NO_FILE_SELECTED", "No file selected", http.StatusBadRequest)
	ErrFileTooLarge         = apperrors.New("FILE_TOO_LARGE", "File is too large", http.StatusRequestEntityTooLarge)

	ErrInvalidCode           = apperrors.New("INVALID_CODE", "Invalid OTP. Try again.", http.StatusBadRequest)
	ErrNoPendingRegistration = apperrors.New("NO_PENDING_REGISTRATION", "No registration data found. Try again.", http.StatusBadRequest)
	ErrCodeDeliveryFailed    = apperrors.New("CODE_DELIVERY_FAILED", "Could not send the verification code. Try again later.", http.StatusBadGateway)
)

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique constraint") ||
		strings.Contains(lower, "duplicate")
}
