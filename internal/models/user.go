package models

import "time"

// Roles a user may register with.
const (
	RoleCompany = "company"
	RoleStudent = "student"
)

// User is a company or student account. Accounts are never deleted.
type User struct {
	BaseModel

	Username     string  `gorm:"uniqueIndex;size:150;not null" json:"username"`
	PasswordHash string  `gorm:"not null" json:"-"`
	Role         string  `gorm:"size:16;not null;index" json:"role"`
	Mobile       *string `gorm:"uniqueIndex;size:32" json:"mobile,omitempty"`
	IsVerified   bool    `gorm:"default:false" json:"is_verified"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	LastLoginIP string     `json:"-"`
}

// IsCompany reports whether the user posts internships.
func (u *User) IsCompany() bool {
	return u != nil && u.Role == RoleCompany
}

// IsStudent reports whether the user applies to internships.
func (u *User) IsStudent() bool {
	return u != nil && u.Role == RoleStudent
}

// ValidRole reports whether role is one users can register with.
func ValidRole(role string) bool {
	return role == RoleCompany || role == RoleStudent
}
