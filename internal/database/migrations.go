package database

import (
	"gorm.io/gorm"

	"github.com/charlesng35/internhub/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Internship{},
		&models.Application{},
		&models.Session{},
		&models.CacheEntry{},
	)
}
