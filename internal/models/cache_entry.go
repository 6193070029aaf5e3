package models

import "time"

// CacheEntry backs the cache when Redis is not configured. A zero ExpiresAt
// never expires.
type CacheEntry struct {
	Key       string `gorm:"column:cache_key;primaryKey;size:255"`
	Value     []byte
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Expired reports whether the entry is past its expiry at now.
func (e *CacheEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}
