package app

import (
	"time"

	"github.com/charlesng35/internhub/internal/auth"
	"github.com/charlesng35/internhub/internal/notify"
	"github.com/charlesng35/internhub/internal/storage"
)

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.Session.TTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}

	return auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         c.JWT.Issuer,
		AccessTokenTTL: ttl,
	}
}

// SenderConfig converts SMSConfig into the notify package representation.
func (c SMSConfig) SenderConfig() notify.SMSConfig {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return notify.SMSConfig{
		Endpoint: c.Endpoint,
		APIKey:   c.APIKey,
		SenderID: c.SenderID,
		Route:    c.Route,
		Timeout:  timeout,
	}
}

// MinIOStoreConfig converts the storage configuration for the MinIO backend.
func (c StorageConfig) MinIOStoreConfig() storage.MinIOConfig {
	return storage.MinIOConfig{
		Endpoint:  c.MinIO.Endpoint,
		AccessKey: c.MinIO.AccessKey,
		SecretKey: c.MinIO.SecretKey,
		Bucket:    c.MinIO.Bucket,
		Region:    c.MinIO.Region,
		Prefix:    c.MinIO.Prefix,
		UseSSL:    c.MinIO.UseSSL,
	}
}
