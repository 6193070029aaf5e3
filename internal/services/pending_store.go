package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charlesng35/internhub/internal/cache"
)

const pendingRegistrationKeyPrefix = "registration:pending:"

// PendingRegistration is a staged account waiting for its one-time code.
type PendingRegistration struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	Role         string    `json:"role"`
	Mobile       string    `json:"mobile"`
	CodeHash     string    `json:"code_hash"`
	Attempts     int       `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// PendingRegistrationStore keeps staged registrations in the transient cache
// keyed by an opaque registration token. Failed code attempts live in a
// sibling counter key so concurrent verifications never lose an increment.
type PendingRegistrationStore struct {
	store cache.Store
}

// NewPendingRegistrationStore wraps the shared cache.
func NewPendingRegistrationStore(store cache.Store) (*PendingRegistrationStore, error) {
	if store == nil {
		return nil, errors.New("pending registration store: cache store is required")
	}
	return &PendingRegistrationStore{store: store}, nil
}

// Save writes the registration until its ExpiresAt, measured from now.
func (s *PendingRegistrationStore) Save(ctx context.Context, token string, pending *PendingRegistration, now time.Time) error {
	key := pendingKey(token)
	if key == "" {
		return errors.New("pending registration store: token is required")
	}
	ttl := pending.ExpiresAt.Sub(now)
	if ttl <= 0 {
		return s.Delete(ctx, token)
	}

	payload, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("pending registration store: encode: %w", err)
	}
	return s.store.Set(ctx, key, payload, ttl)
}

// Load returns the registration for token, or nil when absent or expired.
func (s *PendingRegistrationStore) Load(ctx context.Context, token string, now time.Time) (*PendingRegistration, error) {
	key := pendingKey(token)
	if key == "" {
		return nil, nil
	}

	data, found, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("pending registration store: get: %w", err)
	}
	if !found {
		return nil, nil
	}

	var pending PendingRegistration
	if err := json.Unmarshal(data, &pending); err != nil {
		return nil, fmt.Errorf("pending registration store: decode: %w", err)
	}
	if !pending.ExpiresAt.After(now) {
		_ = s.Delete(ctx, token)
		return nil, nil
	}

	attempts, err := s.attempts(ctx, key)
	if err != nil {
		return nil, err
	}
	pending.Attempts = attempts
	return &pending, nil
}

// RecordFailure atomically counts one wrong code for token and returns the
// running total. The counter expires together with the registration.
func (s *PendingRegistrationStore) RecordFailure(ctx context.Context, token string, expiresAt, now time.Time) (int, error) {
	key := pendingKey(token)
	if key == "" {
		return 0, errors.New("pending registration store: token is required")
	}
	ttl := expiresAt.Sub(now)
	if ttl <= 0 {
		ttl = time.Second
	}
	count, _, err := s.store.IncrementWithTTL(ctx, attemptsKey(key), ttl)
	if err != nil {
		return 0, fmt.Errorf("pending registration store: count attempt: %w", err)
	}
	return int(count), nil
}

func (s *PendingRegistrationStore) attempts(ctx context.Context, key string) (int, error) {
	data, found, err := s.store.Get(ctx, attemptsKey(key))
	if err != nil {
		return 0, fmt.Errorf("pending registration store: get attempts: %w", err)
	}
	if !found {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("pending registration store: decode attempts: %w", err)
	}
	return n, nil
}

// Delete discards the registration for token.
func (s *PendingRegistrationStore) Delete(ctx context.Context, token string) error {
	key := pendingKey(token)
	if key == "" {
		return nil
	}
	return s.store.Delete(ctx, key, attemptsKey(key))
}

func attemptsKey(key string) string {
	return key + ":attempts"
}

func pendingKey(token string) string {
	token = strings.TrimSpace(token)
	if token == "" {
		return ""
	}
	return pendingRegistrationKeyPrefix + token
}
