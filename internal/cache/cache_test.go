package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/internhub/internal/database/testutil"
	"github.com/charlesng35/internhub/internal/models"
)

func TestDatabaseStoreSetGetDelete(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewDatabaseStore(db)
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "registration:missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Set(ctx, "registration:abc", []byte(`{"username":"alice"}`), time.Minute))
	value, ok, err := store.Get(ctx, "registration:abc")
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"username":"alice"}`, string(value))

	require.NoError(t, store.Set(ctx, "registration:abc", []byte(`{"username":"bob"}`), time.Minute))
	value, _, err = store.Get(ctx, "registration:abc")
	require.NoError(t, err)
	require.JSONEq(t, `{"username":"bob"}`, string(value))

	require.NoError(t, store.Delete(ctx, "registration:abc"))
	_, ok, err = store.Get(ctx, "registration:abc")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDatabaseStoreExpiresEntries(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewDatabaseStore(db)
	ctx := context.Background()

	require.NoError(t, db.Create(&models.CacheEntry{
		Key:       "stale",
		Value:     []byte("x"),
		ExpiresAt: time.Now().Add(-time.Minute),
	}).Error)
	require.NoError(t, store.Set(ctx, "fresh", []byte("y"), time.Hour))
	require.NoError(t, store.Set(ctx, "forever", []byte("z"), 0))

	removed, err := store.PurgeExpired(ctx, time.Now())
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	_, ok, err := store.Get(ctx, "fresh")
	require.NoError(t, err)
	require.True(t, ok)
	_, ok, err = store.Get(ctx, "forever")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestDatabaseStoreIncrementWithTTL(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewDatabaseStore(db)
	ctx := context.Background()

	count, ttl, err := store.IncrementWithTTL(ctx, "ratelimit:login:127.0.0.1", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.True(t, ttl > 0 && ttl <= time.Minute)

	count, _, err = store.IncrementWithTTL(ctx, "ratelimit:login:127.0.0.1", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
}

func TestDatabaseStoreIncrementKeepsFixedWindow(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	current := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	store := NewDatabaseStore(db, WithDatabaseClock(func() time.Time { return current }))
	ctx := context.Background()
	key := "ratelimit:register:10.0.0.1"

	_, ttl, err := store.IncrementWithTTL(ctx, key, time.Minute)
	require.NoError(t, err)
	require.Equal(t, time.Minute, ttl)

	current = current.Add(40 * time.Second)
	count, ttl, err := store.IncrementWithTTL(ctx, key, time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
	require.Equal(t, 20*time.Second, ttl)

	current = current.Add(20 * time.Second)
	count, ttl, err = store.IncrementWithTTL(ctx, key, time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.Equal(t, time.Minute, ttl)
}

func TestDatabaseStoreGetDropsExpiredEntry(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	current := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	store := NewDatabaseStore(db, WithDatabaseClock(func() time.Time { return current }))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "registration:otp", []byte("pending"), 10*time.Minute))
	current = current.Add(10 * time.Minute)

	_, ok, err := store.Get(ctx, "registration:otp")
	require.NoError(t, err)
	require.False(t, ok)

	var remaining int64
	require.NoError(t, db.Model(&models.CacheEntry{}).Count(&remaining).Error)
	require.Zero(t, remaining)
}

func TestRedisKeyPrefixing(t *testing.T) {
	client := NewRedisClientFrom(nil, 0)

	require.Equal(t, "internhub:session:abc", client.prefixed("session::abc"))
	require.Equal(t, "internhub:session:abc", client.prefixed("internhub:session:abc"))
	require.Equal(t, defaultRedisTimeout, client.timeout)
}
