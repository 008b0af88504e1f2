package cache

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	_ = godotenv.Load("../../../.env")

	rdb, err := NewRedisClient(Options{
		Host:     getEnv("REDIS_HOST", "localhost"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", "secret_redis_pass_local"),
		DB:       1,
	})
	if err != nil {
		t.Skipf("Skipping Redis integration test: %v", err)
	}
	t.Cleanup(func() { rdb.Close() })

	require.NoError(t, rdb.FlushDB(context.Background()).Err(), "Failed to flush test DB")
	return rdb
}

func TestRedisClient_Integration(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()

	t.Run("Connection Ping", func(t *testing.T) {
		pong, err := rdb.Ping(ctx).Result()
		assert.NoError(t, err)
		assert.Equal(t, "PONG", pong)
	})

	t.Run("Expire Check", func(t *testing.T) {
		key := "test_expire"
		require.NoError(t, rdb.Set(ctx, key, "expire_me", 1*time.Second).Err())

		time.Sleep(1100 * time.Millisecond)

		_, err := rdb.Get(ctx, key).Result()
		assert.ErrorIs(t, err, redis.Nil, "Errors need to be of type 'redis.Nil'")
	})
}

func TestLocker_Integration(t *testing.T) {
	rdb := setupRedis(t)
	locker := NewLocker(rdb)
	ctx := context.Background()

	t.Run("Only one concurrent claimer wins", func(t *testing.T) {
		var wins int32
		var wg sync.WaitGroup

		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := locker.TryLock(ctx, "materialize:2024-03-01", time.Minute)
				assert.NoError(t, err)
				if ok {
					atomic.AddInt32(&wins, 1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), wins)
	})

	t.Run("Claim expires", func(t *testing.T) {
		key := fmt.Sprintf("short-%d", time.Now().UnixNano())

		ok, err := locker.TryLock(ctx, key, time.Second)
		require.NoError(t, err)
		require.True(t, ok)

		time.Sleep(1100 * time.Millisecond)

		ok, err = locker.TryLock(ctx, key, time.Second)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Unlock frees the claim before the TTL", func(t *testing.T) {
		key := fmt.Sprintf("released-%d", time.Now().UnixNano())

		ok, err := locker.TryLock(ctx, key, time.Hour)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = locker.TryLock(ctx, key, time.Hour)
		require.NoError(t, err)
		require.False(t, ok)

		require.NoError(t, locker.Unlock(ctx, key))
		require.NoError(t, locker.Unlock(ctx, key), "releasing twice is harmless")

		ok, err = locker.TryLock(ctx, key, time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}
