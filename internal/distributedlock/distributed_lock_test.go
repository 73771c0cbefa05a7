package distributedlock_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalpoint/vitalpoint-backend/internal/distributedlock"
)

func NewRedisClient(t *testing.T, ctx context.Context) *redis.Client {
	t.Helper()

	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skipf("skipping due to missing environment variable %v", "REDIS_URL")
	}

	opt, err := redis.ParseURL(url)
	require.NoError(t, err)

	client := redis.NewClient(opt)
	require.NoError(t, client.Ping(ctx).Err())

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}

func randomName() string {
	return fmt.Sprintf("key:%d-%d", time.Now().UnixNano(), rand.Int63())
}

func TestDistributedLock_AcquireLock(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	name := randomName()
	client := NewRedisClient(t, ctx)

	d, err := distributedlock.New(ctx, client, 10*time.Second)
	require.NoError(t, err)

	lock, err := d.AcquireLock(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, "locks:"+name, lock.Key())

	_, err = d.AcquireLock(ctx, name)
	assert.Equal(t, distributedlock.ErrLockAlreadyAcquired, err)

	require.NoError(t, lock.Release(ctx))
	assert.Equal(t, distributedlock.ErrLockExpired, lock.Release(ctx))

	_, err = d.AcquireLock(ctx, name)
	assert.NoError(t, err)
}

func TestDistributedLock_WithLock(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	name := randomName()
	client := NewRedisClient(t, ctx)

	d, err := distributedlock.New(ctx, client, 10*time.Second)
	require.NoError(t, err)

	boom := errors.New("boom")
	ran, err := d.WithLock(ctx, name, func(context.Context) error { return boom })
	assert.True(t, ran)
	assert.Equal(t, boom, err)

	held, err := d.AcquireLock(ctx, name)
	require.NoError(t, err)

	ran, err = d.WithLock(ctx, name, func(context.Context) error { return nil })
	assert.False(t, ran)
	assert.NoError(t, err)

	require.NoError(t, held.Release(ctx))
}
