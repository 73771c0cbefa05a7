// Package distributedlock coordinates work between processes through Redis,
// so that a job scheduled on every instance only runs on one of them at a time.
package distributedlock

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-redis/redis/v8"
)

const lockKeyFormat = "locks:%s"

// Releasing only deletes the key when it still holds our uid.
const releaseScript = `
	if redis.call("get", KEYS[1]) == ARGV[1] then
		redis.call("del", KEYS[1])
		return 1
	end
	return 0
`

type DistributedLock struct {
	client  *redis.Client
	sha     string
	timeout time.Duration
}

func New(ctx context.Context, client *redis.Client, timeout time.Duration) (*DistributedLock, error) {
	sha, err := client.ScriptLoad(ctx, releaseScript).Result()
	if err != nil {
		return nil, err
	}

	return &DistributedLock{
		client:  client,
		sha:     sha,
		timeout: timeout,
	}, nil
}

func (d *DistributedLock) setLock(ctx context.Context, key string, uid string) error {
	result, err := d.client.SetNX(ctx, key, uid, d.timeout).Result()
	if err != nil {
		return err
	}

	if !result {
		return ErrLockAlreadyAcquired
	}

	return nil
}

func (d *DistributedLock) AcquireLock(ctx context.Context, name string) (*Lock, error) {
	key := fmt.Sprintf(lockKeyFormat, name)
	uid := generateUniqueID()
	if err := d.setLock(ctx, key, uid); err != nil {
		return nil, err
	}

	return &Lock{owner: d, key: key, uid: uid}, nil
}

// WithLock runs fn only if the named lock could be taken right away. It
// reports whether fn ran.
func (d *DistributedLock) WithLock(ctx context.Context, name string, fn func(context.Context) error) (bool, error) {
	lock, err := d.AcquireLock(ctx, name)
	if err == ErrLockAlreadyAcquired {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	ferr := fn(ctx)
	if err := lock.Release(ctx); err != nil && ferr == nil {
		return true, err
	}
	return true, ferr
}

func (d *DistributedLock) release(ctx context.Context, key, uid string) (bool, error) {
	n, err := d.client.EvalSha(ctx, d.sha, []string{key}, uid).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func generateUniqueID() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), rand.Int63())
}
