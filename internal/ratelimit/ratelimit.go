// Package ratelimit implements a fixed-window request limiter on Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyFormat = "ratelimit:%s:%s"

// PTTL reports -1 for a key that exists but has no expiry.
const noExpiry = time.Duration(-1)

type Decision struct {
	Allowed    bool
	Limit      int64
	Remaining  int64
	RetryAfter time.Duration
}

type Limiter struct {
	client redis.Cmdable
	name   string
	limit  int64
	window time.Duration
}

func New(client redis.Cmdable, name string, limit int64, window time.Duration) *Limiter {
	return &Limiter{
		client: client,
		name:   name,
		limit:  limit,
		window: window,
	}
}

func (l *Limiter) key(id string) string {
	return fmt.Sprintf(keyFormat, l.name, id)
}

// Allow counts one hit for id in the current window.
//
// INCR and EXPIRE are separate round trips, so a key can end up without a
// TTL when the EXPIRE is lost. A blocked caller notices that and restores the
// expiry, otherwise the id would stay blocked forever.
func (l *Limiter) Allow(ctx context.Context, id string) (Decision, error) {
	key := l.key(id)

	hits, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return Decision{}, err
	}

	// First hit opens the window.
	if hits == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return Decision{}, err
		}
	}

	d := Decision{Allowed: hits <= l.limit, Limit: l.limit, Remaining: l.limit - hits}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if d.Allowed {
		return d, nil
	}

	ttl, err := l.client.PTTL(ctx, key).Result()
	if err != nil {
		return Decision{}, err
	}

	switch {
	case ttl == noExpiry:
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return Decision{}, err
		}
		ttl = l.window
	case ttl < 0:
		// Expired between INCR and PTTL.
		ttl = l.window
	}
	d.RetryAfter = ttl

	return d, nil
}
