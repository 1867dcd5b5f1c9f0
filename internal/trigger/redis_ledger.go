package trigger

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisTimeout = 500 * time.Millisecond

// RedisLedger keeps cooldowns in Redis so several processes share them.
// A cooldown is a key set with NX and a TTL equal to the window; Redis expires it.
type RedisLedger struct {
	client  redis.UniversalClient
	prefix  string
	window  time.Duration
	timeout time.Duration
}

func NewRedisLedger(client redis.UniversalClient, prefix string, window time.Duration) (*RedisLedger, error) {
	if window < 0 {
		return nil, fmt.Errorf("%w: %v", ErrNegativeCooldown, window)
	}
	return &RedisLedger{client: client, prefix: prefix, window: window, timeout: defaultRedisTimeout}, nil
}

func (r *RedisLedger) Window() time.Duration { return r.window }

func (r *RedisLedger) key(symbol string) string { return r.prefix + symbol }

func (r *RedisLedger) TryAcquire(symbol string, now time.Time) (bool, time.Duration, error) {
	if r.window == 0 {
		return true, 0, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	ok, err := r.client.SetNX(ctx, r.key(symbol), now.UnixNano(), r.window).Result()
	if err != nil {
		return false, 0, fmt.Errorf("redis setnx %s: %w", symbol, err)
	}
	if ok {
		return true, r.window, nil
	}
	ttl, err := r.client.PTTL(ctx, r.key(symbol)).Result()
	if err != nil {
		return false, 0, fmt.Errorf("redis pttl %s: %w", symbol, err)
	}
	if ttl < 0 {
		ttl = 0
	}
	return false, ttl, nil
}

func (r *RedisLedger) Remaining(symbol string, _ time.Time) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	ttl, err := r.client.PTTL(ctx, r.key(symbol)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis pttl %s: %w", symbol, err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

func (r *RedisLedger) Active(_ time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	n := 0
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan: %w", err)
	}
	return n, nil
}

// Prune is a no-op; Redis expires keys itself.
func (r *RedisLedger) Prune(_ time.Time) (int, error) { return 0, nil }
