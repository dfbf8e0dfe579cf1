package redis

import (
	"context"
	"fmt"
	"time"
)

// RunLock serializes scheduled pipeline runs across processes. Acquire is a
// SET NX with TTL so a crashed holder cannot wedge the schedule forever.
// With Redis disabled the lock always grants, which is the right behavior for
// single-process development setups.
type RunLock struct {
	client *Client
	key    string
	token  string
}

// NewRunLock creates a lock helper for the given lock name.
func NewRunLock(client *Client, name, token string) *RunLock {
	return &RunLock{
		client: client,
		key:    fmt.Sprintf("factorpipe:lock:%s", name),
		token:  token,
	}
}

// Acquire attempts to take the lock for ttl. Returns false when another
// holder has it.
func (l *RunLock) Acquire(ctx context.Context, ttl time.Duration) (bool, error) {
	if !l.client.Enabled() {
		return true, nil
	}
	ok, err := l.client.Redis().SetNX(ctx, l.key, l.token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("lock acquire failed: %w", err)
	}
	return ok, nil
}

// Release frees the lock if this helper still holds it. A lock stolen after
// TTL expiry is left alone.
func (l *RunLock) Release(ctx context.Context) error {
	if !l.client.Enabled() {
		return nil
	}
	const script = `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		end
		return 0
	`
	if err := l.client.Redis().Eval(ctx, script, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("lock release failed: %w", err)
	}
	return nil
}
