package redis

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

var (
	// ErrLockHeld is returned when another holder owns the lock.
	ErrLockHeld = errors.New("lock held by another instance")
	// ErrLockLost is returned by Refresh once the token no longer owns the key.
	ErrLockLost = errors.New("lock no longer owned")
)

// Locker is a best-effort mutex keyed in Redis. Ownership is proven by the
// random token handed out on acquire.
type Locker struct {
	cli *redis.Client
}

func NewLocker(c *Client) *Locker {
	return &Locker{cli: c.cli}
}

// TryLock acquires key with SET NX PX. It never waits for the current holder.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := l.cli.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrLockHeld
	}
	return token, nil
}

var (
	compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	compareAndExpire = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// Unlock releases key only if token still owns it.
func (l *Locker) Unlock(ctx context.Context, key, token string) error {
	return compareAndDelete.Run(ctx, l.cli, []string{key}, token).Err()
}

// Refresh extends a held lock for long-running holders.
func (l *Locker) Refresh(ctx context.Context, key, token string, ttl time.Duration) error {
	n, err := compareAndExpire.Run(ctx, l.cli, []string{key}, token, ttl.Milliseconds()).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockLost
	}
	return nil
}
