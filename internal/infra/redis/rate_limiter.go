package redis

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter counts requests per aligned window. Each window gets its own
// key so a counter never outlives the window it belongs to.
type RateLimiter struct {
	client RedisClient
	now    func() time.Time
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client, now: time.Now}
}

// Allow reports whether the request under key still fits in limit for the
// current window.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 || window <= 0 {
		return true, nil
	}
	bucket := r.now().UnixNano() / int64(window)
	count, err := r.client.IncrWithTTL(ctx, fmt.Sprintf("%s:%d", key, bucket), window)
	if err != nil {
		return false, fmt.Errorf("rate limit %s: %w", key, err)
	}
	return count <= int64(limit), nil
}

// ClientRouteKey scopes a limit to one client address and route.
func ClientRouteKey(ip, route string) string {
	return fmt.Sprintf("rate_limit:%s:%s", route, ip)
}
