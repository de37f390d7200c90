package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	userKeyPrefix = "rl:login:user:"
	ipKeyPrefix   = "rl:login:ip:"
)

// Config holds login throttling parameters.
type Config struct {
	Enabled          bool
	MaxLoginAttempts int
	Window           time.Duration
	ThrottleByIP     bool
}

// DefaultConfig allows five failures per user and per IP within fifteen
// minutes.
func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		MaxLoginAttempts: 5,
		Window:           15 * time.Minute,
		ThrottleByIP:     true,
	}
}

// Limiter counts failed logins per username and per client IP in Redis
// fixed windows.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a login [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// Check returns ErrRateLimited when the username or IP has reached the
// failure budget for the current window.
func (l *Limiter) Check(ctx context.Context, username, ip string) error {
	if !l.enabled() {
		return nil
	}
	for _, key := range l.keys(username, ip) {
		count, err := l.redis.Get(ctx, key).Int64()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if count >= int64(l.config.MaxLoginAttempts) {
			return ErrRateLimited
		}
	}
	return nil
}

// Fail records a failed login. It returns ErrRateLimited when this failure
// used up the budget.
func (l *Limiter) Fail(ctx context.Context, username, ip string) error {
	if !l.enabled() {
		return nil
	}
	limited := false
	for _, key := range l.keys(username, ip) {
		count, err := l.incrementWithTTL(ctx, key)
		if err != nil {
			return err
		}
		if count >= int64(l.config.MaxLoginAttempts) {
			limited = true
		}
	}
	if limited {
		return ErrRateLimited
	}
	return nil
}

// Reset clears the username counter after a successful login. The IP counter
// is left alone so a single address cannot reset its budget with one valid
// account.
func (l *Limiter) Reset(ctx context.Context, username string) error {
	if !l.enabled() {
		return nil
	}
	if err := l.redis.Del(ctx, userKey(username)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// RetryAfter returns how long until the username window ends. Zero means
// no active window.
func (l *Limiter) RetryAfter(ctx context.Context, username string) (time.Duration, error) {
	ttl, err := l.redis.TTL(ctx, userKey(username)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

func (l *Limiter) enabled() bool {
	return l.config.Enabled && l.config.MaxLoginAttempts > 0 && l.config.Window > 0
}

func (l *Limiter) keys(username, ip string) []string {
	keys := []string{userKey(username)}
	if l.config.ThrottleByIP && ip != "" {
		keys = append(keys, ipKeyPrefix+ip)
	}
	return keys
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed window: the TTL is set by the first failure only.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return count, nil
}

func userKey(username string) string {
	return userKeyPrefix + strings.ToLower(strings.TrimSpace(username))
}
