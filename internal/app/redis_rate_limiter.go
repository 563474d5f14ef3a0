package app

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/Zymoclassic/eduplat/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	defaultRateLimitPrefix = "eduplat:rate_limit"
	pinAttemptScope        = "pin_attempt"
)

// Fixed window counter; the TTL is set on the first hit only.
var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// RateLimiter counts hits per (scope, subject) inside a window.
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// RedisRateLimiter implements RateLimiter with a shared Redis counter so that
// limits hold across service replicas.
type RedisRateLimiter struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisRateLimiter(client redis.UniversalClient, prefix string) *RedisRateLimiter {
	trimmed := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if trimmed == "" {
		trimmed = defaultRateLimitPrefix
	}
	return &RedisRateLimiter{client: client, prefix: trimmed}
}

func (r *RedisRateLimiter) key(scope, subject string) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, scope, subject)
}

func (r *RedisRateLimiter) ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (int, int, error) {
	if r == nil || r.client == nil || limit <= 0 || window <= 0 {
		return 0, 0, nil
	}
	scope = strings.TrimSpace(scope)
	subject = strings.TrimSpace(subject)
	if scope == "" || subject == "" {
		return 0, 0, nil
	}

	windowMs := window.Milliseconds()
	if windowMs < 1000 {
		windowMs = 1000
	}

	raw, err := fixedWindowScript.Run(ctx, r.client, []string{r.key(scope, subject)}, windowMs).Result()
	if err != nil {
		return 0, 0, err
	}
	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return 0, 0, fmt.Errorf("unexpected redis limiter response shape: %T", raw)
	}
	count, ok := values[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected redis limiter count type: %T", values[0])
	}
	ttlMs, ok := values[1].(int64)
	if !ok || ttlMs < 0 {
		ttlMs = windowMs
	}

	retryAfter := int(math.Ceil(float64(ttlMs) / 1000.0))
	if retryAfter < 1 {
		retryAfter = 1
	}
	return int(count), retryAfter, nil
}

// pinAttemptGuard throttles PIN checks per account. A nil limiter or a
// Redis outage lets the attempt through.
type pinAttemptGuard struct {
	limiter RateLimiter
	perMin  int
}

func (g pinAttemptGuard) check(ctx context.Context, ref domain.AccountRef) error {
	if g.limiter == nil || g.perMin <= 0 {
		return nil
	}
	count, retryAfter, err := g.limiter.ConsumeRateLimit(ctx, pinAttemptScope, ref.String(), g.perMin, time.Minute)
	if err != nil {
		log.Printf("level=warn component=rate_limiter msg=\"pin attempt limiter unavailable; allowing\" account=%s err=%v", ref, err)
		return nil
	}
	if count > g.perMin {
		return &Error{Kind: ErrRateLimited, Message: "too many PIN attempts, try again later", RetryAfter: retryAfter}
	}
	return nil
}
