package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/richxcame/driver-verification/pkg/config"
)

// IdentityType represents the subject of a rate limit decision.
type IdentityType int

const (
	// IdentityAnonymous is unauthenticated traffic keyed by client IP.
	IdentityAnonymous IdentityType = iota
	// IdentityAuthenticated is traffic keyed by user ID.
	IdentityAuthenticated
)

// Rule defines a rate limiting policy for a single identity and endpoint.
type Rule struct {
	Limit  int
	Burst  int
	Window time.Duration
}

// Result captures the outcome of a rate limiting decision.
type Result struct {
	Allowed    bool
	Remaining  int
	Limit      int
	RetryAfter time.Duration
}

// Limiter is a Redis-backed token bucket. Bucket state lives in a hash per
// (endpoint, identity) so every replica shares the same budget.
type Limiter struct {
	client redis.Cmdable
	cfg    config.RateLimitConfig
	script *redis.Script
	now    func() time.Time
}

// KEYS[1] bucket; ARGV: now(ms), refill per ms, capacity, ttl(ms).
// Returns {allowed, tokens left, retry after ms}.
const tokenBucketScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local capacity = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local state = redis.call("HMGET", key, "tokens", "ts")
local tokens = tonumber(state[1]) or capacity
local ts = tonumber(state[2]) or now

if now > ts then
    tokens = math.min(capacity, tokens + (now - ts) * rate)
    ts = now
end

local allowed = 0
local retry = 0
if tokens >= 1 then
    allowed = 1
    tokens = tokens - 1
else
    retry = math.ceil((1 - tokens) / rate)
end

redis.call("HSET", key, "tokens", tokens, "ts", ts)
redis.call("PEXPIRE", key, ttl)

return {allowed, tokens, retry}
`

// NewLimiter creates a new Limiter instance.
func NewLimiter(client redis.Cmdable, cfg config.RateLimitConfig) *Limiter {
	return &Limiter{
		client: client,
		cfg:    cfg,
		script: redis.NewScript(tokenBucketScript),
		now:    time.Now,
	}
}

// RuleFor returns the effective rule for an endpoint key such as "POST:/api/v1/documents".
func (l *Limiter) RuleFor(endpoint string, identityType IdentityType) Rule {
	rule := Rule{Limit: l.cfg.DefaultLimit, Burst: l.cfg.DefaultBurst, Window: l.cfg.Window()}
	if identityType == IdentityAnonymous {
		rule.Limit, rule.Burst = l.cfg.AnonymousLimit, l.cfg.AnonymousBurst
	}

	if override, ok := l.cfg.EndpointOverrides[endpoint]; ok {
		if override.WindowSeconds > 0 {
			rule.Window = time.Duration(override.WindowSeconds) * time.Second
		}
		limit, burst := override.AuthenticatedLimit, override.AuthenticatedBurst
		if identityType == IdentityAnonymous {
			limit, burst = override.AnonymousLimit, override.AnonymousBurst
		}
		if limit > 0 {
			rule.Limit = limit
		}
		if burst >= 0 {
			rule.Burst = burst
		}
	}

	if rule.Burst < 0 {
		rule.Burst = 0
	}
	return rule
}

// Allow consumes one token for identityKey on endpointKey.
func (l *Limiter) Allow(ctx context.Context, endpointKey, identityKey string, rule Rule) (Result, error) {
	if !l.cfg.Enabled || rule.Limit <= 0 {
		return Result{Allowed: true, Remaining: rule.Limit, Limit: rule.Limit}, nil
	}

	window := rule.Window
	if window <= 0 {
		window = l.cfg.Window()
	}
	windowMillis := window.Milliseconds()
	refillRate := float64(rule.Limit) / float64(windowMillis)
	capacity := math.Max(1, float64(rule.Limit+rule.Burst))

	key := fmt.Sprintf("%s:%s:%s", l.cfg.RedisPrefix, endpointKey, identityKey)
	raw, err := l.script.Run(ctx, l.client, []string{key},
		l.now().UnixMilli(), formatFloat(refillRate), formatFloat(capacity), windowMillis*2,
	).Result()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit script: %w", err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 3 {
		return Result{}, errors.New("unexpected rate limit script response")
	}

	result := Result{
		Allowed:   toInt(values[0]) == 1,
		Remaining: toInt(values[1]),
		Limit:     rule.Limit,
	}
	if !result.Allowed {
		result.RetryAfter = time.Duration(toInt(values[2])) * time.Millisecond
	}
	if result.Remaining < 0 {
		result.Remaining = 0
	}
	return result, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 10, 64)
}

func toInt(value interface{}) int {
	switch v := value.(type) {
	case int64:
		return int(v)
	case int:
		return v
	case string:
		i, _ := strconv.Atoi(v)
		return i
	default:
		return 0
	}
}
