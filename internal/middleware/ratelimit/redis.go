package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/rueidis"
)

// The first hit in a window sets the expiry; a key that somehow lost its
// TTL gets one again instead of living forever.
const fixedWindowScript = `
local current = redis.call('INCR', KEYS[1])
if current == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`

// RedisConfig configures a RedisLimiter.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	KeyPrefix   string
	DialTimeout time.Duration
}

// RedisLimiter keeps fixed-window counters in Redis so that every service
// instance shares one quota.
type RedisLimiter struct {
	client rueidis.Client
	script *rueidis.Lua
	prefix string
	limit  int
	window time.Duration
}

var _ Limiter = (*RedisLimiter)(nil)

// NewRedisLimiter connects to Redis and verifies the connection.
func NewRedisLimiter(rc RedisConfig, config Config) (*RedisLimiter, error) {
	if rc.Addr == "" {
		return nil, fmt.Errorf("redis: no address configured")
	}
	if rc.DialTimeout <= 0 {
		rc.DialTimeout = 5 * time.Second
	}
	if rc.KeyPrefix == "" {
		rc.KeyPrefix = "ledger:ratelimit:"
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{rc.Addr},
		Password:     rc.Password,
		SelectDB:     rc.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("redis: failed to create client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), rc.DialTimeout)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: failed to ping server: %w", err)
	}

	return newRedisLimiter(client, rc.KeyPrefix, config), nil
}

func newRedisLimiter(client rueidis.Client, prefix string, config Config) *RedisLimiter {
	config = config.normalized()
	return &RedisLimiter{
		client: client,
		script: rueidis.NewLuaScript(fixedWindowScript),
		prefix: prefix,
		limit:  config.Requests,
		window: config.Window,
	}
}

func (r *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	resp := r.script.Exec(ctx, r.client,
		[]string{r.prefix + key},
		[]string{strconv.FormatInt(r.window.Milliseconds(), 10)})

	vals, err := resp.AsIntSlice()
	if err != nil {
		return Decision{}, fmt.Errorf("redis ratelimit: %w", err)
	}
	if len(vals) != 2 {
		return Decision{}, fmt.Errorf("redis ratelimit: unexpected reply length %d", len(vals))
	}

	count, ttl := int(vals[0]), time.Duration(vals[1])*time.Millisecond
	remaining := r.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:    count <= r.limit,
		Limit:      r.limit,
		Remaining:  remaining,
		ResetAfter: ttl,
	}, nil
}

// Ping checks the Redis connection.
func (r *RedisLimiter) Ping(ctx context.Context) error {
	return r.client.Do(ctx, r.client.B().Ping().Build()).Error()
}

func (r *RedisLimiter) Close() {
	r.client.Close()
}
