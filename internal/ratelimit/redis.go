package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrScript counts one event and gives the key the window's expiry when it has none, so a counter
// can never outlive its window.
var incrScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if redis.call('PTTL', KEYS[1]) < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// RedisLimiter is a fixed-window counter shared by every server instance. The window starts at the
// first event for a key.
type RedisLimiter struct {
	cli    redis.UniversalClient
	prefix string
	max    int64
	window time.Duration
}

// NewRedisLimiter allows max events per key per window.
func NewRedisLimiter(cli redis.UniversalClient, prefix string, max int, window time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = "ratelimit:"
	}
	return &RedisLimiter{cli: cli, prefix: prefix, max: int64(max), window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	window := l.window.Milliseconds()
	if window < 1 {
		window = 1
	}
	n, err := incrScript.Run(ctx, l.cli, []string{l.prefix + key}, window).Int64()
	if err != nil {
		return false, err
	}
	return n <= l.max, nil
}
