package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Ventana deslizante sobre un sorted set: score = ms del intento. Solo los
// intentos aceptados entran al set, igual que en la version en memoria.
const redisSlidingWindowScript = `
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", tonumber(ARGV[1]) - tonumber(ARGV[2]))
if redis.call("ZCARD", KEYS[1]) >= tonumber(ARGV[3]) then
  return 0
end
redis.call("ZADD", KEYS[1], ARGV[1], ARGV[4])
redis.call("PEXPIRE", KEYS[1], ARGV[2])
return 1
`

type redisScriptRunner interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

type redisLoginLimiter struct {
	client  redisScriptRunner
	window  time.Duration
	max     int
	prefix  string
	timeout time.Duration
	now     func() time.Time
}

// NewRedisLoginRateLimiter comparte la ventana de intentos entre instancias.
func NewRedisLoginRateLimiter(client *redis.Client, window time.Duration, max int) LoginRateLimiter {
	if client == nil {
		return nil
	}
	if window <= 0 {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	return &redisLoginLimiter{
		client:  client,
		window:  window,
		max:     max,
		prefix:  "auth:login:",
		timeout: 500 * time.Millisecond,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Allow deja pasar el intento cuando redis falla y devuelve el error para que
// el llamador lo registre.
func (l *redisLoginLimiter) Allow(ctx context.Context, key string) (bool, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	nowMs := l.now().UnixMilli()
	member := fmt.Sprintf("%d-%s", nowMs, uuid.NewString())
	allowed, err := l.client.Eval(ctx, redisSlidingWindowScript,
		[]string{l.prefix + key},
		nowMs, l.window.Milliseconds(), l.max, member,
	).Int()
	if err != nil {
		return true, fmt.Errorf("login limiter: %w", err)
	}
	return allowed == 1, nil
}
