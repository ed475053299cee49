package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReplayGuard recuerda claves de un solo uso durante un TTL.
type ReplayGuard interface {
	// Remember devuelve true si la clave no se habia visto antes.
	Remember(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Forget libera una clave reservada cuyo uso no llego a completarse.
	Forget(ctx context.Context, key string) error
}

type memoryReplayGuard struct {
	mu    sync.Mutex
	items map[string]time.Time
	now   func() time.Time
}

func NewMemoryReplayGuard() ReplayGuard {
	return &memoryReplayGuard{
		items: make(map[string]time.Time),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (g *memoryReplayGuard) Remember(_ context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key = strings.TrimSpace(key)
	if key == "" {
		return false, nil
	}
	now := g.now()
	for k, exp := range g.items {
		if now.After(exp) {
			delete(g.items, k)
		}
	}
	if _, seen := g.items[key]; seen {
		return false, nil
	}
	g.items[key] = now.Add(ttl)
	return true, nil
}

func (g *memoryReplayGuard) Forget(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.items, strings.TrimSpace(key))
	return nil
}

type redisSetNXer interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type redisReplayGuard struct {
	client  redisSetNXer
	prefix  string
	timeout time.Duration
}

func NewRedisReplayGuard(client *redis.Client) ReplayGuard {
	if client == nil {
		return nil
	}
	return &redisReplayGuard{
		client:  client,
		prefix:  "auth:replay:",
		timeout: 500 * time.Millisecond,
	}
}

func (g *redisReplayGuard) Remember(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return false, nil
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.client.SetNX(ctx, g.prefix+key, 1, ttl).Result()
}

func (g *redisReplayGuard) Forget(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.client.Del(ctx, g.prefix+key).Err()
}
