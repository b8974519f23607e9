package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"delivery-marketplace/pkg/config"
	"delivery-marketplace/pkg/rediskey"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("ratelimit",
	fx.Provide(New),
)

type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter is a sliding window counter keyed by client identifier.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

type Params struct {
	fx.In
	Config *config.Config
	Redis  *redis.Client `optional:"true"`
}

func New(p Params) Limiter {
	limit, window := p.Config.RateLimit.Requests, p.Config.RateLimit.Window
	if p.Redis != nil && p.Config.Redis.Addr != "" {
		zap.L().Info("[RateLimit] Using redis sliding window", zap.Int("limit", limit), zap.Duration("window", window))
		return NewRedisLimiter(p.Redis, limit, window)
	}

	zap.L().Warn("[RateLimit] Redis not configured, using in-memory limiter")
	return NewMemoryLimiter(limit, window)
}

type RedisLimiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRedisLimiter(rdb *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, limit: limit, window: window, now: time.Now}
}

// Allow records the hit in a sorted set scored by time and counts the hits
// inside the window. Rejected hits are removed again so they do not extend
// the block.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := l.now()
	k := rediskey.RateLimitKey(key)
	member := fmt.Sprintf("%d", now.UnixNano())
	windowStart := now.Add(-l.window).UnixNano()

	pipe := l.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, k, "0", fmt.Sprintf("%d", windowStart))
	pipe.ZAdd(ctx, k, redis.Z{Score: float64(now.UnixNano()), Member: member})
	card := pipe.ZCard(ctx, k)
	oldest := pipe.ZRangeWithScores(ctx, k, 0, 0)
	pipe.PExpire(ctx, k, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, err
	}

	count := int(card.Val())
	if count <= l.limit {
		return Result{Allowed: true, Limit: l.limit, Remaining: l.limit - count}, nil
	}

	_ = l.rdb.ZRem(ctx, k, member).Err()

	retry := l.window
	if zs := oldest.Val(); len(zs) > 0 {
		retry = time.Unix(0, int64(zs[0].Score)).Add(l.window).Sub(now)
	}

	return Result{Allowed: false, Limit: l.limit, RetryAfter: retry}, nil
}

type MemoryLimiter struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	hits      map[string][]time.Time
	lastSweep time.Time
	now       func() time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:  limit,
		window: window,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	l.sweep(now, cutoff)

	kept := l.hits[key][:0]
	for _, ts := range l.hits[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.limit {
		l.hits[key] = kept
		return Result{
			Allowed:    false,
			Limit:      l.limit,
			RetryAfter: kept[0].Add(l.window).Sub(now),
		}, nil
	}

	kept = append(kept, now)
	l.hits[key] = kept

	return Result{Allowed: true, Limit: l.limit, Remaining: l.limit - len(kept)}, nil
}

// sweep drops keys with no hit inside the window, at most once per window.
func (l *MemoryLimiter) sweep(now, cutoff time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now

	for key, hits := range l.hits {
		if len(hits) == 0 || !hits[len(hits)-1].After(cutoff) {
			delete(l.hits, key)
		}
	}
}

// Len reports the number of tracked keys.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hits)
}
