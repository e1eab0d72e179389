// Package cache holds the Redis-backed view de-duplication used when
// counting anonymous post views.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Defaults for the view counting rule.
const (
	DefaultRelaxation    = 35 * time.Minute
	DefaultMaxPerVisitor = 16
)

// Reasons a view is not counted.
const (
	ReasonRecent = "recent"
	ReasonMax    = "max_reached"
)

// KV is the subset of Redis the limiter needs.
type KV interface {
	Exists(ctx context.Context, key string) (bool, error)
	Count(ctx context.Context, key string) (int64, error)
	SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Incr(ctx context.Context, key string) (int64, error)
}

// ViewLimiter decides whether a visitor's view of a post is counted. A
// visitor is counted at most once per relaxation window and at most
// MaxPerVisitor times overall.
type ViewLimiter struct {
	kv            KV
	Relaxation    time.Duration
	MaxPerVisitor int64
}

func NewViewLimiter(kv KV, relaxation time.Duration, maxPerVisitor int) *ViewLimiter {
	if relaxation <= 0 {
		relaxation = DefaultRelaxation
	}
	if maxPerVisitor <= 0 {
		maxPerVisitor = DefaultMaxPerVisitor
	}
	return &ViewLimiter{kv: kv, Relaxation: relaxation, MaxPerVisitor: int64(maxPerVisitor)}
}

func lastKey(postID, visitor string) string {
	return fmt.Sprintf("views:%s:%s:last", postID, visitor)
}

func countKey(postID, visitor string) string {
	return fmt.Sprintf("views:%s:%s:count", postID, visitor)
}

// Allow reports whether the view counts. When it does not, reason is
// ReasonRecent or ReasonMax; the relaxation window is checked first.
func (l *ViewLimiter) Allow(ctx context.Context, postID, visitor string) (bool, string, error) {
	last, count := lastKey(postID, visitor), countKey(postID, visitor)

	recent, err := l.kv.Exists(ctx, last)
	if err != nil {
		return false, "", fmt.Errorf("check last view: %w", err)
	}
	if recent {
		return false, ReasonRecent, nil
	}

	n, err := l.kv.Count(ctx, count)
	if err != nil {
		return false, "", fmt.Errorf("read view count: %w", err)
	}
	if n >= l.MaxPerVisitor {
		return false, ReasonMax, nil
	}

	// A concurrent request from the same visitor may have won the window.
	ok, err := l.kv.SetNX(ctx, last, l.Relaxation)
	if err != nil {
		return false, "", fmt.Errorf("mark view: %w", err)
	}
	if !ok {
		return false, ReasonRecent, nil
	}

	if _, err := l.kv.Incr(ctx, count); err != nil {
		return false, "", fmt.Errorf("increment view count: %w", err)
	}
	return true, "", nil
}

// RedisKV adapts a go-redis client to KV.
type RedisKV struct {
	rdb *redis.Client
}

func NewRedisKV(rdb *redis.Client) *RedisKV {
	return &RedisKV{rdb: rdb}
}

func (r *RedisKV) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RedisKV) Count(ctx context.Context, key string) (int64, error) {
	res, err := r.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(res, 10, 64)
}

func (r *RedisKV) SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return r.rdb.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
}

func (r *RedisKV) Incr(ctx context.Context, key string) (int64, error) {
	return r.rdb.Incr(ctx, key).Result()
}

// NewClient creates a Redis client and checks it is reachable.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return rdb, nil
}
