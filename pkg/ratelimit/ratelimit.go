// Package ratelimit limits requests per client key, either in process or
// shared through Redis.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limiter decides whether one more request for key is allowed. A non-nil
// error means the decision could not be made.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type entry struct {
	lim  *rate.Limiter
	seen time.Time
}

// Memory is a per-key token bucket that refills max tokens per window.
type Memory struct {
	mu        sync.Mutex
	buckets   map[string]*entry
	every     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func NewMemory(max int, window time.Duration) *Memory {
	return &Memory{
		buckets: make(map[string]*entry),
		every:   rate.Every(window / time.Duration(max)),
		burst:   max,
		idle:    window,
		now:     time.Now,
	}
}

func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.lastSweep) > m.idle {
		for k, e := range m.buckets {
			if now.Sub(e.seen) > m.idle {
				delete(m.buckets, k)
			}
		}
		m.lastSweep = now
	}

	e, ok := m.buckets[key]
	if !ok {
		e = &entry{lim: rate.NewLimiter(m.every, m.burst)}
		m.buckets[key] = e
	}
	e.seen = now
	return e.lim.AllowN(now, 1), nil
}

// Redis is a fixed-window counter shared by every replica.
type Redis struct {
	client *redis.Client
	prefix string
	max    int64
	window time.Duration
	now    func() time.Time
}

func NewRedis(client *redis.Client, prefix string, max int, window time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, max: int64(max), window: window, now: time.Now}
}

// NewRedisClient parses a redis:// URL with the pool settings used by the
// other services.
func NewRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opt.PoolSize = 10
	opt.MinIdleConns = 2
	opt.DialTimeout = 2 * time.Second
	opt.ReadTimeout = time.Second
	opt.WriteTimeout = time.Second
	return redis.NewClient(opt), nil
}

func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	slot := r.now().UnixNano() / int64(r.window)
	k := r.prefix + ":" + key + ":" + strconv.FormatInt(slot, 10)

	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.Expire(ctx, k, r.window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("redis rate limit: %w", err)
	}
	return incr.Val() <= r.max, nil
}
