package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/surveytrends-backend/internal/platform/logger"
)

// Redis shares snapshots between API processes so one import-completion
// invalidation reaches all of them.
type Redis[V any] struct {
	log    *logger.Logger
	rdb    goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedis[V any](log *logger.Logger, rdb goredis.UniversalClient, prefix string, ttl time.Duration) (*Redis[V], error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if prefix == "" {
		prefix = "surveytrends:cache"
	}
	return &Redis[V]{
		log:    log.With("service", "RedisCache", "prefix", prefix),
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
	}, nil
}

// Dial connects and pings, mirroring how the other redis clients start up.
func Dial(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (r *Redis[V]) key(k string) string { return r.prefix + ":" + k }

func (r *Redis[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	raw, err := r.rdb.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	var v V
	if err := json.Unmarshal(raw, &v); err != nil {
		// A snapshot written by an incompatible build is a miss, not a failure.
		r.log.Warn("dropping undecodable cache entry", "key", key, "error", err)
		_ = r.rdb.Del(ctx, r.key(key)).Err()
		return zero, false, nil
	}
	return v, true, nil
}

func (r *Redis[V]) Put(ctx context.Context, key string, v V) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	return r.rdb.Set(ctx, r.key(key), raw, r.ttl).Err()
}

func (r *Redis[V]) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, r.key(k))
	}
	return r.rdb.Del(ctx, full...).Err()
}

func (r *Redis[V]) InvalidateAll(ctx context.Context) error {
	iter := r.rdb.Scan(ctx, 0, r.prefix+":*", 200).Iterator()
	batch := make([]string, 0, 200)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := r.rdb.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return r.rdb.Del(ctx, batch...).Err()
	}
	return nil
}
