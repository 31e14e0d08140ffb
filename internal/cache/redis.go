package cache

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"

	sdkerrors "github.com/CardaLabs/sdk/pkg/errors"
	"github.com/CardaLabs/sdk/pkg/logger"
)

// Redis is a Cache backed by a Redis instance, for deployments that share a
// response cache across processes. Values round-trip through JSON: Get
// returns the stored bytes as json.RawMessage and the caller decodes them
// into its own types.
type Redis struct {
	client     *redis.Client
	defaultTTL time.Duration
	log        *logger.Logger

	hits   int64
	misses int64
}

var _ Cache = (*Redis)(nil)

// RedisOptions configures the Redis cache.
type RedisOptions struct {
	Addr       string
	Password   string
	DB         int
	DefaultTTL time.Duration
	Logger     *logger.Logger
}

// NewRedis creates a Redis-backed cache. The connection is verified lazily;
// backend failures surface as ErrCodeCache errors on each operation.
func NewRedis(opts RedisOptions) *Redis {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = 5 * time.Minute
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewDefault("cache-redis")
	}

	return &Redis{
		client: redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}),
		defaultTTL: opts.DefaultTTL,
		log:        log,
	}
}

func (r *Redis) Get(ctx context.Context, key string) (interface{}, bool, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		atomic.AddInt64(&r.misses, 1)
		return nil, false, nil
	}
	if err != nil {
		atomic.AddInt64(&r.misses, 1)
		return nil, false, sdkerrors.Wrap(err, sdkerrors.ErrCodeCache, "redis get")
	}

	if !json.Valid(raw) {
		atomic.AddInt64(&r.misses, 1)
		return nil, false, sdkerrors.New(sdkerrors.ErrCodeCache, "redis entry is not valid JSON")
	}

	atomic.AddInt64(&r.hits, 1)
	return json.RawMessage(raw), true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value interface{}) error {
	return r.SetTTL(ctx, key, value, r.defaultTTL)
}

func (r *Redis) SetTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return sdkerrors.Wrap(err, sdkerrors.ErrCodeCache, "redis encode")
	}
	if ttl <= 0 {
		// Zero TTL means immediately expired; nothing to store.
		return nil
	}
	if err := r.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return sdkerrors.Wrap(err, sdkerrors.ErrCodeCache, "redis set")
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Del(ctx, key).Result()
	if err != nil {
		return false, sdkerrors.Wrap(err, sdkerrors.ErrCodeCache, "redis delete")
	}
	return n > 0, nil
}

func (r *Redis) Clear(ctx context.Context) error {
	if err := r.client.FlushDB(ctx).Err(); err != nil {
		return sdkerrors.Wrap(err, sdkerrors.ErrCodeCache, "redis clear")
	}
	return nil
}

func (r *Redis) Has(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, sdkerrors.Wrap(err, sdkerrors.ErrCodeCache, "redis exists")
	}
	return n > 0, nil
}

func (r *Redis) Stats() Stats {
	hits := atomic.LoadInt64(&r.hits)
	misses := atomic.LoadInt64(&r.misses)

	stats := Stats{Hits: hits, Misses: misses}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	if size, err := r.client.DBSize(context.Background()).Result(); err == nil {
		stats.Size = int(size)
	}
	return stats
}

func (r *Redis) Close() error {
	return r.client.Close()
}
