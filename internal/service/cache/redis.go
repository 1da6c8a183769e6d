package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"CoinTrack/internal/domain/models"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisStore keeps JSON-encoded entries in Redis, expiring them server side.
type RedisStore struct {
	cli    redis.UniversalClient
	prefix string
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	cli := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := cli.Ping(pingCtx).Err(); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisStoreWithClient(cli, cfg.Prefix), nil
}

func NewRedisStoreWithClient(cli redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{cli: cli, prefix: prefix}
}

func (r *RedisStore) Load(ctx context.Context, key string) (*models.CacheEntry, bool, error) {
	b, err := r.cli.Get(ctx, r.wrapKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var e models.CacheEntry
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, false, fmt.Errorf("decode entry: %w", err)
	}
	return &e, true, nil
}

func (r *RedisStore) Save(ctx context.Context, entry *models.CacheEntry, ttl time.Duration) error {
	b, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	return r.cli.Set(ctx, r.wrapKey(entry.Key), b, ttl).Err()
}

func (r *RedisStore) Close() error {
	return r.cli.Close()
}

func (r *RedisStore) wrapKey(key string) string {
	if r.prefix == "" {
		return key
	}
	return r.prefix + ":" + key
}
