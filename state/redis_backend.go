package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend persists snapshots as JSON strings in Redis, for
// embedders running Navigator server-side that want shared state
// across instances (SSR, multi-tab convergence, test fixtures). This
// never sits on the EventBus/Store hot path — only behind Persist and
// Restore.
type RedisBackend struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// RedisConfig mirrors the teacher's cache.Config connection shape.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// NewRedisBackend dials addr and pings it before returning.
func NewRedisBackend(cfg RedisConfig) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("state: redis backend: %w", err)
	}

	return &RedisBackend{client: client, ttl: cfg.TTL, prefix: cfg.Prefix}, nil
}

func (b *RedisBackend) redisKey(key string) string {
	return b.prefix + key
}

// Save implements StorageBackend.
func (b *RedisBackend) Save(key string, snapshot map[string]any) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return b.client.Set(ctx, b.redisKey(key), data, b.ttl).Err()
}

// Load implements StorageBackend.
func (b *RedisBackend) Load(key string) (map[string]any, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	val, err := b.client.Get(ctx, b.redisKey(key)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(val), &out); err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// Close releases the underlying connection pool.
func (b *RedisBackend) Close() error { return b.client.Close() }
