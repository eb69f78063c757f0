package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds the connection settings of the redis store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Prefix is put in front of every family name.
	Prefix string

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	PingTimeout  time.Duration
}

func (c RedisConfig) withDefaults() RedisConfig {
	out := c
	if out.Prefix == "" {
		out.Prefix = "sccpd:"
	}
	if out.DialTimeout <= 0 {
		out.DialTimeout = 3 * time.Second
	}
	if out.ReadTimeout <= 0 {
		out.ReadTimeout = 2 * time.Second
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = 2 * time.Second
	}
	if out.PoolSize <= 0 {
		out.PoolSize = 10
	}
	if out.PingTimeout <= 0 {
		out.PingTimeout = 2 * time.Second
	}
	return out
}

// Redis keeps each family in one hash.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

var _ Store = (*Redis)(nil)

// OpenRedis connects and checks the server with PING.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	cfg = cfg.withDefaults()
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	})
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Redis{rdb: rdb, prefix: cfg.Prefix}, nil
}

func (r *Redis) key(family string) string { return r.prefix + family }

func (r *Redis) Get(ctx context.Context, family, key string) (string, error) {
	v, err := r.rdb.HGet(ctx, r.key(family), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis hget %s/%s: %w", family, key, err)
	}
	return v, nil
}

func (r *Redis) Put(ctx context.Context, family, key, value string) error {
	if err := r.rdb.HSet(ctx, r.key(family), key, value).Err(); err != nil {
		return fmt.Errorf("redis hset %s/%s: %w", family, key, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, family, key string) error {
	if err := r.rdb.HDel(ctx, r.key(family), key).Err(); err != nil {
		return fmt.Errorf("redis hdel %s/%s: %w", family, key, err)
	}
	return nil
}

func (r *Redis) Family(ctx context.Context, family string) (map[string]string, error) {
	m, err := r.rdb.HGetAll(ctx, r.key(family)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall %s: %w", family, err)
	}
	return m, nil
}

func (r *Redis) Close() error { return r.rdb.Close() }
