package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g. redis://localhost:6379).
	URL string

	// Password overrides the password from the URL when non-empty.
	Password string

	// DB is the Redis database number.
	DB int

	// KeyPrefix is prepended to all keys.
	KeyPrefix string

	// TTL is the entry lifetime. Zero means entries never expire.
	TTL time.Duration

	// PoolSize is the connection pool size.
	PoolSize int

	// DialTimeout bounds the initial connection.
	DialTimeout time.Duration

	// OpTimeout bounds each read and write operation.
	OpTimeout time.Duration
}

// DefaultRedisConfig returns sensible defaults.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		URL:         "redis://localhost:6379",
		KeyPrefix:   "recall:resp:",
		TTL:         30 * 24 * time.Hour,
		PoolSize:    10,
		DialTimeout: 5 * time.Second,
		OpTimeout:   3 * time.Second,
	}
}

// RedisStore implements Store on a Redis server. Entries are stored as
// JSON values under prefixed keys and expire through Redis TTLs.
type RedisStore struct {
	rdb *redis.Client
	cfg RedisConfig
}

// NewRedisStore connects to Redis and verifies the connection with a
// ping. An unreachable server fails construction; callers that want
// degrade-don't-fail behavior wrap the result in NewFallback.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	def := DefaultRedisConfig()
	if cfg.URL == "" {
		cfg.URL = def.URL
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = def.KeyPrefix
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = def.DialTimeout
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = def.OpTimeout
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = def.PoolSize
	}

	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if cfg.Password != "" {
		opt.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opt.DB = cfg.DB
	}
	opt.PoolSize = cfg.PoolSize
	opt.DialTimeout = cfg.DialTimeout
	opt.ReadTimeout = cfg.OpTimeout
	opt.WriteTimeout = cfg.OpTimeout

	rdb := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{rdb: rdb, cfg: cfg}, nil
}

func (s *RedisStore) key(k string) string {
	return s.cfg.KeyPrefix + k
}

// Get retrieves an entry. Expiry is handled by Redis itself.
func (s *RedisStore) Get(ctx context.Context, key string) (Entry, error) {
	data, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, fmt.Errorf("redis get: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry{}, fmt.Errorf("decode cache entry: %w", err)
	}
	return entry, nil
}

// Put inserts or refreshes an entry, preserving any existing hit
// bookkeeping for the key.
func (s *RedisStore) Put(ctx context.Context, key string, entry Entry) error {
	entry.Key = key
	if prev, err := s.Get(ctx, key); err == nil {
		entry.HitCount = prev.HitCount
		if prev.LastAccessedAt.After(entry.LastAccessedAt) {
			entry.LastAccessedAt = prev.LastAccessedAt
		}
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key(key), data, s.cfg.TTL).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Touch bumps hit bookkeeping without resetting the entry's TTL.
func (s *RedisStore) Touch(ctx context.Context, key string) error {
	entry, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	entry.HitCount++
	entry.LastAccessedAt = time.Now().UTC()
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key(key), data, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("redis touch: %w", err)
	}
	return nil
}

// Delete removes a key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	n, err := s.rdb.Del(ctx, s.key(key)).Result()
	if err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Clear removes all entries under the configured prefix.
func (s *RedisStore) Clear(ctx context.Context) error {
	return s.scan(ctx, func(keys []string) error {
		return s.rdb.Del(ctx, keys...).Err()
	})
}

// Len counts entries under the configured prefix.
func (s *RedisStore) Len(ctx context.Context) (int64, error) {
	var n int64
	err := s.scan(ctx, func(keys []string) error {
		n += int64(len(keys))
		return nil
	})
	return n, err
}

// Entries streams every entry under the prefix to fn, in unspecified
// order. Used by the export command.
func (s *RedisStore) Entries(ctx context.Context, fn func(Entry) error) error {
	return s.scan(ctx, func(keys []string) error {
		values, err := s.rdb.MGet(ctx, keys...).Result()
		if err != nil {
			return fmt.Errorf("redis mget: %w", err)
		}
		for _, v := range values {
			raw, ok := v.(string)
			if !ok {
				continue // expired between scan and mget
			}
			var entry Entry
			if err := json.Unmarshal([]byte(raw), &entry); err != nil {
				continue
			}
			if err := fn(entry); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close releases the connection pool.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// scan walks all prefixed keys, invoking fn per batch.
func (s *RedisStore) scan(ctx context.Context, fn func(keys []string) error) error {
	var cursor uint64
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, s.cfg.KeyPrefix+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("redis scan: %w", err)
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
