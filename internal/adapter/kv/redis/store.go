// Package redis provides a Redis-backed key/value store.
package redis

import (
	"errors"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/ai-translator/internal/domain"
)

// Store persists settings as plain Redis strings under an optional prefix.
type Store struct {
	rdb    *goredis.Client
	prefix string
}

// New wraps an existing client. prefix namespaces every key.
func New(rdb *goredis.Client, prefix string) *Store {
	return &Store{rdb: rdb, prefix: prefix}
}

// Open parses a redis:// URL and connects.
func Open(ctx domain.Context, url, prefix string) (*Store, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("op=redis.open: %w", err)
	}
	rdb := goredis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("op=redis.open: %w", err)
	}
	slog.Info("redis store connected", slog.String("addr", opts.Addr), slog.Int("db", opts.DB))
	return New(rdb, prefix), nil
}

func (s *Store) key(k string) string { return s.prefix + k }

// Get returns the value for key.
func (s *Store) Get(ctx domain.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, s.key(key)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("op=redis.get: %w: %w", domain.ErrPersistence, err)
	}
	return v, true, nil
}

// Set stores value under key without expiry.
func (s *Store) Set(ctx domain.Context, key, value string) error {
	if err := s.rdb.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("op=redis.set: %w: %w", domain.ErrPersistence, err)
	}
	return nil
}

// Remove deletes key.
func (s *Store) Remove(ctx domain.Context, key string) error {
	if err := s.rdb.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("op=redis.remove: %w: %w", domain.ErrPersistence, err)
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx domain.Context) error { return s.rdb.Ping(ctx).Err() }

// Close releases the client.
func (s *Store) Close() error { return s.rdb.Close() }
