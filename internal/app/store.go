package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fairyhunter13/ai-translator/internal/adapter/kv/memory"
	"github.com/fairyhunter13/ai-translator/internal/adapter/kv/postgres"
	"github.com/fairyhunter13/ai-translator/internal/adapter/kv/redis"
	"github.com/fairyhunter13/ai-translator/internal/adapter/kv/sqlite"
	"github.com/fairyhunter13/ai-translator/internal/config"
	"github.com/fairyhunter13/ai-translator/internal/domain"
)

const redisKeyPrefix = "translator:"

// OpenStore opens the key/value store selected by STORE_DRIVER. The returned
// closer is never nil.
func OpenStore(ctx context.Context, cfg config.Config) (domain.KVStore, func(), error) {
	noop := func() {}
	switch cfg.StoreDriver {
	case config.StoreMemory:
		slog.Warn("using in-memory store, settings will not survive a restart")
		return memory.New(), noop, nil
	case config.StoreSQLite, "":
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, noop, fmt.Errorf("op=app.open_store: %w", err)
		}
		return s, func() { _ = s.Close() }, nil
	case config.StoreRedis:
		s, err := redis.Open(ctx, cfg.RedisURL, redisKeyPrefix)
		if err != nil {
			return nil, noop, fmt.Errorf("op=app.open_store: %w", err)
		}
		return s, func() { _ = s.Close() }, nil
	case config.StorePostgres:
		pool, err := postgres.NewPool(ctx, cfg.DBURL)
		if err != nil {
			return nil, noop, fmt.Errorf("op=app.open_store: %w", err)
		}
		s := postgres.New(pool)
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, noop, fmt.Errorf("op=app.open_store: %w", err)
		}
		return s, pool.Close, nil
	}
	return nil, noop, fmt.Errorf("op=app.open_store: %w: unknown store driver %q", domain.ErrInvalidArgument, cfg.StoreDriver)
}
