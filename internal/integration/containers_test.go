//go:build integration

// Package integration runs the settings stores against real Redis and Postgres.
package integration

import (
	"context"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/fairyhunter13/ai-translator/internal/adapter/kv/postgres"
	"github.com/fairyhunter13/ai-translator/internal/adapter/kv/redis"
	"github.com/fairyhunter13/ai-translator/internal/app"
	"github.com/fairyhunter13/ai-translator/internal/config"
	"github.com/fairyhunter13/ai-translator/internal/domain"
	"github.com/fairyhunter13/ai-translator/internal/service/events"
)

func startContainer(t *testing.T, req testcontainers.ContainerRequest, port string) string {
	t.Helper()
	ctx := context.Background()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(ctx) })
	host, err := c.Host(ctx)
	require.NoError(t, err)
	p, err := c.MappedPort(ctx, nat.Port(port))
	require.NoError(t, err)
	return host + ":" + p.Port()
}

func redisURL(t *testing.T) string {
	addr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "redis:7",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
	}, "6379")
	return "redis://" + addr + "/0"
}

func postgresDSN(t *testing.T) string {
	addr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "postgres:16",
		Env:          map[string]string{"POSTGRES_PASSWORD": "postgres", "POSTGRES_USER": "postgres", "POSTGRES_DB": "app"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(90 * time.Second),
	}, "5432")
	return "postgres://postgres:postgres@" + addr + "/app?sslmode=disable"
}

func exerciseStore(t *testing.T, store domain.KVStore) {
	t.Helper()
	ctx := context.Background()
	_, found, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Set(ctx, domain.KeySelectedProvider, "groq"))
	require.NoError(t, store.Set(ctx, domain.KeySelectedProvider, "openai"))
	v, found, err := store.Get(ctx, domain.KeySelectedProvider)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "openai", v)

	require.NoError(t, store.Remove(ctx, domain.KeySelectedProvider))
	require.NoError(t, store.Remove(ctx, domain.KeySelectedProvider))
	_, found, err = store.Get(ctx, domain.KeySelectedProvider)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	s, err := redis.Open(ctx, redisURL(t), "it:")
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Ping(ctx))
	exerciseStore(t, s)
}

func TestPostgresStore(t *testing.T) {
	ctx := context.Background()
	dsn := postgresDSN(t)
	var pool interface{ Close() }
	require.Eventually(t, func() bool {
		p, err := postgres.NewPool(ctx, dsn)
		if err != nil {
			return false
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return false
		}
		pool = p
		s := postgres.New(p)
		return s.Migrate(ctx) == nil
	}, 30*time.Second, time.Second)
	defer pool.Close()

	cfg := config.Config{StoreDriver: config.StorePostgres, DBURL: dsn}
	store, closeStore, err := app.OpenStore(ctx, cfg)
	require.NoError(t, err)
	defer closeStore()
	exerciseStore(t, store)
}

// Settings written through one service graph are visible to a fresh one.
func TestSettingsSurviveRestart(t *testing.T) {
	ctx := context.Background()
	cfg := config.Config{AppEnv: "test", StoreDriver: config.StoreRedis, RedisURL: redisURL(t), TranslationMaxTokens: 1000}

	store, closeStore, err := app.OpenStore(ctx, cfg)
	require.NoError(t, err)
	svcs, err := app.BuildServices(ctx, cfg, store, events.Nop{})
	require.NoError(t, err)
	require.NoError(t, svcs.Registry.SetAPIKey(ctx, domain.ProviderGroq, "gsk-it"))
	require.NoError(t, svcs.Registry.Toggle(ctx, domain.ProviderGroq, true))
	require.NoError(t, svcs.Ledger.Add(ctx, domain.ProviderGroq, "llama-3.3-70b-versatile"))
	require.NoError(t, svcs.Resolver.SelectProvider(ctx, domain.GlobalScope, domain.ProviderGroq))
	closeStore()

	store, closeStore, err = app.OpenStore(ctx, cfg)
	require.NoError(t, err)
	defer closeStore()
	svcs, err = app.BuildServices(ctx, cfg, store, events.Nop{})
	require.NoError(t, err)
	assert.True(t, svcs.Registry.IsActive(domain.ProviderGroq))
	sel, err := svcs.Resolver.Selection(ctx, "notes")
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderGroq, sel.Provider)
	assert.Equal(t, "llama-3.3-70b-versatile", sel.Model)
}
