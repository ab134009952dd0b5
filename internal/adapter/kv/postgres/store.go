// Package postgres provides a PostgreSQL-backed key/value store.
//
// Settings live in a single table so several app instances can share
// provider activation, verified models and scope selections.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/ai-translator/internal/domain"
)

// PgxPool is a minimal subset of pgxpool used by the store for easy testing.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPool creates a pgx connection pool from the provided DSN and returns it.
// Queries are traced through otelpgx.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 10
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.ConnConfig.Tracer = otelpgx.NewTracer()
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// Store persists and loads settings using a minimal pgx pool.
type Store struct{ Pool PgxPool }

// New constructs a Store with the given pool.
func New(p PgxPool) *Store { return &Store{Pool: p} }

// Migrate creates the settings table when missing.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS translator_settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	if err != nil {
		return fmt.Errorf("op=settings.migrate: %w", err)
	}
	return nil
}

func span(ctx context.Context, name, op string) (context.Context, func()) {
	ctx, sp := otel.Tracer("repo.settings").Start(ctx, name)
	sp.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", op),
		attribute.String("db.sql.table", "translator_settings"),
	)
	return ctx, func() { sp.End() }
}

// Get returns the value for key.
func (s *Store) Get(ctx domain.Context, key string) (string, bool, error) {
	ctx, end := span(ctx, "settings.Get", "SELECT")
	defer end()
	var v string
	err := s.Pool.QueryRow(ctx, `SELECT value FROM translator_settings WHERE key=$1`, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("op=settings.get: %w: %w", domain.ErrPersistence, err)
	}
	return v, true, nil
}

// Set upserts value under key.
func (s *Store) Set(ctx domain.Context, key, value string) error {
	ctx, end := span(ctx, "settings.Set", "UPSERT")
	defer end()
	q := `INSERT INTO translator_settings (key, value, updated_at) VALUES ($1,$2,$3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	if _, err := s.Pool.Exec(ctx, q, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("op=settings.set: %w: %w", domain.ErrPersistence, err)
	}
	return nil
}

// Remove deletes key.
func (s *Store) Remove(ctx domain.Context, key string) error {
	ctx, end := span(ctx, "settings.Remove", "DELETE")
	defer end()
	if _, err := s.Pool.Exec(ctx, `DELETE FROM translator_settings WHERE key=$1`, key); err != nil {
		return fmt.Errorf("op=settings.remove: %w: %w", domain.ErrPersistence, err)
	}
	return nil
}

// Ping runs a trivial query.
func (s *Store) Ping(ctx domain.Context) error {
	var one int
	return s.Pool.QueryRow(ctx, `SELECT 1`).Scan(&one)
}
