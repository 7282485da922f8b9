// Package db owns the Postgres connection pool. Pool sizing is read from the
// environment so the api, scheduler and notifier can be tuned independently.
package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"tablebook/internal/config"
)

type Pool struct {
	*pgxpool.Pool
}

// Open connects and pings. DB_MAX_CONNS, DB_MIN_CONNS,
// DB_CONN_LIFETIME_MINUTES and DB_CONN_IDLE_MINUTES override the defaults.
func Open(ctx context.Context, databaseURL string) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = int32(config.Int("DB_MAX_CONNS", 10))
	cfg.MinConns = int32(config.Int("DB_MIN_CONNS", 1))
	cfg.MaxConnLifetime = config.Minutes("DB_CONN_LIFETIME_MINUTES", 30*time.Minute)
	cfg.MaxConnIdleTime = config.Minutes("DB_CONN_IDLE_MINUTES", 5*time.Minute)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Pool{Pool: pool}, nil
}

func (p *Pool) Close() {
	if p != nil && p.Pool != nil {
		p.Pool.Close()
	}
}
