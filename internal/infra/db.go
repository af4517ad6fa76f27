package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewDBPool initializes a new pgx connection pool using the provided configuration.
func NewDBPool(ctx context.Context, cfg *Config) (*pgxpool.Pool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	return pool, nil
}

// migrations are applied in order at startup. Statements are idempotent so a
// restart against an existing database is a no-op.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id text PRIMARY KEY,
		name text NOT NULL DEFAULT '',
		email text NOT NULL DEFAULT '',
		image text NOT NULL DEFAULT '',
		is_pro boolean NOT NULL DEFAULT false,
		pro_usage_today integer NOT NULL DEFAULT 0,
		pro_usage_month integer NOT NULL DEFAULT 150,
		elite_usage_month integer NOT NULL DEFAULT 50,
		last_reset_date text NOT NULL DEFAULT '',
		stripe_customer_id text NOT NULL DEFAULT '',
		created_at timestamptz NOT NULL DEFAULT now(),
		updated_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS chats (
		id text PRIMARY KEY,
		title text NOT NULL DEFAULT 'Untitled',
		usage jsonb NOT NULL DEFAULT '{}'::jsonb,
		user_id text NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		shared boolean NOT NULL DEFAULT false,
		created_at timestamptz NOT NULL DEFAULT now(),
		updated_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chats_user_created ON chats (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id text PRIMARY KEY,
		role text NOT NULL,
		content jsonb NOT NULL,
		user_id text NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		chat_id text NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
		created_at timestamptz NOT NULL DEFAULT now(),
		updated_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_chat_created ON messages (chat_id, created_at ASC)`,
}

// Migrate brings the schema up to date.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
