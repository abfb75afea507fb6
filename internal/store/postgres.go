package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"studio/internal/domain"
)

// Postgres implements Store backed by a single user_kv table. Suitable when
// several studio instances share one durable state.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres store and ensures its schema exists.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (*Postgres, error) {
	if pool == nil {
		return nil, errors.New("store: pgx pool is required")
	}
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS user_kv (
    user_id    text NOT NULL,
    key        text NOT NULL,
    value      jsonb NOT NULL,
    updated_at timestamptz NOT NULL DEFAULT now(),
    PRIMARY KEY (user_id, key)
);
`)
	if err != nil {
		return nil, fmt.Errorf("store: ensure schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Get(ctx context.Context, userID, key string) ([]byte, error) {
	row := p.pool.QueryRow(ctx, `SELECT value FROM user_kv WHERE user_id = $1 AND key = $2`, userID, key)
	var value []byte
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("store: select %s/%s: %w", userID, key, err)
	}
	return value, nil
}

func (p *Postgres) Set(ctx context.Context, userID, key string, value []byte) error {
	_, err := p.pool.Exec(ctx, `
INSERT INTO user_kv (user_id, key, value, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (user_id, key) DO UPDATE
SET value = EXCLUDED.value,
    updated_at = now();
`, userID, key, value)
	if err != nil {
		return fmt.Errorf("store: upsert %s/%s: %w", userID, key, err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, userID, key string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM user_kv WHERE user_id = $1 AND key = $2`, userID, key)
	if err != nil {
		return fmt.Errorf("store: delete %s/%s: %w", userID, key, err)
	}
	return nil
}

var _ Store = (*Postgres)(nil)
