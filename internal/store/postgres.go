package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres keeps every namespace in a single two-column keyspace table.
// Values are stored as text; Increment casts through bigint so the scoreboard
// can share the table with string-valued config keys.
type Postgres struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS ninja_kv (
    namespace TEXT NOT NULL,
    key       TEXT NOT NULL,
    value     TEXT NOT NULL,
    PRIMARY KEY (namespace, key)
)`

// NewPostgres connects a pool and ensures the keyspace table exists.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure ninja_kv schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

// Namespace returns the KV bucket for the given name.
func (p *Postgres) Namespace(name string) KV {
	return &pgNamespace{pool: p.pool, name: name}
}

type pgNamespace struct {
	pool *pgxpool.Pool
	name string
}

func (n *pgNamespace) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := n.pool.QueryRow(ctx,
		`SELECT value FROM ninja_kv WHERE namespace = $1 AND key = $2`,
		n.name, key).Scan(&value)
	if err == pgx.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s/%s: %w", n.name, key, err)
	}
	return value, true, nil
}

func (n *pgNamespace) Set(ctx context.Context, key, value string) error {
	_, err := n.pool.Exec(ctx,
		`INSERT INTO ninja_kv (namespace, key, value) VALUES ($1, $2, $3)
		 ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value`,
		n.name, key, value)
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", n.name, key, err)
	}
	return nil
}

func (n *pgNamespace) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	var value int64
	err := n.pool.QueryRow(ctx,
		`INSERT INTO ninja_kv (namespace, key, value) VALUES ($1, $2, $3::text)
		 ON CONFLICT (namespace, key)
		 DO UPDATE SET value = ((ninja_kv.value)::bigint + $3)::text
		 RETURNING (value)::bigint`,
		n.name, key, delta).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("increment %s/%s: %w", n.name, key, err)
	}
	return value, nil
}

func (n *pgNamespace) Delete(ctx context.Context, key string) error {
	_, err := n.pool.Exec(ctx,
		`DELETE FROM ninja_kv WHERE namespace = $1 AND key = $2`, n.name, key)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", n.name, key, err)
	}
	return nil
}

func (n *pgNamespace) Clear(ctx context.Context) error {
	_, err := n.pool.Exec(ctx,
		`DELETE FROM ninja_kv WHERE namespace = $1`, n.name)
	if err != nil {
		return fmt.Errorf("clear %s: %w", n.name, err)
	}
	return nil
}

func (n *pgNamespace) ToMap(ctx context.Context) (map[string]string, error) {
	rows, err := n.pool.Query(ctx,
		`SELECT key, value FROM ninja_kv WHERE namespace = $1`, n.name)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", n.name, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan %s: %w", n.name, err)
		}
		out[k] = v
	}
	return out, rows.Err()
}
