package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bluzky/pocsync/pipeline"
)

// PostgresDirectory is a Directory backed by a pipelines table in
// PostgreSQL, grounded on the teacher's PGConfigStore (store/pg_config.go):
// both store a JSON document per row and parse it back out on read, rather
// than normalizing the pipeline's fields across columns. It exists as an
// optional backing store for larger deployments; the core match/executor
// packages depend only on the Directory interface and never reference this
// type directly.
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

// NewPostgresDirectory creates a PostgresDirectory backed by pool.
func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	return &PostgresDirectory{pool: pool}
}

// EnsureSchema creates the pipelines table if it does not already exist.
func (d *PostgresDirectory) EnsureSchema(ctx context.Context) error {
	_, err := d.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS pipelines (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			status     TEXT NOT NULL DEFAULT 'draft',
			data       JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure pipelines schema: %w", err)
	}
	return nil
}

// Put upserts a single pipeline's JSON encoding by ID.
func (d *PostgresDirectory) Put(ctx context.Context, p pipeline.Pipeline) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal pipeline %s: %w", p.ID, err)
	}

	_, err = d.pool.Exec(ctx, `
		INSERT INTO pipelines (id, name, status, data, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE SET
			name       = EXCLUDED.name,
			status     = EXCLUDED.status,
			data       = EXCLUDED.data,
			updated_at = NOW()
	`, p.ID, p.Name, string(p.Status), data)
	if err != nil {
		return fmt.Errorf("upsert pipeline %s: %w", p.ID, err)
	}
	return nil
}

// Delete removes a pipeline by ID.
func (d *PostgresDirectory) Delete(ctx context.Context, id string) error {
	_, err := d.pool.Exec(ctx, `DELETE FROM pipelines WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete pipeline %s: %w", id, err)
	}
	return nil
}

// ListPipelines loads every pipeline row whose status is not inactive (draft
// and active rows alike) and decodes its JSON document back into a
// pipeline.Pipeline.
func (d *PostgresDirectory) ListPipelines(ctx context.Context) ([]pipeline.Pipeline, error) {
	rows, err := d.pool.Query(ctx, `SELECT data FROM pipelines WHERE status != 'inactive' ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list pipelines: %w", err)
	}
	defer rows.Close()

	var out []pipeline.Pipeline
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan pipeline row: %w", err)
		}
		var p pipeline.Pipeline
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("unmarshal pipeline row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pipeline rows: %w", err)
	}
	return out, nil
}
