package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/FranksOps/gcparser/internal/extract"
	"github.com/FranksOps/gcparser/internal/storage"
)

// ensure postgresBackend implements storage.Backend
var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

// fields is TEXT rather than JSONB: JSONB does not keep key order.
const schema = `
CREATE TABLE IF NOT EXISTS records (
	id UUID PRIMARY KEY,
	kind TEXT NOT NULL,
	key TEXT NOT NULL,
	identity TEXT NOT NULL,
	url TEXT NOT NULL,
	fields TEXT NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS records_kind_key ON records (kind, key);
`

// New creates a new Postgres-backed storage.Backend.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: schema: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, record *storage.Record) error {
	fieldsJSON, err := json.Marshal(record.Fields)
	if err != nil {
		return fmt.Errorf("postgres: encode fields: %w", err)
	}

	query := `
	INSERT INTO records (id, kind, key, identity, url, fields, fetched_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = b.pool.Exec(ctx, query,
		record.ID,
		record.Kind,
		record.Key,
		record.Identity,
		record.URL,
		string(fieldsJSON),
		record.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert %s/%s: %w", record.Kind, record.Key, err)
	}

	return nil
}

func (b *postgresBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Record, error) {
	query := `SELECT id::text, kind, key, identity, url, fields, fetched_at FROM records WHERE 1=1`
	args := []any{}
	paramCount := 1

	if filter.Kind != "" {
		query += fmt.Sprintf(` AND kind = $%d`, paramCount)
		args = append(args, filter.Kind)
		paramCount++
	}
	if filter.Key != "" {
		query += fmt.Sprintf(` AND key = $%d`, paramCount)
		args = append(args, filter.Key)
		paramCount++
	}
	if filter.Since != nil {
		query += fmt.Sprintf(` AND fetched_at >= $%d`, paramCount)
		args = append(args, *filter.Since)
		paramCount++
	}

	query += ` ORDER BY fetched_at DESC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, paramCount)
		args = append(args, filter.Limit)
		paramCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, paramCount)
		args = append(args, filter.Offset)
	}

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query: %w", err)
	}
	defer rows.Close()

	var results []*storage.Record
	for rows.Next() {
		var r storage.Record
		var fieldsJSON string

		if err := rows.Scan(&r.ID, &r.Kind, &r.Key, &r.Identity, &r.URL, &fieldsJSON, &r.FetchedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan: %w", err)
		}

		r.Fields = extract.NewFieldMap()
		if err := json.Unmarshal([]byte(fieldsJSON), r.Fields); err != nil {
			return nil, fmt.Errorf("postgres: decode fields of %s: %w", r.ID, err)
		}

		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows: %w", err)
	}

	return results, nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
