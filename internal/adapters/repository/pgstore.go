package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/standings/internal/domain/types"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS scores (
	seq        BIGSERIAL   PRIMARY KEY,
	id         TEXT        NOT NULL UNIQUE,
	name       TEXT        NOT NULL,
	score      BIGINT      NOT NULL CHECK (score >= 0),
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS scores_rank ON scores (score DESC, seq ASC, id ASC);
`

// PostgresStore keeps the scoreboard in PostgreSQL through a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
	opts options
}

// NewPostgresStore connects to dsn, pings it and applies the schema.
func NewPostgresStore(ctx context.Context, dsn string, opts ...Option) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &PostgresStore{pool: pool, opts: buildOptions(opts)}, nil
}

func (s *PostgresStore) Ranking(ctx context.Context) (types.Ranking, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, score, created_at FROM scores ORDER BY score DESC, seq ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres ranking: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.Entry, error) {
		var e types.Entry
		err := row.Scan(&e.ID, &e.Name, &e.Score, &e.CreatedAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres ranking: %w", err)
	}
	if out == nil {
		out = types.Ranking{}
	}
	return out, nil
}

func (s *PostgresStore) Add(ctx context.Context, name string, score int64) (types.Entry, error) {
	if err := checkEntry(name, score); err != nil {
		return types.Entry{}, err
	}
	e := types.Entry{ID: s.opts.newID(), Name: name, Score: score, CreatedAt: s.opts.now()}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO scores (id, name, score, created_at) VALUES ($1, $2, $3, $4)`,
		e.ID, e.Name, e.Score, e.CreatedAt)
	if err != nil {
		return types.Entry{}, fmt.Errorf("postgres insert: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) Update(ctx context.Context, id, name string, score int64) (types.Entry, error) {
	if err := checkEntry(name, score); err != nil {
		return types.Entry{}, err
	}
	var e types.Entry
	err := s.pool.QueryRow(ctx,
		`UPDATE scores SET name = $1, score = $2 WHERE id = $3 RETURNING id, name, score, created_at`,
		name, score, id).Scan(&e.ID, &e.Name, &e.Score, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Entry{}, ErrNotFound
	}
	if err != nil {
		return types.Entry{}, fmt.Errorf("postgres update: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM scores WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM scores`)
	if err != nil {
		return 0, fmt.Errorf("postgres clear: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM scores`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres count: %w", err)
	}
	return n, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
