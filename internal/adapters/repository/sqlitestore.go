package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/okian/standings/internal/domain/types"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS scores (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT    NOT NULL UNIQUE,
	name       TEXT    NOT NULL,
	score      INTEGER NOT NULL CHECK (score >= 0),
	created_at TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS scores_rank ON scores (score DESC, seq ASC, id ASC);
`

// SQLiteStore persists the scoreboard in a SQLite file.
type SQLiteStore struct {
	db   *sql.DB
	opts options
}

// NewSQLiteStore opens path and runs the schema. ":memory:" works for tests.
func NewSQLiteStore(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Each connection to ":memory:" is its own database.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteStore{db: db, opts: buildOptions(opts)}, nil
}

func (s *SQLiteStore) Ranking(ctx context.Context) (types.Ranking, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, score, created_at FROM scores ORDER BY score DESC, seq ASC, id ASC`)
	if err != nil {
		return nil, s.wrap("ranking", err)
	}
	defer rows.Close()

	out := types.Ranking{}
	for rows.Next() {
		var (
			e       types.Entry
			created string
		)
		if err := rows.Scan(&e.ID, &e.Name, &e.Score, &created); err != nil {
			return nil, s.wrap("scan", err)
		}
		e.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("ranking", err)
	}
	return out, nil
}

func (s *SQLiteStore) Add(ctx context.Context, name string, score int64) (types.Entry, error) {
	if err := checkEntry(name, score); err != nil {
		return types.Entry{}, err
	}
	e := types.Entry{ID: s.opts.newID(), Name: name, Score: score, CreatedAt: s.opts.now()}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scores (id, name, score, created_at) VALUES (?, ?, ?, ?)`,
		e.ID, e.Name, e.Score, e.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return types.Entry{}, s.wrap("insert", err)
	}
	return e, nil
}

func (s *SQLiteStore) Update(ctx context.Context, id, name string, score int64) (types.Entry, error) {
	if err := checkEntry(name, score); err != nil {
		return types.Entry{}, err
	}
	var (
		e       types.Entry
		created string
	)
	err := s.db.QueryRowContext(ctx,
		`UPDATE scores SET name = ?, score = ? WHERE id = ? RETURNING id, name, score, created_at`,
		name, score, id).Scan(&e.ID, &e.Name, &e.Score, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Entry{}, ErrNotFound
	}
	if err != nil {
		return types.Entry{}, s.wrap("update", err)
	}
	e.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return types.Entry{}, fmt.Errorf("parse created_at: %w", err)
	}
	return e, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scores WHERE id = ?`, id)
	if err != nil {
		return s.wrap("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return s.wrap("delete", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scores`)
	if err != nil {
		return 0, s.wrap("clear", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, s.wrap("clear", err)
	}
	return int(n), nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scores`).Scan(&n); err != nil {
		return 0, s.wrap("count", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) wrap(op string, err error) error {
	if errors.Is(err, sql.ErrConnDone) || err.Error() == "sql: database is closed" {
		return fmt.Errorf("%s: %w", op, ErrClosed)
	}
	return fmt.Errorf("sqlite %s: %w", op, err)
}
