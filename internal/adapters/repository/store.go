// Package repository defines the score store interface and its backends.
package repository

import (
	"context"

	"github.com/okian/standings/internal/domain/types"
)

// Store holds the scoreboard. Ranking returns entries ordered by score desc,
// then by insertion order, then by id; that order is authoritative.
type Store interface {
	Ranking(ctx context.Context) (types.Ranking, error)

	// Add creates an entry with a fresh id.
	Add(ctx context.Context, name string, score int64) (types.Entry, error)
	// Update replaces name and score of id. The entry keeps its insertion slot.
	// Returns ErrNotFound if id is unknown.
	Update(ctx context.Context, id, name string, score int64) (types.Entry, error)
	// Delete removes id. Returns ErrNotFound if id is unknown.
	Delete(ctx context.Context, id string) error
	// Clear removes every entry and returns how many were removed.
	Clear(ctx context.Context) (int, error)

	Count(ctx context.Context) (int, error)
	Close() error
}

// Positioner answers a rank lookup without reading the whole ranking.
type Positioner interface {
	Position(ctx context.Context, id string) (int, error)
}

// PositionOf returns the 0-based rank of id when s, or a store it wraps,
// is a Positioner. s may be any narrower view of a Store.
func PositionOf(ctx context.Context, s any, id string) (int, bool) {
	for s != nil {
		if p, ok := s.(Positioner); ok {
			n, err := p.Position(ctx, id)
			return n, err == nil
		}
		u, ok := s.(interface{ Unwrap() Store })
		if !ok {
			return 0, false
		}
		next := u.Unwrap()
		if next == nil {
			return 0, false
		}
		s = next
	}
	return 0, false
}

// Backend names, used for metrics labels.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRemote   = "remote"
)

func checkEntry(name string, score int64) error {
	if name == "" || score < 0 {
		return ErrInvalidEntry
	}
	return nil
}
