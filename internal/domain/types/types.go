// Package types contains common types used across the application
package types

import (
	"errors"
	"fmt"
	"time"
)

// ErrMalformedRanking marks a store response that cannot be consumed.
var ErrMalformedRanking = errors.New("malformed ranking")

// Entry is one contestant on the scoreboard.
type Entry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Score     int64     `json:"score"`
	CreatedAt time.Time `json:"createdAt"`
}

// Ranking is an ordered list of entries, best first. Index is rank.
type Ranking []Entry

// Validate returns an error wrapping ErrMalformedRanking when the ranking
// breaks an ordering or identity rule. An empty ranking is valid.
func (r Ranking) Validate() error {
	seen := make(map[string]struct{}, len(r))
	for i, e := range r {
		switch {
		case e.ID == "":
			return fmt.Errorf("%w: entry %d has no id", ErrMalformedRanking, i)
		case e.Name == "":
			return fmt.Errorf("%w: entry %s has no name", ErrMalformedRanking, e.ID)
		case e.Score < 0:
			return fmt.Errorf("%w: entry %s has negative score %d", ErrMalformedRanking, e.ID, e.Score)
		}
		if _, dup := seen[e.ID]; dup {
			return fmt.Errorf("%w: duplicate id %s", ErrMalformedRanking, e.ID)
		}
		seen[e.ID] = struct{}{}
		if i > 0 && r[i-1].Score < e.Score {
			return fmt.Errorf("%w: rank %d scores above rank %d", ErrMalformedRanking, i, i-1)
		}
	}
	return nil
}

// Clone returns a copy that shares nothing with r.
func (r Ranking) Clone() Ranking {
	if r == nil {
		return nil
	}
	out := make(Ranking, len(r))
	copy(out, r)
	return out
}
