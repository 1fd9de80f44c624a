// Package tracker compares consecutive rankings and tags how each entry moved.
//
// Classify and Commit are pure. Tracker glues them together for the single
// owner of the poll loop and holds no lock.
package tracker

import (
	"github.com/okian/standings/internal/domain/types"
)

// NoRank marks an entry that was not in the previous ranking.
const NoRank = -1

// Snapshot maps entry ids to the rank they held in the last observed ranking.
type Snapshot map[string]int

// Rank returns the recorded rank of id.
func (s Snapshot) Rank(id string) (int, bool) {
	r, ok := s[id]
	return r, ok
}

// Movement describes one entry of the new ranking relative to the snapshot.
type Movement struct {
	ID       string
	Name     string
	Score    int64
	Rank     int
	PrevRank int // NoRank when unranked
	Tags     Tag
}

// Classified holds one Movement per entry, in ranking order.
type Classified []Movement

// ByID indexes the movements by entry id.
func (c Classified) ByID() map[string]Movement {
	out := make(map[string]Movement, len(c))
	for _, m := range c {
		out[m.ID] = m
	}
	return out
}

// Count returns how many movements carry every flag in tag.
func (c Classified) Count(tag Tag) int {
	n := 0
	for _, m := range c {
		if m.Tags.Has(tag) {
			n++
		}
	}
	return n
}

// Classify tags every entry of ranking against previous. crossing is true
// when any entry moved into or out of the first topN ranks.
func Classify(ranking types.Ranking, previous Snapshot, topN int) (Classified, bool) {
	out := make(Classified, len(ranking))
	crossing := false
	for rank, e := range ranking {
		m := Movement{ID: e.ID, Name: e.Name, Score: e.Score, Rank: rank, PrevRank: NoRank}

		prev, ok := previous.Rank(e.ID)
		if !ok {
			m.Tags = Unranked
			out[rank] = m
			continue
		}
		m.PrevRank = prev

		switch {
		case rank == prev:
			m.Tags |= Unchanged
		case rank < prev:
			// Score 0 is never improved.
			if e.Score != 0 {
				m.Tags |= Improved
			}
		default:
			m.Tags |= Worsened
		}

		switch {
		case prev >= topN && rank < topN:
			m.Tags |= CrossedIn
			crossing = true
		case prev < topN && rank >= topN:
			m.Tags |= CrossedOut
			crossing = true
		}
		out[rank] = m
	}
	return out, crossing
}

// Commit builds the snapshot for ranking. Ids absent from ranking are gone.
func Commit(ranking types.Ranking) Snapshot {
	s := make(Snapshot, len(ranking))
	for rank, e := range ranking {
		s[e.ID] = rank
	}
	return s
}

// Tracker owns the snapshot between polls.
type Tracker struct {
	topN     int
	snapshot Snapshot
}

// New creates a Tracker with an empty snapshot. topN below 1 is treated as 1.
func New(topN int) *Tracker {
	if topN < 1 {
		topN = 1
	}
	return &Tracker{topN: topN, snapshot: Snapshot{}}
}

// TopN returns the tier size the tracker classifies against.
func (t *Tracker) TopN() int { return t.topN }

// Observe classifies ranking against the current snapshot, then replaces the
// snapshot with ranking.
func (t *Tracker) Observe(ranking types.Ranking) (Classified, bool) {
	c, crossing := Classify(ranking, t.snapshot, t.topN)
	t.snapshot = Commit(ranking)
	return c, crossing
}

// Len returns the number of ids in the snapshot.
func (t *Tracker) Len() int { return len(t.snapshot) }

// Snapshot returns a copy of the current snapshot.
func (t *Tracker) Snapshot() Snapshot {
	out := make(Snapshot, len(t.snapshot))
	for id, r := range t.snapshot {
		out[id] = r
	}
	return out
}
