package simulate

import (
	"sort"

	"github.com/okian/standings/internal/domain/types"
)

// board mirrors what the simulation believes the store holds.
type board struct {
	entries map[string]types.Entry
	order   []string // insertion order, for deterministic picks
}

func newBoard() *board {
	return &board{entries: make(map[string]types.Entry)}
}

func (b *board) put(e types.Entry) {
	if _, ok := b.entries[e.ID]; !ok {
		b.order = append(b.order, e.ID)
	}
	b.entries[e.ID] = e
}

func (b *board) remove(id string) {
	delete(b.entries, id)
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			return
		}
	}
}

func (b *board) len() int { return len(b.order) }

func (b *board) at(i int) types.Entry { return b.entries[b.order[i]] }

// ranked returns the entries best first. Ties keep insertion order, as the
// store does.
func (b *board) ranked() []types.Entry {
	out := make([]types.Entry, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.entries[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
