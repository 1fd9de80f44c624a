package repository

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/okian/standings/internal/domain/types"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: score DESC, then insertion seq ASC, then id ASC. "less" means
// ranks earlier, so an in-order traversal yields the ranking best first.

type key struct {
	score int64
	seq   uint64
	id    string
}

func (a key) less(b key) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	if a.seq != b.seq {
		return a.seq < b.seq
	}
	return a.id < b.id
}

// treap node
type node struct {
	key   key
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, k key, prio uint64) *node {
	if n == nil {
		return &node{key: k, prio: prio, size: 1}
	}
	if k.less(n.key) {
		n.left = insert(n.left, k, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, k, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, k key) *node {
	if n == nil {
		return nil
	}
	switch {
	case n.key == k:
		// Rotate the higher-priority child up until the node is a leaf.
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, k)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, k)
		}
	case k.less(n.key):
		n.left = deleteNode(n.left, k)
	default:
		n.right = deleteNode(n.right, k)
	}
	fix(n)
	return n
}

// rankOf returns the 0-based position of k.
func rankOf(n *node, k key) int {
	rank := 0
	for n != nil {
		switch {
		case n.key == k:
			return rank + nsize(n.left)
		case k.less(n.key):
			n = n.left
		default:
			rank += nsize(n.left) + 1
			n = n.right
		}
	}
	return -1
}

func collect(n *node, byID map[string]record, out *types.Ranking) {
	if n == nil {
		return
	}
	collect(n.left, byID, out)
	if rec, ok := byID[n.key.id]; ok {
		*out = append(*out, rec.entry)
	}
	collect(n.right, byID, out)
}

type record struct {
	entry types.Entry
	seq   uint64
}

func (r record) key() key { return key{score: r.entry.Score, seq: r.seq, id: r.entry.ID} }

// TreapStore keeps the scoreboard in memory.
type TreapStore struct {
	opts options

	mu      sync.RWMutex
	root    *node
	byID    map[string]record
	nextSeq uint64
	closed  bool
}

// NewTreapStore constructs an empty treap store.
func NewTreapStore(opts ...Option) *TreapStore {
	return &TreapStore{
		opts: buildOptions(opts),
		byID: make(map[string]record),
	}
}

// Ranking returns every entry in rank order in O(n).
func (s *TreapStore) Ranking(_ context.Context) (types.Ranking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make(types.Ranking, 0, len(s.byID))
	collect(s.root, s.byID, &out)
	return out, nil
}

// Add inserts a new entry in O(log n) expected time.
func (s *TreapStore) Add(_ context.Context, name string, score int64) (types.Entry, error) {
	if err := checkEntry(name, score); err != nil {
		return types.Entry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.Entry{}, ErrClosed
	}

	s.nextSeq++
	rec := record{
		entry: types.Entry{ID: s.opts.newID(), Name: name, Score: score, CreatedAt: s.opts.now()},
		seq:   s.nextSeq,
	}
	s.byID[rec.entry.ID] = rec
	s.root = insert(s.root, rec.key(), rand.Uint64())
	return rec.entry, nil
}

// Update re-keys id in O(log n) expected time.
func (s *TreapStore) Update(_ context.Context, id, name string, score int64) (types.Entry, error) {
	if err := checkEntry(name, score); err != nil {
		return types.Entry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.Entry{}, ErrClosed
	}

	old, ok := s.byID[id]
	if !ok {
		return types.Entry{}, ErrNotFound
	}
	s.root = deleteNode(s.root, old.key())

	rec := old
	rec.entry.Name = name
	rec.entry.Score = score
	s.byID[id] = rec
	s.root = insert(s.root, rec.key(), rand.Uint64())
	return rec.entry, nil
}

// Delete removes id.
func (s *TreapStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	rec, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	s.root = deleteNode(s.root, rec.key())
	delete(s.byID, id)
	return nil
}

// Clear drops every entry.
func (s *TreapStore) Clear(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	n := len(s.byID)
	s.root = nil
	s.byID = make(map[string]record)
	return n, nil
}

// Count returns the number of entries.
func (s *TreapStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	return len(s.byID), nil
}

// Position returns the 0-based rank of id in O(log n).
func (s *TreapStore) Position(_ context.Context, id string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	if !ok {
		return 0, ErrNotFound
	}
	return rankOf(s.root, rec.key()), nil
}

// Close marks the store closed; later calls return ErrClosed.
func (s *TreapStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
