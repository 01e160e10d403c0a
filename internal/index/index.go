// Package index is an append-only similarity index over encoded chains.
// Search is brute-force L2 over an immutable snapshot; Add publishes a new
// snapshot, so concurrent readers never see a partial append.
package index

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/encoder"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/preset"
)

// ErrDimension is returned when a vector does not match the index dimension.
var ErrDimension = errors.New("vector dimension mismatch")

// #region types
// Origin records how an item entered the index.
type Origin string

const (
	OriginSeed    Origin = "seed"
	OriginLearned Origin = "learned"
)

// Item is one indexed chain.
type Item struct {
	ID        string           `json:"id"`
	Vector    encoder.Vector   `json:"vector"`
	Candidate preset.Candidate `json:"candidate"`
	Origin    Origin           `json:"origin"`
	CreatedAt time.Time        `json:"created_at"`
}

// Match is a search hit. Lower distance is closer.
type Match struct {
	Distance float64
	Item     Item
}

// #endregion types

// #region index
// Index holds items behind a copy-on-write snapshot.
type Index struct {
	dim   int
	mu    sync.Mutex // serializes writers
	items atomic.Pointer[[]Item]
}

// New creates an empty index for vectors of length dim.
func New(dim int) *Index {
	idx := &Index{dim: dim}
	empty := []Item{}
	idx.items.Store(&empty)
	return idx
}

// Dim returns the vector length this index accepts.
func (x *Index) Dim() int {
	return x.dim
}

// Len returns the number of items in the current snapshot.
func (x *Index) Len() int {
	return len(*x.items.Load())
}

// Add appends one item.
func (x *Index) Add(item Item) error {
	return x.AddAll([]Item{item})
}

// AddAll appends items atomically: readers see all of them or none.
func (x *Index) AddAll(items []Item) error {
	for _, it := range items {
		if len(it.Vector) != x.dim {
			return fmt.Errorf("add %q: %w: got %d, want %d", it.ID, ErrDimension, len(it.Vector), x.dim)
		}
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	cur := *x.items.Load()
	next := make([]Item, len(cur), len(cur)+len(items))
	copy(next, cur)
	next = append(next, items...)
	x.items.Store(&next)
	return nil
}

// Snapshot returns the current items. The slice must not be modified.
func (x *Index) Snapshot() []Item {
	return *x.items.Load()
}

// #endregion index

// #region search
// Search returns up to k items nearest to query, ascending by distance. Ties
// keep insertion order.
func (x *Index) Search(query encoder.Vector, k int) ([]Match, error) {
	if len(query) != x.dim {
		return nil, fmt.Errorf("search: %w: got %d, want %d", ErrDimension, len(query), x.dim)
	}
	items := *x.items.Load()
	if k <= 0 || len(items) == 0 {
		return nil, nil
	}

	matches := make([]Match, len(items))
	for i, it := range items {
		matches[i] = Match{Distance: Distance(query, it.Vector), Item: it}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	if k < len(matches) {
		matches = matches[:k]
	}
	return matches, nil
}

// Nearest returns the distance to the closest item, or +Inf when empty.
func (x *Index) Nearest(query encoder.Vector) (float64, error) {
	m, err := x.Search(query, 1)
	if err != nil {
		return 0, err
	}
	if len(m) == 0 {
		return math.Inf(1), nil
	}
	return m[0].Distance, nil
}

// Distance is the Euclidean distance between equal-length vectors.
func Distance(a, b encoder.Vector) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Similarity maps a distance into (0,1].
func Similarity(distance float64) float64 {
	return 1 / (1 + distance)
}

// #endregion search
