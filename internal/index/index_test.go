package index

import (
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/encoder"
)

func vec(vals ...float32) encoder.Vector {
	return encoder.Vector(vals)
}

func TestSelfLookup(t *testing.T) {
	x := New(3)
	items := []Item{
		{ID: "a", Vector: vec(0, 0, 0)},
		{ID: "b", Vector: vec(1, 2, 3)},
		{ID: "c", Vector: vec(20, 0, 1)},
	}
	require.NoError(t, x.AddAll(items))

	for _, it := range items {
		m, err := x.Search(it.Vector, 1)
		require.NoError(t, err)
		require.Len(t, m, 1)
		assert.Equal(t, it.ID, m[0].Item.ID)
		assert.Equal(t, 0.0, m[0].Distance)
	}
}

func TestSearchOrdersByDistance(t *testing.T) {
	x := New(2)
	require.NoError(t, x.AddAll([]Item{
		{ID: "far", Vector: vec(10, 0)},
		{ID: "near", Vector: vec(1, 0)},
		{ID: "mid", Vector: vec(3, 4)},
	}))

	m, err := x.Search(vec(0, 0), 5)
	require.NoError(t, err)
	require.Len(t, m, 3)
	assert.Equal(t, []string{"near", "mid", "far"}, []string{m[0].Item.ID, m[1].Item.ID, m[2].Item.ID})
	assert.Equal(t, 5.0, m[1].Distance)

	m, err = x.Search(vec(0, 0), 2)
	require.NoError(t, err)
	assert.Len(t, m, 2)
}

func TestDimensionMismatch(t *testing.T) {
	x := New(2)
	assert.ErrorIs(t, x.Add(Item{ID: "bad", Vector: vec(1)}), ErrDimension)
	_, err := x.Search(vec(1, 2, 3), 1)
	assert.ErrorIs(t, err, ErrDimension)
	assert.Equal(t, 0, x.Len())
}

func TestNearestEmpty(t *testing.T) {
	x := New(2)
	d, err := x.Nearest(vec(0, 0))
	require.NoError(t, err)
	assert.True(t, math.IsInf(d, 1))
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity(0))
	assert.Equal(t, 0.5, Similarity(1))
}

func TestConcurrentReadersSeeWholeAppends(t *testing.T) {
	defer goleak.VerifyNone(t)

	x := New(1)
	const writers, batch = 8, 4

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			items := make([]Item, batch)
			for i := range items {
				items[i] = Item{ID: fmt.Sprintf("%d-%d", w, i), Vector: vec(float32(w))}
			}
			assert.NoError(t, x.AddAll(items))
		}(w)
	}
	for r := 0; r < writers; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				assert.Zero(t, x.Len()%batch)
				_, err := x.Search(vec(0), 3)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, writers*batch, x.Len())
}
