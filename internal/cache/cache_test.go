package cache

import (
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/preset"
)

// clock is a manually advanced time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func sqliteTier(t *testing.T) (*SQLiteTier, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	tier, err := NewSQLiteTier(db)
	require.NoError(t, err)
	return tier, db
}

func badgerTier(t *testing.T, ttl time.Duration) (*BadgerTier, *badger.DB) {
	t.Helper()
	db, err := OpenBadger(BadgerConfig{InMemory: true}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewBadgerTier(db, ttl), db
}

func payload(id int) preset.Candidate {
	c := preset.Default(6)
	c.Slots[0] = preset.Slot{Index: 1, EngineID: id, Params: []float64{0.1, 0.2}, Mix: 1}
	c.Vibe = "test"
	return c
}

// #region key
func TestKeyCanonicalization(t *testing.T) {
	base := preset.Request{VibeText: "Warm, Tape Saturation", Genre: "Jazz", RequiredUnits: []int{15, 1}, MaxUnits: 4}

	same := []preset.Request{
		{VibeText: "saturation tape warm", Genre: "jazz", RequiredUnits: []int{1, 15}, MaxUnits: 4},
		{VibeText: "the warm warm tape saturation", Genre: " JAZZ ", RequiredUnits: []int{15, 1}, MaxUnits: 4},
	}
	for _, r := range same {
		assert.Equal(t, Key(base), Key(r), "%+v", r)
	}

	differ := []preset.Request{
		{VibeText: "cold tape saturation", Genre: "jazz", RequiredUnits: []int{1, 15}, MaxUnits: 4},
		{VibeText: "warm tape saturation", Genre: "rock", RequiredUnits: []int{1, 15}, MaxUnits: 4},
		{VibeText: "warm tape saturation", Genre: "jazz", RequiredUnits: []int{1, 16}, MaxUnits: 4},
		{VibeText: "warm tape saturation", Genre: "jazz", RequiredUnits: []int{1, 15}, MaxUnits: 5},
	}
	for _, r := range differ {
		assert.NotEqual(t, Key(base), Key(r), "%+v", r)
	}

	// Only the three lowest required IDs count.
	a := preset.Request{VibeText: "x", RequiredUnits: []int{1, 2, 3, 40}}
	b := preset.Request{VibeText: "x", RequiredUnits: []int{3, 2, 1, 50}}
	assert.Equal(t, Key(a), Key(b))
	assert.Len(t, Key(a), 64)
}

// #endregion key

// #region memory
func TestMemoryHitAndTTL(t *testing.T) {
	clk := newClock()
	c := New(Config{Capacity: 4, TTL: time.Hour}, WithClock(clk.Now))

	_, ok := c.Get("k")
	assert.False(t, ok)

	c.Put("k", payload(1))
	e, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 1, e.Payload.Slots[0].EngineID)
	assert.Equal(t, int64(1), e.Hits)

	clk.Advance(time.Hour)
	_, ok = c.Get("k")
	assert.False(t, ok)

	s := c.Stats()
	assert.Equal(t, int64(1), s.Hits)
	assert.Equal(t, int64(2), s.Misses)
	assert.Equal(t, int64(1), s.Expired)
}

func TestGetReturnsCopy(t *testing.T) {
	c := New(DefaultConfig())
	c.Put("k", payload(1))

	e, _ := c.Get("k")
	e.Payload.Slots[0].Params[0] = 0.99

	e, _ = c.Get("k")
	assert.Equal(t, 0.1, e.Payload.Slots[0].Params[0])
}

func TestLRUEviction(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(Config{Capacity: 2, TTL: time.Hour}, WithRegisterer(reg))

	c.Put("a", payload(1))
	c.Put("b", payload(2))
	_, _ = c.Get("a") // a becomes most recent
	c.Put("c", payload(3))

	_, ok := c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, int64(1), c.Stats().Evictions)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.evicted))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.lookups.WithLabelValues("miss")))
}

func TestPutMemoryShortTTL(t *testing.T) {
	clk := newClock()
	tier, _ := sqliteTier(t)
	c := New(Config{Capacity: 4, TTL: 24 * time.Hour}, WithTier(tier), WithClock(clk.Now))

	c.PutMemory("f", payload(5), time.Minute)
	_, ok := c.Get("f")
	assert.True(t, ok)

	_, err := tier.Load("f")
	assert.ErrorIs(t, err, ErrNotFound)

	clk.Advance(time.Minute)
	_, ok = c.Get("f")
	assert.False(t, ok)
}

// #endregion memory

// #region tiers
func testPromotion(t *testing.T, tier Tier) {
	clk := newClock()
	first := New(Config{Capacity: 4, TTL: time.Hour}, WithTier(tier), WithClock(clk.Now))
	first.Put("k", payload(7))

	// A fresh cache over the same tier sees the entry and promotes it.
	second := New(Config{Capacity: 4, TTL: time.Hour}, WithTier(tier), WithClock(clk.Now))
	e, ok := second.Get("k")
	require.True(t, ok)
	assert.Equal(t, 7, e.Payload.Slots[0].EngineID)
	assert.Equal(t, int64(1), second.Stats().Promotions)

	stored, err := tier.Load("k")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Hits)

	// Expired persisted entries are deleted on read.
	clk.Advance(2 * time.Hour)
	third := New(Config{Capacity: 4, TTL: time.Hour}, WithTier(tier), WithClock(clk.Now))
	_, ok = third.Get("k")
	assert.False(t, ok)
	_, err = tier.Load("k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteTierPromotionAndExpiry(t *testing.T) {
	tier, _ := sqliteTier(t)
	testPromotion(t, tier)
}

func TestBadgerTierPromotionAndExpiry(t *testing.T) {
	tier, _ := badgerTier(t, 0)
	testPromotion(t, tier)
}

func TestSQLiteCorruptEntryIsMiss(t *testing.T) {
	tier, db := sqliteTier(t)
	_, err := db.Exec(`INSERT INTO cache_entries (key, payload, created_at, last_access, hits)
		VALUES ('bad', '{not json', '2026-03-01T12:00:00Z', '2026-03-01T12:00:00Z', 0)`)
	require.NoError(t, err)

	_, err = tier.Load("bad")
	assert.ErrorIs(t, err, ErrCorrupt)

	clk := newClock()
	c := New(Config{Capacity: 4, TTL: time.Hour}, WithTier(tier), WithClock(clk.Now))
	_, ok := c.Get("bad")
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Stats().Corrupt)

	n, err := tier.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestBadgerCorruptEntryIsMiss(t *testing.T) {
	tier, db := badgerTier(t, time.Hour)
	require.NoError(t, db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(badgerPrefix+"bad"), []byte("{garbage"))
	}))

	c := New(DefaultConfig(), WithTier(tier))
	_, ok := c.Get("bad")
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Stats().Corrupt)

	_, err := tier.Load("bad")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTierDeleteAbsentKey(t *testing.T) {
	st, _ := sqliteTier(t)
	bt, _ := badgerTier(t, 0)
	assert.NoError(t, st.Delete("missing"))
	assert.NoError(t, bt.Delete("missing"))
}

func TestOpenBadgerRequiresPath(t *testing.T) {
	_, err := OpenBadger(BadgerConfig{}, nil)
	assert.Error(t, err)

	db, err := OpenBadger(BadgerConfig{Path: filepath.Join(t.TempDir(), "bdg")}, nil)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

// #endregion tiers

func TestConcurrentAccess(t *testing.T) {
	c := New(Config{Capacity: 8, TTL: time.Hour})
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i%4))
			c.Put(key, payload(i%56+1))
			c.Get(key)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 4, c.Len())
}
