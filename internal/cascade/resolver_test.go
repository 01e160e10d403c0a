package cascade

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/cache"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/catalog"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/chain"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/encoder"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/escalation"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/index"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/logging"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/preset"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/safety"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/store"
)

// #region fakes
type fakeEscalator struct {
	resp  escalation.Response
	err   error
	delay time.Duration
	calls atomic.Int32

	mu   sync.Mutex
	last escalation.Request
}

func (f *fakeEscalator) Escalate(ctx context.Context, req escalation.Request) (escalation.Response, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.last = req
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return escalation.Response{}, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return escalation.Response{}, err
	}
	return f.resp, f.err
}

type fakeLearner struct {
	mu    sync.Mutex
	items []index.Item
}

func (f *fakeLearner) SaveLearned(item index.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, item)
	return nil
}

// #endregion fakes

// #region fixture
type fixture struct {
	cat      *catalog.Catalog
	enc      *encoder.Encoder
	idx      *index.Index
	esc      *fakeEscalator
	learner  *fakeLearner
	resolver *Resolver
}

// chainOf builds a candidate with neutral params for ids, in the given order.
func chainOf(t *testing.T, cat *catalog.Catalog, vibe string, ids ...int) preset.Candidate {
	t.Helper()
	c := preset.Default(6)
	c.Vibe = vibe
	for i, id := range ids {
		d, err := cat.Describe(id)
		require.NoError(t, err)
		c.Slots[i] = preset.Slot{Index: i + 1, EngineID: id, Params: preset.NeutralParams(d), Mix: 0.5}
	}
	return c
}

func newFixture(t *testing.T, esc *fakeEscalator, tune func(*Config), seeds ...preset.Candidate) *fixture {
	t.Helper()
	cat := catalog.MustDefault()
	enc := encoder.New(cat, encoder.DefaultConfig())
	idx := index.New(enc.Dim())
	if len(seeds) == 0 {
		seeds = []preset.Candidate{
			chainOf(t, cat, "warm vintage tape", 1, 15, 39),
			chainOf(t, cat, "dreamy ethereal shimmer", 23, 42, 46),
			chainOf(t, cat, "aggressive heavy metal", 4, 22, 5),
		}
	}
	for i, c := range seeds {
		require.NoError(t, idx.Add(index.Item{
			ID:        "seed-" + string(rune('a'+i)),
			Vector:    enc.EncodeCandidate(c),
			Candidate: c,
			Origin:    index.OriginSeed,
		}))
	}
	cfg := DefaultConfig()
	if tune != nil {
		tune(&cfg)
	}
	learner := &fakeLearner{}
	r, err := New(cfg, Deps{
		Catalog:    cat,
		Index:      idx,
		Encoder:    enc,
		Escalator:  esc,
		Learner:    learner,
		Logger:     zap.NewNop(),
		Registerer: prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	return &fixture{cat: cat, enc: enc, idx: idx, esc: esc, learner: learner, resolver: r}
}

func assertOutputBounded(t *testing.T, cat *catalog.Catalog, out preset.Output) {
	t.Helper()
	require.Len(t, out.Slots, 6)
	for i, s := range out.Slots {
		if s.Bypass {
			assert.Zero(t, s.EngineID, "slot %d", i)
			assert.Empty(t, s.Params, "slot %d", i)
			continue
		}
		d, err := cat.Describe(s.EngineID)
		require.NoError(t, err)
		assert.Len(t, s.Params, d.ParamCount(), "slot %d", i)
		for _, p := range s.Params {
			assert.GreaterOrEqual(t, p, 0.0)
			assert.LessOrEqual(t, p, 1.0)
		}
	}
}

// #endregion fixture

// #region construction
func TestNewRequiresFallback(t *testing.T) {
	cat := catalog.MustDefault()
	enc := encoder.New(cat, encoder.DefaultConfig())

	_, err := New(DefaultConfig(), Deps{Catalog: cat, Index: index.New(enc.Dim())})
	assert.ErrorIs(t, err, ErrNoFallback)

	_, err = New(DefaultConfig(), Deps{Index: index.New(enc.Dim())})
	assert.ErrorIs(t, err, ErrNoFallback)

	idx := index.New(3)
	require.NoError(t, idx.Add(index.Item{ID: "x", Vector: encoder.Vector{0, 0, 0}}))
	_, err = New(DefaultConfig(), Deps{Catalog: cat, Index: idx})
	assert.ErrorIs(t, err, index.ErrDimension)
}

func TestInvalidRequest(t *testing.T) {
	f := newFixture(t, &fakeEscalator{}, nil)

	_, err := f.resolver.Resolve(context.Background(), preset.Request{})
	assert.ErrorIs(t, err, preset.ErrInvalidRequest)

	_, err = f.resolver.Resolve(context.Background(), preset.Request{VibeText: "x", RequiredUnits: []int{77}})
	assert.ErrorIs(t, err, preset.ErrInvalidRequest)
	assert.ErrorIs(t, err, catalog.ErrUnknownUnit)
	assert.Zero(t, f.esc.calls.Load())
}

// #endregion construction

// #region index-stage
func TestIndexHitIsCached(t *testing.T) {
	f := newFixture(t, &fakeEscalator{err: escalation.ErrUnavailable}, nil)
	req := preset.Request{VibeText: "warm vintage tape", RequiredUnits: []int{15}}

	res, err := f.resolver.Resolve(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, preset.SourceIndex, res.Source)
	assert.GreaterOrEqual(t, res.Confidence, 0.9)
	assert.Contains(t, res.Output.ActiveUnits(), 15)
	assert.Zero(t, f.esc.calls.Load())

	again, err := f.resolver.Resolve(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, preset.SourceCache, again.Source)
	assert.Equal(t, preset.SourceIndex, again.Origin)
	assert.Equal(t, res.Output, again.Output)
	assert.Zero(t, f.esc.calls.Load())
}

func TestEngineOverlapPrecedence(t *testing.T) {
	cat := catalog.MustDefault()
	near := chainOf(t, cat, "warm vintage tape", 15)
	far := chainOf(t, cat, "warm vintage tape", 23, 42, 46)
	f := newFixture(t, &fakeEscalator{err: escalation.ErrUnavailable}, nil, near, far)
	req := preset.Request{VibeText: "warm vintage tape", RequiredUnits: []int{42}, MaxUnits: 1}

	// The chain without the required unit is nearer in vector space...
	m, err := f.idx.Search(f.enc.EncodeRequest(req.WithDefaults(6)), 2)
	require.NoError(t, err)
	require.Equal(t, []int{15}, m[0].Item.Candidate.Units())

	// ...but the one containing it wins.
	res, err := f.resolver.Resolve(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, preset.SourceIndex, res.Source)
	assert.Contains(t, res.Output.ActiveUnits(), 42)
	assert.Equal(t, 1.0, res.Candidate.Overlap)
	assert.Equal(t, []int{42}, res.Output.ActiveUnits())
}

func TestMaxUnitsBoundsOutput(t *testing.T) {
	cat := catalog.MustDefault()
	esc := &fakeEscalator{resp: escalation.Response{Candidate: chainOf(t, cat, "", 39, 15, 1), Confidence: 0.8}}
	f := newFixture(t, esc, nil)

	res, err := f.resolver.Resolve(context.Background(), preset.Request{VibeText: "warm vintage tape", RequiredUnits: []int{1}, MaxUnits: 1})
	require.NoError(t, err)
	assert.Equal(t, preset.SourceIndex, res.Source)
	assert.Equal(t, []int{1}, res.Output.ActiveUnits())
	assert.Equal(t, 2, res.Report.Count(safety.SeverityError))
	assertOutputBounded(t, cat, res.Output)

	res, err = f.resolver.Resolve(context.Background(), preset.Request{VibeText: "lush glue", MaxUnits: 2})
	require.NoError(t, err)
	assert.Equal(t, preset.SourceEscalation, res.Source)
	assert.Equal(t, []int{1, 15}, res.Output.ActiveUnits())

	again, err := f.resolver.Resolve(context.Background(), preset.Request{VibeText: "lush glue", MaxUnits: 2})
	require.NoError(t, err)
	assert.Equal(t, preset.SourceCache, again.Source)
	assert.Equal(t, res.Output, again.Output)
}

// #endregion index-stage

// #region escalation-stage
func TestChainReorderAfterEscalation(t *testing.T) {
	cat := catalog.MustDefault()
	esc := &fakeEscalator{resp: escalation.Response{
		Candidate:  chainOf(t, cat, "", 39, 15, 1),
		Confidence: 0.8,
	}}
	f := newFixture(t, esc, nil)

	res, err := f.resolver.Resolve(context.Background(), preset.Request{VibeText: "lush glue"})
	require.NoError(t, err)
	assert.Equal(t, preset.SourceEscalation, res.Source)
	assert.Equal(t, []int{1, 15, 39}, res.Output.ActiveUnits())
	assertOutputBounded(t, cat, res.Output)

	// Ordering is a fixed point.
	opt := chain.NewOptimizer(cat)
	if diff := cmp.Diff(res.Candidate, opt.Optimize(res.Candidate)); diff != "" {
		t.Fatalf("re-optimizing changed the chain (-got +want):\n%s", diff)
	}

	esc.mu.Lock()
	last := esc.last
	esc.mu.Unlock()
	require.NotNil(t, last.BestIndexCandidate)
	assert.Less(t, last.IndexConfidence, 0.85)
}

func TestCacheHitSuppressesEscalation(t *testing.T) {
	cat := catalog.MustDefault()
	esc := &fakeEscalator{resp: escalation.Response{Candidate: chainOf(t, cat, "", 7, 35), Confidence: 0.7}}
	f := newFixture(t, esc, nil)
	req := preset.Request{VibeText: "slapback echo", Genre: "rockabilly"}

	first, err := f.resolver.Resolve(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, preset.SourceEscalation, first.Source)
	assert.False(t, first.Learned)

	second, err := f.resolver.Resolve(context.Background(), preset.Request{VibeText: "Echo, slapback!", Genre: "Rockabilly"})
	require.NoError(t, err)
	assert.Equal(t, preset.SourceCache, second.Source)
	assert.Equal(t, preset.SourceEscalation, second.Origin)
	assert.Equal(t, first.Output, second.Output)
	assert.Equal(t, int32(1), esc.calls.Load())
}

func TestEscalationTimeoutFallsBack(t *testing.T) {
	esc := &fakeEscalator{delay: 5 * time.Second, resp: escalation.Response{Confidence: 1}}
	f := newFixture(t, esc, func(c *Config) { c.EscalationTimeout = 30 * time.Millisecond })

	res, err := f.resolver.Resolve(context.Background(), preset.Request{VibeText: "dreamy ethereal shimmer"})
	require.NoError(t, err)
	assert.Equal(t, preset.SourceFallback, res.Source)
	assert.True(t, res.Escalated)
	assert.NotEmpty(t, res.Output.ActiveUnits())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.resolver.Metrics().Escalations.WithLabelValues("timeout")))
}

func TestEscalationDetachedFromCaller(t *testing.T) {
	cat := catalog.MustDefault()
	esc := &fakeEscalator{resp: escalation.Response{Candidate: chainOf(t, cat, "", 9), Confidence: 0.5}}
	f := newFixture(t, esc, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := f.resolver.Resolve(ctx, preset.Request{VibeText: "squelchy acid"})
	require.NoError(t, err)
	assert.Equal(t, preset.SourceEscalation, res.Source)
}

func TestMalformedEscalationFallsBack(t *testing.T) {
	esc := &fakeEscalator{resp: escalation.Response{Candidate: preset.Default(6), Confidence: 0.99}}
	f := newFixture(t, esc, nil)

	res, err := f.resolver.Resolve(context.Background(), preset.Request{VibeText: "anything"})
	require.NoError(t, err)
	assert.Equal(t, preset.SourceFallback, res.Source)
	assert.False(t, res.Learned)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.resolver.Metrics().Escalations.WithLabelValues("failure")))
}

func TestUnusableEscalationFallsBackToIndex(t *testing.T) {
	bogus := preset.Default(6)
	bogus.Slots[0] = preset.Slot{Index: 1, EngineID: 999, Params: []float64{0.5}, Mix: 1}
	esc := &fakeEscalator{resp: escalation.Response{Candidate: bogus, Confidence: 0.99}}
	f := newFixture(t, esc, nil)
	req := preset.Request{VibeText: "warm vintage tape"}

	res, err := f.resolver.Resolve(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, preset.SourceFallback, res.Source)
	assert.Equal(t, []int{1, 15, 39}, res.Output.ActiveUnits())
	assert.True(t, res.Escalated)
	assert.False(t, res.Learned)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.resolver.Metrics().Escalations.WithLabelValues("failure")))
	assert.Zero(t, testutil.ToFloat64(f.resolver.Metrics().Escalations.WithLabelValues("success")))

	again, err := f.resolver.Resolve(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, preset.SourceCache, again.Source)
	assert.Equal(t, preset.SourceFallback, again.Origin)
	assert.Equal(t, res.Output, again.Output)
	assert.Equal(t, int32(1), esc.calls.Load())
}

func TestDisabledEscalatorIsNotCounted(t *testing.T) {
	f := newFixture(t, &fakeEscalator{}, nil)
	r, err := New(DefaultConfig(), Deps{
		Catalog:    f.cat,
		Index:      f.idx,
		Encoder:    f.enc,
		Logger:     zap.NewNop(),
		Registerer: prometheus.NewRegistry(),
	})
	require.NoError(t, err)

	res, err := r.Resolve(context.Background(), preset.Request{VibeText: "warm vintage tape"})
	require.NoError(t, err)
	assert.Equal(t, preset.SourceFallback, res.Source)
	assert.False(t, res.Escalated)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Metrics().Escalations.WithLabelValues("disabled")))
	assert.Zero(t, testutil.ToFloat64(r.Metrics().Escalations.WithLabelValues("failure")))
}

func TestDefaultWhenIndexHasNothingUsable(t *testing.T) {
	empty := preset.Default(6)
	f := newFixture(t, &fakeEscalator{err: escalation.ErrUnavailable}, nil, empty)

	res, err := f.resolver.Resolve(context.Background(), preset.Request{VibeText: "anything"})
	require.NoError(t, err)
	assert.Equal(t, preset.SourceDefault, res.Source)
	assert.Empty(t, res.Output.ActiveUnits())
	assertOutputBounded(t, f.cat, res.Output)
}

func TestEscalatedCandidateIsSanitized(t *testing.T) {
	cat := catalog.MustDefault()
	c := chainOf(t, cat, "", 1, 39)
	c.Slots[2] = preset.Slot{Index: 3, EngineID: 200, Params: []float64{0.5}, Mix: 1}
	c.Slots[3] = preset.Slot{Index: 4, EngineID: 15, Params: []float64{0.5, 0.5}, Mix: 1}
	esc := &fakeEscalator{resp: escalation.Response{Candidate: c, Confidence: 0.6}}
	f := newFixture(t, esc, nil)

	res, err := f.resolver.Resolve(context.Background(), preset.Request{VibeText: "strange"})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 39}, res.Output.ActiveUnits())
	assert.Equal(t, 2, res.Report.Count(safety.SeverityError))
	assertOutputBounded(t, cat, res.Output)
}

// #endregion escalation-stage

// #region safety
func TestSafetyCeilingIsFixed(t *testing.T) {
	cat := catalog.MustDefault()
	hot := chainOf(t, cat, "", 15, 17, 19)
	hot.Slots[0].Params[1] = 0.9 // tube drive
	hot.Slots[1].Params[1] = 0.9 // exciter drive
	hot.Slots[2].Params[0] = 0.9 // saturator drive
	esc := &fakeEscalator{resp: escalation.Response{Candidate: hot, Confidence: 0.7}}
	f := newFixture(t, esc, nil)

	res, err := f.resolver.Resolve(context.Background(), preset.Request{VibeText: "maximum overdrive"})
	require.NoError(t, err)
	assert.True(t, res.Report.IsSafe)
	assert.True(t, res.Report.Fixed)
	assert.True(t, res.Report.Has(safety.CheckDrive))
	assert.GreaterOrEqual(t, res.Report.Count(safety.SeverityCritical), 1)

	v := safety.NewValidator(cat, safety.DefaultConfig())
	assert.LessOrEqual(t, v.TotalDrive(res.Candidate), 1.5+1e-9)
	assertOutputBounded(t, cat, res.Output)
}

// #endregion safety

// #region learning
func TestLearnsNovelConfidentEscalation(t *testing.T) {
	cat := catalog.MustDefault()
	esc := &fakeEscalator{resp: escalation.Response{Candidate: chainOf(t, cat, "", 2, 26, 41), Confidence: 0.95}}
	f := newFixture(t, esc, nil)
	before := f.idx.Len()

	res, err := f.resolver.Resolve(context.Background(), preset.Request{VibeText: "metallic ring hall"})
	require.NoError(t, err)
	assert.True(t, res.Learned)
	assert.Equal(t, before+1, f.idx.Len())
	require.Len(t, f.learner.items, 1)
	assert.Equal(t, index.OriginLearned, f.learner.items[0].Origin)
	assert.Equal(t, "metallic ring hall", f.learner.items[0].Candidate.Vibe)

	// The same chain for the same vibe is no longer novel.
	res, err = f.resolver.Resolve(context.Background(), preset.Request{VibeText: "metallic ring hall", MaxUnits: 4})
	require.NoError(t, err)
	assert.Equal(t, preset.SourceEscalation, res.Source)
	assert.False(t, res.Learned)
	assert.Equal(t, before+1, f.idx.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.resolver.Metrics().Learned))
}

func TestLowConfidenceEscalationNotLearned(t *testing.T) {
	cat := catalog.MustDefault()
	esc := &fakeEscalator{resp: escalation.Response{Candidate: chainOf(t, cat, "", 2, 26, 41), Confidence: 0.9}}
	f := newFixture(t, esc, nil)
	before := f.idx.Len()

	res, err := f.resolver.Resolve(context.Background(), preset.Request{VibeText: "metallic ring hall"})
	require.NoError(t, err)
	assert.False(t, res.Learned)
	assert.Equal(t, before, f.idx.Len())
	assert.Empty(t, f.learner.items)
}

// #endregion learning

// #region concurrency
func TestConcurrentIdenticalRequestsEscalateOnce(t *testing.T) {
	defer goleak.VerifyNone(t)

	esc := &fakeEscalator{delay: 50 * time.Millisecond, err: errors.New("backend down")}
	f := newFixture(t, esc, nil)
	req := preset.Request{VibeText: "dreamy ethereal shimmer", Genre: "ambient"}

	const n = 16
	results := make([]Result, n)
	errs := make([]error, n)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = f.resolver.Resolve(context.Background(), req)
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), esc.calls.Load())
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, preset.SourceFallback, results[i].Origin, "caller %d", i)
		assert.Equal(t, results[0].Output, results[i].Output, "caller %d", i)
	}

	// Later callers are served from the short-lived fallback entry.
	late, err := f.resolver.Resolve(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, preset.SourceCache, late.Source)
	assert.Equal(t, int32(1), esc.calls.Load())
}

func TestFallbackExpiresAndRetries(t *testing.T) {
	esc := &fakeEscalator{err: escalation.ErrUnavailable}
	f := newFixture(t, esc, func(c *Config) { c.FallbackTTL = 20 * time.Millisecond })
	req := preset.Request{VibeText: "anything at all"}

	_, err := f.resolver.Resolve(context.Background(), req)
	require.NoError(t, err)
	time.Sleep(40 * time.Millisecond)
	_, err = f.resolver.Resolve(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int32(2), esc.calls.Load())
}

// #endregion concurrency

// #region persistence
func TestLedgerAndLearnedPersistence(t *testing.T) {
	cat := catalog.MustDefault()
	s, err := store.NewStore(filepath.Join(t.TempDir(), "oracle.db"))
	require.NoError(t, err)
	defer s.Close()
	tier, err := cache.NewSQLiteTier(s.DB())
	require.NoError(t, err)

	enc := encoder.New(cat, encoder.DefaultConfig())
	idx := index.New(enc.Dim())
	seed := chainOf(t, cat, "warm vintage tape", 1, 15, 39)
	require.NoError(t, idx.Add(index.Item{ID: "seed", Vector: enc.EncodeCandidate(seed), Candidate: seed, Origin: index.OriginSeed}))

	esc := &fakeEscalator{resp: escalation.Response{Candidate: chainOf(t, cat, "", 10, 37), Confidence: 0.97}}
	r, err := New(DefaultConfig(), Deps{
		Catalog:   cat,
		Index:     idx,
		Encoder:   enc,
		Cache:     cache.New(cache.DefaultConfig(), cache.WithTier(tier)),
		Escalator: esc,
		Learner:   s,
		Recorder:  logging.NewLedger(s.DB()),
	})
	require.NoError(t, err)

	res, err := r.Resolve(context.Background(), preset.Request{VibeText: "resonant analog sweep"})
	require.NoError(t, err)
	require.True(t, res.Learned)

	entries, err := logging.Recent(s.DB(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, res.RequestID, entries[0].RequestID)
	assert.Equal(t, "escalation", entries[0].Source)
	assert.Equal(t, "10,37", entries[0].Units)
	assert.True(t, entries[0].Learned)

	items, _, err := s.LoadLearned(enc.Dim())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, []int{10, 37}, items[0].Candidate.Units())

	// A fresh resolver over the same database answers from the persisted cache.
	r2, err := New(DefaultConfig(), Deps{
		Catalog:   cat,
		Index:     idx,
		Encoder:   enc,
		Cache:     cache.New(cache.DefaultConfig(), cache.WithTier(tier)),
		Escalator: esc,
	})
	require.NoError(t, err)
	again, err := r2.Resolve(context.Background(), preset.Request{VibeText: "resonant analog sweep"})
	require.NoError(t, err)
	assert.Equal(t, preset.SourceCache, again.Source)
	assert.Equal(t, int32(1), esc.calls.Load())
}

// #endregion persistence
