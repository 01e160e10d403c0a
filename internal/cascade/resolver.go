// Package cascade resolves a request through three stages, cheapest first:
// the semantic cache, the similarity index, then an external escalator.
// Escalated answers are cached and, when novel and confident, learned back
// into the index. Every answer passes chain ordering and safety validation
// before it is returned.
package cascade

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/cache"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/catalog"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/chain"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/encoder"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/escalation"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/index"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/logging"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/preset"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/safety"
)

// #region deps
// Deps are the resolver's collaborators. Catalog and Index are required; the
// rest default to in-process implementations.
type Deps struct {
	Catalog    *catalog.Catalog
	Index      *index.Index
	Encoder    *encoder.Encoder
	Cache      *cache.Cache
	Escalator  escalation.Escalator
	Optimizer  *chain.Optimizer
	Validator  *safety.Validator
	Learner    Learner
	Recorder   Recorder
	Logger     *zap.Logger
	Registerer prometheus.Registerer
	Tracer     trace.Tracer
}

// #endregion deps

// #region resolver
// Resolver is safe for concurrent use.
type Resolver struct {
	config    Config
	cat       *catalog.Catalog
	idx       *index.Index
	enc       *encoder.Encoder
	cache     *cache.Cache
	escalator escalation.Escalator
	optimizer *chain.Optimizer
	validator *safety.Validator
	learner   Learner
	recorder  Recorder
	logger    *zap.Logger
	metrics   *Metrics
	tracer    trace.Tracer
	flights   singleflight.Group
}

// New wires a resolver. It fails with ErrNoFallback when the catalog or index
// is empty, since every request must be answerable.
func New(config Config, deps Deps) (*Resolver, error) {
	if deps.Catalog == nil || deps.Catalog.Len() == 0 {
		return nil, fmt.Errorf("%w: empty catalog", ErrNoFallback)
	}
	if deps.Index == nil || deps.Index.Len() == 0 {
		return nil, fmt.Errorf("%w: empty index", ErrNoFallback)
	}
	if config.MaxSlots <= 0 {
		config.MaxSlots = DefaultConfig().MaxSlots
	}
	if config.SearchK <= 0 {
		config.SearchK = DefaultConfig().SearchK
	}

	r := &Resolver{
		config:    config,
		cat:       deps.Catalog,
		idx:       deps.Index,
		enc:       deps.Encoder,
		cache:     deps.Cache,
		escalator: deps.Escalator,
		optimizer: deps.Optimizer,
		validator: deps.Validator,
		learner:   deps.Learner,
		recorder:  deps.Recorder,
		logger:    logging.OrNop(deps.Logger).Named("cascade"),
		metrics:   NewMetrics(deps.Registerer),
		tracer:    deps.Tracer,
	}
	if r.enc == nil {
		r.enc = encoder.New(r.cat, encoder.Config{UnitWeight: 20, MoodWeight: 1, MaxSlots: config.MaxSlots})
	}
	if r.enc.Dim() != r.idx.Dim() {
		return nil, fmt.Errorf("encoder dim %d does not match index dim %d: %w", r.enc.Dim(), r.idx.Dim(), index.ErrDimension)
	}
	if r.cache == nil {
		r.cache = cache.New(cache.DefaultConfig())
	}
	if r.escalator == nil {
		r.escalator = escalation.Disabled{}
	}
	if r.optimizer == nil {
		r.optimizer = chain.NewOptimizer(r.cat)
	}
	if r.validator == nil {
		vc := safety.DefaultConfig()
		vc.MaxSlots = config.MaxSlots
		r.validator = safety.NewValidator(r.cat, vc)
	}
	if r.tracer == nil {
		r.tracer = otel.Tracer("github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/cascade")
	}
	return r, nil
}

// Metrics exposes the collectors, for tests and dashboards.
func (r *Resolver) Metrics() *Metrics {
	return r.metrics
}

// #endregion resolver

// #region resolve
// flight is what one in-flight resolution produces for every caller sharing it.
type flight struct {
	candidate  preset.Candidate
	report     safety.Report
	source     preset.Source
	origin     preset.Source
	confidence float64
	escalated  bool
	learned    bool
}

// Resolve answers req. The only per-request error is an invalid request;
// every other failure degrades to a fallback or the default chain.
func (r *Resolver) Resolve(ctx context.Context, req preset.Request) (Result, error) {
	start := time.Now()
	req = req.WithDefaults(r.config.MaxSlots)
	if err := preset.ValidateRequest(r.cat, req); err != nil {
		return Result{}, err
	}
	key := cache.Key(req)

	ctx, span := r.tracer.Start(ctx, "cascade.Resolve", trace.WithAttributes(attribute.String("oracle.key", key)))
	defer span.End()

	var f flight
	if hit, ok := r.fromCache(key, req); ok {
		r.metrics.Stages.WithLabelValues("cache", "hit").Inc()
		f = hit
	} else {
		r.metrics.Stages.WithLabelValues("cache", "miss").Inc()
		v, _, shared := r.flights.Do(key, func() (any, error) {
			// A flight that finished just before this one may have filled the cache.
			if hit, ok := r.fromCache(key, req); ok {
				return hit, nil
			}
			return r.resolveMiss(ctx, req, key), nil
		})
		f = v.(flight)
		f.candidate = f.candidate.Clone()
		if shared {
			r.metrics.Shared.Inc()
		}
	}

	res := Result{
		RequestID:  uuid.NewString(),
		Key:        key,
		Output:     preset.Render(f.candidate, r.config.MaxSlots),
		Candidate:  f.candidate,
		Source:     f.source,
		Origin:     f.origin,
		Confidence: f.confidence,
		Report:     f.report,
		Escalated:  f.escalated,
		Learned:    f.learned,
		Latency:    time.Since(start),
	}
	span.SetAttributes(
		attribute.String("oracle.source", string(res.Source)),
		attribute.Float64("oracle.confidence", res.Confidence),
		attribute.Bool("oracle.safe", res.Report.IsSafe),
	)
	r.metrics.Resolutions.WithLabelValues(string(res.Source)).Inc()
	r.metrics.Latency.Observe(res.Latency.Seconds())
	r.record(req, res)
	return res, nil
}

func (r *Resolver) fromCache(key string, req preset.Request) (flight, bool) {
	e, ok := r.cache.Get(key)
	if !ok {
		return flight{}, false
	}
	cand, report := r.process(e.Payload, req)
	origin := e.Payload.Source
	if origin == "" {
		origin = preset.SourceCache
	}
	r.logger.Debug("cache hit", zap.String("key", key), zap.String("origin", string(origin)), zap.Int64("hits", e.Hits))
	return flight{
		candidate:  cand,
		report:     report,
		source:     preset.SourceCache,
		origin:     origin,
		confidence: e.Payload.Confidence,
	}, true
}

// resolveMiss runs the index and escalation stages. It runs once per key per
// flight.
func (r *Resolver) resolveMiss(ctx context.Context, req preset.Request, key string) flight {
	best := r.searchIndex(req)
	if best.err == nil && best.confidence >= r.config.IndexThreshold {
		r.metrics.Stages.WithLabelValues("index", "hit").Inc()
		cand, report := r.process(r.stamp(best.candidate, preset.SourceIndex, best.confidence), req)
		if best.confidence >= r.config.CacheThreshold {
			r.cache.Put(key, cand)
		}
		r.logger.Debug("index hit", zap.String("key", key), zap.Float64("confidence", best.confidence))
		return flight{
			candidate:  cand,
			report:     report,
			source:     preset.SourceIndex,
			origin:     preset.SourceIndex,
			confidence: best.confidence,
		}
	}
	r.metrics.Stages.WithLabelValues("index", outcome(best.err)).Inc()

	esc := r.escalate(ctx, req, best)
	if esc.err == nil {
		cand, report := r.process(r.stamp(esc.candidate, preset.SourceEscalation, esc.confidence), req)
		if cand.HasUnits() {
			cand.Vibe, cand.Genre = req.VibeText, req.Genre
			r.cache.Put(key, cand)
			learned := r.learn(cand, esc.confidence)
			return flight{
				candidate:  cand,
				report:     report,
				source:     preset.SourceEscalation,
				origin:     preset.SourceEscalation,
				confidence: esc.confidence,
				escalated:  true,
				learned:    learned,
			}
		}
		r.logger.Warn("escalated chain has no usable units, falling back", zap.String("key", key), zap.Int("issues", len(report.Issues)))
	}

	// Memory-only so late arrivals for this key do not re-escalate, while a
	// later retry after FallbackTTL still can.
	var f flight
	if best.candidate.HasUnits() {
		cand, report := r.process(r.stamp(best.candidate, preset.SourceFallback, best.confidence), req)
		f = flight{candidate: cand, report: report, source: preset.SourceFallback, origin: preset.SourceFallback, confidence: best.confidence}
	} else {
		cand, report := r.process(preset.Default(r.config.MaxSlots), req)
		f = flight{candidate: cand, report: report, source: preset.SourceDefault, origin: preset.SourceDefault}
	}
	// A disabled backend makes no call, so nothing was escalated.
	f.escalated = !errors.Is(esc.err, escalation.ErrDisabled)
	r.cache.PutMemory(key, f.candidate, r.config.FallbackTTL)
	return f
}

// stamp returns a copy of c labelled with its producing stage.
func (r *Resolver) stamp(c preset.Candidate, source preset.Source, confidence float64) preset.Candidate {
	out := c.Clone()
	out.Source = source
	out.Confidence = confidence
	return out
}

// #endregion resolve

// #region process
// process sanitizes, orders, trims to req.MaxUnits, and safety-fixes c. A chain
// that is still unsafe after fixing is replaced by the default chain; its
// report is kept.
func (r *Resolver) process(c preset.Candidate, req preset.Request) (preset.Candidate, safety.Report) {
	clean, problems := preset.Sanitize(r.cat, c, r.config.MaxSlots)
	ordered := r.optimizer.Optimize(clean)
	trimmed, dropped := preset.Trim(ordered, req.MaxUnits, req.RequiredUnits)
	fixed, report := r.validator.Process(trimmed)
	report = report.WithIssues(safety.StructuralIssues(append(problems, dropped...))...)
	if !report.IsSafe {
		r.logger.Warn("chain unsafe after fixing, using default", zap.Int("issues", len(report.Issues)))
		def := preset.Default(r.config.MaxSlots)
		def.Vibe, def.Genre = c.Vibe, c.Genre
		return def, report
	}
	return fixed, report
}

// #endregion process

// #region learn
// learn writes an escalated chain back into the index when the escalator was
// confident and the chain is not already represented.
func (r *Resolver) learn(c preset.Candidate, confidence float64) bool {
	if confidence <= r.config.LearnThreshold || !c.HasUnits() {
		return false
	}
	vec := r.enc.EncodeCandidate(c)
	nearest, err := r.idx.Nearest(vec)
	if err != nil {
		r.logger.Warn("novelty check failed", zap.Error(err))
		return false
	}
	if nearest <= r.config.NoveltyFloor {
		return false
	}

	item := index.Item{
		ID:        uuid.NewString(),
		Vector:    vec,
		Candidate: c,
		Origin:    index.OriginLearned,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.idx.Add(item); err != nil {
		r.logger.Warn("learn failed", zap.Error(err))
		return false
	}
	if r.learner != nil {
		if err := r.learner.SaveLearned(item); err != nil {
			r.logger.Warn("persist learned chain failed", zap.String("id", item.ID), zap.Error(err))
		}
	}
	r.metrics.Learned.Inc()
	r.logger.Info("learned chain", zap.String("id", item.ID), zap.Float64("novelty", nearest), zap.Int("index_size", r.idx.Len()))
	return true
}

// #endregion learn

// #region record
func (r *Resolver) record(req preset.Request, res Result) {
	if r.recorder == nil {
		return
	}
	report, err := json.Marshal(res.Report)
	if err != nil {
		r.logger.Warn("marshal report failed", zap.Error(err))
	}
	units := make([]string, 0, len(res.Output.Slots))
	for _, id := range res.Output.ActiveUnits() {
		units = append(units, strconv.Itoa(id))
	}
	err = r.recorder.LogResolution(logging.Entry{
		RequestID:  res.RequestID,
		CacheKey:   res.Key,
		Vibe:       req.VibeText,
		Source:     string(res.Source),
		Origin:     string(res.Origin),
		Confidence: res.Confidence,
		Escalated:  res.Escalated,
		Learned:    res.Learned,
		IsSafe:     res.Report.IsSafe,
		Score:      res.Report.Score,
		ReportJSON: string(report),
		Units:      strings.Join(units, ","),
		Latency:    res.Latency,
	})
	if err != nil {
		r.logger.Warn("record resolution failed", zap.String("request_id", res.RequestID), zap.Error(err))
	}
}

// #endregion record
