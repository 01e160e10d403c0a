package replay

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/cascade"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/preset"
)

// #region types
// Resolver is the part of the cascade a replay drives.
type Resolver interface {
	Resolve(ctx context.Context, req preset.Request) (cascade.Result, error)
}

// Case is a single recorded request for replay.
type Case struct {
	ID      string
	Request preset.Request
}

// Config bounds a replay run.
type Config struct {
	Concurrency int // resolutions in flight; <1 means 1
}

// DefaultConfig returns a modest fan-out suitable for a local escalator.
func DefaultConfig() Config {
	return Config{Concurrency: 4}
}

// Result captures the outcome of replaying one case through the cascade.
type Result struct {
	ID         string        `json:"id"`
	Source     preset.Source `json:"source,omitempty"`
	Origin     preset.Source `json:"origin,omitempty"`
	Units      []int         `json:"units,omitempty"`
	Confidence float64       `json:"confidence"`
	IsSafe     bool          `json:"is_safe"`
	Score      float64       `json:"score"`
	Escalated  bool          `json:"escalated"`
	Learned    bool          `json:"learned"`
	Latency    time.Duration `json:"latency_ns"`
	Err        string        `json:"error,omitempty"` // set when the request was rejected
}

// Summary provides aggregate stats from a replay run.
type Summary struct {
	Total       int                   `json:"total"`
	BySource    map[preset.Source]int `json:"by_source"`
	Safe        int                   `json:"safe"`
	Unsafe      int                   `json:"unsafe"`
	Errors      int                   `json:"errors"`
	Escalated   int                   `json:"escalated"`
	Learned     int                   `json:"learned"`
	MeanLatency time.Duration         `json:"mean_latency_ns"`
}

// #endregion types

// #region run
// Run resolves every case with at most cfg.Concurrency in flight. Results keep
// the order of cases. A rejected request is recorded on its result; only
// cancellation of ctx stops the run early.
func Run(ctx context.Context, r Resolver, cases []Case, cfg Config) ([]Result, error) {
	limit := cfg.Concurrency
	if limit < 1 {
		limit = 1
	}
	results := make([]Result, len(cases))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, c := range cases {
		if gctx.Err() != nil {
			break
		}
		i, c := i, c
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = resolveCase(gctx, r, c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

func resolveCase(ctx context.Context, r Resolver, c Case) Result {
	res, err := r.Resolve(ctx, c.Request)
	if err != nil {
		return Result{ID: c.ID, Err: err.Error()}
	}
	return Result{
		ID:         c.ID,
		Source:     res.Source,
		Origin:     res.Origin,
		Units:      res.Output.ActiveUnits(),
		Confidence: res.Confidence,
		IsSafe:     res.Report.IsSafe,
		Score:      res.Report.Score,
		Escalated:  res.Escalated,
		Learned:    res.Learned,
		Latency:    res.Latency,
	}
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results), BySource: make(map[preset.Source]int)}
	var latency time.Duration
	resolved := 0
	for _, r := range results {
		if r.Err != "" {
			s.Errors++
			continue
		}
		resolved++
		latency += r.Latency
		s.BySource[r.Source]++
		if r.IsSafe {
			s.Safe++
		} else {
			s.Unsafe++
		}
		if r.Escalated {
			s.Escalated++
		}
		if r.Learned {
			s.Learned++
		}
	}
	if resolved > 0 {
		s.MeanLatency = latency / time.Duration(resolved)
	}
	return s
}

// #endregion run
