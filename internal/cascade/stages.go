package cascade

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/escalation"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/index"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/preset"
)

var (
	errNoMatch       = errors.New("no index match")
	errLowConfidence = errors.New("index confidence below threshold")
)

// #region stage-result
// stageResult is what each stage hands to the next: a candidate, how much it
// trusts it, and why it declined if it did.
type stageResult struct {
	candidate  preset.Candidate
	confidence float64
	err        error
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "hit"
	case errors.Is(err, errNoMatch):
		return "empty"
	case errors.Is(err, errLowConfidence):
		return "low_confidence"
	default:
		return "error"
	}
}

// #endregion stage-result

// #region index-stage
// searchIndex scores the k nearest items and keeps the most confident one.
// The result carries the best candidate even when its confidence is too low,
// so it can be offered to the escalator and used as the fallback.
func (r *Resolver) searchIndex(req preset.Request) stageResult {
	matches, err := r.idx.Search(r.enc.EncodeRequest(req), r.config.SearchK)
	if err != nil {
		return stageResult{err: err}
	}
	if len(matches) == 0 {
		return stageResult{err: errNoMatch}
	}

	best := stageResult{confidence: -1}
	for _, m := range matches {
		conf, sim, overlap := r.score(req, m)
		// Matches arrive by ascending distance, so ties keep the closer one.
		if conf > best.confidence {
			c := m.Item.Candidate.Clone()
			c.Similarity, c.Overlap = sim, overlap
			best = stageResult{candidate: c, confidence: conf}
		}
	}
	if best.confidence < r.config.IndexThreshold {
		best.err = errLowConfidence
	}
	return best
}

// score applies the single scoring policy: with required units, overlap
// dominates; without them, similarity alone decides.
func (r *Resolver) score(req preset.Request, m index.Match) (confidence, similarity, overlap float64) {
	similarity = index.Similarity(m.Distance)
	overlap = preset.OverlapRatio(req.RequiredUnits, m.Item.Candidate.Units())
	if len(req.RequiredUnits) == 0 {
		return similarity, similarity, overlap
	}
	w := r.config.OverlapWeight
	return w*overlap + (1-w)*similarity, similarity, overlap
}

// #endregion index-stage

// #region escalation-stage
// escalate calls the escalator detached from the caller's cancellation, bounded
// by EscalationTimeout. A reply with no unit that survives sanitizing is
// malformed; process does the rest.
func (r *Resolver) escalate(ctx context.Context, req preset.Request, best stageResult) stageResult {
	ctx, span := r.tracer.Start(ctx, "cascade.escalate")
	defer span.End()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.config.EscalationTimeout)
	defer cancel()

	er := escalation.Request{Semantic: req, IndexConfidence: best.confidence}
	if best.candidate.HasUnits() {
		c := best.candidate.Clone()
		er.BestIndexCandidate = &c
	}
	if er.IndexConfidence < 0 {
		er.IndexConfidence = 0
	}

	resp, err := r.escalator.Escalate(ctx, er)
	if err == nil {
		if clean, _ := preset.Sanitize(r.cat, resp.Candidate, r.config.MaxSlots); !clean.HasUnits() {
			err = errors.Join(escalation.ErrMalformed, errors.New("candidate has no usable units"))
		}
	}
	if err != nil {
		label := "failure"
		switch {
		case errors.Is(err, escalation.ErrDisabled):
			label = "disabled"
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
			label = "timeout"
		}
		r.metrics.Escalations.WithLabelValues(label).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, label)
		if label == "disabled" {
			r.logger.Debug("escalation skipped", zap.Error(err))
		} else {
			r.logger.Warn("escalation failed", zap.String("outcome", label), zap.Error(err))
		}
		return stageResult{err: err}
	}

	r.metrics.Escalations.WithLabelValues("success").Inc()
	span.SetAttributes(attribute.Float64("oracle.self_confidence", resp.Confidence))
	return stageResult{candidate: resp.Candidate, confidence: resp.Confidence}
}

// #endregion escalation-stage
