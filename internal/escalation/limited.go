package escalation

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/catalog"
)

// #region limited
// Limited wraps an Escalator with a token-bucket limiter. Calls wait for a
// token until ctx is done.
type Limited struct {
	next    Escalator
	limiter *rate.Limiter
}

// NewLimited allows rps calls per second with the given burst.
func NewLimited(next Escalator, rps float64, burst int) *Limited {
	if burst < 1 {
		burst = 1
	}
	return &Limited{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Escalate implements Escalator.
func (l *Limited) Escalate(ctx context.Context, req Request) (Response, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrRateLimited, err)
	}
	return l.next.Escalate(ctx, req)
}

// #endregion limited

// #region build
// New builds the configured backend, wrapped in a limiter when cfg.RPS > 0 and
// then in a retrier when cfg.Retries > 0, so every attempt takes a token. The
// returned close function releases any connection.
func New(cfg Config, cat *catalog.Catalog) (Escalator, func() error, error) {
	var (
		e       Escalator
		closeFn = func() error { return nil }
	)
	switch cfg.Backend {
	case "", "none":
		return Disabled{}, closeFn, nil
	case "grpc":
		c, err := NewGRPCClient(cfg.GRPCAddr)
		if err != nil {
			return nil, nil, err
		}
		e, closeFn = c, c.Close
	case "openai":
		e = NewOpenAIClient(cfg.OpenAI, cat)
	default:
		return nil, nil, fmt.Errorf("unknown escalation backend %q", cfg.Backend)
	}
	if cfg.RPS > 0 {
		e = NewLimited(e, cfg.RPS, cfg.Burst)
	}
	if cfg.Retries > 0 {
		e = NewRetrying(e, cfg.Retries)
	}
	return e, closeFn, nil
}

// #endregion build
