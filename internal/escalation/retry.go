package escalation

import (
	"context"
	"errors"
)

// #region constants

const maxRetries = 2 // max 2 retries = 3 total attempts

// #endregion

// #region retrying

// Retrying re-asks the backend after a malformed or unavailable answer while
// ctx allows. Rate limiting and cancellation are never retried.
type Retrying struct {
	next    Escalator
	retries int
}

// NewRetrying allows up to retries extra attempts, capped at maxRetries.
func NewRetrying(next Escalator, retries int) *Retrying {
	if retries > maxRetries {
		retries = maxRetries
	}
	if retries < 0 {
		retries = 0
	}
	return &Retrying{next: next, retries: retries}
}

// Escalate implements Escalator.
func (r *Retrying) Escalate(ctx context.Context, req Request) (Response, error) {
	var err error
	for attempt := 0; attempt <= r.retries; attempt++ {
		var resp Response
		resp, err = r.next.Escalate(ctx, req)
		if err == nil {
			return resp, nil
		}
		if !shouldRetry(ctx, err) {
			return Response{}, err
		}
	}
	return Response{}, err
}

// #endregion

// #region should-retry

func shouldRetry(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrDisabled) {
		return false
	}
	return errors.Is(err, ErrMalformed) || errors.Is(err, ErrUnavailable)
}

// #endregion
