// internal/browser/context_utils.go
package browser

import (
	"context"
	"time"
)

// CombineContext derives a context from engineCtx (which carries engine state,
// e.g. the chromedp target) that is also canceled when opCtx is done. The
// operation deadline is carried over so that engine calls observe it.
func CombineContext(engineCtx, opCtx context.Context) (context.Context, context.CancelFunc) {
	var (
		combined context.Context
		cancel   context.CancelFunc
	)
	if deadline, ok := opCtx.Deadline(); ok {
		combined, cancel = context.WithDeadline(engineCtx, deadline)
	} else {
		combined, cancel = context.WithCancel(engineCtx)
	}

	go func() {
		select {
		case <-opCtx.Done():
			cancel()
		case <-combined.Done():
		}
	}()

	return combined, cancel
}

type valueOnlyContext struct {
	context.Context
}

func (valueOnlyContext) Deadline() (deadline time.Time, ok bool) { return }
func (valueOnlyContext) Done() <-chan struct{}                   { return nil }
func (valueOnlyContext) Err() error                              { return nil }

// Detach returns a context that keeps ctx's values but none of its
// cancellation. Used for engine teardown after the caller's context ended.
func Detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}

// RemainingMillis converts the time left on ctx into an engine timeout in
// milliseconds. It returns fallback when ctx has no deadline.
func RemainingMillis(ctx context.Context, fallback time.Duration) float64 {
	if deadline, ok := ctx.Deadline(); ok {
		left := time.Until(deadline)
		if left < time.Millisecond {
			left = time.Millisecond
		}
		return float64(left.Milliseconds())
	}
	return float64(fallback.Milliseconds())
}
