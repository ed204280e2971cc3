package issuance

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ConcurrencyGate bounds how many recipient pipelines run at once and
// paces ledger submissions. The cap protects the shared signing identity;
// the pacing exists because nonce correctness alone does not stop the RPC
// provider from rate limiting a burst of submissions. Both are a
// throughput/safety tradeoff, not an optimization.
type ConcurrencyGate struct {
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	slots   int
}

// NewConcurrencyGate admits at most slots concurrent pipelines (minimum 1)
// and enforces pacing as a minimum delay between submissions. A
// non-positive pacing disables the limiter.
func NewConcurrencyGate(slots int, pacing rate.Limit) *ConcurrencyGate {
	if slots < 1 {
		slots = 1
	}
	g := &ConcurrencyGate{
		sem:   semaphore.NewWeighted(int64(slots)),
		slots: slots,
	}
	if pacing > 0 {
		g.limiter = rate.NewLimiter(pacing, 1)
	}
	return g
}

// Slots returns the configured concurrency bound.
func (g *ConcurrencyGate) Slots() int { return g.slots }

// Acquire blocks until a pipeline slot is free or the context is done.
func (g *ConcurrencyGate) Acquire(ctx context.Context) error {
	return g.sem.Acquire(ctx, 1)
}

// Release frees a pipeline slot.
func (g *ConcurrencyGate) Release() {
	g.sem.Release(1)
}

// Pace blocks until the submission limiter admits the caller. Pipelines
// call this immediately before their ledger-submission stage.
func (g *ConcurrencyGate) Pace(ctx context.Context) error {
	if g.limiter == nil {
		return nil
	}
	return g.limiter.Wait(ctx)
}
