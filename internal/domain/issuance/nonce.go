// Package issuance implements the bulk certificate issuance pipeline:
// nonce allocation for the shared signing identity, retry policy for
// transient ledger faults, bounded-concurrency orchestration with
// per-recipient failure isolation, and the progress-tracked background
// variant.
package issuance

import (
	"context"
	"fmt"
	"sync"
)

// NonceAllocator owns the next transaction sequence number for the signing
// identity. Allocation is serialized: concurrent callers block on the
// mutex, they never race. The allocator assumes it is the single owner of
// the identity's sequence numbers within this process; sharing a signing
// identity across processes voids the uniqueness guarantee.
//
// Sequence numbers are handed out strictly monotonically and never
// reclaimed: a number allocated for a submission that later fails is an
// accepted gap.
type NonceAllocator struct {
	mu    sync.Mutex
	ready bool
	next  uint64
	count uint64

	fetch func(ctx context.Context) (uint64, error)
}

// NewNonceAllocator builds an allocator seeded lazily from fetch, which
// must return the signing identity's current observed transaction count
// (the chain adapter supplies PendingNonceAt).
func NewNonceAllocator(fetch func(ctx context.Context) (uint64, error)) *NonceAllocator {
	if fetch == nil {
		panic("nonce fetch func is required")
	}
	return &NonceAllocator{fetch: fetch}
}

// Next returns the next sequence number. The first call initializes the
// allocator from the ledger; initialization is atomic with that first
// allocation, so a failed fetch leaves the allocator uninitialized and no
// number is handed out. Subsequent calls never re-query the ledger.
func (a *NonceAllocator) Next(ctx context.Context) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.ready {
		seed, err := a.fetch(ctx)
		if err != nil {
			return 0, fmt.Errorf("initialize nonce from ledger: %w", err)
		}
		a.next = seed
		a.ready = true
	}

	n := a.next
	a.next++
	a.count++
	return n, nil
}

// Allocated returns how many sequence numbers have been handed out.
func (a *NonceAllocator) Allocated() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}
