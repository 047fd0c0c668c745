package service

import (
	"context"
	"sync"
)

// MemoryTx serializes workflow transactions with the same process-wide mutex
// the ledger's runner uses, so a decision and a termination touching the
// same identity never interleave. See the ledger runner for why the lock is
// coarse and why callbacks must validate before mutating.
type MemoryTx struct {
	mu     *sync.Mutex
	stores Stores
}

// NewMemoryTx builds a runner over in-memory stores. Pass the same mu the
// ledger runner was built with.
func NewMemoryTx(mu *sync.Mutex, stores Stores) *MemoryTx {
	return &MemoryTx{mu: mu, stores: stores}
}

func (t *MemoryTx) RunInTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(ctx, t.stores)
}
