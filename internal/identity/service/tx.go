package service

import (
	"context"
	"sync"
)

// MemoryTx serializes ledger transactions with one process-wide mutex. The
// coarse lock is deliberate: a termination voiding pending requests races a
// concurrent decision on the same requests across two entities, which
// per-key locking cannot serialize. The mutex is shared with the workflow's
// runner so both components see one consistent world.
//
// There is no rollback. Callbacks must do all validation reads before the
// first mutation so an error never leaves a half-applied unit.
type MemoryTx struct {
	mu     *sync.Mutex
	stores Stores
}

// NewMemoryTx builds a runner over in-memory stores. Pass the same mu to the
// workflow's runner.
func NewMemoryTx(mu *sync.Mutex, stores Stores) *MemoryTx {
	return &MemoryTx{mu: mu, stores: stores}
}

func (t *MemoryTx) RunInTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(ctx, t.stores)
}
