// Package runguard serializes cycle runs. Re-running a finished cycle is
// safe (commits are idempotent), but two concurrent runs of the same cycle
// would race each other over the same Open slots, so only one may be in
// flight at a time.
package runguard

import (
	"context"
	"sync"
)

// Guard tracks cycle ids with a run currently in flight.
type Guard interface {
	// TryAcquire atomically marks cycleID as running.
	// Returns false if a run for it is already in flight.
	TryAcquire(ctx context.Context, cycleID string) bool

	// Release clears the in-flight mark. Safe to call for ids never acquired.
	Release(ctx context.Context, cycleID string)

	// Running returns the number of cycles currently in flight.
	Running() int
}

type inMemoryGuard struct {
	mu      sync.Mutex
	running map[string]struct{}
}

// New creates an in-memory Guard.
func New() Guard {
	return &inMemoryGuard{running: make(map[string]struct{})}
}

func (g *inMemoryGuard) TryAcquire(_ context.Context, cycleID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.running[cycleID]; ok {
		return false
	}
	g.running[cycleID] = struct{}{}
	return true
}

func (g *inMemoryGuard) Release(_ context.Context, cycleID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.running, cycleID)
}

func (g *inMemoryGuard) Running() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.running)
}
