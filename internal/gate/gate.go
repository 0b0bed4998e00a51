// Package gate bounds how many research operations run at once.
//
// Waiting tasks are admitted in FIFO order. A task must not submit another
// task to the same gate and wait for it while holding a slot.
package gate

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// DefaultSize is the number of simultaneous network or browser operations.
const DefaultSize = 2

// Gate admits at most Size tasks concurrently.
type Gate struct {
	sem      *semaphore.Weighted
	size     int
	inFlight atomic.Int32
	peak     atomic.Int32
}

// New creates a gate with n slots. n < 1 is treated as 1.
func New(n int) *Gate {
	if n < 1 {
		n = 1
	}
	return &Gate{sem: semaphore.NewWeighted(int64(n)), size: n}
}

// Size returns the configured number of slots.
func (g *Gate) Size() int {
	return g.size
}

// InFlight returns how many tasks currently hold a slot.
func (g *Gate) InFlight() int {
	return int(g.inFlight.Load())
}

// Peak returns the highest InFlight value observed.
func (g *Gate) Peak() int {
	return int(g.peak.Load())
}

// Do waits for a slot, runs task, and releases the slot. If ctx is done
// before a slot frees up, task is not run and ctx.Err() is returned.
func (g *Gate) Do(ctx context.Context, task func(ctx context.Context) error) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer g.sem.Release(1)

	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		peak := g.peak.Load()
		if n <= peak || g.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	return task(ctx)
}

// Run is Do for tasks that produce a value.
func Run[T any](ctx context.Context, g *Gate, task func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := g.Do(ctx, func(ctx context.Context) error {
		var err error
		result, err = task(ctx)
		return err
	})
	return result, err
}
