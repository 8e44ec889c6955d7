// Package taskpool is the concrete realization of spec §5's "task pool for
// per-renderable filtering and per-cascade setup." It is a thin wrapper over
// github.com/Carmen-Shannon/automation/tools/worker.DynamicWorkerPool, the
// same worker pool the teacher's Scene already used for per-animator CPU prep
// (engine/scene/scene.go). Workers persist across frames; callers barrier on a
// sync.WaitGroup rather than Pool.Wait(), because Wait() blocks until the pool
// idle-exits, which is the wrong shape for a once-per-frame fan-out.
package taskpool

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
)

// Pool fans out per-frame CPU work (renderable-set filtering, per-cascade
// shadow setup) across a fixed set of persistent workers.
type Pool struct {
	inner  worker.DynamicWorkerPool
	nextID atomic.Int64
}

// New creates a Pool with the given worker count, queue depth, and idle
// shutdown grace period for workers beyond the floor (unused here since the
// pool is sized once at construction and never shrinks below workerCount).
func New(workerCount, queueDepth int, idleGrace time.Duration) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Pool{inner: worker.NewDynamicWorkerPool(workerCount, queueDepth, idleGrace)}
}

// Batch runs fns concurrently across the pool and blocks until every fn has
// returned, using a WaitGroup barrier (see package doc for why not Wait()).
func (p *Pool) Batch(fns []func()) {
	var wg sync.WaitGroup
	wg.Add(len(fns))
	for _, fn := range fns {
		fn := fn
		id := int(p.nextID.Add(1))
		p.inner.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				fn()
				return nil, nil
			},
		})
	}
	wg.Wait()
}
