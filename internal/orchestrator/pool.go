package orchestrator

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrRunAlreadyActive is returned by Submit when runID is already executing.
var ErrRunAlreadyActive = errors.New("orchestrator: run is already active")

// Pool is a fixed-capacity worker pool: at most `capacity` jobs run at
// once. Submit itself never blocks: a job submitted while the pool is full
// waits on the semaphore in its own goroutine until a slot frees.
// Jobs are identified by run id so a concurrent resume of a still-running
// job fails fast instead of double-running it.
type Pool struct {
	sem *semaphore.Weighted

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// NewPool creates a pool that runs at most capacity jobs concurrently.
func NewPool(capacity int64) *Pool {
	return &Pool{sem: semaphore.NewWeighted(capacity), active: make(map[string]context.CancelFunc)}
}

// Submit registers runID as active and launches fn in a new goroutine once
// a pool slot is available. It returns immediately with a cancel function
// the caller can use for cooperative cancellation; fn observes ctx.Done()
// the same way every other blocking call in the run does. done is closed
// when fn returns.
func (p *Pool) Submit(ctx context.Context, runID string, fn func(ctx context.Context) error) (cancel context.CancelFunc, done <-chan error, err error) {
	p.mu.Lock()
	if _, exists := p.active[runID]; exists {
		p.mu.Unlock()
		return nil, nil, ErrRunAlreadyActive
	}
	runCtx, cancelFn := context.WithCancel(ctx)
	p.active[runID] = cancelFn
	p.mu.Unlock()

	result := make(chan error, 1)
	go func() {
		defer func() {
			p.mu.Lock()
			delete(p.active, runID)
			p.mu.Unlock()
		}()

		if err := p.sem.Acquire(runCtx, 1); err != nil {
			result <- err
			return
		}
		defer p.sem.Release(1)

		result <- fn(runCtx)
	}()

	return cancelFn, result, nil
}

// IsActive reports whether runID currently holds a pool slot or is waiting
// for one.
func (p *Pool) IsActive(runID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.active[runID]
	return ok
}

// Cancel cancels an active run's context, if it is currently registered.
func (p *Pool) Cancel(runID string) bool {
	p.mu.Lock()
	cancel, ok := p.active[runID]
	p.mu.Unlock()
	if !ok {
		return false
	}
	cancel()
	return true
}
