package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Work is one run's body: given a cancellable context and the run's own
// stage log, execute every stage in sequence, polling ctx at stage
// boundaries and between per-asset iterations.
type Work func(ctx context.Context, log *StageLog) error

// RunManager dispatches runs onto a fixed-capacity Pool and keeps each
// run's stage log addressable by run id across submit/resume calls.
type RunManager struct {
	pool *Pool

	mu   sync.Mutex
	logs map[string]*StageLog
}

// NewRunManager creates a manager backed by a pool of the given capacity.
func NewRunManager(capacity int64) *RunManager {
	return &RunManager{pool: NewPool(capacity), logs: make(map[string]*StageLog)}
}

func (m *RunManager) logFor(runID string) *StageLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	log, ok := m.logs[runID]
	if !ok {
		log = NewStageLog()
		m.logs[runID] = log
	}
	return log
}

// Submit starts a brand-new run. It fails fast if runID is already active.
func (m *RunManager) Submit(ctx context.Context, runID string, work Work) (context.CancelFunc, <-chan error, error) {
	log := m.logFor(runID)
	log.Append("queued", "run created")
	return m.pool.Submit(ctx, runID, func(runCtx context.Context) error {
		return work(runCtx, log)
	})
}

// Resume re-submits runID's config. It fails fast if the run is already
// active, and errors if runID has never been submitted before (there is no
// stage log to resume).
func (m *RunManager) Resume(ctx context.Context, runID string, work Work) (context.CancelFunc, <-chan error, error) {
	if m.pool.IsActive(runID) {
		return nil, nil, ErrRunAlreadyActive
	}
	m.mu.Lock()
	log, ok := m.logs[runID]
	m.mu.Unlock()
	if !ok {
		return nil, nil, fmt.Errorf("orchestrator: cannot resume unknown run %q", runID)
	}
	log.Append("created", "resumed")
	return m.pool.Submit(ctx, runID, func(runCtx context.Context) error {
		return work(runCtx, log)
	})
}

// StageLog returns the stage log for runID, or nil if it has never run.
func (m *RunManager) StageLog(runID string) *StageLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.logs[runID]
}

// Cancel cancels an active run.
func (m *RunManager) Cancel(runID string) bool { return m.pool.Cancel(runID) }

// FanOut runs worker over every item concurrently, bounded by maxConcurrency,
// returning the first error encountered (if any) after every worker has
// finished, and stopping the launch of further workers once ctx is
// cancelled — the per-asset/per-timeframe fan-out within a single run's
// ingest stage.
func FanOut[T any](ctx context.Context, maxConcurrency int, items []T, worker func(ctx context.Context, item T) error) error {
	g, gctx := errgroup.WithContext(ctx)
	if maxConcurrency > 0 {
		g.SetLimit(maxConcurrency)
	}
	for _, item := range items {
		if gctx.Err() != nil {
			break
		}
		item := item
		g.Go(func() error {
			return worker(gctx, item)
		})
	}
	return g.Wait()
}
