package telemetry

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	NoopObserver
	mu        sync.Mutex
	snapshots []Snapshot
	started   []string
}

func (r *recordingObserver) OnRunStarted(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, runID)
}

func (r *recordingObserver) OnTelemetry(_ string, snap Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, snap)
}

func (r *recordingObserver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots)
}

func TestUpdateEmitsImmediatelyWithoutWaitingForTicker(t *testing.T) {
	obs := NewObserverManager()
	rec := &recordingObserver{}
	obs.AddObserver(rec)

	lt := NewLiveTelemetry("run-1", obs, nil, time.Hour)
	lt.Update(State{Stage: "selfplay", WorkingOn: "game 3", OverallDone: 3, OverallTotal: 10, StageDone: 1, StageTotal: 4})

	require.Equal(t, 1, rec.count())
	snap := rec.snapshots[0]
	assert.Equal(t, "selfplay", snap.Stage)
	assert.InDelta(t, 0.3, snap.OverallProgress, 1e-9)
	assert.InDelta(t, 0.25, snap.StageProgress, 1e-9)
}

func TestStageTransitionResetsStageElapsed(t *testing.T) {
	obs := NewObserverManager()
	lt := NewLiveTelemetry("run-1", obs, nil, time.Hour)

	lt.Update(State{Stage: "ingest", OverallDone: 1, OverallTotal: 10, StageDone: 1, StageTotal: 2})
	time.Sleep(5 * time.Millisecond)
	lt.Update(State{Stage: "selfplay", OverallDone: 2, OverallTotal: 10, StageDone: 0, StageTotal: 5})

	snap := lt.snapshot()
	assert.Less(t, snap.StageElapsed, snap.RunElapsed)
}

func TestZeroRateLeavesETAUnknown(t *testing.T) {
	obs := NewObserverManager()
	lt := NewLiveTelemetry("run-1", obs, nil, time.Hour)
	lt.Update(State{Stage: "ingest", OverallDone: 0, OverallTotal: 10, StageDone: 0, StageTotal: 1})

	snap := lt.snapshot()
	assert.False(t, snap.ETATotalKnown)
	assert.False(t, snap.ETAStageKnown)
}

func TestNegativeDoneCountsAreClamped(t *testing.T) {
	obs := NewObserverManager()
	lt := NewLiveTelemetry("run-1", obs, nil, time.Hour)
	lt.Update(State{Stage: "ingest", OverallDone: -5, OverallTotal: 0, StageDone: -1, StageTotal: 0})

	snap := lt.snapshot()
	assert.Equal(t, 0.0, snap.OverallDone)
	assert.Equal(t, 1.0, snap.OverallTotal)
	assert.Equal(t, 0.0, snap.StageDone)
	assert.Equal(t, 1.0, snap.StageTotal)
}

func TestObserverManagerFansOutToEveryObserver(t *testing.T) {
	mgr := NewObserverManager()
	a := &recordingObserver{}
	b := &recordingObserver{}
	mgr.AddObserver(a)
	mgr.AddObserver(b)

	mgr.NotifyRunStarted("run-7")
	assert.Equal(t, []string{"run-7"}, a.started)
	assert.Equal(t, []string{"run-7"}, b.started)
}

func TestObserverManagerRemoveObserverStopsFutureNotifications(t *testing.T) {
	mgr := NewObserverManager()
	a := &recordingObserver{}
	mgr.AddObserver(a)
	mgr.RemoveObserver(a)

	mgr.NotifyRunStarted("run-1")
	assert.Empty(t, a.started)
}

func TestMetricsCollectorTracksRunAndStageCounters(t *testing.T) {
	mc := NewMetricsCollector()
	mc.OnRunStarted("run-1")
	mc.OnStageCompleted("run-1", "ingest", 10*time.Millisecond)
	mc.OnStageFailed("run-1", "selfplay", errors.New("boom"))
	mc.OnRunFailed("run-1", errors.New("boom"), 50*time.Millisecond)

	runs, stages := mc.Snapshot()
	require.Contains(t, runs, "run-1")
	assert.Equal(t, 1, runs["run-1"].FailureCount)
	require.Contains(t, stages, "ingest")
	assert.Equal(t, 1, stages["ingest"].SuccessCount)
	require.Contains(t, stages, "selfplay")
	assert.Equal(t, 1, stages["selfplay"].FailureCount)
	assert.Equal(t, 0.0, mc.RunSuccessRate("run-1"))
}

func TestLiveTelemetryTickerEmitsWithoutExplicitUpdate(t *testing.T) {
	obs := NewObserverManager()
	rec := &recordingObserver{}
	obs.AddObserver(rec)

	lt := NewLiveTelemetry("run-1", obs, nil, 5*time.Millisecond)
	lt.Start()
	defer lt.Stop()

	require.Eventually(t, func() bool { return rec.count() > 0 }, 200*time.Millisecond, 5*time.Millisecond)
}
