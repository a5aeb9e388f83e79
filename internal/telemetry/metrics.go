package telemetry

import (
	"sync"
	"time"
)

// RunMetrics tracks aggregate counters for one run id across its
// lifetime (a run may be resumed and executed more than once).
type RunMetrics struct {
	RunID           string
	ExecutionCount  int
	SuccessCount    int
	FailureCount    int
	TotalDuration   time.Duration
	AverageDuration time.Duration
	MinDuration     time.Duration
	MaxDuration     time.Duration
	LastExecutionAt time.Time
}

// StageMetrics aggregates counters for a stage name across every run
// that passed through it.
type StageMetrics struct {
	Stage           string
	ExecutionCount  int
	SuccessCount    int
	FailureCount    int
	TotalDuration   time.Duration
	AverageDuration time.Duration
	MinDuration     time.Duration
	MaxDuration     time.Duration
}

// MetricsCollector implements RunObserver and accumulates run/stage
// counters, mirroring the teacher's workflow/node MetricsCollector but
// keyed on run id and stage name instead of workflow/node id.
type MetricsCollector struct {
	mu     sync.RWMutex
	runs   map[string]*RunMetrics
	stages map[string]*StageMetrics

	runStartedAt map[string]time.Time
}

// NewMetricsCollector creates an empty collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		runs:         make(map[string]*RunMetrics),
		stages:       make(map[string]*StageMetrics),
		runStartedAt: make(map[string]time.Time),
	}
}

func (mc *MetricsCollector) OnRunStarted(runID string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.runStartedAt[runID] = time.Now()
}

func (mc *MetricsCollector) OnRunCompleted(runID string, duration time.Duration) {
	mc.recordRun(runID, duration, true)
}

func (mc *MetricsCollector) OnRunFailed(runID string, _ error, duration time.Duration) {
	mc.recordRun(runID, duration, false)
}

func (mc *MetricsCollector) recordRun(runID string, duration time.Duration, success bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	delete(mc.runStartedAt, runID)

	m, ok := mc.runs[runID]
	if !ok {
		m = &RunMetrics{RunID: runID, MinDuration: duration, MaxDuration: duration}
		mc.runs[runID] = m
	}
	m.ExecutionCount++
	if success {
		m.SuccessCount++
	} else {
		m.FailureCount++
	}
	m.TotalDuration += duration
	m.AverageDuration = m.TotalDuration / time.Duration(m.ExecutionCount)
	m.LastExecutionAt = time.Now()
	if duration < m.MinDuration {
		m.MinDuration = duration
	}
	if duration > m.MaxDuration {
		m.MaxDuration = duration
	}
}

func (mc *MetricsCollector) OnStageStarted(string, string) {}

func (mc *MetricsCollector) OnStageCompleted(_ string, stage string, duration time.Duration) {
	mc.recordStage(stage, duration, true)
}

func (mc *MetricsCollector) OnStageFailed(_ string, stage string, _ error) {
	mc.recordStage(stage, 0, false)
}

func (mc *MetricsCollector) recordStage(stage string, duration time.Duration, success bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	m, ok := mc.stages[stage]
	if !ok {
		m = &StageMetrics{Stage: stage, MinDuration: duration, MaxDuration: duration}
		mc.stages[stage] = m
	}
	m.ExecutionCount++
	if success {
		m.SuccessCount++
	} else {
		m.FailureCount++
	}
	m.TotalDuration += duration
	m.AverageDuration = m.TotalDuration / time.Duration(m.ExecutionCount)
	if duration < m.MinDuration {
		m.MinDuration = duration
	}
	if duration > m.MaxDuration {
		m.MaxDuration = duration
	}
}

func (mc *MetricsCollector) OnTelemetry(string, Snapshot) {}

// RunSuccessRate returns a run id's historical success rate, or 0 if
// it has never executed.
func (mc *MetricsCollector) RunSuccessRate(runID string) float64 {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	m, ok := mc.runs[runID]
	if !ok || m.ExecutionCount == 0 {
		return 0
	}
	return float64(m.SuccessCount) / float64(m.ExecutionCount)
}

// Snapshot returns copies of every run and stage metric currently held.
func (mc *MetricsCollector) Snapshot() (runs map[string]RunMetrics, stages map[string]StageMetrics) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	runs = make(map[string]RunMetrics, len(mc.runs))
	for k, v := range mc.runs {
		runs[k] = *v
	}
	stages = make(map[string]StageMetrics, len(mc.stages))
	for k, v := range mc.stages {
		stages[k] = *v
	}
	return runs, stages
}

var _ RunObserver = (*MetricsCollector)(nil)
