// Package telemetry reports per-run progress: stage transitions, an
// edge-triggered plus 1Hz snapshot feed of progress/ETA/rate, and host
// resource usage, fanned out to any number of observers.
package telemetry

import (
	"sync"
	"time"
)

// State is the mutable progress state of one run, updated by the stage
// driving it and read back out as a Snapshot.
type State struct {
	Stage        string
	WorkingOn    string
	Achieved     string
	Remaining    string
	OverallDone  float64
	OverallTotal float64
	StageDone    float64
	StageTotal   float64
}

// Snapshot is one immutable point-in-time telemetry reading: the state
// a run reported, plus derived progress/rate/ETA and host metrics.
type Snapshot struct {
	RunID     string
	Timestamp time.Time

	Stage     string
	WorkingOn string
	Achieved  string
	Remaining string

	OverallDone, OverallTotal float64
	OverallProgress           float64
	StageDone, StageTotal     float64
	StageProgress             float64

	RunElapsed   time.Duration
	StageElapsed time.Duration

	ETATotal time.Duration // 0 and ETATotalKnown=false if rate is not yet established
	ETATotalKnown bool
	ETAStage time.Duration
	ETAStageKnown bool

	RateUnitsPerSec      float64
	StageRateUnitsPerSec float64

	SystemCPUPercent  float64
	ProcessCPUPercent float64
	RAMUsedBytes      uint64
	RAMTotalBytes      uint64
	RAMPercent         float64
	CPUTempCelsius     *float64 // nil when unavailable on this host
}

// LiveTelemetry drives the live-telemetry loop for a single run: a
// 1Hz ticker plus edge-triggered emission on every Update call, each
// reading fanned out through an ObserverManager.
type LiveTelemetry struct {
	runID      string
	tickPeriod time.Duration
	observers  *ObserverManager
	sampler    *Sampler

	mu             sync.Mutex
	state          State
	runStartedAt   time.Time
	stageStartedAt time.Time

	stop      chan struct{}
	done      chan struct{}
	startOnce sync.Once
}

// NewLiveTelemetry creates a telemetry loop for runID. tickPeriod <= 0
// defaults to one second, matching spec's 1-Hz ticker.
func NewLiveTelemetry(runID string, observers *ObserverManager, sampler *Sampler, tickPeriod time.Duration) *LiveTelemetry {
	if tickPeriod <= 0 {
		tickPeriod = time.Second
	}
	now := time.Now()
	return &LiveTelemetry{
		runID:      runID,
		tickPeriod: tickPeriod,
		observers:  observers,
		sampler:    sampler,
		state: State{
			Stage:        "created",
			WorkingOn:    "initializing",
			Achieved:     "0",
			Remaining:    "unknown",
			OverallTotal: 1,
			StageTotal:   1,
		},
		runStartedAt:   now,
		stageStartedAt: now,
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// Start launches the 1Hz background ticker. Safe to call once; a second
// call is a no-op.
func (lt *LiveTelemetry) Start() {
	lt.startOnce.Do(func() { go lt.loop() })
}

// Stop halts the ticker and blocks until the loop goroutine has exited.
func (lt *LiveTelemetry) Stop() {
	close(lt.stop)
	<-lt.done
}

func (lt *LiveTelemetry) loop() {
	defer close(lt.done)
	ticker := time.NewTicker(lt.tickPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-lt.stop:
			return
		case <-ticker.C:
			lt.emit(lt.snapshot())
		}
	}
}

// Update records a progress state change and emits immediately,
// independent of the ticker — matching the edge-triggered behaviour on
// stage transitions and progress updates described by spec 4.12.
func (lt *LiveTelemetry) Update(s State) {
	lt.mu.Lock()
	if s.Stage != lt.state.Stage {
		lt.stageStartedAt = time.Now()
	}
	if s.OverallTotal <= 0 {
		s.OverallTotal = 1
	}
	if s.StageTotal <= 0 {
		s.StageTotal = 1
	}
	if s.OverallDone < 0 {
		s.OverallDone = 0
	}
	if s.StageDone < 0 {
		s.StageDone = 0
	}
	lt.state = s
	lt.mu.Unlock()

	lt.emit(lt.snapshot())
}

func (lt *LiveTelemetry) snapshot() Snapshot {
	now := time.Now()

	lt.mu.Lock()
	state := lt.state
	runElapsed := now.Sub(lt.runStartedAt)
	stageElapsed := now.Sub(lt.stageStartedAt)
	lt.mu.Unlock()

	overallProgress := state.OverallDone / state.OverallTotal
	stageProgress := state.StageDone / state.StageTotal

	var totalRate, stageRate float64
	if runElapsed > 0 {
		totalRate = state.OverallDone / runElapsed.Seconds()
	}
	if stageElapsed > 0 {
		stageRate = state.StageDone / stageElapsed.Seconds()
	}

	snap := Snapshot{
		RunID:                lt.runID,
		Timestamp:            now,
		Stage:                state.Stage,
		WorkingOn:            state.WorkingOn,
		Achieved:             state.Achieved,
		Remaining:            state.Remaining,
		OverallDone:          state.OverallDone,
		OverallTotal:         state.OverallTotal,
		OverallProgress:      overallProgress,
		StageDone:            state.StageDone,
		StageTotal:           state.StageTotal,
		StageProgress:        stageProgress,
		RunElapsed:           runElapsed,
		StageElapsed:         stageElapsed,
		RateUnitsPerSec:      totalRate,
		StageRateUnitsPerSec: stageRate,
	}

	if remaining := state.OverallTotal - state.OverallDone; remaining > 0 && totalRate > 1e-9 {
		snap.ETATotal = time.Duration(remaining/totalRate) * time.Second
		snap.ETATotalKnown = true
	}
	if remaining := state.StageTotal - state.StageDone; remaining > 0 && stageRate > 1e-9 {
		snap.ETAStage = time.Duration(remaining/stageRate) * time.Second
		snap.ETAStageKnown = true
	}

	if lt.sampler != nil {
		reading := lt.sampler.Read()
		snap.SystemCPUPercent = reading.SystemCPUPercent
		snap.ProcessCPUPercent = reading.ProcessCPUPercent
		snap.RAMUsedBytes = reading.RAMUsedBytes
		snap.RAMTotalBytes = reading.RAMTotalBytes
		snap.RAMPercent = reading.RAMPercent
		snap.CPUTempCelsius = reading.CPUTempCelsius
	}

	return snap
}

func (lt *LiveTelemetry) emit(snap Snapshot) {
	if lt.observers != nil {
		lt.observers.NotifyTelemetry(lt.runID, snap)
	}
}
