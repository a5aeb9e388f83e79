package wsfeed

import (
	"time"

	"github.com/arrowlake/numerion/internal/telemetry"
)

// Observer adapts a Hub into a telemetry.RunObserver, pushing every
// lifecycle notification and telemetry snapshot to subscribed clients.
type Observer struct {
	hub *Hub
}

// NewObserver wires hub as a telemetry.RunObserver.
func NewObserver(hub *Hub) *Observer {
	return &Observer{hub: hub}
}

func (o *Observer) OnRunStarted(runID string) {
	o.hub.Broadcast(runID, NewEvent(EventRunStarted, runID))
}

func (o *Observer) OnRunCompleted(runID string, duration time.Duration) {
	e := NewEvent(EventRunCompleted, runID)
	e.DurationMs = duration.Milliseconds()
	o.hub.Broadcast(runID, e)
}

func (o *Observer) OnRunFailed(runID string, err error, duration time.Duration) {
	e := NewEvent(EventRunFailed, runID)
	e.DurationMs = duration.Milliseconds()
	if err != nil {
		e.Error = err.Error()
	}
	o.hub.Broadcast(runID, e)
}

func (o *Observer) OnStageStarted(runID, stage string) {
	e := NewEvent(EventStageStarted, runID)
	e.Stage = stage
	o.hub.Broadcast(runID, e)
}

func (o *Observer) OnStageCompleted(runID, stage string, duration time.Duration) {
	e := NewEvent(EventStageCompleted, runID)
	e.Stage = stage
	e.DurationMs = duration.Milliseconds()
	o.hub.Broadcast(runID, e)
}

func (o *Observer) OnStageFailed(runID, stage string, err error) {
	e := NewEvent(EventStageFailed, runID)
	e.Stage = stage
	if err != nil {
		e.Error = err.Error()
	}
	o.hub.Broadcast(runID, e)
}

func (o *Observer) OnTelemetry(runID string, snapshot telemetry.Snapshot) {
	e := NewEvent(EventTelemetry, runID)
	e.Stage = snapshot.Stage
	e.Telemetry = snapshot
	o.hub.Broadcast(runID, e)
}

var _ telemetry.RunObserver = (*Observer)(nil)
