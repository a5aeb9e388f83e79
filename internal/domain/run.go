package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run is an aggregate root representing one research or training run.
// It owns its stage log (an append-only record of stage transitions) and
// enforces the status transitions implemented by its Start, Complete,
// Fail, Cancel and Resume methods.
type Run interface {
	ID() uuid.UUID
	Kind() RunKind
	Status() RunStatus
	CreatedAt() time.Time
	UpdatedAt() time.Time

	Start() error
	Complete() error
	Fail(cause error) error
	Cancel() error
	Resume() error

	AppendStageLog(stage RunStage, message string) StageLogEntry
	StageLog() []StageLogEntry
}

// StageLogEntry is one append-only line in a run's stage log.
type StageLogEntry struct {
	Stage     RunStage
	Message   string
	Timestamp time.Time
}

type run struct {
	id        uuid.UUID
	kind      RunKind
	status    RunStatus
	createdAt time.Time
	updatedAt time.Time
	stageLog  []StageLogEntry
}

// NewRun creates a new Run in the queued state.
func NewRun(kind RunKind) Run {
	now := time.Now()
	return &run{
		id:        uuid.New(),
		kind:      kind,
		status:    RunStatusQueued,
		createdAt: now,
		updatedAt: now,
	}
}

// ReconstructRun rebuilds a Run from persisted state.
func ReconstructRun(id uuid.UUID, kind RunKind, status RunStatus, createdAt, updatedAt time.Time, stageLog []StageLogEntry) Run {
	return &run{id: id, kind: kind, status: status, createdAt: createdAt, updatedAt: updatedAt, stageLog: stageLog}
}

func (r *run) ID() uuid.UUID        { return r.id }
func (r *run) Kind() RunKind        { return r.kind }
func (r *run) Status() RunStatus    { return r.status }
func (r *run) CreatedAt() time.Time { return r.createdAt }
func (r *run) UpdatedAt() time.Time { return r.updatedAt }

func (r *run) transition(to RunStatus, allowedFrom ...RunStatus) error {
	for _, from := range allowedFrom {
		if r.status == from {
			r.status = to
			r.updatedAt = time.Now()
			return nil
		}
	}
	return NewRunError(r.id.String(), "", KindInternal,
		fmt.Sprintf("invalid transition from %s to %s", r.status, to), nil)
}

func (r *run) Start() error {
	return r.transition(RunStatusRunning, RunStatusQueued)
}

func (r *run) Complete() error {
	return r.transition(RunStatusCompleted, RunStatusRunning)
}

func (r *run) Fail(cause error) error {
	if err := r.transition(RunStatusFailed, RunStatusRunning, RunStatusQueued); err != nil {
		return err
	}
	r.AppendStageLog("", fmt.Sprintf("failed: %v", cause))
	return nil
}

func (r *run) Cancel() error {
	return r.transition(RunStatusCanceled, RunStatusRunning, RunStatusQueued)
}

func (r *run) Resume() error {
	if !r.status.CanResume() {
		return NewRunError(r.id.String(), "", KindInternal,
			fmt.Sprintf("run in status %s cannot be resumed", r.status), nil)
	}
	r.status = RunStatusQueued
	r.updatedAt = time.Now()
	return nil
}

func (r *run) AppendStageLog(stage RunStage, message string) StageLogEntry {
	entry := StageLogEntry{Stage: stage, Message: message, Timestamp: time.Now()}
	r.stageLog = append(r.stageLog, entry)
	r.updatedAt = entry.Timestamp
	return entry
}

func (r *run) StageLog() []StageLogEntry {
	out := make([]StageLogEntry, len(r.stageLog))
	copy(out, r.stageLog)
	return out
}
