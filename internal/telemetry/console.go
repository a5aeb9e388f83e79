package telemetry

import (
	"time"

	"github.com/rs/zerolog"
)

// ConsoleObserver logs run/stage transitions and telemetry snapshots
// through a zerolog.Logger, the structured-event analogue of the
// teacher's ConsoleLogger for this module's run/stage domain.
type ConsoleObserver struct {
	NoopObserver
	log     zerolog.Logger
	verbose bool
}

// NewConsoleObserver creates an observer writing to log. verbose also
// emits one line per telemetry tick; otherwise only lifecycle and
// stage transitions are logged.
func NewConsoleObserver(log zerolog.Logger, verbose bool) *ConsoleObserver {
	return &ConsoleObserver{log: log.With().Str("component", "telemetry").Logger(), verbose: verbose}
}

func (c *ConsoleObserver) OnRunStarted(runID string) {
	c.log.Info().Str("run_id", runID).Msg("run started")
}

func (c *ConsoleObserver) OnRunCompleted(runID string, duration time.Duration) {
	c.log.Info().Str("run_id", runID).Dur("duration", duration).Msg("run completed")
}

func (c *ConsoleObserver) OnRunFailed(runID string, err error, duration time.Duration) {
	c.log.Error().Str("run_id", runID).Dur("duration", duration).Err(err).Msg("run failed")
}

func (c *ConsoleObserver) OnStageStarted(runID, stage string) {
	c.log.Info().Str("run_id", runID).Str("stage", stage).Msg("stage started")
}

func (c *ConsoleObserver) OnStageCompleted(runID, stage string, duration time.Duration) {
	c.log.Info().Str("run_id", runID).Str("stage", stage).Dur("duration", duration).Msg("stage completed")
}

func (c *ConsoleObserver) OnStageFailed(runID, stage string, err error) {
	c.log.Error().Str("run_id", runID).Str("stage", stage).Err(err).Msg("stage failed")
}

func (c *ConsoleObserver) OnTelemetry(runID string, snap Snapshot) {
	if !c.verbose {
		return
	}
	c.log.Debug().
		Str("run_id", runID).
		Str("stage", snap.Stage).
		Str("working_on", snap.WorkingOn).
		Str("overall_bar", progressBar(snap.OverallProgress, 24)).
		Float64("overall_pct", snap.OverallProgress*100).
		Str("overall_eta", formatDuration(snap.ETATotal, snap.ETATotalKnown)).
		Str("stage_eta", formatDuration(snap.ETAStage, snap.ETAStageKnown)).
		Float64("rate_units_per_sec", snap.RateUnitsPerSec).
		Float64("cpu_system_pct", snap.SystemCPUPercent).
		Float64("cpu_process_pct", snap.ProcessCPUPercent).
		Float64("ram_pct", snap.RAMPercent).
		Str("cpu_temp", formatTemp(snap.CPUTempCelsius)).
		Msg("telemetry")
}

var _ RunObserver = (*ConsoleObserver)(nil)
