package numerion

import "github.com/arrowlake/numerion/internal/domain"

// Re-export the run configuration envelopes for public use, so callers
// never need to import internal/domain directly.
type (
	RunConfig          = domain.RunConfig
	GameTrainingConfig = domain.GameTrainingConfig
	HorizonConfig      = domain.HorizonConfig
	CVConfig           = domain.CVConfig
	SearchConfig       = domain.SearchConfig
	BacktestConfig     = domain.BacktestConfig
	ResultSummary      = domain.ResultSummary
	RunStatus          = domain.RunStatus
	RunStage           = domain.RunStage
)

// Re-export the run status constants.
const (
	RunStatusQueued    = domain.RunStatusQueued
	RunStatusRunning   = domain.RunStatusRunning
	RunStatusCompleted = domain.RunStatusCompleted
	RunStatusFailed    = domain.RunStatusFailed
	RunStatusCanceled  = domain.RunStatusCanceled
)
