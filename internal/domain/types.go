package domain

import "fmt"

// RunKind distinguishes the two pipelines this module can orchestrate.
type RunKind string

const (
	RunKindIndicatorSearch RunKind = "indicator_search"
	RunKindGameTraining    RunKind = "game_training"
)

// RunStatus is the lifecycle state of a Run, persisted verbatim to the run store.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCanceled  RunStatus = "canceled"
)

// CanResume reports whether a run in this status may be re-queued.
func (s RunStatus) CanResume() bool {
	return s == RunStatusFailed || s == RunStatusCanceled
}

// RunStage names a stage within a run's pipeline. Indicator-search runs move through
// Ingest->ScreenA->RefineB->MutateC->ComboD->Backtest->Rank; game-training runs move
// through Seed->SelfPlay->Train->Arena, repeated per iteration.
type RunStage string

const (
	StageIngest    RunStage = "ingest"
	StageScreenA   RunStage = "screen_a"
	StageRefineB   RunStage = "refine_b"
	StageMutateC   RunStage = "mutate_c"
	StageComboD    RunStage = "combo_d"
	StageBacktest  RunStage = "backtest"
	StageRank      RunStage = "rank"
	StageSeed      RunStage = "seed"
	StageSelfPlay  RunStage = "self_play"
	StageTrain     RunStage = "train"
	StageArena     RunStage = "arena"
)

// HorizonConfig bounds the forecast horizons (in bars) a search will evaluate.
// CoarseStep governs the initial sweep spacing, RefineRadius the local search
// width around the best coarse horizon found.
type HorizonConfig struct {
	Min          int `json:"min_bar"`
	Max          int `json:"max_bar"`
	CoarseStep   int `json:"coarse_step"`
	RefineRadius int `json:"refine_radius"`
}

func (h HorizonConfig) Validate() error {
	if h.Min <= 0 || h.Max <= 0 || h.CoarseStep <= 0 {
		return NewValidationError("horizon", "min_bar, max_bar and coarse_step must be positive")
	}
	if h.Min > h.Max {
		return NewValidationError("horizon", "min_bar must not exceed max_bar")
	}
	if h.RefineRadius < 0 {
		return NewValidationError("horizon", "refine_radius must be non-negative")
	}
	return nil
}

// CVConfig configures purged walk-forward cross-validation.
type CVConfig struct {
	Folds        int `json:"folds"`
	PurgeBars    int `json:"purge_bars"`
	EmbargoBars  int `json:"embargo_bars"`
}

func (c CVConfig) Validate() error {
	if c.Folds < 2 {
		return NewValidationError("cv.folds", "at least 2 folds are required")
	}
	if c.PurgeBars < 0 || c.EmbargoBars < 0 {
		return NewValidationError("cv", "purge_bars and embargo_bars must be non-negative")
	}
	return nil
}

// SearchConfig bounds the indicator-search funnel: candidate pool generation,
// the stage A/B keep counts, stage C mutation trial budget, the maximum
// greedy-combo size, and the novelty/collinearity acceptance thresholds.
type SearchConfig struct {
	CandidatePoolSize          int     `json:"candidate_pool_size"`
	StageAKeep                 int     `json:"stage_a_keep"`
	StageBKeep                 int     `json:"stage_b_keep"`
	TuningTrials               int     `json:"tuning_trials"`
	MaxComboSize               int     `json:"max_combo_size"`
	NoveltySimilarityThreshold float64 `json:"novelty_similarity_threshold"`
	CollinearityThreshold      float64 `json:"collinearity_threshold"`
}

func (s SearchConfig) Validate() error {
	if s.CandidatePoolSize <= 0 {
		return NewValidationError("search.candidate_pool_size", "must be positive")
	}
	if s.StageAKeep <= 0 || s.StageBKeep <= 0 {
		return NewValidationError("search.stage_keep", "stage_a_keep and stage_b_keep must be positive")
	}
	if s.StageBKeep > s.StageAKeep {
		return NewValidationError("search.stage_b_keep", "must not exceed stage_a_keep")
	}
	if s.MaxComboSize <= 0 {
		return NewValidationError("search.max_combo_size", "must be positive")
	}
	return nil
}

// BacktestConfig configures the signal backtest.
type BacktestConfig struct {
	FeeBps          float64 `json:"fee_bps"`
	SlippageBps     float64 `json:"slippage_bps"`
	SignalThreshold float64 `json:"signal_threshold"`
}

// RunConfig is the full configuration envelope accepted when creating an
// indicator-search run, mirroring the original's RunCreate/RunConfig schema.
type RunConfig struct {
	TopNSymbols    int            `json:"top_n_symbols"`
	Symbols        []string       `json:"symbols"`
	Timeframes     []string       `json:"timeframes"`
	HistoryWindows []int          `json:"history_windows"`
	Horizon        HorizonConfig  `json:"horizon"`
	CV             CVConfig       `json:"cv"`
	Search         SearchConfig   `json:"search"`
	Backtest       BacktestConfig `json:"backtest"`
	BudgetMinutes  float64        `json:"budget_minutes"`
	RandomSeed     int64          `json:"random_seed"`
}

// SupportedTimeframes is the closed set of timeframes a RunConfig may request.
var SupportedTimeframes = map[string]bool{"5m": true, "1h": true, "4h": true}

// Validate enforces the envelope's invariants, returning a *ValidationError (wrapped
// by the caller into a KindInvalidConfig *RunError) on the first violation found.
func (c RunConfig) Validate() error {
	if c.TopNSymbols < 1 || c.TopNSymbols > 40 {
		return NewValidationError("top_n_symbols", "must be between 1 and 40")
	}
	if len(c.Timeframes) == 0 {
		return NewValidationError("timeframes", "at least one timeframe is required")
	}
	for _, tf := range c.Timeframes {
		if !SupportedTimeframes[tf] {
			return NewValidationError("timeframes", fmt.Sprintf("unsupported timeframe %q", tf))
		}
	}
	if err := c.Horizon.Validate(); err != nil {
		return err
	}
	if err := c.CV.Validate(); err != nil {
		return err
	}
	if err := c.Search.Validate(); err != nil {
		return err
	}
	if c.BudgetMinutes < 5 || c.BudgetMinutes > 480 {
		return NewValidationError("budget_minutes", "must be between 5 and 480")
	}
	if c.RandomSeed < 1 || c.RandomSeed > 1_000_000 {
		return NewValidationError("random_seed", "must be between 1 and 1000000")
	}
	return nil
}

// GameTrainingConfig is the configuration envelope accepted when creating a
// game-training run: which games to train, the self-play/train/arena cycle
// shape, and the promotion gate.
type GameTrainingConfig struct {
	GameIDs               []string `json:"game_ids"`
	SelfplayGamesPerCycle int      `json:"selfplay_games_per_cycle"`
	TrainStepsPerCycle    int      `json:"train_steps_per_cycle"`
	BatchSize             int      `json:"batch_size"`
	ReplayCapacity        int      `json:"replay_capacity"`
	PromotionInterval     int      `json:"promotion_interval"`
	PromotionGames        int      `json:"promotion_games"`
	PromotionThreshold    float64  `json:"promotion_threshold"`
	LearningRate          float64  `json:"learning_rate"`
	RandomSeed            int64    `json:"random_seed"`
}

// SupportedGameIDs is the closed set of games a GameTrainingConfig may name.
var SupportedGameIDs = map[string]bool{"tictactoe": true, "connect4": true, "othello": true}

// Validate enforces the envelope's invariants.
func (c GameTrainingConfig) Validate() error {
	if len(c.GameIDs) == 0 {
		return NewValidationError("game_ids", "at least one game is required")
	}
	for _, id := range c.GameIDs {
		if !SupportedGameIDs[id] {
			return NewValidationError("game_ids", fmt.Sprintf("unsupported game %q", id))
		}
	}
	if c.SelfplayGamesPerCycle <= 0 || c.TrainStepsPerCycle <= 0 || c.BatchSize <= 0 {
		return NewValidationError("game_training", "selfplay_games_per_cycle, train_steps_per_cycle and batch_size must be positive")
	}
	if c.PromotionThreshold <= 0 || c.PromotionThreshold > 1 {
		return NewValidationError("promotion_threshold", "must be in (0, 1]")
	}
	if c.RandomSeed < 1 || c.RandomSeed > 1_000_000 {
		return NewValidationError("random_seed", "must be between 1 and 1000000")
	}
	return nil
}

// EffectiveProfile is the scaled configuration an orchestrator derives from a
// RunConfig's budget before executing, per DESIGN.md's budget-scaler note.
type EffectiveProfile struct {
	Scale             float64
	CandidatePoolSize int
	TuningTrials      int
	Message           string
}

// ScaleBudget derives an EffectiveProfile from the total per-job budget, spread
// across the number of asset/timeframe pairs in the run. The clamp bounds and the
// division constant are carried unexplained from the original implementation.
func ScaleBudget(budgetMinutes float64, jobCount int, base SearchConfig) EffectiveProfile {
	if jobCount < 1 {
		jobCount = 1
	}
	budgetPerJob := budgetMinutes / float64(jobCount)
	scale := budgetPerJob / 4.0
	if scale < 0.35 {
		scale = 0.35
	}
	if scale > 1.4 {
		scale = 1.4
	}
	pool := scaledInt(base.CandidatePoolSize, scale)
	trials := scaledInt(base.TuningTrials, scale)
	return EffectiveProfile{
		Scale:             scale,
		CandidatePoolSize: pool,
		TuningTrials:      trials,
		Message:           fmt.Sprintf("scaled search profile by %.2fx (budget %.1fm over %d jobs)", scale, budgetMinutes, jobCount),
	}
}

func scaledInt(base int, scale float64) int {
	v := int(float64(base) * scale)
	if v < 1 {
		v = 1
	}
	return v
}
