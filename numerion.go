// Package numerion is the public facade over the numerical discovery
// core: the indicator-search funnel and the game-training loop, each
// dispatched onto its own bounded worker pool and reporting through a
// shared run store, artifact store, and telemetry observer set.
package numerion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arrowlake/numerion/internal/artifacts"
	"github.com/arrowlake/numerion/internal/backtest"
	"github.com/arrowlake/numerion/internal/config"
	"github.com/arrowlake/numerion/internal/domain"
	"github.com/arrowlake/numerion/internal/games"
	"github.com/arrowlake/numerion/internal/marketdata"
	"github.com/arrowlake/numerion/internal/mcts"
	"github.com/arrowlake/numerion/internal/orchestrator"
	"github.com/arrowlake/numerion/internal/ranking"
	"github.com/arrowlake/numerion/internal/registry"
	"github.com/arrowlake/numerion/internal/search"
	"github.com/arrowlake/numerion/internal/store"
	"github.com/arrowlake/numerion/internal/telemetry"
	"github.com/arrowlake/numerion/internal/telemetry/wsfeed"
	"github.com/arrowlake/numerion/internal/trainer"
)

const defaultCPuct = 1.5
const defaultQuoteAsset = "USDT"
const defaultLookbackDays = 90

// Service is the single in-process entry point onto both pipelines this
// module coordinates. Research runs (indicator search, game training)
// dispatch onto a small long-job pool; on-demand AI moves dispatch onto
// a separate, smaller pool sized for interactive latency.
type Service struct {
	cfg    *config.Config
	store  *store.Store
	arts   *artifacts.Store
	market *marketdata.Client

	research *orchestrator.RunManager
	aiMove   *orchestrator.RunManager

	observers *telemetry.ObserverManager
	sampler   *telemetry.Sampler
	feedHub   *wsfeed.Hub

	gameSet    map[string]games.Game
	registry   *registry.ModelRegistry
	trainerMgr *trainer.Manager
}

// NewService wires a Service from a loaded Config, an open run store, and
// an artifact store. The game model registry is seeded from
// cfg.RunsDir/models immediately, so the first training or AI-move
// request doesn't pay checkpoint-load latency.
func NewService(cfg *config.Config, st *store.Store, arts *artifacts.Store) (*Service, error) {
	gameSet := games.BuildGames()
	modelDir := cfg.RunsDir + "/models"
	reg, err := registry.NewModelRegistry(modelDir, gameSet, rand.New(rand.NewSource(cfg.Defaults.RandomSeed)))
	if err != nil {
		return nil, fmt.Errorf("numerion: building model registry: %w", err)
	}

	hub := wsfeed.NewHub(nil)
	go hub.Run()

	svc := &Service{
		cfg:   cfg,
		store: st,
		arts:  arts,
		market: marketdata.NewClient(marketdata.ClientConfig{
			BaseURL: cfg.BinanceBaseURL,
			Timeout: time.Duration(cfg.BinanceTimeoutSecs) * time.Second,
		}),
		research:   orchestrator.NewRunManager(int64(cfg.ResearchPoolSize)),
		aiMove:     orchestrator.NewRunManager(int64(cfg.AIMovePoolSize)),
		observers:  telemetry.NewObserverManager(),
		sampler:    telemetry.NewSampler(),
		feedHub:    hub,
		gameSet:    gameSet,
		registry:   reg,
		trainerMgr: trainer.NewManager(reg, gameSet, modelDir),
	}
	svc.observers.AddObserver(wsfeed.NewObserver(hub))
	return svc, nil
}

// FeedHandler returns an http.Handler that upgrades incoming requests to
// websocket sessions streaming this service's run/stage/telemetry events,
// wired to CancelRun so a subscriber can request a run cancellation.
func (s *Service) FeedHandler() http.Handler {
	return wsfeed.NewHandler(s.feedHub, s, nil)
}

// AddObserver registers o to receive every run/stage/telemetry
// notification across both pipelines.
func (s *Service) AddObserver(o telemetry.RunObserver) { s.observers.AddObserver(o) }

// NewRunID mints a fresh, globally-unique run identifier.
func NewRunID() string { return uuid.New().String() }

// CancelRun cancels an active research run.
func (s *Service) CancelRun(runID string) bool { return s.research.Cancel(runID) }

// Cancel implements wsfeed.Canceler, letting a connected feed session
// request cancellation of the run it's subscribed to.
func (s *Service) Cancel(runID string) bool { return s.CancelRun(runID) }

// RunLogs returns runID's persisted stage log lines in append order.
func (s *Service) RunLogs(ctx context.Context, runID string) ([]store.RunLogModel, error) {
	return s.store.ListRunLogs(ctx, runID)
}

// RunStatus returns runID's persisted status row.
func (s *Service) RunStatus(ctx context.Context, runID string) (*store.RunModel, error) {
	return s.store.GetRun(ctx, runID)
}

// SubmitIndicatorSearchRun validates cfg, persists the queued run row, and
// dispatches the four-stage indicator-search funnel across every
// requested symbol/timeframe pair onto the research pool.
func (s *Service) SubmitIndicatorSearchRun(ctx context.Context, runID string, cfg domain.RunConfig) (context.CancelFunc, <-chan error, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, domain.NewRunError(runID, "", domain.KindInvalidConfig, err.Error(), err)
	}

	configJSON, err := toJSONMap(cfg)
	if err != nil {
		return nil, nil, err
	}
	now := time.Now().UTC()
	if err := s.store.UpsertRun(ctx, &store.RunModel{
		RunID: runID, Status: string(domain.RunStatusQueued), Stage: string(domain.StageIngest),
		CreatedAt: now, UpdatedAt: now, ConfigJSON: configJSON, ConfigHash: configHash(configJSON),
	}); err != nil {
		return nil, nil, fmt.Errorf("numerion: persisting queued run: %w", err)
	}

	return s.research.Submit(ctx, runID, s.indicatorSearchWork(runID, cfg))
}

// ResumeIndicatorSearchRun re-submits runID's most recently persisted
// config, failing fast if runID is still active or was never submitted.
func (s *Service) ResumeIndicatorSearchRun(ctx context.Context, runID string) (context.CancelFunc, <-chan error, error) {
	row, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("numerion: resuming %s: %w", runID, err)
	}
	if !domain.RunStatus(row.Status).CanResume() {
		return nil, nil, domain.NewRunError(runID, row.Stage, domain.KindInvalidConfig,
			fmt.Sprintf("run in status %q cannot be resumed", row.Status), nil)
	}
	var cfg domain.RunConfig
	encoded, err := json.Marshal(row.ConfigJSON)
	if err != nil {
		return nil, nil, err
	}
	if err := json.Unmarshal(encoded, &cfg); err != nil {
		return nil, nil, fmt.Errorf("numerion: decoding stored config for %s: %w", runID, err)
	}
	return s.research.Resume(ctx, runID, s.indicatorSearchWork(runID, cfg))
}

func (s *Service) indicatorSearchWork(runID string, cfg domain.RunConfig) orchestrator.Work {
	return func(ctx context.Context, log *orchestrator.StageLog) error {
		lt := telemetry.NewLiveTelemetry(runID, s.observers, s.sampler, 0)
		lt.Start()
		defer lt.Stop()

		start := time.Now()
		s.observers.NotifyRunStarted(runID)
		s.transition(ctx, runID, domain.RunStatusRunning, domain.StageIngest, 0)

		type job struct{ symbol, timeframe string }

		symbols := cfg.Symbols
		if len(symbols) == 0 {
			fetched, err := s.market.FetchTopVolumeSymbols(ctx, cfg.TopNSymbols, defaultQuoteAsset)
			if err != nil {
				return s.failRun(ctx, runID, domain.StageIngest, domain.KindUpstreamFetch, err, start)
			}
			symbols = fetched
		}

		var jobs []job
		for _, sym := range symbols {
			for _, tf := range cfg.Timeframes {
				jobs = append(jobs, job{sym, tf})
			}
		}
		if len(jobs) == 0 {
			return s.failRun(ctx, runID, domain.StageIngest, domain.KindInvalidConfig,
				fmt.Errorf("no symbol/timeframe pairs to search"), start)
		}

		profile := domain.ScaleBudget(cfg.BudgetMinutes, len(jobs), cfg.Search)
		log.Append(string(domain.StageIngest), profile.Message)
		scaledCfg := cfg
		scaledCfg.Search.CandidatePoolSize = profile.CandidatePoolSize
		scaledCfg.Search.TuningTrials = profile.TuningTrials

		lookbackDays := maxHistoryWindow(cfg.HistoryWindows, defaultLookbackDays)

		var (
			mu        sync.Mutex
			outcomes  = make([]search.Outcome, 0, len(jobs))
			backtests = make(map[ranking.AssetKey]backtest.Result, len(jobs))
			completed int
		)
		total := float64(len(jobs))

		err := orchestrator.FanOut(ctx, s.cfg.ResearchPoolSize, jobs, func(ctx context.Context, j job) error {
			klines, err := s.market.FetchLookbackKlines(ctx, j.symbol, j.timeframe, lookbackDays, time.Now())
			if err != nil {
				return domain.NewRunError(runID, string(domain.StageIngest), domain.KindUpstreamFetch, err.Error(), err)
			}
			if _, err := s.arts.SaveBars(runID, j.symbol, j.timeframe, klines); err != nil {
				return err
			}

			outcome, err := search.Run(barsFromKlines(klines), j.symbol, j.timeframe, scaledCfg, nil, "")
			if err != nil {
				return err
			}
			debugPath, err := s.arts.DebugPath(runID, j.symbol, j.timeframe)
			if err != nil {
				return err
			}
			if err := s.arts.SaveJSON(debugPath, outcome); err != nil {
				return err
			}

			bt := backtest.RunFromForecasts(
				outcome.ComboScore.YTrue, outcome.ComboScore.YPred, outcome.ComboScore.CloseRef,
				cfg.Backtest.FeeBps, cfg.Backtest.SlippageBps, cfg.Backtest.SignalThreshold,
			)

			mu.Lock()
			outcomes = append(outcomes, outcome)
			backtests[ranking.AssetKey{Symbol: j.symbol, Timeframe: j.timeframe}] = bt
			completed++
			lt.Update(telemetry.State{
				Stage:        string(domain.StageComboD),
				WorkingOn:    j.symbol + "/" + j.timeframe,
				Achieved:     fmt.Sprintf("%d/%d", completed, len(jobs)),
				Remaining:    fmt.Sprintf("%d", len(jobs)-completed),
				OverallDone:  float64(completed),
				OverallTotal: total,
				StageDone:    float64(completed),
				StageTotal:   total,
			})
			mu.Unlock()

			_ = s.store.AppendRunLog(ctx, &store.RunLogModel{
				RunID: runID, Timestamp: time.Now().UTC(), Stage: string(domain.StageComboD),
				Message: fmt.Sprintf("%s/%s funnel complete", j.symbol, j.timeframe),
			})
			return nil
		})
		if err != nil {
			return s.failRun(ctx, runID, domain.StageComboD, domain.KindInternal, err, start)
		}

		s.transition(ctx, runID, domain.RunStatusRunning, domain.StageRank, 0.9)
		log.Append(string(domain.StageRank), "ranking per-asset recommendations")

		summary, err := ranking.BuildResultSummary(runID, outcomes, backtests)
		if err != nil {
			return s.failRun(ctx, runID, domain.StageRank, domain.KindEvaluationDegenerate, err, start)
		}

		resultPath, err := s.arts.ResultSummaryPath(runID)
		if err != nil {
			return err
		}
		if err := s.arts.SaveJSON(resultPath, summary); err != nil {
			return err
		}
		resultJSON, err := toJSONMap(summary)
		if err != nil {
			return err
		}
		if err := s.store.UpsertRunResult(ctx, &store.RunResultModel{
			RunID: runID, ResultJSON: resultJSON, UpdatedAt: time.Now().UTC(),
		}); err != nil {
			return err
		}

		s.transition(ctx, runID, domain.RunStatusCompleted, domain.StageRank, 1)
		s.observers.NotifyRunCompleted(runID, time.Since(start))
		return nil
	}
}

// SubmitGameTrainingRun validates cfg, persists the queued run row, and
// dispatches the self-play -> train -> arena loop onto the research pool.
// The loop runs until ctx is cancelled.
func (s *Service) SubmitGameTrainingRun(ctx context.Context, runID string, cfg domain.GameTrainingConfig) (context.CancelFunc, <-chan error, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, domain.NewRunError(runID, "", domain.KindInvalidConfig, err.Error(), err)
	}

	configJSON, err := toJSONMap(cfg)
	if err != nil {
		return nil, nil, err
	}
	now := time.Now().UTC()
	if err := s.store.UpsertRun(ctx, &store.RunModel{
		RunID: runID, Status: string(domain.RunStatusQueued), Stage: string(domain.StageSeed),
		CreatedAt: now, UpdatedAt: now, ConfigJSON: configJSON, ConfigHash: configHash(configJSON),
	}); err != nil {
		return nil, nil, fmt.Errorf("numerion: persisting queued run: %w", err)
	}

	return s.research.Submit(ctx, runID, s.gameTrainingWork(runID, cfg))
}

func (s *Service) gameTrainingWork(runID string, cfg domain.GameTrainingConfig) orchestrator.Work {
	return func(ctx context.Context, log *orchestrator.StageLog) error {
		lt := telemetry.NewLiveTelemetry(runID, s.observers, s.sampler, 0)
		lt.Start()
		defer lt.Stop()

		start := time.Now()
		s.observers.NotifyRunStarted(runID)
		s.transition(ctx, runID, domain.RunStatusRunning, domain.StageSelfPlay, 0)
		log.Append(string(domain.StageSeed), "seeding replay buffers")

		trainerCfg := trainer.Config{
			GameIDs:               cfg.GameIDs,
			SelfplayGamesPerCycle: cfg.SelfplayGamesPerCycle,
			TrainStepsPerCycle:    cfg.TrainStepsPerCycle,
			BatchSize:             cfg.BatchSize,
			ReplayCapacity:        cfg.ReplayCapacity,
			PromotionInterval:     cfg.PromotionInterval,
			PromotionGames:        cfg.PromotionGames,
			PromotionThreshold:    cfg.PromotionThreshold,
			LearningRate:          cfg.LearningRate,
		}
		rng := rand.New(rand.NewSource(cfg.RandomSeed))

		if err := s.trainerMgr.Run(ctx, trainerCfg, rng); err != nil {
			if ctx.Err() != nil {
				s.transition(ctx, runID, domain.RunStatusCanceled, domain.StageArena, 1)
				s.observers.NotifyRunFailed(runID, ctx.Err(), time.Since(start))
				return nil
			}
			return s.failRun(ctx, runID, domain.StageTrain, domain.KindInternal, err, start)
		}

		status := s.trainerMgr.Status()
		statusJSON, err := toJSONMap(status)
		if err != nil {
			return err
		}
		if err := s.store.UpsertRunResult(ctx, &store.RunResultModel{
			RunID: runID, ResultJSON: statusJSON, UpdatedAt: time.Now().UTC(),
		}); err != nil {
			return err
		}

		s.transition(ctx, runID, domain.RunStatusCompleted, domain.StageArena, 1)
		s.observers.NotifyRunCompleted(runID, time.Since(start))
		return nil
	}
}

type aiMoveResult struct {
	action   int
	analysis mcts.Analysis
	err      error
}

// RequestAIMove runs sims simulations of PUCT search from state on behalf
// of an interactive session, dispatched onto the small AI-move pool so no
// single slow session starves another. Model inference is already
// serialised per game by the registry's own lock.
func (s *Service) RequestAIMove(ctx context.Context, gameID string, state games.State, sims int, rng *rand.Rand) (int, mcts.Analysis, error) {
	game, err := s.registry.Game(gameID)
	if err != nil {
		return 0, mcts.Analysis{}, err
	}

	evaluate := func(st games.State) ([]float64, float64, []float64) {
		logits, value, latent, _ := s.registry.Evaluate(gameID, st)
		return logits, value, latent
	}

	results := make(chan aiMoveResult, 1)
	moveID := NewRunID()
	_, done, err := s.aiMove.Submit(ctx, moveID, func(ctx context.Context, _ *orchestrator.StageLog) error {
		action, _, analysis, runErr := mcts.Run(game, state, evaluate, sims, defaultCPuct, 1, 0.25, 0, nil, rng)
		results <- aiMoveResult{action: action, analysis: analysis, err: runErr}
		return runErr
	})
	if err != nil {
		return 0, mcts.Analysis{}, err
	}

	select {
	case <-ctx.Done():
		return 0, mcts.Analysis{}, ctx.Err()
	case <-done:
	}
	res := <-results
	return res.action, res.analysis, res.err
}

func (s *Service) transition(ctx context.Context, runID string, status domain.RunStatus, stage domain.RunStage, progress float64) {
	row, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return
	}
	row.Status = string(status)
	row.Stage = string(stage)
	row.Progress = progress
	row.UpdatedAt = time.Now().UTC()
	_ = s.store.UpsertRun(ctx, row)
}

func (s *Service) failRun(ctx context.Context, runID string, stage domain.RunStage, kind domain.ErrorKind, cause error, start time.Time) error {
	runErr := domain.NewRunError(runID, string(stage), kind, cause.Error(), cause)
	row, err := s.store.GetRun(ctx, runID)
	if err == nil {
		row.Status = string(domain.RunStatusFailed)
		row.Stage = string(stage)
		row.Error = runErr.Error()
		row.UpdatedAt = time.Now().UTC()
		_ = s.store.UpsertRun(ctx, row)
	}
	_ = s.store.AppendRunLog(ctx, &store.RunLogModel{
		RunID: runID, Timestamp: time.Now().UTC(), Stage: string(stage), Message: runErr.Error(),
	})
	s.observers.NotifyRunFailed(runID, runErr, time.Since(start))
	return runErr
}

// barsFromKlines converts Binance-shaped klines into the domain's bar
// series, the unit the expression DSL and cross-validation machinery
// operate on.
func barsFromKlines(klines []marketdata.Kline) []domain.Bar {
	bars := make([]domain.Bar, len(klines))
	for i, k := range klines {
		bars[i] = domain.Bar{
			OpenTime: time.UnixMilli(k.OpenTimeMs).UTC(),
			Open:     k.Open,
			High:     k.High,
			Low:      k.Low,
			Close:    k.Close,
			Volume:   k.Volume,
		}
	}
	return bars
}

func maxHistoryWindow(windows []int, fallback int) int {
	best := fallback
	for _, w := range windows {
		if w > best {
			best = w
		}
	}
	return best
}

func toJSONMap(v any) (map[string]any, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("numerion: marshaling %T: %w", v, err)
	}
	out := make(map[string]any)
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil, fmt.Errorf("numerion: unmarshaling %T: %w", v, err)
	}
	return out, nil
}

func configHash(configJSON map[string]any) string {
	encoded, err := json.Marshal(configJSON)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}
