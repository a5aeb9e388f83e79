// Package trainer runs the self-play → train → arena cycle described for
// each board game: clone the registry incumbent, play games against it,
// take gradient steps against the accumulated replay buffer, and
// periodically gate promotion of the trained candidate through an arena
// match against a fresh clone of the incumbent.
package trainer

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/arrowlake/numerion/internal/games"
	"github.com/arrowlake/numerion/internal/mcts"
	"github.com/arrowlake/numerion/internal/registry"
	"github.com/arrowlake/numerion/internal/replay"
	"github.com/arrowlake/numerion/internal/selfplay"
	"github.com/arrowlake/numerion/internal/trainer/atlasseed"
)

// bindEvaluator fixes a model's EvaluateState to one game, producing the
// mcts.EvaluateFn shape that self-play and arena play expect.
func bindEvaluator(model *registry.Model, game games.Game) mcts.EvaluateFn {
	return func(state games.State) ([]float64, float64, []float64) {
		return model.EvaluateState(game, state)
	}
}

// Config governs one training run across a set of games.
type Config struct {
	GameIDs              []string
	SelfplayGamesPerCycle int
	TrainStepsPerCycle    int
	BatchSize             int
	ReplayCapacity        int
	PromotionInterval     int
	PromotionGames        int
	PromotionThreshold    float64
	LearningRate          float64
}

// DefaultConfig mirrors the upstream system's defaults.
func DefaultConfig(gameIDs []string) Config {
	return Config{
		GameIDs:               gameIDs,
		SelfplayGamesPerCycle: 1,
		TrainStepsPerCycle:    1,
		BatchSize:             256,
		ReplayCapacity:        200_000,
		PromotionInterval:     2000,
		PromotionGames:        200,
		PromotionThreshold:    0.55,
		LearningRate:          3e-4,
	}
}

func defaultSelfplaySims(gameID string) int {
	if gameID == "tictactoe" {
		return 200
	}
	return 800
}

// minBatchToTrain is the "min(batch_size, 32)" floor from the source loop,
// with an additional absolute floor of 8.
func minBatchToTrain(batchSize int) int {
	floor := batchSize
	if floor > 32 {
		floor = 32
	}
	if floor < 8 {
		floor = 8
	}
	return floor
}

// Manager owns the replay state and running status for an in-progress
// training loop. It is not safe to Run concurrently with itself, but Status
// may be called from any goroutine while Run is active.
type Manager struct {
	reg     *registry.ModelRegistry
	gameSet map[string]games.Game
	baseDir string

	mu      sync.Mutex
	message string
	updates map[string]int
}

// NewManager builds a manager bound to reg and gameSet, writing disk shards
// under baseDir.
func NewManager(reg *registry.ModelRegistry, gameSet map[string]games.Game, baseDir string) *Manager {
	return &Manager{reg: reg, gameSet: gameSet, baseDir: baseDir, message: "idle", updates: make(map[string]int)}
}

// Status is a point-in-time snapshot of the training loop.
type Status struct {
	Message string
	Updates map[string]int
}

// Status returns a copy of the manager's current status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	updates := make(map[string]int, len(m.updates))
	for k, v := range m.updates {
		updates[k] = v
	}
	return Status{Message: m.message, Updates: updates}
}

func (m *Manager) setMessage(msg string) {
	m.mu.Lock()
	m.message = msg
	m.mu.Unlock()
}

// Run drives the cycle loop described in the self-play/trainer design until
// ctx is cancelled, flushing every disk shard writer before returning.
func (m *Manager) Run(ctx context.Context, cfg Config, rng *rand.Rand) error {
	working := make(map[string]*registry.Model, len(cfg.GameIDs))
	buffers := make(map[string]*replay.Buffer, len(cfg.GameIDs))
	writers := make(map[string]*replay.DiskWriter, len(cfg.GameIDs))

	for _, id := range cfg.GameIDs {
		clone, err := m.reg.CloneModel(id)
		if err != nil {
			return err
		}
		working[id] = clone
		buffers[id] = replay.NewBuffer(cfg.ReplayCapacity)
		writer, err := replay.NewDiskWriter(m.baseDir, id, 2048)
		if err != nil {
			return err
		}
		writers[id] = writer
	}
	defer func() {
		for _, w := range writers {
			_ = w.Flush()
		}
	}()

	seeds := atlasseed.Load(m.gameSet)
	for _, id := range cfg.GameIDs {
		for _, s := range seeds[id] {
			buffers[id].Add(s)
			if err := writers[id].Add(s); err != nil {
				return err
			}
		}
	}

	m.setMessage("training loop started")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		for _, id := range cfg.GameIDs {
			if ctx.Err() != nil {
				return nil
			}
			game, ok := m.gameSet[id]
			if !ok {
				return fmt.Errorf("trainer: unknown game id %q", id)
			}
			model := working[id]
			sims := defaultSelfplaySims(id)

			evaluator := bindEvaluator(model, game)
			for i := 0; i < cfg.SelfplayGamesPerCycle; i++ {
				samples, err := selfplay.Play(game, evaluator, sims, arenaCPuct, rng)
				if err != nil {
					return fmt.Errorf("trainer: self-play cycle for %q: %w", id, err)
				}
				buffers[id].Extend(samples)
				if err := writers[id].Extend(samples); err != nil {
					return err
				}
			}

			for i := 0; i < cfg.TrainStepsPerCycle; i++ {
				batch := buffers[id].Sample(cfg.BatchSize, rng)
				if len(batch) < minBatchToTrain(cfg.BatchSize) {
					break
				}
				metrics := model.TrainStep(batch, cfg.LearningRate)

				m.mu.Lock()
				m.updates[id]++
				step := m.updates[id]
				m.message = fmt.Sprintf("training %s | step=%d loss=%.4f policy=%.4f value=%.4f",
					id, step, metrics.LossTotal, metrics.LossPolicy, metrics.LossValue)
				m.mu.Unlock()

				if cfg.PromotionInterval > 0 && step%cfg.PromotionInterval == 0 {
					if err := m.runPromotion(id, game, model, cfg, rng); err != nil {
						return err
					}
					working[id] = model
				}
			}
		}
	}
}

func (m *Manager) runPromotion(id string, game games.Game, candidate *registry.Model, cfg Config, rng *rand.Rand) error {
	incumbent, err := m.reg.CloneModel(id)
	if err != nil {
		return err
	}
	promotionSims := defaultSelfplaySims(id)
	if promotionSims > 200 {
		promotionSims = 200
	}

	winRate, err := ArenaWinRate(game, bindEvaluator(candidate, game), bindEvaluator(incumbent, game), cfg.PromotionGames, promotionSims, rng)
	if err != nil {
		return err
	}

	if winRate >= cfg.PromotionThreshold {
		if err := m.reg.SaveModel(id, candidate); err != nil {
			return err
		}
		if err := m.reg.ReloadModel(id, rng); err != nil {
			return err
		}
		m.setMessage(fmt.Sprintf("promoted %s checkpoint (win_rate=%.3f)", id, winRate))
	} else {
		*candidate = *incumbent.Clone()
		m.setMessage(fmt.Sprintf("rejected %s checkpoint (win_rate=%.3f)", id, winRate))
	}
	return nil
}
