package registry

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/arrowlake/numerion/internal/games"
)

type gameSlot struct {
	mu             sync.Mutex
	model          *Model
	checkpointPath string
}

// ModelRegistry owns exactly one trainable Model per game, each behind its
// own mutex so inference and promotion never race, mirroring the teacher's
// per-resource-lock pattern in its observer manager.
type ModelRegistry struct {
	games map[string]games.Game
	slots map[string]*gameSlot
}

// Status reports a game's checkpoint location on disk.
type Status struct {
	CheckpointPath   string
	CheckpointExists bool
}

// NewModelRegistry builds one slot per game in gameSet, loading each
// checkpoint from baseDir/<game_id>/best.mpk when present, else
// initializing a fresh model seeded from rng.
func NewModelRegistry(baseDir string, gameSet map[string]games.Game, rng *rand.Rand) (*ModelRegistry, error) {
	r := &ModelRegistry{games: gameSet, slots: make(map[string]*gameSlot, len(gameSet))}
	for id, g := range gameSet {
		dir := filepath.Join(baseDir, id)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("registry: creating model dir for %q: %w", id, err)
		}
		path := filepath.Join(dir, "best.mpk")
		model, err := loadOrInit(path, g.Spec(), rng)
		if err != nil {
			return nil, err
		}
		r.slots[id] = &gameSlot{model: model, checkpointPath: path}
	}
	return r, nil
}

func loadOrInit(path string, spec games.Spec, rng *rand.Rand) (*Model, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewModel(spec, rng), nil
		}
		return nil, fmt.Errorf("registry: reading checkpoint %q: %w", path, err)
	}
	var model Model
	if err := msgpack.Unmarshal(payload, &model); err != nil {
		return nil, fmt.Errorf("registry: decoding checkpoint %q: %w", path, err)
	}
	return &model, nil
}

// Game looks up a registered game by id.
func (r *ModelRegistry) Game(gameID string) (games.Game, error) {
	g, ok := r.games[gameID]
	if !ok {
		return nil, fmt.Errorf("registry: unknown game id %q", gameID)
	}
	return g, nil
}

func (r *ModelRegistry) slot(gameID string) (*gameSlot, error) {
	s, ok := r.slots[gameID]
	if !ok {
		return nil, fmt.Errorf("registry: unknown game id %q", gameID)
	}
	return s, nil
}

// Evaluate runs the registered model for gameID against state, holding the
// slot's lock for the duration of the forward pass.
func (r *ModelRegistry) Evaluate(gameID string, state games.State) ([]float64, float64, []float64, error) {
	g, err := r.Game(gameID)
	if err != nil {
		return nil, 0, nil, err
	}
	s, err := r.slot(gameID)
	if err != nil {
		return nil, 0, nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	logits, value, latent := s.model.EvaluateState(g, state)
	return logits, value, latent, nil
}

// SaveModel persists model as the incumbent checkpoint for gameID.
func (r *ModelRegistry) SaveModel(gameID string, model *Model) error {
	s, err := r.slot(gameID)
	if err != nil {
		return err
	}
	payload, err := msgpack.Marshal(model)
	if err != nil {
		return fmt.Errorf("registry: encoding checkpoint for %q: %w", gameID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.WriteFile(s.checkpointPath, payload, 0o644); err != nil {
		return fmt.Errorf("registry: writing checkpoint for %q: %w", gameID, err)
	}
	s.model = model.Clone()
	return nil
}

// ReloadModel re-reads a game's checkpoint from disk into the live slot.
func (r *ModelRegistry) ReloadModel(gameID string, rng *rand.Rand) error {
	g, err := r.Game(gameID)
	if err != nil {
		return err
	}
	s, err := r.slot(gameID)
	if err != nil {
		return err
	}
	model, err := loadOrInit(s.checkpointPath, g.Spec(), rng)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.model = model
	s.mu.Unlock()
	return nil
}

// CloneModel returns a deep copy of the current incumbent for gameID, safe
// for a caller to train against without racing live inference.
func (r *ModelRegistry) CloneModel(gameID string) (*Model, error) {
	s, err := r.slot(gameID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model.Clone(), nil
}

// Status reports checkpoint presence for every registered game.
func (r *ModelRegistry) Status() map[string]Status {
	out := make(map[string]Status, len(r.slots))
	for id, s := range r.slots {
		s.mu.Lock()
		_, err := os.Stat(s.checkpointPath)
		out[id] = Status{CheckpointPath: s.checkpointPath, CheckpointExists: err == nil}
		s.mu.Unlock()
	}
	return out
}
