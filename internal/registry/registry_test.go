package registry

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrowlake/numerion/internal/games"
	"github.com/arrowlake/numerion/internal/replay"
)

func testGames() map[string]games.Game {
	return map[string]games.Game{"tictactoe": games.TicTacToe{}}
}

func TestNewModelRegistryInitializesFreshModelWhenNoCheckpoint(t *testing.T) {
	dir := t.TempDir()
	rng := rand.New(rand.NewSource(1))
	reg, err := NewModelRegistry(dir, testGames(), rng)
	require.NoError(t, err)

	status := reg.Status()
	assert.False(t, status["tictactoe"].CheckpointExists)
}

func TestEvaluateReturnsCorrectlyShapedOutputs(t *testing.T) {
	dir := t.TempDir()
	rng := rand.New(rand.NewSource(1))
	reg, err := NewModelRegistry(dir, testGames(), rng)
	require.NoError(t, err)

	g := games.TicTacToe{}
	logits, value, latent, err := reg.Evaluate("tictactoe", g.InitialState())
	require.NoError(t, err)
	assert.Len(t, logits, 9)
	assert.GreaterOrEqual(t, value, 0.0)
	assert.LessOrEqual(t, value, 1.0)
	assert.Len(t, latent, defaultLatentDim)
}

func TestSaveModelPersistsAndReloadRecoversIt(t *testing.T) {
	dir := t.TempDir()
	rng := rand.New(rand.NewSource(2))
	reg, err := NewModelRegistry(dir, testGames(), rng)
	require.NoError(t, err)

	candidate, err := reg.CloneModel("tictactoe")
	require.NoError(t, err)
	candidate.ValueB = 42.0

	require.NoError(t, reg.SaveModel("tictactoe", candidate))
	assert.FileExists(t, filepath.Join(dir, "tictactoe", "best.mpk"))

	require.NoError(t, reg.ReloadModel("tictactoe", rng))
	reloaded, err := reg.CloneModel("tictactoe")
	require.NoError(t, err)
	assert.Equal(t, 42.0, reloaded.ValueB)
}

func TestEvaluateUnknownGameErrors(t *testing.T) {
	dir := t.TempDir()
	rng := rand.New(rand.NewSource(1))
	reg, err := NewModelRegistry(dir, testGames(), rng)
	require.NoError(t, err)
	_, _, _, err = reg.Evaluate("chess", games.TicTacToe{}.InitialState())
	assert.Error(t, err)
}

func TestModelTrainStepReducesLossOnRepeatedSample(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	g := games.TicTacToe{}
	model := NewModel(g.Spec(), rng)

	sample := replay.ReplaySample{
		StatePlanes: [][][]float64{
			{{1, 0, 0}, {0, 0, 0}, {0, 0, 0}},
			{{0, 0, 0}, {0, 0, 0}, {0, 0, 0}},
			{{0, 1, 1}, {0, 0, 0}, {0, 0, 0}},
			{{1, 1, 1}, {1, 1, 1}, {1, 1, 1}},
			{{0, 0, 0}, {0, 0, 0}, {0, 0, 0}},
		},
		TargetPi: []float64{0, 1, 0, 0, 0, 0, 0, 0, 0},
		TargetZ:  1.0,
	}

	first := model.TrainStep([]replay.ReplaySample{sample}, 0.5)
	for i := 0; i < 20; i++ {
		model.TrainStep([]replay.ReplaySample{sample}, 0.5)
	}
	last := model.TrainStep([]replay.ReplaySample{sample}, 0.5)
	assert.Less(t, last.LossTotal, first.LossTotal)
}
