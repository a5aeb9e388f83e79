package trainer

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrowlake/numerion/internal/games"
	"github.com/arrowlake/numerion/internal/registry"
)

func TestRunSelfPlaysTrainsAndStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	rng := rand.New(rand.NewSource(1))
	gameSet := map[string]games.Game{"tictactoe": games.TicTacToe{}}

	reg, err := registry.NewModelRegistry(dir, gameSet, rng)
	require.NoError(t, err)

	mgr := NewManager(reg, gameSet, dir)
	cfg := Config{
		GameIDs:               []string{"tictactoe"},
		SelfplayGamesPerCycle: 1,
		TrainStepsPerCycle:    1,
		BatchSize:             8,
		ReplayCapacity:        1000,
		PromotionInterval:     1,
		PromotionGames:        2,
		PromotionThreshold:    0.55,
		LearningRate:          0.1,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err = mgr.Run(ctx, cfg, rng)
	require.NoError(t, err)

	status := mgr.Status()
	assert.Contains(t, status.Message, "tictactoe")
}

func TestMinBatchToTrainFloorsAt8And32(t *testing.T) {
	assert.Equal(t, 8, minBatchToTrain(4))
	assert.Equal(t, 16, minBatchToTrain(16))
	assert.Equal(t, 32, minBatchToTrain(256))
}

func TestDefaultSelfplaySimsIsLowerForTicTacToe(t *testing.T) {
	assert.Equal(t, 200, defaultSelfplaySims("tictactoe"))
	assert.Equal(t, 800, defaultSelfplaySims("connect4"))
}
