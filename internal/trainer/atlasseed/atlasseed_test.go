package atlasseed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrowlake/numerion/internal/games"
	"github.com/arrowlake/numerion/internal/replay"
)

func TestLoadReturnsSamplesForEveryKnownGame(t *testing.T) {
	all := games.BuildGames()
	out := Load(all)
	require.Contains(t, out, "tictactoe")
	require.Contains(t, out, "connect4")
	require.Contains(t, out, "othello")
	assert.NotEmpty(t, out["tictactoe"])
	assert.NotEmpty(t, out["connect4"])
	assert.NotEmpty(t, out["othello"])
}

func TestLoadSamplesCarryAtlasSeedSourceAndEmbedding(t *testing.T) {
	out := Load(games.BuildGames())
	for _, s := range out["tictactoe"] {
		assert.Equal(t, replay.SourceAtlasSeed, s.Source)
		assert.Len(t, s.AtlasTarget, 8)
		var piSum float64
		for _, p := range s.TargetPi {
			piSum += p
		}
		assert.InDelta(t, 1.0, piSum, 1e-9)
	}
}

func TestLoadIgnoresGamesNotInGameSet(t *testing.T) {
	out := Load(map[string]games.Game{"tictactoe": games.TicTacToe{}})
	assert.Empty(t, out["connect4"])
}
