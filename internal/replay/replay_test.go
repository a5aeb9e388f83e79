package replay

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(ply int) ReplaySample {
	return ReplaySample{
		GameID:      "tictactoe",
		StatePlanes: [][][]float64{{{0}}},
		TargetPi:    []float64{1, 0, 0},
		TargetZ:     0.5,
		Ply:         ply,
		Source:      SourceSelfplay,
	}
}

func TestBufferEvictsOldestOnceFull(t *testing.T) {
	buf := NewBuffer(3)
	for i := 0; i < 5; i++ {
		buf.Add(sample(i))
	}
	assert.Equal(t, 3, buf.Len())
	rng := rand.New(rand.NewSource(1))
	all := buf.Sample(3, rng)
	require.Len(t, all, 3)
	var plies []int
	for _, s := range all {
		plies = append(plies, s.Ply)
	}
	assert.ElementsMatch(t, []int{2, 3, 4}, plies)
}

func TestBufferSampleCapsAtAvailableSize(t *testing.T) {
	buf := NewBuffer(10)
	buf.Extend([]ReplaySample{sample(0), sample(1)})
	rng := rand.New(rand.NewSource(1))
	out := buf.Sample(5, rng)
	assert.Len(t, out, 2)
}

func TestBufferSampleEmptyReturnsNil(t *testing.T) {
	buf := NewBuffer(10)
	rng := rand.New(rand.NewSource(1))
	assert.Nil(t, buf.Sample(5, rng))
}

func TestDiskWriterFlushesAtShardSizeAndResumesNumbering(t *testing.T) {
	dir := t.TempDir()
	w, err := NewDiskWriter(dir, "tictactoe", 2)
	require.NoError(t, err)

	require.NoError(t, w.Add(sample(0)))
	require.NoError(t, w.Add(sample(1))) // triggers an automatic flush
	assert.FileExists(t, filepath.Join(dir, "tictactoe", "chunk_000000.mpk"))

	w2, err := NewDiskWriter(dir, "tictactoe", 2)
	require.NoError(t, err)
	assert.Equal(t, 1, w2.shardIndex)
}

func TestDiskWriterFlushIsNoOpWhenEmpty(t *testing.T) {
	dir := t.TempDir()
	w, err := NewDiskWriter(dir, "connect4", 2048)
	require.NoError(t, err)
	require.NoError(t, w.Flush())
	assert.FileExists(t, filepath.Join(dir, "connect4"))
}
