package numerion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrowlake/numerion/internal/marketdata"
)

func TestBarsFromKlinesConvertsEveryField(t *testing.T) {
	klines := []marketdata.Kline{
		{OpenTimeMs: 1_700_000_000_000, Open: 100, High: 110, Low: 95, Close: 105, Volume: 42, CloseTimeMs: 1_700_000_059_999},
		{OpenTimeMs: 1_700_000_060_000, Open: 105, High: 112, Low: 101, Close: 108, Volume: 37, CloseTimeMs: 1_700_000_119_999},
	}

	bars := barsFromKlines(klines)

	require.Len(t, bars, 2)
	assert.Equal(t, 100.0, bars[0].Open)
	assert.Equal(t, 108.0, bars[1].Close)
	assert.Equal(t, time.UnixMilli(1_700_000_060_000).UTC(), bars[1].OpenTime)
}

func TestMaxHistoryWindowPicksLargestOrFallback(t *testing.T) {
	assert.Equal(t, 90, maxHistoryWindow(nil, 90))
	assert.Equal(t, 180, maxHistoryWindow([]int{30, 180, 60}, 90))
	assert.Equal(t, 90, maxHistoryWindow([]int{10, 20}, 90))
}

func TestToJSONMapRoundTripsStructFields(t *testing.T) {
	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	m, err := toJSONMap(payload{Name: "combo", Count: 3})
	require.NoError(t, err)
	assert.Equal(t, "combo", m["name"])
	assert.Equal(t, float64(3), m["count"])
}

func TestConfigHashIsStableAndSensitiveToChanges(t *testing.T) {
	a, err := toJSONMap(RunConfig{TopNSymbols: 5, RandomSeed: 1})
	require.NoError(t, err)
	b, err := toJSONMap(RunConfig{TopNSymbols: 6, RandomSeed: 1})
	require.NoError(t, err)

	h1 := configHash(a)
	h2 := configHash(a)
	h3 := configHash(b)

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64)
}

func TestNewRunIDReturnsDistinctValues(t *testing.T) {
	assert.NotEqual(t, NewRunID(), NewRunID())
}
