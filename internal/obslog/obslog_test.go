package obslog

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetupReturnsLoggerAndInstallsDefault(t *testing.T) {
	l := Setup("debug")
	assert.NotNil(t, l)
	assert.Equal(t, l, slog.Default())
}

func TestSetupUnknownLevelDefaultsToInfo(t *testing.T) {
	l := Setup("nonsense")
	assert.NotNil(t, l)
	assert.False(t, l.Enabled(nil, slog.LevelDebug))
	assert.True(t, l.Enabled(nil, slog.LevelInfo))
}

func TestLoggerReturnsInfoLevelLogger(t *testing.T) {
	l := Logger()
	assert.NotNil(t, l)
	assert.True(t, l.Enabled(nil, slog.LevelInfo))
}
