package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitLoggerLevels(t *testing.T) {
	t.Cleanup(func() { logger = nil })

	require.NoError(t, InitLogger("production", ""))
	assert.True(t, GetLogger().Core().Enabled(zap.InfoLevel))
	assert.False(t, GetLogger().Core().Enabled(zap.DebugLevel))

	require.NoError(t, InitLogger("development", ""))
	assert.True(t, GetLogger().Core().Enabled(zap.DebugLevel))

	require.NoError(t, InitLogger("production", "warn"))
	assert.False(t, GetLogger().Core().Enabled(zap.InfoLevel))
	assert.True(t, GetLogger().Core().Enabled(zap.WarnLevel))
}

func TestInitLoggerRejectsUnknownLevel(t *testing.T) {
	t.Cleanup(func() { logger = nil })

	assert.Error(t, InitLogger("production", "loud"))
}
