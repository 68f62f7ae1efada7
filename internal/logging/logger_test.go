package logging_test

import (
	"testing"

	"github.com/hookdeck/relaycursor/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zap.DebugLevel, logging.ParseLevel("DEBUG"))
	assert.Equal(t, zap.WarnLevel, logging.ParseLevel("warn"))
	assert.Equal(t, zap.InfoLevel, logging.ParseLevel(""))
	assert.Equal(t, zap.InfoLevel, logging.ParseLevel("verbose"))
}

func TestNewLogger(t *testing.T) {
	logger, err := logging.NewLogger(logging.WithLogLevel("error"))
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))
	assert.True(t, logger.Core().Enabled(zap.ErrorLevel))
}

func TestWrap(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := logging.Wrap(zap.New(core), zap.DebugLevel)

	logger.Debug("resolved", zap.Int("edges", 3))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "resolved", entry.Message)
	assert.Equal(t, int64(3), entry.ContextMap()["edges"])
}

func TestNopLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		logging.NewNopLogger().Info("discarded")
	})
}
