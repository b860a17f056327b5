package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/danielterwiel/stepvis/config"
)

func TestNewDevelopment(t *testing.T) {
	log, err := New("development", "debug")
	require.NoError(t, err)
	require.NotNil(t, log)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestNewProduction(t *testing.T) {
	log, err := New("production", "warn")
	require.NoError(t, err)
	require.NotNil(t, log)
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))
}

func TestNewInvalidMode(t *testing.T) {
	_, err := New("verbose", "info")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid logging mode")
}

func TestNewInvalidLevel(t *testing.T) {
	_, err := New("production", "loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid logging level")
}

func TestNewFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Logging.Mode = "development"
	cfg.Logging.Level = "info"

	log, err := NewFromConfig(cfg)
	require.NoError(t, err)
	require.NotNil(t, log)
}
