package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/pdanelson/bondora-auto-investor/internal/config"
)

func TestNew_Level(t *testing.T) {
	log, err := New(config.LogConfig{Level: "warn", Encoding: "json"})
	require.NoError(t, err)

	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))
}

func TestNew_UnknownLevelAndEncodingFallBack(t *testing.T) {
	log, err := New(config.LogConfig{Level: "chatty", Encoding: "xml", Sampling: true})
	require.NoError(t, err)

	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
}
