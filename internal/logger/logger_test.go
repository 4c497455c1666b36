package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("nonsense"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel(""))
}

func TestInit_Once(t *testing.T) {
	require.NoError(t, Init(zapcore.InfoLevel, zap.String("service", "test")))
	first := Log
	require.NoError(t, Init(zapcore.DebugLevel))
	assert.Same(t, first, Log)
}

func TestBuild_ReportsBadOutput(t *testing.T) {
	cfg := configure(zapcore.InfoLevel)
	cfg.OutputPaths = []string{"/nonexistent-dir/presence.log"}

	l, err := build(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to build logger")
	assert.Nil(t, l)
}
