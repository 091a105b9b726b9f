package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/promptliano/promptliano/internal/config"
)

func TestNewRejectsInvalidLevel(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "loudest", Format: "json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loudest")
}

func TestNewHonorsLevel(t *testing.T) {
	t.Setenv("MCP_DEBUG", "")
	logger, err := New(config.LoggingConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}

func TestDebugEnvForcesDebugLevel(t *testing.T) {
	t.Setenv("MCP_DEBUG", "1")
	logger, err := New(config.LoggingConfig{Level: "error", Format: "console"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestDebugEnabled(t *testing.T) {
	cases := map[string]bool{
		"":      false,
		"0":     false,
		"false": false,
		"1":     true,
		"true":  true,
		"yes":   true, // non-boolean but non-empty counts as enabled
	}
	for value, want := range cases {
		t.Setenv("MCP_DEBUG", value)
		assert.Equal(t, want, DebugEnabled(), "MCP_DEBUG=%q", value)
	}
}
