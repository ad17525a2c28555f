package logger

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_Formats(t *testing.T) {
	for _, format := range []string{"text", "json"} {
		log, err := New(LogConfig{Level: "debug", Format: format, Output: "stdout"})
		require.NoError(t, err, format)
		require.NotNil(t, log)
	}
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	log, err := New(LogConfig{Level: "loud", Format: "text"})
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel), "debug should be disabled at info level")
	assert.Equal(t, "info", log.Level())
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scanner.log")
	log, err := New(LogConfig{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)
	log.Info("written", "key", "value")
	log.Sync()
	assert.FileExists(t, path)
}

func TestConvertFields(t *testing.T) {
	fields := convertFields("a", 1, "err", errors.New("boom"), 42, "skipped", "dangling")
	require.Len(t, fields, 2)
	assert.Equal(t, "a", fields[0].Key)
	assert.Equal(t, "err", fields[1].Key)
}

func TestNopLogger(t *testing.T) {
	log := NewNopLogger()
	log.Named("camera").With("session", "x").Info("nothing happens")
}

func TestSetLevel_SharedWithDerivedLoggers(t *testing.T) {
	log, err := New(LogConfig{Level: "info", Format: "json", Output: filepath.Join(t.TempDir(), "l.log")})
	require.NoError(t, err)
	child := log.Named("scanner").With("session", "abc")

	assert.False(t, child.Core().Enabled(zapcore.DebugLevel))

	require.NoError(t, log.SetLevel("debug"))
	assert.True(t, child.Core().Enabled(zapcore.DebugLevel))
	assert.Equal(t, "debug", child.Level())
}

func TestSetLevel_Invalid(t *testing.T) {
	log := NewNopLogger()
	assert.Error(t, log.SetLevel("loud"))
}
