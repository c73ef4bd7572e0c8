package logger

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/saiset-co/sai-feed/config"
	"github.com/saiset-co/sai-feed/types"
)

func TestZapWrapper_ErrorWithErrStack(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewZapWrapper(zap.New(core))

	l.ErrorWithErrStack("like failed", errors.New("boom"), zap.String("post_id", "p1"))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	fields := entry.ContextMap()
	assert.Equal(t, "boom", fields["error"])
	assert.Equal(t, "p1", fields["post_id"])
	assert.Contains(t, fields["stack"], "TestZapWrapper_ErrorWithErrStack")
}

func TestZapWrapper_ErrorWithoutStack(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewZapWrapper(zap.New(core))

	l.ErrorWithErrStack("plain", types.ErrPostNotFound)

	require.Equal(t, 1, logs.Len())
	_, hasStack := logs.All()[0].ContextMap()["stack"]
	assert.False(t, hasStack)
}

func TestZapWrapper_NamedChildren(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewZapWrapper(zap.New(core))

	l.Named("cache").Named("collector").Info("evicted")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "cache.collector", logs.All()[0].LoggerName)
}

func TestParseLogLevel(t *testing.T) {
	level, err := parseLogLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, level)

	level, err = parseLogLevel("warning")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, level)

	_, err = parseLogLevel("loud")
	assert.ErrorIs(t, err, types.ErrInvalidParameter)
}

func TestNewDefaultLogger_JSONStderr(t *testing.T) {
	l, err := NewDefaultLogger(&types.LoggerConfig{
		Level:  "warn",
		Config: map[string]interface{}{"format": "json", "output": "stderr"},
	})
	require.NoError(t, err)
	assert.False(t, l.Logger.Core().Enabled(zapcore.InfoLevel))

	assert.True(t, l.SetLevel(zapcore.DebugLevel))
	assert.True(t, l.Named("feed").(*ZapWrapper).Logger.Core().Enabled(zapcore.DebugLevel))
}

func TestNewDefaultLogger_RejectsUnknownLevel(t *testing.T) {
	_, err := NewDefaultLogger(&types.LoggerConfig{Level: "chatty"})
	assert.ErrorIs(t, err, types.ErrInvalidParameter)
}

func TestEnsureLogDir_Empty(t *testing.T) {
	assert.ErrorIs(t, ensureLogDir(""), types.ErrLogFileIsEmpty)
}

func TestManager_SetLevel(t *testing.T) {
	cfg := config.NewLoader().Defaults()
	cfg.Name = "sai-feed-test"
	cfg.Logger.Level = "error"
	cfg.Logger.Config = map[string]interface{}{"output": "stderr"}

	m, err := NewManager(config.NewStaticManager(cfg))
	require.NoError(t, err)

	require.NoError(t, m.SetLevel("debug"))
	assert.ErrorIs(t, m.SetLevel("loud"), types.ErrInvalidParameter)

	cfg.Logger.Type = "nop"
	nop, err := NewManager(config.NewStaticManager(cfg))
	require.NoError(t, err)
	assert.ErrorIs(t, nop.SetLevel("debug"), types.ErrNotSupported)
}

func TestManager_Lifecycle(t *testing.T) {
	cfg := config.NewLoader().Defaults()
	cfg.Logger.Type = "nop"

	m, err := NewManager(config.NewStaticManager(cfg))
	require.NoError(t, err)

	require.NoError(t, m.Start())
	assert.True(t, m.IsRunning())
	assert.ErrorIs(t, m.Start(), types.ErrAlreadyRunning)
	require.NoError(t, m.Stop())
	assert.ErrorIs(t, m.Stop(), types.ErrNotRunning)
}
