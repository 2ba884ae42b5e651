package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	logger, err := New(Config{Level: "debug", Development: true})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	_, err = New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNamedOnNil(t *testing.T) {
	var l *Logger
	child := l.Named("lifecycle")
	require.NotNil(t, child)
	child.Info("discarded")
}

func TestWrapNil(t *testing.T) {
	assert.NotNil(t, Wrap(nil).Logger)
}

func TestWithCarriesFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := Wrap(zap.New(core)).Named("lifecycle").With(zap.String("layer", "art"))
	l.Info("window opening")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "lifecycle", entry.LoggerName)
	assert.Equal(t, "art", entry.ContextMap()["layer"])

	var nilLogger *Logger
	assert.NotNil(t, nilLogger.With(zap.Int("n", 1)))
}
