package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithRequestID_AddsContextFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx := ContextWithActor(ContextWithRequestID(context.Background(), "req-1"), "OP1")
	WithRequestID(ctx, base).Info("appended")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "OP1", fields["actor_id"])
}

func TestWithRequestID_NoFields(t *testing.T) {
	base := zap.NewNop()
	assert.Same(t, base, WithRequestID(context.Background(), base))
	assert.Empty(t, RequestID(context.Background()))
}

func TestNew_FallsBackOnUnknownLevel(t *testing.T) {
	log, err := New(Config{Level: "loud", Encoding: "console"})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
}
