package logsvc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/user"
)

func newObservedLogger(t *testing.T) (*RollbarLogger, *observer.ObservedLogs) {
	t.Helper()
	obsCore, logs := observer.New(zapcore.DebugLevel)
	l := NewRollbarLogger(zap.New(obsCore).Sugar(), core.NewTestConfig())
	return l, logs
}

func TestRollbarLogger(t *testing.T) {
	l, logs := newObservedLogger(t)
	usr := user.User{ID: "u1", FirstName: "Jane", LastName: "Doe", Email: "jane@test.cd"}
	other := user.User{ID: "u2"}

	l.Warn("fetching attendance records", errors.New("connection refused"),
		map[string]interface{}{"student": "s1"}, usr, other)
	l.Info("started", 42)

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)

	warn := entries[0]
	assert.Equal(t, zapcore.WarnLevel, warn.Level)
	assert.Equal(t, "fetching attendance records", warn.Message)
	ctx := warn.ContextMap()
	assert.Equal(t, "connection refused", ctx["error"])
	assert.Equal(t, "s1", ctx["student"])
	assert.Equal(t, "u1", ctx["user"]) // only the first user is kept

	info := entries[1]
	assert.Equal(t, zapcore.InfoLevel, info.Level)
	assert.EqualValues(t, 42, info.ContextMap()["arg0"])
}

func TestNewZapLogger(t *testing.T) {
	conf := core.NewTestConfig()
	sink, err := NewZapLogger(conf)
	require.NoError(t, err)
	assert.NotNil(t, sink)
}
