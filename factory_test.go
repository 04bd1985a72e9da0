package instrument

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRuntime(t *testing.T, mutate func(*Config)) *Runtime {
	t.Helper()
	cfg := DefaultConfig()
	cfg.ServiceName = "runtime-test"
	cfg.BufferSize = 32
	if mutate != nil {
		mutate(&cfg)
	}
	rt, err := New(cfg)
	require.NoError(t, err)
	return rt
}

func TestRuntimeSentinelThroughProxies(t *testing.T) {
	rt := newTestRuntime(t, nil)
	require.NoError(t, rt.Start())

	session := NewDefaultSession("sess-1", "checkout")
	sentinel := rt.Sentinel(Entry{Session: session})

	err := sentinel.Run(context.Background(), "handle", func(ctx context.Context) error {
		require.NoError(t, rt.Session.Set(ctx, "cart", 3))
		require.NoError(t, rt.Monitor.Track(ctx, "item_added", Metadata{"sku": "a-1"}))
		require.NoError(t, rt.Monitor.IncrementMetric(ctx, "items", 1))
		return rt.Report.Info(ctx, "handled", nil)
	})
	require.NoError(t, err)
	assert.Equal(t, 3, session.Get("cart", nil))

	byName := map[string]Metric{}
	for _, m := range rt.Metrics() {
		assert.Equal(t, "sess-1", m.Labels["monitor"])
		byName[m.Name] = m
	}
	assert.Equal(t, 3.0, byName["events_recorded"].Value)
	assert.Equal(t, 1.0, byName["items"].Value)

	rt.ReleaseMonitor("sess-1")
	assert.Empty(t, rt.Metrics())

	assert.NoError(t, rt.Shutdown())
}

func TestRuntimeStrategy(t *testing.T) {
	eager := newTestRuntime(t, nil)
	assert.IsType(t, &EagerBuffer{}, eager.NewMonitor("e").Buffer())

	deferred := newTestRuntime(t, func(c *Config) { c.Strategy = StrategyDeferred })
	m := deferred.NewMonitor("d")
	assert.IsType(t, &DeferredBuffer{}, m.Buffer())
	assert.Equal(t, 32, m.Buffer().Cap())
}

func TestRuntimeReportLevel(t *testing.T) {
	rt := newTestRuntime(t, func(c *Config) { c.ReportLevel = LevelError })
	assert.Equal(t, LevelError, rt.NewReport().Level())
}

func TestRuntimeLifecycle(t *testing.T) {
	rt := newTestRuntime(t, nil)

	require.NoError(t, rt.Start())
	require.NoError(t, rt.Start())
	assert.NoError(t, rt.HealthCheck())

	status := rt.Status()
	assert.Equal(t, true, status["initialized"])
	assert.Equal(t, true, status["started"])
	assert.Equal(t, "runtime-test", status["service"])
	assert.Equal(t, false, status["remote_write"])

	require.NoError(t, rt.Shutdown())
	require.NoError(t, rt.Shutdown())

	assert.ErrorIs(t, rt.Start(), ErrNotInitialized)
	assert.ErrorIs(t, rt.HealthCheck(), ErrNotInitialized)
	assert.Equal(t, false, rt.Status()["initialized"])
}

func TestRuntimeShutdownReportsOpenScopes(t *testing.T) {
	rt := newTestRuntime(t, nil)
	_, guard := rt.Store().Enter(context.Background(), nil, nil, nil)

	assert.Equal(t, int64(1), rt.Status()["open_scopes"])
	assert.ErrorIs(t, rt.Shutdown(), ErrScopesOpen)
	guard.Exit()
}

func TestRuntimeFlushWithoutRemoteWrite(t *testing.T) {
	rt := newTestRuntime(t, nil)
	err := rt.Flush()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flush metrics")
}

func TestNewRuntimeInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = "sometimes"
	_, err := New(cfg)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}
