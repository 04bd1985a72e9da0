package instrument

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProxiesOutsideScope(t *testing.T) {
	store := NewStore("proxies", nil)
	ctx := context.Background()

	session := NewSessionProxy(store)
	monitor := NewMonitorProxy(store)
	report := NewReportProxy(store)

	_, err := session.Get(ctx, "k", nil)
	assert.ErrorIs(t, err, ErrNotActive)
	assert.ErrorIs(t, session.Set(ctx, "k", 1), ErrNotActive)
	assert.ErrorIs(t, monitor.Track(ctx, "e", nil), ErrNotActive)
	assert.ErrorIs(t, monitor.IncrementMetric(ctx, "m", 1), ErrNotActive)
	_, err = monitor.StartTimer(ctx, "t")
	assert.ErrorIs(t, err, ErrNotActive)
	_, err = monitor.Summary(ctx)
	assert.ErrorIs(t, err, ErrNotActive)
	assert.ErrorIs(t, report.Info(ctx, "hello", nil), ErrNotActive)

	assert.False(t, session.Active(ctx))
	assert.False(t, monitor.Active(ctx))
	assert.False(t, report.Active(ctx))
}

func TestProxiesForwardToActiveEntry(t *testing.T) {
	store := NewStore("proxies", nil)
	entry := testEntry("fwd")
	ctx, guard := store.Enter(context.Background(), entry.Session, entry.Monitor, entry.Report)
	defer guard.Exit()

	session := NewSessionProxy(store)
	monitor := NewMonitorProxy(store)
	report := NewReportProxy(store)

	require.NoError(t, session.Set(ctx, "user", "alice"))
	v, err := session.Get(ctx, "user", nil)
	require.NoError(t, err)
	assert.Equal(t, "alice", v)
	v, err = session.Get(ctx, "missing", "fallback")
	require.NoError(t, err)
	assert.Equal(t, "fallback", v)
	assert.Equal(t, "alice", entry.Session.Get("user", nil))

	require.NoError(t, monitor.Track(ctx, "clicked", Metadata{"button": "ok"}))
	require.NoError(t, monitor.TrackDuration(ctx, "query", 2*time.Second, nil))
	start, err := monitor.StartTimer(ctx, "job")
	require.NoError(t, err)
	_, err = monitor.StopTimer(ctx, "job", start, nil)
	require.NoError(t, err)
	require.NoError(t, monitor.IncrementMetric(ctx, "hits", 2))

	s, err := monitor.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, s.TotalEvents)
	assert.Equal(t, 2.0, s.Metrics["hits"])
	assert.Equal(t, s, entry.Monitor.Summary())

	assert.NoError(t, report.Log(ctx, "hello", LevelInfo, Fields{"k": "v"}))
	assert.NoError(t, report.Critical(ctx, "bad", nil))

	assert.True(t, session.Is(ctx, entry.Session))
	assert.True(t, monitor.Is(ctx, entry.Monitor))
	assert.True(t, report.Is(ctx, entry.Report))
	assert.False(t, monitor.Is(ctx, NewEagerMonitor("other", 1, nil)))
}

func TestProxyRoleUnset(t *testing.T) {
	store := NewStore("partial", nil)
	m := NewEagerMonitor("only-monitor", 4, nil)
	ctx, guard := store.Enter(context.Background(), nil, m, nil)
	defer guard.Exit()

	_, err := NewSessionProxy(store).Get(ctx, "k", nil)
	assert.ErrorIs(t, err, ErrRoleUnset)
	assert.ErrorIs(t, NewReportProxy(store).Warn(ctx, "w", nil), ErrRoleUnset)
	assert.NoError(t, NewMonitorProxy(store).Track(ctx, "ok", nil))
	assert.False(t, NewSessionProxy(store).Active(ctx))
	assert.True(t, NewMonitorProxy(store).Active(ctx))
}

func TestProxyResolvesPerScope(t *testing.T) {
	store := NewStore("nested", nil)
	monitor := NewMonitorProxy(store)
	outer, inner := testEntry("outer"), testEntry("inner")

	ctxOuter, g1 := store.Enter(context.Background(), outer.Session, outer.Monitor, outer.Report)
	require.NoError(t, monitor.Track(ctxOuter, "outer_event", nil))

	ctxInner, g2 := store.Enter(ctxOuter, inner.Session, inner.Monitor, inner.Report)
	require.NoError(t, monitor.Track(ctxInner, "inner_event", nil))
	assert.True(t, monitor.Is(ctxInner, inner.Monitor))

	back := g2.Exit()
	require.NoError(t, monitor.Track(back, "outer_again", nil))
	assert.True(t, monitor.Is(back, outer.Monitor))
	g1.Exit()

	outerSummary := outer.Monitor.Summary()
	innerSummary := inner.Monitor.Summary()
	assert.Equal(t, 2, outerSummary.TotalEvents)
	assert.Equal(t, 1, outerSummary.CountOf("outer_again"))
	assert.Equal(t, 1, innerSummary.TotalEvents)
	assert.Equal(t, 1, innerSummary.CountOf("inner_event"))
}
