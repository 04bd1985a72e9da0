package instrument

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestGuardExitOnce(t *testing.T) {
	store := NewStore("guard", nil)
	outer := testEntry("outer")
	inner := testEntry("inner")

	ctx, g1 := store.Enter(context.Background(), outer.Session, outer.Monitor, outer.Report)
	scoped, g2 := store.Enter(ctx, inner.Session, inner.Monitor, inner.Report)
	assert.Equal(t, int64(2), store.Open())

	got, err := store.Current(scoped)
	require.NoError(t, err)
	assert.Same(t, inner.Monitor, got.Monitor)

	first := g2.Exit()
	second := g2.Exit()
	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), store.Open())

	got, err = store.Current(first)
	require.NoError(t, err)
	assert.Same(t, outer.Monitor, got.Monitor)

	_, err = store.Current(g1.Exit())
	assert.ErrorIs(t, err, ErrNotActive)
	assert.Equal(t, int64(0), store.Open())
}

func TestRunRestoresOnReturn(t *testing.T) {
	store := NewStore("run", nil)
	entry := testEntry("run")
	errBoom := errors.New("boom")

	err := store.Run(context.Background(), entry, func(ctx context.Context) error {
		got, err := store.Current(ctx)
		require.NoError(t, err)
		assert.Same(t, entry.Session, got.Session)
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, int64(0), store.Open())

	err = store.Run(context.Background(), entry, func(context.Context) error { return nil })
	assert.NoError(t, err)
	assert.Equal(t, int64(0), store.Open())
}

func TestRunRestoresOnPanic(t *testing.T) {
	store := NewStore("panic", nil)

	assert.PanicsWithValue(t, "kaboom", func() {
		_ = store.Run(context.Background(), testEntry("p"), func(context.Context) error {
			panic("kaboom")
		})
	})
	assert.Equal(t, int64(0), store.Open())
	assert.NoError(t, store.Close())
}

func TestRunGroupSharesEntry(t *testing.T) {
	store := NewStore("group", nil)
	entry := testEntry("group")
	proxy := NewMonitorProxy(store)

	var seen atomic.Int32
	err := store.RunGroup(context.Background(), entry, func(ctx context.Context, g *errgroup.Group) error {
		for i := 0; i < 8; i++ {
			g.Go(func() error {
				if proxy.Is(ctx, entry.Monitor) {
					seen.Add(1)
				}
				return proxy.IncrementMetric(ctx, "work", 1)
			})
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, int32(8), seen.Load())
	assert.Equal(t, 8.0, entry.Monitor.(*DefaultMonitor).Metrics()["work"])
	assert.Equal(t, int64(0), store.Open())
}

func TestRunGroupCancelsOnError(t *testing.T) {
	store := NewStore("group", nil)
	errFailed := errors.New("worker failed")

	var cancelled atomic.Bool
	err := store.RunGroup(context.Background(), testEntry("g"), func(ctx context.Context, g *errgroup.Group) error {
		g.Go(func() error {
			<-ctx.Done()
			cancelled.Store(true)
			_, err := store.Current(ctx)
			return err
		})
		g.Go(func() error { return errFailed })
		return nil
	})

	assert.ErrorIs(t, err, errFailed)
	assert.True(t, cancelled.Load())
	assert.Equal(t, int64(0), store.Open())
}

func TestRunGroupReturnsFnError(t *testing.T) {
	store := NewStore("group", nil)
	errFn := errors.New("fn failed")

	var finished atomic.Bool
	err := store.RunGroup(context.Background(), testEntry("g"), func(ctx context.Context, g *errgroup.Group) error {
		g.Go(func() error {
			finished.Store(true)
			return nil
		})
		return errFn
	})

	assert.ErrorIs(t, err, errFn)
	assert.True(t, finished.Load())
	assert.Equal(t, int64(0), store.Open())
}

func TestRunGroupJoinsBeforeRestoreOnPanic(t *testing.T) {
	store := NewStore("group", nil)
	release := make(chan struct{})

	var finished atomic.Bool
	assert.PanicsWithValue(t, "fn exploded", func() {
		_ = store.RunGroup(context.Background(), testEntry("g"), func(ctx context.Context, g *errgroup.Group) error {
			g.Go(func() error {
				<-release
				finished.Store(true)
				return nil
			})
			close(release)
			panic("fn exploded")
		})
	})

	assert.True(t, finished.Load())
	assert.Equal(t, int64(0), store.Open())
}
