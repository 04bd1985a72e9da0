package instrument

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Guard restores the context captured when a scope was entered. Exit
// restores exactly once no matter how often it is called.
type Guard struct {
	store  *Store
	token  Token
	once   sync.Once
	parent context.Context
}

// Enter activates the given collaborators and returns the scoped
// context with its guard. Pair it with a deferred Exit:
//
//	ctx, guard := store.Enter(ctx, session, monitor, report)
//	defer guard.Exit()
func (s *Store) Enter(ctx context.Context, session Session, monitor Monitor, report Report) (context.Context, *Guard) {
	return s.enter(ctx, Entry{Session: session, Monitor: monitor, Report: report})
}

func (s *Store) enter(ctx context.Context, entry Entry) (context.Context, *Guard) {
	scoped, tok := s.Activate(ctx, entry)
	return scoped, &Guard{store: s, token: tok}
}

// Exit restores the state captured at Enter and returns the context
// that was current before it. Calls after the first only return that
// context.
func (g *Guard) Exit() context.Context {
	g.once.Do(func() {
		g.parent = g.store.Restore(g.token)
	})
	return g.parent
}

// Run calls fn with entry active. The previous state is restored when
// fn returns, fails or panics; a panic is re-raised after restoring.
func (s *Store) Run(ctx context.Context, entry Entry, fn func(ctx context.Context) error) error {
	scoped, guard := s.enter(ctx, entry)
	defer guard.Exit()
	return fn(scoped)
}

// RunGroup is Run for work that fans out into goroutines. fn receives
// the scoped context and an errgroup bound to it; goroutines started on
// the group inherit the entry. The group is waited on before the scope
// is restored, so the restore happens once every goroutine has
// finished, including when ctx is cancelled. The first error from fn or
// the group is returned.
func (s *Store) RunGroup(ctx context.Context, entry Entry, fn func(ctx context.Context, g *errgroup.Group) error) error {
	scoped, guard := s.enter(ctx, entry)
	defer guard.Exit()
	return runJoined(scoped, fn)
}

// runJoined calls fn with an errgroup derived from ctx and waits for
// the group before returning, also when fn panics. It returns the first
// error from fn or the group.
func runJoined(ctx context.Context, fn func(ctx context.Context, g *errgroup.Group) error) error {
	g, gctx := errgroup.WithContext(ctx)
	defer func() { _ = g.Wait() }()

	err := fn(gctx, g)
	if werr := g.Wait(); err == nil {
		err = werr
	}
	return err
}
