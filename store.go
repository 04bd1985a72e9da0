package instrument

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
)

// Entry is the set of collaborators active for one execution unit. The
// store borrows them and never closes or mutates them.
type Entry struct {
	Session Session
	Monitor Monitor
	Report  Report
}

// Store holds the active Entry of every execution unit. An execution
// unit is a context chain: Activate derives a context carrying the
// entry, so goroutines only ever see the entry of the context they were
// handed, and nested activations unwind by returning to the parent
// context.
//
// A Store is created once per process (or per test) and passed by
// reference to the proxies that read from it. Two stores never see each
// other's entries.
type Store struct {
	name   string
	key    *storeKey
	open   atomic.Int64
	logger *zap.Logger
}

// storeKey is unique per Store; its address is the context key.
type storeKey struct {
	name string
}

// activation is the context value for one activated entry.
type activation struct {
	entry Entry
	depth int
}

// Token captures the context that was current before an activation.
type Token struct {
	store  *Store
	parent context.Context
	prev   *activation
}

// Entry returns the entry that was current before the activation, if any.
func (t Token) Entry() (Entry, bool) {
	if t.prev == nil {
		return Entry{}, false
	}
	return t.prev.entry, true
}

// NewStore creates an empty store.
func NewStore(name string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		name:   name,
		key:    &storeKey{name: name},
		logger: logger,
	}
}

// Name returns the store name.
func (s *Store) Name() string {
	return s.name
}

func (s *Store) lookup(ctx context.Context) *activation {
	if ctx == nil {
		return nil
	}
	a, _ := ctx.Value(s.key).(*activation)
	return a
}

// Activate returns a context in which entry is current, and a token
// that restores the previous state. Every Activate must be paired with
// one Restore, innermost first.
func (s *Store) Activate(ctx context.Context, entry Entry) (context.Context, Token) {
	if ctx == nil {
		ctx = context.Background()
	}
	prev := s.lookup(ctx)
	depth := 1
	if prev != nil {
		depth = prev.depth + 1
	}

	s.open.Add(1)
	s.logger.Debug("context activated",
		zap.String("store", s.name),
		zap.Int("depth", depth))

	next := context.WithValue(ctx, s.key, &activation{entry: entry, depth: depth})
	return next, Token{store: s, parent: ctx, prev: prev}
}

// Current returns the entry active in ctx, or ErrNotActive.
func (s *Store) Current(ctx context.Context) (Entry, error) {
	a := s.lookup(ctx)
	if a == nil {
		return Entry{}, ErrNotActive
	}
	return a.entry, nil
}

// Depth returns the number of nested activations visible in ctx.
func (s *Store) Depth(ctx context.Context) int {
	if a := s.lookup(ctx); a != nil {
		return a.depth
	}
	return 0
}

// Restore returns the context captured by tok, in which exactly the
// entry that preceded the activation is current.
func (s *Store) Restore(tok Token) context.Context {
	if tok.store != s {
		panic(fmt.Sprintf("instrument: token of store %q restored on store %q", tokenStoreName(tok), s.name))
	}
	s.open.Add(-1)
	s.logger.Debug("context restored",
		zap.String("store", s.name),
		zap.Bool("previous_active", tok.prev != nil))
	return tok.parent
}

func tokenStoreName(tok Token) string {
	if tok.store == nil {
		return ""
	}
	return tok.store.name
}

// Open returns the number of activations not yet restored, across all
// execution units.
func (s *Store) Open() int64 {
	return s.open.Load()
}

// Close tears the store down. It reports ErrScopesOpen when some
// activation was never restored.
func (s *Store) Close() error {
	if n := s.open.Load(); n != 0 {
		s.logger.Warn("store closed with open scopes",
			zap.String("store", s.name),
			zap.Int64("open", n))
		return fmt.Errorf("%w: %d", ErrScopesOpen, n)
	}
	return nil
}
