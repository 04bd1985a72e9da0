package instrument

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is the capability set of the session role: an opaque
// key/value store.
type Session interface {
	Get(key string, def any) any
	Set(key string, value any)
}

// DefaultSession is an in-memory Session with an id, a name and tags.
// It is safe for concurrent use.
type DefaultSession struct {
	id        string
	name      string
	createdAt time.Time

	mu    sync.RWMutex
	state map[string]any
	tags  []string
}

// SessionSnapshot describes a session for debugging.
type SessionSnapshot struct {
	ID        string    `json:"session_id"`
	Name      string    `json:"session_name"`
	CreatedAt time.Time `json:"created_at"`
	Tags      []string  `json:"tags"`
	StateKeys []string  `json:"state_keys"`
}

// NewDefaultSession creates a session. An empty id is replaced by a
// random UUID and an empty name by "default-session".
func NewDefaultSession(id, name string) *DefaultSession {
	if id == "" {
		id = uuid.NewString()
	}
	if name == "" {
		name = "default-session"
	}
	return &DefaultSession{
		id:        id,
		name:      name,
		createdAt: time.Now(),
		state:     make(map[string]any),
	}
}

func (s *DefaultSession) ID() string   { return s.id }
func (s *DefaultSession) Name() string { return s.name }

// Get returns the value stored under key, or def when absent.
func (s *DefaultSession) Get(key string, def any) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.state[key]; ok {
		return v
	}
	return def
}

func (s *DefaultSession) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state[key] = value
}

// Len returns the number of stored keys.
func (s *DefaultSession) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state)
}

// Keys returns the stored keys in sorted order.
func (s *DefaultSession) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.state))
}

// AddTag adds tag unless it is already present.
func (s *DefaultSession) AddTag(tag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.tags, tag) {
		s.tags = append(s.tags, tag)
	}
}

func (s *DefaultSession) Tags() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.tags)
}

// Reset removes all stored keys. Tags are kept.
func (s *DefaultSession) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.state)
}

func (s *DefaultSession) Snapshot() SessionSnapshot {
	return SessionSnapshot{
		ID:        s.id,
		Name:      s.name,
		CreatedAt: s.createdAt,
		Tags:      s.Tags(),
		StateKeys: s.Keys(),
	}
}

func (s *DefaultSession) String() string {
	return fmt.Sprintf("<Session(name=%q, tags=%q)>", s.name, s.Tags())
}
