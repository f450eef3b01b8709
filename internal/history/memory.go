package history

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/drivewise/pkg/types"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps histories in process memory. Idle sessions are evicted
// after the TTL when one is set.
type MemoryStore struct {
	maxPairs int
	ttl      time.Duration
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*memorySession
	closed   bool
}

type memorySession struct {
	messages []types.ChatMessage
	touched  time.Time
}

// NewMemoryStore returns an empty [MemoryStore]. A zero ttl keeps sessions
// for the process lifetime.
func NewMemoryStore(maxPairs int, ttl time.Duration) *MemoryStore {
	if maxPairs <= 0 {
		maxPairs = DefaultMaxPairs
	}
	return &MemoryStore{
		maxPairs: maxPairs,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*memorySession),
	}
}

// GetOrCreate implements [Store].
func (s *MemoryStore) GetOrCreate(_ context.Context, sessionID string) ([]types.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	sess := s.session(sessionID)
	out := make([]types.ChatMessage, len(sess.messages))
	copy(out, sess.messages)
	return out, nil
}

// Append implements [Store].
func (s *MemoryStore) Append(_ context.Context, sessionID, user, assistant string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	sess := s.session(sessionID)
	sess.messages = Trim(append(sess.messages, pair(user, assistant)...), s.maxPairs)
	return nil
}

// Clear implements [Store].
func (s *MemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	delete(s.sessions, sessionID)
	return nil
}

// Ping implements [Store].
func (s *MemoryStore) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Close implements [Store].
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.sessions = nil
	return nil
}

// Len returns the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// session returns the entry for id, creating it and evicting idle ones.
// Must be called with s.mu held.
func (s *MemoryStore) session(id string) *memorySession {
	now := s.now()
	if s.ttl > 0 {
		for k, sess := range s.sessions {
			if now.Sub(sess.touched) > s.ttl {
				delete(s.sessions, k)
			}
		}
	}
	sess, ok := s.sessions[id]
	if !ok {
		sess = &memorySession{messages: []types.ChatMessage{}}
		s.sessions[id] = sess
	}
	sess.touched = now
	return sess
}
