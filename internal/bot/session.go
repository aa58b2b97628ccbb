package bot

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/attendbot/internal/command"
)

// Session tracks one in-flight interactive query: the menu flow fills in
// the scope first, then the date. Sessions are keyed by a generated id,
// not by display name, and expire after a bounded lifetime.
type Session struct {
	ID           uuid.UUID
	SenderHandle string
	Scope        command.Scope
	ExpiresAt    time.Time
}

// Sessions is the in-memory session map. Expired entries are dropped
// lazily on access.
type Sessions struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*Session
	ttl  time.Duration
	now  func() time.Time
}

func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{
		byID: map[uuid.UUID]*Session{},
		ttl:  ttl,
		now:  time.Now,
	}
}

// Open starts a session for the sender and returns it.
func (s *Sessions) Open(senderHandle string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := &Session{
		ID:           uuid.New(),
		SenderHandle: senderHandle,
		ExpiresAt:    s.now().Add(s.ttl),
	}
	s.byID[sess.ID] = sess
	return sess
}

// Get returns a live session. Expired sessions are deleted and reported as
// missing.
func (s *Sessions) Get(id uuid.UUID) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	if s.now().After(sess.ExpiresAt) {
		delete(s.byID, id)
		return nil, false
	}
	return sess, true
}

// SetScope stores the chosen scope and extends the session lifetime for
// the next step.
func (s *Sessions) SetScope(id uuid.UUID, scope command.Scope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.byID[id]; ok {
		sess.Scope = scope
		sess.ExpiresAt = s.now().Add(s.ttl)
	}
}

// Close removes a finished session.
func (s *Sessions) Close(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
}

// Len reports the number of stored sessions, expired ones included.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}
