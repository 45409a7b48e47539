package session

import (
	"sync"

	"github.com/captain-focus/backend/internal/model/chat"
)

// Store holds user to agent mappings. Implementations must be safe for
// concurrent use.
type Store interface {
	Get(userID string) (chat.AgentSession, bool)
	Put(session chat.AgentSession)
	List() []chat.AgentSession
}

// MemoryStore is a process-local Store. Entries are never evicted.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]chat.AgentSession
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]chat.AgentSession)}
}

func (s *MemoryStore) Get(userID string) (chat.AgentSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[userID]
	return session, ok
}

func (s *MemoryStore) Put(session chat.AgentSession) {
	s.mu.Lock()
	s.sessions[session.UserID] = session
	s.mu.Unlock()
}

func (s *MemoryStore) List() []chat.AgentSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]chat.AgentSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session)
	}
	return out
}
