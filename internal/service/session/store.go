package session

import (
	"sync"

	domain "github.com/open-builders/image-delivery-bot/internal/domain/session"
)

// Store keeps sessions in process memory, one per chat.
type Store struct {
	mu       sync.Mutex
	sessions map[int64]*domain.Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[int64]*domain.Session)}
}

// Get returns the session of chatID, creating an unauthenticated one on first use.
// The same pointer is returned for the lifetime of the process.
func (s *Store) Get(chatID int64) *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[chatID]
	if !ok {
		sess = domain.New(chatID)
		s.sessions[chatID] = sess
	}
	return sess
}

// Peek returns the session of chatID without creating it.
func (s *Store) Peek(chatID int64) (*domain.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[chatID]
	return sess, ok
}

// Len returns the number of known chats.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// ChatIDs returns the ids of every known chat.
func (s *Store) ChatIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}
