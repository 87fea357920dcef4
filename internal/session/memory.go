package session

import (
	"context"
	"sync"
	"time"

	"github.com/frantsuz-club/ticket-bot/internal/domain"
)

// MemoryStore is the in-process Store used in tests and single-node
// deployments. Expired sessions are evicted lazily on read.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[int64]*domain.Session
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[int64]*domain.Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *MemoryStore) Get(ctx context.Context, chatID int64) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[chatID]
	if !ok {
		return nil, nil
	}
	if s.ttl > 0 && s.now().Sub(sess.UpdatedAt) > s.ttl {
		delete(s.sessions, chatID)
		return nil, nil
	}
	copied := *sess
	return &copied, nil
}

func (s *MemoryStore) Put(ctx context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess.UpdatedAt = s.now().UTC()
	copied := *sess
	s.sessions[sess.ChatID] = &copied
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, chatID)
	return nil
}
