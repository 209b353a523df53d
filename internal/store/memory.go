package store

import (
	"context"
	"sync"
	"time"

	"secretmessag.es/internal/models"
)

// Compile-time interface check
var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps everything in process memory. Useful for development and
// tests; all data is lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	messages map[string]*models.Message
	counters map[models.CounterType]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages: make(map[string]*models.Message),
		counters: make(map[models.CounterType]int64),
	}
}

func (s *MemoryStore) Create(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.messages[msg.ID]; exists {
		return ErrDuplicateID
	}
	clone := *msg
	s.messages[msg.ID] = &clone
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *msg
	return &clone, nil
}

func (s *MemoryStore) MarkViewed(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok || msg.IsViewed {
		return false, nil
	}
	msg.IsViewed = true
	return true, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.messages, id)
	return nil
}

func (s *MemoryStore) DeleteExpiredOrViewed(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, msg := range s.messages {
		if msg.Expired(now) || msg.Consumed() {
			delete(s.messages, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryStore) IncrementCounter(ctx context.Context, t models.CounterType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters[t]++
	return nil
}

func (s *MemoryStore) CounterValue(ctx context.Context, t models.CounterType) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.counters[t], nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = nil
	s.counters = nil
	return nil
}
