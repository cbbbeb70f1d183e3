package enroll

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store with an in-process map. It is the default
// driver for single-instance deployments and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	prints map[string]*Voiceprint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{prints: make(map[string]*Voiceprint)}
}

func (s *MemoryStore) Put(ctx context.Context, vp *Voiceprint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := &Voiceprint{
		UserID:    vp.UserID,
		Embedding: append([]float64(nil), vp.Embedding...),
		CreatedAt: vp.CreatedAt,
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	s.prints[vp.UserID] = stored
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, userID string) (*Voiceprint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.prints[userID]
	if !ok {
		return nil, ErrNotEnrolled
	}
	return &Voiceprint{
		UserID:    stored.UserID,
		Embedding: append([]float64(nil), stored.Embedding...),
		CreatedAt: stored.CreatedAt,
	}, nil
}

func (s *MemoryStore) Delete(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.prints, userID)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
