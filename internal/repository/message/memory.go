package message

import (
	"context"
	"sync"

	"cipher_chat/internal/model"
)

type MemoryStore struct {
	mu       sync.RWMutex
	channels map[string][]model.RawMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		channels: make(map[string][]model.RawMessage),
	}
}

func (s *MemoryStore) Append(_ context.Context, channel string, rec model.RawMessage) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.channels[channel] = append(s.channels[channel], rec)
	return len(s.channels[channel]), nil
}

func (s *MemoryStore) List(_ context.Context, channel string) ([]model.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]model.RawMessage{}, s.channels[channel]...), nil
}

func (s *MemoryStore) Count(_ context.Context, channel string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.channels[channel]), nil
}
