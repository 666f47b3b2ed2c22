package memory

import (
	"context"
	"sync"

	"docrag/internal/domain"
	"docrag/internal/vectorstore"
)

// Storage is a volatile chunk store. Load is a no-op and nothing survives
// the process.
type Storage struct {
	mu     sync.RWMutex
	chunks []domain.Chunk
}

var _ vectorstore.Storage = (*Storage)(nil)

func NewStorage(seed ...domain.Chunk) *Storage {
	return &Storage{chunks: append([]domain.Chunk(nil), seed...)}
}

func (s *Storage) Load(context.Context) error { return nil }

func (s *Storage) Append(_ context.Context, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := vectorstore.CheckDimensions(vectorstore.Dimension(s.chunks), chunks); err != nil {
		return domain.Validation(err, "append")
	}
	s.chunks = append(s.chunks, chunks...)
	return nil
}

func (s *Storage) Snapshot() []domain.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Chunk(nil), s.chunks...)
}

func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}
