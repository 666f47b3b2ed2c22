// Package file keeps chunks in memory and mirrors them to a JSON snapshot
// on disk. Every Append rewrites the whole snapshot.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"docrag/internal/domain"
	"docrag/internal/vectorstore"
)

// Storage is a snapshot-backed chunk store.
type Storage struct {
	path string
	log  *slog.Logger

	// mu guards chunks and serialises append+persist.
	mu     sync.RWMutex
	chunks []domain.Chunk
}

var _ vectorstore.Storage = (*Storage)(nil)

// New returns a store persisting to path. Call Load before use.
func New(path string, logger *slog.Logger) *Storage {
	if logger == nil {
		logger = slog.Default()
	}
	return &Storage{path: path, log: logger.With("component", "store", "path", path)}
}

// Load reads the snapshot. A missing file yields an empty store; an
// unreadable or malformed one is an error and leaves the store untouched.
func (s *Storage) Load(_ context.Context) error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.mu.Lock()
		s.chunks = nil
		s.mu.Unlock()
		s.log.Info("no snapshot found, starting empty")
		return nil
	}
	if err != nil {
		return domain.Storage(err, "read snapshot %s", s.path)
	}
	var chunks []domain.Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return domain.Storage(err, "parse snapshot %s", s.path)
	}
	if err := vectorstore.CheckDimensions(0, chunks); err != nil {
		return domain.Storage(err, "snapshot %s", s.path)
	}
	s.mu.Lock()
	s.chunks = chunks
	s.mu.Unlock()
	s.log.Info("loaded snapshot", "chunks", len(chunks))
	return nil
}

// Append adds chunks and persists the full collection. If persisting
// fails the in-memory collection is left as it was.
func (s *Storage) Append(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := vectorstore.CheckDimensions(vectorstore.Dimension(s.chunks), chunks); err != nil {
		return domain.Validation(err, "append")
	}
	next := make([]domain.Chunk, 0, len(s.chunks)+len(chunks))
	next = append(next, s.chunks...)
	next = append(next, chunks...)
	if err := s.persist(next); err != nil {
		return err
	}
	s.chunks = next
	s.log.Debug("persisted snapshot", "added", len(chunks), "total", len(next))
	return nil
}

// Snapshot returns the chunks in insertion order.
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

// persist writes chunks to a temporary file next to the snapshot and
// renames it into place, so readers see either the old or the new file.
func (s *Storage) persist(chunks []domain.Chunk) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return domain.Storage(err, "create %s", dir)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return domain.Storage(err, "create temp snapshot")
	}
	cleanup := func() { _ = os.Remove(tmp.Name()) }

	enc := json.NewEncoder(tmp)
	if err := enc.Encode(chunks); err != nil {
		_ = tmp.Close()
		cleanup()
		return domain.Storage(err, "encode snapshot")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return domain.Storage(err, "sync snapshot")
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return domain.Storage(err, "close snapshot")
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		cleanup()
		return domain.Storage(err, "replace %s", s.path)
	}
	return nil
}
