// Package vectorstore holds indexed chunks. Implementations are safe for
// concurrent use: Append serialises writers, so two ingestions never
// clobber each other's snapshot.
package vectorstore

import (
	"context"
	"fmt"

	"docrag/internal/domain"
)

// Storage is the chunk store contract. The ingestion orchestrator is the
// only writer; readers take snapshots.
type Storage interface {
	// Load replaces the in-memory collection with the durable snapshot.
	Load(ctx context.Context) error
	// Append adds chunks and persists the whole collection. On failure
	// nothing is added.
	Append(ctx context.Context, chunks []domain.Chunk) error
	// Snapshot returns the chunks in insertion order.
	Snapshot() []domain.Chunk
	Len() int
}

// Dimension returns the embedding length shared by chunks, or 0 if empty.
func Dimension(chunks []domain.Chunk) int {
	if len(chunks) == 0 {
		return 0
	}
	return len(chunks[0].Embedding)
}

// CheckDimensions verifies that every chunk has an embedding of length dim.
// A dim of 0 adopts the length of the first chunk.
func CheckDimensions(dim int, chunks []domain.Chunk) error {
	for i, c := range chunks {
		if dim == 0 {
			dim = len(c.Embedding)
		}
		if len(c.Embedding) == 0 || len(c.Embedding) != dim {
			return fmt.Errorf("%w: chunk %d (%s) has %d values, want %d",
				domain.ErrDimensionMismatch, i, c.ID, len(c.Embedding), dim)
		}
	}
	return nil
}

// CountBySource tallies chunks per source label.
func CountBySource(chunks []domain.Chunk) map[string]int {
	out := make(map[string]int)
	for _, c := range chunks {
		out[c.Source]++
	}
	return out
}
