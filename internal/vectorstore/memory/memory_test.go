package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/domain"
)

func TestAppendAndSnapshot(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, []domain.Chunk{
		{ID: "1", Text: "A", Embedding: []float64{1, 0}},
		{ID: "2", Text: "B", Embedding: []float64{0, 1}},
	}))
	require.NoError(t, s.Append(ctx, []domain.Chunk{{ID: "3", Embedding: []float64{1, 1}}}))

	snap := s.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, []string{"1", "2", "3"}, []string{snap[0].ID, snap[1].ID, snap[2].ID})
	assert.Equal(t, 3, s.Len())

	snap[0].ID = "mutated"
	assert.Equal(t, "1", s.Snapshot()[0].ID)
}

func TestAppend_RejectsDimensionMismatch(t *testing.T) {
	s := NewStorage(domain.Chunk{ID: "seed", Embedding: []float64{1, 0}})

	err := s.Append(context.Background(), []domain.Chunk{{ID: "bad", Embedding: []float64{1, 0, 0}}})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.Equal(t, 1, s.Len())
}

func TestAppend_Concurrent(t *testing.T) {
	s := NewStorage()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Append(context.Background(), []domain.Chunk{{ID: fmt.Sprint(i), Embedding: []float64{1}}})
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, s.Len())
}
