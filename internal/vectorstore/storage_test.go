package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"docrag/internal/domain"
)

func TestCheckDimensions(t *testing.T) {
	ok := []domain.Chunk{{Embedding: []float64{1, 2}}, {Embedding: []float64{3, 4}}}
	assert.NoError(t, CheckDimensions(0, ok))
	assert.NoError(t, CheckDimensions(2, ok))
	assert.ErrorIs(t, CheckDimensions(3, ok), domain.ErrDimensionMismatch)

	mixed := []domain.Chunk{{Embedding: []float64{1}}, {Embedding: []float64{1, 2}}}
	assert.ErrorIs(t, CheckDimensions(0, mixed), domain.ErrDimensionMismatch)

	empty := []domain.Chunk{{ID: "x"}}
	assert.ErrorIs(t, CheckDimensions(0, empty), domain.ErrDimensionMismatch)
}

func TestDimensionAndCountBySource(t *testing.T) {
	chunks := []domain.Chunk{
		{Source: "pdf", Embedding: []float64{1, 2, 3}},
		{Source: "website", Embedding: []float64{1, 2, 3}},
		{Source: "pdf", Embedding: []float64{1, 2, 3}},
	}
	assert.Equal(t, 3, Dimension(chunks))
	assert.Equal(t, 0, Dimension(nil))
	assert.Equal(t, map[string]int{"pdf": 2, "website": 1}, CountBySource(chunks))
}
