// Package retriever ranks stored chunks against a query vector by cosine
// similarity using a full linear scan.
package retriever

import (
	"math"
	"sort"

	"docrag/internal/domain"
)

// CosineSimilarity returns dot(a, b) / (|a| |b|). Vectors of different
// length, or either vector being all zeros, score 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	s := dot / (math.Sqrt(na) * math.Sqrt(nb))
	// clamp rounding drift so callers can rely on [-1, 1]
	switch {
	case s > 1:
		return 1
	case s < -1:
		return -1
	case math.IsNaN(s):
		return 0
	}
	return s
}

// Rank scores every chunk against query and returns the k best in
// descending score order. Equal scores keep scan order. k >= len(chunks)
// returns all chunks sorted; k <= 0 returns none.
func Rank(query []float64, chunks []domain.Chunk, k int) []domain.SearchResult {
	if k <= 0 {
		return []domain.SearchResult{}
	}
	results := make([]domain.SearchResult, len(chunks))
	for i, ch := range chunks {
		results[i] = domain.SearchResult{Chunk: ch, Score: CosineSimilarity(query, ch.Embedding)}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k < len(results) {
		results = results[:k]
	}
	return results
}
