package service

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"docrag/internal/domain"
)

var unicodeWordRe = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`)

// lexicalSearch ranks chunks by the Ochiai coefficient between the word
// sets of query and chunk text, keeping at most topK results.
func lexicalSearch(query string, chunks []domain.Chunk, topK int) []domain.SearchResult {
	if topK <= 0 {
		return []domain.SearchResult{}
	}
	qset := toTokenSet(query)
	out := make([]domain.SearchResult, len(chunks))
	for i, ch := range chunks {
		out[i] = domain.SearchResult{Chunk: ch, Score: overlapOchiai(qset, ch.Text)}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if topK < len(out) {
		out = out[:topK]
	}
	return out
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

// overlapOchiai returns |A∩B| / sqrt(|A||B|).
func overlapOchiai(qset map[string]struct{}, text string) float64 {
	seen := toTokenSet(text)
	if len(qset) == 0 || len(seen) == 0 {
		return 0
	}
	inter := 0
	for t := range seen {
		if _, ok := qset[t]; ok {
			inter++
		}
	}
	return float64(inter) / math.Sqrt(float64(len(qset))*float64(len(seen)))
}
